package device

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
	"github.com/RyanBlaney/eeg-capture/pkg/logging"
)

// SyntheticConfig shapes the generated signal. Each channel carries a sine
// at Frequencies[c % len(Frequencies)] plus optional gaussian noise.
type SyntheticConfig struct {
	SampleRate      float64   `yaml:"sample_rate,omitempty" mapstructure:"sample_rate"`
	Channels        []string  `yaml:"channels,omitempty" mapstructure:"channels"`
	NonDataChannels []string  `yaml:"non_data_channels,omitempty" mapstructure:"non_data_channels"`
	Frequencies     []float64 `yaml:"frequencies,omitempty" mapstructure:"frequencies"`
	Amplitude       float64   `yaml:"amplitude,omitempty" mapstructure:"amplitude"`
	BatchSize       int       `yaml:"batch_size,omitempty" mapstructure:"batch_size"`
	Noise           float64   `yaml:"noise,omitempty" mapstructure:"noise"`
	Seed            uint64    `yaml:"seed,omitempty" mapstructure:"seed"`
}

func (c SyntheticConfig) withDefaults() SyntheticConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = 256
	}
	if len(c.Channels) == 0 {
		c.Channels = append([]string(nil), MuseChannels...)
		if len(c.NonDataChannels) == 0 {
			c.NonDataChannels = []string{"Right AUX"}
		}
	}
	if len(c.Frequencies) == 0 {
		c.Frequencies = []float64{10}
	}
	if c.Amplitude == 0 {
		c.Amplitude = 50
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 12
	}
	return c
}

// SyntheticDevice generates sine-plus-noise batches on a ticker, paced at
// the configured sample rate. It stands in for hardware in tests and demos.
type SyntheticDevice struct {
	name string
	cfg  SyntheticConfig
	opts options

	mu        sync.Mutex
	connected bool
	streaming bool
	stopCh    chan struct{}
	done      chan struct{}

	rng  *rand.Rand
	next int64
}

// NewSyntheticDevice creates a synthetic device.
func NewSyntheticDevice(name string, cfg SyntheticConfig, opts ...Option) *SyntheticDevice {
	cfg = cfg.withDefaults()
	return &SyntheticDevice{
		name: name,
		cfg:  cfg,
		opts: newOptions("synthetic_device", opts),
		rng:  rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

func (d *SyntheticDevice) Info() Info {
	return Info{
		Name:            d.name,
		Kind:            KindSynthetic,
		SampleRate:      d.cfg.SampleRate,
		Channels:        append([]string(nil), d.cfg.Channels...),
		NonDataChannels: append([]string(nil), d.cfg.NonDataChannels...),
	}
}

func (d *SyntheticDevice) Capabilities() Capabilities {
	return d.opts.caps
}

// Connect always succeeds unless ctx is already done.
func (d *SyntheticDevice) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return common.NewError("synthetic_device", common.ErrCodeDeviceUnreachable, "connect cancelled", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = true
	return nil
}

// Start begins delivering batches to cb.
func (d *SyntheticDevice) Start(cb SampleCallback) error {
	if !d.opts.caps.Has(CapStream) {
		return common.NewError("synthetic_device", common.ErrCodeUnsupported, "device cannot stream", nil)
	}
	if cb == nil {
		return common.NewError("synthetic_device", common.ErrCodeInvalidArgument, "callback is required", nil)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return common.NewError("synthetic_device", common.ErrCodeDeviceUnreachable, "device not connected", nil)
	}
	if d.streaming {
		return nil
	}

	d.streaming = true
	d.stopCh = make(chan struct{})
	d.done = make(chan struct{})

	go d.generateLoop(cb, unixSeconds(d.opts.now()), d.stopCh, d.done)

	d.opts.logger.Debug("synthetic device started", logging.Fields{
		"sample_rate": d.cfg.SampleRate,
		"channels":    len(d.cfg.Channels),
		"batch_size":  d.cfg.BatchSize,
	})
	return nil
}

// minBatchInterval is the fastest generator cadence.
const minBatchInterval = time.Microsecond

// batchInterval is the time one batch covers at the configured rate,
// never shorter than minBatchInterval.
func (d *SyntheticDevice) batchInterval() time.Duration {
	interval := time.Duration(float64(d.cfg.BatchSize) / d.cfg.SampleRate * float64(time.Second))
	return max(interval, minBatchInterval)
}

func (d *SyntheticDevice) generateLoop(cb SampleCallback, start float64, stopCh, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.batchInterval())
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			samples, timestamps := d.generateBatch(start)
			cb(samples, timestamps)
		}
	}
}

func (d *SyntheticDevice) generateBatch(start float64) (common.Samples, []float64) {
	n := d.cfg.BatchSize
	samples := common.NewSamples(len(d.cfg.Channels), n)
	timestamps := make([]float64, n)

	for i := 0; i < n; i++ {
		idx := d.next + int64(i)
		t := float64(idx) / d.cfg.SampleRate
		timestamps[i] = start + t
		for c := range samples {
			f := d.cfg.Frequencies[c%len(d.cfg.Frequencies)]
			v := d.cfg.Amplitude * math.Sin(2*math.Pi*f*t)
			if d.cfg.Noise > 0 {
				v += d.rng.NormFloat64() * d.cfg.Noise
			}
			samples[c][i] = v
		}
	}
	d.next += int64(n)
	return samples, timestamps
}

// Stop halts generation and waits for the generator goroutine to exit.
func (d *SyntheticDevice) Stop() error {
	d.mu.Lock()
	if !d.streaming {
		d.mu.Unlock()
		return nil
	}
	d.streaming = false
	close(d.stopCh)
	done := d.done
	d.mu.Unlock()

	<-done
	d.opts.logger.Debug("synthetic device stopped", logging.Fields{"samples": d.next})
	return nil
}

// Disconnect stops streaming if needed and marks the device disconnected.
func (d *SyntheticDevice) Disconnect() error {
	if err := d.Stop(); err != nil {
		return fmt.Errorf("failed to stop before disconnect: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = false
	return nil
}
