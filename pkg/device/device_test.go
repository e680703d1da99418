package device

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
)

func TestSimplifyName(t *testing.T) {
	assert.Equal(t, "muse_s_1234", SimplifyName("Muse S 1234"))
	assert.Equal(t, "muse", SimplifyName("  MUSE "))
}

func TestFolderLabel(t *testing.T) {
	info := Info{Name: "Muse S"}
	ts := time.Date(2024, 3, 7, 9, 5, 2, 0, time.UTC)
	assert.Equal(t, "2024_03_07_09_05_02_muse_s", info.FolderLabel(ts))
}

func TestParseCapabilities(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    Capabilities
		wantErr bool
	}{
		{"empty means all", nil, CapAll, false},
		{"stream only", []string{"stream"}, CapStream, false},
		{"both", []string{"Stream", "record"}, CapAll, false},
		{"record without stream", []string{"record"}, 0, true},
		{"unknown", []string{"teleport"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCapabilities(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "{stream,record}", CapAll.String())
}

func TestDescriptorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	d := MuseDescriptor("Muse S 1234", "00:55:DA:B0:12:34")

	path, err := SaveDescriptor(dir, d)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "muse_s_1234.yaml"), path)

	loaded, err := LoadDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, d, loaded)
	assert.Equal(t, KindMuse, loaded.Info().Kind)
}

func TestParseDescriptorRejectsForeignData(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown kind", "version: 1\nkind: toaster\nname: x\nsample_rate: 256\nchannels: [a]\n"},
		{"unknown version", "version: 7\nkind: synthetic\nname: x\nsample_rate: 256\nchannels: [a]\n"},
		{"unknown field", "version: 1\nkind: synthetic\nname: x\nsample_rate: 256\nchannels: [a]\nslices: 4\n"},
		{"not a mapping", "- 1\n- 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDescriptor([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrKindMismatch), "got %v", err)
		})
	}
}

func TestDescriptorValidation(t *testing.T) {
	d := MuseDescriptor("m", "")
	assert.True(t, errors.Is(d.Validate(), common.ErrInvalidArgument))

	w := WebSocketDescriptor("w", "")
	assert.True(t, errors.Is(w.Validate(), common.ErrInvalidArgument))

	s := SyntheticDescriptor("s", SyntheticConfig{})
	s.NonDataChannels = []string{"nope"}
	assert.Error(t, s.Validate())
}

func TestLoadDescriptorMissingFile(t *testing.T) {
	_, err := LoadDescriptor(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFactory(t *testing.T) {
	f := NewFactory()
	assert.Equal(t, []Kind{KindSynthetic, KindWebSocket}, f.SupportedKinds())

	s, err := f.Create(SyntheticDescriptor("gen", SyntheticConfig{SampleRate: 128}))
	require.NoError(t, err)
	assert.Equal(t, KindSynthetic, s.Info().Kind)
	assert.Equal(t, 128.0, s.Info().SampleRate)

	_, err = f.Create(MuseDescriptor("muse", "00:11:22:33:44:55"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrUnsupported))

	var called atomic.Bool
	f.Register(KindMuse, func(d Descriptor, caps Capabilities) (Streamer, error) {
		called.Store(true)
		return NewSyntheticDevice(d.Name, SyntheticConfig{}, WithCapabilities(caps)), nil
	})
	_, err = f.Create(MuseDescriptor("muse", "00:11:22:33:44:55"))
	require.NoError(t, err)
	assert.True(t, called.Load())
}

func TestFactoryAppliesCapabilities(t *testing.T) {
	d := SyntheticDescriptor("gen", SyntheticConfig{})
	d.Capabilities = []string{"stream"}

	s, err := NewFactory().Create(d)
	require.NoError(t, err)
	assert.True(t, s.Capabilities().Has(CapStream))
	assert.False(t, s.Capabilities().Has(CapRecord))
}

type batchCollector struct {
	mu         sync.Mutex
	batches    int
	timestamps []float64
	channels   int
}

func (c *batchCollector) callback(samples common.Samples, ts []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches++
	c.channels = samples.Channels()
	c.timestamps = append(c.timestamps, ts...)
}

func (c *batchCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches
}

func TestSyntheticDeviceStreams(t *testing.T) {
	start := time.Unix(1700000000, 0)
	dev := NewSyntheticDevice("gen", SyntheticConfig{SampleRate: 1000, BatchSize: 10, Seed: 1, Noise: 0.1},
		WithClock(func() time.Time { return start }))

	require.Error(t, dev.Start(func(common.Samples, []float64) {}), "start before connect")

	require.NoError(t, dev.Connect(context.Background()))

	c := &batchCollector{}
	require.NoError(t, dev.Start(c.callback))
	require.Eventually(t, func() bool { return c.count() >= 3 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, dev.Stop())
	after := c.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, c.count(), "no callbacks after Stop returns")

	require.NoError(t, dev.Stop())
	require.NoError(t, dev.Disconnect())

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, 5, c.channels)
	assert.InDelta(t, 1700000000.0, c.timestamps[0], 1e-6)
	for i := 1; i < len(c.timestamps); i++ {
		assert.InDelta(t, 0.001, c.timestamps[i]-c.timestamps[i-1], 1e-6)
	}
}

func TestSyntheticBatchInterval(t *testing.T) {
	tests := []struct {
		name string
		cfg  SyntheticConfig
		want time.Duration
	}{
		{"muse rate", SyntheticConfig{SampleRate: 256, BatchSize: 12}, 46875 * time.Microsecond},
		{"thirty-second of a second", SyntheticConfig{SampleRate: 1024, BatchSize: 32}, 31250 * time.Microsecond},
		{"sub-nanosecond clamps", SyntheticConfig{SampleRate: 1e12, BatchSize: 1}, minBatchInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := NewSyntheticDevice("gen", tt.cfg)
			assert.Equal(t, tt.want, dev.batchInterval())
		})
	}
}

func TestSyntheticDeviceStreamsAtExtremeRate(t *testing.T) {
	dev := NewSyntheticDevice("gen", SyntheticConfig{SampleRate: 1e12, BatchSize: 1, Channels: []string{"Cz"}})
	require.NoError(t, dev.Connect(context.Background()))

	c := &batchCollector{}
	require.NoError(t, dev.Start(c.callback))
	require.Eventually(t, func() bool { return c.count() >= 1 }, 2*time.Second, time.Millisecond)
	require.NoError(t, dev.Disconnect())
}

func TestSyntheticDeviceWithoutStreamCapability(t *testing.T) {
	dev := NewSyntheticDevice("gen", SyntheticConfig{}, WithCapabilities(0))
	require.NoError(t, dev.Connect(context.Background()))
	err := dev.Start(func(common.Samples, []float64) {})
	assert.True(t, errors.Is(err, common.ErrUnsupported))
}

func TestSyntheticDeviceConnectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewSyntheticDevice("gen", SyntheticConfig{}).Connect(ctx)
	assert.True(t, errors.Is(err, common.ErrDeviceUnreachable))
}
