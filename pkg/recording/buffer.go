package recording

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
)

// SampleBuffer accumulates timestamped batches delivered by a device
// callback. Append is safe to call from the delivery goroutine while the
// supervisor reads Len; Snapshot is only meaningful after Freeze.
type SampleBuffer struct {
	mu         sync.Mutex
	channels   int
	rows       common.Samples
	timestamps []float64
	frozen     bool

	dropped atomic.Int64
}

// NewSampleBuffer creates a buffer for the given channel count. capacity is
// a per-channel preallocation hint.
func NewSampleBuffer(channels, capacity int) *SampleBuffer {
	if capacity < 0 {
		capacity = 0
	}
	rows := make(common.Samples, channels)
	for c := range rows {
		rows[c] = make([]float64, 0, capacity)
	}
	return &SampleBuffer{
		channels:   channels,
		rows:       rows,
		timestamps: make([]float64, 0, capacity),
	}
}

// Append adds one batch. Batches with the wrong shape, or arriving after
// Freeze, are rejected and counted as dropped.
func (b *SampleBuffer) Append(samples common.Samples, timestamps []float64) error {
	if samples.Channels() != b.channels {
		b.dropped.Add(1)
		return fmt.Errorf("batch has %d channels, buffer has %d", samples.Channels(), b.channels)
	}
	if err := samples.Validate(); err != nil {
		b.dropped.Add(1)
		return err
	}
	if samples.Len() != len(timestamps) {
		b.dropped.Add(1)
		return fmt.Errorf("batch has %d timestamps for %d samples", len(timestamps), samples.Len())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		b.dropped.Add(1)
		return fmt.Errorf("buffer is frozen")
	}
	for c, row := range samples {
		b.rows[c] = append(b.rows[c], row...)
	}
	b.timestamps = append(b.timestamps, timestamps...)
	return nil
}

// Len returns the number of samples per channel accumulated so far.
func (b *SampleBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.timestamps)
}

// Channels returns the configured channel count.
func (b *SampleBuffer) Channels() int {
	return b.channels
}

// Dropped returns the number of rejected batches.
func (b *SampleBuffer) Dropped() int64 {
	return b.dropped.Load()
}

// Freeze rejects all further appends.
func (b *SampleBuffer) Freeze() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen = true
}

// Frozen reports whether Freeze has been called.
func (b *SampleBuffer) Frozen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frozen
}

// Snapshot returns copies of the timestamps and samples.
func (b *SampleBuffer) Snapshot() ([]float64, common.Samples) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]float64(nil), b.timestamps...), b.rows.Clone()
}
