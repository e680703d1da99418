package common

import (
	"fmt"
	"time"
)

// Samples is a channel-major block of voltages: Samples[c][i] is sample i of
// channel c. Every channel row has the same length.
type Samples [][]float64

// NewSamples allocates a zero-filled block of the given shape.
func NewSamples(channels, length int) Samples {
	s := make(Samples, channels)
	for c := range s {
		s[c] = make([]float64, length)
	}
	return s
}

// Channels returns the channel count.
func (s Samples) Channels() int {
	return len(s)
}

// Len returns the number of samples per channel.
func (s Samples) Len() int {
	if len(s) == 0 {
		return 0
	}
	return len(s[0])
}

// Clone returns a deep copy.
func (s Samples) Clone() Samples {
	out := make(Samples, len(s))
	for c, row := range s {
		out[c] = append([]float64(nil), row...)
	}
	return out
}

// Validate checks that all channel rows share one length.
func (s Samples) Validate() error {
	n := s.Len()
	for c, row := range s {
		if len(row) != n {
			return fmt.Errorf("channel %d has %d samples, expected %d", c, len(row), n)
		}
	}
	return nil
}

// Marker is an exogenous labeled event correlated with a sample stream by
// timestamp only.
type Marker struct {
	Label     string  `json:"label" yaml:"label"`
	Timestamp float64 `json:"timestamp" yaml:"timestamp"`
}

// Recording is the persisted, timestamp-indexed form of a capture: one
// timestamp per sample column and one row per retained channel.
type Recording struct {
	Timestamps []float64 `json:"timestamps"`
	Channels   []string  `json:"channels"`
	Samples    Samples   `json:"samples"`
}

// Len returns the number of samples.
func (r *Recording) Len() int {
	return len(r.Timestamps)
}

// ChannelIndex returns the row of the named channel or -1.
func (r *Recording) ChannelIndex(name string) int {
	for i, ch := range r.Channels {
		if ch == name {
			return i
		}
	}
	return -1
}

// Validate checks the shape invariants of the recording.
func (r *Recording) Validate() error {
	if len(r.Channels) != r.Samples.Channels() {
		return fmt.Errorf("%d channel labels for %d sample rows", len(r.Channels), r.Samples.Channels())
	}
	if err := r.Samples.Validate(); err != nil {
		return err
	}
	if r.Samples.Channels() > 0 && r.Samples.Len() != len(r.Timestamps) {
		return fmt.Errorf("%d timestamps for %d samples", len(r.Timestamps), r.Samples.Len())
	}
	return nil
}

// DropChannels returns a recording without the named channels. Unknown
// names are ignored. Sample rows are shared with the receiver.
func (r *Recording) DropChannels(names ...string) *Recording {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}

	out := &Recording{Timestamps: r.Timestamps}
	for i, ch := range r.Channels {
		if _, ok := drop[ch]; ok {
			continue
		}
		out.Channels = append(out.Channels, ch)
		out.Samples = append(out.Samples, r.Samples[i])
	}
	return out
}

// RecordingMetadata is written once when a session starts and rewritten
// with the final fields when it ends.
type RecordingMetadata struct {
	Device           string    `json:"device" yaml:"device"`
	DeviceKind       string    `json:"device_kind" yaml:"device_kind"`
	SessionID        string    `json:"session_id" yaml:"session_id"`
	RecordingStarted string    `json:"recording_started" yaml:"recording_started"`
	StartTime        time.Time `json:"start_time" yaml:"start_time"`
	Notes            string    `json:"notes" yaml:"notes"`

	// Final fields, zero until the session completes.
	DurationSeconds float64  `json:"duration_s,omitempty" yaml:"duration_s,omitempty"`
	NumSamples      int      `json:"num_samples,omitempty" yaml:"num_samples,omitempty"`
	SampleRate      float64  `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	Channels        []string `json:"channels,omitempty" yaml:"channels,omitempty"`
	DroppedBatches  int64    `json:"dropped_batches,omitempty" yaml:"dropped_batches,omitempty"`
	Cancelled       bool     `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
}

// Final reports whether the end-of-session fields have been written.
func (m *RecordingMetadata) Final() bool {
	return m.DurationSeconds > 0 || m.NumSamples > 0
}
