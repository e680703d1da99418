// Package epoch builds labeled fixed-length epochs from a sample stream and a
// set of event markers.
package epoch

import (
	"github.com/RyanBlaney/eeg-capture/pkg/common"
	"github.com/RyanBlaney/eeg-capture/pkg/logging"
	"github.com/RyanBlaney/eeg-capture/pkg/window"
)

// Set holds one epoch per marker. Epochs[i] and Labels[i] always belong to
// markers[i] of the Build call.
type Set struct {
	Epochs       []common.Samples `json:"epochs"`
	Labels       []string         `json:"labels"`
	Timestamps   []float64        `json:"timestamps"`
	StartIndices []int            `json:"start_indices"`

	// Failed lists marker indices whose epoch could not be extracted; their
	// slots are zero-filled and their StartIndices entry is -1.
	Failed       []int `json:"failed,omitempty"`
	Channels     int   `json:"channels"`
	WindowLength int   `json:"window_length"`
}

// Len returns the number of epochs.
func (s *Set) Len() int {
	return len(s.Epochs)
}

// Shape returns [markers, channels, samples].
func (s *Set) Shape() [3]int {
	return [3]int{len(s.Epochs), s.Channels, s.WindowLength}
}

// Succeeded reports whether the epoch at index i holds extracted data.
func (s *Set) Succeeded(i int) bool {
	return i >= 0 && i < len(s.StartIndices) && s.StartIndices[i] >= 0
}

// Builder extracts epochs for markers.
type Builder struct {
	logger logging.Logger
}

// NewBuilder creates an epoch builder. A nil logger discards per-marker
// failure reports.
func NewBuilder(logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Builder{
		logger: logger.WithFields(logging.Fields{"component": "epoch_builder"}),
	}
}

// Build produces one window of length samples per marker, starting at the
// first sample timestamp strictly after the marker. Markers without enough
// trailing data keep a zero-filled slot and are logged; they never fail the
// batch. Epoch data is copied out of samples.
func (b *Builder) Build(markers []common.Marker, timestamps []float64, samples common.Samples, length int) *Set {
	channels := samples.Channels()
	set := &Set{
		Epochs:       make([]common.Samples, len(markers)),
		Labels:       make([]string, len(markers)),
		Timestamps:   make([]float64, len(markers)),
		StartIndices: make([]int, len(markers)),
		Channels:     channels,
		WindowLength: length,
	}

	for i, m := range markers {
		set.Labels[i] = m.Label
		set.Timestamps[i] = m.Timestamp

		w, ok := window.WindowAfterTime(m.Timestamp, timestamps, samples, length)
		if !ok {
			set.Epochs[i] = common.NewSamples(channels, max(length, 0))
			set.StartIndices[i] = -1
			set.Failed = append(set.Failed, i)
			b.logger.Warn("Not enough data after marker", logging.Fields{
				"marker_index": i,
				"label":        m.Label,
				"timestamp":    m.Timestamp,
				"window":       length,
			})
			continue
		}

		set.Epochs[i] = w.Samples.Clone()
		set.StartIndices[i] = w.StartIndex
	}

	b.logger.Debug("Epochs built", logging.Fields{
		"markers":  len(markers),
		"failed":   len(set.Failed),
		"channels": channels,
		"window":   length,
	})

	return set
}

// MarkersBetween returns the timestamps and labels of markers with
// start <= timestamp < end, in their original order. The result is empty,
// not nil, when nothing qualifies or end < start.
func MarkersBetween(start, end float64, markers []common.Marker) ([]float64, []string) {
	timestamps := []float64{}
	labels := []string{}
	if end < start {
		return timestamps, labels
	}

	for _, m := range markers {
		if start <= m.Timestamp && m.Timestamp < end {
			timestamps = append(timestamps, m.Timestamp)
			labels = append(labels, m.Label)
		}
	}
	return timestamps, labels
}
