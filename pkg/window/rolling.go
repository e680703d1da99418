package window

import "github.com/RyanBlaney/eeg-capture/pkg/common"

// Rolling keeps the most recent Length samples of a live feed. It is not
// safe for concurrent use.
type Rolling struct {
	samples common.Samples
	filled  int
}

// NewRolling creates an empty rolling window.
func NewRolling(channels, length int) *Rolling {
	return &Rolling{samples: common.NewSamples(channels, length)}
}

// Push slides a batch of new samples into the window.
func (r *Rolling) Push(batch common.Samples) {
	if batch.Len() == 0 {
		return
	}
	r.samples = Slide(r.samples, batch)
	r.filled = min(r.samples.Len(), r.filled+batch.Len())
}

// Ready reports whether the window has been completely filled at least once.
func (r *Rolling) Ready() bool {
	return r.filled >= r.samples.Len()
}

// Samples returns a copy of the current window contents.
func (r *Rolling) Samples() common.Samples {
	return r.samples.Clone()
}

// Reset empties the window.
func (r *Rolling) Reset() {
	r.samples = common.NewSamples(r.samples.Channels(), r.samples.Len())
	r.filled = 0
}
