// Package filter implements the stateful IIR filters applied to EEG windows:
// a Butterworth-response bandpass built from cascaded biquads plus a
// power-line notch.
package filter

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
	"github.com/RyanBlaney/eeg-capture/pkg/window"
)

// Filter processes a signal sample by sample, keeping state between calls.
type Filter interface {
	Process(x []float64) []float64
	Reset()
}

// Biquad is a second-order IIR section in transposed direct form II.
type Biquad struct {
	b0, b1, b2, a1, a2 float64
	z1, z2             float64
}

const butterworthQ = math.Sqrt2 / 2

func newBiquad(b0, b1, b2, a0, a1, a2 float64) *Biquad {
	return &Biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

// NewLowPass returns a lowpass section with cutoff in Hz.
func NewLowPass(cutoff, sampleRate, q float64) (*Biquad, error) {
	if err := checkFrequency("lowpass cutoff", cutoff, sampleRate); err != nil {
		return nil, err
	}
	cos, alpha := coefficients(cutoff, sampleRate, q)
	return newBiquad((1-cos)/2, 1-cos, (1-cos)/2, 1+alpha, -2*cos, 1-alpha), nil
}

// NewHighPass returns a highpass section with cutoff in Hz.
func NewHighPass(cutoff, sampleRate, q float64) (*Biquad, error) {
	if err := checkFrequency("highpass cutoff", cutoff, sampleRate); err != nil {
		return nil, err
	}
	cos, alpha := coefficients(cutoff, sampleRate, q)
	return newBiquad((1+cos)/2, -(1 + cos), (1+cos)/2, 1+alpha, -2*cos, 1-alpha), nil
}

// NewNotch returns a band-stop section centred on freq.
func NewNotch(freq, sampleRate, q float64) (*Biquad, error) {
	if err := checkFrequency("notch frequency", freq, sampleRate); err != nil {
		return nil, err
	}
	cos, alpha := coefficients(freq, sampleRate, q)
	return newBiquad(1, -2*cos, 1, 1+alpha, -2*cos, 1-alpha), nil
}

// Process filters x into a new slice.
func (f *Biquad) Process(x []float64) []float64 {
	y := make([]float64, len(x))
	for i, in := range x {
		out := f.b0*in + f.z1
		f.z1 = f.b1*in - f.a1*out + f.z2
		f.z2 = f.b2*in - f.a2*out
		y[i] = out
	}
	return y
}

// Reset clears the filter state.
func (f *Biquad) Reset() {
	f.z1, f.z2 = 0, 0
}

// Chain runs filters in sequence.
type Chain []Filter

// Process runs x through every filter in order.
func (c Chain) Process(x []float64) []float64 {
	y := x
	for _, f := range c {
		y = f.Process(y)
	}
	if len(c) == 0 {
		y = append([]float64(nil), x...)
	}
	return y
}

// Reset clears all filter state.
func (c Chain) Reset() {
	for _, f := range c {
		f.Reset()
	}
}

// Spec describes the EEG cleaning filter: bandpass LowCut-HighCut and an
// optional notch at the power-line frequency.
type Spec struct {
	SampleRate float64 `json:"sample_rate"`
	LowCut     float64 `json:"low_cut"`
	HighCut    float64 `json:"high_cut"`
	Notch      float64 `json:"notch"` // 0 disables the notch
	NotchQ     float64 `json:"notch_q"`
}

// DefaultSpec returns 0.1-30 Hz bandpass with a 60 Hz notch at 256 Hz.
func DefaultSpec() Spec {
	return Spec{SampleRate: 256, LowCut: 0.1, HighCut: 30, Notch: 60, NotchQ: 30}
}

// Validate checks the spec can be realised.
func (s Spec) Validate() error {
	_, err := s.New()
	return err
}

// New builds a fresh filter chain with zero state.
func (s Spec) New() (Filter, error) {
	if s.LowCut >= s.HighCut {
		return nil, invalid(fmt.Sprintf("low cut %.3g Hz must be below high cut %.3g Hz", s.LowCut, s.HighCut))
	}

	var chain Chain
	if s.Notch > 0 {
		q := s.NotchQ
		if q <= 0 {
			q = 30
		}
		notch, err := NewNotch(s.Notch, s.SampleRate, q)
		if err != nil {
			return nil, err
		}
		chain = append(chain, notch)
	}

	hp, err := NewHighPass(s.LowCut, s.SampleRate, butterworthQ)
	if err != nil {
		return nil, err
	}
	lp, err := NewLowPass(s.HighCut, s.SampleRate, butterworthQ)
	if err != nil {
		return nil, err
	}
	return append(chain, hp, lp), nil
}

// Apply filters every channel with its own fresh filter.
func (s Spec) Apply(samples common.Samples) (common.Samples, error) {
	out := make(common.Samples, samples.Channels())
	for c, row := range samples {
		f, err := s.New()
		if err != nil {
			return nil, err
		}
		out[c] = f.Process(row)
	}
	return out, nil
}

// ApplyTiled tiles a short window repeat times, filters it so the filter
// transient settles on the leading copies, and returns the centre copy.
func (s Spec) ApplyTiled(samples common.Samples, repeat int) (common.Samples, error) {
	filtered, err := s.Apply(window.Tile(samples, repeat))
	if err != nil {
		return nil, err
	}
	return window.Untile(filtered, samples.Len(), repeat), nil
}

func coefficients(freq, sampleRate, q float64) (cos, alpha float64) {
	w0 := 2 * math.Pi * freq / sampleRate
	return math.Cos(w0), math.Sin(w0) / (2 * q)
}

func checkFrequency(name string, freq, sampleRate float64) error {
	if sampleRate <= 0 {
		return invalid(fmt.Sprintf("sample rate must be positive, got %g", sampleRate))
	}
	if freq <= 0 || freq >= sampleRate/2 {
		return invalid(fmt.Sprintf("%s %g Hz outside (0, %g) Hz", name, freq, sampleRate/2))
	}
	return nil
}

func invalid(msg string) error {
	return common.NewError("filter", common.ErrCodeInvalidArgument, msg, nil)
}
