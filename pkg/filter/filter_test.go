package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
	"github.com/RyanBlaney/eeg-capture/pkg/window"
)

func sine(freq, sampleRate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
	}
	return out
}

func rms(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func TestNotchRemovesPowerLine(t *testing.T) {
	notch, err := NewNotch(60, 256, 30)
	require.NoError(t, err)

	out := notch.Process(sine(60, 256, 2048))
	assert.Less(t, rms(out[1536:]), 0.05)

	notch.Reset()
	out = notch.Process(sine(10, 256, 2048))
	assert.InDelta(t, math.Sqrt2/2, rms(out[1536:]), 0.02)
}

func TestHighPassRemovesOffset(t *testing.T) {
	hp, err := NewHighPass(1, 256, butterworthQ)
	require.NoError(t, err)

	dc := make([]float64, 4096)
	for i := range dc {
		dc[i] = 5
	}
	out := hp.Process(dc)
	assert.InDelta(t, 0, out[len(out)-1], 1e-3)
}

func TestSpecPassesAlphaAndRejectsLineNoise(t *testing.T) {
	spec := DefaultSpec()
	f, err := spec.New()
	require.NoError(t, err)

	out := f.Process(sine(10, 256, 4096))
	assert.InDelta(t, math.Sqrt2/2, rms(out[3072:]), 0.05)

	f.Reset()
	out = f.Process(sine(60, 256, 4096))
	assert.Less(t, rms(out[3072:]), 0.05)
}

func TestSpecValidation(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
	}{
		{"inverted band", Spec{SampleRate: 256, LowCut: 30, HighCut: 1}},
		{"above nyquist", Spec{SampleRate: 256, LowCut: 1, HighCut: 200}},
		{"zero low cut", Spec{SampleRate: 256, LowCut: 0, HighCut: 30}},
		{"notch above nyquist", Spec{SampleRate: 100, LowCut: 1, HighCut: 30, Notch: 60}},
		{"no sample rate", Spec{LowCut: 1, HighCut: 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.spec.Validate(), common.ErrInvalidArgument)
		})
	}

	assert.NoError(t, DefaultSpec().Validate())
}

func TestApplyTiledMatchesManualTiling(t *testing.T) {
	spec := DefaultSpec()
	w := common.Samples{sine(10, 256, 128), sine(12, 256, 128)}

	got, err := spec.ApplyTiled(w, 5)
	require.NoError(t, err)
	require.Equal(t, 2, got.Channels())
	require.Equal(t, 128, got.Len())

	filtered, err := spec.Apply(window.Tile(w, 5))
	require.NoError(t, err)
	assert.Equal(t, window.Untile(filtered, 128, 5), got)
}

func TestEmptyChainCopies(t *testing.T) {
	x := []float64{1, 2, 3}
	y := Chain{}.Process(x)
	y[0] = 9
	assert.Equal(t, 1.0, x[0])
}
