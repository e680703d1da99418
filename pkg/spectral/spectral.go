// Package spectral extracts single-sided FFT amplitudes from time-domain
// windows and provides a spectral-peak heuristic for SSVEP-style frequency
// classification.
package spectral

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
	"github.com/RyanBlaney/eeg-capture/pkg/logging"
)

// DefaultSampleRate is the Muse headset EEG rate in Hz.
const DefaultSampleRate = 256

// Analyzer provides FFT and spectral-peak analysis for a fixed sample rate.
// It holds no mutable state and is safe for concurrent use.
type Analyzer struct {
	sampleRate float64
	logger     logging.Logger
}

// Band is a named frequency range [Low, High) in Hz.
type Band struct {
	Name string  `json:"name"`
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// BandPower is the summed squared amplitude inside a band.
type BandPower struct {
	Band
	Power float64 `json:"power"`
}

// Features holds basic frequency domain characteristics of one window.
type Features struct {
	PeakFrequency    float64     `json:"peak_frequency"`
	PeakAmplitude    float64     `json:"peak_amplitude"`
	SpectralCentroid float64     `json:"spectral_centroid"`
	TotalPower       float64     `json:"total_power"`
	Bands            []BandPower `json:"bands"`
}

// EEGBands are the conventional clinical EEG rhythms.
var EEGBands = []Band{
	{Name: "delta", Low: 0.5, High: 4},
	{Name: "theta", Low: 4, High: 8},
	{Name: "alpha", Low: 8, High: 13},
	{Name: "beta", Low: 13, High: 30},
	{Name: "gamma", Low: 30, High: 45},
}

// NewAnalyzer creates a new spectral analyzer
func NewAnalyzer(sampleRate float64) *Analyzer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Analyzer{
		sampleRate: sampleRate,
		logger: logging.WithFields(logging.Fields{
			"component":   "spectral_analyzer",
			"sample_rate": sampleRate,
		}),
	}
}

// SampleRate returns the analyzer sample rate in Hz.
func (a *Analyzer) SampleRate() float64 {
	return a.sampleRate
}

// FFT normalizes the window by its length, transforms it, and returns the
// magnitudes of the first len/2 bins together with their frequencies,
// binIndex / (len / sampleRate).
func (a *Analyzer) FFT(window []float64) (amplitudes, frequencies []float64) {
	n := len(window)
	if n == 0 {
		return []float64{}, []float64{}
	}

	normalized := make([]float64, n)
	copy(normalized, window)
	floats.Scale(1/float64(n), normalized)

	spectrum := fft.FFTReal(normalized)

	half := n / 2
	seconds := float64(n) / a.sampleRate
	amplitudes = make([]float64, half)
	frequencies = make([]float64, half)
	for i := 0; i < half; i++ {
		amplitudes[i] = cmplx.Abs(spectrum[i])
		frequencies[i] = float64(i) / seconds
	}

	return amplitudes, frequencies
}

// NearestFrequencyIndex returns the index of the bin closest to target,
// taking the lowest index on ties. It returns -1 only for empty bins.
func NearestFrequencyIndex(target float64, bins []float64) int {
	if len(bins) == 0 {
		return -1
	}

	diffs := make([]float64, len(bins))
	for i, f := range bins {
		diffs[i] = math.Abs(f - target)
	}
	return floats.MinIdx(diffs)
}

// ClassifyBySpectralPeak maps each candidate frequency to its nearest FFT
// bin and returns the candidate whose bin has the largest amplitude. Ties go
// to the earliest candidate. No confidence is produced.
func (a *Analyzer) ClassifyBySpectralPeak(window []float64, candidates []float64) (float64, error) {
	if len(candidates) == 0 {
		return 0, common.NewError("spectral_analyzer", common.ErrCodeInvalidArgument, "no candidate frequencies", nil)
	}

	amplitudes, frequencies := a.FFT(window)
	if len(amplitudes) == 0 {
		return 0, common.NewError("spectral_analyzer", common.ErrCodeInvalidArgument,
			fmt.Sprintf("window of %d samples has no frequency bins", len(window)), nil)
	}

	peaks := make([]float64, len(candidates))
	for i, f := range candidates {
		peaks[i] = amplitudes[NearestFrequencyIndex(f, frequencies)]
	}

	return candidates[floats.MaxIdx(peaks)], nil
}

// ExtractFeatures computes peak, centroid and EEG band powers of a window.
func (a *Analyzer) ExtractFeatures(window []float64) *Features {
	features := &Features{}

	amplitudes, frequencies := a.FFT(window)
	if len(amplitudes) == 0 {
		return features
	}

	logger := a.logger.WithFields(logging.Fields{
		"function":      "ExtractFeatures",
		"signal_length": len(window),
	})

	// Skip the DC bin for the peak; EEG offsets dominate it.
	if len(amplitudes) > 1 {
		peak := floats.MaxIdx(amplitudes[1:]) + 1
		features.PeakFrequency = frequencies[peak]
		features.PeakAmplitude = amplitudes[peak]
	}

	power := make([]float64, len(amplitudes))
	floats.MulTo(power, amplitudes, amplitudes)
	features.TotalPower = floats.Sum(power)

	if sum := floats.Sum(amplitudes); sum > 0 {
		features.SpectralCentroid = floats.Dot(amplitudes, frequencies) / sum
	}

	features.Bands = make([]BandPower, len(EEGBands))
	for i, band := range EEGBands {
		features.Bands[i] = BandPower{Band: band}
		for j, f := range frequencies {
			if f >= band.Low && f < band.High {
				features.Bands[i].Power += power[j]
			}
		}
	}

	logger.Debug("Spectral features extracted", logging.Fields{
		"peak_frequency": features.PeakFrequency,
		"total_power":    features.TotalPower,
	})

	return features
}
