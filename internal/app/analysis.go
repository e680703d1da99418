package app

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
	"github.com/RyanBlaney/eeg-capture/pkg/epoch"
	"github.com/RyanBlaney/eeg-capture/pkg/logging"
	"github.com/RyanBlaney/eeg-capture/pkg/spectral"
	"github.com/RyanBlaney/eeg-capture/pkg/storage"
	"github.com/RyanBlaney/eeg-capture/pkg/window"
)

// Loaded is a persisted recording read back for offline processing.
type Loaded struct {
	Folder    string
	Metadata  *common.RecordingMetadata
	Recording *common.Recording
	Markers   []common.Marker
}

// SampleRate returns the recorded rate, falling back to the configured
// spectral rate for recordings that never finished.
func (l *Loaded) SampleRate(fallback float64) float64 {
	if l.Metadata != nil && l.Metadata.SampleRate > 0 {
		return l.Metadata.SampleRate
	}
	return fallback
}

// Load reads a recording folder. When markersFile is set its markers are
// imported and stored with the recording; otherwise stored markers are used.
func (app *App) Load(folder, markersFile string) (*Loaded, error) {
	md, err := app.store.ReadMetadata(folder)
	if err != nil {
		return nil, err
	}
	rec, err := app.store.ReadRecording(folder)
	if err != nil {
		return nil, err
	}

	var markers []common.Marker
	if markersFile != "" {
		markers, err = storage.ReadMarkersCSV(markersFile)
		if err != nil {
			return nil, err
		}
		if err := app.store.WriteMarkers(folder, markers); err != nil {
			return nil, err
		}
	} else {
		markers, err = app.store.ReadMarkers(folder)
		if err != nil {
			return nil, err
		}
	}

	app.logger.Debug("Recording loaded", logging.Fields{
		"folder":   folder,
		"samples":  rec.Len(),
		"channels": len(rec.Channels),
		"markers":  len(markers),
	})

	return &Loaded{Folder: folder, Metadata: md, Recording: rec, Markers: markers}, nil
}

// EpochOptions select markers and windowing for epoch extraction.
type EpochOptions struct {
	MarkersFile  string
	WindowLength int
	Filter       bool

	// Range restricts markers to From <= timestamp < To.
	Range    bool
	From, To float64

	IncludeData bool
}

// EpochSummary is the printable outcome of epoch extraction.
type EpochSummary struct {
	Folder       string           `json:"folder" yaml:"folder"`
	Shape        [3]int           `json:"shape" yaml:"shape"`
	Channels     []string         `json:"channels" yaml:"channels"`
	Labels       []string         `json:"labels" yaml:"labels"`
	Timestamps   []float64        `json:"timestamps" yaml:"timestamps"`
	StartIndices []int            `json:"start_indices" yaml:"start_indices"`
	Failed       []int            `json:"failed,omitempty" yaml:"failed,omitempty"`
	Filtered     bool             `json:"filtered" yaml:"filtered"`
	Epochs       []common.Samples `json:"epochs,omitempty" yaml:"epochs,omitempty"`
}

// BuildEpochs extracts one window per marker from a loaded recording,
// filtering each successful epoch when requested.
func (app *App) BuildEpochs(loaded *Loaded, opts EpochOptions) (*epoch.Set, bool, error) {
	length := opts.WindowLength
	if length <= 0 {
		length = app.config.Windowing.WindowLength
	}

	markers := loaded.Markers
	if opts.Range {
		timestamps, labels := epoch.MarkersBetween(opts.From, opts.To, markers)
		markers = make([]common.Marker, len(timestamps))
		for i := range timestamps {
			markers[i] = common.Marker{Label: labels[i], Timestamp: timestamps[i]}
		}
	}

	rec := loaded.Recording
	set := epoch.NewBuilder(app.logger).Build(markers, rec.Timestamps, rec.Samples, length)

	filtered := opts.Filter || app.config.Filter.Enabled
	if !filtered {
		return set, false, nil
	}

	spec := app.config.Filter.Spec(loaded.SampleRate(app.config.Spectral.SampleRate))
	for i := range set.Epochs {
		if !set.Succeeded(i) {
			continue
		}
		out, err := spec.ApplyTiled(set.Epochs[i], app.config.Windowing.TileCount)
		if err != nil {
			return nil, false, fmt.Errorf("failed to filter epoch %d: %w", i, err)
		}
		set.Epochs[i] = out
	}
	return set, true, nil
}

// Epoch extracts and prints epochs for a recording folder.
func (app *App) Epoch(folder string, opts EpochOptions) (*EpochSummary, error) {
	loaded, err := app.Load(folder, opts.MarkersFile)
	if err != nil {
		return nil, err
	}

	set, filtered, err := app.BuildEpochs(loaded, opts)
	if err != nil {
		return nil, err
	}

	summary := &EpochSummary{
		Folder:       folder,
		Shape:        set.Shape(),
		Channels:     loaded.Recording.Channels,
		Labels:       set.Labels,
		Timestamps:   set.Timestamps,
		StartIndices: set.StartIndices,
		Failed:       set.Failed,
		Filtered:     filtered,
	}
	if opts.IncludeData {
		summary.Epochs = set.Epochs
	}

	if err := app.outputResults(summary); err != nil {
		return nil, fmt.Errorf("failed to output results: %w", err)
	}
	return summary, nil
}

// ClassifyOptions configure spectral-peak classification of epochs.
type ClassifyOptions struct {
	EpochOptions
	Channel    string
	Candidates []float64
}

// ClassifySummary is the printable outcome of classification. Accuracy
// counts epochs whose label parses as a frequency.
type ClassifySummary struct {
	Folder      string                `json:"folder" yaml:"folder"`
	Channel     string                `json:"channel" yaml:"channel"`
	Candidates  []float64             `json:"candidates" yaml:"candidates"`
	Predictions []spectral.Prediction `json:"predictions" yaml:"predictions"`
	Evaluated   int                   `json:"evaluated" yaml:"evaluated"`
	Correct     int                   `json:"correct" yaml:"correct"`
	Accuracy    float64               `json:"accuracy" yaml:"accuracy"`
}

// Classify predicts a candidate frequency for each marker's epoch.
func (app *App) Classify(ctx context.Context, folder string, opts ClassifyOptions) (*ClassifySummary, error) {
	loaded, err := app.Load(folder, opts.MarkersFile)
	if err != nil {
		return nil, err
	}

	channel, name, err := resolveChannel(loaded.Recording, opts.Channel)
	if err != nil {
		return nil, err
	}

	candidates := opts.Candidates
	if len(candidates) == 0 {
		candidates = app.config.Spectral.CandidateFrequencies
	}

	set, _, err := app.BuildEpochs(loaded, opts.EpochOptions)
	if err != nil {
		return nil, err
	}

	analyzer := spectral.NewAnalyzer(loaded.SampleRate(app.config.Spectral.SampleRate))
	predictions, err := analyzer.ClassifyEpochs(ctx, set, channel, candidates, app.config.Spectral.Workers)
	if err != nil {
		return nil, err
	}

	summary := &ClassifySummary{
		Folder:      folder,
		Channel:     name,
		Candidates:  candidates,
		Predictions: predictions,
	}
	for _, p := range predictions {
		if p.Skipped {
			continue
		}
		expected, err := strconv.ParseFloat(p.Label, 64)
		if err != nil {
			continue
		}
		summary.Evaluated++
		if math.Abs(expected-p.Predicted) < 1e-6 {
			summary.Correct++
		}
	}
	if summary.Evaluated > 0 {
		summary.Accuracy = float64(summary.Correct) / float64(summary.Evaluated)
	}

	if err := app.outputResults(summary); err != nil {
		return nil, fmt.Errorf("failed to output results: %w", err)
	}
	return summary, nil
}

// SpectrumOptions locate the window to transform.
type SpectrumOptions struct {
	At           float64
	Relative     bool
	Channel      string
	WindowLength int
	Filter       bool
}

// SpectrumSummary is the printable spectrum of one window.
type SpectrumSummary struct {
	Folder      string             `json:"folder" yaml:"folder"`
	Channel     string             `json:"channel" yaml:"channel"`
	StartIndex  int                `json:"start_index" yaml:"start_index"`
	StartTime   float64            `json:"start_time" yaml:"start_time"`
	Frequencies []float64          `json:"frequencies" yaml:"frequencies"`
	Amplitudes  []float64          `json:"amplitudes" yaml:"amplitudes"`
	Features    *spectral.Features `json:"features" yaml:"features"`
}

// Spectrum transforms the window that follows a reference time.
func (app *App) Spectrum(folder string, opts SpectrumOptions) (*SpectrumSummary, error) {
	loaded, err := app.Load(folder, "")
	if err != nil {
		return nil, err
	}
	rec := loaded.Recording

	channel, name, err := resolveChannel(rec, opts.Channel)
	if err != nil {
		return nil, err
	}

	length := opts.WindowLength
	if length <= 0 {
		length = app.config.Windowing.WindowLength
	}

	ref := opts.At
	if opts.Relative && rec.Len() > 0 {
		ref += rec.Timestamps[0]
	}

	w, ok := window.WindowAfterTime(ref, rec.Timestamps, rec.Samples, length)
	if !ok {
		return nil, common.NewError("app", common.ErrCodeInvalidArgument,
			fmt.Sprintf("fewer than %d samples after t=%g", length, ref), nil)
	}

	sampleRate := loaded.SampleRate(app.config.Spectral.SampleRate)
	signal := w.Samples[channel]
	if opts.Filter || app.config.Filter.Enabled {
		out, err := app.config.Filter.Spec(sampleRate).ApplyTiled(common.Samples{signal}, app.config.Windowing.TileCount)
		if err != nil {
			return nil, err
		}
		signal = out[0]
	}

	analyzer := spectral.NewAnalyzer(sampleRate)
	amps, freqs := analyzer.FFT(signal)

	summary := &SpectrumSummary{
		Folder:      folder,
		Channel:     name,
		StartIndex:  w.StartIndex,
		StartTime:   w.StartTime,
		Frequencies: freqs,
		Amplitudes:  amps,
		Features:    analyzer.ExtractFeatures(signal),
	}

	if err := app.outputResults(summary); err != nil {
		return nil, fmt.Errorf("failed to output results: %w", err)
	}
	return summary, nil
}

// Export writes the recording in a folder as EDF and returns the file path.
func (app *App) Export(folder, out string) (string, error) {
	loaded, err := app.Load(folder, "")
	if err != nil {
		return "", err
	}
	if out == "" {
		out = filepath.Join(folder, storage.EDFFile)
	}

	md := *loaded.Metadata
	md.SampleRate = loaded.SampleRate(app.config.Spectral.SampleRate)
	if err := storage.ExportEDF(out, loaded.Recording, &md); err != nil {
		return "", err
	}

	app.logger.Info("EDF exported", logging.Fields{"folder": folder, "file": out})
	return out, nil
}

func resolveChannel(rec *common.Recording, name string) (int, string, error) {
	if len(rec.Channels) == 0 {
		return 0, "", common.NewError("app", common.ErrCodeInvalidArgument, "recording has no channels", nil)
	}
	if name == "" {
		return 0, rec.Channels[0], nil
	}
	idx := rec.ChannelIndex(name)
	if idx < 0 {
		return 0, "", common.NewError("app", common.ErrCodeInvalidArgument,
			fmt.Sprintf("unknown channel %q (have %v)", name, rec.Channels), nil)
	}
	return idx, name, nil
}
