package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/RyanBlaney/eeg-capture/pkg/device"
	"github.com/RyanBlaney/eeg-capture/pkg/logging"
	"github.com/RyanBlaney/eeg-capture/pkg/recording"
	"github.com/RyanBlaney/eeg-capture/pkg/storage"
)

// RecordOptions are the per-invocation record settings. Zero values fall
// back to configuration.
type RecordOptions struct {
	DeviceFile string
	OutputDir  string
	Duration   time.Duration
	Notes      string
	ExportEDF  bool
}

// RecordSummary is the printable outcome of a recording.
type RecordSummary struct {
	Folder    string          `json:"folder" yaml:"folder"`
	Device    string          `json:"device" yaml:"device"`
	Samples   int             `json:"num_samples" yaml:"num_samples"`
	Duration  float64         `json:"duration_s" yaml:"duration_s"`
	Channels  []string        `json:"channels" yaml:"channels"`
	Cancelled bool            `json:"cancelled" yaml:"cancelled"`
	EDF       string          `json:"edf,omitempty" yaml:"edf,omitempty"`
	Progress  []recordingTick `json:"progress,omitempty" yaml:"progress,omitempty"`
}

type recordingTick struct {
	Tick    int     `json:"tick" yaml:"tick"`
	Elapsed float64 `json:"elapsed_s" yaml:"elapsed_s"`
	Samples int     `json:"samples" yaml:"samples"`
	Rate    float64 `json:"samples_per_second" yaml:"samples_per_second"`
}

// ResolveDevice builds the streamer named by a descriptor file, or the
// configured synthetic device when path is empty.
func (app *App) ResolveDevice(path string) (device.Streamer, error) {
	opts := []device.Option{device.WithLogger(app.logger.WithFields(logging.Fields{"component": "device"}))}

	if path == "" {
		path = app.config.Device.File
	}
	if path == "" {
		return device.NewSyntheticDevice("Synthetic EEG", app.config.Synthetic, opts...), nil
	}

	d, err := device.LoadDescriptor(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load device %s: %w", path, err)
	}
	if app.config.Device.Kind != "" && string(d.Kind) != app.config.Device.Kind {
		return nil, fmt.Errorf("device %s is %s, configuration expects %s", path, d.Kind, app.config.Device.Kind)
	}
	return app.devices.Create(d)
}

// Record runs one capture session. The token lets signal handlers cancel
// the session; pass nil when cancellation only comes from ctx.
func (app *App) Record(ctx context.Context, opts RecordOptions, token *recording.CancelToken) (*RecordSummary, error) {
	streamer, err := app.ResolveDevice(opts.DeviceFile)
	if err != nil {
		return nil, err
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = app.config.Recording.OutputDir
	}
	duration := opts.Duration
	if duration <= 0 {
		duration = app.config.Recording.Duration
	}

	summary := &RecordSummary{Device: streamer.Info().Name}
	sessionOpts := []recording.Option{
		recording.WithTick(app.config.Recording.Tick),
		recording.WithLogger(app.logger.WithFields(logging.Fields{"component": "recording_session"})),
		recording.WithProgress(func(p recording.Progress) {
			summary.Progress = append(summary.Progress, recordingTick{
				Tick:    p.Tick,
				Elapsed: p.Elapsed.Seconds(),
				Samples: p.Samples,
				Rate:    p.Rate,
			})
			if !app.ctx.Quiet {
				app.logger.Info("Recording", logging.Fields{
					"elapsed":            fmt.Sprintf("%.0f/%.0fs", p.Elapsed.Seconds(), p.Duration.Seconds()),
					"samples":            p.Samples,
					"samples_per_second": fmt.Sprintf("%.1f", p.Rate),
				})
			}
		}),
	}
	if token != nil {
		sessionOpts = append(sessionOpts, recording.WithCancelToken(token))
	}
	if app.config.Recording.DropChannels != nil {
		sessionOpts = append(sessionOpts, recording.WithDropChannels(app.config.Recording.DropChannels...))
	}

	session := recording.NewSession(streamer, app.store, sessionOpts...)
	result, err := session.Start(ctx, outputDir, duration, opts.Notes)
	if result == nil {
		return nil, err
	}
	if err != nil {
		app.logger.Error(err, "Recording finished with errors", logging.Fields{"folder": result.Folder})
	}

	summary.Folder = result.Folder
	summary.Samples = result.Metadata.NumSamples
	summary.Duration = result.Metadata.DurationSeconds
	summary.Channels = result.Metadata.Channels
	summary.Cancelled = result.Cancelled

	if opts.ExportEDF || app.config.Recording.ExportEDF {
		path := filepath.Join(result.Folder, storage.EDFFile)
		if exportErr := storage.ExportEDF(path, result.Recording, &result.Metadata); exportErr != nil {
			app.logger.Error(exportErr, "EDF export failed", logging.Fields{"folder": result.Folder})
		} else {
			summary.EDF = path
		}
	}

	if outErr := app.outputResults(summary); outErr != nil {
		return summary, fmt.Errorf("failed to output results: %w", outErr)
	}
	return summary, err
}
