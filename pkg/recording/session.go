// Package recording runs bounded, cancellable capture sessions: a device
// pushes batches into a SampleBuffer while a supervising loop enforces the
// duration, then the stream is quiesced and the capture persisted.
package recording

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
	"github.com/RyanBlaney/eeg-capture/pkg/device"
	"github.com/RyanBlaney/eeg-capture/pkg/logging"
)

// DefaultTick is the supervising loop cadence.
const DefaultTick = time.Second

// maxPreallocSeconds bounds the buffer capacity reserved up front; longer
// sessions grow the buffer as samples arrive.
const maxPreallocSeconds = 300

// Store persists a recording folder's contents.
type Store interface {
	WriteMetadata(folder string, md *common.RecordingMetadata) error
	WriteRecording(folder string, rec *common.Recording) error
}

// Progress is reported once per tick.
type Progress struct {
	Tick     int           `json:"tick"`
	Elapsed  time.Duration `json:"elapsed"`
	Duration time.Duration `json:"duration"`
	Samples  int           `json:"samples"`
	Rate     float64       `json:"samples_per_second"`
}

// ProgressFunc receives per-tick progress on the supervising goroutine.
type ProgressFunc func(Progress)

// Result describes a finished session.
type Result struct {
	Folder    string                   `json:"folder"`
	Metadata  common.RecordingMetadata `json:"metadata"`
	Recording *common.Recording        `json:"-"`
	Cancelled bool                     `json:"cancelled"`
}

// Session records from one streamer into folders under a destination.
type Session struct {
	streamer device.Streamer
	store    Store
	token    *CancelToken
	tick     time.Duration
	logger   logging.Logger
	progress ProgressFunc
	now      func() time.Time

	dropChannels []string
	dropSet      bool
}

// Option configures a Session.
type Option func(*Session)

// WithCancelToken shares an externally owned cancellation token.
func WithCancelToken(token *CancelToken) Option {
	return func(s *Session) {
		s.token = token
	}
}

// WithTick overrides the supervising loop cadence.
func WithTick(tick time.Duration) Option {
	return func(s *Session) {
		s.tick = tick
	}
}

// WithLogger sets the session logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithProgress registers a per-tick progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Session) {
		s.progress = fn
	}
}

// WithDropChannels sets the channels removed before persisting. Without it
// the device's non-data channels are dropped.
func WithDropChannels(names ...string) Option {
	return func(s *Session) {
		s.dropChannels = names
		s.dropSet = true
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// NewSession creates a session for streamer persisting through store.
func NewSession(streamer device.Streamer, store Store, opts ...Option) *Session {
	s := &Session{
		streamer: streamer,
		store:    store,
		tick:     DefaultTick,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.token == nil {
		s.token = NewCancelToken()
	}
	if s.logger == nil {
		s.logger = logging.WithFields(logging.Fields{"component": "recording_session"})
	}
	return s
}

// Cancel ends a running session at its next tick. Safe to call from any
// goroutine, any number of times, before or after the session ends.
func (s *Session) Cancel() {
	s.token.Cancel()
}

// Token returns the session's cancellation token.
func (s *Session) Token() *CancelToken {
	return s.token
}

// Start records for duration into a new folder under destination and
// returns once the capture is persisted. Cancelling ctx behaves like
// Cancel.
//
// Setup failures return before any folder exists: the target folder must
// be absent, and the device must connect and start streaming. If stopping
// the device fails the captured data is still persisted and the stop error
// is returned with the result.
func (s *Session) Start(ctx context.Context, destination string, duration time.Duration, notes string) (*Result, error) {
	if duration <= 0 {
		return nil, common.NewError("recording", common.ErrCodeInvalidArgument,
			fmt.Sprintf("duration must be positive, got %s", duration), nil)
	}
	if s.tick <= 0 {
		return nil, common.NewError("recording", common.ErrCodeInvalidArgument,
			fmt.Sprintf("tick must be positive, got %s", s.tick), nil)
	}
	if !s.streamer.Capabilities().Has(device.CapRecord) {
		return nil, common.NewError("recording", common.ErrCodeUnsupported, "device cannot record", nil)
	}

	info := s.streamer.Info()
	startTime := s.now()
	folder := filepath.Join(destination, info.FolderLabel(startTime))

	logger := s.logger.WithFields(logging.Fields{
		"device": info.Name,
		"folder": folder,
	})

	if err := checkAbsent(folder); err != nil {
		return nil, err
	}

	// Batches keep arriving until Stop returns; they belong to the capture
	// even after a cancel. The buffer freezes once the stream is quiet.
	buffer := NewSampleBuffer(len(info.Channels), int(info.SampleRate*min(duration.Seconds(), maxPreallocSeconds)))
	callback := func(samples common.Samples, timestamps []float64) {
		_ = buffer.Append(samples, timestamps)
	}

	if err := s.streamer.Connect(ctx); err != nil {
		if errors.Is(err, common.ErrDeviceUnreachable) {
			return nil, err
		}
		return nil, common.NewError("recording", common.ErrCodeDeviceUnreachable, "failed to connect to device", err)
	}

	var quiesceOnce sync.Once
	var quiesceErr error
	quiesce := func() error {
		quiesceOnce.Do(func() {
			quiesceErr = multierr.Append(s.streamer.Stop(), s.streamer.Disconnect())
		})
		return quiesceErr
	}

	if err := s.streamer.Start(callback); err != nil {
		return nil, multierr.Append(
			common.NewError("recording", common.ErrCodeDeviceUnreachable, "failed to start stream", err),
			quiesce())
	}

	if err := os.MkdirAll(destination, 0o755); err != nil {
		return nil, multierr.Append(storageError("failed to create destination", err), quiesce())
	}
	if err := os.Mkdir(folder, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, multierr.Append(alreadyExists(folder), quiesce())
		}
		return nil, multierr.Append(storageError("failed to create recording folder", err), quiesce())
	}

	md := common.RecordingMetadata{
		Device:           info.Name,
		DeviceKind:       string(info.Kind),
		SessionID:        uuid.NewString(),
		RecordingStarted: device.TimeString(startTime),
		StartTime:        startTime,
		Notes:            notes,
	}
	if err := s.store.WriteMetadata(folder, &md); err != nil {
		return nil, multierr.Append(err, quiesce())
	}

	logger.Info("recording started", logging.Fields{
		"session_id": md.SessionID,
		"duration":   duration.String(),
	})

	elapsed := s.supervise(ctx, startTime, duration, buffer, logger)

	// The stream must be quiet before the buffer is read.
	stopErr := quiesce()
	if stopErr != nil {
		logger.Error(stopErr, "failed to stop device cleanly")
	}
	buffer.Freeze()
	timestamps, samples := buffer.Snapshot()

	rec := (&common.Recording{
		Timestamps: timestamps,
		Channels:   append([]string(nil), info.Channels...),
		Samples:    samples,
	}).DropChannels(s.dropped(info)...)

	cancelled := s.token.Cancelled()
	md.DurationSeconds = elapsed.Seconds()
	md.NumSamples = rec.Len()
	md.SampleRate = info.SampleRate
	md.Channels = rec.Channels
	md.DroppedBatches = buffer.Dropped()
	md.Cancelled = cancelled

	result := &Result{
		Folder:    folder,
		Metadata:  md,
		Recording: rec,
		Cancelled: cancelled,
	}

	// Write failures still return the capture with the error.
	if err := s.store.WriteRecording(folder, rec); err != nil {
		logger.Error(err, "failed to persist recording", logging.Fields{"samples": md.NumSamples})
		return result, multierr.Append(err, stopErr)
	}
	if err := s.store.WriteMetadata(folder, &md); err != nil {
		logger.Error(err, "failed to write final metadata")
		return result, multierr.Append(err, stopErr)
	}

	logger.Info("recording finished", logging.Fields{
		"elapsed":         elapsed.String(),
		"samples":         md.NumSamples,
		"cancelled":       cancelled,
		"dropped_batches": md.DroppedBatches,
	})

	return result, stopErr
}

// supervise blocks until the duration elapses or the session is cancelled
// and returns the elapsed wall-clock time.
func (s *Session) supervise(ctx context.Context, start time.Time, duration time.Duration, buffer *SampleBuffer, logger logging.Logger) time.Duration {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	tick := 0
	lastCount := 0
	lastTime := start

	for {
		select {
		case <-ctx.Done():
			logger.Warn("context done, cancelling recording", logging.Fields{"reason": ctx.Err().Error()})
			s.token.Cancel()
			return s.now().Sub(start)
		case <-s.token.Done():
			logger.Info("recording cancelled", logging.Fields{"tick": tick})
			return s.now().Sub(start)
		case <-ticker.C:
			tick++
			now := s.now()
			elapsed := now.Sub(start)
			count := buffer.Len()

			rate := 0.0
			if dt := now.Sub(lastTime).Seconds(); dt > 0 {
				rate = float64(count-lastCount) / dt
			}
			lastCount, lastTime = count, now

			p := Progress{Tick: tick, Elapsed: elapsed, Duration: duration, Samples: count, Rate: rate}
			logger.Debug("recording progress", logging.Fields{
				"tick":               p.Tick,
				"elapsed":            p.Elapsed.String(),
				"samples":            p.Samples,
				"samples_per_second": p.Rate,
			})
			if s.progress != nil {
				s.progress(p)
			}

			if elapsed >= duration {
				return elapsed
			}
		}
	}
}

func (s *Session) dropped(info device.Info) []string {
	if s.dropSet {
		return s.dropChannels
	}
	return info.NonDataChannels
}

func checkAbsent(folder string) error {
	_, err := os.Lstat(folder)
	switch {
	case err == nil:
		return alreadyExists(folder)
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return storageError("failed to inspect recording folder", err)
	}
}

func alreadyExists(folder string) error {
	return common.NewError("recording", common.ErrCodeAlreadyExists,
		fmt.Sprintf("recording folder %s already exists", folder), nil)
}

func storageError(msg string, cause error) error {
	return common.NewError("recording", common.ErrCodeStorage, msg, cause)
}
