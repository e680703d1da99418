package recording

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
	"github.com/RyanBlaney/eeg-capture/pkg/device"
	"github.com/RyanBlaney/eeg-capture/pkg/logging"
)

// fakeStreamer hands its callback to the test, which pushes batches by hand.
type fakeStreamer struct {
	info device.Info
	caps device.Capabilities

	connectErr    error
	startErr      error
	stopErr       error
	disconnectErr error

	mu          sync.Mutex
	cb          device.SampleCallback
	next        float64
	calls       []string
	stops       int
	disconnects int
}

func newFakeStreamer() *fakeStreamer {
	return &fakeStreamer{
		info: device.Info{
			Name:            "Fake Muse",
			Kind:            device.KindSynthetic,
			SampleRate:      256,
			Channels:        []string{"TP9", "AF7", "Right AUX"},
			NonDataChannels: []string{"Right AUX"},
		},
		caps: device.CapAll,
	}
}

func (f *fakeStreamer) Info() device.Info                 { return f.info }
func (f *fakeStreamer) Capabilities() device.Capabilities { return f.caps }

func (f *fakeStreamer) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeStreamer) Connect(ctx context.Context) error {
	f.record("connect")
	return f.connectErr
}

func (f *fakeStreamer) Start(cb device.SampleCallback) error {
	f.record("start")
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb = cb
	return nil
}

func (f *fakeStreamer) Stop() error {
	f.record("stop")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb = nil
	f.stops++
	return f.stopErr
}

func (f *fakeStreamer) Disconnect() error {
	f.record("disconnect")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return f.disconnectErr
}

// push delivers n samples per channel; it is a no-op once stopped.
func (f *fakeStreamer) push(n int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cb == nil {
		return false
	}
	samples := common.NewSamples(len(f.info.Channels), n)
	ts := make([]float64, n)
	for i := 0; i < n; i++ {
		ts[i] = f.next
		for c := range samples {
			samples[c][i] = float64(c*1000) + f.next
		}
		f.next++
	}
	f.cb(samples, ts)
	return true
}

type memStore struct {
	mu         sync.Mutex
	metadata   []common.RecordingMetadata
	recordings []*common.Recording
	writeErr   error
	finalErr   error
}

func (m *memStore) WriteMetadata(folder string, md *common.RecordingMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finalErr != nil && md.Final() {
		return m.finalErr
	}
	m.metadata = append(m.metadata, *md)
	return nil
}

func (m *memStore) WriteRecording(folder string, rec *common.Recording) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.recordings = append(m.recordings, rec)
	return nil
}

type SessionSuite struct {
	suite.Suite
	dir      string
	streamer *fakeStreamer
	store    *memStore
	clock    time.Time
}

func (s *SessionSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.streamer = newFakeStreamer()
	s.store = &memStore{}
	s.clock = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func (s *SessionSuite) newSession(opts ...Option) *Session {
	opts = append([]Option{
		WithTick(5 * time.Millisecond),
		WithLogger(logging.NewNop()),
	}, opts...)
	return NewSession(s.streamer, s.store, opts...)
}

func (s *SessionSuite) TestCancelAtTickThree() {
	tick := 10 * time.Millisecond
	token := NewCancelToken()

	session := s.newSession(
		WithTick(tick),
		WithCancelToken(token),
		WithProgress(func(p Progress) {
			s.streamer.push(4)
			if p.Tick == 3 {
				token.Cancel()
			}
		}),
	)

	began := time.Now()
	res, err := session.Start(context.Background(), s.dir, 60*tick, "cancel test")
	s.Require().NoError(err)
	wall := time.Since(began)

	s.True(res.Cancelled)
	s.True(res.Metadata.Cancelled)
	s.Less(wall, 30*tick, "session must end within a tick of cancellation")
	s.GreaterOrEqual(res.Metadata.DurationSeconds, (3 * tick).Seconds())
	s.Less(res.Metadata.DurationSeconds, (30 * tick).Seconds())

	s.Require().Len(s.store.recordings, 1)
	rec := s.store.recordings[0]
	s.Equal(12, rec.Len(), "exactly the three batches pushed before cancellation")
	s.Equal([]string{"TP9", "AF7"}, rec.Channels)
	s.Equal(12, res.Metadata.NumSamples)

	s.False(s.streamer.push(4), "device is stopped once the session returns")
	s.Equal([]string{"connect", "start", "stop", "disconnect"}, s.streamer.calls)
}

func (s *SessionSuite) TestRunsForDuration() {
	var ticks []int
	session := s.newSession(WithProgress(func(p Progress) {
		ticks = append(ticks, p.Tick)
		s.streamer.push(2)
	}))

	res, err := session.Start(context.Background(), s.dir, 20*time.Millisecond, "")
	s.Require().NoError(err)
	s.False(res.Cancelled)
	s.GreaterOrEqual(len(ticks), 4)
	s.GreaterOrEqual(res.Metadata.DurationSeconds, 0.02)
	s.Equal(2*len(ticks), res.Metadata.NumSamples)
}

func (s *SessionSuite) TestMetadataWrittenTwice() {
	session := s.newSession(WithClock(func() time.Time {
		s.clock = s.clock.Add(5 * time.Millisecond)
		return s.clock
	}))

	res, err := session.Start(context.Background(), s.dir, 10*time.Millisecond, "eyes closed")
	s.Require().NoError(err)

	s.Require().Len(s.store.metadata, 2)
	partial, final := s.store.metadata[0], s.store.metadata[1]

	s.Equal("Fake Muse", partial.Device)
	s.Equal("eyes closed", partial.Notes)
	s.NotEmpty(partial.SessionID)
	s.False(partial.Final())

	s.Equal(partial.SessionID, final.SessionID)
	s.Equal(256.0, final.SampleRate)
	s.Equal([]string{"TP9", "AF7"}, final.Channels)
	s.Equal(filepath.Join(s.dir, "2024_05_01_12_00_00_fake_muse"), res.Folder)
	s.DirExists(res.Folder)
}

func (s *SessionSuite) TestRejectsExistingFolder() {
	start := s.clock
	folder := filepath.Join(s.dir, s.streamer.info.FolderLabel(start))
	s.Require().NoError(os.Mkdir(folder, 0o755))
	s.Require().NoError(os.WriteFile(filepath.Join(folder, "keep"), []byte("x"), 0o644))

	session := s.newSession(WithClock(func() time.Time { return start }))
	_, err := session.Start(context.Background(), s.dir, time.Second, "")
	s.Require().Error(err)
	s.True(errors.Is(err, common.ErrAlreadyExists))
	s.Empty(s.streamer.calls, "device untouched")
	s.FileExists(filepath.Join(folder, "keep"))
}

func (s *SessionSuite) TestUnreachableDeviceLeavesNoFolder() {
	s.streamer.connectErr = errors.New("radio off")
	session := s.newSession()

	_, err := session.Start(context.Background(), s.dir, time.Second, "")
	s.Require().Error(err)
	s.True(errors.Is(err, common.ErrDeviceUnreachable))

	entries, err := os.ReadDir(s.dir)
	s.Require().NoError(err)
	s.Empty(entries)
	s.Empty(s.store.metadata)
}

func (s *SessionSuite) TestStartFailureDisconnects() {
	s.streamer.startErr = errors.New("no stream")
	_, err := s.newSession().Start(context.Background(), s.dir, time.Second, "")
	s.Require().Error(err)
	s.True(errors.Is(err, common.ErrDeviceUnreachable))
	s.Equal(1, s.streamer.disconnects)

	entries, _ := os.ReadDir(s.dir)
	s.Empty(entries)
}

func (s *SessionSuite) TestStopFailureStillPersists() {
	s.streamer.stopErr = errors.New("stop failed")
	s.streamer.disconnectErr = errors.New("disconnect failed")

	session := s.newSession(WithProgress(func(Progress) { s.streamer.push(1) }))
	res, err := session.Start(context.Background(), s.dir, 10*time.Millisecond, "")
	s.Require().Error(err)
	s.Contains(err.Error(), "stop failed")
	s.Contains(err.Error(), "disconnect failed")
	s.Require().NotNil(res)
	s.Len(s.store.recordings, 1)
	s.Equal(1, s.streamer.stops)
}

func (s *SessionSuite) TestWriteFailureReturnsCapture() {
	s.store.writeErr = errors.New("disk full")

	session := s.newSession(WithProgress(func(Progress) { s.streamer.push(2) }))
	res, err := session.Start(context.Background(), s.dir, 10*time.Millisecond, "")
	s.Require().Error(err)
	s.Contains(err.Error(), "disk full")
	s.Require().NotNil(res)
	s.Require().NotNil(res.Recording)
	s.Positive(res.Recording.Len())
	s.Equal(res.Recording.Len(), res.Metadata.NumSamples)
	s.Equal([]string{"TP9", "AF7"}, res.Recording.Channels)
	s.Empty(s.store.recordings)
}

func (s *SessionSuite) TestFinalMetadataFailureReturnsCapture() {
	s.store.finalErr = errors.New("read-only folder")

	session := s.newSession(WithProgress(func(Progress) { s.streamer.push(2) }))
	res, err := session.Start(context.Background(), s.dir, 10*time.Millisecond, "")
	s.Require().Error(err)
	s.Contains(err.Error(), "read-only folder")
	s.Require().NotNil(res)
	s.Positive(res.Recording.Len())
	s.Len(s.store.recordings, 1)
	s.Len(s.store.metadata, 1, "only the partial metadata was written")
}

func (s *SessionSuite) TestBatchesBeforeStopAreKept() {
	token := NewCancelToken()
	session := s.newSession(
		WithCancelToken(token),
		WithProgress(func(p Progress) {
			if p.Tick == 1 {
				s.streamer.push(3)
				token.Cancel()
				s.streamer.push(2)
			}
		}),
	)

	res, err := session.Start(context.Background(), s.dir, time.Minute, "")
	s.Require().NoError(err)
	s.True(res.Cancelled)
	s.Equal(5, res.Recording.Len(), "batches delivered between cancel and stop are persisted")
	s.Zero(res.Metadata.DroppedBatches)
}

func (s *SessionSuite) TestLongSessionBufferHintIsBounded() {
	session := s.newSession()
	session.Cancel()

	res, err := session.Start(context.Background(), s.dir, 10000*time.Hour, "")
	s.Require().NoError(err)
	s.True(res.Cancelled)
	s.Zero(res.Recording.Len())
}

func (s *SessionSuite) TestContextCancellation() {
	ctx, cancel := context.WithCancel(context.Background())
	session := s.newSession(WithProgress(func(p Progress) {
		if p.Tick == 2 {
			cancel()
		}
	}))

	res, err := session.Start(ctx, s.dir, time.Minute, "")
	s.Require().NoError(err)
	s.True(res.Cancelled)
	s.True(session.Token().Cancelled())
}

func (s *SessionSuite) TestCancelIsIdempotent() {
	session := s.newSession()
	session.Cancel()
	session.Cancel()

	res, err := session.Start(context.Background(), s.dir, time.Minute, "")
	s.Require().NoError(err)
	s.True(res.Cancelled)
	session.Cancel()
	s.Equal(1, s.streamer.stops)
}

func (s *SessionSuite) TestCustomDropChannels() {
	session := s.newSession(WithDropChannels())
	res, err := session.Start(context.Background(), s.dir, 5*time.Millisecond, "")
	s.Require().NoError(err)
	s.Equal([]string{"TP9", "AF7", "Right AUX"}, res.Recording.Channels)
}

func (s *SessionSuite) TestInvalidArguments() {
	_, err := s.newSession().Start(context.Background(), s.dir, 0, "")
	s.True(errors.Is(err, common.ErrInvalidArgument))

	s.streamer.caps = device.CapStream
	_, err = s.newSession().Start(context.Background(), s.dir, time.Second, "")
	s.True(errors.Is(err, common.ErrUnsupported))
	s.Empty(s.streamer.calls)
}

func (s *SessionSuite) TestWithSyntheticDevice() {
	dev := device.NewSyntheticDevice("Synth", device.SyntheticConfig{SampleRate: 1000, BatchSize: 10},
		device.WithLogger(logging.NewNop()))
	session := NewSession(dev, s.store, WithTick(10*time.Millisecond), WithLogger(logging.NewNop()))

	res, err := session.Start(context.Background(), s.dir, 50*time.Millisecond, "")
	s.Require().NoError(err)
	s.Require().NoError(res.Recording.Validate())
	s.Positive(res.Recording.Len())
	s.Len(res.Recording.Channels, 4)
	s.Zero(res.Metadata.DroppedBatches)
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func TestSampleBuffer(t *testing.T) {
	b := NewSampleBuffer(2, 4)

	require.NoError(t, b.Append(common.Samples{{1, 2}, {3, 4}}, []float64{0, 1}))
	require.NoError(t, b.Append(common.Samples{{5}, {6}}, []float64{2}))
	assert.Error(t, b.Append(common.Samples{{7}}, []float64{3}), "wrong channel count")
	assert.Error(t, b.Append(common.Samples{{7}, {8}}, []float64{3, 4}), "wrong timestamp count")
	assert.Equal(t, 3, b.Len())

	b.Freeze()
	assert.True(t, b.Frozen())
	assert.Error(t, b.Append(common.Samples{{9}, {9}}, []float64{5}))
	assert.Equal(t, int64(3), b.Dropped())

	ts, samples := b.Snapshot()
	assert.Equal(t, []float64{0, 1, 2}, ts)
	assert.Equal(t, common.Samples{{1, 2, 5}, {3, 4, 6}}, samples)

	samples[0][0] = 99
	_, again := b.Snapshot()
	assert.Equal(t, 1.0, again[0][0], "snapshot is a copy")
}

func TestSampleBufferConcurrentAppend(t *testing.T) {
	b := NewSampleBuffer(1, 0)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = b.Append(common.Samples{{1}}, []float64{1})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, b.Len())
}

func TestCancelToken(t *testing.T) {
	tok := NewCancelToken()
	assert.False(t, tok.Cancelled())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok.Cancel()
		}()
	}
	wg.Wait()

	assert.True(t, tok.Cancelled())
	select {
	case <-tok.Done():
	default:
		t.Fatal("Done not closed")
	}
}
