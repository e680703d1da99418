package storage

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
	"github.com/RyanBlaney/eeg-capture/pkg/logging"
)

func sampleRecording(n int) *common.Recording {
	rec := &common.Recording{
		Channels:   []string{"TP9", "AF7", `we"ird name`},
		Timestamps: make([]float64, n),
		Samples:    common.NewSamples(3, n),
	}
	for i := 0; i < n; i++ {
		rec.Timestamps[i] = 1700000000 + float64(i)/256
		for c := range rec.Samples {
			rec.Samples[c][i] = float64(c+1) * 40 * math.Sin(float64(i)/10)
		}
	}
	return rec
}

func TestMetadataRewrite(t *testing.T) {
	dir := t.TempDir()
	store := NewFolderStore(logging.NewNop())

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	md := &common.RecordingMetadata{
		Device:           "Muse S",
		SessionID:        "abc",
		RecordingStarted: "2024_05_01_12_00_00",
		StartTime:        start,
		Notes:            "baseline",
	}
	require.NoError(t, store.WriteMetadata(dir, md))

	got, err := store.ReadMetadata(dir)
	require.NoError(t, err)
	assert.False(t, got.Final())
	assert.Equal(t, "baseline", got.Notes)
	assert.True(t, start.Equal(got.StartTime))

	md.DurationSeconds = 3.2
	md.NumSamples = 820
	md.SampleRate = 256
	md.Channels = []string{"TP9"}
	require.NoError(t, store.WriteMetadata(dir, md))

	got, err = store.ReadMetadata(dir)
	require.NoError(t, err)
	assert.True(t, got.Final())
	assert.Equal(t, 820, got.NumSamples)
	assert.Equal(t, "abc", got.SessionID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	raw, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "duration_s: 3.2")
}

func TestReadMetadataMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), []byte("- [unbalanced"), 0o644))

	_, err := NewFolderStore(logging.NewNop()).ReadMetadata(dir)
	require.Error(t, err)
}

func TestRecordingRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFolderStore(logging.NewNop())
	rec := sampleRecording(300)

	require.NoError(t, store.WriteRecording(dir, rec))

	got, err := store.ReadRecording(dir)
	require.NoError(t, err)
	assert.Equal(t, rec.Channels, got.Channels)
	assert.Equal(t, rec.Timestamps, got.Timestamps)
	assert.Equal(t, rec.Samples, got.Samples)

	err = store.WriteRecording(dir, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrAlreadyExists))
}

func TestRecordingKeepsNonFiniteSamples(t *testing.T) {
	dir := t.TempDir()
	store := NewFolderStore(logging.NewNop())
	rec := &common.Recording{
		Timestamps: []float64{0, 1, 2},
		Channels:   []string{"TP9", "AF7"},
		Samples: common.Samples{
			{1, math.NaN(), 3},
			{math.Inf(1), 5, math.Inf(-1)},
		},
	}

	require.NoError(t, store.WriteRecording(dir, rec))

	got, err := store.ReadRecording(dir)
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())
	assert.Equal(t, 1.0, got.Samples[0][0])
	assert.True(t, math.IsNaN(got.Samples[0][1]))
	assert.Equal(t, 3.0, got.Samples[0][2])
	assert.True(t, math.IsInf(got.Samples[1][0], 1))
	assert.Equal(t, 5.0, got.Samples[1][1])
	assert.True(t, math.IsInf(got.Samples[1][2], -1))
}

func TestEmptyRecording(t *testing.T) {
	dir := t.TempDir()
	store := NewFolderStore(logging.NewNop())
	rec := &common.Recording{Channels: []string{"TP9"}, Samples: common.NewSamples(1, 0)}

	require.NoError(t, store.WriteRecording(dir, rec))
	got, err := store.ReadRecording(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, []string{"TP9"}, got.Channels)
}

func TestWriteRecordingRejectsBadShape(t *testing.T) {
	rec := &common.Recording{Channels: []string{"a", "b"}, Samples: common.NewSamples(1, 2), Timestamps: []float64{0, 1}}
	err := NewFolderStore(logging.NewNop()).WriteRecording(t.TempDir(), rec)
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))
}

func TestReadRecordingMissing(t *testing.T) {
	_, err := NewFolderStore(logging.NewNop()).ReadRecording(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrStorage))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestMarkers(t *testing.T) {
	dir := t.TempDir()
	store := NewFolderStore(logging.NewNop())
	require.NoError(t, store.WriteRecording(dir, sampleRecording(10)))

	got, err := store.ReadMarkers(dir)
	require.NoError(t, err)
	assert.Empty(t, got)

	markers := []common.Marker{{Label: "12", Timestamp: 5}, {Label: "8.57", Timestamp: 2}}
	require.NoError(t, store.WriteMarkers(dir, markers))
	require.NoError(t, store.WriteMarkers(dir, markers))

	got, err = store.ReadMarkers(dir)
	require.NoError(t, err)
	assert.Equal(t, markers, got, "replaced, in insertion order")
}

func TestParseMarkersCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []common.Marker
		wantErr bool
	}{
		{
			name:  "label first",
			input: "label,timestamp\nleft,1.5\nright, 2.25\n",
			want:  []common.Marker{{Label: "left", Timestamp: 1.5}, {Label: "right", Timestamp: 2.25}},
		},
		{
			name:  "extra columns",
			input: "Timestamp,trial,Label\n3,1,10\n",
			want:  []common.Marker{{Label: "10", Timestamp: 3}},
		},
		{name: "empty", input: "", want: []common.Marker{}},
		{name: "header only", input: "timestamp,label\n", want: []common.Marker{}},
		{name: "missing column", input: "time,value\n1,2\n", wantErr: true},
		{name: "bad timestamp", input: "timestamp,label\nsoon,a\n", wantErr: true},
		{name: "short row", input: "timestamp,label\n1\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMarkersCSV(strings.NewReader(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, common.ErrInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExportEDF(t *testing.T) {
	dir := t.TempDir()
	rec := sampleRecording(600)
	md := &common.RecordingMetadata{
		SessionID:  "session",
		DeviceKind: "synthetic",
		StartTime:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		SampleRate: 256,
	}

	path := filepath.Join(dir, EDFFile)
	require.NoError(t, ExportEDF(path, rec, md))

	got, err := ReadEDF(path)
	require.NoError(t, err)
	require.Len(t, got, 3)

	for c := range got {
		require.Len(t, got[c], 768, "three one-second records")
		lo, hi := physicalRange(rec.Samples[c])
		tol := (hi-lo)/65535*2 + 1e-9
		for i := 0; i < rec.Len(); i++ {
			require.InDelta(t, rec.Samples[c][i], got[c][i], tol)
		}
		assert.InDelta(t, rec.Samples[c][599], got[c][767], tol, "padding repeats the last value")
	}

	err = ExportEDF(path, rec, md)
	assert.True(t, errors.Is(err, common.ErrAlreadyExists))
}

func TestExportEDFValidation(t *testing.T) {
	dir := t.TempDir()
	rec := sampleRecording(10)

	err := ExportEDF(filepath.Join(dir, "a.edf"), rec, &common.RecordingMetadata{SampleRate: 250.5})
	assert.True(t, errors.Is(err, common.ErrUnsupported))

	err = ExportEDF(filepath.Join(dir, "b.edf"), rec, &common.RecordingMetadata{})
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))

	empty := &common.Recording{Channels: []string{"a"}, Samples: common.NewSamples(1, 0)}
	err = ExportEDF(filepath.Join(dir, "c.edf"), empty, &common.RecordingMetadata{SampleRate: 256})
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))
}

func TestReadEDFRejectsOtherFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.edf")
	require.NoError(t, os.WriteFile(path, []byte("not an edf"), 0o644))
	_, err := ReadEDF(path)
	assert.True(t, errors.Is(err, common.ErrKindMismatch))
}
