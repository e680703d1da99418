package storage

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/OpenPSG/edf"
	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
)

const (
	edfDigitalMin = -32768
	edfDigitalMax = 32767
	// EDF caps a data record at 61440 bytes of int16 samples.
	edfMaxRecordSamples = 61440 / 2
)

// ExportEDF writes rec as an EDF file with one-second data records. The
// sample rate must be a whole number of samples per second; the final
// record is padded by repeating each channel's last value.
func ExportEDF(path string, rec *common.Recording, md *common.RecordingMetadata) error {
	if err := rec.Validate(); err != nil {
		return common.NewError("storage", common.ErrCodeInvalidArgument, "invalid recording", err)
	}
	if md == nil || md.SampleRate <= 0 {
		return common.NewError("storage", common.ErrCodeInvalidArgument, "export requires a positive sample rate", nil)
	}
	perRecord := int(math.Round(md.SampleRate))
	if math.Abs(float64(perRecord)-md.SampleRate) > 1e-9 {
		return common.NewError("storage", common.ErrCodeUnsupported,
			fmt.Sprintf("sample rate %g Hz is not a whole number of samples per second", md.SampleRate), nil)
	}
	if perRecord*len(rec.Channels) > edfMaxRecordSamples {
		return common.NewError("storage", common.ErrCodeUnsupported,
			fmt.Sprintf("%d channels at %d Hz exceed the EDF record size", len(rec.Channels), perRecord), nil)
	}
	if rec.Len() == 0 {
		return common.NewError("storage", common.ErrCodeInvalidArgument, "recording has no samples", nil)
	}

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          "X X X X",
		RecordingID:        fmt.Sprintf("Startdate %s %s", md.StartTime.Format("02-Jan-2006"), md.SessionID),
		StartTime:          md.StartTime,
		DataRecordDuration: time.Second,
		SignalCount:        len(rec.Channels),
	}
	for c, ch := range rec.Channels {
		pmin, pmax := physicalRange(rec.Samples[c])
		hdr.Signals = append(hdr.Signals, edf.SignalHeader{
			Label:             ch,
			TransducerType:    md.DeviceKind,
			PhysicalDimension: "uV",
			PhysicalMin:       pmin,
			PhysicalMax:       pmax,
			DigitalMin:        edfDigitalMin,
			DigitalMax:        edfDigitalMax,
			SamplesPerRecord:  perRecord,
		})
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return common.NewError("storage", common.ErrCodeAlreadyExists, fmt.Sprintf("%s already exists", path), err)
		}
		return storageErr("failed to create EDF file", err)
	}
	defer f.Close()

	w, err := edf.Create(f, hdr)
	if err != nil {
		return storageErr("failed to write EDF header", err)
	}

	n := rec.Len()
	record := make([][]float64, len(rec.Channels))
	for c := range record {
		record[c] = make([]float64, perRecord)
	}
	for start := 0; start < n; start += perRecord {
		for c, row := range rec.Samples {
			copied := copy(record[c], row[start:min(start+perRecord, n)])
			for i := copied; i < perRecord; i++ {
				record[c][i] = row[n-1]
			}
		}
		if err := w.WriteRecord(record); err != nil {
			return storageErr("failed to write EDF record", err)
		}
	}

	if err := w.Close(); err != nil {
		return storageErr("failed to finalize EDF file", err)
	}
	return f.Sync()
}

// physicalRange returns bounds that cover row once the header rounds them
// to two decimals.
func physicalRange(row []float64) (float64, float64) {
	lo, hi := floats.Min(row), floats.Max(row)
	lo = math.Floor(lo*100) / 100
	hi = math.Ceil(hi*100) / 100
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

// ReadEDF loads every signal of an EDF file. Signals are returned in file
// order and include any padding in the final record.
func ReadEDF(path string) (common.Samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, storageErr("failed to open EDF file", err)
	}
	defer f.Close()

	r, err := edf.Open(f)
	if err != nil {
		return nil, common.NewError("storage", common.ErrCodeKindMismatch, "not an EDF file", err)
	}

	var out common.Samples
	for i := 0; ; i++ {
		sr, err := r.Signal(i)
		if err != nil {
			break
		}
		row, err := readSignal(sr)
		if err != nil {
			return nil, storageErr(fmt.Sprintf("failed to read EDF signal %d", i), err)
		}
		out = append(out, row)
	}
	return out, nil
}

func readSignal(sr *edf.SignalReader) ([]float64, error) {
	var row []float64
	buf := make([]float64, 1024)
	for {
		n, err := sr.Read(buf)
		row = append(row, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return row, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
