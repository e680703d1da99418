package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
)

// ReadMarkersCSV loads markers from a CSV file; see ParseMarkersCSV.
func ReadMarkersCSV(path string) ([]common.Marker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, storageErr("failed to open markers file", err)
	}
	defer f.Close()
	return ParseMarkersCSV(f)
}

// ParseMarkersCSV reads a CSV with a header row naming a "timestamp" and a
// "label" column, in any order. Other columns are ignored and row order is
// preserved.
func ParseMarkersCSV(r io.Reader) ([]common.Marker, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []common.Marker{}, nil
		}
		return nil, invalidMarkers("failed to read header", err)
	}

	tsCol, labelCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "timestamp", "timestamps", "time":
			tsCol = i
		case "label", "labels", "marker":
			labelCol = i
		}
	}
	if tsCol < 0 || labelCol < 0 {
		return nil, invalidMarkers(fmt.Sprintf("header %v must name timestamp and label columns", header), nil)
	}

	markers := []common.Marker{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return markers, nil
		}
		if err != nil {
			return nil, invalidMarkers(fmt.Sprintf("line %d", line), err)
		}
		if len(row) <= tsCol || len(row) <= labelCol {
			return nil, invalidMarkers(fmt.Sprintf("line %d has %d fields", line, len(row)), nil)
		}

		ts, err := strconv.ParseFloat(strings.TrimSpace(row[tsCol]), 64)
		if err != nil {
			return nil, invalidMarkers(fmt.Sprintf("line %d: bad timestamp", line), err)
		}
		markers = append(markers, common.Marker{
			Label:     strings.TrimSpace(row[labelCol]),
			Timestamp: ts,
		})
	}
}

func invalidMarkers(msg string, cause error) error {
	return common.NewError("storage", common.ErrCodeInvalidArgument, "markers: "+msg, cause)
}
