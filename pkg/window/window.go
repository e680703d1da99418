// Package window slices completed (timestamps, samples) streams into
// fixed-length analysis windows.
//
// All functions are pure and safe for concurrent use on independent inputs.
// Insufficient trailing data is reported with a false second return value,
// never with an error: in a live context it means "wait for more data".
package window

import (
	"sort"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
)

const (
	// DefaultLength is the default number of samples per window.
	DefaultLength = 128
	// DefaultTiles is the default repeat count for filter warm-up.
	DefaultTiles = 5
)

// Window is a channel x sample slice of a stream plus the position it was
// taken from. Samples are views into the source rows; copy them before
// mutating.
type Window struct {
	Samples    common.Samples
	StartIndex int
	StartTime  float64
}

// Len returns the number of samples per channel.
func (w Window) Len() int {
	return w.Samples.Len()
}

// WindowAfterTime returns length samples from every channel starting at the
// first timestamp strictly greater than ref. timestamps must be sorted.
func WindowAfterTime(ref float64, timestamps []float64, samples common.Samples, length int) (Window, bool) {
	start := sort.Search(len(timestamps), func(i int) bool {
		return timestamps[i] > ref
	})

	w, ok := WindowAfterIndex(start, samples, length)
	if !ok || start >= len(timestamps) {
		return Window{}, false
	}
	w.StartTime = timestamps[start]
	return w, true
}

// WindowAfterIndex returns length samples from every channel starting at
// index.
func WindowAfterIndex(index int, samples common.Samples, length int) (Window, bool) {
	if index < 0 || length <= 0 || samples.Channels() == 0 {
		return Window{}, false
	}

	end := index + length
	if end > samples.Len() {
		return Window{}, false
	}

	out := make(common.Samples, samples.Channels())
	for c, row := range samples {
		out[c] = row[index:end:end]
	}
	return Window{Samples: out, StartIndex: index}, true
}

// Tile concatenates repeat copies of samples along the time axis so a
// stateful filter has lead-in before the original data.
// [0 3 1] tiled 3 times is [0 3 1 0 3 1 0 3 1].
func Tile(samples common.Samples, repeat int) common.Samples {
	if repeat < 1 {
		repeat = 1
	}

	n := samples.Len()
	out := make(common.Samples, samples.Channels())
	for c, row := range samples {
		tiled := make([]float64, 0, n*repeat)
		for r := 0; r < repeat; r++ {
			tiled = append(tiled, row...)
		}
		out[c] = tiled
	}
	return out
}

// Untile returns the originalLength slice starting at
// originalLength*(repeat/2), the centre copy of a Tile result.
//
// For odd repeat counts this is the exact centre. For even counts it is the
// copy just right of centre, which has repeat/2 copies of lead-in.
// originalLength and repeat must match the Tile call: mismatched values
// return a wrong slice without any error. Bounds are clamped to the tiled
// data rather than panicking.
func Untile(tiled common.Samples, originalLength, repeat int) common.Samples {
	start := originalLength * (repeat / 2)
	end := start + originalLength

	out := make(common.Samples, tiled.Channels())
	for c, row := range tiled {
		s, e := clamp(start, len(row)), clamp(end, len(row))
		out[c] = append([]float64(nil), row[s:e]...)
	}
	return out
}

// Slide appends incoming to old and drops the same number of samples from
// the front, keeping len(old) samples. [0 3 6 1 5] slid by [2 9] becomes
// [6 1 5 2 9]. If incoming is at least as long as old, the result is the
// last len(old) samples of incoming. Newest data always wins and the output
// length always equals the old window length.
//
// Both blocks must have the same channel count; extra channels in incoming
// are ignored. An empty incoming block returns a copy of old.
func Slide(old, incoming common.Samples) common.Samples {
	length := old.Len()
	n := incoming.Len()

	out := common.NewSamples(old.Channels(), length)
	for c := range out {
		if c >= incoming.Channels() {
			copy(out[c], old[c])
			continue
		}
		if n >= length {
			copy(out[c], incoming[c][n-length:])
			continue
		}
		keep := length - n
		copy(out[c], old[c][n:])
		copy(out[c][keep:], incoming[c])
	}
	return out
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
