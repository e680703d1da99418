package spectral

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
	"github.com/RyanBlaney/eeg-capture/pkg/epoch"
	"github.com/RyanBlaney/eeg-capture/pkg/logging"
	"github.com/RyanBlaney/eeg-capture/pkg/window"
)

// Prediction is the spectral-peak result for one epoch.
type Prediction struct {
	Index     int     `json:"index"`
	Label     string  `json:"label"`
	Predicted float64 `json:"predicted"`
	Skipped   bool    `json:"skipped,omitempty"`
}

// StreamPrediction is a rolling-window result ending at sample EndIndex.
type StreamPrediction struct {
	EndIndex  int     `json:"end_index"`
	Predicted float64 `json:"predicted"`
}

// ClassifyEpochs runs ClassifyBySpectralPeak on one channel of every epoch
// in the set, using up to workers goroutines. Epochs that failed extraction
// are returned with Skipped set.
func (a *Analyzer) ClassifyEpochs(ctx context.Context, set *epoch.Set, channel int, candidates []float64, workers int) ([]Prediction, error) {
	if channel < 0 || channel >= set.Channels {
		return nil, common.NewError("spectral_analyzer", common.ErrCodeInvalidArgument,
			fmt.Sprintf("channel %d out of range [0,%d)", channel, set.Channels), nil)
	}
	if workers < 1 {
		workers = 1
	}

	predictions := make([]Prediction, set.Len())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range set.Epochs {
		predictions[i] = Prediction{Index: i, Label: set.Labels[i]}
		if !set.Succeeded(i) {
			predictions[i].Skipped = true
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			predicted, err := a.ClassifyBySpectralPeak(set.Epochs[i][channel], candidates)
			if err != nil {
				return fmt.Errorf("epoch %d: %w", i, err)
			}
			predictions[i].Predicted = predicted
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.logger.Debug("Epochs classified", logging.Fields{
		"epochs":  set.Len(),
		"channel": channel,
		"workers": workers,
	})

	return predictions, nil
}

// ClassifyRolling replays a single channel through a rolling window of
// length samples, advancing hop samples at a time, and classifies every full
// window. It mirrors what an online SSVEP loop would see.
func (a *Analyzer) ClassifyRolling(signal []float64, length, hop int, candidates []float64) ([]StreamPrediction, error) {
	if length <= 0 || hop <= 0 {
		return nil, common.NewError("spectral_analyzer", common.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid rolling window length %d / hop %d", length, hop), nil)
	}

	rolling := window.NewRolling(1, length)
	var out []StreamPrediction

	for start := 0; start < len(signal); start += hop {
		end := min(start+hop, len(signal))
		rolling.Push(common.Samples{signal[start:end]})
		if !rolling.Ready() {
			continue
		}

		predicted, err := a.ClassifyBySpectralPeak(rolling.Samples()[0], candidates)
		if err != nil {
			return nil, err
		}
		out = append(out, StreamPrediction{EndIndex: end, Predicted: predicted})
	}

	return out, nil
}
