package app

import (
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/trylia/internal/tryon"
)

// Summary describes a window of recent frames.
type Summary struct {
	Frames int `json:"frames"`
	// DetectionRate is the share of frames with a pose, 0-1.
	DetectionRate  float64 `json:"detection_rate"`
	ConfidenceMean float64 `json:"confidence_mean"`
	// WidthMean and WidthStdDev cover the smoothed garment width of frames
	// where the garment was placed. The deviation shows how much the overlay still jitters.
	WidthMean   float64 `json:"width_mean"`
	WidthStdDev float64 `json:"width_stddev"`
}

// Summarize computes a Summary over history.
func Summarize(history []tryon.Result) Summary {
	s := Summary{Frames: len(history)}
	if len(history) == 0 {
		return s
	}

	var confidence, width []float64
	for _, res := range history {
		if !res.Pose {
			continue
		}
		confidence = append(confidence, res.Metrics.Confidence)
		// Degenerate geometry leaves the placement zero.
		if res.Placement.W > 0 {
			width = append(width, res.Placement.W)
		}
	}
	if len(confidence) == 0 {
		return s
	}

	s.DetectionRate = float64(len(confidence)) / float64(len(history))
	s.ConfidenceMean = stat.Mean(confidence, nil)
	switch {
	case len(width) > 1:
		s.WidthMean, s.WidthStdDev = stat.MeanStdDev(width, nil)
	case len(width) == 1:
		s.WidthMean = width[0]
	}
	return s
}
