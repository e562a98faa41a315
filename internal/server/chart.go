package server

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ayusman/trylia/internal/app"
)

// ChartHandler renders recent per-frame confidence and garment width as an
// HTML line chart.
type ChartHandler struct {
	hub *app.Hub
}

// NewChartHandler creates a new ChartHandler.
func NewChartHandler(hub *app.Hub) *ChartHandler {
	return &ChartHandler{hub: hub}
}

func (h *ChartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	history := h.hub.History()
	summary := app.Summarize(history)

	frames := make([]uint64, 0, len(history))
	confidence := make([]opts.LineData, 0, len(history))
	width := make([]opts.LineData, 0, len(history))
	for _, res := range history {
		frames = append(frames, res.Frame)
		confidence = append(confidence, opts.LineData{Value: res.Metrics.Confidence})
		width = append(width, opts.LineData{Value: res.Placement.W})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Try-on Confidence", Theme: "dark", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Try-on Confidence", Subtitle: fmt.Sprintf(
			"last %d frames, pose in %.0f%%, mean confidence %.1f%%, width %.1f ± %.1f px",
			summary.Frames, summary.DetectionRate*100, summary.ConfidenceMean, summary.WidthMean, summary.WidthStdDev)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
	)
	line.SetXAxis(frames).
		AddSeries("confidence (%)", confidence).
		AddSeries("garment width (px)", width)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
