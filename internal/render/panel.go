package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/trylia/internal/metrics"
)

// Panel layout in pixels.
const (
	PanelWidth  = 280
	PanelHeight = 120
	PanelMargin = 20

	BarWidth   = 200
	BarHeight  = 15
	barOffsetX = 10
	barOffsetY = 90

	// panelOpacity is how much of the panel background is black.
	panelOpacity = 0.7
)

// Panel colors.
var (
	ColorGreen  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	ColorYellow = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	ColorRed    = color.RGBA{R: 255, G: 0, B: 0, A: 255}

	colorWhite   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorBarBack = color.RGBA{R: 50, G: 50, B: 50, A: 255}
)

// PanelInfo is the content of the information panel.
type PanelInfo struct {
	Title   string
	Metrics metrics.Snapshot
}

// TierColor returns the panel color for a confidence value:
// green from 80, yellow from 60, red below.
func TierColor(confidence float64) color.RGBA {
	switch {
	case confidence >= 80:
		return ColorGreen
	case confidence >= 60:
		return ColorYellow
	default:
		return ColorRed
	}
}

// PanelRect returns the panel bounds for a frame of the given size.
// The panel is anchored to the bottom-right corner.
func PanelRect(cols, rows int) image.Rectangle {
	x := cols - PanelWidth - PanelMargin
	y := rows - PanelHeight - PanelMargin
	return image.Rect(x, y, x+PanelWidth, y+PanelHeight)
}

// BarFill returns the filled width of the confidence bar.
func BarFill(confidence float64) int {
	fill := int(confidence / 100 * BarWidth)
	return max(0, min(fill, BarWidth))
}

// DrawPanel draws the semi-transparent information panel onto frame.
// Parts of the panel outside the frame are clipped.
func DrawPanel(frame *gocv.Mat, info PanelInfo) {
	if frame == nil || frame.Empty() {
		return
	}

	panel := PanelRect(frame.Cols(), frame.Rows())
	darken(frame, panel.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows())))

	gocv.Rectangle(frame, panel, colorWhite, 2)

	origin := panel.Min
	gocv.PutText(frame, info.Title, origin.Add(image.Pt(10, 25)),
		gocv.FontHersheySimplex, 0.5, colorWhite, 1)

	gocv.PutText(frame, fmt.Sprintf("Recommended Size: %s", info.Metrics.Size), origin.Add(image.Pt(10, 50)),
		gocv.FontHersheySimplex, 0.6, ColorGreen, 2)

	tier := TierColor(info.Metrics.Confidence)
	gocv.PutText(frame, fmt.Sprintf("Accuracy: %.1f%%", info.Metrics.Confidence), origin.Add(image.Pt(10, 75)),
		gocv.FontHersheySimplex, 0.6, tier, 2)

	bar := image.Rect(0, 0, BarWidth, BarHeight).Add(origin.Add(image.Pt(barOffsetX, barOffsetY)))
	gocv.Rectangle(frame, bar, colorBarBack, -1)
	if fill := BarFill(info.Metrics.Confidence); fill > 0 {
		gocv.Rectangle(frame, image.Rect(bar.Min.X, bar.Min.Y, bar.Min.X+fill, bar.Max.Y), tier, -1)
	}
	gocv.Rectangle(frame, bar, colorWhite, 1)
}

// darken blends the region with black at panelOpacity.
func darken(frame *gocv.Mat, r image.Rectangle) {
	if r.Empty() {
		return
	}

	roi := frame.Region(r)
	defer roi.Close()

	black := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), r.Dy(), r.Dx(), frame.Type())
	defer black.Close()

	gocv.AddWeighted(black, panelOpacity, roi, 1-panelOpacity, 0, &roi)
}
