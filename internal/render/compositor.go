// Package render draws the garment and the information panel onto frames.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/trylia/internal/placement"
)

var (
	// ErrNoImage is returned when the selected garment has no pixels.
	ErrNoImage = errors.New("garment image is empty")

	// ErrUnsupportedFrame is returned for frames the compositor cannot write to.
	ErrUnsupportedFrame = errors.New("unsupported frame format")
)

// Compositor transforms a garment image and blends it onto a frame.
type Compositor struct {
	// Mirror flips the garment horizontally before it is rotated.
	Mirror bool
}

// NewCompositor creates a new Compositor.
func NewCompositor(mirror bool) *Compositor {
	return &Compositor{Mirror: mirror}
}

// Composite resizes garment to the placement size, rotates it by angle
// degrees about its own center and alpha-blends it onto frame with its
// top-left corner at p.TopLeft().
func (c *Compositor) Composite(frame *gocv.Mat, garment gocv.Mat, p placement.Placement, angle float64) error {
	if garment.Empty() {
		return ErrNoImage
	}

	size := p.Size()
	if size.X <= 0 || size.Y <= 0 {
		return fmt.Errorf("resize garment: invalid size %dx%d", size.X, size.Y)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(garment, &resized, size, 0, 0, gocv.InterpolationLinear)
	if resized.Empty() {
		return fmt.Errorf("resize garment to %dx%d failed", size.X, size.Y)
	}

	bgra, err := toBGRA(resized)
	if err != nil {
		return err
	}
	defer bgra.Close()

	if c.Mirror {
		gocv.Flip(bgra, &bgra, 1)
	}

	rotated := Rotate(bgra, angle)
	defer rotated.Close()

	return Overlay(frame, rotated, p.TopLeft())
}

// toBGRA returns a 4 channel copy of img. Images without alpha become fully
// opaque.
func toBGRA(img gocv.Mat) (gocv.Mat, error) {
	out := gocv.NewMat()
	switch img.Channels() {
	case 4:
		img.CopyTo(&out)
	case 3:
		gocv.CvtColor(img, &out, gocv.ColorBGRToBGRA)
	case 1:
		gocv.CvtColor(img, &out, gocv.ColorGrayToBGRA)
	default:
		out.Close()
		return gocv.Mat{}, fmt.Errorf("garment has %d channels", img.Channels())
	}
	if out.Type() != gocv.MatTypeCV8UC4 {
		out.Close()
		return gocv.Mat{}, fmt.Errorf("garment pixel type %v is not 8 bit", img.Type())
	}
	return out, nil
}

// Rotate rotates a BGRA image by angle degrees about its center, keeping its
// size. Pixels uncovered by the rotation stay fully transparent.
func Rotate(src gocv.Mat, angle float64) gocv.Mat {
	center := image.Pt(src.Cols()/2, src.Rows()/2)
	m := gocv.GetRotationMatrix2D(center, angle, 1.0)
	defer m.Close()

	dst := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), src.Rows(), src.Cols(), src.Type())
	gocv.WarpAffineWithParams(src, &dst, m, image.Pt(src.Cols(), src.Rows()),
		gocv.InterpolationLinear, gocv.BorderTransparent, color.RGBA{})
	return dst
}

// Overlay alpha-blends a BGRA image onto dst with its top-left corner at at.
// Destination pixels are left untouched where alpha is zero, replaced where
// it is 255 and mixed in proportion otherwise. Parts of src outside dst are
// clipped.
func Overlay(dst *gocv.Mat, src gocv.Mat, at image.Point) error {
	if src.Type() != gocv.MatTypeCV8UC4 {
		return fmt.Errorf("overlay source: %w", ErrUnsupportedFrame)
	}
	if dst.Type() != gocv.MatTypeCV8UC3 && dst.Type() != gocv.MatTypeCV8UC4 {
		return fmt.Errorf("overlay destination: %w", ErrUnsupportedFrame)
	}
	if !dst.IsContinuous() || !src.IsContinuous() {
		return fmt.Errorf("overlay: %w: non-continuous buffer", ErrUnsupportedFrame)
	}

	clip := image.Rect(at.X, at.Y, at.X+src.Cols(), at.Y+src.Rows()).
		Intersect(image.Rect(0, 0, dst.Cols(), dst.Rows()))
	if clip.Empty() {
		return nil
	}

	dstData, err := dst.DataPtrUint8()
	if err != nil {
		return fmt.Errorf("overlay destination: %w", err)
	}
	srcData, err := src.DataPtrUint8()
	if err != nil {
		return fmt.Errorf("overlay source: %w", err)
	}

	dstStep, dstChannels := dst.Step(), dst.Channels()
	srcStep := src.Step()

	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		srcRow := (y - at.Y) * srcStep
		dstRow := y * dstStep
		for x := clip.Min.X; x < clip.Max.X; x++ {
			si := srcRow + (x-at.X)*4
			a := int(srcData[si+3])
			if a == 0 {
				continue
			}

			di := dstRow + x*dstChannels
			if a == 255 {
				copy(dstData[di:di+3], srcData[si:si+3])
				continue
			}
			for k := 0; k < 3; k++ {
				blended := int(srcData[si+k])*a + int(dstData[di+k])*(255-a)
				dstData[di+k] = uint8((blended + 127) / 255)
			}
		}
	}

	return nil
}
