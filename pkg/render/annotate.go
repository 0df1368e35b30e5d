package render

import (
	"VisionGuard/internal/entity"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	ErrEmptyImage    = errors.New("image has no pixels")
	ErrImageTooLarge = errors.New("image dimensions are too large")
)

const (
	MaxImageSide   = 8192
	MaxImagePixels = 40_000_000
)

var boxPalette = []color.NRGBA{
	{R: 255, G: 56, B: 56, A: 255},
	{R: 255, G: 157, B: 151, A: 255},
	{R: 255, G: 112, B: 31, A: 255},
	{R: 255, G: 178, B: 29, A: 255},
	{R: 207, G: 210, B: 49, A: 255},
	{R: 72, G: 249, B: 10, A: 255},
	{R: 146, G: 204, B: 23, A: 255},
	{R: 61, G: 219, B: 134, A: 255},
	{R: 26, G: 147, B: 52, A: 255},
	{R: 0, G: 212, B: 187, A: 255},
	{R: 44, G: 153, B: 168, A: 255},
	{R: 0, G: 194, B: 255, A: 255},
	{R: 52, G: 69, B: 147, A: 255},
	{R: 100, G: 115, B: 255, A: 255},
	{R: 0, G: 24, B: 236, A: 255},
	{R: 132, G: 56, B: 255, A: 255},
}

// Decode reads a JPEG or PNG image without applying EXIF orientation, so
// pixel coordinates match what the inference backend sees. The header is
// checked first so oversized images are rejected before allocation.
func Decode(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if cfg.Width > MaxImageSide || cfg.Height > MaxImageSide || cfg.Width*cfg.Height > MaxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return img, nil
}

func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Preview scales img down to at most width pixels wide, keeping the
// aspect ratio. Smaller images are returned unchanged.
func Preview(img image.Image, width int) image.Image {
	if width <= 0 || img.Bounds().Dx() <= width {
		return img
	}
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

// Annotate returns a copy of src with one labelled box per detection.
func Annotate(src image.Image, detections []entity.Detection) *image.NRGBA {
	dst := imaging.Clone(src)
	bounds := dst.Bounds()

	thickness := min(bounds.Dx(), bounds.Dy()) / 250
	if thickness < 2 {
		thickness = 2
	}

	for _, d := range detections {
		rect := image.Rect(d.Box.X, d.Box.Y, d.Box.X+d.Box.Width, d.Box.Y+d.Box.Height).
			Add(bounds.Min).
			Intersect(bounds)
		if rect.Empty() {
			continue
		}

		col := colorFor(d.ClassID)
		drawBox(dst, rect, col, thickness)
		drawLabel(dst, fmt.Sprintf("%s %.2f", d.Label, d.Confidence), rect, col)
	}

	return dst
}

func colorFor(classID int) color.NRGBA {
	if classID < 0 {
		classID = -classID
	}
	return boxPalette[classID%len(boxPalette)]
}

func drawBox(dst draw.Image, rect image.Rectangle, col color.Color, thickness int) {
	src := image.NewUniform(col)
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+thickness),
		image.Rect(rect.Min.X, rect.Max.Y-thickness, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+thickness, rect.Max.Y),
		image.Rect(rect.Max.X-thickness, rect.Min.Y, rect.Max.X, rect.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(rect), src, image.Point{}, draw.Src)
	}
}

// drawLabel writes text on a filled tab above the box, or just inside its
// top edge when the box touches the top of the image.
func drawLabel(dst draw.Image, text string, box image.Rectangle, col color.Color) {
	face := basicfont.Face7x13
	pad := 2

	dr := &font.Drawer{Dst: dst, Src: image.NewUniform(color.White), Face: face}
	textWidth := dr.MeasureString(text).Ceil()
	ascent := face.Metrics().Ascent.Ceil()
	height := face.Metrics().Height.Ceil() + 2*pad

	top := box.Min.Y - height
	if top < dst.Bounds().Min.Y {
		top = box.Min.Y
	}
	tab := image.Rect(box.Min.X, top, box.Min.X+textWidth+2*pad, top+height).Intersect(dst.Bounds())
	draw.Draw(dst, tab, image.NewUniform(col), image.Point{}, draw.Src)

	dr.Dot = fixed.P(box.Min.X+pad, top+pad+ascent)
	dr.DrawString(text)
}
