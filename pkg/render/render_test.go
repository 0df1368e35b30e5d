package render

import (
	"VisionGuard/internal/entity"
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func whiteImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	img, err := Decode(encodePNG(t, whiteImage(64, 48)))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())

	_, err = Decode(nil)
	assert.Error(t, err)

	_, err = Decode([]byte("definitely not an image"))
	assert.Error(t, err)
}

// withClaimedSize rewrites the PNG header of data to claim w x h pixels,
// leaving the pixel data untouched.
func withClaimedSize(data []byte, w, h uint32) []byte {
	out := append([]byte(nil), data...)
	// signature (8) + chunk length (4), then "IHDR" and its 13 data bytes
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestDecodeRejectsOversizedImages(t *testing.T) {
	small := encodePNG(t, whiteImage(4, 4))

	_, err := Decode(withClaimedSize(small, 50000, 50000))
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = Decode(withClaimedSize(small, MaxImageSide+1, 4))
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = Decode(withClaimedSize(small, 8000, 8000))
	assert.ErrorIs(t, err, ErrImageTooLarge, "more than MaxImagePixels in total")
}

func TestAnnotateDrawsBoxes(t *testing.T) {
	src := whiteImage(200, 150)
	detections := []entity.Detection{
		{Label: "person", ClassID: 0, Confidence: 0.87, Box: entity.BoundingBox{X: 40, Y: 40, Width: 80, Height: 60}},
	}

	out := Annotate(src, detections)
	require.Equal(t, src.Bounds(), out.Bounds())

	// box edge is painted, the interior and the source are untouched
	edge := out.NRGBAAt(40, 70)
	assert.NotEqual(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, edge)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, out.NRGBAAt(80, 90))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, src.NRGBAAt(40, 70))
}

func TestAnnotateClipsOutOfBounds(t *testing.T) {
	src := whiteImage(50, 50)
	detections := []entity.Detection{
		{Label: "car", ClassID: 2, Confidence: 0.5, Box: entity.BoundingBox{X: 30, Y: 30, Width: 100, Height: 100}},
		{Label: "ghost", ClassID: 3, Confidence: 0.5, Box: entity.BoundingBox{X: 500, Y: 500, Width: 10, Height: 10}},
	}

	assert.NotPanics(t, func() {
		out := Annotate(src, detections)
		assert.Equal(t, src.Bounds(), out.Bounds())
	})
}

func TestAnnotateWithoutDetections(t *testing.T) {
	src := whiteImage(20, 20)
	out := Annotate(src, nil)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestEncodeJPEG(t *testing.T) {
	data, err := EncodeJPEG(whiteImage(32, 32))
	require.NoError(t, err)
	require.Greater(t, len(data), 3)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data[:3])
}

func TestPreview(t *testing.T) {
	big := Preview(whiteImage(1200, 600), 600)
	assert.Equal(t, 600, big.Bounds().Dx())
	assert.Equal(t, 300, big.Bounds().Dy())

	small := whiteImage(300, 200)
	assert.Equal(t, small.Bounds(), Preview(small, 600).Bounds())
}

func TestConfidenceChart(t *testing.T) {
	data, err := ConfidenceChart(
		[]string{"person", "dog", "person"},
		[]float64{0.82, 0.91, 0.44},
		1,
	)
	require.NoError(t, err)
	require.Greater(t, len(data), len(pngMagic))
	assert.Equal(t, pngMagic, data[:len(pngMagic)])

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, chartHeight, img.Bounds().Dy())
}

func TestConfidenceChartManyBarsWidens(t *testing.T) {
	labels := make([]string, 12)
	values := make([]float64, 12)
	for i := range labels {
		labels[i] = "obj"
		values[i] = 0.5
	}

	data, err := ConfidenceChart(labels, values, 0)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 640)
}

func TestConfidenceChartErrors(t *testing.T) {
	_, err := ConfidenceChart(nil, nil, 0)
	assert.ErrorIs(t, err, ErrNoBars)

	_, err = ConfidenceChart([]string{"a"}, []float64{0.1, 0.2}, 0)
	assert.Error(t, err)
}
