package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kgeyst.com/cardreader/pkg/common"
)

func createTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8((x + y) % 256), G: uint8((x * 2) % 256), B: uint8((y * 2) % 256), A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestEncoder(values map[string]any) *encoder {
	config := common.NewConfig(values).WithEnvLookup(func(string) (string, bool) { return "", false })
	return NewEncoder(config).(*encoder)
}

func TestEncoderDownsizesLandscape(t *testing.T) {
	cardImage, err := newTestEncoder(nil).LoadBytes(encodePNG(t, createTestImage(2000, 1200)))
	require.NoError(t, err)
	assert.Equal(t, 1024, cardImage.Width)
	assert.Equal(t, 614, cardImage.Height)

	decoded, format, err := image.Decode(bytes.NewReader(cardImage.JPEG))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, image.Rect(0, 0, 1024, 614), decoded.Bounds())
	assert.True(t, strings.HasPrefix(cardImage.DataURI(), "data:image/jpeg;base64,/9j/"))
}

func TestEncoderDownsizesPortraitWithCustomLimit(t *testing.T) {
	cardImage, err := newTestEncoder(map[string]any{ConfigKeyImageMaxDimension: 100}).
		LoadBytes(encodePNG(t, createTestImage(50, 400)))
	require.NoError(t, err)
	assert.Equal(t, 13, cardImage.Width)
	assert.Equal(t, 100, cardImage.Height)
}

func TestEncoderKeepsSmallImages(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, createTestImage(300, 200), nil))
	cardImage, err := newTestEncoder(nil).LoadBytes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 300, cardImage.Width)
	assert.Equal(t, 200, cardImage.Height)
}

func TestEncoderIsDeterministic(t *testing.T) {
	data := encodePNG(t, createTestImage(1500, 900))
	first, err := newTestEncoder(nil).LoadBytes(data)
	require.NoError(t, err)
	second, err := newTestEncoder(nil).LoadBytes(data)
	require.NoError(t, err)
	assert.Equal(t, first.JPEG, second.JPEG)
}

func TestEncoderFlattensTransparencyOntoWhite(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	cardImage, err := newTestEncoder(nil).LoadBytes(encodePNG(t, img))
	require.NoError(t, err)
	decoded, err := jpeg.Decode(bytes.NewReader(cardImage.JPEG))
	require.NoError(t, err)
	r, g, b, _ := decoded.At(8, 8).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestEncoderErrors(t *testing.T) {
	e := newTestEncoder(nil)
	_, err := e.LoadBytes(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)
	_, err = e.LoadBytes([]byte("definitely not an image"))
	assert.ErrorContains(t, err, "failed to decode image")
	_, err = e.LoadFile(filepath.Join(t.TempDir(), "missing.jpg"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEncoderLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, createTestImage(20, 10)), 0644))
	cardImage, err := newTestEncoder(nil).LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cardImage.Width)
}

func TestCorrectOrientation(t *testing.T) {
	// 2x1: red on the left, blue on the right
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, red)
	img.Set(1, 0, blue)

	tests := []struct {
		orientation int
		bounds      image.Rectangle
		redAt       image.Point
	}{
		{1, image.Rect(0, 0, 2, 1), image.Pt(0, 0)},
		{2, image.Rect(0, 0, 2, 1), image.Pt(1, 0)},
		{3, image.Rect(0, 0, 2, 1), image.Pt(1, 0)},
		{4, image.Rect(0, 0, 2, 1), image.Pt(0, 0)},
		{5, image.Rect(0, 0, 1, 2), image.Pt(0, 0)},
		{6, image.Rect(0, 0, 1, 2), image.Pt(0, 0)},
		{7, image.Rect(0, 0, 1, 2), image.Pt(0, 1)},
		{8, image.Rect(0, 0, 1, 2), image.Pt(0, 1)},
	}
	for _, test := range tests {
		corrected := correctOrientation(img, test.orientation)
		assert.Equal(t, test.bounds, corrected.Bounds(), test.orientation)
		assert.Equal(t, color.RGBAModel.Convert(red), color.RGBAModel.Convert(corrected.At(test.redAt.X, test.redAt.Y)), test.orientation)
	}
}

func TestGetOrientationWithoutEXIF(t *testing.T) {
	assert.Equal(t, 1, getOrientation(encodePNG(t, createTestImage(2, 2))))
}
