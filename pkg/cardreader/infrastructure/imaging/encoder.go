package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"kgeyst.com/cardreader/pkg/cardreader/domain"
	"kgeyst.com/cardreader/pkg/common"
)

const (
	// ConfigKeyImageMaxDimension the longest side of the image sent to the model, in pixels; 0 keeps the original size
	ConfigKeyImageMaxDimension = "imageMaxDimension"
	// ConfigKeyImageJPEGQuality the quality of the re-encoded JPEG (1-100)
	ConfigKeyImageJPEGQuality = "imageJPEGQuality"
)

var ErrEmptyImage = errors.New("empty image")

type encoder struct {
	maxDimension int
	quality      int
}

// NewEncoder decodes any supported image (JPEG, PNG, GIF, WebP, BMP, TIFF), makes it upright according to EXIF,
// flattens transparency onto white, downsizes it and re-encodes it as JPEG. The output depends only on the input.
func NewEncoder(config *common.Config) domain.ImageLoader {
	quality := config.GetIntOrDefault(ConfigKeyImageJPEGQuality, 85)
	if quality < 1 || quality > 100 {
		quality = 85
	}
	return &encoder{
		maxDimension: config.GetIntOrDefault(ConfigKeyImageMaxDimension, 1024),
		quality:      quality,
	}
}

func (e *encoder) LoadFile(path string) (*domain.CardImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return e.LoadBytes(data)
}

func (e *encoder) LoadBytes(data []byte) (*domain.CardImage, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	img = correctOrientation(img, getOrientation(data))
	width, height := fitWithin(img.Bounds().Dx(), img.Bounds().Dy(), e.maxDimension)
	// JPEG has no alpha channel: transparent pixels would turn black otherwise.
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(canvas, canvas.Bounds(), img, img.Bounds(), draw.Over, nil)
	var buf bytes.Buffer
	err = jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: e.quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &domain.CardImage{
		JPEG:   buf.Bytes(),
		Width:  width,
		Height: height,
	}, nil
}

// fitWithin scales the dimensions down (never up) so that the longest side is at most `maxDimension`,
// preserving the aspect ratio.
func fitWithin(width, height, maxDimension int) (int, int) {
	if maxDimension <= 0 || (width <= maxDimension && height <= maxDimension) {
		return width, height
	}
	scale := float64(maxDimension) / float64(width)
	if height > width {
		scale = float64(maxDimension) / float64(height)
	}
	newWidth := max(1, min(maxDimension, int(float64(width)*scale+0.5)))
	newHeight := max(1, min(maxDimension, int(float64(height)*scale+0.5)))
	return newWidth, newHeight
}
