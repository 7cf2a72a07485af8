package imaging

import (
	"bytes"
	"image"

	"github.com/rwcarlsen/goexif/exif"
)

// getOrientation reads the EXIF orientation tag. 1 (as is) if there's no EXIF data or no tag.
func getOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return orientation
}

// correctOrientation applies an EXIF orientation so that the card is upright, as the camera saw it.
func correctOrientation(img image.Image, orientation int) image.Image {
	if orientation < 2 || orientation > 8 {
		return img
	}
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	var result *image.RGBA
	if orientation >= 5 {
		result = image.NewRGBA(image.Rect(0, 0, height, width))
	} else {
		result = image.NewRGBA(image.Rect(0, 0, width, height))
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			switch orientation {
			case 2: // flip horizontal
				result.Set(width-1-x, y, c)
			case 3: // rotate 180
				result.Set(width-1-x, height-1-y, c)
			case 4: // flip vertical
				result.Set(x, height-1-y, c)
			case 5: // transpose
				result.Set(y, x, c)
			case 6: // rotate 90 clockwise
				result.Set(height-1-y, x, c)
			case 7: // transverse
				result.Set(height-1-y, width-1-x, c)
			case 8: // rotate 90 counter-clockwise
				result.Set(y, width-1-x, c)
			}
		}
	}
	return result
}
