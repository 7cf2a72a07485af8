package domain

import "encoding/base64"

// CardImage an image ready to be sent to a model: always a baseline JPEG.
type CardImage struct {
	JPEG   []byte
	Width  int
	Height int
}

// Base64 the form Ollama and most HTTP APIs expect.
func (c *CardImage) Base64() string {
	return base64.StdEncoding.EncodeToString(c.JPEG)
}

// DataURI the form chat-completion style APIs expect in "image_url".
func (c *CardImage) DataURI() string {
	return "data:image/jpeg;base64," + c.Base64()
}

// ImageLoader turns user input into a CardImage.
type ImageLoader interface {
	LoadBytes(data []byte) (*CardImage, error)
	LoadFile(path string) (*CardImage, error)
}
