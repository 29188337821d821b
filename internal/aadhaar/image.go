package aadhaar

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrInvalidImage = errors.New("invalid document image")

// Image is a decoded document photo.
type Image struct {
	Data []byte
	MIME string
}

// NewImage sniffs the content type of raw image bytes.
func NewImage(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty", ErrInvalidImage)
	}

	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return Image{}, fmt.Errorf("%w: content type %s", ErrInvalidImage, mime)
	}

	return Image{Data: data, MIME: mime}, nil
}

// DecodeImage accepts plain base64 or a data URL such as
// "data:image/png;base64,iVBOR...".
func DecodeImage(encoded string) (Image, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		_, payload, ok := strings.Cut(encoded, ",")
		if !ok {
			return Image{}, fmt.Errorf("%w: malformed data url", ErrInvalidImage)
		}
		encoded = payload
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if err != nil {
			return Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
	}

	return NewImage(data)
}
