package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"math"

	_ "golang.org/x/image/bmp"  // BMP decoder
	_ "golang.org/x/image/webp" // WebP decoder (decode-only format)
)

// Dimensions holds the pixel dimensions of the decoded image as declared
// by the container header.
type Dimensions struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Megapixels derives the quantity the resource guard gates on.
func (d Dimensions) Megapixels() float64 {
	return float64(d.Width) * float64(d.Height) / 1e6
}

// Probe reads width and height from the container header without decoding
// pixel data. Cost is proportional to header size, never to pixel count,
// which is what makes a pre-decode dimension check affordable.
//
// Empty input fails with ErrEmptyInput, an unknown signature with
// ErrUnrecognized, and a matched signature whose header does not parse
// with a DecodeError.
func Probe(input []byte) (Dimensions, error) {
	if len(input) == 0 {
		return Dimensions{}, ErrEmptyInput
	}
	cfg, name, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Dimensions{}, ErrUnrecognized
		}
		f, _ := ParseFormat(name)
		return Dimensions{}, &DecodeError{Format: f, Err: err}
	}
	if cfg.Width < 0 || cfg.Height < 0 || int64(cfg.Width) > math.MaxUint32 || int64(cfg.Height) > math.MaxUint32 {
		f, _ := ParseFormat(name)
		return Dimensions{}, &DecodeError{
			Format: f,
			Err:    fmt.Errorf("header declares impossible dimensions %dx%d", cfg.Width, cfg.Height),
		}
	}
	return Dimensions{Width: uint32(cfg.Width), Height: uint32(cfg.Height)}, nil
}
