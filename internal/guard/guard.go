// Package guard enforces the resource ceilings that keep conversions inside
// a bounded memory budget. Both checks run before expensive work: the byte
// ceiling before an input buffer is handed to the engine, the megapixel
// ceiling after a header probe but before a full decode. Rejections are
// structured values carrying the measured quantity and the limit, so
// callers can render a precise message.
package guard

import (
	"fmt"

	"github.com/imgbridge/imgbridge/internal/imaging"
)

// Default ceilings. Sized so that input, pixel buffer and output never
// approach the address-space ceiling of a constrained 32-bit-style
// environment: reject up front rather than fail on allocation.
const (
	DefaultMaxBytes      = 200 << 20 // 200 MiB
	DefaultMaxMegapixels = 100.0
)

// Limits holds the two ceilings. The zero value rejects everything; build
// one with DefaultLimits or from configuration.
type Limits struct {
	MaxBytes      int64
	MaxMegapixels float64
}

// DefaultLimits returns the production ceilings.
func DefaultLimits() Limits {
	return Limits{MaxBytes: DefaultMaxBytes, MaxMegapixels: DefaultMaxMegapixels}
}

// SizeError is the rejection for inputs over the byte ceiling.
type SizeError struct {
	Bytes    int64
	MaxBytes int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("file is %.1f MiB; maximum is %.0f MiB",
		float64(e.Bytes)/(1<<20), float64(e.MaxBytes)/(1<<20))
}

// MegapixelError is the rejection for images over the pixel-count ceiling.
type MegapixelError struct {
	Width         uint32
	Height        uint32
	Megapixels    float64
	MaxMegapixels float64
}

func (e *MegapixelError) Error() string {
	return fmt.Sprintf("image is %.1f MP (%dx%d); maximum is %.0f MP",
		e.Megapixels, e.Width, e.Height, e.MaxMegapixels)
}

// CheckSize gates on the raw input length. It reads nothing but the
// length, which is why it runs before the buffer crosses any boundary.
func (l Limits) CheckSize(n int64) error {
	if n > l.MaxBytes {
		return &SizeError{Bytes: n, MaxBytes: l.MaxBytes}
	}
	return nil
}

// CheckDimensions gates on probed header dimensions. Running it between
// the header probe and the full decode is what spares a doomed decode for
// oversized images that were small enough on disk to pass CheckSize.
func (l Limits) CheckDimensions(d imaging.Dimensions) error {
	if mp := d.Megapixels(); mp > l.MaxMegapixels {
		return &MegapixelError{
			Width:         d.Width,
			Height:        d.Height,
			Megapixels:    mp,
			MaxMegapixels: l.MaxMegapixels,
		}
	}
	return nil
}
