package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/ericpauley/go-quantize/quantize"
	"golang.org/x/image/bmp"
)

// Encoder defaults. The JPEG default tracks common production quality
// rather than the standard library's conservative 75; GIF quantizes to the
// full 256-entry palette unless told otherwise.
const (
	DefaultJPEGQuality = 90
	DefaultGIFColors   = 256
)

// EncodeOptions tunes the lossy encoders. The zero value selects the
// defaults; out-of-range values are clamped back to them.
type EncodeOptions struct {
	JPEGQuality int // 1..100
	GIFColors   int // 2..256
}

// ResolveTarget validates a caller-supplied target identifier against the
// format registry. It fails with an UnsupportedTargetError both when the
// identifier matches nothing and when it names a format that is
// decode-only; the two cases stay distinguishable through the error's
// Format field.
func ResolveTarget(identifier string) (Format, error) {
	f, ok := ParseFormat(identifier)
	if !ok {
		return "", &UnsupportedTargetError{Identifier: identifier}
	}
	if !f.CanEncode() {
		return "", &UnsupportedTargetError{Identifier: identifier, Format: f}
	}
	return f, nil
}

// Convert transcodes input into the target format with default encoder
// settings. See ConvertWithOptions.
func Convert(input []byte, target string) ([]byte, error) {
	return ConvertWithOptions(input, target, EncodeOptions{})
}

// ConvertWithOptions decodes input and re-encodes it as target. The
// pipeline is four linear steps with one success exit and three distinct
// failure exits: validate the target (UnsupportedTargetError), decode
// (DecodeError), release the input, encode (EncodeError).
//
// Convert takes ownership of input: the engine drops its reference to the
// compressed bytes as soon as the pixel buffer exists, before any encode
// allocation, so peak memory is pixels plus output rather than input plus
// pixels plus output. Callers must not retain or reuse the slice. The
// returned buffer is newly allocated and never aliases the input.
//
// Pixels are normalized to 8-bit non-premultiplied RGBA, 4 bytes per
// pixel, row-major. Output dimensions always equal input dimensions.
func ConvertWithOptions(input []byte, target string, opts EncodeOptions) ([]byte, error) {
	// Step 1: target validation. A bad identifier must not cost a decode.
	f, err := ResolveTarget(target)
	if err != nil {
		return nil, err
	}
	if len(input) == 0 {
		return nil, ErrEmptyInput
	}

	// Step 2: decode the full container into pixels.
	src, name, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnrecognized
		}
		sf, _ := ParseFormat(name)
		return nil, &DecodeError{Format: sf, Err: err}
	}

	// Step 3: release compressed input before encoding starts. From here
	// on only the pixel buffer and the output under construction are
	// resident.
	input = nil
	pixels := toNRGBA(src)
	src = nil

	// Step 4: encode into the target container.
	out, err := encode(pixels, f, opts)
	if err != nil {
		return nil, &EncodeError{Format: f, Err: err}
	}
	return out, nil
}

// toNRGBA normalizes any decoded representation to zero-origin 8-bit
// non-premultiplied RGBA. Non-premultiplied is what keeps lossless round
// trips exact in Go's image model.
func toNRGBA(src image.Image) *image.NRGBA {
	if m, ok := src.(*image.NRGBA); ok && m.Bounds().Min == (image.Point{}) {
		return m
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// encode serializes pixels into the target container. The switch is total
// over the format set: WebP stays as an explicit branch even though
// ResolveTarget already rejects it, and the default branch reports the
// wiring bug loudly instead of falling through.
func encode(m *image.NRGBA, target Format, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	switch target {
	case PNG:
		if err := png.Encode(&buf, m); err != nil {
			return nil, err
		}
	case JPEG:
		q := opts.JPEGQuality
		if q <= 0 || q > 100 {
			q = DefaultJPEGQuality
		}
		if err := jpeg.Encode(&buf, m, &jpeg.Options{Quality: q}); err != nil {
			return nil, err
		}
	case GIF:
		n := opts.GIFColors
		if n <= 1 || n > 256 {
			n = DefaultGIFColors
		}
		// Median-cut quantization with a reserved transparent palette
		// slot, so source transparency survives to the extent GIF's
		// 1-bit alpha can express it. This pass is the expensive one:
		// cost grows with pixel count, unlike the other encoders.
		if err := gif.Encode(&buf, m, &gif.Options{
			NumColors: n,
			Quantizer: quantize.MedianCutQuantizer{AddTransparent: true},
			Drawer:    draw.FloydSteinberg,
		}); err != nil {
			return nil, err
		}
	case BMP:
		if err := bmp.Encode(&buf, m); err != nil {
			return nil, err
		}
	case WebP:
		return nil, &UnsupportedTargetError{Identifier: string(WebP), Format: WebP}
	default:
		return nil, fmt.Errorf("no encoder wired for format %q", string(target))
	}
	return buf.Bytes(), nil
}
