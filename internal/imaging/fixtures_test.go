package imaging

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

// testImage returns a w x h opaque gradient. Adjacent pixels differ, so an
// accidental crop, flip or stride bug fails pixel comparisons.
func testImage(w, h int) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 29),
				G: uint8(y * 47),
				B: uint8((x + y) * 13),
				A: 0xff,
			})
		}
	}
	return m
}

// alphaImage returns a w x h image whose left half is fully transparent
// and right half opaque red.
func alphaImage(w, h int) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := color.NRGBA{R: 0xff, A: 0xff}
			if x < w/2 {
				px = color.NRGBA{}
			}
			m.SetNRGBA(x, y, px)
		}
	}
	return m
}

func pngBytes(t *testing.T, m image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, m))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, m image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, m, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func gifBytes(t *testing.T, m image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, m, nil))
	return buf.Bytes()
}

func bmpBytes(t *testing.T, m image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, m))
	return buf.Bytes()
}

// lsbWriter packs bits least-significant-first, the VP8L stream order.
type lsbWriter struct {
	buf  []byte
	bits uint32
	n    uint
}

func (w *lsbWriter) write(v uint32, n uint) {
	w.bits |= v << w.n
	w.n += n
	for w.n >= 8 {
		w.buf = append(w.buf, byte(w.bits))
		w.bits >>= 8
		w.n -= 8
	}
}

func (w *lsbWriter) close() []byte {
	if w.n > 0 {
		w.buf = append(w.buf, byte(w.bits))
		w.bits, w.n = 0, 0
	}
	return w.buf
}

// webpBytes assembles a lossless WebP by hand, since the toolchain ships
// no WebP encoder. Every pixel carries the same color, expressed with five
// single-symbol prefix codes, so the pixel stream itself needs zero bits
// regardless of dimensions.
func webpBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	require.True(t, w >= 1 && w <= 1<<14 && h >= 1 && h <= 1<<14, "dimensions out of VP8L header range")

	bw := &lsbWriter{}
	bw.write(uint32(w-1), 14)
	bw.write(uint32(h-1), 14)
	alphaHint := uint32(0)
	if c.A != 0xff {
		alphaHint = 1
	}
	bw.write(alphaHint, 1)
	bw.write(0, 3) // stream version
	bw.write(0, 1) // no transforms
	bw.write(0, 1) // no color cache
	bw.write(0, 1) // a single prefix-code group
	// Five prefix codes in stream order green, red, blue, alpha, distance,
	// each in the simple form carrying one 8-bit symbol. A single-symbol
	// code consumes no bits per pixel when read back.
	for _, sym := range [5]uint8{c.G, c.R, c.B, c.A, 0} {
		bw.write(1, 1) // simple code
		bw.write(0, 1) // one symbol
		bw.write(1, 1) // symbol width is 8 bits
		bw.write(uint32(sym), 8)
	}
	payload := append([]byte{0x2f}, bw.close()...)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	pad := len(payload) & 1
	writeUint32LE(&buf, uint32(4+8+len(payload)+pad))
	buf.WriteString("WEBP")
	buf.WriteString("VP8L")
	writeUint32LE(&buf, uint32(len(payload)))
	buf.Write(payload)
	if pad == 1 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func writeUint32LE(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

// pngHeaderOnly fabricates a PNG signature plus an IHDR chunk declaring
// the given dimensions, with no pixel data behind it. Header probes succeed
// on it; a full decode cannot.
func pngHeaderOnly(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // color type RGBA

	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(len(ihdr)))
	copy(hdr[4:], "IHDR")
	buf.Write(hdr[:])
	buf.Write(ihdr)
	crc := crc32.NewIEEE()
	crc.Write([]byte("IHDR"))
	crc.Write(ihdr)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	buf.Write(sum[:])
	return buf.Bytes()
}

// nrgbaAt reads one pixel as non-premultiplied RGBA whatever the decoded
// representation is.
func nrgbaAt(m image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA)
}

// samePixels fails the test unless both images have identical dimensions
// and identical non-premultiplied pixel values.
func samePixels(t *testing.T, want, got image.Image) {
	t.Helper()
	wb, gb := want.Bounds(), got.Bounds()
	require.Equal(t, wb.Dx(), gb.Dx(), "width")
	require.Equal(t, wb.Dy(), gb.Dy(), "height")
	for y := 0; y < wb.Dy(); y++ {
		for x := 0; x < wb.Dx(); x++ {
			w := nrgbaAt(want, wb.Min.X+x, wb.Min.Y+y)
			g := nrgbaAt(got, gb.Min.X+x, gb.Min.Y+y)
			if w != g {
				t.Fatalf("pixel (%d,%d): want %v, got %v", x, y, w, g)
			}
		}
	}
}
