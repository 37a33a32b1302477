package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clone copies fixture bytes before each Convert call, since Convert takes
// ownership of its input.
func clone(data []byte) []byte {
	return append([]byte(nil), data...)
}

func TestConvertMatrix(t *testing.T) {
	const w, h = 16, 10
	img := testImage(w, h)
	sources := []struct {
		format Format
		data   []byte
	}{
		{PNG, pngBytes(t, img)},
		{JPEG, jpegBytes(t, img)},
		{GIF, gifBytes(t, img)},
		{BMP, bmpBytes(t, img)},
		{WebP, webpBytes(t, w, h, color.NRGBA{R: 40, G: 80, B: 120, A: 0xff})},
	}
	targets := []Format{PNG, JPEG, GIF, BMP}

	for _, src := range sources {
		for _, dst := range targets {
			t.Run(string(src.format)+"_to_"+string(dst), func(t *testing.T) {
				out, err := Convert(clone(src.data), dst.String())
				require.NoError(t, err)
				require.NotEmpty(t, out)

				got, err := Detect(out)
				require.NoError(t, err)
				assert.Equal(t, dst, got)

				d, err := Probe(out)
				require.NoError(t, err)
				assert.Equal(t, uint32(w), d.Width, "width preserved")
				assert.Equal(t, uint32(h), d.Height, "height preserved")
			})
		}
	}
}

func TestConvertOnePixel(t *testing.T) {
	img := testImage(1, 1)
	sources := []struct {
		format Format
		data   []byte
	}{
		{PNG, pngBytes(t, img)},
		{JPEG, jpegBytes(t, img)},
		{GIF, gifBytes(t, img)},
		{BMP, bmpBytes(t, img)},
		{WebP, webpBytes(t, 1, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 0xff})},
	}
	for _, src := range sources {
		for _, dst := range []Format{PNG, JPEG, GIF, BMP} {
			out, err := Convert(clone(src.data), dst.String())
			require.NoError(t, err, "%s to %s", src.format, dst)
			d, err := Probe(out)
			require.NoError(t, err)
			assert.Equal(t, uint32(1), d.Width)
			assert.Equal(t, uint32(1), d.Height)
		}
	}
}

func TestConvertPNGRoundTripExact(t *testing.T) {
	t.Run("opaque", func(t *testing.T) {
		src := testImage(9, 7)
		out, err := Convert(pngBytes(t, src), "png")
		require.NoError(t, err)
		decoded, _, err := image.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		samePixels(t, src, decoded)
	})
	t.Run("with alpha", func(t *testing.T) {
		src := alphaImage(10, 6)
		out, err := Convert(pngBytes(t, src), "png")
		require.NoError(t, err)
		decoded, _, err := image.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		samePixels(t, src, decoded)
	})
}

func TestConvertBMPPNGLossless(t *testing.T) {
	src := testImage(13, 5)

	asPNG, err := Convert(bmpBytes(t, src), "png")
	require.NoError(t, err)
	decoded, _, err := image.Decode(bytes.NewReader(asPNG))
	require.NoError(t, err)
	samePixels(t, src, decoded)

	backToBMP, err := Convert(clone(asPNG), "bmp")
	require.NoError(t, err)
	decoded, _, err = image.Decode(bytes.NewReader(backToBMP))
	require.NoError(t, err)
	samePixels(t, src, decoded)
}

func TestConvertWebPAlphaToPNGExact(t *testing.T) {
	want := color.NRGBA{R: 40, G: 80, B: 120, A: 128}
	out, err := Convert(webpBytes(t, 7, 3, want), "png")
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	b := decoded.Bounds()
	assert.Equal(t, 7, b.Dx())
	assert.Equal(t, 3, b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			require.Equal(t, want, nrgbaAt(decoded, x, y), "pixel (%d,%d)", x, y)
		}
	}
}

func TestConvertAlphaPNGToGIFKeepsTransparency(t *testing.T) {
	src := alphaImage(16, 8)
	out, err := Convert(pngBytes(t, src), "gif")
	require.NoError(t, err)

	decoded, err := gif.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	// A pixel transparent in the source must decode transparent.
	_, _, _, a := decoded.At(2, 3).RGBA()
	assert.Zero(t, a, "transparent source pixel")
	// An opaque pixel must stay opaque.
	_, _, _, a = decoded.At(13, 3).RGBA()
	assert.Equal(t, uint32(0xffff), a, "opaque source pixel")
}

func TestConvertJPEGOutputStartsWithSOI(t *testing.T) {
	out, err := Convert(pngBytes(t, testImage(100, 100)), "jpeg")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(out), 2)
	assert.Equal(t, []byte{0xff, 0xd8}, out[:2])
}

func TestConvertDeepColorPNG(t *testing.T) {
	// 16-bit channels collapse to the 8-bit pixel model without error.
	src := image.NewNRGBA64(image.Rect(0, 0, 5, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 5; x++ {
			src.SetNRGBA64(x, y, color.NRGBA64{
				R: uint16(x * 13000),
				G: uint16(y * 16000),
				B: 0x8000,
				A: 0xffff,
			})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out, err := Convert(buf.Bytes(), "png")
	require.NoError(t, err)
	d, err := Probe(out)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), d.Width)
	assert.Equal(t, uint32(4), d.Height)
}

func TestResolveTarget(t *testing.T) {
	f, err := ResolveTarget("jpeg")
	require.NoError(t, err)
	assert.Equal(t, JPEG, f)

	_, err = ResolveTarget("webp")
	var ut *UnsupportedTargetError
	require.ErrorAs(t, err, &ut)
	assert.Equal(t, WebP, ut.Format)

	_, err = ResolveTarget("avif")
	require.ErrorAs(t, err, &ut)
	assert.Equal(t, "avif", ut.Identifier)
	assert.Equal(t, Format(""), ut.Format)
}

func TestConvertTargetValidation(t *testing.T) {
	valid := pngBytes(t, testImage(4, 4))
	cases := []struct {
		target     string
		wantFormat Format
	}{
		{"avif", ""},
		{"notaformat", ""},
		{"PNG", ""},
		{"jpg", ""},
		{"", ""},
		{"webp", WebP},
	}
	for _, tc := range cases {
		name := tc.target
		if name == "" {
			name = "blank"
		}
		t.Run(name, func(t *testing.T) {
			_, err := Convert(clone(valid), tc.target)
			var ut *UnsupportedTargetError
			require.ErrorAs(t, err, &ut)
			assert.Equal(t, tc.target, ut.Identifier)
			assert.Equal(t, tc.wantFormat, ut.Format)
		})
	}

	// The unknown-identifier and decode-only rejections must stay
	// distinguishable in their messages.
	_, errUnknown := Convert(clone(valid), "avif")
	_, errDecodeOnly := Convert(clone(valid), "webp")
	assert.NotEqual(t, errUnknown.Error(), errDecodeOnly.Error())
}

func TestConvertValidatesTargetBeforeInput(t *testing.T) {
	// A bad target wins over bad input: validation precedes any look at
	// the bytes.
	var ut *UnsupportedTargetError

	_, err := Convert(nil, "avif")
	require.ErrorAs(t, err, &ut)

	_, err = Convert([]byte("garbage"), "notaformat")
	require.ErrorAs(t, err, &ut)
}

func TestConvertEmptyInput(t *testing.T) {
	_, err := Convert(nil, "png")
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = Convert([]byte{}, "jpeg")
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestConvertUnrecognizedInput(t *testing.T) {
	_, err := Convert([]byte{0x01, 0x02, 0x03, 0x9a, 0x55}, "png")
	require.ErrorIs(t, err, ErrUnrecognized)
}

func TestConvertTruncatedInput(t *testing.T) {
	t.Run("jpeg", func(t *testing.T) {
		data := jpegBytes(t, testImage(64, 64))
		_, err := Convert(data[:100], "png")
		var dec *DecodeError
		require.ErrorAs(t, err, &dec)
		assert.Equal(t, JPEG, dec.Format)
		assert.NotErrorIs(t, err, ErrUnrecognized)
	})
	t.Run("png", func(t *testing.T) {
		data := pngBytes(t, testImage(32, 32))
		_, err := Convert(data[:len(data)/2], "jpeg")
		var dec *DecodeError
		require.ErrorAs(t, err, &dec)
		assert.Equal(t, PNG, dec.Format)
	})
}

func TestConvertWithOptionsQuality(t *testing.T) {
	img := testImage(64, 48)
	data := pngBytes(t, img)

	low, err := ConvertWithOptions(clone(data), "jpeg", EncodeOptions{JPEGQuality: 10})
	require.NoError(t, err)
	high, err := ConvertWithOptions(clone(data), "jpeg", EncodeOptions{JPEGQuality: 95})
	require.NoError(t, err)
	assert.Less(t, len(low), len(high), "lower quality must compress smaller")
}

func TestConvertWithOptionsClampsOutOfRange(t *testing.T) {
	data := pngBytes(t, testImage(8, 8))
	for _, q := range []int{-5, 0, 101, 100000} {
		out, err := ConvertWithOptions(clone(data), "jpeg", EncodeOptions{JPEGQuality: q})
		require.NoError(t, err, "quality %d", q)
		require.NotEmpty(t, out)
	}
	for _, n := range []int{-1, 0, 1, 257} {
		out, err := ConvertWithOptions(clone(data), "gif", EncodeOptions{GIFColors: n})
		require.NoError(t, err, "colors %d", n)
		require.NotEmpty(t, out)
	}
}

func TestConvertGIFColorCeiling(t *testing.T) {
	out, err := ConvertWithOptions(pngBytes(t, testImage(32, 32)), "gif", EncodeOptions{GIFColors: 4})
	require.NoError(t, err)
	decoded, err := gif.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	p, ok := decoded.(*image.Paletted)
	require.True(t, ok)
	assert.LessOrEqual(t, len(p.Palette), 4)
}

func TestToNRGBANormalizesOrigin(t *testing.T) {
	src := testImage(10, 10).SubImage(image.Rect(2, 2, 8, 8)).(*image.NRGBA)
	m := toNRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 6, 6), m.Bounds())
	assert.Equal(t, nrgbaAt(src, 2, 2), nrgbaAt(m, 0, 0))
	assert.Equal(t, nrgbaAt(src, 7, 7), nrgbaAt(m, 5, 5))
}
