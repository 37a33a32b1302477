package imaging

import (
	"fmt"
	"net/http"
)

// sniffFormats maps the content sniffer's MIME identifications onto the
// closed format set. The sniffer understands more container types than the
// converter ships (ICO, audio/video, archives, text); anything outside
// this table is reported as unrecognized.
var sniffFormats = map[string]Format{
	"image/png":  PNG,
	"image/jpeg": JPEG,
	"image/webp": WebP,
	"image/gif":  GIF,
	"image/bmp":  BMP,
}

// Detect identifies the container format of raw image bytes by content
// alone; filenames and extensions play no part. At most the first 512
// bytes are examined, so the cost is constant in file size.
//
// A zero-length buffer fails with ErrEmptyInput before any sniffing. A
// signature outside the supported set fails with ErrUnrecognized whether
// the sniffer matched some other container or matched nothing; the sniffed
// MIME rides along in the error text for diagnostics.
func Detect(input []byte) (Format, error) {
	if len(input) == 0 {
		return "", ErrEmptyInput
	}
	mime := http.DetectContentType(input)
	f, ok := sniffFormats[mime]
	if !ok {
		return "", fmt.Errorf("%w (content sniffed as %s)", ErrUnrecognized, mime)
	}
	return f, nil
}
