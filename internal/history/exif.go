package history

import (
	"bytes"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// CaptureTime extracts the EXIF capture timestamp (DateTimeOriginal, with
// the usual fallbacks) from JPEG bytes. Conversions strip metadata when
// the container changes, so the capture time is preserved on the history
// row instead. Non-JPEG sources, images without EXIF and malformed EXIF
// all yield ok == false; recording history never fails over metadata.
func CaptureTime(data []byte) (time.Time, bool) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return time.Time{}, false
	}
	t, err := x.DateTime()
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
