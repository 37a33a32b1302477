package imaging

// Format identifies one of the supported image container formats. The set
// is closed: every switch over it lists all five values, and the mandatory
// default branch fails loudly instead of falling through, so adding a
// format is a visible change at every decision point.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	WebP Format = "webp"
	GIF  Format = "gif"
	BMP  Format = "bmp"
)

// ParseFormat maps an external identifier onto a Format. Matching is
// case-sensitive and exact over the five lowercase identifiers; there are
// no aliases ("jpg" is not accepted) and no extension-based fallback.
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "png":
		return PNG, true
	case "jpeg":
		return JPEG, true
	case "webp":
		return WebP, true
	case "gif":
		return GIF, true
	case "bmp":
		return BMP, true
	}
	return "", false
}

// String returns the external identifier, the exact inverse of ParseFormat.
func (f Format) String() string { return string(f) }

// CanDecode reports whether the converter can decode this format. True for
// every supported format.
func (f Format) CanDecode() bool {
	switch f {
	case PNG, JPEG, WebP, GIF, BMP:
		return true
	}
	return false
}

// CanEncode reports whether this format is a valid conversion target. WebP
// is decode-only: the available native encoders were judged not
// production-ready, so the toolchain ships no WebP encoder at all.
func (f Format) CanEncode() bool {
	switch f {
	case PNG, JPEG, GIF, BMP:
		return true
	case WebP:
		return false
	}
	return false
}

// MIME returns the canonical MIME type for the format.
func (f Format) MIME() string {
	switch f {
	case PNG:
		return "image/png"
	case JPEG:
		return "image/jpeg"
	case WebP:
		return "image/webp"
	case GIF:
		return "image/gif"
	case BMP:
		return "image/bmp"
	}
	return "application/octet-stream"
}

// Ext returns the conventional filename extension, dot included.
func (f Format) Ext() string {
	switch f {
	case PNG:
		return ".png"
	case JPEG:
		return ".jpeg"
	case WebP:
		return ".webp"
	case GIF:
		return ".gif"
	case BMP:
		return ".bmp"
	}
	return ""
}

// Formats returns the supported formats in stable listing order.
func Formats() []Format {
	return []Format{PNG, JPEG, WebP, GIF, BMP}
}

// FormatInfo describes one format for listing surfaces.
type FormatInfo struct {
	Identifier      string `json:"identifier"`
	MIME            string `json:"mime"`
	Ext             string `json:"ext"`
	CanDecode       bool   `json:"can_decode"`
	CanEncode       bool   `json:"can_encode"`
	SupportsAlpha   bool   `json:"supports_alpha"`
	EncodeExpensive bool   `json:"encode_expensive"`
}

// ListInfo returns the capability table for every supported format.
// EncodeExpensive marks GIF, whose palette quantization pass costs far more
// CPU than the other encoders; callers driving a UI can warn up front.
func ListInfo() []FormatInfo {
	infos := make([]FormatInfo, 0, len(Formats()))
	for _, f := range Formats() {
		infos = append(infos, FormatInfo{
			Identifier:      f.String(),
			MIME:            f.MIME(),
			Ext:             f.Ext(),
			CanDecode:       f.CanDecode(),
			CanEncode:       f.CanEncode(),
			SupportsAlpha:   f != JPEG,
			EncodeExpensive: f == GIF,
		})
	}
	return infos
}
