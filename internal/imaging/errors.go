package imaging

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when an operation receives a zero-length
	// buffer. Checked before any signature sniffing so callers get a more
	// actionable message than "unrecognized".
	ErrEmptyInput = errors.New("image data is empty")

	// ErrUnrecognized is returned when the byte signature matches none of
	// the supported container formats. A signature the sniffer knows but
	// this converter does not ship maps here too; both cases are equally
	// unsupported from the caller's point of view.
	ErrUnrecognized = errors.New("unrecognized image format")
)

// UnsupportedTargetError reports a conversion target that cannot be encoded.
// Format is set when the identifier parsed to a known format that is
// decode-only (WebP); it is empty when the identifier matched nothing.
type UnsupportedTargetError struct {
	Identifier string
	Format     Format
}

func (e *UnsupportedTargetError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("format %q is not supported as a conversion target", string(e.Format))
	}
	return fmt.Sprintf("unknown target format %q", e.Identifier)
}

// DecodeError reports input that carried a recognizable signature but did
// not parse cleanly (truncated body, corrupted container). Distinct from
// ErrUnrecognized: the user-facing message is "this file is corrupted",
// not "this is not an image we recognize".
type DecodeError struct {
	Format Format // source format when the sniffer identified one
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("decoding %s data: %v", string(e.Format), e.Err)
	}
	return fmt.Sprintf("decoding image data: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports a failure while serializing the pixel buffer into the
// target container format.
type EncodeError struct {
	Format Format
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encoding to %s: %v", string(e.Format), e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
