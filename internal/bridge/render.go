package bridge

import (
	"errors"
	"fmt"

	"github.com/imgbridge/imgbridge/internal/guard"
	"github.com/imgbridge/imgbridge/internal/imaging"
)

// RenderError turns a structured pipeline or guard error into the sentence
// shown to end users. The core only carries data; prose is the adapter's
// job, and it lives here so the HTTP, WebSocket and CLI surfaces all speak
// with one voice.
func RenderError(err error) string {
	if err == nil {
		return ""
	}

	var target *imaging.UnsupportedTargetError
	var decode *imaging.DecodeError
	var encode *imaging.EncodeError
	var size *guard.SizeError
	var pixels *guard.MegapixelError

	switch {
	case errors.Is(err, imaging.ErrEmptyInput):
		return "The file is empty: no image data was provided."
	case errors.Is(err, imaging.ErrUnrecognized):
		return "This file is not an image format the converter recognizes."
	case errors.As(err, &target):
		if target.Format != "" {
			return fmt.Sprintf("Images cannot be converted to %s; it is supported for reading only.", target.Format)
		}
		return fmt.Sprintf("%q is not a recognized target format.", target.Identifier)
	case errors.As(err, &decode):
		if decode.Format != "" {
			return fmt.Sprintf("This %s file appears to be corrupted and could not be decoded.", decode.Format)
		}
		return "This image appears to be corrupted and could not be decoded."
	case errors.As(err, &encode):
		return fmt.Sprintf("Encoding the image as %s failed.", encode.Format)
	case errors.As(err, &size):
		return fmt.Sprintf("The file is too large: %s.", size.Error())
	case errors.As(err, &pixels):
		return fmt.Sprintf("The image is too large: %s.", pixels.Error())
	case errors.Is(err, ErrClosed):
		return "The converter is shutting down; please retry."
	default:
		return err.Error()
	}
}
