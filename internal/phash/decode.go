package phash

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrImageDecode classifies undecodable or unusable image input.
var ErrImageDecode = errors.New("image decode failed")

// DecodeError reports an image that cannot be fingerprinted. It matches
// ErrImageDecode with errors.Is and is never worth retrying.
type DecodeError struct {
	Name   string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode image"
	if e.Name != "" {
		msg += " " + e.Name
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrImageDecode }

// Decode reads a JPEG, PNG, GIF, BMP, TIFF or WebP image. name is only used
// in error messages.
func Decode(r io.Reader, name string) (image.Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}
	if img.Bounds().Empty() {
		return nil, &DecodeError{Name: name, Reason: fmt.Sprintf("empty %s image", format)}
	}
	return img, nil
}

// DecodeFile opens and decodes the image at path. Open failures are returned
// as plain I/O errors, not decode errors.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	return Decode(f, path)
}
