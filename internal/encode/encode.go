// Package encode writes rendered frames to animation files. The container
// is chosen by the output extension.
package encode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for output extensions no encoder handles.
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// ErrMissingOutputDir is returned when the output directory does not exist.
	ErrMissingOutputDir = errors.New("output directory does not exist")

	// ErrEncoderUnavailable is returned when an external encoder is not installed.
	ErrEncoderUnavailable = errors.New("encoder unavailable")
)

// Output formats.
const (
	FormatGIF  = "gif"
	FormatPNG  = "png"
	FormatMP4  = "mp4"
	FormatWebM = "webm"
)

// Encoder appends frames to an output file. Close finishes the file; frames
// written before a failure or cancellation stay readable.
type Encoder interface {
	Encode(ctx context.Context, frame image.Image) error
	Close() error
}

// Format returns the output format of path.
func Format(path string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case FormatGIF, FormatPNG, FormatMP4, FormatWebM:
		return ext, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// Check validates path without creating anything: the format must be known
// and the directory must exist.
func Check(path string) (string, error) {
	format, err := Format(path)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrMissingOutputDir, dir)
	}
	if format == FormatMP4 || format == FormatWebM {
		if _, err := lookPath(ffmpegBinary); err != nil {
			return "", fmt.Errorf("%w: %s not found: %v", ErrEncoderUnavailable, ffmpegBinary, err)
		}
	}
	return format, nil
}

// New opens an encoder for path at fps frames per second.
func New(ctx context.Context, path string, fps int) (Encoder, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("invalid frame rate %d", fps)
	}
	format, err := Check(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatGIF:
		return NewGIF(ctx, path, fps), nil
	case FormatPNG:
		return NewPNGSequence(path), nil
	default:
		return NewFFmpeg(path, fps, format)
	}
}
