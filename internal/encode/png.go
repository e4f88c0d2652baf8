package encode

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
)

// PNGSequence writes every frame to its own numbered file next to the
// output path: "orbit.png" becomes "orbit_00000.png", "orbit_00001.png", ...
type PNGSequence struct {
	prefix string
	n      int
}

// NewPNGSequence creates the sequence writer.
func NewPNGSequence(path string) *PNGSequence {
	return &PNGSequence{prefix: strings.TrimSuffix(path, ".png")}
}

// Path returns the file name of frame i.
func (s *PNGSequence) Path(i int) string {
	return fmt.Sprintf("%s_%05d.png", s.prefix, i)
}

// Encode writes the next frame.
func (s *PNGSequence) Encode(_ context.Context, frame image.Image) error {
	f, err := os.Create(s.Path(s.n))
	if err != nil {
		return err
	}
	if err := png.Encode(f, frame); err != nil {
		f.Close()
		return fmt.Errorf("png frame %d: %w", s.n, err)
	}
	s.n++
	return f.Close()
}

// Written is the number of frames written.
func (s *PNGSequence) Written() int {
	return s.n
}

// Close is a no-op; every frame is already on disk.
func (s *PNGSequence) Close() error {
	return nil
}
