package encode

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os/exec"
	"strconv"
)

const ffmpegBinary = "ffmpeg"

var lookPath = exec.LookPath

// FFmpeg pipes PNG frames into an ffmpeg process.
type FFmpeg struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	buf    *bufio.Writer
	stderr bytes.Buffer
	closed bool
}

// FFmpegArgs returns the ffmpeg arguments for format.
func FFmpegArgs(path string, fps int, format string) []string {
	args := []string{
		"-y", "-loglevel", "error",
		"-f", "image2pipe", "-framerate", strconv.Itoa(fps), "-i", "-",
	}
	switch format {
	case FormatMP4:
		args = append(args, "-c:v", "libx264", "-pix_fmt", "yuv420p", "-movflags", "+faststart")
	case FormatWebM:
		args = append(args, "-c:v", "libvpx-vp9", "-b:v", "0", "-crf", "30", "-pix_fmt", "yuv420p")
	}
	// even dimensions for yuv420p
	args = append(args, "-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2", path)
	return args
}

// NewFFmpeg starts ffmpeg writing to path.
func NewFFmpeg(path string, fps int, format string) (*FFmpeg, error) {
	bin, err := lookPath(ffmpegBinary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", ErrEncoderUnavailable, ffmpegBinary, err)
	}

	// not CommandContext: a cancelled render still closes stdin so ffmpeg
	// finalises the frames it has
	e := &FFmpeg{cmd: exec.Command(bin, FFmpegArgs(path, fps, format)...)}
	e.cmd.Stderr = &e.stderr
	if e.stdin, err = e.cmd.StdinPipe(); err != nil {
		return nil, err
	}
	if err := e.cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}
	e.buf = bufio.NewWriterSize(e.stdin, 1<<20)
	return e, nil
}

// Encode writes one frame to ffmpeg.
func (e *FFmpeg) Encode(_ context.Context, frame image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(e.buf, frame); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, e.stderr.String())
	}
	return nil
}

// Close flushes the pipe and waits for ffmpeg to finish the file.
func (e *FFmpeg) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	flushErr := e.buf.Flush()
	e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, e.stderr.String())
	}
	return flushErr
}
