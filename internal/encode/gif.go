package encode

import (
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"math"
	"os"
	"sync"

	"github.com/OCAP2/trajectory-animator/internal/queue"
)

// GIF quantises frames to the Plan9 palette on a worker goroutine and
// writes the file on Close.
type GIF struct {
	path  string
	delay int

	frames *queue.Queue[image.Image]
	out    gif.GIF
	err    error
	wg     sync.WaitGroup
	once   sync.Once
}

// NewGIF starts the quantising worker. It stops when ctx ends; frames queued
// after that are quantised by Close.
func NewGIF(ctx context.Context, path string, fps int) *GIF {
	g := &GIF{
		path:   path,
		delay:  GIFDelay(fps),
		frames: queue.New[image.Image](),
	}
	g.wg.Add(1)
	go g.work(ctx)
	return g
}

// GIFDelay converts a frame rate to the GIF delay in hundredths of a second.
// Browsers clamp delays under 2, so that is the floor.
func GIFDelay(fps int) int {
	return max(2, int(math.Round(100/float64(fps))))
}

func (g *GIF) work(ctx context.Context) {
	defer g.wg.Done()
	for {
		img, ok, err := g.frames.Next(ctx)
		if err != nil || !ok {
			g.drain()
			return
		}
		g.add(img)
	}
}

// drain quantises whatever is still queued without blocking.
func (g *GIF) drain() {
	for _, img := range g.frames.GetAndEmpty() {
		g.add(img)
	}
}

func (g *GIF) add(img image.Image) {
	g.out.Image = append(g.out.Image, paletted(img))
	g.out.Delay = append(g.out.Delay, g.delay)
}

func paletted(img image.Image) *image.Paletted {
	if p, ok := img.(*image.Paletted); ok {
		return p
	}
	b := img.Bounds()
	p := image.NewPaletted(b, palette.Plan9)
	draw.Draw(p, b, img, b.Min, draw.Src)
	return p
}

// Encode queues a frame.
func (g *GIF) Encode(_ context.Context, frame image.Image) error {
	if err := g.frames.Push(frame); err != nil {
		return fmt.Errorf("gif: %w", err)
	}
	return nil
}

// Pending is the number of frames waiting for the worker.
func (g *GIF) Pending() int {
	return g.frames.Len()
}

// Close drains the queue and writes the file.
func (g *GIF) Close() error {
	g.once.Do(func() {
		g.frames.Close()
		g.wg.Wait()
		// frames pushed after a cancelled worker returned
		g.drain()

		if len(g.out.Image) == 0 {
			g.err = fmt.Errorf("gif: no frames to write")
			return
		}
		f, err := os.Create(g.path)
		if err != nil {
			g.err = err
			return
		}
		defer f.Close()
		if err := gif.EncodeAll(f, &g.out); err != nil {
			g.err = fmt.Errorf("gif: %w", err)
		}
	})
	return g.err
}
