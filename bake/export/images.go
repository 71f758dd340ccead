// Package export writes bake results to disk: atlas images, the surface
// table, the light grid blob and a manifest.
package export

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/gekko3d/lightbake/bake/atlas"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// PreviewScale is the nearest-neighbour upscale applied to debug previews.
const PreviewScale = 4

// Encoder writes one image in a fixed format.
type Encoder func(w io.Writer, img image.Image) error

var encoders = map[string]Encoder{
	"png": png.Encode,
	"bmp": bmp.Encode,
	"tiff": func(w io.Writer, img image.Image) error {
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	},
}

// AtlasName is the file name of atlas page i.
func AtlasName(i int, format string) string {
	return fmt.Sprintf("lightmap_%03d.%s", i, format)
}

// PreviewName is the file name of the debug preview of page i.
func PreviewName(i int) string {
	return fmt.Sprintf("lightmap_%03d_preview.png", i)
}

// AtlasOptions controls WriteAtlases.
type AtlasOptions struct {
	Format  string
	Preview bool
	Workers int
}

// WriteAtlases encodes every page into dir concurrently and returns the
// written file names in page order.
func WriteAtlases(dir string, pages []*atlas.Page, opts AtlasOptions) ([]string, error) {
	enc, ok := encoders[opts.Format]
	if !ok {
		return nil, fmt.Errorf("unknown atlas format %q", opts.Format)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	if len(pages) == 0 {
		return nil, nil
	}

	workers := max(opts.Workers, 1)
	pool := worker.NewDynamicWorkerPool(workers, 256, 1*time.Second)

	names := make([][]string, len(pages))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for i, page := range pages {
		wg.Add(1)
		idx, pg := i, page
		pool.SubmitTask(worker.Task{
			ID: idx,
			Do: func() (any, error) {
				defer wg.Done()

				img := pg.Image()
				name := AtlasName(idx, opts.Format)
				if err := writeImage(filepath.Join(dir, name), img, enc); err != nil {
					fail(fmt.Errorf("page %d: %w", idx, err))
					return nil, err
				}
				written := []string{name}
				if opts.Preview {
					prev := PreviewName(idx)
					if err := writeImage(filepath.Join(dir, prev), upscale(img, PreviewScale), png.Encode); err != nil {
						fail(fmt.Errorf("page %d preview: %w", idx, err))
						return nil, err
					}
					written = append(written, prev)
				}
				names[idx] = written
				return nil, nil
			},
		})
	}
	wg.Wait()
	// workers only exit on a stop signal
	pool.Stop()

	if firstErr != nil {
		return nil, firstErr
	}
	var out []string
	for _, n := range names {
		out = append(out, n...)
	}
	return out, nil
}

func writeImage(path string, img image.Image, enc Encoder) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := enc(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func upscale(src image.Image, scale int) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
