package atlas

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
)

var (
	// ErrAtlasFull is returned when a block does not fit even an empty page.
	ErrAtlasFull = errors.New("atlas: block does not fit an empty page")
	// ErrPixelCount is returned when a raster does not match its block size.
	ErrPixelCount = errors.New("atlas: raster size does not match block")
)

// BytesPerPixel is the RGB stride of page buffers.
const BytesPerPixel = 3

// Region is a placed block.
type Region struct {
	Page int
	X, Y int
	W, H int
}

func (r Region) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

func (r Region) Overlaps(o Region) bool {
	return r.Page == o.Page &&
		r.X < o.X+o.W && o.X < r.X+r.W &&
		r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

func (r Region) String() string {
	return fmt.Sprintf("page %d %dx%d@(%d,%d)", r.Page, r.W, r.H, r.X, r.Y)
}

// Page is one fixed-size RGB raster with its skyline: heights[x] is the
// lowest free row in column x.
type Page struct {
	Width, Height int
	Pix           []byte
	heights       []int
	usedArea      int
}

func newPage(w, h int) *Page {
	return &Page{
		Width:   w,
		Height:  h,
		Pix:     make([]byte, w*h*BytesPerPixel),
		heights: make([]int, w),
	}
}

// Frontier returns a copy of the per-column occupied height.
func (p *Page) Frontier() []int {
	return append([]int(nil), p.heights...)
}

// Utilization returns the fraction of the page covered by blocks.
func (p *Page) Utilization() float64 {
	if p.Width <= 0 || p.Height <= 0 {
		return 0
	}
	return float64(p.usedArea) / float64(p.Width*p.Height)
}

// place finds the lowest skyline position for a w×h block, scanning column
// starts left to right and keeping the first of equally low candidates.
func (p *Page) place(w, h int) (x, y int, ok bool) {
	best := p.Height
	x = -1
	for i := 0; i <= p.Width-w; i++ {
		row := 0
		j := 0
		for ; j < w; j++ {
			if p.heights[i+j] >= best {
				break
			}
			if p.heights[i+j] > row {
				row = p.heights[i+j]
			}
		}
		if j == w {
			x, best = i, row
		}
	}
	if x < 0 || best+h > p.Height {
		return -1, -1, false
	}
	for i := 0; i < w; i++ {
		p.heights[x+i] = best + h
	}
	p.usedArea += w * h
	return x, best, true
}

func (p *Page) blit(x, y, w, h int, rgb []byte) {
	stride := w * BytesPerPixel
	for row := 0; row < h; row++ {
		dst := ((y+row)*p.Width + x) * BytesPerPixel
		copy(p.Pix[dst:dst+stride], rgb[row*stride:(row+1)*stride])
	}
}

// Image returns a copy of the page as an RGBA image.
func (p *Page) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			i := (y*p.Width + x) * BytesPerPixel
			img.SetRGBA(x, y, color.RGBA{R: p.Pix[i], G: p.Pix[i+1], B: p.Pix[i+2], A: 255})
		}
	}
	return img
}

// Atlas is an ordered list of pages. Allocate and Place are safe for
// concurrent use; a single lock covers the skyline and the pixel buffers.
type Atlas struct {
	Width, Height int

	mu    sync.Mutex
	pages []*Page
}

func New(width, height int) *Atlas {
	return &Atlas{Width: width, Height: height}
}

// Allocate reserves a w×h block on the first page with room, opening a new
// page when none has any.
func (a *Atlas) Allocate(w, h int) (Region, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocate(w, h)
}

func (a *Atlas) allocate(w, h int) (Region, error) {
	if w <= 0 || h <= 0 || w > a.Width || h > a.Height {
		return Region{}, fmt.Errorf("%w: %dx%d block, %dx%d pages", ErrAtlasFull, w, h, a.Width, a.Height)
	}
	for i, p := range a.pages {
		if x, y, ok := p.place(w, h); ok {
			return Region{Page: i, X: x, Y: y, W: w, H: h}, nil
		}
	}
	p := newPage(a.Width, a.Height)
	x, y, ok := p.place(w, h)
	if !ok {
		return Region{}, fmt.Errorf("%w: %dx%d block", ErrAtlasFull, w, h)
	}
	a.pages = append(a.pages, p)
	return Region{Page: len(a.pages) - 1, X: x, Y: y, W: w, H: h}, nil
}

// Place allocates a block for a w×h RGB raster and copies it in under one
// lock.
func (a *Atlas) Place(w, h int, rgb []byte) (Region, error) {
	if len(rgb) != w*h*BytesPerPixel {
		return Region{}, fmt.Errorf("%w: %d bytes for %dx%d", ErrPixelCount, len(rgb), w, h)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	r, err := a.allocate(w, h)
	if err != nil {
		return Region{}, err
	}
	a.pages[r.Page].blit(r.X, r.Y, w, h, rgb)
	return r, nil
}

// Pages returns the pages allocated so far. Callers must not use it while
// a bake is still placing blocks.
func (a *Atlas) Pages() []*Page {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Page(nil), a.pages...)
}

func (a *Atlas) PageCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pages)
}
