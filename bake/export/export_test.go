package export

import (
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gekko3d/lightbake/bake/atlas"
	"github.com/gekko3d/lightbake/bake/config"
	"github.com/gekko3d/lightbake/bake/grid"
	"github.com/gekko3d/lightbake/bake/level"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// twoPages fills a red block on page 0 and forces a second page.
func twoPages(t *testing.T) *atlas.Atlas {
	t.Helper()
	a := atlas.New(8, 8)
	red := make([]byte, 2*2*atlas.BytesPerPixel)
	for i := 0; i < len(red); i += 3 {
		red[i] = 255
	}
	_, err := a.Place(2, 2, red)
	require.NoError(t, err)
	_, err = a.Place(8, 8, make([]byte, 8*8*atlas.BytesPerPixel))
	require.NoError(t, err)
	require.Equal(t, 2, a.PageCount())
	return a
}

func decodeFile(t *testing.T, path string, dec func(io.Reader) (image.Image, error)) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := dec(f)
	require.NoError(t, err)
	return img
}

func TestWriteAtlasesFormats(t *testing.T) {
	decoders := map[string]func(io.Reader) (image.Image, error){
		"png":  png.Decode,
		"bmp":  bmp.Decode,
		"tiff": tiff.Decode,
	}
	a := twoPages(t)
	for format, dec := range decoders {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			names, err := WriteAtlases(dir, a.Pages(), AtlasOptions{Format: format, Workers: 2})
			require.NoError(t, err)
			assert.Equal(t, []string{AtlasName(0, format), AtlasName(1, format)}, names)

			img := decodeFile(t, filepath.Join(dir, names[0]), dec)
			assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())
			r, g, b, _ := img.At(1, 1).RGBA()
			assert.Equal(t, [3]uint32{0xffff, 0, 0}, [3]uint32{r, g, b})
			r, _, _, _ = img.At(5, 5).RGBA()
			assert.Zero(t, r)
		})
	}
}

func TestWriteAtlasesPreview(t *testing.T) {
	dir := t.TempDir()
	a := twoPages(t)
	names, err := WriteAtlases(dir, a.Pages(), AtlasOptions{Format: "png", Preview: true, Workers: 4})
	require.NoError(t, err)
	assert.Equal(t, []string{"lightmap_000.png", "lightmap_000_preview.png", "lightmap_001.png", "lightmap_001_preview.png"}, names)

	prev := decodeFile(t, filepath.Join(dir, PreviewName(0)), png.Decode)
	assert.Equal(t, image.Rect(0, 0, 8*PreviewScale, 8*PreviewScale), prev.Bounds())
	r, _, _, _ := prev.At(7, 7).RGBA()
	assert.Equal(t, uint32(0xffff), r, "texel (1,1) covers preview (4..7)")
	r, _, _, _ = prev.At(8, 8).RGBA()
	assert.Zero(t, r)
}

func TestWriteAtlasesReleasesWorkers(t *testing.T) {
	a := twoPages(t)
	before := runtime.NumGoroutine()

	_, err := WriteAtlases(t.TempDir(), a.Pages(), AtlasOptions{Format: "png", Workers: 1})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, 2*time.Second, 10*time.Millisecond, "encoding workers still running")
}

func TestWriteAtlasesErrors(t *testing.T) {
	_, err := WriteAtlases(t.TempDir(), nil, AtlasOptions{Format: "gif"})
	assert.ErrorContains(t, err, "unknown atlas format")

	names, err := WriteAtlases(t.TempDir(), nil, AtlasOptions{Format: "png"})
	require.NoError(t, err)
	assert.Empty(t, names)
}

func bakedRoom() *level.Level {
	b := level.NewBuilder()
	b.AddLeaf(b.AddSector(level.Sector{CeilingHeight: 10, Tag: 4}), level.Box(0, 0, 10, 10)...)
	lvl := b.Level()
	lvl.Root = level.LeafChild(0)
	level.ExtractSurfaces(lvl, nil)
	floor := &lvl.Surfaces[4]
	floor.AtlasIndex, floor.AtlasX, floor.AtlasY = 0, 2, 3
	floor.Width, floor.Height = 2, 2
	floor.UVs = [][2]float32{{0.25, 0.5}, {0.75, 0.5}, {0.75, 1}, {0.25, 1}}
	return lvl
}

func TestWriteSurfaceTable(t *testing.T) {
	lvl := bakedRoom()
	path := filepath.Join(t.TempDir(), "surfaces.csv")
	require.NoError(t, WriteSurfaceTable(path, lvl))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var rows []SurfaceRecord
	require.NoError(t, gocsv.UnmarshalFile(f, &rows))
	require.Len(t, rows, len(lvl.Surfaces))

	for i, row := range rows {
		s := lvl.Surfaces[i]
		assert.Equal(t, i, row.Index)
		assert.Equal(t, s.Type.String(), row.Type)
		assert.Equal(t, s.AtlasIndex, row.Atlas)
		uvs, err := ParseUVs(row.UVs)
		require.NoError(t, err)
		if len(s.UVs) == 0 {
			assert.Empty(t, uvs)
		} else {
			assert.Equal(t, s.UVs, uvs)
		}
	}
	assert.Equal(t, 4, rows[4].Tag)
	assert.Equal(t, 3, rows[4].Y)

	_, err = ParseUVs("0.5;1")
	assert.Error(t, err)
}

func TestWriteGrid(t *testing.T) {
	g, err := grid.New([2]mgl32.Vec3{{0, 0, 0}, {64, 32, 32}}, mgl32.Vec3{32, 32, 32})
	require.NoError(t, err)
	g.Cells[1] = grid.Cell{Marked: true, Shadow: grid.FullSun, Color: mgl32.Vec3{1, 0.5, 0}}

	path := filepath.Join(t.TempDir(), "lightgrid.bin")
	require.NoError(t, WriteGrid(path, g))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var back grid.Grid
	require.NoError(t, back.UnmarshalBinary(data))
	assert.Equal(t, g.Block, back.Block)
	assert.Equal(t, 1, back.MarkedCount())
	assert.Equal(t, grid.FullSun, back.Cells[1].Shadow)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, LuminanceStats{}, Summarize(nil))

	one := Summarize([]float64{0.25})
	assert.Equal(t, 0.25, one.Mean)
	assert.Zero(t, one.StdDev)

	s := Summarize([]float64{10, 3, 1, 7, 5, 2, 9, 4, 8, 6})
	assert.Equal(t, 10, s.Samples)
	assert.Equal(t, 5.5, s.Mean)
	assert.InDelta(t, 3.0277, s.StdDev, 1e-4)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 10.0, s.Max)
	assert.Equal(t, 5.0, s.Median)
	assert.LessOrEqual(t, s.P10, s.Median)
	assert.GreaterOrEqual(t, s.P90, s.Median)
}

func TestLuminanceSamplesOnlyLitTexels(t *testing.T) {
	lvl := bakedRoom()
	a := atlas.New(8, 8)
	_, err := a.Place(1, 1, []byte{0, 0, 0})
	require.NoError(t, err)
	white := make([]byte, 2*2*3)
	for i := range white {
		white[i] = 255
	}
	page := a.Pages()[0]
	for y := 0; y < 2; y++ {
		copy(page.Pix[((3+y)*8+2)*3:], white[y*6:(y+1)*6])
	}

	lum := SurfaceLuminance(lvl, a.Pages())
	require.Len(t, lum, 4)
	for _, v := range lum {
		assert.InDelta(t, 1, v, 1e-9)
	}

	g, err := grid.New([2]mgl32.Vec3{{0, 0, 0}, {32, 0, 0}}, mgl32.Vec3{32, 32, 32})
	require.NoError(t, err)
	g.Cells[0] = grid.Cell{Marked: true, Color: mgl32.Vec3{1, 1, 1}}
	assert.Len(t, GridLuminance(g), 1)
	assert.Nil(t, GridLuminance(nil))
}

func TestManifestRoundTrip(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	m := Manifest{
		BakeID:    NewBakeID(),
		Level:     "map.yaml",
		Settings:  cfg.Bake,
		Counts:    Counts{Surfaces: 6, UsedSurfaces: 5, AtlasPages: 1},
		Luminance: Summarize([]float64{0.2, 0.4}),
		Files:     []string{"lightmap_000.png"},
	}
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, WriteManifest(path, m))

	back, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m, back)
	assert.Len(t, m.BakeID, 36)
	assert.NotEqual(t, m.BakeID, NewBakeID())
}
