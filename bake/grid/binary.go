package grid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	Magic   = "LGRD"
	Version = 1

	headerSize = 4 + 4 + 3*3*4 + 3*4
)

var ErrBadBlob = errors.New("grid: malformed blob")

// MarshalBinary packs the grid little-endian: magic, version, min, max and
// cell size as float triples, block counts, a marked bitset, then r, g, b
// and shadow bytes for each marked cell in index order.
func (g *Grid) MarshalBinary() ([]byte, error) {
	n := g.Len()
	marked := g.MarkedCount()
	buf := make([]byte, headerSize, headerSize+(n+7)/8+marked*4)

	copy(buf[0:4], Magic)
	binary.LittleEndian.PutUint32(buf[4:8], Version)
	off := 8
	for _, v := range []mgl32.Vec3{g.Min, g.Max, g.CellSize} {
		for a := 0; a < 3; a++ {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v[a]))
			off += 4
		}
	}
	for a := 0; a < 3; a++ {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(int32(g.Block[a])))
		off += 4
	}

	bits := make([]byte, (n+7)/8)
	for i, c := range g.Cells {
		if c.Marked {
			bits[i/8] |= 1 << (i % 8)
		}
	}
	buf = append(buf, bits...)

	for _, c := range g.Cells {
		if !c.Marked {
			continue
		}
		buf = append(buf, Quantize(c.Color.X()), Quantize(c.Color.Y()), Quantize(c.Color.Z()), byte(c.Shadow))
	}
	return buf, nil
}

// UnmarshalBinary restores a grid written by MarshalBinary. Colours come
// back quantized to 1/255.
func (g *Grid) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize || string(data[0:4]) != Magic {
		return fmt.Errorf("%w: missing header", ErrBadBlob)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != Version {
		return fmt.Errorf("%w: version %d", ErrBadBlob, v)
	}
	off := 8
	var vecs [3]mgl32.Vec3
	for k := range vecs {
		for a := 0; a < 3; a++ {
			vecs[k][a] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
		}
	}
	var block [3]int
	for a := 0; a < 3; a++ {
		block[a] = int(int32(binary.LittleEndian.Uint32(data[off : off+4])))
		if block[a] < 0 {
			return fmt.Errorf("%w: negative block size", ErrBadBlob)
		}
		off += 4
	}

	n := block[0] * block[1] * block[2]
	bitsLen := (n + 7) / 8
	if len(data) < off+bitsLen {
		return fmt.Errorf("%w: truncated bitset", ErrBadBlob)
	}
	bits := data[off : off+bitsLen]
	off += bitsLen

	cells := make([]Cell, n)
	for i := range cells {
		if bits[i/8]&(1<<(i%8)) == 0 {
			continue
		}
		if len(data) < off+4 {
			return fmt.Errorf("%w: truncated cell data", ErrBadBlob)
		}
		cells[i] = Cell{
			Marked: true,
			Color:  mgl32.Vec3{float32(data[off]) / 255, float32(data[off+1]) / 255, float32(data[off+2]) / 255},
			Shadow: Shadow(data[off+3]),
		}
		off += 4
	}
	if off != len(data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrBadBlob, len(data)-off)
	}

	g.Min, g.Max, g.CellSize = vecs[0], vecs[1], vecs[2]
	g.Block = block
	g.Cells = cells
	return nil
}

// Quantize maps a [0,1] channel to a byte. Every baked colour is stored
// this way.
func Quantize(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}
