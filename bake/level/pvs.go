package level

import (
	"fmt"
	"math/bits"
)

// PVS is a leafCount×leafCount visibility bitset. A nil *PVS treats every
// pair of leaves as mutually visible.
type PVS struct {
	n    int
	bits []uint64
}

func NewPVS(n int) *PVS {
	if n < 0 {
		n = 0
	}
	return &PVS{n: n, bits: make([]uint64, (n*n+63)/64)}
}

// NewFullPVS marks every pair visible.
func NewFullPVS(n int) *PVS {
	p := NewPVS(n)
	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			p.Set(a, b, true)
		}
	}
	return p
}

func (p *PVS) Len() int {
	if p == nil {
		return 0
	}
	return p.n
}

func (p *PVS) Set(a, b int, visible bool) {
	if p == nil || a < 0 || b < 0 || a >= p.n || b >= p.n {
		return
	}
	idx := a*p.n + b
	if visible {
		p.bits[idx/64] |= 1 << (idx % 64)
	} else {
		p.bits[idx/64] &^= 1 << (idx % 64)
	}
}

func (p *PVS) Visible(a, b int) bool {
	if p == nil {
		return true
	}
	if a < 0 || b < 0 || a >= p.n || b >= p.n {
		return true
	}
	idx := a*p.n + b
	return p.bits[idx/64]&(1<<(idx%64)) != 0
}

// Count returns the number of visible pairs.
func (p *PVS) Count() int {
	if p == nil {
		return 0
	}
	total := 0
	for _, w := range p.bits {
		total += bits.OnesCount64(w)
	}
	return total
}

// ParseRows builds a PVS from one '0'/'1' string per leaf.
func ParseRows(rows []string) (*PVS, error) {
	p := NewPVS(len(rows))
	for a, row := range rows {
		if len(row) != len(rows) {
			return nil, fmt.Errorf("pvs row %d: want %d entries, got %d", a, len(rows), len(row))
		}
		for b, c := range row {
			switch c {
			case '1':
				p.Set(a, b, true)
			case '0':
			default:
				return nil, fmt.Errorf("pvs row %d: invalid character %q", a, c)
			}
		}
	}
	return p, nil
}
