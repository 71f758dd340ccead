package level

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoRoomYAML = `
vertices:
  - [0, 0]
  - [10, 0]
  - [10, 10]
  - [0, 10]
  - [20, 0]
  - [20, 10]
sectors:
  - {floor: 0, ceiling: 16}
  - {floor: 0, ceiling: 16, sky: true, tag: 4}
leaves:
  - sector: 0
    vertices: [0, 1, 2, 3]
    line_tags: [0, 0, 0, 7]
  - sector: 1
    vertices: [2, 5, 4, 1]
things:
  - {type: 9000, x: 5, y: 5}
pvs:
  - "11"
  - "10"
`

func TestParseLevel(t *testing.T) {
	lvl, err := Parse([]byte(twoRoomYAML))
	require.NoError(t, err)

	assert.Len(t, lvl.Vertices, 6)
	require.Len(t, lvl.Sectors, 2)
	assert.True(t, lvl.Sectors[1].SkyCeiling)
	assert.Equal(t, 4, lvl.Sectors[1].Tag)
	require.Len(t, lvl.Things, 1)
	assert.Equal(t, 9000, lvl.Things[0].Type)
	assert.False(t, lvl.Root.Valid(), "no nodes in the file")

	// leaf 1 was clockwise and is flipped
	assert.Greater(t, SignedArea(lvl.LeafPolygon(1)), float32(0))
	assert.Equal(t, 7, lvl.Leaves[0].LineTag(3))

	require.NotNil(t, lvl.PVS)
	assert.True(t, lvl.PVS.Visible(1, 0))
	assert.False(t, lvl.PVS.Visible(1, 1))
	assert.Equal(t, float32(16), lvl.Leaves[1].Bounds[1].Z())
}

func TestParseRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"vertex out of range", "vertices: [[0,0],[1,0],[1,1]]\nsectors: [{floor: 0, ceiling: 1}]\nleaves: [{sector: 0, vertices: [0, 1, 9]}]\n"},
		{"inverted sector", "sectors: [{floor: 10, ceiling: 1}]\n"},
		{"tag count", "vertices: [[0,0],[1,0],[1,1]]\nsectors: [{floor: 0, ceiling: 1}]\nleaves: [{sector: 0, vertices: [0, 1, 2], line_tags: [1]}]\n"},
		{"pvs row width", "pvs: [\"1\", \"11\"]\n"},
		{"pvs character", "pvs: [\"x\"]\n"},
		{"not yaml", "vertices: [oops"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestReverseLeafKeepsTagsOnEdges(t *testing.T) {
	// clockwise square with the tag on the edge from vertex 3 to vertex 0
	lvl, err := Parse([]byte(`
vertices: [[0,0],[0,10],[10,10],[10,0]]
sectors: [{floor: 0, ceiling: 8}]
leaves:
  - sector: 0
    vertices: [0, 1, 2, 3]
    line_tags: [0, 0, 0, 5]
`))
	require.NoError(t, err)
	leaf := lvl.Leaves[0]
	for e, tag := range leaf.LineTags {
		a := leaf.Vertices[e]
		b := leaf.Vertices[(e+1)%len(leaf.Vertices)]
		if tag == 5 {
			assert.ElementsMatch(t, []int{3, 0}, []int{a, b})
		}
	}
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.yaml")
	require.NoError(t, os.WriteFile(path, []byte(twoRoomYAML), 0o644))
	lvl, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, lvl.Leaves, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPVSBits(t *testing.T) {
	var nilPVS *PVS
	assert.True(t, nilPVS.Visible(0, 7), "absent PVS never prunes")

	p := NewPVS(70)
	p.Set(69, 3, true)
	assert.True(t, p.Visible(69, 3))
	assert.False(t, p.Visible(3, 69))
	assert.Equal(t, 1, p.Count())
	p.Set(69, 3, false)
	assert.Equal(t, 0, p.Count())

	assert.Equal(t, 4, NewFullPVS(2).Count())
}
