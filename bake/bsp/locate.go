package bsp

import (
	"github.com/gekko3d/lightbake/bake/level"
	"github.com/go-gl/mathgl/mgl32"
)

// PointInLeaf walks the tree from the root and returns the leaf whose
// region holds (x, y). ok is false without a tree, or when the point falls
// outside the outline of the leaf it reaches (outside the map).
func PointInLeaf(lvl *level.Level, x, y float32) (int, bool) {
	leaf, ok := Locate(lvl, x, y)
	if !ok || !Contains(lvl, leaf, x, y) {
		return leaf, false
	}
	return leaf, true
}

// Locate is PointInLeaf without the outline check: every point in the plane
// maps to some leaf.
func Locate(lvl *level.Level, x, y float32) (int, bool) {
	if lvl == nil {
		return -1, false
	}
	c := lvl.Root
	for depth := 0; c.Valid() && !c.Leaf; depth++ {
		n, ok := lvl.Node(c.Index)
		if !ok || depth > len(lvl.Nodes) {
			return -1, false
		}
		c = n.Children[n.PointSide(x, y)]
	}
	if !c.Valid() {
		return -1, false
	}
	if _, ok := lvl.Leaf(c.Index); !ok {
		return -1, false
	}
	return c.Index, true
}

// Contains reports whether (x, y) lies inside or on the convex outline of
// leaf i.
func Contains(lvl *level.Level, i int, x, y float32) bool {
	poly := lvl.LeafPolygon(i)
	if len(poly) < 3 {
		return false
	}
	p := mgl32.Vec2{x, y}
	for e, a := range poly {
		d := poly[(e+1)%len(poly)].Sub(a)
		l := d.Len()
		if l == 0 {
			continue
		}
		if (d.X()*(p.Y()-a.Y())-d.Y()*(p.X()-a.X()))/l < -sideEps {
			return false
		}
	}
	return true
}
