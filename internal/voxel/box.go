package voxel

import (
	"fmt"
	"math"
)

// Box is an axis-aligned bounding box with integral corners. Min is
// inclusive and Max is exclusive: every contained atom satisfies
// Min[a] <= pos[a] < Max[a] on each axis.
type Box struct {
	Min [3]float64
	Max [3]float64
}

// Size returns the box extent per axis in physical units.
func (b Box) Size() [3]float64 {
	return [3]float64{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// ComputeBoundingBox finds the component-wise min and max over all atom
// positions, then floors the minimum and ceils the maximum so every atom
// center discretizes to an in-range voxel index. When the maximum coordinate
// is exactly integral, ceil alone would leave that atom on the exclusive
// upper boundary, so the corner moves out one more unit to keep the atom
// strictly inside.
//
// Fails with ErrNoAtoms on an empty set and ErrNonFiniteCoordinate on NaN
// or infinite positions.
func ComputeBoundingBox(atoms []Atom) (Box, error) {
	if len(atoms) == 0 {
		return Box{}, ErrNoAtoms
	}

	lo := atoms[0].Position()
	hi := lo
	for i, a := range atoms {
		p := a.Position()
		for c := 0; c < 3; c++ {
			if math.IsNaN(p[c]) || math.IsInf(p[c], 0) {
				return Box{}, fmt.Errorf("atom %d: %w", i, ErrNonFiniteCoordinate)
			}
			if p[c] < lo[c] {
				lo[c] = p[c]
			}
			if p[c] > hi[c] {
				hi[c] = p[c]
			}
		}
	}

	var b Box
	for c := 0; c < 3; c++ {
		b.Min[c] = math.Floor(lo[c])
		b.Max[c] = math.Ceil(hi[c])
		if b.Max[c] == hi[c] {
			b.Max[c]++
		}
	}
	return b, nil
}
