package voxel

// Rasterize marks the grid cell for every atom: the spatial index comes from
// truncating division against the box minimum, the channel from the atom's
// element. Multiple atoms landing in the same cell and channel are
// idempotent. Rasterize is single-pass; after an error the grid contents are
// undefined and the caller must discard the grid.
//
// Fails with UnknownElementError for a symbol outside the alphabet and
// OutOfBoundsError if an index escapes the grid (possible only when the box
// or voxel size did not come from this atom set).
func (g *Grid) Rasterize(atoms []Atom) error {
	for i, a := range atoms {
		ch, ok := g.Alphabet.Index(a.Element)
		if !ok {
			return &UnknownElementError{Symbol: a.Element}
		}
		idx := g.VoxelIndex(a)
		if !g.InBounds(idx[0], idx[1], idx[2]) {
			return &OutOfBoundsError{
				AtomIndex: i,
				Index:     idx,
				Dims:      [3]int{g.Nx, g.Ny, g.Nz},
			}
		}
		g.Cells[g.Idx(idx[0], idx[1], idx[2], ch)] = 1
	}
	return nil
}

// Voxelize is the single-call form: bounding box, allocation, and
// rasterization in one deterministic pass. A grid is returned only on full
// success, so callers never observe partial results.
func Voxelize(atoms []Atom, alphabet *Alphabet, opts Options) (*Grid, error) {
	box, err := ComputeBoundingBox(atoms)
	if err != nil {
		return nil, err
	}
	grid, err := NewGrid(box, alphabet, opts)
	if err != nil {
		return nil, err
	}
	if err := grid.Rasterize(atoms); err != nil {
		return nil, err
	}
	return grid, nil
}
