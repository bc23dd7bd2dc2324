package voxel

// Atom is a single atom record: a position in Angstroms plus its element
// symbol. Atoms are immutable values; the voxelizer never modifies them.
type Atom struct {
	X, Y, Z float64 // position in Å
	Element string  // element symbol, e.g. "C"
}

// Position returns the coordinates as an array for component-wise loops.
func (a Atom) Position() [3]float64 {
	return [3]float64{a.X, a.Y, a.Z}
}
