package voxel

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAtoms is returned when an operation that needs at least one atom
	// receives an empty set. The bounding box of nothing is undefined.
	ErrNoAtoms = errors.New("no atoms given")

	// ErrNoAlphabet is returned when a grid is requested without an alphabet.
	ErrNoAlphabet = errors.New("element alphabet is required")

	// ErrInvalidVoxelSize is returned for a non-positive or NaN voxel edge
	// length. Wrapped errors carry the offending value.
	ErrInvalidVoxelSize = errors.New("voxel size must be positive")

	// ErrNonFiniteCoordinate is returned when an atom position contains NaN
	// or an infinity. Wrapped errors carry the atom index.
	ErrNonFiniteCoordinate = errors.New("non-finite atom coordinate")
)

// UnknownElementError reports an atom whose element symbol is not in the
// grid's alphabet. The symbol is surfaced immediately rather than silently
// dropped or mapped to channel zero.
type UnknownElementError struct {
	Symbol string
}

func (e *UnknownElementError) Error() string {
	return fmt.Sprintf("element %q is not in the alphabet", e.Symbol)
}

// OutOfBoundsError reports an atom whose voxel index fell outside the grid.
// This is an internal-consistency check: it cannot fire when the grid's box
// was computed from the same atom set with the same voxel size.
type OutOfBoundsError struct {
	AtomIndex int    // position of the atom in the input slice
	Index     [3]int // computed voxel index
	Dims      [3]int // grid spatial dimensions
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("atom %d: voxel index %v outside grid dims %v",
		e.AtomIndex, e.Index, e.Dims)
}

// GridTooLargeError reports a requested allocation above the configured cell
// limit. Sparse structures with distant atoms can blow up the bounding-box
// volume, so callers get to fail fast instead of exhausting memory.
type GridTooLargeError struct {
	Cells int64 // requested total cells (nx*ny*nz*channels)
	Limit int64 // configured ceiling
}

func (e *GridTooLargeError) Error() string {
	return fmt.Sprintf("grid of %d cells exceeds limit of %d", e.Cells, e.Limit)
}
