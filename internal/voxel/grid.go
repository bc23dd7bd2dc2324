package voxel

import (
	"bytes"
	"fmt"
	"math"
)

const (
	// DefaultVoxelSize is the voxel edge length in Å used when Options
	// leaves VoxelSize unset.
	DefaultVoxelSize = 1.0

	// DefaultMaxCells caps grid allocations at 2^27 cells (128 MiB of
	// occupancy bytes) unless Options overrides it.
	DefaultMaxCells = int64(1) << 27
)

// Options configures grid allocation. The zero value selects the defaults.
type Options struct {
	// VoxelSize is the voxel edge length in Å. Zero selects
	// DefaultVoxelSize; negative or NaN values are rejected.
	VoxelSize float64

	// MaxCells bounds the total cell count (nx*ny*nz*channels). Zero
	// selects DefaultMaxCells; a negative value disables the check.
	MaxCells int64
}

func (o Options) voxelSize() float64 {
	if o.VoxelSize == 0 {
		return DefaultVoxelSize
	}
	return o.VoxelSize
}

func (o Options) maxCells() int64 {
	if o.MaxCells == 0 {
		return DefaultMaxCells
	}
	return o.MaxCells
}

// Grid is a 4D binary occupancy grid over a bounding box: three spatial axes
// plus one channel per alphabet element. Cells holds the grid as a flat
// slice with the channel axis varying fastest; a cell is 1 if any atom of
// that channel's element fell inside it, 0 otherwise. A Grid is built by
// NewGrid, filled once by Rasterize, and read-only afterwards.
type Grid struct {
	Box        Box
	VoxelSize  float64
	Alphabet   *Alphabet
	Nx, Ny, Nz int
	Cells      []uint8
}

// NewGrid allocates a zeroed grid over the box. Spatial dimensions are
// ceil((Max[a]-Min[a])/voxelSize) per axis; an axis may legitimately come
// out zero for a degenerate caller-supplied box, producing an empty grid.
//
// Fails with ErrNoAlphabet, ErrInvalidVoxelSize, or GridTooLargeError when
// the cell count would exceed the configured limit.
func NewGrid(box Box, alphabet *Alphabet, opts Options) (*Grid, error) {
	if alphabet == nil || alphabet.Len() == 0 {
		return nil, ErrNoAlphabet
	}
	vs := opts.voxelSize()
	if math.IsNaN(vs) || vs <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidVoxelSize, vs)
	}

	var dims [3]int
	for c := 0; c < 3; c++ {
		span := box.Max[c] - box.Min[c]
		if math.IsNaN(span) || math.IsInf(span, 0) || span < 0 {
			return nil, fmt.Errorf("invalid box: axis %d spans %v", c, span)
		}
		dims[c] = int(math.Ceil(span / vs))
	}

	// Guarded multiply: absurd spans could wrap int64 and slip past the
	// limit check.
	cells := int64(alphabet.Len())
	for _, d := range dims {
		if d == 0 {
			cells = 0
			break
		}
		if cells > math.MaxInt64/int64(d) {
			return nil, &GridTooLargeError{Cells: math.MaxInt64, Limit: opts.maxCells()}
		}
		cells *= int64(d)
	}
	if limit := opts.maxCells(); limit > 0 && cells > limit {
		return nil, &GridTooLargeError{Cells: cells, Limit: limit}
	}

	return &Grid{
		Box:       box,
		VoxelSize: vs,
		Alphabet:  alphabet,
		Nx:        dims[0],
		Ny:        dims[1],
		Nz:        dims[2],
		Cells:     make([]uint8, cells),
	}, nil
}

// Channels returns the channel count, one per alphabet symbol.
func (g *Grid) Channels() int {
	return g.Alphabet.Len()
}

// Shape returns the grid dimensions as (nx, ny, nz, channels).
func (g *Grid) Shape() [4]int {
	return [4]int{g.Nx, g.Ny, g.Nz, g.Channels()}
}

// NumCells returns the total cell count across all channels.
func (g *Grid) NumCells() int64 {
	return int64(len(g.Cells))
}

// Idx maps a 4D grid coordinate onto the flat cell slice.
func (g *Grid) Idx(ix, iy, iz, c int) int {
	return ((ix*g.Ny+iy)*g.Nz+iz)*g.Channels() + c
}

// At returns the occupancy value at a 4D grid coordinate.
func (g *Grid) At(ix, iy, iz, c int) uint8 {
	return g.Cells[g.Idx(ix, iy, iz, c)]
}

// InBounds reports whether a spatial index lies inside the grid.
func (g *Grid) InBounds(ix, iy, iz int) bool {
	return ix >= 0 && ix < g.Nx &&
		iy >= 0 && iy < g.Ny &&
		iz >= 0 && iz < g.Nz
}

// VoxelIndex returns the spatial cell an atom falls in under the half-open
// [min, max) convention: floor((pos - Min) / voxelSize) per axis. The result
// may be out of bounds for atoms outside the box; Rasterize checks.
func (g *Grid) VoxelIndex(a Atom) [3]int {
	p := a.Position()
	var idx [3]int
	for c := 0; c < 3; c++ {
		idx[c] = int(math.Floor((p[c] - g.Box.Min[c]) / g.VoxelSize))
	}
	return idx
}

// Equal reports whether two grids have identical geometry, channel contract,
// and cell contents.
func (g *Grid) Equal(other *Grid) bool {
	if g == nil || other == nil {
		return g == other
	}
	if g.Box != other.Box || g.VoxelSize != other.VoxelSize {
		return false
	}
	if g.Nx != other.Nx || g.Ny != other.Ny || g.Nz != other.Nz {
		return false
	}
	if !g.Alphabet.Equal(other.Alphabet) {
		return false
	}
	return bytes.Equal(g.Cells, other.Cells)
}
