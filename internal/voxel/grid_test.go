package voxel

import (
	"errors"
	"math"
	"testing"
)

func testAlphabet(t *testing.T, symbols ...string) *Alphabet {
	t.Helper()
	if len(symbols) == 0 {
		symbols = []string{"C", "N", "O", "S"}
	}
	a, err := NewAlphabet(symbols...)
	if err != nil {
		t.Fatalf("NewAlphabet(%v): %v", symbols, err)
	}
	return a
}

func TestNewGridShape(t *testing.T) {
	box := Box{Min: [3]float64{0, 0, 0}, Max: [3]float64{2, 2, 1}}
	g, err := NewGrid(box, testAlphabet(t), Options{})
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	if got := g.Shape(); got != [4]int{2, 2, 1, 4} {
		t.Errorf("Shape() = %v, want (2,2,1,4)", got)
	}
	if g.NumCells() != 16 {
		t.Errorf("NumCells() = %d, want 16", g.NumCells())
	}
	if g.VoxelSize != DefaultVoxelSize {
		t.Errorf("VoxelSize = %v, want default %v", g.VoxelSize, DefaultVoxelSize)
	}
	for i, v := range g.Cells {
		if v != 0 {
			t.Fatalf("cell %d not zero-initialized", i)
		}
	}
}

func TestNewGridVoxelSizeScalesDims(t *testing.T) {
	box := Box{Min: [3]float64{0, 0, 0}, Max: [3]float64{2, 2, 2}}
	cases := []struct {
		name      string
		voxelSize float64
		wantDim   int
	}{
		{"half-angstrom voxels", 0.5, 4},
		{"unit voxels", 1.0, 2},
		{"coarse voxels round up", 0.75, 3}, // ceil(2/0.75) = 3
		{"oversized voxel", 3.0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := NewGrid(box, testAlphabet(t, "C"), Options{VoxelSize: tc.voxelSize})
			if err != nil {
				t.Fatalf("NewGrid: %v", err)
			}
			if g.Nx != tc.wantDim || g.Ny != tc.wantDim || g.Nz != tc.wantDim {
				t.Errorf("dims = (%d,%d,%d), want %d per axis", g.Nx, g.Ny, g.Nz, tc.wantDim)
			}
		})
	}
}

func TestNewGridInvalidVoxelSize(t *testing.T) {
	box := Box{Max: [3]float64{1, 1, 1}}
	for _, bad := range []float64{-1, -0.001, math.NaN()} {
		if _, err := NewGrid(box, testAlphabet(t), Options{VoxelSize: bad}); !errors.Is(err, ErrInvalidVoxelSize) {
			t.Errorf("voxel size %v: expected ErrInvalidVoxelSize, got %v", bad, err)
		}
	}
}

func TestNewGridNoAlphabet(t *testing.T) {
	if _, err := NewGrid(Box{}, nil, Options{}); !errors.Is(err, ErrNoAlphabet) {
		t.Fatalf("expected ErrNoAlphabet, got %v", err)
	}
}

func TestNewGridTooLarge(t *testing.T) {
	box := Box{Min: [3]float64{0, 0, 0}, Max: [3]float64{2, 2, 1}}
	_, err := NewGrid(box, testAlphabet(t), Options{MaxCells: 8})
	var tooLarge *GridTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected GridTooLargeError, got %v", err)
	}
	if tooLarge.Cells != 16 || tooLarge.Limit != 8 {
		t.Errorf("GridTooLargeError = %+v, want Cells=16 Limit=8", tooLarge)
	}
}

func TestNewGridLimitDisabled(t *testing.T) {
	box := Box{Min: [3]float64{0, 0, 0}, Max: [3]float64{2, 2, 1}}
	if _, err := NewGrid(box, testAlphabet(t), Options{MaxCells: -1}); err != nil {
		t.Fatalf("negative MaxCells should disable the limit, got %v", err)
	}
}

func TestNewGridCellCountOverflow(t *testing.T) {
	// 1e7 voxels per axis would overflow the int64 cell product if it were
	// computed naively. The limit check must still fire.
	box := Box{Min: [3]float64{0, 0, 0}, Max: [3]float64{1e7, 1e7, 1e7}}
	_, err := NewGrid(box, testAlphabet(t), Options{MaxCells: -1})
	var tooLarge *GridTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected GridTooLargeError, got %v", err)
	}
}

func TestNewGridDegenerateBox(t *testing.T) {
	// A caller-supplied box may legitimately span zero on an axis.
	box := Box{Min: [3]float64{0, 0, 0}, Max: [3]float64{2, 0, 1}}
	g, err := NewGrid(box, testAlphabet(t, "C"), Options{})
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	if got := g.Shape(); got != [4]int{2, 0, 1, 1} {
		t.Errorf("Shape() = %v, want (2,0,1,1)", got)
	}
	if g.NumCells() != 0 {
		t.Errorf("NumCells() = %d, want 0", g.NumCells())
	}
}

func TestNewGridInvertedBox(t *testing.T) {
	box := Box{Min: [3]float64{2, 0, 0}, Max: [3]float64{0, 1, 1}}
	if _, err := NewGrid(box, testAlphabet(t), Options{}); err == nil {
		t.Fatal("expected error for box with max < min")
	}
}

func TestGridIdxLayout(t *testing.T) {
	box := Box{Min: [3]float64{0, 0, 0}, Max: [3]float64{2, 3, 4}}
	g, err := NewGrid(box, testAlphabet(t), Options{})
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}

	// Channel varies fastest, then z, then y, then x.
	if got := g.Idx(0, 0, 0, 0); got != 0 {
		t.Errorf("Idx(0,0,0,0) = %d, want 0", got)
	}
	if got := g.Idx(0, 0, 0, 3); got != 3 {
		t.Errorf("Idx(0,0,0,3) = %d, want 3", got)
	}
	if got := g.Idx(0, 0, 1, 0); got != 4 {
		t.Errorf("Idx(0,0,1,0) = %d, want channels", got)
	}
	if got := g.Idx(0, 1, 0, 0); got != 4*4 {
		t.Errorf("Idx(0,1,0,0) = %d, want nz*channels", got)
	}
	if got := g.Idx(1, 0, 0, 0); got != 3*4*4 {
		t.Errorf("Idx(1,0,0,0) = %d, want ny*nz*channels", got)
	}
	if got := g.Idx(1, 2, 3, 3); got != len(g.Cells)-1 {
		t.Errorf("Idx(last) = %d, want %d", got, len(g.Cells)-1)
	}
}

func TestGridVoxelIndex(t *testing.T) {
	box := Box{Min: [3]float64{-1, 0, 0}, Max: [3]float64{2, 2, 1}}
	g, err := NewGrid(box, testAlphabet(t), Options{})
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	cases := []struct {
		atom Atom
		want [3]int
	}{
		{Atom{X: -1, Y: 0, Z: 0}, [3]int{0, 0, 0}},
		{Atom{X: -0.1, Y: 1.9, Z: 0.5}, [3]int{0, 1, 0}},
		{Atom{X: 1.8, Y: 1.1, Z: 0.9}, [3]int{2, 1, 0}},
	}
	for _, tc := range cases {
		if got := g.VoxelIndex(tc.atom); got != tc.want {
			t.Errorf("VoxelIndex(%+v) = %v, want %v", tc.atom, got, tc.want)
		}
	}
}

func TestGridInBounds(t *testing.T) {
	box := Box{Min: [3]float64{0, 0, 0}, Max: [3]float64{2, 2, 1}}
	g, err := NewGrid(box, testAlphabet(t), Options{})
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	if !g.InBounds(0, 0, 0) || !g.InBounds(1, 1, 0) {
		t.Error("interior indices reported out of bounds")
	}
	for _, idx := range [][3]int{{-1, 0, 0}, {2, 0, 0}, {0, 2, 0}, {0, 0, 1}} {
		if g.InBounds(idx[0], idx[1], idx[2]) {
			t.Errorf("InBounds(%v) = true, want false", idx)
		}
	}
}

func TestGridEqual(t *testing.T) {
	atoms := []Atom{
		{X: 0.2, Y: 0.3, Z: 0.1, Element: "C"},
		{X: 1.8, Y: 1.1, Z: 0.9, Element: "N"},
	}
	g1, err := Voxelize(atoms, testAlphabet(t), Options{})
	if err != nil {
		t.Fatalf("Voxelize: %v", err)
	}
	g2, err := Voxelize(atoms, testAlphabet(t), Options{})
	if err != nil {
		t.Fatalf("Voxelize: %v", err)
	}
	if !g1.Equal(g2) {
		t.Error("identical voxelizations should compare equal")
	}

	g3, err := Voxelize(atoms[:1], testAlphabet(t), Options{})
	if err != nil {
		t.Fatalf("Voxelize: %v", err)
	}
	if g1.Equal(g3) {
		t.Error("grids from different atom sets should not compare equal")
	}

	g4, err := Voxelize(atoms, testAlphabet(t, "C", "N"), Options{})
	if err != nil {
		t.Fatalf("Voxelize: %v", err)
	}
	if g1.Equal(g4) {
		t.Error("grids with different alphabets should not compare equal")
	}
}
