// Package testutil provides shared fixtures for atomgrid tests.
//
// The reference structure here is the same two-atom scenario the voxel,
// export, and store tests all reason about, so shape and occupancy
// expectations stay consistent across packages.
package testutil

import (
	"testing"

	"github.com/structbio-data/atomgrid/internal/voxel"
)

// ReferenceAtoms returns a two-atom structure with easy grid geometry:
// box (0,0,0)-(2,2,1), shape 2x2x1x4 over the CNOS alphabet, occupied
// cells (0,0,0,C) and (1,1,0,N).
func ReferenceAtoms() []voxel.Atom {
	return []voxel.Atom{
		{X: 0.2, Y: 0.3, Z: 0.1, Element: "C"},
		{X: 1.8, Y: 1.1, Z: 0.9, Element: "N"},
	}
}

// CNOSAlphabet builds the four-channel reference alphabet.
func CNOSAlphabet(t *testing.T) *voxel.Alphabet {
	t.Helper()
	alphabet, err := voxel.NewAlphabet("C", "N", "O", "S")
	if err != nil {
		t.Fatalf("NewAlphabet failed: %v", err)
	}
	return alphabet
}

// ReferenceGrid voxelizes ReferenceAtoms at the default 1 A resolution.
func ReferenceGrid(t *testing.T) *voxel.Grid {
	t.Helper()
	g, err := voxel.Voxelize(ReferenceAtoms(), CNOSAlphabet(t), voxel.Options{})
	if err != nil {
		t.Fatalf("Voxelize failed: %v", err)
	}
	return g
}
