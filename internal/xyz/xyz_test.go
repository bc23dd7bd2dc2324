package xyz

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structbio-data/atomgrid/internal/units"
	"github.com/structbio-data/atomgrid/internal/voxel"
)

const waterXYZ = `3
water molecule
O 0.000000 0.000000 0.117300
H 0.000000 0.757200 -0.469200
H 0.000000 -0.757200 -0.469200
`

func TestRead(t *testing.T) {
	t.Parallel()

	s, err := Read(strings.NewReader(waterXYZ))
	require.NoError(t, err)

	assert.Equal(t, "water molecule", s.Comment)
	require.Len(t, s.Atoms, 3)
	assert.Equal(t, "O", s.Atoms[0].Element)
	assert.InDelta(t, 0.1173, s.Atoms[0].Z, 1e-9)
	assert.Equal(t, "H", s.Atoms[2].Element)
	assert.InDelta(t, -0.7572, s.Atoms[2].Y, 1e-9)
}

func TestReadExtraColumnsTolerated(t *testing.T) {
	t.Parallel()

	in := "1\ncharges appended\nC 1.0 2.0 3.0 -0.12\n"
	s, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, s.Atoms, 1)
	assert.Equal(t, voxel.Atom{X: 1, Y: 2, Z: 3, Element: "C"}, s.Atoms[0])
}

func TestReadAllMultiFrame(t *testing.T) {
	t.Parallel()

	two := waterXYZ + "\n" + waterXYZ
	frames, err := ReadAll(strings.NewReader(two))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Empty(t, cmp.Diff(frames[0].Atoms, frames[1].Atoms))
}

func TestReadErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		in      string
		wantSub string
	}{
		{"empty input", "", "no structures"},
		{"bad count", "three\nc\nC 0 0 0\n", "invalid atom count"},
		{"negative count", "-1\nc\n", "invalid atom count"},
		{"missing comment", "2", "before comment line"},
		{"truncated frame", "2\nc\nC 0 0 0\n", "1 of 2 atoms"},
		{"short row", "1\nc\nC 0 0\n", "expected symbol and 3 coordinates"},
		{"bad x", "1\nc\nC a 0 0\n", "invalid x coordinate"},
		{"bad y", "1\nc\nC 0 b 0\n", "invalid y coordinate"},
		{"bad z", "1\nc\nC 0 0 c\n", "invalid z coordinate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tc.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantSub)
		})
	}
}

func TestReadSkipsBlankLinesBetweenFrames(t *testing.T) {
	t.Parallel()

	in := "1\nfirst\nC 0 0 0\n\n\n1\nsecond\nN 1 1 1\n"
	frames, err := ReadAll(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, "second", frames[1].Comment)
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	orig := &Structure{
		Comment: "benzene fragment",
		Atoms: []voxel.Atom{
			{X: 1.39, Y: 0, Z: 0, Element: "C"},
			{X: 0.695, Y: 1.2037, Z: 0, Element: "C"},
			{X: 2.47, Y: 0, Z: 0, Element: "H"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, orig))

	back, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, orig.Comment, back.Comment)
	assert.Empty(t, cmp.Diff(orig.Atoms, back.Atoms))
}

func TestConvertToAngstrom(t *testing.T) {
	t.Parallel()

	s := &Structure{Atoms: []voxel.Atom{{X: 0.1, Y: 0.2, Z: -0.3, Element: "C"}}}
	s.ConvertToAngstrom(units.Nanometer)

	assert.InDelta(t, 1.0, s.Atoms[0].X, 1e-9)
	assert.InDelta(t, 2.0, s.Atoms[0].Y, 1e-9)
	assert.InDelta(t, -3.0, s.Atoms[0].Z, 1e-9)

	// Angstrom source is a no-op.
	s2 := &Structure{Atoms: []voxel.Atom{{X: 1.5, Element: "C"}}}
	s2.ConvertToAngstrom(units.Angstrom)
	assert.Equal(t, 1.5, s2.Atoms[0].X)
}
