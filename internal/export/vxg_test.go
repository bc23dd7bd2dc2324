package export

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structbio-data/atomgrid/internal/testutil"
	"github.com/structbio-data/atomgrid/internal/voxel"
)

func TestWriteReadRoundTrip(t *testing.T) {
	g := testutil.ReferenceGrid(t)

	var buf bytes.Buffer
	require.NoError(t, WriteGrid(&buf, g))

	got, err := ReadGrid(&buf)
	require.NoError(t, err)
	assert.True(t, g.Equal(got), "round-tripped grid differs from original")
}

func TestWriteReadFile(t *testing.T) {
	g := testutil.ReferenceGrid(t)
	path := filepath.Join(t.TempDir(), "ref.vxg")

	require.NoError(t, WriteGridFile(path, g))
	got, err := ReadGridFile(path)
	require.NoError(t, err)
	assert.True(t, g.Equal(got))
}

func TestReadRejectsBadMagic(t *testing.T) {
	g := testutil.ReferenceGrid(t)
	var buf bytes.Buffer
	require.NoError(t, WriteGrid(&buf, g))

	raw := buf.Bytes()
	raw[0] = 'X'
	_, err := ReadGrid(bytes.NewReader(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a VXG file")
}

func TestReadRejectsUnknownVersion(t *testing.T) {
	g := testutil.ReferenceGrid(t)
	var buf bytes.Buffer
	require.NoError(t, WriteGrid(&buf, g))

	raw := buf.Bytes()
	binary.BigEndian.PutUint16(raw[4:6], 99)
	_, err := ReadGrid(bytes.NewReader(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported VXG version")
}

func TestReadRejectsTruncatedCells(t *testing.T) {
	g := testutil.ReferenceGrid(t)
	var buf bytes.Buffer
	require.NoError(t, WriteGrid(&buf, g))

	raw := buf.Bytes()
	_, err := ReadGrid(bytes.NewReader(raw[:len(raw)-4]))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read cells")
}

func TestReadRejectsImplausibleChannels(t *testing.T) {
	g := testutil.ReferenceGrid(t)
	var buf bytes.Buffer
	require.NoError(t, WriteGrid(&buf, g))

	// Claim a two-billion-channel alphabet in the header.
	raw := buf.Bytes()
	binary.BigEndian.PutUint32(raw[20:24], 1<<31)
	_, err := ReadGrid(bytes.NewReader(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "implausible channel count")
}

func TestReadRejectsMismatchedDims(t *testing.T) {
	g := testutil.ReferenceGrid(t)
	var buf bytes.Buffer
	require.NoError(t, WriteGrid(&buf, g))

	// Inflate the declared x dimension without touching the box.
	raw := buf.Bytes()
	binary.BigEndian.PutUint32(raw[8:12], 7)
	_, err := ReadGrid(bytes.NewReader(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not match box geometry")
}

func TestMetaSidecar(t *testing.T) {
	g := testutil.ReferenceGrid(t)
	m := NewMeta(g, "reference", "ref.xyz", 2)

	assert.Equal(t, [4]int{2, 2, 1, 4}, m.Shape)
	assert.Equal(t, []string{"C", "N", "O", "S"}, m.Alphabet)
	assert.Equal(t, int64(2), m.Stats.OccupiedCells)

	var buf bytes.Buffer
	require.NoError(t, WriteMeta(&buf, m))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "reference", decoded["label"])
	assert.Equal(t, 1.0, decoded["voxel_size_a"])
	assert.NotContains(t, decoded, "atom_spread", "unset summaries stay out of the JSON")
	assert.NotContains(t, decoded, "center_of_mass")

	path := filepath.Join(t.TempDir(), "ref.json")
	require.NoError(t, WriteMetaFile(path, m))
	back, err := ReadMetaFile(path)
	require.NoError(t, err)
	assert.Equal(t, m.Shape, back.Shape)
	assert.Equal(t, m.Stats.OccupiedCells, back.Stats.OccupiedCells)

	_, err = ReadMetaFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestMetaAtomSummariesRoundTrip(t *testing.T) {
	g := testutil.ReferenceGrid(t)
	m := NewMeta(g, "reference", "ref.xyz", 2)

	spread, err := voxel.DescribeAtoms(testutil.ReferenceAtoms())
	require.NoError(t, err)
	m.Spread = &spread
	com := [3]float64{1.0, 0.7, 0.5}
	m.CenterOfMass = &com

	path := filepath.Join(t.TempDir(), "ref.json")
	require.NoError(t, WriteMetaFile(path, m))
	back, err := ReadMetaFile(path)
	require.NoError(t, err)

	require.NotNil(t, back.Spread)
	assert.Equal(t, spread, *back.Spread)
	require.NotNil(t, back.CenterOfMass)
	assert.Equal(t, com, *back.CenterOfMass)
}
