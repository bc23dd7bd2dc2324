package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/structbio-data/atomgrid/internal/voxel"
)

// Meta is the JSON sidecar written next to a VXG export. It repeats the
// geometry from the binary header in a form that training pipelines and
// humans can inspect without a VXG decoder.
type Meta struct {
	Label     string          `json:"label,omitempty"`
	Source    string          `json:"source,omitempty"`
	Shape     [4]int          `json:"shape"`
	VoxelSize float64         `json:"voxel_size_a"`
	BoxMin    [3]float64      `json:"box_min"`
	BoxMax    [3]float64      `json:"box_max"`
	Alphabet  []string        `json:"alphabet"`
	AtomCount int             `json:"atom_count,omitempty"`
	Stats     voxel.GridStats `json:"stats"`

	// Atom-derived summaries, present when the exporter had the atom set
	// in hand (the inspector's reconstructed sidecars do not).
	Spread       *voxel.AtomSpread `json:"atom_spread,omitempty"`
	CenterOfMass *[3]float64       `json:"center_of_mass,omitempty"`
}

// NewMeta captures a grid's geometry and occupancy statistics.
func NewMeta(g *voxel.Grid, label, source string, atomCount int) Meta {
	return Meta{
		Label:     label,
		Source:    source,
		Shape:     g.Shape(),
		VoxelSize: g.VoxelSize,
		BoxMin:    g.Box.Min,
		BoxMax:    g.Box.Max,
		Alphabet:  g.Alphabet.Symbols(),
		AtomCount: atomCount,
		Stats:     g.Stats(),
	}
}

// WriteMeta writes the sidecar as indented JSON.
func WriteMeta(w io.Writer, m Meta) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	return nil
}

// WriteMetaFile writes the sidecar to disk.
func WriteMetaFile(path string, m Meta) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteMeta(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadMetaFile reads a sidecar back. Used by inspection tooling.
func ReadMetaFile(path string) (Meta, error) {
	var m Meta
	raw, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return m, nil
}
