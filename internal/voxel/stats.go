package voxel

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GridStats summarizes occupancy for a rasterized grid. Stored alongside
// runs and reported by the CLI and API.
type GridStats struct {
	TotalCells     int64   `json:"total_cells"`
	OccupiedCells  int64   `json:"occupied_cells"`
	Occupancy      float64 `json:"occupancy"`       // occupied fraction, 0 for an empty grid
	ChannelCells   []int64 `json:"channel_cells"`   // occupied count per channel, alphabet order
	BusiestChannel int     `json:"busiest_channel"` // channel index with the most occupied cells
	ChannelMean    float64 `json:"channel_mean"`    // mean occupied cells across channels
	ChannelStdDev  float64 `json:"channel_stddev"`
}

// Stats scans the grid once and aggregates per-channel occupancy counts.
func (g *Grid) Stats() GridStats {
	ch := g.Channels()
	counts := make([]float64, ch)

	var occupied int64
	for i, v := range g.Cells {
		if v != 0 {
			occupied++
			counts[i%ch]++
		}
	}

	s := GridStats{
		TotalCells:    g.NumCells(),
		OccupiedCells: occupied,
		ChannelCells:  make([]int64, ch),
	}
	for i, c := range counts {
		s.ChannelCells[i] = int64(c)
	}
	if s.TotalCells > 0 {
		s.Occupancy = float64(occupied) / float64(s.TotalCells)
	}
	s.BusiestChannel = floats.MaxIdx(counts)
	s.ChannelMean = stat.Mean(counts, nil)
	if ch > 1 {
		s.ChannelStdDev = stat.StdDev(counts, nil)
	}
	return s
}

// AtomSpread reports the per-axis distribution of atom coordinates, a cheap
// shape fingerprint recorded with each run.
type AtomSpread struct {
	Mean   [3]float64 `json:"mean"`
	StdDev [3]float64 `json:"stddev"`
}

// DescribeAtoms computes the per-axis mean and standard deviation of atom
// positions. Fails with ErrNoAtoms on an empty set; the standard deviation
// of a single atom is reported as zero.
func DescribeAtoms(atoms []Atom) (AtomSpread, error) {
	if len(atoms) == 0 {
		return AtomSpread{}, ErrNoAtoms
	}

	axes := [3][]float64{}
	for c := 0; c < 3; c++ {
		axes[c] = make([]float64, len(atoms))
	}
	for i, a := range atoms {
		p := a.Position()
		for c := 0; c < 3; c++ {
			axes[c][i] = p[c]
		}
	}

	var spread AtomSpread
	for c := 0; c < 3; c++ {
		mean, sd := stat.MeanStdDev(axes[c], nil)
		spread.Mean[c] = mean
		if len(atoms) > 1 {
			spread.StdDev[c] = sd
		}
	}
	return spread, nil
}
