// Package export encodes voxel grids for downstream consumers: the VXG
// binary container for model pipelines plus a JSON metadata sidecar that
// pins the channel-order contract.
package export

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/structbio-data/atomgrid/internal/voxel"
)

// VXG container layout, all fields big-endian: magic, format version, two
// reserved bytes, spatial dims and channel count as uint32, voxel size and
// box corners as float64, a length-prefixed symbol per channel, then the raw
// cell bytes with the channel axis fastest.
const (
	Magic   = uint32(0x56584731) // "VXG1"
	Version = uint16(1)

	// maxChannels bounds the symbol table a reader will allocate before any
	// geometry validation has run. Far above any real element alphabet.
	maxChannels = 4096
)

// WriteGrid encodes a grid into the VXG container.
func WriteGrid(w io.Writer, g *voxel.Grid) error {
	bw := bufio.NewWriter(w)

	header := []interface{}{
		Magic,
		Version,
		uint16(0), // reserved
		uint32(g.Nx), uint32(g.Ny), uint32(g.Nz), uint32(g.Channels()),
		g.VoxelSize,
		g.Box.Min, g.Box.Max,
	}
	for _, field := range header {
		if err := binary.Write(bw, binary.BigEndian, field); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for _, sym := range g.Alphabet.Symbols() {
		if len(sym) > 255 {
			return fmt.Errorf("symbol %q too long for container", sym)
		}
		if err := bw.WriteByte(uint8(len(sym))); err != nil {
			return fmt.Errorf("failed to write symbol table: %w", err)
		}
		if _, err := bw.WriteString(sym); err != nil {
			return fmt.Errorf("failed to write symbol table: %w", err)
		}
	}

	if _, err := bw.Write(g.Cells); err != nil {
		return fmt.Errorf("failed to write cells: %w", err)
	}
	return bw.Flush()
}

// ReadGrid decodes a VXG container back into a grid. The declared dimensions
// are validated against the box and voxel size, and the allocation passes
// through the usual cell-count guard, so a corrupt or hostile header cannot
// demand an unbounded allocation.
func ReadGrid(r io.Reader) (*voxel.Grid, error) {
	br := bufio.NewReader(r)

	var magic uint32
	if err := binary.Read(br, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("not a VXG file: magic 0x%08x", magic)
	}

	var version, reserved uint16
	if err := binary.Read(br, binary.BigEndian, &version); err != nil {
		return nil, fmt.Errorf("failed to read version: %w", err)
	}
	if version != Version {
		return nil, fmt.Errorf("unsupported VXG version %d", version)
	}
	if err := binary.Read(br, binary.BigEndian, &reserved); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var nx, ny, nz, channels uint32
	for _, dst := range []*uint32{&nx, &ny, &nz, &channels} {
		if err := binary.Read(br, binary.BigEndian, dst); err != nil {
			return nil, fmt.Errorf("failed to read dimensions: %w", err)
		}
	}
	if channels == 0 || channels > maxChannels {
		return nil, fmt.Errorf("implausible channel count %d", channels)
	}

	var voxelSize float64
	if err := binary.Read(br, binary.BigEndian, &voxelSize); err != nil {
		return nil, fmt.Errorf("failed to read voxel size: %w", err)
	}
	var box voxel.Box
	if err := binary.Read(br, binary.BigEndian, &box.Min); err != nil {
		return nil, fmt.Errorf("failed to read box: %w", err)
	}
	if err := binary.Read(br, binary.BigEndian, &box.Max); err != nil {
		return nil, fmt.Errorf("failed to read box: %w", err)
	}

	symbols := make([]string, channels)
	for i := range symbols {
		n, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("failed to read symbol table: %w", err)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("failed to read symbol table: %w", err)
		}
		symbols[i] = string(buf)
	}

	alphabet, err := voxel.NewAlphabet(symbols...)
	if err != nil {
		return nil, fmt.Errorf("invalid symbol table: %w", err)
	}

	g, err := voxel.NewGrid(box, alphabet, voxel.Options{VoxelSize: voxelSize})
	if err != nil {
		return nil, fmt.Errorf("invalid grid geometry: %w", err)
	}
	if g.Nx != int(nx) || g.Ny != int(ny) || g.Nz != int(nz) {
		return nil, fmt.Errorf("declared dims (%d,%d,%d) do not match box geometry (%d,%d,%d)",
			nx, ny, nz, g.Nx, g.Ny, g.Nz)
	}

	if _, err := io.ReadFull(br, g.Cells); err != nil {
		return nil, fmt.Errorf("failed to read cells: %w", err)
	}
	return g, nil
}

// WriteGridFile writes a VXG container to disk.
func WriteGridFile(path string, g *voxel.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteGrid(f, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadGridFile reads a VXG container from disk.
func ReadGridFile(path string) (*voxel.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadGrid(f)
}
