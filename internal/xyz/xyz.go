// Package xyz reads and writes the plain-text XYZ structure format: an atom
// count line, a free-form comment line, then one "symbol x y z" row per
// atom. Multiple frames may be concatenated in one file, which is how
// trajectory snapshots arrive. It is the input collaborator for the
// voxelizer and deliberately knows nothing about grids.
package xyz

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/structbio-data/atomgrid/internal/units"
	"github.com/structbio-data/atomgrid/internal/voxel"
)

// Structure is one frame of an XYZ file.
type Structure struct {
	Comment string
	Atoms   []voxel.Atom
}

// ConvertToAngstrom rescales atom coordinates in place from the given source
// units. Grid math downstream assumes Angstroms.
func (s *Structure) ConvertToAngstrom(sourceUnits string) {
	if sourceUnits == units.Angstrom {
		return
	}
	for i := range s.Atoms {
		s.Atoms[i].X = units.ToAngstrom(s.Atoms[i].X, sourceUnits)
		s.Atoms[i].Y = units.ToAngstrom(s.Atoms[i].Y, sourceUnits)
		s.Atoms[i].Z = units.ToAngstrom(s.Atoms[i].Z, sourceUnits)
	}
}

type parser struct {
	sc   *bufio.Scanner
	line int
}

func newParser(r io.Reader) *parser {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &parser{sc: sc}
}

func (p *parser) next() (string, bool) {
	if p.sc.Scan() {
		p.line++
		return p.sc.Text(), true
	}
	return "", false
}

// readFrame parses one frame, returning io.EOF at a clean end of input.
func (p *parser) readFrame() (*Structure, error) {
	var countLine string
	for {
		l, ok := p.next()
		if !ok {
			if err := p.sc.Err(); err != nil {
				return nil, fmt.Errorf("read failed at line %d: %w", p.line, err)
			}
			return nil, io.EOF
		}
		if strings.TrimSpace(l) != "" {
			countLine = strings.TrimSpace(l)
			break
		}
	}

	n, err := strconv.Atoi(countLine)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("line %d: invalid atom count %q", p.line, countLine)
	}

	comment, ok := p.next()
	if !ok {
		return nil, fmt.Errorf("line %d: unexpected end of file before comment line", p.line)
	}

	atoms := make([]voxel.Atom, 0, n)
	for i := 0; i < n; i++ {
		l, ok := p.next()
		if !ok {
			return nil, fmt.Errorf("unexpected end of file: frame has %d of %d atoms", i, n)
		}
		fields := strings.Fields(l)
		if len(fields) < 4 {
			return nil, fmt.Errorf("line %d: expected symbol and 3 coordinates, got %d fields", p.line, len(fields))
		}

		x, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid x coordinate: %v", p.line, err)
		}
		y, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid y coordinate: %v", p.line, err)
		}
		z, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid z coordinate: %v", p.line, err)
		}

		atoms = append(atoms, voxel.Atom{X: x, Y: y, Z: z, Element: fields[0]})
	}

	return &Structure{Comment: strings.TrimSpace(comment), Atoms: atoms}, nil
}

// Read parses the first frame of an XYZ stream.
func Read(r io.Reader) (*Structure, error) {
	s, err := newParser(r).readFrame()
	if err == io.EOF {
		return nil, fmt.Errorf("input contains no structures")
	}
	return s, err
}

// ReadAll parses every frame of a possibly multi-frame XYZ stream.
func ReadAll(r io.Reader) ([]*Structure, error) {
	p := newParser(r)
	var frames []*Structure
	for {
		s, err := p.readFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, s)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("input contains no structures")
	}
	return frames, nil
}

// Write renders a structure as one XYZ frame.
func Write(w io.Writer, s *Structure) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", len(s.Atoms))
	fmt.Fprintf(bw, "%s\n", s.Comment)
	for _, a := range s.Atoms {
		fmt.Fprintf(bw, "%s %.6f %.6f %.6f\n", a.Element, a.X, a.Y, a.Z)
	}
	return bw.Flush()
}
