// Package elements carries the embedded element table and the named channel
// alphabets built from it. The table covers elements that occur in proteins,
// nucleic acids, cofactors, and common ligands.
package elements

import (
	"embed"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/structbio-data/atomgrid/internal/voxel"
)

//go:embed elements.csv
var embeddedTable embed.FS

// Element is one row of the embedded table.
type Element struct {
	Symbol       string
	Name         string
	AtomicNumber int
	AtomicMass   float64 // unified atomic mass units
	VdwRadius    float64 // van der Waals radius in Å
}

var (
	loadOnce sync.Once
	loadErr  error
	bySymbol map[string]Element
	inOrder  []Element
)

func loadTable() {
	loadOnce.Do(func() {
		file, err := embeddedTable.Open("elements.csv")
		if err != nil {
			loadErr = fmt.Errorf("failed to open embedded element table: %v", err)
			return
		}
		defer file.Close()

		records, err := csv.NewReader(file).ReadAll()
		if err != nil {
			loadErr = fmt.Errorf("failed to read embedded element table: %v", err)
			return
		}
		loadErr = parseTable(records)
	})
}

func parseTable(records [][]string) error {
	if len(records) < 2 {
		return fmt.Errorf("insufficient data in element table")
	}

	header := records[0]
	if len(header) != 5 ||
		strings.ToLower(header[0]) != "symbol" ||
		strings.ToLower(header[1]) != "name" ||
		strings.ToLower(header[2]) != "atomic_number" ||
		strings.ToLower(header[3]) != "atomic_mass" ||
		strings.ToLower(header[4]) != "vdw_radius" {
		return fmt.Errorf("invalid header in element table, expected: symbol,name,atomic_number,atomic_mass,vdw_radius")
	}

	bySymbol = make(map[string]Element, len(records)-1)
	inOrder = make([]Element, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != 5 {
			return fmt.Errorf("invalid record at line %d: expected 5 fields", i+2)
		}

		symbol := record[0]
		if symbol == "" {
			return fmt.Errorf("empty symbol at line %d", i+2)
		}
		number, err := strconv.Atoi(record[2])
		if err != nil {
			return fmt.Errorf("invalid atomic number at line %d: %v", i+2, err)
		}
		mass, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return fmt.Errorf("invalid atomic mass at line %d: %v", i+2, err)
		}
		radius, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return fmt.Errorf("invalid vdw radius at line %d: %v", i+2, err)
		}
		if _, dup := bySymbol[symbol]; dup {
			return fmt.Errorf("duplicate symbol %q at line %d", symbol, i+2)
		}

		e := Element{
			Symbol:       symbol,
			Name:         record[1],
			AtomicNumber: number,
			AtomicMass:   mass,
			VdwRadius:    radius,
		}
		bySymbol[symbol] = e
		inOrder = append(inOrder, e)
	}
	return nil
}

// Normalize returns the conventional capitalization for an element symbol:
// first letter upper, rest lower ("FE" and "fe" both become "Fe").
func Normalize(symbol string) string {
	if symbol == "" {
		return symbol
	}
	return strings.ToUpper(symbol[:1]) + strings.ToLower(symbol[1:])
}

// Lookup returns the table entry for a symbol, matching case-insensitively.
func Lookup(symbol string) (Element, bool) {
	loadTable()
	if loadErr != nil {
		return Element{}, false
	}
	e, ok := bySymbol[Normalize(symbol)]
	return e, ok
}

// All returns every table element in atomic-number order.
func All() ([]Element, error) {
	loadTable()
	if loadErr != nil {
		return nil, loadErr
	}
	out := make([]Element, len(inOrder))
	copy(out, inOrder)
	return out, nil
}

func mustAlphabet(symbols ...string) *voxel.Alphabet {
	a, err := voxel.NewAlphabet(symbols...)
	if err != nil {
		panic(err)
	}
	return a
}

// CNOS is the reference four-channel alphabet for protein heavy atoms.
func CNOS() *voxel.Alphabet {
	return mustAlphabet("C", "N", "O", "S")
}

// Organic covers the six elements that make up nearly all biomass.
func Organic() *voxel.Alphabet {
	return mustAlphabet("H", "C", "N", "O", "P", "S")
}

// NamedAlphabets lists the alphabet names AlphabetByName accepts.
func NamedAlphabets() []string {
	return []string{"cnos", "organic", "full"}
}

// AlphabetByName resolves a named alphabet: "cnos", "organic", or "full"
// (every table element in atomic-number order).
func AlphabetByName(name string) (*voxel.Alphabet, error) {
	switch strings.ToLower(name) {
	case "cnos":
		return CNOS(), nil
	case "organic":
		return Organic(), nil
	case "full":
		all, err := All()
		if err != nil {
			return nil, err
		}
		symbols := make([]string, len(all))
		for i, e := range all {
			symbols[i] = e.Symbol
		}
		return voxel.NewAlphabet(symbols...)
	default:
		return nil, fmt.Errorf("unknown alphabet %q (valid: cnos, organic, full)", name)
	}
}

// ParseAlphabet accepts either a named alphabet or a comma-separated symbol
// list. Listed symbols are normalized and must exist in the element table,
// so a typo fails here rather than as a channel nobody can fill.
func ParseAlphabet(spec string) (*voxel.Alphabet, error) {
	if !strings.Contains(spec, ",") {
		if a, err := AlphabetByName(spec); err == nil {
			return a, nil
		}
	}

	parts := strings.Split(spec, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		s := Normalize(strings.TrimSpace(p))
		if s == "" {
			continue
		}
		if _, ok := Lookup(s); !ok {
			return nil, fmt.Errorf("symbol %q is not in the element table", s)
		}
		symbols = append(symbols, s)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("alphabet %q contains no symbols", spec)
	}
	return voxel.NewAlphabet(symbols...)
}

// CenterOfMass returns the mass-weighted centroid of the atom set, with
// masses taken from the element table.
func CenterOfMass(atoms []voxel.Atom) ([3]float64, error) {
	if len(atoms) == 0 {
		return [3]float64{}, voxel.ErrNoAtoms
	}

	weights := make([]float64, len(atoms))
	axes := [3][]float64{}
	for c := 0; c < 3; c++ {
		axes[c] = make([]float64, len(atoms))
	}
	for i, a := range atoms {
		e, ok := Lookup(a.Element)
		if !ok {
			return [3]float64{}, &voxel.UnknownElementError{Symbol: a.Element}
		}
		weights[i] = e.AtomicMass
		p := a.Position()
		for c := 0; c < 3; c++ {
			axes[c][i] = p[c]
		}
	}

	var com [3]float64
	for c := 0; c < 3; c++ {
		com[c] = stat.Mean(axes[c], weights)
	}
	return com, nil
}
