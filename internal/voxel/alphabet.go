package voxel

import (
	"fmt"
	"strings"
)

// Alphabet is an ordered set of element symbols. Each symbol owns one grid
// channel; the symbol order fixes the channel order, and that contract is
// what downstream consumers (models, exporters) rely on. Lookup is O(1) via
// a map built once at construction.
type Alphabet struct {
	symbols []string
	index   map[string]int
}

// NewAlphabet builds an alphabet from the given symbols in order. Empty and
// duplicate symbols are construction errors: a duplicate would alias two
// channels, and an empty symbol can never match an atom.
func NewAlphabet(symbols ...string) (*Alphabet, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("alphabet must contain at least one symbol")
	}
	a := &Alphabet{
		symbols: make([]string, len(symbols)),
		index:   make(map[string]int, len(symbols)),
	}
	for i, s := range symbols {
		if s == "" {
			return nil, fmt.Errorf("alphabet symbol %d is empty", i)
		}
		if _, dup := a.index[s]; dup {
			return nil, fmt.Errorf("duplicate alphabet symbol %q", s)
		}
		a.symbols[i] = s
		a.index[s] = i
	}
	return a, nil
}

// Len returns the number of symbols, which equals the grid channel count.
func (a *Alphabet) Len() int {
	return len(a.symbols)
}

// Index returns the channel index for a symbol and whether it is present.
func (a *Alphabet) Index(symbol string) (int, bool) {
	i, ok := a.index[symbol]
	return i, ok
}

// Symbol returns the symbol owning the given channel.
func (a *Alphabet) Symbol(channel int) (string, bool) {
	if channel < 0 || channel >= len(a.symbols) {
		return "", false
	}
	return a.symbols[channel], true
}

// Symbols returns a copy of the symbol list in channel order.
func (a *Alphabet) Symbols() []string {
	out := make([]string, len(a.symbols))
	copy(out, a.symbols)
	return out
}

// Equal reports whether two alphabets define the same channel contract.
func (a *Alphabet) Equal(other *Alphabet) bool {
	if a == nil || other == nil {
		return a == other
	}
	if len(a.symbols) != len(other.symbols) {
		return false
	}
	for i, s := range a.symbols {
		if other.symbols[i] != s {
			return false
		}
	}
	return true
}

// String renders the alphabet as a comma-separated symbol list, the form
// used in run metadata and CLI flags.
func (a *Alphabet) String() string {
	return strings.Join(a.symbols, ",")
}
