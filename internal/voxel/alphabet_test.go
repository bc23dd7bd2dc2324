package voxel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAlphabet(t *testing.T) {
	t.Parallel()

	a, err := NewAlphabet("C", "N", "O", "S")
	require.NoError(t, err)
	assert.Equal(t, 4, a.Len())
	assert.Equal(t, []string{"C", "N", "O", "S"}, a.Symbols())
	assert.Equal(t, "C,N,O,S", a.String())
}

func TestNewAlphabetRejectsBadInput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		symbols []string
	}{
		{"empty list", nil},
		{"empty symbol", []string{"C", ""}},
		{"duplicate symbol", []string{"C", "N", "C"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewAlphabet(tc.symbols...)
			assert.Error(t, err)
		})
	}
}

func TestAlphabetIndex(t *testing.T) {
	t.Parallel()

	a, err := NewAlphabet("C", "N", "O", "S")
	require.NoError(t, err)

	for want, sym := range []string{"C", "N", "O", "S"} {
		got, ok := a.Index(sym)
		require.Truef(t, ok, "symbol %q missing", sym)
		assert.Equal(t, want, got)
	}

	_, ok := a.Index("P")
	assert.False(t, ok)
	_, ok = a.Index("")
	assert.False(t, ok)
}

func TestAlphabetSymbol(t *testing.T) {
	t.Parallel()

	a, err := NewAlphabet("C", "N")
	require.NoError(t, err)

	sym, ok := a.Symbol(1)
	require.True(t, ok)
	assert.Equal(t, "N", sym)

	_, ok = a.Symbol(-1)
	assert.False(t, ok)
	_, ok = a.Symbol(2)
	assert.False(t, ok)
}

func TestAlphabetSymbolsReturnsCopy(t *testing.T) {
	t.Parallel()

	a, err := NewAlphabet("C", "N")
	require.NoError(t, err)

	syms := a.Symbols()
	syms[0] = "X"

	idx, ok := a.Index("C")
	require.True(t, ok)
	assert.Equal(t, 0, idx, "mutating the returned slice must not affect the alphabet")
}

func TestAlphabetEqual(t *testing.T) {
	t.Parallel()

	a, err := NewAlphabet("C", "N")
	require.NoError(t, err)
	b, err := NewAlphabet("C", "N")
	require.NoError(t, err)
	c, err := NewAlphabet("N", "C")
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c), "order is part of the channel contract")
	assert.False(t, a.Equal(nil))
}
