package griddb

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
)

// blobEncoding identifies the cell blob codec. Stored alongside each blob so
// the codec can change without invalidating old rows.
const blobEncoding = "gob+gzip"

// serializeCells compresses grid cells using gob encoding and gzip
// compression. Occupancy grids are mostly zeros, so this typically shrinks
// the payload by two orders of magnitude.
func serializeCells(cells []uint8) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(cells); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// deserializeCells decompresses and decodes grid cells from a gob+gzip blob.
func deserializeCells(blob []byte) ([]uint8, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty cell blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var cells []uint8
	dec := gob.NewDecoder(gz)
	if err := dec.Decode(&cells); err != nil {
		return nil, fmt.Errorf("failed to decode grid cells: %w", err)
	}
	return cells, nil
}
