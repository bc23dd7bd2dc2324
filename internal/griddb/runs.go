package griddb

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/structbio-data/atomgrid/internal/voxel"
)

// Run is one persisted voxelization: the grid geometry and occupancy
// summary, without the cell payload.
type Run struct {
	ID            string     `json:"id"`
	Label         string     `json:"label"`
	Source        string     `json:"source"`
	AtomCount     int        `json:"atom_count"`
	VoxelSize     float64    `json:"voxel_size_a"`
	Nx            int        `json:"nx"`
	Ny            int        `json:"ny"`
	Nz            int        `json:"nz"`
	Channels      int        `json:"channels"`
	BoxMin        [3]float64 `json:"box_min"`
	BoxMax        [3]float64 `json:"box_max"`
	Alphabet      string     `json:"alphabet"`
	OccupiedCells int64      `json:"occupied_cells"`
	Occupancy     float64    `json:"occupancy"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Shape returns the 4D grid shape for API responses.
func (r *Run) Shape() [4]int {
	return [4]int{r.Nx, r.Ny, r.Nz, r.Channels}
}

// SaveRun persists a grid and its metadata. The run row and the cell blob
// are written in one transaction so a run never exists without its grid.
func (gdb *GridDB) SaveRun(g *voxel.Grid, label, source string, atomCount int) (*Run, error) {
	blob, err := serializeCells(g.Cells)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize grid cells: %w", err)
	}

	stats := g.Stats()
	run := &Run{
		ID:            uuid.NewString(),
		Label:         label,
		Source:        source,
		AtomCount:     atomCount,
		VoxelSize:     g.VoxelSize,
		Nx:            g.Nx,
		Ny:            g.Ny,
		Nz:            g.Nz,
		Channels:      g.Channels(),
		BoxMin:        g.Box.Min,
		BoxMax:        g.Box.Max,
		Alphabet:      g.Alphabet.String(),
		OccupiedCells: stats.OccupiedCells,
		Occupancy:     stats.Occupancy,
		CreatedAt:     time.Now(),
	}

	tx, err := gdb.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (
			id, label, source, atom_count, voxel_size,
			nx, ny, nz, channels,
			min_x, min_y, min_z, max_x, max_y, max_z,
			alphabet, occupied_cells, occupancy, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Label, run.Source, run.AtomCount, run.VoxelSize,
		run.Nx, run.Ny, run.Nz, run.Channels,
		run.BoxMin[0], run.BoxMin[1], run.BoxMin[2],
		run.BoxMax[0], run.BoxMax[1], run.BoxMax[2],
		run.Alphabet, run.OccupiedCells, run.Occupancy, run.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO grid_blobs (run_id, encoding, cells, created_at)
		VALUES (?, ?, ?, ?)`,
		run.ID, blobEncoding, blob, run.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert grid blob: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}

	return run, nil
}

const runColumns = `
	id, label, source, atom_count, voxel_size,
	nx, ny, nz, channels,
	min_x, min_y, min_z, max_x, max_y, max_z,
	alphabet, occupied_cells, occupancy, created_at`

func scanRun(scan func(...interface{}) error) (*Run, error) {
	var run Run
	var createdAtUnix int64

	err := scan(
		&run.ID, &run.Label, &run.Source, &run.AtomCount, &run.VoxelSize,
		&run.Nx, &run.Ny, &run.Nz, &run.Channels,
		&run.BoxMin[0], &run.BoxMin[1], &run.BoxMin[2],
		&run.BoxMax[0], &run.BoxMax[1], &run.BoxMax[2],
		&run.Alphabet, &run.OccupiedCells, &run.Occupancy, &createdAtUnix,
	)
	if err != nil {
		return nil, err
	}

	run.CreatedAt = time.Unix(createdAtUnix, 0)
	return &run, nil
}

// GetRun retrieves a run by ID.
func (gdb *GridDB) GetRun(id string) (*Run, error) {
	row := gdb.QueryRow(`SELECT`+runColumns+` FROM runs WHERE id = ?`, id)

	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// ListRuns retrieves the most recent runs, newest first. A limit of 0 or
// less applies the default of 100.
func (gdb *GridDB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := gdb.Query(`SELECT`+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// CountRuns returns the total number of stored runs.
func (gdb *GridDB) CountRuns() (int64, error) {
	var count int64
	if err := gdb.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

// DeleteRun removes a run. The grid blob goes with it via the foreign key
// cascade.
func (gdb *GridDB) DeleteRun(id string) error {
	result, err := gdb.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRunNotFound
	}

	return nil
}

// LoadGrid reconstructs the full grid for a run. The stored cell blob must
// match the geometry recorded on the run row.
func (gdb *GridDB) LoadGrid(id string) (*voxel.Grid, *Run, error) {
	run, err := gdb.GetRun(id)
	if err != nil {
		return nil, nil, err
	}

	var encoding string
	var blob []byte
	err = gdb.QueryRow(`SELECT encoding, cells FROM grid_blobs WHERE run_id = ?`, id).Scan(&encoding, &blob)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("run %s has no grid blob", id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get grid blob: %w", err)
	}
	if encoding != blobEncoding {
		return nil, nil, fmt.Errorf("unsupported blob encoding %q", encoding)
	}

	cells, err := deserializeCells(blob)
	if err != nil {
		return nil, nil, err
	}

	want := run.Nx * run.Ny * run.Nz * run.Channels
	if len(cells) != want {
		return nil, nil, fmt.Errorf("grid cell count mismatch: blob=%d, run=%d", len(cells), want)
	}

	alphabet, err := voxel.NewAlphabet(strings.Split(run.Alphabet, ",")...)
	if err != nil {
		return nil, nil, fmt.Errorf("stored alphabet is invalid: %w", err)
	}

	g := &voxel.Grid{
		Box:       voxel.Box{Min: run.BoxMin, Max: run.BoxMax},
		VoxelSize: run.VoxelSize,
		Alphabet:  alphabet,
		Nx:        run.Nx,
		Ny:        run.Ny,
		Nz:        run.Nz,
		Cells:     cells,
	}

	return g, run, nil
}
