package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/structbio-data/atomgrid/internal/batch"
	"github.com/structbio-data/atomgrid/internal/config"
	"github.com/structbio-data/atomgrid/internal/elements"
	"github.com/structbio-data/atomgrid/internal/export"
	"github.com/structbio-data/atomgrid/internal/griddb"
	"github.com/structbio-data/atomgrid/internal/security"
	"github.com/structbio-data/atomgrid/internal/units"
	"github.com/structbio-data/atomgrid/internal/version"
	"github.com/structbio-data/atomgrid/internal/voxel"
	"github.com/structbio-data/atomgrid/internal/xyz"
)

var (
	inPath      = flag.String("in", "", "Input XYZ file (default: read stdin)")
	outPath     = flag.String("out", "", "Output VXG file (default: derived from the label)")
	label       = flag.String("label", "", "Run label (default: input filename without extension)")
	voxelSize   = flag.Float64("voxel-size", 0, "Voxel edge length in Angstroms (0: config default)")
	alphabetStr = flag.String("alphabet", "", "Element alphabet: cnos, organic, full, or a comma-separated symbol list")
	unitsStr    = flag.String("units", "", "Input coordinate units: angstrom, nm, or pm")
	maxCells    = flag.Int64("max-cells", 0, "Grid cell cap, nx*ny*nz*channels (0: config default)")
	workers     = flag.Int("workers", 0, "Concurrent frames (0: all CPUs)")
	dbPath      = flag.String("db", "", "Also record runs in this SQLite database")
	writeMeta   = flag.Bool("meta", true, "Write a JSON metadata sidecar next to each VXG file")
	printStats  = flag.Bool("stats", false, "Print per-frame occupancy statistics")
	configPath  = flag.String("config", "", "Path to a JSON config file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("voxelize %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg := config.EmptyConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("voxelize: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	alphabetSpec := *alphabetStr
	if alphabetSpec == "" {
		alphabetSpec = cfg.GetDefaultAlphabet()
	}
	alphabet, err := elements.ParseAlphabet(alphabetSpec)
	if err != nil {
		return err
	}

	inputUnits := *unitsStr
	if inputUnits == "" {
		inputUnits = cfg.GetInputUnits()
	}
	if !units.IsValid(inputUnits) {
		return fmt.Errorf("unknown units %q (valid: %s)", inputUnits, units.GetValidUnitsString())
	}

	frames, source, err := readFrames(*inPath)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("no structures found in %s", source)
	}
	for _, frame := range frames {
		frame.ConvertToAngstrom(inputUnits)
	}

	baseLabel := *label
	if baseLabel == "" {
		baseLabel = deriveLabel(*inPath)
	}

	jobs := make([]batch.Job, len(frames))
	for i, frame := range frames {
		frameLabel := baseLabel
		if len(frames) > 1 {
			frameLabel = fmt.Sprintf("%s-%d", baseLabel, i)
		}
		jobs[i] = batch.Job{Source: source, Index: i, Label: frameLabel, Atoms: frame.Atoms}
	}

	vs := *voxelSize
	if vs == 0 {
		vs = cfg.GetVoxelSizeA()
	}
	mc := *maxCells
	if mc == 0 {
		mc = cfg.GetMaxGridCells()
	}
	nw := *workers
	if nw == 0 {
		nw = cfg.GetWorkers()
	}

	runner := &batch.Runner{
		Workers:  nw,
		Alphabet: alphabet,
		Options:  voxel.Options{VoxelSize: vs, MaxCells: mc},
	}
	results := runner.Run(ctx, jobs)

	var gdb *griddb.GridDB
	if *dbPath != "" {
		gdb, err = griddb.OpenAndMigrate(*dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer gdb.Close()
	}

	failures := 0
	for i, res := range results {
		if res.Err != nil {
			log.Printf("frame %d (%s): %v", res.Index, res.Label, res.Err)
			failures++
			continue
		}

		out := outputPath(*outPath, baseLabel, res.Index, len(results))
		if dir := cfg.GetExportDir(); dir != "" {
			if err := security.ValidateExportPath(out, dir); err != nil {
				return fmt.Errorf("frame %d: %w", res.Index, err)
			}
		}

		if err := export.WriteGridFile(out, res.Grid); err != nil {
			return fmt.Errorf("frame %d: %w", res.Index, err)
		}

		if *writeMeta {
			meta := export.NewMeta(res.Grid, res.Label, source, len(jobs[i].Atoms))
			describeAtoms(&meta, jobs[i].Atoms)
			if err := export.WriteMetaFile(metaPath(out), meta); err != nil {
				return fmt.Errorf("frame %d: %w", res.Index, err)
			}
		}

		if gdb != nil {
			if _, err := gdb.SaveRun(res.Grid, res.Label, source, len(jobs[i].Atoms)); err != nil {
				return fmt.Errorf("frame %d: failed to record run: %w", res.Index, err)
			}
		}

		if *printStats {
			shape := res.Grid.Shape()
			fmt.Printf("%s: %d atoms -> %dx%dx%dx%d grid, %d occupied cells (%.4f%%) in %s\n",
				res.Label, len(jobs[i].Atoms),
				shape[0], shape[1], shape[2], shape[3],
				res.Stats.OccupiedCells, res.Stats.Occupancy*100, res.Elapsed)
		}
		log.Printf("wrote %s", out)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d frames failed", failures, len(results))
	}
	return nil
}

// readFrames loads every frame from the input file, or from stdin when no
// file is given.
func readFrames(path string) ([]*xyz.Structure, string, error) {
	var r io.Reader
	source := path
	if path == "" || path == "-" {
		r = os.Stdin
		source = "stdin"
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		r = f
	}

	frames, err := xyz.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse %s: %w", source, err)
	}
	return frames, source, nil
}

// deriveLabel names a run after the input file. Stdin input falls back to
// "grid".
func deriveLabel(inPath string) string {
	if inPath == "" || inPath == "-" {
		return "grid"
	}
	base := filepath.Base(inPath)
	return security.SanitizeFilename(strings.TrimSuffix(base, filepath.Ext(base)))
}

// outputPath picks the VXG path for one frame. Multi-frame inputs get a
// frame suffix so they never overwrite each other.
func outputPath(out, label string, index, total int) string {
	if out == "" {
		out = security.SanitizeFilename(label) + ".vxg"
		if total > 1 {
			out = fmt.Sprintf("%s-%d.vxg", security.SanitizeFilename(label), index)
		}
		return out
	}
	if total == 1 {
		return out
	}
	ext := filepath.Ext(out)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(out, ext), index, ext)
}

// metaPath places the JSON sidecar next to the VXG file.
func metaPath(out string) string {
	return strings.TrimSuffix(out, filepath.Ext(out)) + ".meta.json"
}

// describeAtoms attaches the atom-derived summaries to a sidecar. Both are
// best-effort: a frame that voxelized fine never fails late over metadata.
func describeAtoms(meta *export.Meta, atoms []voxel.Atom) {
	if spread, err := voxel.DescribeAtoms(atoms); err == nil {
		meta.Spread = &spread
	}
	if com, err := elements.CenterOfMass(atoms); err == nil {
		meta.CenterOfMass = &com
	}
}
