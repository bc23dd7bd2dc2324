package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"github.com/structbio-data/atomgrid/internal/units"
)

// DefaultConfigPath is the path to the canonical defaults file. This is the
// single source of truth for tunable voxelization values.
const DefaultConfigPath = "config/atomgrid.defaults.json"

// Config is the root configuration for the voxelization pipeline. The same
// schema serves the CLI (-config flag) and the server, and fields omitted
// from the JSON fall back to defaults via the Get* accessors.
type Config struct {
	// Grid params
	VoxelSizeA      *float64 `json:"voxel_size_a,omitempty"`
	MaxGridCells    *int64   `json:"max_grid_cells,omitempty"`
	DefaultAlphabet *string  `json:"default_alphabet,omitempty"` // named set or comma list
	InputUnits      *string  `json:"input_units,omitempty"`

	// Pipeline params
	Workers *int `json:"workers,omitempty"`

	// Server params
	DBPath    *string `json:"db_path,omitempty"`
	HTTPAddr  *string `json:"http_addr,omitempty"`
	ExportDir *string `json:"export_dir,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt64(v int64) *int64       { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// EmptyConfig returns a Config with all fields set to nil. Use LoadConfig
// to load actual values from a file.
func EmptyConfig() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file. The file must have a .json
// extension and stay under the max file size. Fields omitted from the JSON
// retain their defaults, so partial configs are safe.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories. Panics if
// the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.VoxelSizeA != nil {
		v := *c.VoxelSizeA
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("voxel_size_a must be a positive finite number, got %f", v)
		}
	}

	if c.InputUnits != nil && *c.InputUnits != "" {
		if !units.IsValid(*c.InputUnits) {
			return fmt.Errorf("invalid input_units %q (valid: %s)", *c.InputUnits, units.GetValidUnitsString())
		}
	}

	if c.DefaultAlphabet != nil && *c.DefaultAlphabet == "" {
		return fmt.Errorf("default_alphabet must not be empty when set")
	}

	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	return nil
}

// GetVoxelSizeA returns the voxel_size_a value or the default.
func (c *Config) GetVoxelSizeA() float64 {
	if c.VoxelSizeA == nil {
		return 1.0 // default
	}
	return *c.VoxelSizeA
}

// GetMaxGridCells returns the max_grid_cells value or the default.
func (c *Config) GetMaxGridCells() int64 {
	if c.MaxGridCells == nil {
		return 1 << 27 // default, matches the allocation guard
	}
	return *c.MaxGridCells
}

// GetDefaultAlphabet returns the default_alphabet value or the default.
func (c *Config) GetDefaultAlphabet() string {
	if c.DefaultAlphabet == nil || *c.DefaultAlphabet == "" {
		return "cnos" // default
	}
	return *c.DefaultAlphabet
}

// GetInputUnits returns the input_units value or the default.
func (c *Config) GetInputUnits() string {
	if c.InputUnits == nil || *c.InputUnits == "" {
		return units.Angstrom // default
	}
	return *c.InputUnits
}

// GetWorkers returns the workers value or the default.
func (c *Config) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return runtime.NumCPU() // default
	}
	return *c.Workers
}

// GetDBPath returns the db_path value or the default.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "atomgrid.db" // default
	}
	return *c.DBPath
}

// GetHTTPAddr returns the http_addr value or the default.
func (c *Config) GetHTTPAddr() string {
	if c.HTTPAddr == nil || *c.HTTPAddr == "" {
		return ":8080" // default
	}
	return *c.HTTPAddr
}

// GetExportDir returns the export_dir value or the default.
func (c *Config) GetExportDir() string {
	if c.ExportDir == nil {
		return "" // default: working directory
	}
	return *c.ExportDir
}
