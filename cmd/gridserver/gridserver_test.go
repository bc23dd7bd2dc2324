package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/structbio-data/atomgrid/internal/api"
	"github.com/structbio-data/atomgrid/internal/config"
	"github.com/structbio-data/atomgrid/internal/griddb"
)

// TestFlagDefaults verifies the flags exist in the main package's var block
// with the documented defaults.
func TestFlagDefaults(t *testing.T) {
	if listen == nil || *listen != "" {
		t.Errorf("expected listen default to be empty, got %v", listen)
	}
	if dbPath == nil || *dbPath != "" {
		t.Errorf("expected db default to be empty, got %v", dbPath)
	}
	if configPath == nil || *configPath != "" {
		t.Errorf("expected config default to be empty, got %v", configPath)
	}
	if showVersion == nil || *showVersion != false {
		t.Errorf("expected version default to be false, got %v", showVersion)
	}
}

// TestAddressResolution mirrors the flag-then-config-then-default resolution
// in main for the listen address and database path.
func TestAddressResolution(t *testing.T) {
	tests := []struct {
		name        string
		flagValue   string
		configValue string
		want        string
	}{
		{
			name:      "flag wins over config",
			flagValue: ":7000", configValue: ":9000",
			want: ":7000",
		},
		{
			name:      "config when flag unset",
			flagValue: "", configValue: ":9000",
			want: ":9000",
		},
		{
			name:      "built-in default",
			flagValue: "", configValue: "",
			want: ":8080",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.EmptyConfig()
			if tc.configValue != "" {
				cfg.HTTPAddr = &tc.configValue
			}

			addr := tc.flagValue
			if addr == "" {
				addr = cfg.GetHTTPAddr()
			}
			if addr != tc.want {
				t.Errorf("resolved address = %q, want %q", addr, tc.want)
			}
		})
	}
}

func TestDBPathResolution(t *testing.T) {
	cfg := config.EmptyConfig()

	dbFile := ""
	if dbFile == "" {
		dbFile = cfg.GetDBPath()
	}
	if dbFile != "atomgrid.db" {
		t.Errorf("resolved database path = %q, want atomgrid.db", dbFile)
	}

	configured := "/var/lib/atomgrid/grids.db"
	cfg.DBPath = &configured
	dbFile = ""
	if dbFile == "" {
		dbFile = cfg.GetDBPath()
	}
	if dbFile != configured {
		t.Errorf("resolved database path = %q, want %q", dbFile, configured)
	}
}

// TestServerEndToEnd assembles the same stack main serves: migrated store,
// event hub, API mux behind the logging middleware. A persisted voxelize
// request must land in the database.
func TestServerEndToEnd(t *testing.T) {
	testingDir := t.TempDir()

	gdb, err := griddb.OpenAndMigrate(filepath.Join(testingDir, "test_grids.db"))
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	defer func() {
		if err := gdb.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	}()

	hub := api.NewEventHub()
	defer hub.Close()

	mux := api.NewServer(gdb, hub, config.EmptyConfig()).ServeMux()
	srv := httptest.NewServer(api.LoggingMiddleware(mux))
	defer srv.Close()

	body := []byte(`{
		"label": "e2e",
		"persist": true,
		"atoms": [
			{"x": 0.5, "y": 0.5, "z": 0.5, "element": "C"},
			{"x": 1.5, "y": 1.5, "z": 0.5, "element": "N"}
		]
	}`)
	resp, err := http.Post(srv.URL+"/api/voxelize", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to post voxelize request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var sum struct {
		RunID string `json:"run_id"`
		Shape [4]int `json:"shape"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if sum.RunID == "" {
		t.Fatal("Expected a run_id on the persisted response")
	}
	if sum.Shape != [4]int{2, 2, 1, 4} {
		t.Errorf("Expected shape [2 2 1 4], got %v", sum.Shape)
	}

	run, err := gdb.GetRun(sum.RunID)
	if err != nil {
		t.Fatalf("Failed to retrieve run from database: %v", err)
	}
	if run.Label != "e2e" {
		t.Errorf("Expected persisted label e2e, got %q", run.Label)
	}

	count, err := gdb.CountRuns()
	if err != nil {
		t.Fatalf("Failed to count runs: %v", err)
	}
	if count != 1 {
		t.Fatal("Expected exactly one run in the database")
	}
}
