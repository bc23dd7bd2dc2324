package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/structbio-data/atomgrid/internal/batch"
	"github.com/structbio-data/atomgrid/internal/config"
	"github.com/structbio-data/atomgrid/internal/elements"
	"github.com/structbio-data/atomgrid/internal/export"
	"github.com/structbio-data/atomgrid/internal/griddb"
	"github.com/structbio-data/atomgrid/internal/monitoring"
	"github.com/structbio-data/atomgrid/internal/security"
	"github.com/structbio-data/atomgrid/internal/units"
	"github.com/structbio-data/atomgrid/internal/version"
	"github.com/structbio-data/atomgrid/internal/voxel"
	"github.com/structbio-data/atomgrid/internal/xyz"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxRequestBytes caps uploaded structures. A million-atom XYZ frame is
// around 40MB, so this leaves headroom without letting a client exhaust
// memory.
const maxRequestBytes = 64 << 20

type Server struct {
	db      *griddb.GridDB
	hub     *EventHub
	cfg     *config.Config
	started time.Time
}

func NewServer(db *griddb.GridDB, hub *EventHub, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.EmptyConfig()
	}
	return &Server{
		db:      db,
		hub:     hub,
		cfg:     cfg,
		started: time.Now(),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.health)
	mux.HandleFunc("/api/alphabets", s.listAlphabets)
	mux.HandleFunc("/api/voxelize", s.voxelizeJSON)
	mux.HandleFunc("/api/voxelize/xyz", s.voxelizeXYZ)
	// The run store routes only exist when a database is attached; a
	// stateless deployment still voxelizes but has nothing to list.
	if s.db != nil {
		mux.HandleFunc("/api/runs", s.listRuns)
		mux.HandleFunc("/api/runs/", s.runByID)
		mux.HandleFunc("/api/grids/", s.downloadGrid)
	}
	if s.hub != nil {
		mux.HandleFunc("/api/events", s.hub.Handle)
	}
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// voxelErrorStatus maps rasterization failures to HTTP statuses. Anything
// the client can fix is a 400, oversized grids are a 413, everything else
// is a 500.
func voxelErrorStatus(err error) int {
	var tooLarge *voxel.GridTooLargeError
	var unknown *voxel.UnknownElementError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &unknown),
		errors.Is(err, voxel.ErrNoAtoms),
		errors.Is(err, voxel.ErrNoAlphabet),
		errors.Is(err, voxel.ErrInvalidVoxelSize),
		errors.Is(err, voxel.ErrNonFiniteCoordinate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	info := map[string]any{
		"status":   "ok",
		"version":  version.Version,
		"uptime_s": int64(time.Since(s.started).Seconds()),
	}
	if err := json.NewEncoder(w).Encode(info); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write health status")
		return
	}
}

type alphabetInfo struct {
	Name    string   `json:"name"`
	Symbols []string `json:"symbols"`
}

func (s *Server) listAlphabets(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	names := elements.NamedAlphabets()
	infos := make([]alphabetInfo, 0, len(names))
	for _, name := range names {
		a, err := elements.AlphabetByName(name)
		if err != nil {
			continue
		}
		infos = append(infos, alphabetInfo{Name: name, Symbols: a.Symbols()})
	}

	if err := json.NewEncoder(w).Encode(infos); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write alphabets")
		return
	}
}

// atomRequest is one atom in a JSON voxelize request.
type atomRequest struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	Element string  `json:"element"`
}

type voxelizeRequest struct {
	Label      string        `json:"label"`
	Alphabet   string        `json:"alphabet"`
	VoxelSizeA float64       `json:"voxel_size_a"`
	Units      string        `json:"units"`
	Persist    bool          `json:"persist"`
	Atoms      []atomRequest `json:"atoms"`
}

// gridSummary is the API shape for one voxelized structure.
type gridSummary struct {
	RunID      string            `json:"run_id,omitempty"`
	Label      string            `json:"label"`
	Source     string            `json:"source,omitempty"`
	Index      int               `json:"index"`
	AtomCount  int               `json:"atom_count"`
	Shape      [4]int            `json:"shape"`
	VoxelSizeA float64           `json:"voxel_size_a"`
	BoxMin     [3]float64        `json:"box_min"`
	BoxMax     [3]float64        `json:"box_max"`
	Alphabet   []string          `json:"alphabet"`
	Stats      voxel.GridStats   `json:"stats"`
	Spread     *voxel.AtomSpread `json:"atom_spread,omitempty"`
	ElapsedMs  float64           `json:"elapsed_ms"`
	Error      string            `json:"error,omitempty"`
}

func summarize(job batch.Job, res batch.Result) gridSummary {
	sum := gridSummary{
		Label:     res.Label,
		Source:    res.Source,
		Index:     res.Index,
		AtomCount: len(job.Atoms),
		ElapsedMs: float64(res.Elapsed.Microseconds()) / 1000,
	}
	if res.Err != nil {
		sum.Error = res.Err.Error()
		return sum
	}
	g := res.Grid
	sum.Shape = g.Shape()
	sum.VoxelSizeA = g.VoxelSize
	sum.BoxMin = g.Box.Min
	sum.BoxMax = g.Box.Max
	sum.Alphabet = g.Alphabet.Symbols()
	sum.Stats = res.Stats
	if spread, err := voxel.DescribeAtoms(job.Atoms); err == nil {
		sum.Spread = &spread
	}
	return sum
}

// runParams are the knobs shared by both voxelize endpoints, resolved
// against configured defaults.
type runParams struct {
	alphabet  *voxel.Alphabet
	voxelSize float64
	units     string
}

func (s *Server) resolveParams(alphabetSpec string, voxelSize float64, unitName string) (runParams, error) {
	p := runParams{}

	if alphabetSpec == "" {
		alphabetSpec = s.cfg.GetDefaultAlphabet()
	}
	a, err := elements.ParseAlphabet(alphabetSpec)
	if err != nil {
		return p, err
	}
	p.alphabet = a

	p.voxelSize = voxelSize
	if p.voxelSize == 0 {
		p.voxelSize = s.cfg.GetVoxelSizeA()
	}

	p.units = unitName
	if p.units == "" {
		p.units = s.cfg.GetInputUnits()
	}
	if !units.IsValid(p.units) {
		return p, fmt.Errorf("unknown units %q (valid: %s)", p.units, units.GetValidUnitsString())
	}

	return p, nil
}

func (s *Server) runner(p runParams) *batch.Runner {
	return &batch.Runner{
		Workers:  s.cfg.GetWorkers(),
		Alphabet: p.alphabet,
		Options: voxel.Options{
			VoxelSize: p.voxelSize,
			MaxCells:  s.cfg.GetMaxGridCells(),
		},
		OnEvent: s.publish,
	}
}

func (s *Server) publish(ev batch.Event) {
	if s.hub != nil {
		s.hub.Publish(ev)
	}
}

// persistResult stores a successful result and fills in the run ID. Storage
// failures are reported on the summary but do not fail the request; the
// grid was still computed.
func (s *Server) persistResult(job batch.Job, res batch.Result, sum *gridSummary) {
	if s.db == nil {
		sum.Error = "persistence requested but no database is attached"
		return
	}
	run, err := s.db.SaveRun(res.Grid, res.Label, res.Source, len(job.Atoms))
	if err != nil {
		monitoring.Logf("[API] failed to persist run %q: %v", res.Label, err)
		sum.Error = fmt.Sprintf("grid computed but not persisted: %v", err)
		return
	}
	sum.RunID = run.ID
}

func (s *Server) voxelizeJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var req voxelizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeJSONError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	if len(req.Atoms) == 0 {
		s.writeJSONError(w, http.StatusBadRequest, "At least one atom is required")
		return
	}

	params, err := s.resolveParams(req.Alphabet, req.VoxelSizeA, req.Units)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	atoms := make([]voxel.Atom, len(req.Atoms))
	for i, a := range req.Atoms {
		atoms[i] = voxel.Atom{
			X:       units.ToAngstrom(a.X, params.units),
			Y:       units.ToAngstrom(a.Y, params.units),
			Z:       units.ToAngstrom(a.Z, params.units),
			Element: a.Element,
		}
	}

	label := req.Label
	if label == "" {
		label = "request"
	}
	jobs := []batch.Job{{Source: "api", Index: 0, Label: label, Atoms: atoms}}

	results := s.runner(params).Run(r.Context(), jobs)
	res := results[0]
	if res.Err != nil {
		s.writeJSONError(w, voxelErrorStatus(res.Err), res.Err.Error())
		return
	}

	sum := summarize(jobs[0], res)
	if req.Persist {
		s.persistResult(jobs[0], res, &sum)
	}

	if err := json.NewEncoder(w).Encode(sum); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write result")
		return
	}
}

type voxelizeXYZResponse struct {
	Frames    []gridSummary `json:"frames"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

func (s *Server) voxelizeXYZ(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	q := r.URL.Query()
	voxelSize := 0.0
	if v := q.Get("voxel_size_a"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'voxel_size_a' parameter")
			return
		}
		voxelSize = parsed
	}
	persist := false
	if v := q.Get("persist"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'persist' parameter")
			return
		}
		persist = parsed
	}

	params, err := s.resolveParams(q.Get("alphabet"), voxelSize, q.Get("units"))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	frames, err := xyz.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeJSONError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid XYZ input: %v", err))
		return
	}

	label := q.Get("label")
	if label == "" {
		label = "upload"
	}

	jobs := make([]batch.Job, len(frames))
	for i, frame := range frames {
		frame.ConvertToAngstrom(params.units)
		frameLabel := label
		if len(frames) > 1 {
			frameLabel = fmt.Sprintf("%s-%d", label, i)
		}
		jobs[i] = batch.Job{Source: "upload", Index: i, Label: frameLabel, Atoms: frame.Atoms}
	}

	results := s.runner(params).Run(r.Context(), jobs)

	resp := voxelizeXYZResponse{Frames: make([]gridSummary, len(results))}
	for i, res := range results {
		sum := summarize(jobs[i], res)
		if res.Err == nil {
			resp.Succeeded++
			if persist {
				s.persistResult(jobs[i], res, &sum)
			}
		} else {
			resp.Failed++
		}
		resp.Frames[i] = sum
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write results")
		return
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := 0 // ListRuns applies its own default
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.db.ListRuns(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list runs: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(runs); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write runs")
		return
	}
}

func (s *Server) runByID(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" || strings.Contains(id, "/") {
		s.writeJSONError(w, http.StatusNotFound, "Run not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		run, err := s.db.GetRun(id)
		if err != nil {
			if errors.Is(err, griddb.ErrRunNotFound) {
				s.writeJSONError(w, http.StatusNotFound, "Run not found")
				return
			}
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to retrieve run: %v", err))
			return
		}
		if err := json.NewEncoder(w).Encode(run); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, "Failed to write run")
			return
		}

	case http.MethodDelete:
		if err := s.db.DeleteRun(id); err != nil {
			if errors.Is(err, griddb.ErrRunNotFound) {
				s.writeJSONError(w, http.StatusNotFound, "Run not found")
				return
			}
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to delete run: %v", err))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"deleted": id})

	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// downloadGrid streams a stored grid back as a VXG attachment.
func (s *Server) downloadGrid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/grids/")
	if id == "" || strings.Contains(id, "/") {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusNotFound, "Run not found")
		return
	}

	g, run, err := s.db.LoadGrid(id)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		if errors.Is(err, griddb.ErrRunNotFound) {
			s.writeJSONError(w, http.StatusNotFound, "Run not found")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to load grid: %v", err))
		return
	}

	name := security.SanitizeFilename(run.Label)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".vxg"))
	if err := export.WriteGrid(w, g); err != nil {
		// Headers are already sent; all we can do is log.
		monitoring.Logf("[API] failed to stream grid %s: %v", id, err)
	}
}
