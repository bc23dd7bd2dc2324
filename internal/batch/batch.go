// Package batch fans voxelization jobs out over a worker pool. Multi-frame
// inputs and bulk conversions go through here so the CLI and server share
// one concurrency path.
package batch

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/structbio-data/atomgrid/internal/monitoring"
	"github.com/structbio-data/atomgrid/internal/voxel"
)

// Job is one structure to voxelize.
type Job struct {
	Source string // originating file or request, for reporting
	Index  int    // frame index within the source
	Label  string
	Atoms  []voxel.Atom
}

// Result pairs a job with its grid or failure. Results come back in job
// order regardless of which worker ran them.
type Result struct {
	Source  string
	Index   int
	Label   string
	Grid    *voxel.Grid
	Stats   voxel.GridStats
	Err     error
	Elapsed time.Duration
}

// EventType classifies progress events.
type EventType string

const (
	EventStarted  EventType = "started"
	EventFinished EventType = "finished"
	EventFailed   EventType = "failed"
)

// Event is a progress notification emitted while a batch runs. Events are
// JSON-ready so they can go straight onto a websocket.
type Event struct {
	Type          EventType `json:"type"`
	Source        string    `json:"source"`
	Index         int       `json:"index"`
	Label         string    `json:"label,omitempty"`
	ElapsedMs     float64   `json:"elapsed_ms,omitempty"`
	OccupiedCells int64     `json:"occupied_cells,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Runner voxelizes batches of jobs concurrently. The zero value is not
// usable; Alphabet must be set.
type Runner struct {
	// Workers is the pool size. Zero or less selects runtime.NumCPU().
	Workers int

	// Alphabet is the channel contract shared by every job in a batch.
	Alphabet *voxel.Alphabet

	// Options configures grid allocation for every job.
	Options voxel.Options

	// OnEvent, when set, receives progress events. It is called from
	// worker goroutines and must be safe for concurrent use.
	OnEvent func(Event)
}

// Run voxelizes all jobs and returns one result per job, in job order.
// When ctx is cancelled, jobs not yet started fail with the context error;
// jobs already in flight run to completion.
func (r *Runner) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	// Unbuffered so the feeder never runs ahead of the pool; cancellation
	// then cuts off cleanly at the next unclaimed job.
	jobCh := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobCh {
				results[i] = r.process(ctx, jobs[i])
			}
		}()
	}

	next := 0
feed:
	for ; next < len(jobs); next++ {
		select {
		case jobCh <- next:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobCh)
	wg.Wait()

	for ; next < len(jobs); next++ {
		job := jobs[next]
		results[next] = Result{Source: job.Source, Index: job.Index, Label: job.Label, Err: ctx.Err()}
	}

	return results
}

func (r *Runner) process(ctx context.Context, job Job) Result {
	if err := ctx.Err(); err != nil {
		return Result{Source: job.Source, Index: job.Index, Label: job.Label, Err: err}
	}

	r.emit(Event{Type: EventStarted, Source: job.Source, Index: job.Index, Label: job.Label})
	start := time.Now()

	g, err := voxel.Voxelize(job.Atoms, r.Alphabet, r.Options)
	elapsed := time.Since(start)

	result := Result{
		Source:  job.Source,
		Index:   job.Index,
		Label:   job.Label,
		Elapsed: elapsed,
	}

	if err != nil {
		result.Err = err
		monitoring.Logf("[Batch] %s[%d] failed after %s: %v", job.Source, job.Index, elapsed, err)
		r.emit(Event{
			Type:      EventFailed,
			Source:    job.Source,
			Index:     job.Index,
			Label:     job.Label,
			ElapsedMs: float64(elapsed.Microseconds()) / 1000,
			Error:     err.Error(),
		})
		return result
	}

	result.Grid = g
	result.Stats = g.Stats()
	r.emit(Event{
		Type:          EventFinished,
		Source:        job.Source,
		Index:         job.Index,
		Label:         job.Label,
		ElapsedMs:     float64(elapsed.Microseconds()) / 1000,
		OccupiedCells: result.Stats.OccupiedCells,
	})
	return result
}

func (r *Runner) emit(ev Event) {
	if r.OnEvent != nil {
		r.OnEvent(ev)
	}
}
