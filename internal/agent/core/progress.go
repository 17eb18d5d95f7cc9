package core

import (
	"sync"
	"time"
)

// ProgressRegistry is the process-wide map from run id to live progress.
// Only the executor goroutine for a run mutates that run's entry; pollers
// read deep-copied snapshots. Entries for settled runs are evicted by Prune
// once they are older than the retention window.
type ProgressRegistry struct {
	mu   sync.RWMutex
	runs map[string]*Progress
}

func NewProgressRegistry() *ProgressRegistry {
	return &ProgressRegistry{runs: make(map[string]*Progress)}
}

// Create initializes a run's progress with every step pending.
func (r *ProgressRegistry) Create(runID string, steps []Step) {
	entries := make([]StepProgress, len(steps))
	for i, s := range steps {
		entries[i] = StepProgress{Title: s.Title, Status: StepPending}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[runID] = &Progress{Steps: entries, UpdatedAt: time.Now().UTC()}
}

// Snapshot returns a deep copy of a run's progress, or an empty-steps
// default for an unknown run id.
func (r *ProgressRegistry) Snapshot(runID string) Progress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.runs[runID]
	if !ok {
		return Progress{Steps: []StepProgress{}}
	}
	out := Progress{Steps: make([]StepProgress, len(p.Steps)), UpdatedAt: p.UpdatedAt}
	for i, s := range p.Steps {
		cp := s
		cp.Substeps = append([]Substep(nil), s.Substeps...)
		out.Steps[i] = cp
	}
	return out
}

// StepRunning marks step i running with a description.
func (r *ProgressRegistry) StepRunning(runID string, i int, description string) {
	r.update(runID, i, func(s *StepProgress) {
		s.Status = StepRunning
		s.Description = description
	})
}

// StepDone marks step i done and records a substep summarizing the work.
func (r *ProgressRegistry) StepDone(runID string, i int, sub Substep) {
	r.update(runID, i, func(s *StepProgress) {
		s.Status = StepDone
		s.Substeps = append(s.Substeps, sub)
	})
}

// StepError marks step i failed with the error text as its substep.
func (r *ProgressRegistry) StepError(runID string, i int, errText string) {
	r.update(runID, i, func(s *StepProgress) {
		s.Status = StepError
		s.Substeps = append(s.Substeps, Substep{Title: "error", Content: errText})
	})
}

func (r *ProgressRegistry) update(runID string, i int, fn func(*StepProgress)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.runs[runID]
	if !ok || i < 0 || i >= len(p.Steps) {
		return
	}
	fn(&p.Steps[i])
	p.UpdatedAt = time.Now().UTC()
}

// Prune evicts settled runs older than retention, and any run untouched
// for ten times the retention window. Returns the number evicted.
func (r *ProgressRegistry) Prune(retention time.Duration) int {
	if retention <= 0 {
		return 0
	}
	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, p := range r.runs {
		age := now.Sub(p.UpdatedAt)
		if (p.Terminal() && age > retention) || age > 10*retention {
			delete(r.runs, id)
			evicted++
		}
	}
	return evicted
}

// StartJanitor prunes periodically until stop is closed.
func (r *ProgressRegistry) StartJanitor(retention time.Duration, stop <-chan struct{}) {
	if retention <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(retention / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Prune(retention)
			case <-stop:
				return
			}
		}
	}()
}
