package dashboard

import (
	"context"
	"sync"

	"github.com/mfolsom/drivelog/internal/export"
	"github.com/mfolsom/drivelog/internal/models"
)

// ExportFunc runs one session export, reporting state and progress through
// onUpdate, and returns the path of the finished file.
type ExportFunc func(ctx context.Context, s *models.Session, onUpdate func(state string, progress float64)) (string, error)

// Runner launches exports in the background and publishes their progress to
// the hub. At most one export runs per session; re-triggers for a session
// already in flight are ignored.
type Runner struct {
	hub    *Hub
	export ExportFunc

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewRunner(hub *Hub, export ExportFunc) *Runner {
	return &Runner{
		hub:      hub,
		export:   export,
		inflight: make(map[string]struct{}),
	}
}

// Trigger starts an export for the session unless one is already running.
// Returns whether an export was started. The export outlives the caller;
// ctx should be the server's lifetime, not a request's.
func (r *Runner) Trigger(ctx context.Context, s *models.Session) bool {
	r.mu.Lock()
	if _, busy := r.inflight[s.ID]; busy {
		r.mu.Unlock()
		return false
	}
	r.inflight[s.ID] = struct{}{}
	r.mu.Unlock()

	r.hub.Publish(ProgressUpdate{SessionID: s.ID, State: string(export.StateWriting)})
	go r.run(ctx, s)
	return true
}

func (r *Runner) run(ctx context.Context, s *models.Session) {
	defer func() {
		r.mu.Lock()
		delete(r.inflight, s.ID)
		r.mu.Unlock()
	}()

	out, err := r.export(ctx, s, func(state string, progress float64) {
		r.hub.Publish(ProgressUpdate{SessionID: s.ID, State: state, Progress: progress})
	})
	if err != nil {
		state := export.StateFailed
		if export.ReasonOf(err) == export.ReasonCancelled {
			state = export.StateCancelled
		}
		r.hub.Publish(ProgressUpdate{SessionID: s.ID, State: string(state), Error: err.Error()})
		return
	}
	r.hub.Publish(ProgressUpdate{
		SessionID: s.ID,
		State:     string(export.StateCompleted),
		Progress:  1,
		Output:    out,
	})
}
