package bridge

import (
	"sync"
	"time"
)

// Job describes the operation the worker is currently executing.
type Job struct {
	ID         string    `json:"id"`
	Op         Op        `json:"op"`
	Target     string    `json:"target,omitempty"`
	InputBytes int64     `json:"input_bytes"`
	StartedAt  time.Time `json:"started_at"`
}

// inflight tracks the single in-flight job. Readers get a copy, never the
// live struct.
type inflight struct {
	mu  sync.RWMutex
	cur *Job
}

func (t *inflight) begin(req Request) {
	t.mu.Lock()
	t.cur = &Job{
		ID:         req.ID,
		Op:         req.Op,
		Target:     req.Target,
		InputBytes: int64(len(req.Data)),
		StartedAt:  time.Now(),
	}
	t.mu.Unlock()
}

func (t *inflight) end() {
	t.mu.Lock()
	t.cur = nil
	t.mu.Unlock()
}

func (t *inflight) snapshot() (Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.cur == nil {
		return Job{}, false
	}
	return *t.cur, true
}

// InFlight reports the operation the worker is executing right now, if
// any. Stats surfaces poll this.
func (b *Bridge) InFlight() (Job, bool) { return b.inflight.snapshot() }
