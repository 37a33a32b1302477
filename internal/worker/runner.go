package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/imgbridge/imgbridge/internal/bridge"
	"github.com/imgbridge/imgbridge/internal/guard"
	"github.com/imgbridge/imgbridge/internal/history"
	"github.com/imgbridge/imgbridge/internal/profile"
	"github.com/imgbridge/imgbridge/internal/utils"
)

// Runner drains the watch queue: for each stable source file it runs the
// conversion selected by the matching profile and records the outcome. A
// single goroutine consumes the queue; the bridge serializes conversions
// anyway, so more consumers would only reorder bookkeeping.
type Runner struct {
	store        *history.Store
	queue        *Queue
	conv         *bridge.Bridge
	profiles     *profile.File
	limits       guard.Limits
	log          *slog.Logger
	md5ChunkSize int64

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewRunner wires the watch pipeline's consumer.
func NewRunner(store *history.Store, q *Queue, conv *bridge.Bridge, profiles *profile.File, limits guard.Limits, md5ChunkSize int64, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		store:        store,
		queue:        q,
		conv:         conv,
		profiles:     profiles,
		limits:       limits,
		log:          log,
		md5ChunkSize: md5ChunkSize,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start launches the consumer goroutine.
func (r *Runner) Start() {
	go r.loop()
}

// Stop ends the consumer after its current item. Entries still queued are
// dropped; the next startup scan re-finds them. The wait is bounded by ctx.
func (r *Runner) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stop) })
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			return
		case path := <-r.queue.Chan():
			r.process(path)
		}
	}
}

// process converts one source file. Failures are recorded, never fatal to
// the loop.
func (r *Runner) process(path string) {
	defer r.queue.Dequeued(path)
	start := time.Now()

	prof, ok := r.profiles.Select(path)
	if !ok {
		r.log.Debug("no profile matches, skipping", "path", path)
		return
	}

	fi, err := os.Stat(path)
	if err != nil {
		// Gone before we got to it; the next event re-indexes it.
		r.log.Debug("source vanished", "path", path)
		return
	}

	// Size gate first: it needs no I/O beyond the stat that already
	// happened, and it spares hashing a file that would be rejected.
	if err := r.limits.CheckSize(fi.Size()); err != nil {
		r.recordFailure(path, prof, nil, 0, fi.Size(), err, time.Since(start))
		return
	}

	md5, err := utils.MD5File(path, r.md5ChunkSize)
	if err != nil {
		r.log.Warn("hashing source failed", "path", path, "error", err)
		return
	}
	idx, changed, err := r.store.UpsertIndex(path, md5)
	if err != nil {
		r.log.Warn("index upsert failed", "path", path, "error", err)
		return
	}
	if !changed {
		r.log.Debug("content unchanged, skipping", "path", path)
		return
	}

	if err := r.store.SetIndexStatus(idx.ID, history.StatusProcessing, "", "", prof.Target); err != nil {
		r.log.Warn("index status update failed", "path", path, "error", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		r.recordFailure(path, prof, idx, 0, fi.Size(), err, time.Since(start))
		return
	}
	inputBytes := int64(len(data))

	// Metadata must be read before the buffer is handed over; the bridge
	// owns it from Submit on.
	var capturedAt *time.Time
	if t, ok := history.CaptureTime(data); ok {
		capturedAt = &t
	}

	// Background context: a stop request lets the current item finish, and
	// a bridge that is already shut down fails the Submit instead of
	// blocking it.
	resp, err := r.conv.Submit(context.Background(), bridge.Request{
		Op:      bridge.OpConvert,
		Target:  prof.Target,
		Options: prof.Options(),
		Data:    data,
	})
	if err == nil {
		err = resp.Err
	}
	if err != nil {
		r.recordFailure(path, prof, idx, resp.Width, inputBytes, err, time.Since(start))
		return
	}

	outPath := utils.OutputPath(path, "."+prof.Target)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		r.recordFailure(path, prof, idx, resp.Width, inputBytes, err, time.Since(start))
		return
	}
	if err := os.WriteFile(outPath, resp.Data, 0o644); err != nil {
		r.recordFailure(path, prof, idx, resp.Width, inputBytes, err, time.Since(start))
		return
	}

	duration := time.Since(start)
	if err := r.store.SetIndexStatus(idx.ID, history.StatusSuccess, "", resp.Format.String(), prof.Target); err != nil {
		r.log.Warn("index status update failed", "path", path, "error", err)
	}
	rec := &history.ConversionRecord{
		RequestID:    resp.ID,
		Origin:       history.OriginWatch,
		SourceFormat: resp.Format.String(),
		TargetFormat: prof.Target,
		Width:        resp.Width,
		Height:       resp.Height,
		InputBytes:   inputBytes,
		OutputBytes:  int64(len(resp.Data)),
		DurationMs:   duration.Milliseconds(),
		Status:       history.StatusSuccess,
		CapturedAt:   capturedAt,
	}
	if err := r.store.Record(rec); err != nil {
		r.log.Warn("history record failed", "path", path, "error", err)
	}

	r.log.Info("converted",
		"path", path,
		"output", outPath,
		"source_format", resp.Format.String(),
		"target", prof.Target,
		"elapsed", duration)
}

func (r *Runner) recordFailure(path string, prof profile.Profile, idx *history.FileIndex, width uint32, inputBytes int64, cause error, elapsed time.Duration) {
	r.log.Warn("conversion failed", "path", path, "target", prof.Target, "error", cause)
	if idx != nil {
		if err := r.store.SetIndexStatus(idx.ID, history.StatusFailed, cause.Error(), "", prof.Target); err != nil {
			r.log.Warn("index status update failed", "path", path, "error", err)
		}
	}
	rec := &history.ConversionRecord{
		Origin:       history.OriginWatch,
		TargetFormat: prof.Target,
		Width:        width,
		InputBytes:   inputBytes,
		DurationMs:   elapsed.Milliseconds(),
		Status:       history.StatusFailed,
		Error:        cause.Error(),
	}
	if err := r.store.Record(rec); err != nil {
		r.log.Warn("history record failed", "path", path, "error", err)
	}
}
