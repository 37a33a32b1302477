// Package bridge is the message-passing boundary in front of the
// conversion core. Exactly one worker goroutine owns the core, so at most
// one operation executes at a time; requests queue in FIFO order and a
// started operation is never aborted. Callers correlate responses to
// requests through the echoed request ID.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imgbridge/imgbridge/internal/guard"
	"github.com/imgbridge/imgbridge/internal/imaging"
)

// ErrClosed is returned for submissions that arrive after shutdown began,
// and for queued submissions that never started when it did.
var ErrClosed = errors.New("bridge is shut down")

// Op selects which of the three core operations a request performs.
type Op string

const (
	OpDetect     Op = "detect"
	OpDimensions Op = "dimensions"
	OpConvert    Op = "convert"
)

// Request is one operation submitted to the worker. Data ownership
// transfers to the bridge on Submit: the caller must not read or reuse the
// slice afterwards, which is what lets buffers cross the boundary without
// a copy.
type Request struct {
	ID      string
	Op      Op
	Target  string // conversion target identifier, OpConvert only
	Options imaging.EncodeOptions
	Data    []byte
}

// Response carries an operation's outcome. ID always echoes the request
// ID. On success Format holds the detected source format, Width/Height the
// probed dimensions, and Data the converted bytes (OpConvert only). On
// failure Err holds the structured error; RenderError turns it into the
// sentence shown to end users.
type Response struct {
	ID     string
	Op     Op
	Format imaging.Format
	Width  uint32
	Height uint32
	Data   []byte
	Err    error
}

type submission struct {
	req   Request
	reply chan Response
}

// Bridge serializes core operations onto a single worker goroutine.
type Bridge struct {
	limits   guard.Limits
	log      *slog.Logger
	requests chan submission
	quit     chan struct{}
	done     chan struct{}
	closing  sync.Once
	inflight inflight
}

// New builds a stopped bridge; call Start before submitting.
func New(limits guard.Limits, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		limits:   limits,
		log:      log,
		requests: make(chan submission, 32),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the worker goroutine. Call it once.
func (b *Bridge) Start() {
	go b.run()
}

// Shutdown stops accepting work, fails queued submissions that never
// started, and waits for any in-flight operation to finish or ctx to
// expire. A started conversion is never aborted; there is no cancellation
// path through the core.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.closing.Do(func() { close(b.quit) })
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues one operation and blocks until its response arrives or ctx
// is done. An empty request ID is replaced with a fresh UUID; the response
// echoes whichever ID was used. Abandoning a submission via ctx does not
// stop the operation itself.
func (b *Bridge) Submit(ctx context.Context, req Request) (Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if err := ctx.Err(); err != nil {
		return Response{ID: req.ID, Op: req.Op}, err
	}
	sub := submission{req: req, reply: make(chan Response, 1)}
	select {
	case b.requests <- sub:
	case <-b.quit:
		return Response{ID: req.ID, Op: req.Op}, ErrClosed
	case <-ctx.Done():
		return Response{ID: req.ID, Op: req.Op}, ctx.Err()
	}
	select {
	case resp := <-sub.reply:
		return resp, nil
	case <-b.done:
		return Response{ID: req.ID, Op: req.Op}, ErrClosed
	case <-ctx.Done():
		return Response{ID: req.ID, Op: req.Op}, ctx.Err()
	}
}

// Pending reports how many submissions are queued behind the worker.
func (b *Bridge) Pending() int { return len(b.requests) }

func (b *Bridge) run() {
	defer close(b.done)
	for {
		select {
		case <-b.quit:
			b.rejectQueued()
			return
		case sub := <-b.requests:
			b.serve(sub)
		}
	}
}

// rejectQueued fails everything that queued up but never started.
func (b *Bridge) rejectQueued() {
	for {
		select {
		case sub := <-b.requests:
			sub.reply <- Response{ID: sub.req.ID, Op: sub.req.Op, Err: ErrClosed}
		default:
			return
		}
	}
}

func (b *Bridge) serve(sub submission) {
	reply := sub.reply
	req := sub.req
	sub = submission{} // the queued copy must not pin the input buffer
	reply <- b.execute(req)
}

// execute runs one operation on the worker goroutine. For OpConvert the
// sequence matches the pipeline contract: detect and probe (informational,
// header-only), megapixel gate, then the engine's decode/release/encode.
// The byte-size gate is the submitter's job, because it must run before
// the buffer is handed across the boundary at all.
func (b *Bridge) execute(req Request) Response {
	start := time.Now()
	b.inflight.begin(req)
	defer b.inflight.end()

	data := req.Data
	req.Data = nil

	resp := Response{ID: req.ID, Op: req.Op}
	switch req.Op {
	case OpDetect:
		f, err := imaging.Detect(data)
		if err != nil {
			resp.Err = err
			break
		}
		resp.Format = f

	case OpDimensions:
		dims, err := imaging.Probe(data)
		if err != nil {
			resp.Err = err
			break
		}
		resp.Width, resp.Height = dims.Width, dims.Height

	case OpConvert:
		// Target validation precedes every look at the bytes, so a bad
		// target is reported the same way whether or not the input is
		// usable.
		if _, err := imaging.ResolveTarget(req.Target); err != nil {
			resp.Err = err
			break
		}
		srcFmt, err := imaging.Detect(data)
		if err != nil {
			resp.Err = err
			break
		}
		dims, err := imaging.Probe(data)
		if err != nil {
			resp.Err = err
			break
		}
		if err := b.limits.CheckDimensions(dims); err != nil {
			resp.Err = err
			break
		}
		// From here only the engine holds the input; it drops its
		// reference between decode and encode.
		out, err := imaging.ConvertWithOptions(data, req.Target, req.Options)
		data = nil
		if err != nil {
			resp.Err = err
			break
		}
		resp.Format = srcFmt
		resp.Width, resp.Height = dims.Width, dims.Height
		resp.Data = out

	default:
		resp.Err = errors.New("unknown operation " + string(req.Op))
	}

	if resp.Err != nil {
		b.log.Warn("operation failed",
			"op", string(req.Op),
			"request_id", req.ID,
			"elapsed", time.Since(start),
			"error", resp.Err)
	} else {
		b.log.Debug("operation done",
			"op", string(req.Op),
			"request_id", req.ID,
			"format", string(resp.Format),
			"output_bytes", len(resp.Data),
			"elapsed", time.Since(start))
	}
	return resp
}
