// Package api exposes the converter over HTTP and WebSocket. Handlers
// translate between wire shapes and bridge operations; every response
// echoes the request's correlation ID in X-Request-Id.
package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/imgbridge/imgbridge/internal/bridge"
	"github.com/imgbridge/imgbridge/internal/guard"
	"github.com/imgbridge/imgbridge/internal/history"
	"github.com/imgbridge/imgbridge/internal/imaging"
	"github.com/imgbridge/imgbridge/internal/watcher"
	"github.com/imgbridge/imgbridge/internal/worker"
)

const headerRequestID = "X-Request-Id"

type Server struct {
	Router *gin.Engine
	store  *history.Store
	conv   *bridge.Bridge
	queue  *worker.Queue
	watch  *watcher.Watcher
	limits guard.Limits
	log    *slog.Logger

	defaults imaging.EncodeOptions
}

// NewServer builds the router. queue and watch may be nil when the watch
// pipeline is disabled; the routes that control it then report that state.
func NewServer(store *history.Store, conv *bridge.Bridge, q *worker.Queue, w *watcher.Watcher, limits guard.Limits, defaults imaging.EncodeOptions, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery(), cors.Default(), requestID())

	s := &Server{
		Router:   g,
		store:    store,
		conv:     conv,
		queue:    q,
		watch:    w,
		limits:   limits,
		log:      log,
		defaults: defaults,
	}

	g.GET("/healthz", s.health)

	api := g.Group("/api")
	api.GET("/formats", s.listFormats)
	api.POST("/detect", s.detect)
	api.POST("/dimensions", s.dimensions)
	api.POST("/convert", s.convert)
	api.GET("/conversions", s.listConversions)
	api.GET("/files", s.listFiles)
	api.GET("/files/:id", s.getFile)
	api.GET("/stats", s.getStats)
	api.POST("/scan", s.scanNow)
	api.POST("/watch/pause", s.pauseWatch)
	api.POST("/watch/resume", s.resumeWatch)
	api.GET("/ws", s.serveWS)

	return s
}

// requestID echoes the caller's correlation ID or mints one, on every
// response including errors.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func reqID(c *gin.Context) string { return c.GetString("request_id") }

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"formats": imaging.ListInfo()})
}

func (s *Server) detect(c *gin.Context) {
	data, ok := s.readBody(c)
	if !ok {
		return
	}
	resp, err := s.conv.Submit(c.Request.Context(), bridge.Request{ID: reqID(c), Op: bridge.OpDetect, Data: data})
	if err == nil {
		err = resp.Err
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"request_id": resp.ID,
		"format":     resp.Format.String(),
		"mime":       resp.Format.MIME(),
	})
}

func (s *Server) dimensions(c *gin.Context) {
	data, ok := s.readBody(c)
	if !ok {
		return
	}
	resp, err := s.conv.Submit(c.Request.Context(), bridge.Request{ID: reqID(c), Op: bridge.OpDimensions, Data: data})
	if err == nil {
		err = resp.Err
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	dims := imaging.Dimensions{Width: resp.Width, Height: resp.Height}
	c.JSON(http.StatusOK, gin.H{
		"request_id": resp.ID,
		"width":      resp.Width,
		"height":     resp.Height,
		"megapixels": dims.Megapixels(),
	})
}

// convert streams back the converted bytes. The source format and pixel
// dimensions ride along as headers so clients need no second request.
func (s *Server) convert(c *gin.Context) {
	target := c.Query("target")
	opts := s.defaults
	if q := c.Query("quality"); q != "" {
		opts.JPEGQuality = parseIntDefault(q, opts.JPEGQuality)
	}
	if n := c.Query("colors"); n != "" {
		opts.GIFColors = parseIntDefault(n, opts.GIFColors)
	}

	data, ok := s.readBody(c)
	if !ok {
		return
	}
	inputBytes := int64(len(data))

	// EXIF is read before Submit; the buffer belongs to the bridge after.
	var capturedAt *time.Time
	if t, ok := history.CaptureTime(data); ok {
		capturedAt = &t
	}

	start := time.Now()
	resp, err := s.conv.Submit(c.Request.Context(), bridge.Request{
		ID:      reqID(c),
		Op:      bridge.OpConvert,
		Target:  target,
		Options: opts,
		Data:    data,
	})
	if err == nil {
		err = resp.Err
	}
	if err != nil {
		s.record(history.OriginAPI, reqID(c), target, resp, inputBytes, capturedAt, start, err)
		s.fail(c, err)
		return
	}
	s.record(history.OriginAPI, reqID(c), target, resp, inputBytes, capturedAt, start, nil)

	tf, _ := imaging.ParseFormat(target)
	c.Header("X-Source-Format", resp.Format.String())
	c.Header("X-Image-Width", strconv.FormatUint(uint64(resp.Width), 10))
	c.Header("X-Image-Height", strconv.FormatUint(uint64(resp.Height), 10))
	c.Data(http.StatusOK, tf.MIME(), resp.Data)
}

func (s *Server) record(origin, id, target string, resp bridge.Response, inputBytes int64, capturedAt *time.Time, start time.Time, cause error) {
	rec := &history.ConversionRecord{
		RequestID:    id,
		Origin:       origin,
		SourceFormat: resp.Format.String(),
		TargetFormat: target,
		Width:        resp.Width,
		Height:       resp.Height,
		InputBytes:   inputBytes,
		OutputBytes:  int64(len(resp.Data)),
		DurationMs:   time.Since(start).Milliseconds(),
		Status:       history.StatusSuccess,
		CapturedAt:   capturedAt,
	}
	if cause != nil {
		rec.Status = history.StatusFailed
		rec.Error = cause.Error()
	}
	if err := s.store.Record(rec); err != nil {
		s.log.Warn("history record failed", "request_id", id, "error", err)
	}
}

func (s *Server) listConversions(c *gin.Context) {
	limit := parseIntDefault(c.Query("limit"), 50)
	offset := parseIntDefault(c.Query("offset"), 0)
	rows, total, err := s.store.Recent(limit, offset, c.Query("status"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "request_id": reqID(c)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "total": total})
}

func (s *Server) listFiles(c *gin.Context) {
	limit := parseIntDefault(c.Query("limit"), 50)
	offset := parseIntDefault(c.Query("offset"), 0)
	rows, total, err := s.store.ListIndex(limit, offset, c.Query("status"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "request_id": reqID(c)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "total": total})
}

func (s *Server) getFile(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id", "request_id": reqID(c)})
		return
	}
	row, err := s.store.GetIndex(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "request_id": reqID(c)})
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.store.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "request_id": reqID(c)})
		return
	}
	out := gin.H{
		"conversions": stats,
		"pending_ops": s.conv.Pending(),
	}
	if job, busy := s.conv.InFlight(); busy {
		out["in_flight"] = job
	}
	if s.queue != nil {
		out["queue_len"] = s.queue.Len()
	}
	if s.watch != nil {
		state := "running"
		if s.watch.Paused() {
			state = "paused"
		}
		out["watcher_state"] = state
	} else {
		out["watcher_state"] = "disabled"
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) scanNow(c *gin.Context) {
	if s.watch == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "watch pipeline is disabled", "request_id": reqID(c)})
		return
	}
	go s.watch.ScanAll()
	c.JSON(http.StatusOK, gin.H{"started": true})
}

func (s *Server) pauseWatch(c *gin.Context) {
	if s.watch == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "watch pipeline is disabled", "request_id": reqID(c)})
		return
	}
	s.watch.Pause()
	c.JSON(http.StatusOK, gin.H{"watcher_state": "paused"})
}

func (s *Server) resumeWatch(c *gin.Context) {
	if s.watch == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "watch pipeline is disabled", "request_id": reqID(c)})
		return
	}
	s.watch.Resume()
	c.JSON(http.StatusOK, gin.H{"watcher_state": "running"})
}

// readBody reads the full request body under the byte ceiling. The ceiling
// is enforced twice: on the declared Content-Length before reading, and by
// MaxBytesReader against clients that declare less than they send.
func (s *Server) readBody(c *gin.Context) ([]byte, bool) {
	if n := c.Request.ContentLength; n > 0 {
		if err := s.limits.CheckSize(n); err != nil {
			s.fail(c, err)
			return nil, false
		}
	}
	r := http.MaxBytesReader(c.Writer, c.Request.Body, s.limits.MaxBytes)
	data, err := io.ReadAll(r)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.fail(c, &guard.SizeError{Bytes: mbe.Limit + 1, MaxBytes: s.limits.MaxBytes})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reading request body: " + err.Error(), "request_id": reqID(c)})
		}
		return nil, false
	}
	return data, true
}

// fail maps structured errors to HTTP statuses and renders both the
// human-readable sentence and the raw detail.
func (s *Server) fail(c *gin.Context, err error) {
	c.JSON(httpStatus(err), gin.H{
		"error":      bridge.RenderError(err),
		"detail":     err.Error(),
		"request_id": reqID(c),
	})
}

func httpStatus(err error) int {
	var (
		target *imaging.UnsupportedTargetError
		dec    *imaging.DecodeError
		size   *guard.SizeError
		mp     *guard.MegapixelError
	)
	switch {
	case errors.Is(err, imaging.ErrEmptyInput), errors.As(err, &target):
		return http.StatusBadRequest
	case errors.As(err, &size), errors.As(err, &mp):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, imaging.ErrUnrecognized):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &dec):
		return http.StatusUnprocessableEntity
	case errors.Is(err, bridge.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
