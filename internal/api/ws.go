package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/imgbridge/imgbridge/internal/bridge"
	"github.com/imgbridge/imgbridge/internal/history"
	"github.com/imgbridge/imgbridge/internal/imaging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsRequest is one operation frame. Data is standard JSON base64; encoding
// options left at zero fall back to the server defaults.
type wsRequest struct {
	ID      string `json:"id"`
	Op      string `json:"op"`
	Target  string `json:"target,omitempty"`
	Quality int    `json:"quality,omitempty"`
	Colors  int    `json:"colors,omitempty"`
	Data    []byte `json:"data,omitempty"`
}

// wsResponse echoes the frame ID so callers can match replies to requests
// regardless of interleaving on their side.
type wsResponse struct {
	ID     string `json:"id"`
	Op     string `json:"op"`
	OK     bool   `json:"ok"`
	Format string `json:"format,omitempty"`
	MIME   string `json:"mime,omitempty"`
	Width  uint32 `json:"width,omitempty"`
	Height uint32 `json:"height,omitempty"`
	Data   []byte `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// serveWS upgrades the connection and answers operation frames one at a
// time. Frames on one connection are handled in order; concurrency across
// connections is still serialized by the bridge.
func (s *Server) serveWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		return
	}
	defer conn.Close()

	// Base64 grows payloads by a third; doubling the byte ceiling keeps
	// every frame that could pass CheckSize readable, while anything larger
	// drops the connection outright.
	conn.SetReadLimit(s.limits.MaxBytes * 2)

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("websocket closed", "error", err)
			}
			return
		}
		if err := conn.WriteJSON(s.wsExecute(c, req)); err != nil {
			return
		}
	}
}

func (s *Server) wsExecute(c *gin.Context, req wsRequest) wsResponse {
	op := bridge.Op(req.Op)
	switch op {
	case bridge.OpDetect, bridge.OpDimensions, bridge.OpConvert:
	default:
		return wsResponse{ID: req.ID, Op: req.Op, Error: fmt.Sprintf("unknown op %q", req.Op)}
	}

	if err := s.limits.CheckSize(int64(len(req.Data))); err != nil {
		return wsFail(req, err)
	}

	opts := s.defaults
	if req.Quality != 0 {
		opts.JPEGQuality = req.Quality
	}
	if req.Colors != 0 {
		opts.GIFColors = req.Colors
	}

	inputBytes := int64(len(req.Data))
	var capturedAt *time.Time
	if op == bridge.OpConvert {
		if t, ok := history.CaptureTime(req.Data); ok {
			capturedAt = &t
		}
	}

	start := time.Now()
	resp, err := s.conv.Submit(c.Request.Context(), bridge.Request{
		ID:      req.ID,
		Op:      op,
		Target:  req.Target,
		Options: opts,
		Data:    req.Data,
	})
	if err == nil {
		err = resp.Err
	}
	if resp.ID != "" {
		req.ID = resp.ID // echo the minted ID when the frame had none
	}
	if op == bridge.OpConvert {
		s.record(history.OriginWS, req.ID, req.Target, resp, inputBytes, capturedAt, start, err)
	}
	if err != nil {
		return wsFail(req, err)
	}

	out := wsResponse{ID: req.ID, Op: req.Op, OK: true}
	switch op {
	case bridge.OpDetect:
		out.Format = resp.Format.String()
		out.MIME = resp.Format.MIME()
	case bridge.OpDimensions:
		out.Width, out.Height = resp.Width, resp.Height
	case bridge.OpConvert:
		tf, _ := imaging.ParseFormat(req.Target)
		out.Format = resp.Format.String()
		out.MIME = tf.MIME()
		out.Width, out.Height = resp.Width, resp.Height
		out.Data = resp.Data
	}
	return out
}

func wsFail(req wsRequest, err error) wsResponse {
	return wsResponse{
		ID:     req.ID,
		Op:     req.Op,
		Error:  bridge.RenderError(err),
		Detail: err.Error(),
	}
}
