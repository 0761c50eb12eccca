package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/StreamSniffer/internal/api/http"
	"github.com/GriffinCanCode/StreamSniffer/internal/domain/detect"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/config"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/logging"
)

const (
	writeWait = 10 * time.Second
	// candidateBuffer bounds how far discoveries may run ahead of the socket
	candidateBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the HTTP API is open to any origin as well
	},
}

// Message is one frame sent to the client
type Message struct {
	Type      string                  `json:"type"`
	Candidate *apihttp.Candidate      `json:"candidate,omitempty"`
	Result    *apihttp.DetectResponse `json:"result,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Code      string                  `json:"code,omitempty"`
	Timestamp int64                   `json:"timestamp"`
}

// Frame types
const (
	TypeCandidate = "candidate"
	TypeResult    = "result"
	TypeError     = "error"
)

// Handler streams detection runs over WebSocket
type Handler struct {
	detector  apihttp.Detector
	detectCfg config.DetectConfig
	logger    *logging.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(detector apihttp.Detector, detectCfg config.DetectConfig, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		detector:  detector,
		detectCfg: detectCfg,
		logger:    logger.Named("ws"),
	}
}

// HandleConnection validates the query, upgrades the connection and runs
// one detection, pushing each candidate as it is discovered.
func (h *Handler) HandleConnection(c *gin.Context) {
	req, err := apihttp.ParseDetectRequest(c, h.detectCfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, apihttp.ErrorResponse{Error: err.Error(), Code: apihttp.CodeInvalidRequest})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Hijacked connections do not cancel the request context on disconnect,
	// so a reader watches for the close frame instead.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go h.watch(conn, cancel)

	candidates := make(chan detect.ObservedURL, candidateBuffer)
	req.OnCandidate = func(o detect.ObservedURL) {
		select {
		case candidates <- o:
		case <-ctx.Done():
		}
	}

	written := make(chan struct{})
	go func() {
		defer close(written)
		h.pump(conn, candidates, cancel)
	}()

	result, err := h.detector.Detect(ctx, req)
	close(candidates)
	<-written

	if err != nil {
		_, code := apihttp.StatusFor(err)
		h.logger.Debug("Streamed detection failed", zap.String("url", req.TargetURL), zap.Error(err))
		_ = h.send(conn, Message{Type: TypeError, Error: err.Error(), Code: code})
	} else {
		resp := apihttp.NewDetectResponse(result)
		_ = h.send(conn, Message{Type: TypeResult, Result: &resp})
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// pump forwards candidates until the channel closes. After a write error it
// keeps draining so the collector never blocks.
func (h *Handler) pump(conn *websocket.Conn, candidates <-chan detect.ObservedURL, cancel context.CancelFunc) {
	broken := false
	for o := range candidates {
		if broken {
			continue
		}
		cand := apihttp.NewCandidate(o)
		if err := h.send(conn, Message{Type: TypeCandidate, Candidate: &cand}); err != nil {
			h.logger.Debug("WebSocket write failed", zap.Error(err))
			broken = true
			cancel()
		}
	}
}

// watch cancels the run once the client goes away
func (h *Handler) watch(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, msg Message) error {
	msg.Timestamp = time.Now().UnixMilli()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
