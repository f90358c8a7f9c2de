package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsvm/internal/hostapi"
	"github.com/GriffinCanCode/jsvm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsvm/internal/sandbox"
	"github.com/GriffinCanCode/jsvm/internal/shared/id"
	"github.com/GriffinCanCode/jsvm/internal/vm"
)

// MaxMessageBytes bounds a single client frame.
const MaxMessageBytes = 1 << 20

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origin checks happen in the CORS middleware
	},
}

// Message is a client frame.
type Message struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Script string `json:"script,omitempty"`
}

// Reply is a server frame.
type Reply struct {
	Type       string             `json:"type"`
	ID         string             `json:"id,omitempty"`
	ConnID     id.ConnID          `json:"conn_id,omitempty"`
	Value      any                `json:"value,omitempty"`
	Console    []hostapi.LogEntry `json:"console,omitempty"`
	DurationMS float64            `json:"duration_ms,omitempty"`
	Error      *ErrorInfo         `json:"error,omitempty"`
	Message    string             `json:"message,omitempty"`
	Timestamp  int64              `json:"timestamp"`
}

// ErrorInfo describes a failed evaluation.
type ErrorInfo struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Handler manages WebSocket connections
type Handler struct {
	config  sandbox.Config
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandler creates a new WebSocket handler. Every connection gets a
// runtime built from config.
func NewHandler(config sandbox.Config, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.Source = "ws"
	config.Metrics = metrics
	config.Logger = logger
	return &Handler{
		config:  config,
		metrics: metrics,
		logger:  logger.Named("ws"),
	}
}

// HandleConnection handles WebSocket upgrade and messages
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(MaxMessageBytes)

	connID := id.NewConnID()
	logger := h.logger.With(zap.String("conn_id", string(connID)))

	runtime, err := sandbox.New(h.config)
	if err != nil {
		logger.Error("Failed to create runtime", zap.Error(err))
		h.sendError(conn, "", "failed to create runtime")
		return
	}
	defer runtime.Close()

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	// Get request context for propagation
	reqCtx := c.Request.Context()

	h.send(conn, Reply{
		Type:    "system",
		ConnID:  connID,
		Message: "connected",
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.metrics.RecordWSMessage("in", "invalid")
			h.sendError(conn, "", "invalid message")
			continue
		}
		h.metrics.RecordWSMessage("in", msg.Type)

		switch msg.Type {
		case "eval":
			h.handleEval(reqCtx, conn, runtime, msg)
		case "reset":
			if err := runtime.Reset(); err != nil {
				h.sendError(conn, msg.ID, err.Error())
				continue
			}
			h.send(conn, Reply{Type: "reset", ID: msg.ID})
		case "ping":
			h.send(conn, Reply{Type: "pong", ID: msg.ID})
		default:
			h.sendError(conn, msg.ID, "unknown message type")
		}
	}
}

func (h *Handler) handleEval(ctx context.Context, conn *websocket.Conn, runtime *sandbox.Runtime, msg Message) {
	if msg.Script == "" {
		h.sendError(conn, msg.ID, "script is required")
		return
	}

	result, err := runtime.Execute(ctx, msg.Script)
	if result == nil {
		h.sendError(conn, msg.ID, err.Error())
		return
	}

	reply := Reply{
		Type:       "result",
		ID:         msg.ID,
		Value:      vm.JSONSafe(result.Value),
		Console:    result.Console,
		DurationMS: float64(result.Duration) / float64(time.Millisecond),
	}
	if err != nil {
		reply.Type = "error"
		reply.Value = nil
		reply.Error = errorInfo(err)
	}
	h.send(conn, reply)
}

func errorInfo(err error) *ErrorInfo {
	var se *vm.ScriptError
	if errors.As(err, &se) {
		info := &ErrorInfo{Name: se.Name, Message: se.Message, Stack: se.Stack}
		if info.Name == "" {
			info.Name = "Error"
		}
		if info.Message == "" {
			info.Message = se.Error()
		}
		return info
	}
	if errors.Is(err, sandbox.ErrExecutionTimeout) {
		return &ErrorInfo{Name: "TimeoutError", Message: err.Error()}
	}
	return &ErrorInfo{Name: "Error", Message: err.Error()}
}

func (h *Handler) send(conn *websocket.Conn, reply Reply) error {
	reply.Timestamp = time.Now().Unix()
	data, err := sonic.Marshal(reply)
	if err != nil {
		h.logger.Error("Failed to encode reply", zap.Error(err))
		return err
	}
	h.metrics.RecordWSMessage("out", reply.Type)
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Handler) sendError(conn *websocket.Conn, msgID, message string) error {
	return h.send(conn, Reply{
		Type:    "error",
		ID:      msgID,
		Message: message,
	})
}
