package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsvm/internal/api/middleware"
	"github.com/GriffinCanCode/jsvm/internal/hostapi"
	"github.com/GriffinCanCode/jsvm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsvm/internal/sandbox"
	"github.com/GriffinCanCode/jsvm/internal/session"
	"github.com/GriffinCanCode/jsvm/internal/shared/id"
	"github.com/GriffinCanCode/jsvm/internal/shared/utils"
)

// Version is reported by the root endpoint.
const Version = "0.1.0"

// Options configures Handlers.
type Options struct {
	Pool           *sandbox.Pool
	Sessions       *session.Manager
	Fetcher        *hostapi.Fetcher // optional, reported by /health
	Metrics        *monitoring.Metrics
	Logger         *zap.Logger
	MaxScriptBytes int
}

// Handlers contains all HTTP handlers
type Handlers struct {
	pool           *sandbox.Pool
	sessions       *session.Manager
	fetcher        *hostapi.Fetcher
	metrics        *monitoring.Metrics
	logger         *zap.Logger
	maxScriptBytes int
	started        time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(opts Options) *Handlers {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxScriptBytes <= 0 {
		opts.MaxScriptBytes = 1 << 20
	}
	return &Handlers{
		pool:           opts.Pool,
		sessions:       opts.Sessions,
		fetcher:        opts.Fetcher,
		metrics:        opts.Metrics,
		logger:         opts.Logger.Named("http"),
		maxScriptBytes: opts.MaxScriptBytes,
		started:        time.Now(),
	}
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "jsvm",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":         "healthy",
		"uptime_seconds": time.Since(h.started).Seconds(),
		"pool":           h.pool.Stats(),
		"sessions":       h.sessions.Stats(),
		"metrics":        h.metrics.Snapshot(),
	}
	if h.fetcher != nil {
		body["fetch"] = gin.H{"breaker": h.fetcher.Breaker().State().String()}
	}
	c.JSON(http.StatusOK, body)
}

// Eval runs a script in a pooled runtime. No state survives the request.
func (h *Handlers) Eval(c *gin.Context) {
	req, ok := h.bindScript(c)
	if !ok {
		return
	}

	result, err := h.pool.Execute(c.Request.Context(), req.Script)
	h.respond(c, result, err)
}

// CreateSession starts a session with its own runtime
func (h *Handlers) CreateSession(c *gin.Context) {
	info, err := h.sessions.Create()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

// ListSessions lists all live sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions": h.sessions.List(),
		"stats":    h.sessions.Stats(),
	})
}

// GetSession returns one session
func (h *Handlers) GetSession(c *gin.Context) {
	sid, ok := sessionID(c)
	if !ok {
		return
	}
	info, err := h.sessions.Get(sid)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// EvalSession runs a script in a session, keeping its globals
func (h *Handlers) EvalSession(c *gin.Context) {
	sid, ok := sessionID(c)
	if !ok {
		return
	}
	req, ok := h.bindScript(c)
	if !ok {
		return
	}

	result, err := h.sessions.Eval(c.Request.Context(), sid, req.Script)
	h.respond(c, result, err)
}

// CallSession calls a global function of a session
func (h *Handlers) CallSession(c *gin.Context) {
	sid, ok := sessionID(c)
	if !ok {
		return
	}
	var req CallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := utils.ValidateIdentifier(req.Function, "function"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateCallArgs(req.Args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.sessions.Call(c.Request.Context(), sid, req.Function, req.Args...)
	h.respond(c, result, err)
}

// SetSessionGlobal stores a JSON value as a global of a session
func (h *Handlers) SetSessionGlobal(c *gin.Context) {
	sid, ok := sessionID(c)
	if !ok {
		return
	}
	var req GlobalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := c.Param("name")
	if err := utils.ValidateIdentifier(name, "name"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateJSONDepth(req.Value, utils.MaxPayloadDepth); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.sessions.SetGlobal(sid, name, req.Value); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "name": name})
}

// DeleteSession closes a session
func (h *Handlers) DeleteSession(c *gin.Context) {
	sid, ok := sessionID(c)
	if !ok {
		return
	}
	if err := h.sessions.Delete(sid); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": sid})
}

// Metrics serves the Prometheus registry
func (h *Handlers) Metrics(c *gin.Context) {
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

func (h *Handlers) bindScript(c *gin.Context) (EvalRequest, bool) {
	var req EvalRequest

	// a \uXXXX escape spends six body bytes on one script byte
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(6*h.maxScriptBytes+4096))
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.scriptTooLarge(c)
			return req, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}
	if len(req.Script) > h.maxScriptBytes {
		h.scriptTooLarge(c)
		return req, false
	}
	return req, true
}

func (h *Handlers) scriptTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"error": fmt.Sprintf("script exceeds %d bytes", h.maxScriptBytes),
	})
}

// respond writes an evaluation outcome. Script failures still carry the
// console output captured before the failure.
func (h *Handlers) respond(c *gin.Context, result *sandbox.Result, err error) {
	if result == nil {
		h.fail(c, err)
		return
	}

	resp := newEvalResponse(result)
	status := http.StatusOK
	if err != nil {
		status, _ = describeError(err)
		h.logger.Debug("Evaluation failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err))
	}
	c.JSON(status, resp)
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status, body := describeError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": body})
}

func sessionID(c *gin.Context) (id.SessionID, bool) {
	sid := id.SessionID(c.Param("id"))
	if !sid.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return "", false
	}
	return sid, true
}
