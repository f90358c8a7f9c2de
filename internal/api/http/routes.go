package http

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the REST API on r.
func RegisterRoutes(r gin.IRouter, h *Handlers) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/metrics", h.Metrics)

	// One-shot evaluation
	r.POST("/eval", h.Eval)

	// Sessions
	r.POST("/sessions", h.CreateSession)
	r.GET("/sessions", h.ListSessions)
	r.GET("/sessions/:id", h.GetSession)
	r.POST("/sessions/:id/eval", h.EvalSession)
	r.POST("/sessions/:id/call", h.CallSession)
	r.PUT("/sessions/:id/globals/:name", h.SetSessionGlobal)
	r.DELETE("/sessions/:id", h.DeleteSession)
}
