package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/jsvm/internal/api/middleware"
	"github.com/GriffinCanCode/jsvm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsvm/internal/sandbox"
	"github.com/GriffinCanCode/jsvm/internal/session"
)

type testServer struct {
	router   *gin.Engine
	sessions *session.Manager
}

func newTestServer(t *testing.T, maxScriptBytes int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics := monitoring.NewMetrics()
	cfg := sandbox.DefaultConfig()
	cfg.Timeout = 200 * time.Millisecond
	cfg.Metrics = metrics

	pool, err := sandbox.NewPool(cfg, 2)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	sessions := session.NewManager(session.Config{MaxSessions: 2, Sandbox: cfg}, nil, metrics)
	t.Cleanup(func() { sessions.Close() })

	router := gin.New()
	router.Use(middleware.RequestID(), monitoring.Middleware(metrics))
	RegisterRoutes(router, NewHandlers(Options{
		Pool:           pool,
		Sessions:       sessions,
		Metrics:        metrics,
		MaxScriptBytes: maxScriptBytes,
	}))
	return &testServer{router: router, sessions: sessions}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func script(src string) string {
	body, _ := sonic.MarshalString(EvalRequest{Script: src})
	return body
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRoot(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do("GET", "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "online", decode(t, w)["status"])
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do("GET", "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(2), body["pool"].(map[string]any)["size"])
	assert.Equal(t, float64(0), body["sessions"].(map[string]any)["active"])
	assert.NotContains(t, body, "fetch")
}

func TestEval(t *testing.T) {
	s := newTestServer(t, 0)

	tests := []struct {
		name      string
		script    string
		wantCode  int
		wantValue string
		wantError string
	}{
		{
			name:      "ordered object",
			script:    "({b: 1, a: [1, 2]})",
			wantCode:  http.StatusOK,
			wantValue: `"value":{"b":1,"a":[1,2]}`,
		},
		{
			name:      "non-finite numbers",
			script:    "[NaN, Infinity, 1]",
			wantCode:  http.StatusOK,
			wantValue: `"value":[null,null,1]`,
		},
		{
			name:      "undefined",
			script:    "undefined",
			wantCode:  http.StatusOK,
			wantValue: `"value":null`,
		},
		{
			name:      "type error",
			script:    "null.x",
			wantCode:  http.StatusUnprocessableEntity,
			wantError: "TypeError",
		},
		{
			name:      "syntax error",
			script:    "function (",
			wantCode:  http.StatusUnprocessableEntity,
			wantError: "SyntaxError",
		},
		{
			name:      "timeout",
			script:    "for (;;) {}",
			wantCode:  http.StatusRequestTimeout,
			wantError: "TimeoutError",
		},
		{
			name:      "cyclic result",
			script:    "var o = {}; o.o = o; o",
			wantCode:  http.StatusUnprocessableEntity,
			wantError: "ConversionError",
		},
		{
			name:      "sparse array result",
			script:    "var a = []; a.length = 4294967295; a",
			wantCode:  http.StatusUnprocessableEntity,
			wantError: "ConversionError",
		},
		{
			name:      "looping toJSON",
			script:    "({toJSON: function () { for (;;) {} }})",
			wantCode:  http.StatusRequestTimeout,
			wantError: "TimeoutError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do("POST", "/eval", script(tt.script))
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())

			if tt.wantValue != "" {
				assert.Contains(t, w.Body.String(), tt.wantValue)
			}
			if tt.wantError != "" {
				errBody := decode(t, w)["error"].(map[string]any)
				assert.Equal(t, tt.wantError, errBody["name"])
			}
		})
	}
}

func TestEvalThrownString(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do("POST", "/eval", script(`console.log("before"); throw "ERROR!"`))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	body := decode(t, w)
	assert.Equal(t, map[string]any{"name": "Error", "message": "ERROR!"}, body["error"])
	console := body["console"].([]any)
	require.Len(t, console, 1)
	assert.Equal(t, "before", console[0].(map[string]any)["message"])
}

func TestEvalIsStateless(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do("POST", "/eval", script("var leaked = 1; leaked"))
	require.Equal(t, http.StatusOK, w.Code)

	for i := 0; i < 3; i++ {
		w = s.do("POST", "/eval", script("typeof leaked"))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "undefined", decode(t, w)["value"])
	}
}

func TestEvalBadRequests(t *testing.T) {
	s := newTestServer(t, 32)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", "{", http.StatusBadRequest},
		{"missing script", "{}", http.StatusBadRequest},
		{"script too large", script(strings.Repeat("1;", 20)), http.StatusRequestEntityTooLarge},
		{"body too large", `{"script": "` + strings.Repeat("x", 8192) + `"}`, http.StatusRequestEntityTooLarge},
		{"within limit", script("1 + 1"), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do("POST", "/eval", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestEvalEscapedScriptWithinLimit(t *testing.T) {
	s := newTestServer(t, 4096)

	body := `{"script": "'` + strings.Repeat(`\u0001`, 4000) + `'.length"}`
	require.Greater(t, len(body), 2*4096+4096)

	w := s.do("POST", "/eval", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(4000), decode(t, w)["value"])
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do("POST", "/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	sid := decode(t, w)["id"].(string)
	base := "/sessions/" + sid

	w = s.do("POST", base+"/eval", script("var count = 10; function add(a, b) { return a + b + count; }"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do("POST", base+"/eval", script("count + 1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(11), decode(t, w)["value"])

	w = s.do("POST", base+"/call", `{"function": "add", "args": [1, 2]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(13), decode(t, w)["value"])

	w = s.do("PUT", base+"/globals/settings", `{"value": {"mode": "fast", "level": 3}}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do("POST", base+"/eval", script("settings.mode + settings.level"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fast3", decode(t, w)["value"])

	w = s.do("GET", base, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), decode(t, w)["evaluations"])

	w = s.do("GET", "/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["sessions"], 1)

	w = s.do("DELETE", base, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do("POST", base+"/eval", script("1"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do("DELETE", base, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionErrors(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do("GET", "/sessions/not-an-id", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusCreated, s.do("POST", "/sessions", "").Code)
	}
	w = s.do("POST", "/sessions", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	sid := s.sessions.List()[0].ID
	w = s.do("POST", "/sessions/"+string(sid)+"/call", `{"args": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do("POST", "/sessions/"+string(sid)+"/call", `{"function": "nope"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	invalid := []struct {
		method string
		path   string
		body   string
	}{
		{"POST", "/call", `{"function": "alert('x')"}`},
		{"POST", "/call", `{"function": "f", "args": [` + strings.Repeat("[", 70) + strings.Repeat("]", 70) + `]}`},
		{"PUT", "/globals/not-valid", `{"value": 1}`},
		{"PUT", "/globals/deep", `{"value": ` + strings.Repeat("[", 70) + strings.Repeat("]", 70) + `}`},
	}
	for _, tt := range invalid {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := s.do(tt.method, "/sessions/"+string(sid)+tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "invalid input")
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 0)

	require.Equal(t, http.StatusOK, s.do("POST", "/eval", script("1")).Code)

	w := s.do("GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `jsvm_evaluations_total{source="pool",status="ok"} 1`)
	assert.Contains(t, w.Body.String(), `jsvm_http_requests_total{method="POST",path="/eval",status="200"} 1`)
}
