package hostapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/idna"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/jsvm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsvm/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/jsvm/internal/vm"
)

var (
	ErrInvalidURL     = errors.New("invalid URL")
	ErrHostNotAllowed = errors.New("host not allowed")
	ErrBodyTooLarge   = errors.New("response body too large")
	ErrNotText        = errors.New("response body is not text")
)

// StatusError is returned for responses with a 4xx or 5xx status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// FetchConfig configures the fetchText host function.
type FetchConfig struct {
	Timeout       time.Duration
	RetryMax      int
	RetryWaitMin  time.Duration
	RetryWaitMax  time.Duration
	RatePerSecond float64 // <= 0 means unlimited
	Burst         int
	MaxBodyBytes  int64
	AllowedHosts  []string // empty allows every host; "*.example.com" matches subdomains
	UserAgent     string
}

// DefaultFetchConfig returns conservative limits for script-initiated requests.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:       10 * time.Second,
		RetryMax:      2,
		RetryWaitMin:  200 * time.Millisecond,
		RetryWaitMax:  2 * time.Second,
		RatePerSecond: 5,
		Burst:         10,
		MaxBodyBytes:  1 << 20,
		UserAgent:     "jsvm-fetch/1.0",
	}
}

// Fetcher performs outbound GET requests on behalf of scripts.
type Fetcher struct {
	client  *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	config  FetchConfig
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewFetcher builds a resty client over a retrying transport, guarded by a
// rate limiter and a circuit breaker.
func NewFetcher(cfg FetchConfig, logger *zap.Logger, metrics *monitoring.Metrics) *Fetcher {
	defaults := DefaultFetchConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = defaults.RetryWaitMin
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = defaults.RetryWaitMax
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("fetch")

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = retryLogger{logger.Sugar()}
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	breaker := resilience.New("fetch", resilience.Settings{
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < 500
			}
			return err == nil || errors.Is(err, ErrBodyTooLarge) || errors.Is(err, ErrNotText)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	return &Fetcher{
		client:  client,
		limiter: limiter,
		breaker: breaker,
		config:  cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Breaker exposes the circuit breaker for health reporting.
func (f *Fetcher) Breaker() *resilience.Breaker {
	return f.breaker
}

// Fetch GETs rawURL and returns the body as UTF-8 text. Bodies in other
// charsets are decoded; binary bodies fail with ErrNotText.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if !f.allowed(u.Hostname()) {
		return "", fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Hostname())
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit error: %w", err)
	}

	start := time.Now()
	body, err := resilience.Call(f.breaker, func() (string, error) {
		return f.get(ctx, u.String())
	})
	f.logger.Debug("Fetch completed",
		zap.String("url", u.Redacted()),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err))
	return body, err
}

func (f *Fetcher) get(ctx context.Context, target string) (string, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(target)
	if err != nil {
		return "", err
	}
	raw := resp.RawBody()
	defer raw.Close()

	if resp.StatusCode() >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(raw, 4096))
		return "", &StatusError{StatusCode: resp.StatusCode(), URL: target}
	}

	data, err := io.ReadAll(io.LimitReader(raw, f.config.MaxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) > f.config.MaxBodyBytes {
		return "", fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, f.config.MaxBodyBytes)
	}
	return decodeBody(data, resp.Header().Get("Content-Type"))
}

// decodeBody converts a text body to UTF-8. A charset named in contentType
// wins over detection.
func decodeBody(data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	if detected := mimetype.Detect(data); !isText(detected) {
		return "", fmt.Errorf("%w: %s", ErrNotText, detected.String())
	}

	label := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		label = params["charset"]
	}
	if label == "" {
		if utf8.Valid(data) {
			return string(data), nil
		}
		label = DetectCharset(data)
	}

	enc, name := charset.Lookup(label)
	if enc == nil || name == "utf-8" {
		return strings.ToValidUTF8(string(data), "\uFFFD"), nil
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s body: %w", name, err)
	}
	return string(out), nil
}

// DetectCharset guesses the charset of data, defaulting to utf-8.
func DetectCharset(data []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func (f *Fetcher) allowed(host string) bool {
	if len(f.config.AllowedHosts) == 0 {
		return true
	}
	host, ok := asciiHost(host)
	if !ok {
		return false
	}
	for _, pattern := range f.config.AllowedHosts {
		wildcard := false
		pattern = strings.TrimSpace(pattern)
		if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
			pattern, wildcard = suffix, true
		}
		want, ok := asciiHost(pattern)
		if !ok {
			continue
		}
		if wildcard {
			if strings.HasSuffix(host, "."+want) {
				return true
			}
			continue
		}
		if host == want {
			return true
		}
	}
	return false
}

// asciiHost lowercases host and converts internationalized names to their
// punycode form, so "bücher.example" and "xn--bcher-kva.example" compare equal.
func asciiHost(host string) (string, bool) {
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), true
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", false
	}
	return strings.ToLower(ascii), true
}

// InstallFetch defines fetchText(url) on the global of vc. ctx supplies the
// context of the evaluation currently running.
func InstallFetch(vc *vm.Context, f *Fetcher, ctx func() context.Context) {
	fn := vc.NewFunction("fetchText", func(this *vm.Handle, args ...*vm.Handle) (*vm.Handle, error) {
		if len(args) == 0 || vc.Typeof(args[0]) != "string" {
			f.metrics.RecordHostCall("fetchText", monitoring.StatusError)
			return nil, vm.Throw(vc.NewError("TypeError", "fetchText expects a URL string"))
		}

		body, err := f.Fetch(ctx(), vc.GetString(args[0]))
		if errors.Is(err, ErrNotText) {
			f.metrics.RecordHostCall("fetchText", monitoring.StatusError)
			return nil, vm.Throw(vc.NewError("TypeError", "fetchText: "+err.Error()))
		}
		if err != nil {
			f.metrics.RecordHostCall("fetchText", monitoring.StatusError)
			return nil, fmt.Errorf("fetchText: %w", err)
		}
		f.metrics.RecordHostCall("fetchText", monitoring.StatusOK)
		return vc.NewString(body), nil
	})
	vc.SetProp(vc.Global(), "fetchText", fn)
	fn.Dispose()
}

// retryLogger adapts zap to retryablehttp.LeveledLogger.
type retryLogger struct {
	s *zap.SugaredLogger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
