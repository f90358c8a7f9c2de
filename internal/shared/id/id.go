// Package id generates the identifiers handed out by the server: session
// IDs, websocket connection IDs and evaluation IDs.
//
// All IDs are prefixed ULIDs ("sess_01J..."). ULIDs sort by creation time and
// a monotonic entropy source keeps IDs created in the same millisecond in
// order, so session listings come out oldest first.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies a long-lived sandbox
type SessionID string

// ConnID identifies a websocket connection
type ConnID string

// EvalID identifies a single evaluation, for log correlation
type EvalID string

const (
	SessionPrefix = "sess"
	ConnPrefix    = "conn"
	EvalPrefix    = "eval"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand with monotonic
// ordering inside a millisecond
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source,
// for deterministic tests
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: ulid.Monotonic(entropy, 0),
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

func NewConnID() ConnID {
	return ConnID(Default().GenerateWithPrefix(ConnPrefix))
}

func NewEvalID() EvalID {
	return EvalID(Default().GenerateWithPrefix(EvalPrefix))
}

func (id SessionID) String() string { return string(id) }
func (id ConnID) String() string    { return string(id) }
func (id EvalID) String() string    { return string(id) }

// Valid reports whether id is a well-formed session ID
func (id SessionID) Valid() bool {
	prefix, _, err := ParsePrefixed(string(id))
	return err == nil && prefix == SessionPrefix
}

// ParsePrefixed splits "prefix_ULID" into its parts
func ParsePrefixed(s string) (string, ulid.ULID, error) {
	prefix, raw, ok := strings.Cut(s, "_")
	if !ok || prefix == "" {
		return "", ulid.ULID{}, fmt.Errorf("id %q has no prefix", s)
	}
	parsed, err := ulid.ParseStrict(raw)
	if err != nil {
		return "", ulid.ULID{}, fmt.Errorf("id %q: %w", s, err)
	}
	return prefix, parsed, nil
}

// Timestamp extracts the creation time from a prefixed ID
func Timestamp(s string) (time.Time, error) {
	_, parsed, err := ParsePrefixed(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
