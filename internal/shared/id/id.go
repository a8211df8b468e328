// Package id provides identifier generation for the console pipeline.
//
// Cell IDs are prefixed ULIDs so log lines sort by creation time and the
// owning kind is obvious at a glance (cell_01H...). Websocket connections use
// random UUIDs because they carry no ordering.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// CellID identifies the logical unit of work that owns console output.
// The pipeline treats it as opaque; callers may use any non-empty string.
type CellID string

// ConnectionID identifies one attached websocket client.
type ConnectionID string

const (
	CellPrefix       = "cell"
	ConnectionPrefix = "conn"
	TracePrefix      = "trace"
	SpanPrefix       = "span"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewCellID generates a new cell ID
func NewCellID() CellID {
	return CellID(Default().GenerateWithPrefix(CellPrefix))
}

// NewConnectionID generates a new connection ID
func NewConnectionID() ConnectionID {
	return ConnectionID(ConnectionPrefix + "_" + uuid.NewString())
}

// NewTraceID generates a trace identifier for one traced flow
func NewTraceID() string {
	return Default().GenerateWithPrefix(TracePrefix)
}

// NewSpanID generates a span identifier
func NewSpanID() string {
	return Default().GenerateWithPrefix(SpanPrefix)
}

func (id CellID) String() string       { return string(id) }
func (id ConnectionID) String() string { return string(id) }

// IsZero reports whether the cell ID is unset.
func (id CellID) IsZero() bool { return id == "" }

// Timestamp extracts the creation time from a generated cell ID.
// IDs supplied by callers that are not prefixed ULIDs return an error.
func (id CellID) Timestamp() (time.Time, error) {
	raw := strings.TrimPrefix(string(id), CellPrefix+"_")
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("cell id %q is not a generated id: %w", id, err)
	}
	return ulid.Time(parsed.Time()), nil
}
