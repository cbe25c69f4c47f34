// Package codegen produces human-readable record codes of the form
// PREFIX-DATE-SUFFIX, e.g. LT-20240315-7KQ2ZD.
package codegen

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"agroqc/pkg/domain"
)

// Layout selects how the date segment of a code is rendered.
type Layout string

// Supported date layouts.
const (
	LayoutDate      Layout = "date"      // YYYYMMDD
	LayoutTimestamp Layout = "timestamp" // YYYYMMDDHHMMSS
)

func (l Layout) format() string {
	if l == LayoutTimestamp {
		return "20060102150405"
	}
	return "20060102"
}

// ParseLayout converts a configuration value into a Layout.
func ParseLayout(s string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(s))) {
	case LayoutDate:
		return LayoutDate, nil
	case LayoutTimestamp:
		return LayoutTimestamp, nil
	}
	return "", fmt.Errorf("unknown code layout %q", s)
}

// SuffixLen is the number of random characters appended to each code.
const SuffixLen = 6

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// maxUnbiased is the largest multiple of len(alphabet) that fits a byte.
const maxUnbiased = 252

var prefixes = map[domain.EntityType]string{
	domain.EntityProduct:       "PROD",
	domain.EntityBatch:         "LT",
	domain.EntityInspection:    "INS",
	domain.EntitySensorReading: "SEN",
	domain.EntityLabTest:       "LAB",
	domain.EntityPackagingTest: "ENV",
	domain.EntityShipmentTrace: "TRZ",
	domain.EntityAlert:         "ALT",
	domain.EntityQualityReport: "INF",
}

// Prefix returns the code prefix for an entity type.
func Prefix(entity domain.EntityType) (string, bool) {
	p, ok := prefixes[entity]
	return p, ok
}

// DefaultLayouts mirrors how codes were historically issued: interactively
// created alerts, reports and traces carry a full timestamp.
func DefaultLayouts() map[domain.EntityType]Layout {
	out := make(map[domain.EntityType]Layout, len(prefixes))
	for entity := range prefixes {
		out[entity] = LayoutDate
	}
	out[domain.EntityAlert] = LayoutTimestamp
	out[domain.EntityQualityReport] = LayoutTimestamp
	out[domain.EntityShipmentTrace] = LayoutTimestamp
	return out
}

// Generator issues codes. It is safe for concurrent use. Uniqueness is
// probabilistic; storage rejects collisions as retryable conflicts.
type Generator struct {
	mu      sync.Mutex
	now     func() time.Time
	random  io.Reader
	layouts map[domain.EntityType]Layout
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithRandom overrides the random source used for suffixes.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) {
		if r != nil {
			g.random = r
		}
	}
}

// WithLayout sets the date layout for one entity type.
func WithLayout(entity domain.EntityType, layout Layout) Option {
	return func(g *Generator) { g.layouts[entity] = layout }
}

// New constructs a Generator with crypto/rand and the wall clock.
func New(opts ...Option) *Generator {
	g := &Generator{
		now:     time.Now,
		random:  rand.Reader,
		layouts: DefaultLayouts(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Layout reports the layout used for entity.
func (g *Generator) Layout(entity domain.EntityType) Layout {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.layouts[entity]
}

// Generate returns a fresh code for entity.
func (g *Generator) Generate(entity domain.EntityType) (string, error) {
	prefix, ok := prefixes[entity]
	if !ok {
		return "", fmt.Errorf("no code prefix for entity %q", entity)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	suffix, err := g.suffix()
	if err != nil {
		return "", fmt.Errorf("generate %s code: %w", entity, err)
	}
	return prefix + "-" + g.now().Format(g.layouts[entity].format()) + "-" + suffix, nil
}

func (g *Generator) suffix() (string, error) {
	out := make([]byte, 0, SuffixLen)
	buf := make([]byte, SuffixLen*2)
	for len(out) < SuffixLen {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= maxUnbiased {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == SuffixLen {
				break
			}
		}
	}
	return string(out), nil
}

// Match reports whether code has the shape issued for entity under either layout.
func Match(entity domain.EntityType, code string) bool {
	prefix, ok := prefixes[entity]
	if !ok {
		return false
	}
	parts := strings.Split(code, "-")
	if len(parts) != 3 || parts[0] != prefix {
		return false
	}
	if len(parts[1]) != len(LayoutDate.format()) && len(parts[1]) != len(LayoutTimestamp.format()) {
		return false
	}
	for _, c := range parts[1] {
		if c < '0' || c > '9' {
			return false
		}
	}
	if len(parts[2]) != SuffixLen {
		return false
	}
	for _, c := range parts[2] {
		if !strings.ContainsRune(alphabet, c) {
			return false
		}
	}
	return true
}
