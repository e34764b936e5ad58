// Package jobid provides run IDs for classifier executions.
package jobid

import (
	"fmt"
	"sync"
	"time"
)

// DefaultPrefix is used when NewGenerator is given an empty prefix.
const DefaultPrefix = "run"

// Generator generates unique run IDs.
// IDs follow the format: <prefix>_YYYYMMDD_NNN
// where NNN is a zero-padded counter (at least 3 digits) that resets daily.
type Generator struct {
	mu          sync.Mutex
	prefix      string
	counter     int
	currentDate string
	now         func() time.Time
}

// NewGenerator creates a new run ID generator.
func NewGenerator(prefix string) *Generator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Generator{
		prefix:      prefix,
		currentDate: time.Now().Format("20060102"),
		now:         time.Now,
	}
}

// Next generates the next ID.
// Example: run_20261018_001
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	today := g.now().Format("20060102")

	// 日付が変わったらカウンタをリセット
	if today != g.currentDate {
		g.currentDate = today
		g.counter = 0
	}

	g.counter++

	return fmt.Sprintf("%s_%s_%03d", g.prefix, g.currentDate, g.counter)
}

// Reset resets the generator's counter (primarily for testing).
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.counter = 0
	g.currentDate = g.now().Format("20060102")
}
