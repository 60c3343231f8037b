package errors

import (
	"fmt"
	"sync"
	"time"
)

// Diagnostic represents a non-fatal message produced while compiling a file.
type Diagnostic struct {
	File      string
	Line      int
	Column    int
	Message   string
	Severity  Severity
	Timestamp time.Time
}

// Severity represents the severity of a diagnostic
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Error implements the error interface
func (d *Diagnostic) Error() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Column, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.File, d.Severity, d.Message)
}

// Collector gathers diagnostics from concurrent compilations.
type Collector struct {
	diagnostics []Diagnostic
	mutex       sync.RWMutex
}

// NewCollector creates a new diagnostic collector
func NewCollector() *Collector {
	return &Collector{
		diagnostics: make([]Diagnostic, 0),
	}
}

// Add adds a diagnostic to the collector
func (c *Collector) Add(d Diagnostic) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}
	c.diagnostics = append(c.diagnostics, d)
}

// Warn records a warning for file.
func (c *Collector) Warn(file, message string) {
	c.Add(Diagnostic{File: file, Message: message, Severity: SeverityWarning})
}

// All returns a copy of every collected diagnostic
func (c *Collector) All() []Diagnostic {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]Diagnostic, len(c.diagnostics))
	copy(result, c.diagnostics)
	return result
}

// ByFile returns diagnostics for a specific file
func (c *Collector) ByFile(file string) []Diagnostic {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	var out []Diagnostic
	for _, d := range c.diagnostics {
		if d.File == file {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of collected diagnostics
func (c *Collector) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.diagnostics)
}

// Clear clears all diagnostics
func (c *Collector) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.diagnostics = c.diagnostics[:0]
}
