package alerting

import (
	"fmt"
	"strings"
	"time"
)

// Severity classifies how urgent a message is.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityAlarm   Severity = "alarm"
)

// ParseSeverity converts a string to a Severity.
// Returns ErrInvalidSeverity for unrecognised values.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(s)) {
	case SeverityInfo:
		return SeverityInfo, nil
	case SeverityWarning:
		return SeverityWarning, nil
	case SeverityAlarm:
		return SeverityAlarm, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
	}
}

// Valid reports whether the severity is one of the recognised values.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityAlarm:
		return true
	}
	return false
}

// Message is one severity-tagged event retained by the service.
//
// Messages are immutable after publication except for the Acknowledged
// flag, which is flipped (once) by Acknowledge.
type Message struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Severity     Severity       `json:"severity"`
	Category     string         `json:"category"`
	Source       string         `json:"source"`
	Text         string         `json:"text"`
	Details      map[string]any `json:"details,omitempty"`
	Acknowledged bool           `json:"acknowledged"`
}

// Filter selects messages in Query. Zero-valued fields match everything.
type Filter struct {
	Severity Severity  // match this severity only
	Category string    // match this category only
	Source   string    // match this source only
	Since    time.Time // match messages at or after this instant
}

// matches reports whether m passes every set field of the filter.
func (f Filter) matches(m *Message) bool {
	if f.Severity != "" && m.Severity != f.Severity {
		return false
	}
	if f.Category != "" && m.Category != f.Category {
		return false
	}
	if f.Source != "" && m.Source != f.Source {
		return false
	}
	if !f.Since.IsZero() && m.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// Metrics is the aggregate view returned by Service.Metrics.
type Metrics struct {
	BySeverity           map[Severity]int `json:"by_severity"`
	UnacknowledgedAlarms int              `json:"unacknowledged_alarms"`
	LastHour             int              `json:"last_hour"`
	Buffered             int              `json:"buffered"`
	Capacity             int              `json:"capacity"`
	TotalPublished       uint64           `json:"total_published"`
	TotalEvicted         uint64           `json:"total_evicted"`
}
