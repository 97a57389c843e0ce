package alerting

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthstead/hearth-core/internal/infrastructure/logging"
)

// Sink receives a copy of every published message.
//
// Sinks are export paths (MQTT topics, InfluxDB points, WebSocket
// broadcast); delivery is best-effort and a sink failure never fails
// the publish itself.
type Sink interface {
	Deliver(m Message) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(m Message) error

// Deliver implements Sink.
func (f SinkFunc) Deliver(m Message) error { return f(m) }

// Service is the tiered alerting/messaging service.
//
// It is a dumb, reliable sink: producers decide what is alarm-worthy,
// the service only retains, queries, and exports. Retention is a
// fixed-capacity FIFO buffer; eviction of the oldest message once full
// is expected steady-state behaviour, not an error.
//
// Thread Safety: all methods are safe for concurrent use. Buffer
// mutation is guarded by a single writer lock; readers always operate
// on snapshots.
type Service struct {
	mu    sync.RWMutex
	buf   *buffer
	clock func() time.Time
	newID func() string

	totalPublished uint64
	totalEvicted   uint64
	bySeverity     map[Severity]uint64

	logger *logging.Logger
	sinks  []Sink
}

// NewService creates an alerting service with the given buffer capacity.
//
// The logger is required: every publish synchronously emits one
// structured log line through it so a log-shipping agent sees the full
// event stream regardless of buffer eviction.
func NewService(capacity int, logger *logging.Logger) (*Service, error) {
	buf, err := newBuffer(capacity)
	if err != nil {
		return nil, err
	}
	return &Service{
		buf:        buf,
		clock:      time.Now,
		newID:      uuid.NewString,
		bySeverity: make(map[Severity]uint64),
		logger:     logger.With("component", "alerting"),
	}, nil
}

// AddSink registers an export sink. Not safe to call concurrently with
// Publish; wire sinks during startup.
func (s *Service) AddSink(sink Sink) {
	s.sinks = append(s.sinks, sink)
}

// Publish appends a new message, evicting the oldest if the buffer is
// at capacity, and synchronously emits one structured log line.
//
// Returns the stored message (with assigned ID and timestamp).
func (s *Service) Publish(severity Severity, category, source, text string, details map[string]any) (Message, error) {
	if !severity.Valid() {
		return Message{}, ErrInvalidSeverity
	}
	if text == "" {
		return Message{}, ErrEmptyText
	}

	msg := &Message{
		ID:        s.newID(),
		Timestamp: s.clock().UTC(),
		Severity:  severity,
		Category:  category,
		Source:    source,
		Text:      text,
		Details:   details,
	}

	s.mu.Lock()
	evicted := s.buf.append(msg)
	s.totalPublished++
	s.bySeverity[severity]++
	if evicted != nil {
		s.totalEvicted++
	}
	stored := *msg
	s.mu.Unlock()

	// One structured log line per publish, with shipping labels.
	s.logLine(stored)

	if evicted != nil {
		// Eviction is steady-state once the buffer fills; diagnostic only.
		s.logger.Debug("evicted oldest message", "evicted_id", evicted.ID)
	}

	for _, sink := range s.sinks {
		if err := sink.Deliver(stored); err != nil {
			s.logger.Warn("sink delivery failed", "message_id", stored.ID, "error", err)
		}
	}

	return stored, nil
}

// logLine emits the structured log record for a published message.
// Shape: {timestamp, level, category, source, message, details, labels:{app, severity, category}}.
func (s *Service) logLine(m Message) {
	args := []any{
		"category", m.Category,
		"source", m.Source,
		"details", m.Details,
		"labels", map[string]string{
			"app":      "hearth",
			"severity": string(m.Severity),
			"category": m.Category,
		},
	}
	switch m.Severity {
	case SeverityAlarm:
		s.logger.Error(m.Text, args...)
	case SeverityWarning:
		s.logger.Warn(m.Text, args...)
	default:
		s.logger.Info(m.Text, args...)
	}
}

// Query returns an ordered (oldest to newest) snapshot of retained
// messages passing the filter. It never blocks concurrent publishers
// beyond the snapshot copy.
func (s *Service) Query(f Filter) []Message {
	s.mu.RLock()
	all := s.buf.snapshot()
	s.mu.RUnlock()

	out := make([]Message, 0, len(all))
	for i := range all {
		if f.matches(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out
}

// Acknowledge sets the acknowledged flag on the given message ids.
//
// Idempotent: re-acknowledging an already-acknowledged message is a
// no-op. Unknown ids are skipped. Returns how many messages changed
// state in this call.
func (s *Service) Acknowledge(ids ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for _, id := range ids {
		if m := s.buf.find(id); m != nil && !m.Acknowledged {
			m.Acknowledged = true
			changed++
		}
	}
	return changed
}

// Metrics returns severity counts, the count of unacknowledged alarm
// messages, and the count of messages published within the last hour.
func (s *Service) Metrics() Metrics {
	s.mu.RLock()
	all := s.buf.snapshot()
	total := s.totalPublished
	evicted := s.totalEvicted
	bySev := make(map[Severity]int, len(s.bySeverity))
	for sev, n := range s.bySeverity {
		bySev[sev] = int(n)
	}
	s.mu.RUnlock()

	m := Metrics{
		BySeverity:     bySev,
		Buffered:       len(all),
		Capacity:       s.buf.capacity,
		TotalPublished: total,
		TotalEvicted:   evicted,
	}

	hourAgo := s.clock().Add(-time.Hour)
	for i := range all {
		if all[i].Severity == SeverityAlarm && !all[i].Acknowledged {
			m.UnacknowledgedAlarms++
		}
		if !all[i].Timestamp.Before(hourAgo) {
			m.LastHour++
		}
	}
	return m
}
