// Package events publishes score changes to NATS so downstream consumers
// (recommendations, activity feeds) can follow aggregate movements.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Clark-Hu/screen-catalog/internal/metrics"
	"github.com/Clark-Hu/screen-catalog/internal/score"
)

// SubjectPrefix is prepended to every score subject:
// catalog.scores.<kind>.<op>.
const SubjectPrefix = "catalog.scores"

// Options configures the NATS connection.
type Options struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

// Connect dials NATS without retrying the first connection, so a bad URL
// fails at startup instead of silently dropping events.
func Connect(opts Options) (*nats.Conn, error) {
	if opts.MaxReconnects == 0 {
		opts.MaxReconnects = 5
	}
	if opts.ReconnectWait == 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	nc, err := nats.Connect(opts.URL,
		nats.Name("catalog-api"),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.RetryOnFailedConnect(false),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s (max_reconnects=%d, wait=%s): %w",
			opts.URL, opts.MaxReconnects, opts.ReconnectWait, err)
	}
	return nc, nil
}

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Event is the JSON envelope sent for every committed score change.
type Event struct {
	EventID       string    `json:"event_id"`
	Kind          string    `json:"kind"`
	Op            string    `json:"op"`
	RecordID      string    `json:"record_id"`
	SubjectID     string    `json:"subject_id"`
	TargetID      string    `json:"target_id"`
	Score         int       `json:"score"`
	PreviousScore int       `json:"previous_score,omitempty"`
	Count         int64     `json:"count"`
	Average       float64   `json:"average"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher implements score.Notifier. A nil Publisher, or one built with a
// nil Conn, drops every event.
type Publisher struct {
	conn Conn
	log  *zap.Logger
}

// NewPublisher wraps conn.
func NewPublisher(conn Conn, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{conn: conn, log: log}
}

// Subject returns the NATS subject for a change.
func Subject(change score.Change) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, change.Kind, change.Op)
}

// Notify publishes change. Failures are logged and counted, never returned.
func (p *Publisher) Notify(_ context.Context, change score.Change) {
	if p == nil || p.conn == nil {
		return
	}
	ev := Event{
		EventID:       uuid.NewString(),
		Kind:          string(change.Kind),
		Op:            string(change.Op),
		RecordID:      change.Record.ID,
		SubjectID:     change.Record.SubjectID,
		TargetID:      change.Record.TargetID,
		Score:         change.Record.Score,
		PreviousScore: change.PreviousScore,
		Count:         change.Aggregate.Count,
		Average:       change.Aggregate.Average,
		OccurredAt:    change.At,
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		metrics.IncScoreEvent("failed")
		p.log.Warn("events: marshal failed", zap.String("record_id", ev.RecordID), zap.Error(err))
		return
	}
	subject := Subject(change)
	if err := p.conn.Publish(subject, data); err != nil {
		metrics.IncScoreEvent("failed")
		p.log.Warn("events: publish failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	metrics.IncScoreEvent("published")
}
