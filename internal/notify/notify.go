// Package notify pushes session lifecycle events to chat platforms
// (Slack, Discord). Delivery is best effort: a failed send is logged and
// never blocks the pipeline.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mfolsom/drivelog/internal/models"
)

// Adapter is implemented once per chat platform.
type Adapter interface {
	// Connect establishes the platform connection.
	Connect(ctx context.Context) error

	// Send delivers one message. Send must only be called after Connect.
	Send(ctx context.Context, msg Message) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// Message is a platform-neutral event notification. Adapters map it onto
// native formatting (Slack attachments, Discord embeds).
type Message struct {
	Title    string
	Body     string
	Severity string // "info", "success", "error"
	Fields   []Field
}

// Field is a key-value pair displayed alongside the message.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// severityColor maps a severity onto a sidebar color hint.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return "#36a64f"
	case "error":
		return "#d00000"
	default:
		return "#439fe0"
	}
}

// Notifier fans one message out to every configured adapter.
type Notifier struct {
	adapters []Adapter
}

func New(adapters ...Adapter) *Notifier {
	return &Notifier{adapters: adapters}
}

// Connect connects all adapters, reporting every failure.
func (n *Notifier) Connect(ctx context.Context) error {
	var errs []error
	for _, a := range n.adapters {
		if err := a.Connect(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Send delivers msg to every adapter. Failures are logged, not returned.
func (n *Notifier) Send(ctx context.Context, msg Message) {
	for _, a := range n.adapters {
		if err := a.Send(ctx, msg); err != nil {
			log.Printf("notify: send %q: %v", msg.Title, err)
		}
	}
}

// Close shuts down all adapters.
func (n *Notifier) Close() {
	for _, a := range n.adapters {
		if err := a.Close(); err != nil {
			log.Printf("notify: close: %v", err)
		}
	}
}

// SessionFinished builds the event sent when a session is persisted.
func SessionFinished(s *models.Session, distanceMeters float64) Message {
	fields := []Field{
		{Name: "Duration", Value: s.Duration().Round(time.Second).String(), Short: true},
		{Name: "Distance", Value: fmt.Sprintf("%.1f km", distanceMeters/1000), Short: true},
		{Name: "Route samples", Value: fmt.Sprintf("%d", len(s.RouteSamples)), Short: true},
	}
	if s.AmountPaid != nil {
		fields = append(fields, Field{Name: "Paid", Value: fmt.Sprintf("%.2f", *s.AmountPaid), Short: true})
	}
	return Message{
		Title:    fmt.Sprintf("Session finished: %s", s.Title()),
		Severity: "success",
		Fields:   fields,
	}
}

// ExportCompleted builds the event sent when a video export succeeds.
func ExportCompleted(s *models.Session, outPath string) Message {
	return Message{
		Title:    fmt.Sprintf("Export completed: %s", s.Title()),
		Body:     outPath,
		Severity: "success",
	}
}

// ExportFailed builds the event sent when a video export fails.
func ExportFailed(s *models.Session, err error) Message {
	return Message{
		Title:    fmt.Sprintf("Export failed: %s", s.Title()),
		Body:     err.Error(),
		Severity: "error",
	}
}
