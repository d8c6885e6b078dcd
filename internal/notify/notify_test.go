package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mfolsom/drivelog/internal/models"
)

func finishedSession() *models.Session {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)
	paid := 60.0
	return &models.Session{
		ID:             "s1",
		SequenceNumber: 7,
		StartedAt:      start,
		EndedAt:        &end,
		AmountPaid:     &paid,
		RouteSamples:   make([]models.RouteSample, 12),
	}
}

func TestNotifier_FanOut(t *testing.T) {
	a, b := NewMockAdapter(), NewMockAdapter()
	n := New(a, b)

	if err := n.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	n.Send(context.Background(), Message{Title: "hello"})

	if a.SentCount() != 1 || b.SentCount() != 1 {
		t.Errorf("sent counts = %d, %d", a.SentCount(), b.SentCount())
	}
}

func TestNotifier_SendFailureDoesNotStopOthers(t *testing.T) {
	bad, good := NewMockAdapter(), NewMockAdapter()
	bad.SendErr = errors.New("rate limited")
	n := New(bad, good)

	if err := n.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	n.Send(context.Background(), Message{Title: "event"})

	if good.SentCount() != 1 {
		t.Errorf("good adapter sent = %d, want 1", good.SentCount())
	}
}

func TestNotifier_ConnectCollectsErrors(t *testing.T) {
	bad := NewMockAdapter()
	bad.ConnectErr = errors.New("bad token")
	n := New(bad, NewMockAdapter())

	if err := n.Connect(context.Background()); err == nil {
		t.Fatal("expected connect error to surface")
	}
}

func TestSessionFinished_Message(t *testing.T) {
	msg := SessionFinished(finishedSession(), 12345)

	if !strings.Contains(msg.Title, "Session 7") {
		t.Errorf("title = %q, want default session title", msg.Title)
	}
	if msg.Severity != "success" {
		t.Errorf("severity = %q", msg.Severity)
	}

	byName := map[string]string{}
	for _, f := range msg.Fields {
		byName[f.Name] = f.Value
	}
	if byName["Duration"] != "45m0s" {
		t.Errorf("duration = %q", byName["Duration"])
	}
	if byName["Distance"] != "12.3 km" {
		t.Errorf("distance = %q", byName["Distance"])
	}
	if byName["Route samples"] != "12" {
		t.Errorf("samples = %q", byName["Route samples"])
	}
	if byName["Paid"] != "60.00" {
		t.Errorf("paid = %q", byName["Paid"])
	}
}

func TestSessionFinished_NoPayment(t *testing.T) {
	s := finishedSession()
	s.AmountPaid = nil

	for _, f := range SessionFinished(s, 0).Fields {
		if f.Name == "Paid" {
			t.Error("Paid field should be omitted without payment")
		}
	}
}

func TestExportMessages(t *testing.T) {
	s := finishedSession()

	done := ExportCompleted(s, "/data/Exports/session-video-x.mp4")
	if done.Severity != "success" || !strings.Contains(done.Body, "session-video-x.mp4") {
		t.Errorf("completed = %+v", done)
	}

	failed := ExportFailed(s, errors.New("export: composition_failed"))
	if failed.Severity != "error" || !strings.Contains(failed.Body, "composition_failed") {
		t.Errorf("failed = %+v", failed)
	}
}

func TestSeverityColor(t *testing.T) {
	if severityColor("success") != "#36a64f" {
		t.Error("success color")
	}
	if severityColor("error") != "#d00000" {
		t.Error("error color")
	}
	if severityColor("info") != severityColor("anything-else") {
		t.Error("unknown severities fall back to info")
	}
}
