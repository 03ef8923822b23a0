package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/HendryAvila/gemini-planner/internal/contexts"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return f.err
}

func TestNATSPublisher_Subjects(t *testing.T) {
	p := NewNATSPublisher(&fakeConn{}, "planner.context.", nil)
	if got := p.Subject(contexts.EventCreated); got != "planner.context.created" {
		t.Errorf("created subject = %s", got)
	}
	if got := p.Subject(contexts.EventUpdated); got != "planner.context.updated" {
		t.Errorf("updated subject = %s", got)
	}
}

func TestNATSPublisher_Observe(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisher(conn, "planner.context", nil)

	p.Observe(contexts.Event{
		Type:      contexts.EventUpdated,
		ContextID: "demo-1",
		Delta:     contexts.Delta{Patch: contexts.Patch{Requirements: contexts.Ptr("r2")}},
		Context:   contexts.PlanningContext{ID: "demo-1", Requirements: "r2"},
	})

	if len(conn.subjects) != 1 || conn.subjects[0] != "planner.context.updated" {
		t.Fatalf("subjects = %v", conn.subjects)
	}
	var got struct {
		Type      string         `json:"type"`
		ContextID string         `json:"contextId"`
		Updates   map[string]any `json:"updates"`
		Full      map[string]any `json:"fullContext"`
	}
	if err := json.Unmarshal(conn.payloads[0], &got); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if got.Type != "contextUpdated" || got.ContextID != "demo-1" {
		t.Errorf("unexpected envelope: %+v", got)
	}
	if got.Updates["requirements"] != "r2" {
		t.Errorf("updates = %v", got.Updates)
	}
	if got.Full["requirements"] != "r2" {
		t.Errorf("fullContext = %v", got.Full)
	}
}

func TestNATSPublisher_PublishErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	p := NewNATSPublisher(&fakeConn{err: errors.New("no servers")}, "x", logger)

	p.Observe(contexts.Event{Type: contexts.EventCreated, ContextID: "demo-1"})

	if !strings.Contains(buf.String(), "no servers") {
		t.Errorf("publish error not logged: %s", buf.String())
	}
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := LogObserver(slog.New(slog.NewTextHandler(&buf, nil)))

	obs(contexts.Event{
		Type:      contexts.EventCreated,
		ContextID: "demo-1",
		Context:   contexts.PlanningContext{CurrentPhase: contexts.PhasePlanning},
	})

	out := buf.String()
	for _, want := range []string{"context changed", "event=contextCreated", "context=demo-1", "phase=planning"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}
}
