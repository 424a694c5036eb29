package corpus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	xerrors "OpenMCP-Intent/internal/errors"
	"OpenMCP-Intent/internal/observability/alerting"
	"OpenMCP-Intent/pkg/logger"
)

func newTestService(t *testing.T, pub Publisher) (*Service, *FileStore) {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	seq := 0
	svc, err := NewService(store,
		WithPublisher(pub),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
		WithIDGenerator(func() string {
			seq++
			return "rec-" + string(rune('0'+seq))
		}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

func TestServiceLogPrompt(t *testing.T) {
	pub := NewMemoryPublisher()
	svc, store := newTestService(t, pub)

	record, err := svc.LogPrompt(context.Background(), "swap 1 ETH for USDC")
	if err != nil {
		t.Fatalf("log prompt: %v", err)
	}
	if record.ID != "rec-1" || record.CreatedAt != 1700000000 || record.Annotated() {
		t.Fatalf("unexpected record: %+v", record)
	}

	list, _ := store.List(context.Background())
	if len(list) != 1 || list[0].Prompt != "swap 1 ETH for USDC" {
		t.Fatalf("record not persisted: %+v", list)
	}
	published := pub.Records()
	if len(published) != 1 || published[0].ID != "rec-1" {
		t.Fatalf("record not published: %+v", published)
	}
}

func TestServiceAnnotate(t *testing.T) {
	svc, _ := newTestService(t, nil)

	intent := "Transfer"
	record, err := svc.Annotate(context.Background(), Record{
		ID:     "client-chosen",
		Prompt: "Send 200 ETH to Sophie on Base",
		Entities: []Entity{
			{Start: 5, End: 8, Label: "AMOUNT"},
			{Start: 9, End: 12, Label: "TOKEN"},
		},
		Intent: &intent,
	})
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if record.ID != "rec-1" {
		t.Fatalf("server must assign ids, got %q", record.ID)
	}
	if !record.Annotated() {
		t.Fatalf("expected annotated record")
	}
}

func TestServiceAnnotateRejectsInvalidRecord(t *testing.T) {
	pub := NewMemoryPublisher()
	svc, store := newTestService(t, pub)

	_, err := svc.Annotate(context.Background(), Record{
		Prompt:   "Send 1 ETH",
		Entities: []Entity{{Start: 7, End: 99, Label: "TOKEN"}},
	})
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
	if list, _ := store.List(context.Background()); len(list) != 0 {
		t.Fatalf("invalid record must not be stored")
	}
	if len(pub.Records()) != 0 {
		t.Fatalf("invalid record must not be published")
	}
}

func TestServicePublishFailureIsNotFatal(t *testing.T) {
	pub := NewMemoryPublisher()
	pub.FailWith(xerrors.Wrap(xerrors.CodeQueueFailure, errors.New("broker down"), ""))
	svc, store := newTestService(t, pub)

	if _, err := svc.LogPrompt(context.Background(), "check balance"); err != nil {
		t.Fatalf("publish failure must not fail the request: %v", err)
	}
	if list, _ := store.List(context.Background()); len(list) != 1 {
		t.Fatalf("record must still be stored")
	}
}

type recordingDispatcher struct{ events []alerting.Event }

func (d *recordingDispatcher) Notify(_ context.Context, event alerting.Event) error {
	d.events = append(d.events, event)
	return nil
}

func TestServiceAlertsOnPublishFailure(t *testing.T) {
	pub := NewMemoryPublisher()
	pub.FailWith(xerrors.Wrap(xerrors.CodeQueueFailure, errors.New("broker down"), "发布语料失败"))
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	alerts := &recordingDispatcher{}
	svc, err := NewService(store,
		WithPublisher(pub),
		WithAlerts(alerts),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.LogPrompt(context.Background(), "check balance"); err != nil {
		t.Fatalf("log prompt: %v", err)
	}
	if len(alerts.events) != 1 || alerts.events[0].Code != xerrors.CodeQueueFailure || alerts.events[0].Component != "corpus" {
		t.Fatalf("unexpected alerts: %+v", alerts.events)
	}

	if _, err := svc.LogPrompt(context.Background(), "  "); err == nil {
		t.Fatalf("expected validation error")
	}
	if len(alerts.events) != 1 {
		t.Fatalf("validation errors must not alert")
	}
}

func TestNewServiceRequiresStore(t *testing.T) {
	if _, err := NewService(nil); xerrors.CodeOf(err) != xerrors.CodeInitializationFailure {
		t.Fatalf("expected INITIALIZATION_FAILURE, got %v", err)
	}
}

func TestServiceWritesAuditLogAlongsideComponentLogger(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.log")
	err := logger.Init(logger.Config{
		OutputPaths: []string{filepath.Join(dir, "app.log")},
		Audit:       logger.AuditConfig{Enabled: true, Path: auditPath},
	})
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Init(logger.Config{}) })

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	svc, err := NewService(store, WithLogger(logger.Named("corpus")))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	record, err := svc.LogPrompt(context.Background(), "Send 1 ETH to Ann")
	if err != nil {
		t.Fatalf("log prompt: %v", err)
	}

	content, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	if !strings.Contains(string(content), record.ID) {
		t.Fatalf("audit log missing record %s: %q", record.ID, content)
	}
}
