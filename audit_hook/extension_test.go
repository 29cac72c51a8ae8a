package audithook_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	audithook "github.com/xraph/stockwise/audit_hook"
	"github.com/xraph/stockwise/history"
	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/reconcile"
)

func collect() (*[]*audithook.AuditEvent, audithook.RecorderFunc) {
	var events []*audithook.AuditEvent
	return &events, func(_ context.Context, e *audithook.AuditEvent) error {
		events = append(events, e)
		return nil
	}
}

func TestHooksRecordEvents(t *testing.T) {
	events, rec := collect()
	ext := audithook.New(rec)
	ctx := context.Background()

	it := &item.Item{ItemID: "I007", MinLevel: 20, History: []history.Entry{{Delta: 10, Label: history.LabelStock}}}
	_ = ext.OnItemCreated(ctx, it)
	_ = ext.OnLowStock(ctx, it)
	_ = ext.OnReconcileWarning(ctx, []reconcile.Warning{
		{ItemID: "I404", RecordID: "rcpt_x", Reason: reconcile.ReasonItemNotFound},
		{ItemID: "I405", RecordID: "rcpt_x", Reason: reconcile.ReasonItemNotFound},
	})
	_ = ext.OnAuthFailed(ctx, "alice", errors.New("incorrect password"))

	tests := []struct {
		action   string
		severity string
		outcome  string
	}{
		{audithook.ActionItemCreated, audithook.SeverityInfo, audithook.OutcomeSuccess},
		{audithook.ActionLowStock, audithook.SeverityWarning, audithook.OutcomeSuccess},
		{audithook.ActionReconcileSkipped, audithook.SeverityWarning, audithook.OutcomePartial},
		{audithook.ActionReconcileSkipped, audithook.SeverityWarning, audithook.OutcomePartial},
		{audithook.ActionAuthFailed, audithook.SeverityWarning, audithook.OutcomeFailure},
	}
	if len(*events) != len(tests) {
		t.Fatalf("recorded %d events, want %d", len(*events), len(tests))
	}
	for i, tt := range tests {
		got := (*events)[i]
		if got.Action != tt.action || got.Severity != tt.severity || got.Outcome != tt.outcome {
			t.Errorf("event %d = %s/%s/%s, want %s/%s/%s", i,
				got.Action, got.Severity, got.Outcome, tt.action, tt.severity, tt.outcome)
		}
	}
	if (*events)[0].Metadata["stock"] != 10 {
		t.Errorf("stock metadata = %v", (*events)[0].Metadata["stock"])
	}
	if (*events)[4].Reason != "incorrect password" {
		t.Errorf("reason = %q", (*events)[4].Reason)
	}
}

func TestDisabledActionsAreSkipped(t *testing.T) {
	events, rec := collect()
	ext := audithook.New(rec, audithook.WithDisabledActions(audithook.ActionHistoryReset))

	_ = ext.OnBackupCompleted(context.Background(), 2048, true, time.Second)
	if len(*events) != 1 || (*events)[0].Action != audithook.ActionBackupCompleted {
		t.Fatalf("events = %+v", *events)
	}
}

func TestEnabledActionsFilter(t *testing.T) {
	events, rec := collect()
	ext := audithook.New(rec, audithook.WithEnabledActions(audithook.ActionItemDeleted))

	ctx := context.Background()
	_ = ext.OnItemDeleted(ctx, "I001")
	_ = ext.OnUserDeleted(ctx, "alice")
	if len(*events) != 1 || (*events)[0].ResourceID != "I001" {
		t.Fatalf("events = %+v", *events)
	}
}

func TestSlogRecorder(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ext := audithook.New(audithook.SlogRecorder{Logger: logger})

	_ = ext.OnItemDeleted(context.Background(), "I042")
	out := buf.String()
	for _, want := range []string{`"msg":"audit"`, `"action":"item.deleted"`, `"resource_id":"I042"`, `"level":"WARN"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}
