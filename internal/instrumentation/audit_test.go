package instrumentation

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestToolInvocation_Complete(t *testing.T) {
	ti := NewToolInvocation("create-events").WithAccount("work").WithOperation(OperationCreate)
	if ti.StartTime.IsZero() {
		t.Fatal("StartTime not set")
	}

	ti.Complete(false, errors.New("no write access"))
	if ti.Success || ti.Status() != StatusError {
		t.Errorf("Status() = %q", ti.Status())
	}
	if ti.Error != "no write access" {
		t.Errorf("Error = %q", ti.Error)
	}

	ti = NewToolInvocation("list-events").Complete(true, nil)
	if ti.Status() != StatusSuccess || ti.Error != "" {
		t.Errorf("unexpected success invocation: %+v", ti)
	}
}

func TestAuditLogger_HashesAccounts(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	al.LogToolInvocation(NewToolInvocation("list-events").WithAccount("jane@example.com").Complete(true, nil))

	out := buf.String()
	if !strings.Contains(out, "tool_executed") {
		t.Errorf("missing message: %s", out)
	}
	if strings.Contains(out, "jane@example.com") {
		t.Errorf("raw account leaked without PII enabled: %s", out)
	}
	if !strings.Contains(out, "account_hash=acct:") {
		t.Errorf("missing account hash: %s", out)
	}
}

func TestAuditLogger_IncludePII(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLoggerWithConfig(slog.New(slog.NewTextHandler(&buf, nil)), AuditLoggingConfig{Enabled: true, IncludePII: true})

	al.LogToolInvocation(NewToolInvocation("create-event").WithAccount("jane@example.com").Complete(false, errors.New("boom")))

	out := buf.String()
	if !strings.Contains(out, "tool_failed") || !strings.Contains(out, "level=WARN") {
		t.Errorf("expected WARN tool_failed: %s", out)
	}
	if !strings.Contains(out, "account=jane@example.com") {
		t.Errorf("expected raw account: %s", out)
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLoggerWithConfig(slog.New(slog.NewTextHandler(&buf, nil)), AuditLoggingConfig{Enabled: false})
	al.LogToolInvocation(NewToolInvocation("x").Complete(true, nil))
	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote: %s", buf.String())
	}

	var nilLogger *AuditLogger
	nilLogger.LogToolInvocation(NewToolInvocation("x"))
}
