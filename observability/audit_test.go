package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAuditLoggerStructured(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAuditLogger(NewStructuredAuditAdapter(&buf))

	logger.LogQuery(context.Background(), "conv1", "sales", "sales_agent", false)

	var event AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if event.EventType != QueryAnswered || event.Domain != "sales" || event.ConversationID != "conv1" {
		t.Errorf("unexpected event: %+v", event)
	}
	if event.Metadata["is_clear_match"] != false {
		t.Errorf("is_clear_match = %v", event.Metadata["is_clear_match"])
	}
}

func TestAuditLoggerRefreshOutcome(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAuditLogger(NewStructuredAuditAdapter(&buf))

	logger.LogDataRefresh(context.Background(), "logistics", nil)
	logger.LogDataRefresh(context.Background(), "sales", errors.New("HTTP 500"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var failed AuditEvent
	if err := json.Unmarshal([]byte(lines[1]), &failed); err != nil {
		t.Fatal(err)
	}
	if failed.EventType != DataRefreshFailed || failed.Severity != SeverityError || failed.Message != "HTTP 500" {
		t.Errorf("unexpected event: %+v", failed)
	}
}

func TestFileAuditAdapter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	adapter, err := NewFileAuditAdapter(path)
	if err != nil {
		t.Fatalf("NewFileAuditAdapter failed: %v", err)
	}
	logger := NewAuditLogger(adapter)
	logger.LogValidationFailure(context.Background(), "/api/query", "Query is required")
	if err := adapter.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"validation_failure"`) {
		t.Errorf("missing event in %s", data)
	}
}

func TestNilAuditLoggerIsNoop(t *testing.T) {
	var logger *AuditLogger
	logger.LogQuery(context.Background(), "c", "sales", "a", true)
}
