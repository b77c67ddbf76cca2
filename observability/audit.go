package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

const (
	QueryAnswered     AuditEventType = "query_answered"
	QueryFailed       AuditEventType = "query_failed"
	ValidationFailure AuditEventType = "validation_failure"
	DataRefreshed     AuditEventType = "data_refreshed"
	DataRefreshFailed AuditEventType = "data_refresh_failed"
)

// AuditSeverity represents the severity level of an audit event.
type AuditSeverity string

const (
	SeverityInfo    AuditSeverity = "info"
	SeverityWarning AuditSeverity = "warning"
	SeverityError   AuditSeverity = "error"
)

// AuditEvent is one entry of the audit trail.
type AuditEvent struct {
	EventType      AuditEventType         `json:"event_type"`
	Severity       AuditSeverity          `json:"severity"`
	Message        string                 `json:"message"`
	Timestamp      time.Time              `json:"timestamp"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	Domain         string                 `json:"domain,omitempty"`
	Agent          string                 `json:"agent,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	TraceID        string                 `json:"trace_id,omitempty"`
	SpanID         string                 `json:"span_id,omitempty"`
}

// NewAuditEvent creates an event stamped with the span found in ctx, if any.
func NewAuditEvent(ctx context.Context, eventType AuditEventType, severity AuditSeverity, message string) *AuditEvent {
	event := &AuditEvent{
		EventType: eventType,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]interface{}),
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		event.TraceID = sc.TraceID().String()
		event.SpanID = sc.SpanID().String()
	}
	return event
}

// AuditAdapter is the interface for audit log sinks.
type AuditAdapter interface {
	LogEvent(event *AuditEvent) error
}

// StructuredAuditAdapter writes one JSON object per line.
type StructuredAuditAdapter struct {
	Writer io.Writer
	mu     sync.Mutex
}

// NewStructuredAuditAdapter creates a new structured adapter.
func NewStructuredAuditAdapter(writer io.Writer) *StructuredAuditAdapter {
	if writer == nil {
		writer = os.Stdout
	}
	return &StructuredAuditAdapter{Writer: writer}
}

// LogEvent logs an event as JSON.
func (a *StructuredAuditAdapter) LogEvent(event *AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	_, err = fmt.Fprintln(a.Writer, string(data))
	return err
}

// FileAuditAdapter appends JSON lines to a file.
type FileAuditAdapter struct {
	*StructuredAuditAdapter
	file *os.File
}

// NewFileAuditAdapter opens (or creates) path for appending.
func NewFileAuditAdapter(path string) (*FileAuditAdapter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &FileAuditAdapter{
		StructuredAuditAdapter: NewStructuredAuditAdapter(file),
		file:                   file,
	}, nil
}

// Close closes the file.
func (a *FileAuditAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// SlogAuditAdapter forwards events to a slog logger under the "audit" group.
type SlogAuditAdapter struct {
	logger *slog.Logger
}

// NewSlogAuditAdapter creates an adapter over logger (nil = slog.Default()).
func NewSlogAuditAdapter(logger *slog.Logger) *SlogAuditAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditAdapter{logger: logger}
}

// LogEvent implements AuditAdapter.
func (a *SlogAuditAdapter) LogEvent(event *AuditEvent) error {
	level := slog.LevelInfo
	switch event.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}
	a.logger.LogAttrs(context.Background(), level, event.Message,
		slog.Group("audit",
			slog.String("event_type", string(event.EventType)),
			slog.String("conversation_id", event.ConversationID),
			slog.String("domain", event.Domain),
			slog.String("agent", event.Agent),
			slog.String("trace_id", event.TraceID),
		),
	)
	return nil
}

// AuditLogger fans events out to its adapters.
type AuditLogger struct {
	adapters []AuditAdapter
	logger   *slog.Logger
}

// NewAuditLogger creates a new audit logger. With no adapters events go to
// slog.Default().
func NewAuditLogger(adapters ...AuditAdapter) *AuditLogger {
	if len(adapters) == 0 {
		adapters = []AuditAdapter{NewSlogAuditAdapter(nil)}
	}
	return &AuditLogger{adapters: adapters, logger: slog.Default()}
}

// LogEvent logs an audit event to all adapters. Adapter failures are logged
// and otherwise ignored.
func (l *AuditLogger) LogEvent(event *AuditEvent) {
	if l == nil {
		return
	}
	for _, adapter := range l.adapters {
		if err := adapter.LogEvent(event); err != nil {
			l.logger.Warn("audit adapter error", "error", err)
		}
	}
}

// LogQuery records an answered query.
func (l *AuditLogger) LogQuery(ctx context.Context, conversationID, domain, agent string, clearMatch bool) {
	event := NewAuditEvent(ctx, QueryAnswered, SeverityInfo, "query answered")
	event.ConversationID = conversationID
	event.Domain = domain
	event.Agent = agent
	event.Metadata["is_clear_match"] = clearMatch
	l.LogEvent(event)
}

// LogQueryFailure records a query that could not be answered.
func (l *AuditLogger) LogQueryFailure(ctx context.Context, conversationID string, err error) {
	event := NewAuditEvent(ctx, QueryFailed, SeverityError, err.Error())
	event.ConversationID = conversationID
	l.LogEvent(event)
}

// LogValidationFailure records a rejected request.
func (l *AuditLogger) LogValidationFailure(ctx context.Context, endpoint, reason string) {
	event := NewAuditEvent(ctx, ValidationFailure, SeverityWarning, reason)
	event.Metadata["endpoint"] = endpoint
	l.LogEvent(event)
}

// LogDataRefresh records the outcome of a refresh of one domain or of all
// domains (domain == "").
func (l *AuditLogger) LogDataRefresh(ctx context.Context, domain string, err error) {
	var event *AuditEvent
	if err != nil {
		event = NewAuditEvent(ctx, DataRefreshFailed, SeverityError, err.Error())
	} else {
		event = NewAuditEvent(ctx, DataRefreshed, SeverityInfo, "data refreshed")
	}
	event.Domain = domain
	l.LogEvent(event)
}
