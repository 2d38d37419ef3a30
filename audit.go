package erpclient

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

const (
	auditEventRefreshStarted   = "refresh_started"
	auditEventRefreshSucceeded = "refresh_succeeded"
	auditEventRefreshFailed    = "refresh_failed"
	auditEventRequestQueued    = "request_queued"
	auditEventRequestReplayed  = "request_replayed"
	auditEventSessionEnded     = "session_ended"
	auditEventLogout           = "logout"
)

// AuditEvent records one step of the session lifecycle.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	RequestID string            `json:"request_id,omitempty"`
	Method    string            `json:"method,omitempty"`
	Path      string            `json:"path,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives events from the dispatcher goroutine.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a buffered channel.
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink returns a sink with the given buffer, at least 1.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events returns the channel events are delivered on.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink writes events to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(append(data, '\n'))
}

func (c *Client) emitAudit(ctx context.Context, eventType string, req *Request, err error, metadata map[string]string) {
	if c.audit == nil {
		return
	}
	ev := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Success:   err == nil,
		Metadata:  metadata,
	}
	if req != nil {
		ev.RequestID = req.ID
		ev.Method = req.Method
		ev.Path = req.Path
	}
	if err != nil {
		ev.Error = err.Error()
	}
	c.audit.Emit(ctx, ev)
}
