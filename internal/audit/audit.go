package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event is one audit record.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives events from the dispatcher goroutine.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink discards events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink forwards events into a buffered channel; tests read from it.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON document per line.
type JSONWriterSink struct {
	mu     sync.Mutex
	writer io.Writer
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
}

// MultiSink fans an event out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}
