package adminauth

import (
	"io"

	internalaudit "github.com/MrEthical07/adminauth/internal/audit"
)

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
// sqlstore.ActivitySink persists them in the activity log.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per event to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// MultiSink fans an event out to several sinks in order.
type MultiSink = internalaudit.MultiSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
