// Package notify delivers account notifications (reset links, generated
// passwords, change confirmations) out of band. Rendering into e-mail or
// other channels belongs to whatever consumes the messages.
package notify

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Kind names the notification template.
type Kind string

const (
	KindPasswordReset   Kind = "password_reset"
	KindPasswordChanged Kind = "password_changed"
	KindInitialPassword Kind = "initial_password"
	KindTwoFactorSetup  Kind = "two_factor_setup"
)

// Data keys used by the engine.
const (
	DataName      = "name"
	DataResetLink = "reset_link"
	DataPassword  = "password"
	DataExpiresAt = "expires_at"
)

// Message is one notification for one recipient.
type Message struct {
	Recipient string
	Kind      Kind
	Data      map[string]string
}

// Sender delivers a message. Callers treat failures as best-effort.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes message metadata to a zap logger. Data values are never
// logged, only their keys.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("notification",
		zap.String("kind", string(msg.Kind)),
		zap.String("recipient", msg.Recipient),
		zap.Strings("fields", keys(msg.Data)),
	)
	return nil
}

// Recorder keeps every message in memory. Useful for development and tests.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

// Fail makes subsequent Send calls return err without recording.
func (r *Recorder) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Last returns the most recent message of kind for recipient.
func (r *Recorder) Last(recipient string, kind Kind) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		m := r.messages[i]
		if m.Recipient == recipient && m.Kind == kind {
			return m, true
		}
	}
	return Message{}, false
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
