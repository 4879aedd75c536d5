package notifications

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zatekoja/hospitalqueue/internal/domain/providers"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
)

// LogSender logs messages instead of sending them. It keeps the messages it
// saw so tests and the demo seed can inspect them.
type LogSender struct {
	mu     sync.Mutex
	sent   []providers.SMSMessage
	logger zerolog.Logger
}

// NewLogSender creates the log-only sender used when SMS_PROVIDER=mock
func NewLogSender() *LogSender {
	return &LogSender{logger: observability.Component("sms_mock")}
}

var _ providers.SMSSender = (*LogSender)(nil)

// Send records and logs msg
func (s *LogSender) Send(ctx context.Context, msg providers.SMSMessage) (*providers.SMSResult, error) {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	id := "mock-" + uuid.New().String()
	s.logger.Info().Str("to", msg.To).Str("message_id", id).Str("body", msg.Body).Msg("sms (mock)")
	return &providers.SMSResult{MessageID: id, Status: "sent"}, nil
}

// Sent returns a copy of every message sent so far
func (s *LogSender) Sent() []providers.SMSMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]providers.SMSMessage, len(s.sent))
	copy(out, s.sent)
	return out
}
