package testutil

import (
	"context"
	"errors"
	"regexp"
	"sync"

	"github.com/spado/songcontest/internal/service"
)

var ErrMailerDown = errors.New("mailer unavailable")

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// RecordingMailer keeps every message it is asked to send. With Fail set
// it records nothing and returns ErrMailerDown.
type RecordingMailer struct {
	mu       sync.Mutex
	messages []service.EmailMessage
	fail     bool
}

func NewRecordingMailer() *RecordingMailer {
	return &RecordingMailer{}
}

func (m *RecordingMailer) Send(ctx context.Context, msg service.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail {
		return ErrMailerDown
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *RecordingMailer) Fail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func (m *RecordingMailer) Messages() []service.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.EmailMessage(nil), m.messages...)
}

// SentTo returns the messages addressed to to, oldest first.
func (m *RecordingMailer) SentTo(to string) []service.EmailMessage {
	var out []service.EmailMessage
	for _, msg := range m.Messages() {
		if msg.To == to {
			out = append(out, msg)
		}
	}
	return out
}

// LastCode extracts the six digit code from the newest message to to. It
// returns "" when none was sent.
func (m *RecordingMailer) LastCode(to string) string {
	msgs := m.SentTo(to)
	for i := len(msgs) - 1; i >= 0; i-- {
		if code := codePattern.FindString(msgs[i].Text); code != "" {
			return code
		}
	}
	return ""
}
