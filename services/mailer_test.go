package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
	done chan struct{}
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{done: make(chan struct{}, 10)}
}

func (m *recordingMailer) Send(to, subject, _ string) error {
	m.mu.Lock()
	m.sent = append(m.sent, to+"|"+subject)
	m.mu.Unlock()
	m.done <- struct{}{}
	return nil
}

func (m *recordingMailer) wait(t *testing.T) {
	t.Helper()
	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("mail was not sent")
	}
}

func TestWaitlistConfirmationEscapesName(t *testing.T) {
	body := waitlistConfirmation("<b>Ana</b>")
	assert.Contains(t, body, "Hi &lt;b&gt;Ana&lt;/b&gt;,")
	assert.NotContains(t, body, "<b>Ana</b>")

	assert.Contains(t, waitlistConfirmation(""), "Hi there,")
}

func TestSMTPMailerDisabled(t *testing.T) {
	m := NewSMTPMailer(MailConfig{})
	assert.False(t, m.Enabled())
	assert.ErrorIs(t, m.Send("a@example.com", "subject", "body"), ErrUpstream)
}

func TestSendAsync(t *testing.T) {
	m := newRecordingMailer()
	sendAsync(m, "a@example.com", "Welcome", "body")
	m.wait(t)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, []string{"a@example.com|Welcome"}, m.sent)

	sendAsync(nil, "a@example.com", "Welcome", "body")
}
