package notify

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPNotifierSend(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "mail.local", Port: 2525, Username: "u", Password: "p", From: "noreply@shop.io"}, zerolog.Nop())

	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		assert.NotNil(t, a)
		assert.Equal(t, "noreply@shop.io", from)
		return nil
	}

	err := n.Send(context.Background(), Email{To: "ana@example.com", Subject: "Reset", Body: "link"})
	require.NoError(t, err)
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, []string{"ana@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Reset\r\n")
	assert.True(t, bytes.HasSuffix(gotMsg, []byte("\r\n\r\nlink")))
}

func TestSMTPNotifierPropagatesFailure(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "mail.local", Port: 25}, zerolog.Nop())
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := n.Send(context.Background(), Email{To: "ana@example.com"})
	assert.ErrorContains(t, err, "connection refused")
}

func TestSMTPNotifierHonorsCancelledContext(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "mail.local", Port: 25}, zerolog.Nop())
	called := false
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := n.Send(ctx, Email{To: "ana@example.com"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestLogNotifierKeepsBodyOutOfInfoLogs(t *testing.T) {
	msg := Email{To: "ana@example.com", Subject: "Reset", Body: "http://x/recover/3f1c9a"}

	var info bytes.Buffer
	n := NewLogNotifier(zerolog.New(&info).Level(zerolog.InfoLevel))
	require.NoError(t, n.Send(context.Background(), msg))
	assert.Contains(t, info.String(), `"to":"ana@example.com"`)
	assert.Contains(t, info.String(), `"subject":"Reset"`)
	assert.NotContains(t, info.String(), "3f1c9a")

	var debug bytes.Buffer
	n = NewLogNotifier(zerolog.New(&debug).Level(zerolog.DebugLevel))
	require.NoError(t, n.Send(context.Background(), msg))
	assert.Contains(t, debug.String(), "http://x/recover/3f1c9a")
}
