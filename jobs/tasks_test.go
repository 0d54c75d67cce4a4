package jobs

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/hrdesk/hrdesk/internal/jobs"
)

type mailerSpy struct {
	sent []SendEmailPayload
	err  error
}

func (m *mailerSpy) Send(_ context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, SendEmailPayload{To: to, Subject: subject, Body: body})
	return nil
}

func TestMailJobDelivers(t *testing.T) {
	spy := &mailerSpy{}
	job := NewMailJob(spy, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewSendEmailTask(SendEmailPayload{To: "a@example.com", Subject: "Hi", Body: "Body"})
	require.NoError(t, err)
	assert.Equal(t, TaskTypeSendEmail, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, spy.sent, 1)
	assert.Equal(t, "a@example.com", spy.sent[0].To)
}

func TestMailJobSkipsRetryOnBadPayload(t *testing.T) {
	job := NewMailJob(&mailerSpy{}, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	task, err := NewSendEmailTask(SendEmailPayload{Subject: "no recipient"})
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestMailJobPropagatesSendFailure(t *testing.T) {
	registry := prometheus.NewRegistry()
	job := NewMailJob(&mailerSpy{err: errors.New("relay down")}, nil, jobmetrics.NewMetrics(registry))
	task, err := NewSendEmailTask(SendEmailPayload{To: "a@example.com"})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	count, err := testutil.GatherAndCount(registry, "hrdesk_jobs_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	mailer := NewSMTPMailer(SMTPConfig{Host: "mail.local", Port: 1025, From: "hr@example.com"})
	mailer.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	var gotAddr string
	var gotMsg []byte
	var gotAuth smtp.Auth
	mailer.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotMsg = addr, a, msg
		assert.Equal(t, "hr@example.com", from)
		assert.Equal(t, []string{"ana@example.com"}, to)
		return nil
	}

	require.NoError(t, mailer.Send(context.Background(), "ana@example.com", "Leave\r\nBcc: evil", "line one\nline two"))
	assert.Equal(t, "mail.local:1025", gotAddr)
	assert.Nil(t, gotAuth)

	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: Leave  Bcc: evil\r\n")
	assert.Contains(t, msg, "Date: Mon, 02 Mar 2026 09:00:00 +0000\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nline one\r\nline two"))
}

func TestSMTPMailerUsesAuthWhenConfigured(t *testing.T) {
	mailer := NewSMTPMailer(SMTPConfig{Host: "mail.local", Port: 587, Username: "u", Password: "p"})
	assert.NotNil(t, mailer.auth)
}

func TestSMTPMailerHonoursCancelledContext(t *testing.T) {
	mailer := NewSMTPMailer(SMTPConfig{Host: "mail.local", Port: 25})
	mailer.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, mailer.Send(ctx, "a@example.com", "s", "b"), context.Canceled)
}

type purgerSpy struct {
	olderThan time.Duration
}

func (p *purgerSpy) Cleanup(_ context.Context, olderThan time.Duration) error {
	p.olderThan = olderThan
	return nil
}

func TestIdempotencyCleanupJob(t *testing.T) {
	spy := &purgerSpy{}
	job := &IdempotencyCleanupJob{Store: spy}

	task, err := NewIdempotencyCleanupTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 48*time.Hour, spy.olderThan)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	assert.Equal(t, DefaultIdempotencyRetention, spy.olderThan)
}
