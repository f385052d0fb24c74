package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/resend/resend-go/v2"
)

// Email is a rendered transactional message
type Email struct {
	To      []string
	Subject string
	HTML    string
	// Tag names the template the email came from, for logs and tests
	Tag string
}

// EmailSender delivers a single email synchronously
type EmailSender interface {
	Send(ctx context.Context, email Email) error
}

// Notifier hands emails off for background delivery. Enqueue never blocks the caller.
type Notifier interface {
	Enqueue(email Email) bool
}

// ResendSender implements EmailSender with the Resend API
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a Resend backed sender
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// Send delivers an email through Resend
func (s *ResendSender) Send(ctx context.Context, email Email) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTML,
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send email via resend: %w", err)
	}

	log.Printf("Sent %s email %s to %v", email.Tag, sent.Id, email.To)
	return nil
}

// LogSender prints emails instead of sending them; used when no email provider is configured
type LogSender struct{}

// Send logs the email
func (LogSender) Send(ctx context.Context, email Email) error {
	log.Printf("Email provider not configured; would send %q (%s) to %v", email.Subject, email.Tag, email.To)
	return nil
}

// ErrMailerClosed is returned by Shutdown when called twice
var ErrMailerClosed = errors.New("mailer already shut down")

// Mailer delivers emails on background workers so request latency never includes the
// email provider. Queued emails are drained on Shutdown instead of being lost on exit.
type Mailer struct {
	sender      EmailSender
	queue       chan Email
	sendTimeout time.Duration

	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	startOne sync.Once
}

// NewMailer creates a mailer with a bounded queue
func NewMailer(sender EmailSender, queueSize int) *Mailer {
	return &Mailer{
		sender:      sender,
		queue:       make(chan Email, queueSize),
		sendTimeout: 15 * time.Second,
	}
}

// Start launches the worker goroutines. Calling Start more than once has no effect.
func (m *Mailer) Start(workers int) {
	m.startOne.Do(func() {
		for i := 0; i < workers; i++ {
			m.wg.Add(1)
			go m.work()
		}
	})
}

func (m *Mailer) work() {
	defer m.wg.Done()
	for email := range m.queue {
		ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
		if err := m.sender.Send(ctx, email); err != nil {
			log.Printf("Failed to send %s email to %v: %v", email.Tag, email.To, err)
		}
		cancel()
	}
}

// Enqueue queues an email for delivery. It returns false, after logging, when the email
// has no recipients, the queue is full, or the mailer has shut down.
func (m *Mailer) Enqueue(email Email) bool {
	if len(email.To) == 0 {
		log.Printf("Dropping %s email with no recipients", email.Tag)
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		log.Printf("Mailer shut down; dropping %s email to %v", email.Tag, email.To)
		return false
	}

	select {
	case m.queue <- email:
		return true
	default:
		log.Printf("Email queue full; dropping %s email to %v", email.Tag, email.To)
		return false
	}
}

// Shutdown stops accepting emails and waits for queued ones to be sent or ctx to expire
func (m *Mailer) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMailerClosed
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mailer shutdown: %w", ctx.Err())
	}
}
