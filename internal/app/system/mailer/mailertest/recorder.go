// Package mailertest provides a recording mail transport for tests.
package mailertest

import (
	"context"
	"sync"

	"github.com/refstack/refstack/internal/app/system/mailer"
	"go.uber.org/zap"
)

// Sent is a message captured by Recorder.
type Sent struct {
	From string
	mailer.Email
}

// Recorder is a mailer.Transport that keeps every message in memory.
// Set Err to make Send fail.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) Send(_ context.Context, from string, msg mailer.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, Sent{From: from, Email: msg})
	return nil
}

// Messages returns a copy of everything sent so far.
func (r *Recorder) Messages() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// NewMailer returns a Mailer backed by a fresh Recorder.
func NewMailer() (*mailer.Mailer, *Recorder) {
	rec := &Recorder{}
	return mailer.New(rec, "no-reply@refstack.test", zap.NewNop()), rec
}
