// internal/app/system/workers/mailqueue.go
package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/refstack/refstack/internal/app/system/mailer"
	"go.uber.org/zap"
)

// ErrQueueFull is returned by Send when the buffer has no room.
var ErrQueueFull = errors.New("mail queue full")

// ErrQueueStopped is returned by Send after Stop.
var ErrQueueStopped = errors.New("mail queue stopped")

// MailQueue is a background worker that delivers mail off the request path.
// It implements mailer.Sender, so handlers cannot tell it from a Mailer.
type MailQueue struct {
	mailer  *mailer.Mailer
	log     *zap.Logger
	timeout time.Duration
	queue   chan mailer.Email

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewMailQueue creates a mail worker.
//
// Parameters:
//   - m: the mailer that performs delivery
//   - logger: zap logger for logging
//   - size: how many messages may wait before Send starts failing
//   - timeout: deadline for each delivery attempt
func NewMailQueue(m *mailer.Mailer, logger *zap.Logger, size int, timeout time.Duration) *MailQueue {
	if size < 1 {
		size = 1
	}
	return &MailQueue{
		mailer:  m,
		log:     logger,
		timeout: timeout,
		queue:   make(chan mailer.Email, size),
	}
}

// Start begins the delivery loop.
func (q *MailQueue) Start() {
	q.wg.Add(1)
	go q.run()
	q.log.Info("mail worker started",
		zap.String("transport", q.mailer.TransportName()),
		zap.Int("queue_size", cap(q.queue)),
		zap.Duration("timeout", q.timeout))
}

// Send queues msg. It never blocks; ctx is accepted for mailer.Sender.
func (q *MailQueue) Send(_ context.Context, msg mailer.Email) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return ErrQueueStopped
	}
	select {
	case q.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new mail, drains what is queued and waits for the worker.
func (q *MailQueue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.queue)
	q.mu.Unlock()

	q.wg.Wait()
	q.log.Info("mail worker stopped")
}

func (q *MailQueue) run() {
	defer q.wg.Done()
	for msg := range q.queue {
		q.deliver(msg)
	}
}

func (q *MailQueue) deliver(msg mailer.Email) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	if err := q.mailer.Send(ctx, msg); err != nil {
		q.log.Error("mail delivery failed",
			zap.Error(err),
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject))
	}
}
