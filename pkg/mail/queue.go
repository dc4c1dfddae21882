package mail

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/handoff-sh/handoff/pkg/metrics"
)

// QueueItem is a single mail awaiting delivery, with retry bookkeeping.
type QueueItem struct {
	ID        string
	Receivers []string
	Subject   string
	Body      string
	Attempt   int
	CreatedAt time.Time
	NextRetry time.Time
	Succeeded bool
}

// Queue sends mail asynchronously so escalation creation never blocks on
// SMTP. Failed sends are retried with exponential backoff; when the queue
// is full new mails are dropped rather than applying backpressure.
type Queue struct {
	sender           Sender
	queue            chan *QueueItem
	log              *zap.SugaredLogger
	maxRetries       int
	initialBackoffMs int
	maxQueueSize     int
	wg               sync.WaitGroup
	ctx              context.Context
	cancel           context.CancelFunc
}

// NewQueue creates a mail queue. Zero or negative parameters fall back to
// defaults (5 retries starting at 10s backoff, 1000 queued mails).
func NewQueue(sender Sender, log *zap.SugaredLogger, maxRetries, initialBackoffMs, maxQueueSize int) *Queue {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if initialBackoffMs <= 0 {
		initialBackoffMs = 10000
	}
	if maxQueueSize <= 0 {
		maxQueueSize = 1000
	}

	log.Infow("Initializing mail queue",
		"maxRetries", maxRetries,
		"initialBackoffMs", initialBackoffMs,
		"maxQueueSize", maxQueueSize)

	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		sender:           sender,
		queue:            make(chan *QueueItem, maxQueueSize),
		log:              log,
		maxRetries:       maxRetries,
		initialBackoffMs: initialBackoffMs,
		maxQueueSize:     maxQueueSize,
		ctx:              ctx,
		cancel:           cancel,
	}
}

// Start launches the background delivery worker.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.worker()
	q.log.Info("Mail queue worker started")
}

// Enqueue adds a mail for asynchronous delivery. It never blocks: when the
// queue is full or shutting down the mail is dropped and an error returned.
func (q *Queue) Enqueue(id string, receivers []string, subject, body string) error {
	if len(receivers) == 0 {
		metrics.MailQueueDropped.WithLabelValues(q.sender.GetHost()).Inc()
		return errors.New("cannot enqueue mail with no receivers")
	}

	select {
	case <-q.ctx.Done():
		metrics.MailQueueDropped.WithLabelValues(q.sender.GetHost()).Inc()
		return errors.New("mail queue is shutting down")
	default:
	}

	item := &QueueItem{
		ID:        id,
		Receivers: receivers,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now(),
		NextRetry: time.Now(),
	}

	select {
	case q.queue <- item:
		metrics.MailQueued.WithLabelValues(q.sender.GetHost()).Inc()
		q.log.Debugw("Mail queued",
			"id", id,
			"receivers", len(receivers),
			"subject", subject)
		return nil
	default:
		metrics.MailQueueDropped.WithLabelValues(q.sender.GetHost()).Inc()
		q.log.Errorw("Mail queue is full, dropping mail",
			"id", id,
			"receivers", len(receivers),
			"queueSize", q.maxQueueSize)
		return errors.Errorf("mail queue is full (capacity: %d)", q.maxQueueSize)
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			q.log.Errorw("panic in mail queue worker recovered", "panic", r)
			metrics.MailFailed.WithLabelValues(q.sender.GetHost()).Inc()
			q.wg.Add(1)
			go q.worker()
		}
	}()

	pending := make([]*QueueItem, 0)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			q.log.Info("Mail queue worker shutting down")
			q.flushPending(pending)
			return

		case item := <-q.queue:
			if item == nil {
				continue
			}
			q.processItem(item)
			if !item.Succeeded && item.Attempt < q.maxRetries {
				pending = append(pending, item)
			}

		case <-ticker.C:
			now := time.Now()
			remaining := pending[:0]
			for _, item := range pending {
				if !item.Succeeded && now.After(item.NextRetry) {
					q.processItem(item)
				}
				if !item.Succeeded && item.Attempt < q.maxRetries {
					remaining = append(remaining, item)
				}
			}
			pending = remaining
		}
	}
}

func (q *Queue) processItem(item *QueueItem) {
	item.Attempt++

	err := q.sender.Send(item.Receivers, item.Subject, item.Body)
	if err == nil {
		item.Succeeded = true
		return
	}

	if item.Attempt < q.maxRetries {
		backoffMs := q.calculateBackoff(item.Attempt)
		item.NextRetry = time.Now().Add(time.Duration(backoffMs) * time.Millisecond)
		q.log.Warnw("Mail send failed, scheduling retry",
			"id", item.ID,
			"attempt", item.Attempt,
			"error", err,
			"nextRetry", item.NextRetry.Format(time.RFC3339))
		metrics.MailRetryScheduled.WithLabelValues(q.sender.GetHost()).Inc()
	} else {
		q.log.Errorw("Mail abandoned after all retries",
			"id", item.ID,
			"attempts", item.Attempt,
			"error", err,
			"subject", item.Subject)
		metrics.MailFailed.WithLabelValues(q.sender.GetHost()).Inc()
	}
}

// flushPending gives items awaiting a retry one final attempt on shutdown.
func (q *Queue) flushPending(items []*QueueItem) {
	if len(items) == 0 {
		return
	}
	q.log.Infow("Flushing pending mails on shutdown", "count", len(items))
	for _, item := range items {
		if !item.Succeeded && item.Attempt < q.maxRetries {
			q.processItem(item)
		}
	}
}

// calculateBackoff doubles the initial backoff per attempt, capped at 30m.
func (q *Queue) calculateBackoff(attempt int) int {
	backoffMs := int(float64(q.initialBackoffMs) * math.Pow(2, float64(attempt-1)))
	if backoffMs > 1800000 {
		backoffMs = 1800000
	}
	return backoffMs
}

// Stop cancels the worker and waits for it to drain, bounded by ctx.
func (q *Queue) Stop(ctx context.Context) error {
	q.log.Info("Stopping mail queue")
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.log.Info("Mail queue stopped")
		return nil
	case <-ctx.Done():
		q.log.Warnw("Mail queue shutdown timed out, some mails may be unsent")
		return ctx.Err()
	}
}

// Length returns the number of mails waiting in the channel. Items waiting
// on a retry timer are not counted.
func (q *Queue) Length() int {
	return len(q.queue)
}
