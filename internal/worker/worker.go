package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cyblex/backend/pkg/mailer"
	"github.com/cyblex/backend/pkg/queue"
)

// ErrPermanent marks job failures that no retry can fix.
var ErrPermanent = errors.New("permanent job failure")

// JobQueue is the part of the Redis queue the processor drains.
type JobQueue interface {
	Dequeue(ctx context.Context, queues ...string) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job, cause error) error
	DeadLetter(ctx context.Context, job *queue.Job, cause error) error
}

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, m mailer.Message) error
}

// LogSender logs emails instead of sending them. Used when SMTP is not configured.
type LogSender struct {
	Logger *zap.Logger
}

// Send logs the message envelope.
func (s LogSender) Send(_ context.Context, m mailer.Message) error {
	s.Logger.Info("email not sent (smtp disabled)", zap.String("to", m.To), zap.String("subject", m.Subject))
	return nil
}

// EmailProcessor delivers queued email jobs.
type EmailProcessor struct {
	queue   JobQueue
	sender  Sender
	logger  *zap.Logger
	backoff time.Duration
}

// NewEmailProcessor creates an email job processor.
func NewEmailProcessor(q JobQueue, sender Sender, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{queue: q, sender: sender, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one email job. Errors wrapping ErrPermanent must not be retried.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("%w: unknown job type: %s", ErrPermanent, job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("%w: unmarshal payload: %v", ErrPermanent, err)
	}
	if payload.RecipientEmail == "" {
		p.logger.Warn("email job without recipient dropped", zap.String("job_id", job.ID), zap.String("kind", payload.Kind))
		return nil
	}
	err := p.sender.Send(ctx, mailer.Message{
		To:       payload.RecipientEmail,
		ToName:   payload.RecipientName,
		Subject:  payload.Subject,
		BodyText: payload.BodyText,
		BodyHTML: payload.BodyHTML,
	})
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	p.logger.Info("email sent",
		zap.String("job_id", job.ID),
		zap.String("kind", payload.Kind),
		zap.String("reference", payload.Reference))
	return nil
}

// Run starts the worker loop: dequeue, process, then retry or dead-letter on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, queue.QueueEmails)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if errors.Is(err, ErrPermanent) {
				if dlErr := p.queue.DeadLetter(ctx, job, err); dlErr != nil {
					p.logger.Error("dead-letter failed", zap.Error(dlErr))
				}
				continue
			}
			if reErr := p.queue.Retry(ctx, job, err); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
