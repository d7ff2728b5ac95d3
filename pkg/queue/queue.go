package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueEmails is the Redis list key for email jobs.
	QueueEmails = "worker:emails"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is how many times a failed job is re-enqueued before it is dead-lettered,
	// so a job runs at most MaxRetries+1 times.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// PollTimeout bounds a single blocking pop so shutdown is noticed.
	PollTimeout = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeEmail JobType = "email"
)

// Email kinds carried in EmailPayload.Kind.
const (
	EmailKindNotification   = "notification"
	EmailKindPaymentReceipt = "payment_receipt"
)

// EmailPayload is the payload for email jobs.
type EmailPayload struct {
	Kind           string `json:"kind"`
	RecipientEmail string `json:"recipient_email"`
	RecipientName  string `json:"recipient_name"`
	Subject        string `json:"subject"`
	BodyText       string `json:"body_text"`
	BodyHTML       string `json:"body_html,omitempty"`
	Reference      string `json:"reference,omitempty"`
}

// Job is a generic job envelope. Attempt counts the retries already made.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Queue     string          `json:"queue"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
	LastError string          `json:"last_error,omitempty"`
}

// Queue enqueues and dequeues jobs via Redis lists.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
	newID  func() string
	now    func() time.Time
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		client: client,
		logger: logger,
		newID:  func() string { return uuid.New().String() },
		now:    time.Now,
	}
}

// Enqueue wraps payload in a Job and appends it to queueName.
func (q *Queue) Enqueue(ctx context.Context, queueName string, jobType JobType, payload interface{}) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	job := &Job{
		ID:        q.newID(),
		Type:      jobType,
		Queue:     queueName,
		Payload:   body,
		Attempt:   0,
		CreatedAt: q.now().UTC(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, queueName, raw).Err(); err != nil {
		return nil, fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued job", zap.String("job_id", job.ID), zap.String("type", string(jobType)), zap.String("queue", queueName))
	return job, nil
}

// EnqueueEmail enqueues an email job.
func (q *Queue) EnqueueEmail(ctx context.Context, payload EmailPayload) error {
	_, err := q.Enqueue(ctx, QueueEmails, JobTypeEmail, payload)
	return err
}

// Dequeue blocks up to PollTimeout for a job on any of queues.
// A nil job with nil error means nothing arrived.
func (q *Queue) Dequeue(ctx context.Context, queues ...string) (*Job, error) {
	result, err := q.client.BLPop(ctx, PollTimeout, queues...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload, dead-lettering", zap.String("queue", result[0]), zap.Error(err))
		if dlqErr := q.client.RPush(ctx, QueueDLQ, result[1]).Err(); dlqErr != nil {
			q.logger.Error("dlq push failed", zap.Error(dlqErr))
		}
		return nil, nil
	}
	if job.Queue == "" {
		job.Queue = result[0]
	}
	return &job, nil
}

// Retry re-enqueues a failed job with an incremented attempt, or dead-letters it once
// MaxRetries retries have been used.
func (q *Queue) Retry(ctx context.Context, job *Job, cause error) error {
	if job.Attempt >= MaxRetries {
		return q.DeadLetter(ctx, job, cause)
	}
	job.Attempt++
	job.LastError = errorText(cause)
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, job.Queue, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// DeadLetter moves a job to the DLQ without further retries.
func (q *Queue) DeadLetter(ctx context.Context, job *Job, cause error) error {
	job.LastError = errorText(cause)
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
		q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
		return err
	}
	q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.String("error", job.LastError))
	return nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
