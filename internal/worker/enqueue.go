package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/demahagit/rcp-edd-member-downloads/internal/repository"
	"github.com/google/uuid"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypePeriodReset     = "period_reset"
	JobTypeRefundReconcile = "refund_reconcile"
)

// Priority constants for job scheduling
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// PeriodResetPayload is the payload for billing-period reset jobs.
type PeriodResetPayload struct {
	MemberID uuid.UUID `json:"member_id"`
}

// RefundReconcilePayload is the payload for refund reconciliation jobs.
type RefundReconcilePayload struct {
	TransactionID uuid.UUID `json:"transaction_id"`
}

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.ScheduledAt = time.Now().Add(delay)
	}
}

// EnqueueJob is a generic helper for enqueuing jobs with custom options.
func EnqueueJob(
	ctx context.Context,
	queries *repository.Queries,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (repository.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		ScheduledAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&params)
	}

	job, err := queries.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	return job, nil
}

// EnqueuePeriodReset enqueues a job to reset a member's download counter
// for a new billing period. Called when a renewal payment lands.
func EnqueuePeriodReset(
	ctx context.Context,
	queries *repository.Queries,
	memberID uuid.UUID,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := PeriodResetPayload{
		MemberID: memberID,
	}

	return EnqueueJob(ctx, queries, JobTypePeriodReset, payload, opts...)
}

// EnqueueRefundReconcile enqueues a job to reconcile quota state after a
// transaction refund.
func EnqueueRefundReconcile(
	ctx context.Context,
	queries *repository.Queries,
	transactionID uuid.UUID,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := RefundReconcilePayload{
		TransactionID: transactionID,
	}

	return EnqueueJob(ctx, queries, JobTypeRefundReconcile, payload, opts...)
}
