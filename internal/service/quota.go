// Package service contains the business logic layer.
//
// This file implements the per-member download counter. The counter is
// period-scoped: it resets when a new billing period starts and is
// debited once per quota-fulfilled download.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
	"github.com/demahagit/rcp-edd-member-downloads/internal/repository"
	"github.com/google/uuid"
)

// QuotaStore tracks how many downloads a member has taken this period.
type QuotaStore interface {
	// Consumed returns the member's current count. A counter that was
	// never materialized reads as zero.
	Consumed(ctx context.Context, memberID uuid.UUID) (int, error)

	// Increment atomically adds one to the member's count, refusing to
	// move past ceiling. Returns the new count, or an EPAYMENT error if
	// the ceiling guard rejected the increment.
	Increment(ctx context.Context, memberID uuid.UUID, ceiling int) (int, error)

	// Decrement subtracts one from the member's count, flooring at zero.
	Decrement(ctx context.Context, memberID uuid.UUID) error

	// Reset clears the member's count for a new billing period. Idempotent.
	Reset(ctx context.Context, memberID uuid.UUID) error
}

type quotaStore struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewQuotaStore creates a new QuotaStore.
func NewQuotaStore(queries *repository.Queries, logger *slog.Logger) QuotaStore {
	return &quotaStore{
		queries: queries,
		logger:  logger,
	}
}

// Consumed returns the member's current count.
func (s *quotaStore) Consumed(ctx context.Context, memberID uuid.UUID) (int, error) {
	const op = "quota.consumed"

	count, err := s.queries.GetDownloadCount(ctx, memberID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, domain.Internal(err, op, "failed to load download count")
	}

	return int(count), nil
}

// Increment atomically adds one to the member's count.
//
// The ceiling guard runs inside the database, so two processes racing on
// the same member cannot push the count past the allowance even without
// any in-process coordination.
func (s *quotaStore) Increment(ctx context.Context, memberID uuid.UUID, ceiling int) (int, error) {
	const op = "quota.increment"

	count, err := s.queries.IncrementDownloadCount(ctx, repository.IncrementDownloadCountParams{
		MemberID: memberID,
		Ceiling:  int32(ceiling),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("quota increment rejected at ceiling",
				"member_id", memberID,
				"ceiling", ceiling,
			)
			return 0, domain.AtLimit(op)
		}
		return 0, domain.Internal(err, op, "failed to increment download count")
	}

	return int(count), nil
}

// Decrement subtracts one from the member's count, flooring at zero.
func (s *quotaStore) Decrement(ctx context.Context, memberID uuid.UUID) error {
	const op = "quota.decrement"

	if err := s.queries.DecrementDownloadCount(ctx, memberID); err != nil {
		return domain.Internal(err, op, "failed to decrement download count")
	}

	return nil
}

// Reset clears the member's count for a new billing period.
func (s *quotaStore) Reset(ctx context.Context, memberID uuid.UUID) error {
	const op = "quota.reset"

	if err := s.queries.ResetDownloadCount(ctx, memberID); err != nil {
		return domain.Internal(err, op, "failed to reset download count")
	}

	return nil
}
