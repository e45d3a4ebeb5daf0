package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
	"github.com/demahagit/rcp-edd-member-downloads/internal/repository"
	"github.com/google/uuid"
)

// EntitlementService answers what a member is entitled to download right
// now. Every ambiguous state resolves to "not entitled": no subscription,
// a pending or expired one, and a level without an allowance all produce
// an inactive entitlement.
type EntitlementService interface {
	// Resolve builds the member's current entitlement snapshot.
	Resolve(ctx context.Context, memberID uuid.UUID) (*domain.Entitlement, error)

	// HasDownloadMembership reports whether the member holds an active
	// subscription whose level enables downloads.
	HasDownloadMembership(ctx context.Context, memberID uuid.UUID) (bool, error)

	// SyncSubscriptionStatus records a status change reported by the
	// billing provider.
	SyncSubscriptionStatus(ctx context.Context, memberID uuid.UUID, status domain.SubscriptionStatus, expiresAt *time.Time) error
}

type entitlementService struct {
	queries *repository.Queries
	levels  LevelService
	quota   QuotaStore
	logger  *slog.Logger
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(queries *repository.Queries, levels LevelService, quota QuotaStore, logger *slog.Logger) EntitlementService {
	return &entitlementService{
		queries: queries,
		levels:  levels,
		quota:   quota,
		logger:  logger,
	}
}

// Resolve builds the member's current entitlement snapshot.
func (s *entitlementService) Resolve(ctx context.Context, memberID uuid.UUID) (*domain.Entitlement, error) {
	const op = "entitlement.resolve"

	row, err := s.queries.GetSubscriptionByMemberID(ctx, memberID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.Entitlement{MemberID: memberID}, nil
		}
		return nil, domain.Internal(err, op, "failed to load subscription")
	}

	sub := toDomainSubscription(row)

	ent := &domain.Entitlement{
		MemberID: memberID,
		LevelID:  sub.LevelID,
	}

	if !sub.IsActive() {
		return ent, nil
	}

	allowance, err := s.levels.GetAllowance(ctx, sub.LevelID)
	if err != nil {
		return nil, err
	}
	if allowance == 0 {
		// Level does not enable downloads
		return ent, nil
	}

	consumed, err := s.quota.Consumed(ctx, memberID)
	if err != nil {
		return nil, err
	}

	ent.Active = true
	ent.Allowance = allowance
	ent.Consumed = consumed

	return ent, nil
}

// HasDownloadMembership reports whether the member holds an active
// subscription whose level enables downloads.
func (s *entitlementService) HasDownloadMembership(ctx context.Context, memberID uuid.UUID) (bool, error) {
	ent, err := s.Resolve(ctx, memberID)
	if err != nil {
		return false, err
	}
	return ent.Active, nil
}

// SyncSubscriptionStatus records a status change reported by the
// billing provider.
func (s *entitlementService) SyncSubscriptionStatus(ctx context.Context, memberID uuid.UUID, status domain.SubscriptionStatus, expiresAt *time.Time) error {
	const op = "entitlement.sync_subscription_status"

	params := repository.UpdateSubscriptionStatusParams{
		MemberID: memberID,
		Status:   string(status),
	}
	if expiresAt != nil {
		params.ExpiresAt = sql.NullTime{Time: *expiresAt, Valid: true}
	}

	if err := s.queries.UpdateSubscriptionStatus(ctx, params); err != nil {
		return domain.Internal(err, op, "failed to update subscription status")
	}

	s.logger.Info("subscription status synced",
		"member_id", memberID,
		"status", status,
	)

	return nil
}

func toDomainSubscription(row repository.Subscription) *domain.Subscription {
	sub := &domain.Subscription{
		ID:       row.ID,
		MemberID: row.MemberID,
		LevelID:  row.LevelID,
		Status:   domain.SubscriptionStatus(row.Status),
	}
	if row.ExpiresAt.Valid {
		t := row.ExpiresAt.Time
		sub.ExpiresAt = &t
	}
	if row.CreatedAt.Valid {
		sub.CreatedAt = row.CreatedAt.Time
	}
	if row.UpdatedAt.Valid {
		sub.UpdatedAt = row.UpdatedAt.Time
	}
	return sub
}
