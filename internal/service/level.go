package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"

	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
	"github.com/demahagit/rcp-edd-member-downloads/internal/repository"
	"github.com/google/uuid"
)

// LevelService manages subscription levels and their download allowance.
//
// The allowance lives in the level meta store under
// domain.MetaKeyDownloadsAllowed. An absent key means downloads are not
// enabled for the level; writing a zero or negative allowance removes the
// key rather than storing a zero, so "disabled" has exactly one
// representation.
type LevelService interface {
	// Get returns a subscription level by ID.
	Get(ctx context.Context, id uuid.UUID) (*domain.SubscriptionLevel, error)

	// GetAllowance returns the downloads-allowed setting for a level.
	// Returns 0 if the level does not enable downloads.
	GetAllowance(ctx context.Context, levelID uuid.UUID) (int, error)

	// SetAllowance stores the downloads-allowed setting for a level.
	// An allowance of zero or less deletes the setting.
	SetAllowance(ctx context.Context, levelID uuid.UUID, allowance int) error
}

type levelService struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewLevelService creates a new LevelService.
func NewLevelService(queries *repository.Queries, logger *slog.Logger) LevelService {
	return &levelService{
		queries: queries,
		logger:  logger,
	}
}

// Get returns a subscription level by ID.
func (s *levelService) Get(ctx context.Context, id uuid.UUID) (*domain.SubscriptionLevel, error) {
	const op = "level.get"

	row, err := s.queries.GetLevel(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "subscription level", id.String())
		}
		return nil, domain.Internal(err, op, "failed to load subscription level")
	}

	level := &domain.SubscriptionLevel{
		ID:   row.ID,
		Name: row.Name,
	}
	if row.CreatedAt.Valid {
		level.CreatedAt = row.CreatedAt.Time
	}
	if row.UpdatedAt.Valid {
		level.UpdatedAt = row.UpdatedAt.Time
	}
	return level, nil
}

// GetAllowance returns the downloads-allowed setting for a level.
func (s *levelService) GetAllowance(ctx context.Context, levelID uuid.UUID) (int, error) {
	const op = "level.get_allowance"

	raw, err := s.queries.GetLevelMeta(ctx, repository.GetLevelMetaParams{
		LevelID: levelID,
		MetaKey: domain.MetaKeyDownloadsAllowed,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, domain.Internal(err, op, "failed to load level meta")
	}

	return parseAllowance(raw), nil
}

// SetAllowance stores the downloads-allowed setting for a level.
func (s *levelService) SetAllowance(ctx context.Context, levelID uuid.UUID, allowance int) error {
	const op = "level.set_allowance"

	// Ensure the level exists before touching its meta
	if _, err := s.Get(ctx, levelID); err != nil {
		return err
	}

	if allowance <= 0 {
		if err := s.queries.DeleteLevelMeta(ctx, repository.DeleteLevelMetaParams{
			LevelID: levelID,
			MetaKey: domain.MetaKeyDownloadsAllowed,
		}); err != nil {
			return domain.Internal(err, op, "failed to delete level meta")
		}

		s.logger.Info("downloads disabled for level", "level_id", levelID)
		return nil
	}

	if err := s.queries.UpsertLevelMeta(ctx, repository.UpsertLevelMetaParams{
		LevelID:   levelID,
		MetaKey:   domain.MetaKeyDownloadsAllowed,
		MetaValue: strconv.Itoa(allowance),
	}); err != nil {
		return domain.Internal(err, op, "failed to store level meta")
	}

	s.logger.Info("download allowance updated",
		"level_id", levelID,
		"allowance", allowance,
	)

	return nil
}

// parseAllowance interprets a stored allowance value. Anything that is
// not a positive integer counts as zero, matching how an absent key is
// treated.
func parseAllowance(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
