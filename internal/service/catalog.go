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

// CatalogService reads downloadable catalog items.
type CatalogService interface {
	// Get returns a catalog item by ID.
	Get(ctx context.Context, id uuid.UUID) (*domain.Download, error)
}

type catalogService struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(queries *repository.Queries, logger *slog.Logger) CatalogService {
	return &catalogService{
		queries: queries,
		logger:  logger,
	}
}

// Get returns a catalog item by ID.
func (s *catalogService) Get(ctx context.Context, id uuid.UUID) (*domain.Download, error) {
	const op = "catalog.get"

	row, err := s.queries.GetDownload(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "download", id.String())
		}
		return nil, domain.Internal(err, op, "failed to load download")
	}

	return toDomainDownload(row), nil
}

func toDomainDownload(row repository.Download) *domain.Download {
	d := &domain.Download{
		ID:              row.ID,
		Name:            row.Name,
		PriceCents:      row.PriceCents,
		IsBundle:        row.IsBundle,
		VariablePricing: row.VariablePricing,
		FileKeys:        row.FileKeys,
	}
	if row.CreatedAt.Valid {
		d.CreatedAt = row.CreatedAt.Time
	}
	if row.UpdatedAt.Valid {
		d.UpdatedAt = row.UpdatedAt.Time
	}
	return d
}
