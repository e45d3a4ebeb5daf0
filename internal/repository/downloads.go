package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Download is the database representation of a catalog item.
type Download struct {
	ID              uuid.UUID
	Name            string
	PriceCents      int64
	IsBundle        bool
	VariablePricing bool
	FileKeys        []string
	CreatedAt       sql.NullTime
	UpdatedAt       sql.NullTime
}

const getDownload = `
SELECT id, name, price_cents, is_bundle, variable_pricing, file_keys, created_at, updated_at
FROM downloads
WHERE id = $1
`

func (q *Queries) GetDownload(ctx context.Context, id uuid.UUID) (Download, error) {
	row := q.db.QueryRowContext(ctx, getDownload, id)
	var d Download
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.PriceCents,
		&d.IsBundle,
		&d.VariablePricing,
		pq.Array(&d.FileKeys),
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	return d, err
}
