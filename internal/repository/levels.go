package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// SubscriptionLevel is the database representation of a subscription tier.
type SubscriptionLevel struct {
	ID        uuid.UUID
	Name      string
	CreatedAt sql.NullTime
	UpdatedAt sql.NullTime
}

const getLevel = `
SELECT id, name, created_at, updated_at
FROM subscription_levels
WHERE id = $1
`

func (q *Queries) GetLevel(ctx context.Context, id uuid.UUID) (SubscriptionLevel, error) {
	row := q.db.QueryRowContext(ctx, getLevel, id)
	var l SubscriptionLevel
	err := row.Scan(&l.ID, &l.Name, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

const getLevelMeta = `
SELECT meta_value
FROM level_meta
WHERE level_id = $1 AND meta_key = $2
`

type GetLevelMetaParams struct {
	LevelID uuid.UUID
	MetaKey string
}

func (q *Queries) GetLevelMeta(ctx context.Context, arg GetLevelMetaParams) (string, error) {
	row := q.db.QueryRowContext(ctx, getLevelMeta, arg.LevelID, arg.MetaKey)
	var value string
	err := row.Scan(&value)
	return value, err
}

const upsertLevelMeta = `
INSERT INTO level_meta (level_id, meta_key, meta_value)
VALUES ($1, $2, $3)
ON CONFLICT (level_id, meta_key) DO UPDATE SET meta_value = EXCLUDED.meta_value
`

type UpsertLevelMetaParams struct {
	LevelID   uuid.UUID
	MetaKey   string
	MetaValue string
}

func (q *Queries) UpsertLevelMeta(ctx context.Context, arg UpsertLevelMetaParams) error {
	_, err := q.db.ExecContext(ctx, upsertLevelMeta, arg.LevelID, arg.MetaKey, arg.MetaValue)
	return err
}

const deleteLevelMeta = `
DELETE FROM level_meta
WHERE level_id = $1 AND meta_key = $2
`

type DeleteLevelMetaParams struct {
	LevelID uuid.UUID
	MetaKey string
}

func (q *Queries) DeleteLevelMeta(ctx context.Context, arg DeleteLevelMetaParams) error {
	_, err := q.db.ExecContext(ctx, deleteLevelMeta, arg.LevelID, arg.MetaKey)
	return err
}
