package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/web3guardian/guardian-server-go/internal/model"
)

// EntityRepository is the resolver's registration cache: a row per handle
// that has already been registered with the reputation API, including any
// externally supplied uuid override.
type EntityRepository interface {
	FindByHandle(ctx context.Context, handle string) (*model.EntityRecord, error)
	Upsert(ctx context.Context, params model.UpsertEntityParams) (*model.EntityRecord, error)
}

type entityRepo struct {
	db *sqlx.DB
}

func NewEntityRepository(db *sqlx.DB) EntityRepository {
	return &entityRepo{db: db}
}

func (r *entityRepo) FindByHandle(ctx context.Context, handle string) (*model.EntityRecord, error) {
	var record model.EntityRecord
	err := r.db.GetContext(ctx, &record, `
		SELECT * FROM entities WHERE handle = $1
	`, handle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *entityRepo) Upsert(ctx context.Context, params model.UpsertEntityParams) (*model.EntityRecord, error) {
	var record model.EntityRecord
	err := r.db.GetContext(ctx, &record, `
		INSERT INTO entities (handle, uuid, image, type, registered_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (handle) DO UPDATE SET
			uuid = EXCLUDED.uuid,
			image = EXCLUDED.image,
			type = EXCLUDED.type
		RETURNING *
	`, params.Handle, params.UUID, params.Image, params.Type)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
