package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Roles interface {
	repository.Repository[*Role]

	GetByName(ctx context.Context, name string) (*Role, error)
	GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error)
	All(ctx context.Context) ([]*Role, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Role, criteria ...repository.InsertCriteria) (*Role, error)
	Store(ctx context.Context, record *Role) (*Role, error)
	IsNameUnique(ctx context.Context, name string, exclude uuid.UUID) (bool, error)
}

type roles struct {
	repository.Repository[*Role]
	db *bun.DB
}

var _ Roles = (*roles)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	repo := repository.NewRepository[*Role](db, repository.ModelHandlers[*Role]{
		NewRecord: func() *Role { return &Role{} },
		GetID: func(r *Role) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Role, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &roles{
		Repository: repo,
		db:         db,
	}
}

func (r *roles) GetByName(ctx context.Context, name string) (*Role, error) {
	return r.GetByNameTx(ctx, r.db, name)
}

func (r *roles) GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}

	return record, nil
}

func (r *roles) All(ctx context.Context) ([]*Role, error) {
	records := []*Role{}
	err := r.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.name ASC").
		Scan(ctx)
	return records, err
}

func (r *roles) CreateTx(ctx context.Context, tx bun.IDB, record *Role, criteria ...repository.InsertCriteria) (*Role, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (r *roles) Store(ctx context.Context, record *Role) (*Role, error) {
	if record.ID == uuid.Nil {
		return r.CreateTx(ctx, r.db, record)
	}

	now := time.Now()
	record.UpdatedAt = &now

	if _, err := r.db.NewUpdate().Model(record).WherePK().Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (r *roles) IsNameUnique(ctx context.Context, name string, exclude uuid.UUID) (bool, error) {
	query := r.db.NewSelect().
		Model((*Role)(nil)).
		Where("?TableAlias.name = ?", name)

	if exclude != uuid.Nil {
		query = query.Where("?TableAlias.id != ?", exclude)
	}

	count, err := query.Count(ctx)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}
