package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Follows interface {
	Follow(ctx context.Context, follower, following uuid.UUID) error
	Unfollow(ctx context.Context, follower, following uuid.UUID) error
	IsFollowing(ctx context.Context, follower, following uuid.UUID) (bool, error)
	CountFollowers(ctx context.Context, id uuid.UUID) (int, error)
	CountFollowing(ctx context.Context, id uuid.UUID) (int, error)
}

type follows struct {
	db *bun.DB
}

func NewFollowsRepository(db *bun.DB) Follows {
	return &follows{db: db}
}

func (f *follows) Follow(ctx context.Context, follower, following uuid.UUID) error {
	record := &Follow{
		FollowerID:  follower,
		FollowingID: following,
	}
	_, err := f.db.NewInsert().
		Model(record).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	return err
}

func (f *follows) Unfollow(ctx context.Context, follower, following uuid.UUID) error {
	_, err := f.db.NewDelete().
		Model((*Follow)(nil)).
		Where("follower_id = ?", follower).
		Where("following_id = ?", following).
		Exec(ctx)
	return err
}

func (f *follows) IsFollowing(ctx context.Context, follower, following uuid.UUID) (bool, error) {
	return f.db.NewSelect().
		Model((*Follow)(nil)).
		Where("?TableAlias.follower_id = ?", follower).
		Where("?TableAlias.following_id = ?", following).
		Exists(ctx)
}

func (f *follows) CountFollowers(ctx context.Context, id uuid.UUID) (int, error) {
	return f.db.NewSelect().
		Model((*Follow)(nil)).
		Where("?TableAlias.following_id = ?", id).
		Count(ctx)
}

func (f *follows) CountFollowing(ctx context.Context, id uuid.UUID) (int, error) {
	return f.db.NewSelect().
		Model((*Follow)(nil)).
		Where("?TableAlias.follower_id = ?", id).
		Count(ctx)
}
