package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserQuery filters user listings
type UserQuery struct {
	Search     string
	Status     UserStatus
	PublicOnly bool
	Role       string
	Skip       int
	Limit      int
	// OrderBy is a column name, first_name when empty
	OrderBy string
}

type Users interface {
	repository.Repository[*User]

	GetByLogin(ctx context.Context, login string) (*User, error)
	GetByNickname(ctx context.Context, nickname string) (*User, error)
	GetByConfirmationHash(ctx context.Context, hash string) (*User, error)
	Search(ctx context.Context, q UserQuery) ([]*User, int, error)
	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)
	Store(ctx context.Context, record *User) (*User, error)
	StoreTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus) error
	TrackSignIn(ctx context.Context, user *User) error
	TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error
	IsFieldUnique(ctx context.Context, field, value string, exclude uuid.UUID) (bool, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// uniqueUserFields are the columns IsFieldUnique accepts
var uniqueUserFields = map[string]bool{
	"login":    true,
	"nickname": true,
	"email":    true,
}

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "login"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByLogin(ctx context.Context, login string) (*User, error) {
	return a.getBy(ctx, "login", strings.TrimSpace(login))
}

func (a *users) GetByNickname(ctx context.Context, nickname string) (*User, error) {
	return a.getBy(ctx, "nickname", strings.TrimSpace(nickname))
}

func (a *users) GetByConfirmationHash(ctx context.Context, hash string) (*User, error) {
	if hash == "" {
		return nil, ErrInvalidConfirmationCode
	}
	user, err := a.getBy(ctx, "confirmation_hash", hash)
	if IsUserNotFound(err) {
		return nil, ErrInvalidConfirmationCode
	}
	return user, err
}

func (a *users) getBy(ctx context.Context, column, value string) (*User, error) {
	if value == "" {
		return nil, ErrUserNotFound
	}

	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Search(ctx context.Context, q UserQuery) ([]*User, int, error) {
	records := []*User{}
	query := a.db.NewSelect().Model(&records)

	if q.Status != "" {
		query = query.Where("?TableAlias.status = ?", q.Status)
	}

	if q.PublicOnly {
		query = query.Where("?TableAlias.is_public = ?", true)
	}

	if q.Role != "" {
		query = query.Where("?TableAlias.roles LIKE ?", `%"`+q.Role+`"%`)
	}

	if search := strings.ToLower(strings.TrimSpace(q.Search)); search != "" {
		pattern := "%" + search + "%"
		query = query.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				Where("LOWER(?TableAlias.first_name) LIKE ?", pattern).
				WhereOr("LOWER(?TableAlias.last_name) LIKE ?", pattern)
		})
	}

	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = "first_name"
	}
	query = query.OrderExpr(fmt.Sprintf("?TableAlias.%s ASC", orderBy))

	if q.Skip > 0 {
		query = query.Offset(q.Skip)
	}

	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	count, err := query.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}

	return records, count, nil
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	if record != nil && record.Nickname == "" {
		nickname, err := UniqueNickname(ctx, a, record.Login)
		if err != nil {
			return nil, err
		}
		record.Nickname = nickname
	}
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) Store(ctx context.Context, record *User) (*User, error) {
	return a.StoreTx(ctx, a.db, record)
}

func (a *users) StoreTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	if record.ID == uuid.Nil {
		return a.CreateTx(ctx, tx, record)
	}

	now := time.Now()
	record.UpdatedAt = &now

	res, err := tx.NewUpdate().Model(record).WherePK().Exec(ctx)
	if err != nil {
		return nil, err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrUserNotFound
	}

	return record, nil
}

func (a *users) UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus) error {
	_, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (a *users) TrackSignIn(ctx context.Context, user *User) error {
	now := time.Now()
	_, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("last_sign_in = ?", now).
		Set("last_activity = ?", now).
		Set("sign_in_count = sign_in_count + 1").
		Where("id = ?", user.ID).
		Exec(ctx)
	if err != nil {
		return err
	}

	user.LastSignIn = &now
	user.LastActivity = &now
	user.SignInCount++
	return nil
}

func (a *users) TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("last_activity = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (a *users) IsFieldUnique(ctx context.Context, field, value string, exclude uuid.UUID) (bool, error) {
	if !uniqueUserFields[field] {
		return false, fmt.Errorf("field %q is not a unique user field", field)
	}

	query := a.db.NewSelect().
		Model((*User)(nil)).
		Where(fmt.Sprintf("?TableAlias.%s = ?", field), value)

	if exclude != uuid.Nil {
		query = query.Where("?TableAlias.id != ?", exclude)
	}

	count, err := query.Count(ctx)
	if err != nil {
		return false, err
	}

	return count == 0, nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.EnsureStatus()

	if len(record.Roles) == 0 {
		record.Roles = []string{RoleUser}
	}

	if record.Email == "" {
		record.Email = record.Login
	}

	if record.Nickname == "" {
		record.Nickname = NicknameFrom(record.Login)
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
