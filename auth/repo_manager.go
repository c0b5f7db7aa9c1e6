package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Roles() Roles
	Follows() Follows
	Migrate(ctx context.Context) error
}

type mngr struct {
	db      *bun.DB
	users   Users
	roles   Roles
	follows Follows
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:      db,
		users:   NewUsersRepository(db),
		roles:   NewRolesRepository(db),
		follows: NewFollowsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	if m.follows == nil {
		return errors.New("repository follows should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Roles() Roles {
	return m.roles
}

func (m mngr) Follows() Follows {
	return m.follows
}

// Migrate creates the tables and the builtin roles when missing
func (m mngr) Migrate(ctx context.Context) error {
	models := []any{
		(*User)(nil),
		(*Role)(nil),
		(*Follow)(nil),
	}

	for _, model := range models {
		if _, err := m.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}

	return m.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, role := range BuiltinRoles() {
			if _, err := m.roles.GetByNameTx(ctx, tx, role.Name); err == nil {
				continue
			} else if !IsRoleNotFound(err) {
				return err
			}
			if _, err := m.roles.CreateTx(ctx, tx, role); err != nil {
				return err
			}
		}
		return nil
	})
}

func isRecordNotFound(err error) bool {
	return repository.IsRecordNotFound(err)
}
