package sqlxdb

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/classfund/core/user"
)

const userColumns = "id, name, email, password_hash, created_at, updated_at"

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = newID()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO admin_user (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		usr.ID, usr.Name, usr.Email, usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, translate(err, nil, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, id string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM admin_user WHERE id = $1`, id)
	if err != nil {
		return user.User{}, translate(err, user.ErrNotFound, "getting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM admin_user WHERE lower(email) = lower($1)`, email)
	if err != nil {
		return user.User{}, translate(err, user.ErrNotFound, "getting user by email")
	}
	return row.toUser(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM admin_user ORDER BY created_at DESC, id`); err != nil {
		return nil, translate(err, nil, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	n, err := execAffected(ctx, repo.db,
		`UPDATE admin_user SET name = $2, email = $3, password_hash = $4, updated_at = $5 WHERE id = $1`,
		usr.ID, usr.Name, usr.Email, usr.PasswordHash, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, translate(err, user.ErrNotFound, "updating user")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	n, err := execAffected(ctx, repo.db, `DELETE FROM admin_user WHERE id = $1`, id)
	if err != nil {
		return translate(err, user.ErrNotFound, "deleting user")
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}
