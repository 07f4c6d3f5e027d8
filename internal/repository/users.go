package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/screen-catalog/internal/domain"
)

// UsersRepository stores catalog subjects.
type UsersRepository struct {
	pool *pgxpool.Pool
}

// UserCreateParams bundles the fields required to register a user.
type UserCreateParams struct {
	Username    string
	PhoneNumber *string
}

const userColumns = `id, username, phone_number, created_at`

// Create inserts a user. Usernames are unique.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, phone_number) VALUES ($1, $2) RETURNING `+userColumns,
		params.Username, params.PhoneNumber)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, writeErr(err, "user", params.Username)
	}
	return user, nil
}

// GetByID fetches a user by identifier.
func (r *UsersRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, lookupErr(err, "user", id)
	}
	return user, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.PhoneNumber, &u.CreatedAt)
	return u, err
}
