package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/screen-catalog/internal/apperror"
	"github.com/Clark-Hu/screen-catalog/internal/domain"
)

// PeopleRepository stores one kind of person. Directors and actors live in
// separate tables with the same shape.
type PeopleRepository struct {
	pool  *pgxpool.Pool
	role  domain.PersonRole
	table string
}

// PersonCreateParams bundles the fields required to create a person.
type PersonCreateParams struct {
	Name         string
	Introduction *string
	ImageURL     *string
}

// PersonUpdateParams holds optional fields for a partial update.
type PersonUpdateParams struct {
	Name         *string
	Introduction *string
	ImageURL     *string
}

const personColumns = `id, name, introduction, image_url, created_at`

// Role reports which kind of person this repository stores.
func (r *PeopleRepository) Role() domain.PersonRole { return r.role }

// Create inserts a person.
func (r *PeopleRepository) Create(ctx context.Context, params PersonCreateParams) (domain.Person, error) {
	query := fmt.Sprintf(`INSERT INTO %s (name, introduction, image_url) VALUES ($1, $2, $3) RETURNING %s`,
		r.table, personColumns)
	person, err := r.scan(r.pool.QueryRow(ctx, query, params.Name, params.Introduction, params.ImageURL))
	if err != nil {
		return domain.Person{}, writeErr(err, string(r.role), params.Name)
	}
	return person, nil
}

// GetByID fetches a person by identifier.
func (r *PeopleRepository) GetByID(ctx context.Context, id string) (domain.Person, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, personColumns, r.table)
	person, err := r.scan(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Person{}, lookupErr(err, string(r.role), id)
	}
	return person, nil
}

// Update applies a partial update; nil fields keep their stored value.
func (r *PeopleRepository) Update(ctx context.Context, id string, params PersonUpdateParams) (domain.Person, error) {
	query := fmt.Sprintf(`
        UPDATE %s AS p
        SET name = COALESCE($2, p.name),
            introduction = COALESCE($3, p.introduction),
            image_url = COALESCE($4, p.image_url)
        WHERE p.id = $1
        RETURNING %s`, r.table, personColumns)
	person, err := r.scan(r.pool.QueryRow(ctx, query, id, params.Name, params.Introduction, params.ImageURL))
	if err != nil {
		return domain.Person{}, writeErr(err, string(r.role), id)
	}
	return person, nil
}

// List returns people by name.
func (r *PeopleRepository) List(ctx context.Context) ([]domain.Person, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY name, id`, personColumns, r.table)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	people := make([]domain.Person, 0)
	for rows.Next() {
		person, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		people = append(people, person)
	}
	return people, rows.Err()
}

// Delete removes a person. Directed movies keep existing without a director.
func (r *PeopleRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table), id)
	if err != nil {
		return lookupErr(err, string(r.role), id)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound(string(r.role), id)
	}
	return nil
}

func (r *PeopleRepository) scan(row pgx.Row) (domain.Person, error) {
	p := domain.Person{Role: r.role}
	err := row.Scan(&p.ID, &p.Name, &p.Introduction, &p.ImageURL, &p.CreatedAt)
	return p, err
}

// CastRepository links actors to movies.
type CastRepository struct {
	pool *pgxpool.Pool
}

// Upsert credits an actor on a movie, replacing the role name if the credit
// already exists.
func (r *CastRepository) Upsert(ctx context.Context, movieID, actorID string, roleName *string) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO movie_actors (movie_id, actor_id, role_name) VALUES ($1, $2, $3)
        ON CONFLICT (movie_id, actor_id) DO UPDATE SET role_name = EXCLUDED.role_name`,
		movieID, actorID, roleName)
	if err != nil {
		switch pgCode(err) {
		case pgForeignKeyViolation:
			if fkTarget(err, "actor") == "movie" {
				return apperror.NotFound("movie", movieID)
			}
			return apperror.NotFound("actor", actorID)
		case pgInvalidTextRepr:
			return apperror.NotFound("cast member", movieID+"/"+actorID)
		}
		return err
	}
	return nil
}

// Remove drops an actor credit from a movie.
func (r *CastRepository) Remove(ctx context.Context, movieID, actorID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM movie_actors WHERE movie_id = $1 AND actor_id = $2`, movieID, actorID)
	if err != nil {
		return lookupErr(err, "cast member", movieID+"/"+actorID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("cast member", movieID+"/"+actorID)
	}
	return nil
}

// ListByMovie returns the cast of a movie ordered by actor name.
func (r *CastRepository) ListByMovie(ctx context.Context, movieID string) ([]domain.CastMember, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT a.id, a.name, a.introduction, a.image_url, a.created_at, ma.role_name
        FROM movie_actors ma JOIN actors a ON a.id = ma.actor_id
        WHERE ma.movie_id = $1
        ORDER BY a.name, a.id`, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cast := make([]domain.CastMember, 0)
	for rows.Next() {
		m := domain.CastMember{Person: domain.Person{Role: domain.RoleActor}}
		if err := rows.Scan(&m.ID, &m.Name, &m.Introduction, &m.ImageURL, &m.CreatedAt, &m.RoleName); err != nil {
			return nil, err
		}
		cast = append(cast, m)
	}
	return cast, rows.Err()
}
