package postgres

import (
	"context"
	"errors"

	"github.com/fixhub/fixhub-backend/internal/models"
	"github.com/fixhub/fixhub-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type usersRepo struct{ pool *pgxpool.Pool }

const userCols = `id, username, email, password_hash, phone, role, lat, lng, skills,
                  rating, completed_jobs, verified, available, banned, coins, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Phone, &u.Role,
		&u.Location.Lat, &u.Location.Lng, &u.Skills, &u.Rating, &u.CompletedJobs,
		&u.Verified, &u.Available, &u.Banned, &u.Coins, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, repository.ErrNotFound
	}
	return u, err
}

func (r *usersRepo) Create(ctx context.Context, u models.User) (models.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users(id, username, email, password_hash, phone, role, lat, lng, skills, verified, available)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		 RETURNING `+userCols,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Phone, u.Role,
		u.Location.Lat, u.Location.Lng, u.Skills, u.Verified, u.Role == models.RoleProvider)
	return scanUser(row)
}

func (r *usersRepo) GetByID(ctx context.Context, id string) (models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
}

func (r *usersRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, email))
}

func (r *usersRepo) FindProviders(ctx context.Context, q repository.ProviderQuery) ([]repository.ProviderMatch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userCols+`,
		        earth_distance(ll_to_earth(lat, lng), ll_to_earth($1, $2)) AS distance_m
		   FROM users
		  WHERE role = 'service_provider'
		    AND verified AND available AND NOT banned
		    AND skills && $3::text[]
		    AND earth_box(ll_to_earth($1, $2), $4) @> ll_to_earth(lat, lng)
		    AND earth_distance(ll_to_earth(lat, lng), ll_to_earth($1, $2)) <= $4
		  ORDER BY distance_m ASC`,
		q.Origin.Lat, q.Origin.Lng, q.Keywords, q.MaxDistanceMeters)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.ProviderMatch
	for rows.Next() {
		var m repository.ProviderMatch
		u := &m.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Phone, &u.Role,
			&u.Location.Lat, &u.Location.Lng, &u.Skills, &u.Rating, &u.CompletedJobs,
			&u.Verified, &u.Available, &u.Banned, &u.Coins, &u.CreatedAt, &u.UpdatedAt,
			&m.DistanceMeters); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *usersRepo) SetAvailable(ctx context.Context, id string, from, to bool) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET available=$3, updated_at=now() WHERE id=$1 AND available=$2`,
		id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *usersRepo) AdjustCoins(ctx context.Context, id string, delta int64) (int64, bool, error) {
	var coins int64
	err := r.pool.QueryRow(ctx,
		`UPDATE users SET coins = coins + $2, updated_at=now()
		  WHERE id=$1 AND coins + $2 >= 0
		  RETURNING coins`,
		id, delta).Scan(&coins)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return coins, true, nil
}

func (r *usersRepo) ApplyCompletion(ctx context.Context, providerID string, rating int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		    SET rating = (rating * completed_jobs + $2) / (completed_jobs + 1),
		        completed_jobs = completed_jobs + 1,
		        available = true,
		        updated_at = now()
		  WHERE id=$1`,
		providerID, rating)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
