package postgres

import (
	"context"

	"github.com/fixhub/fixhub-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type reviewsRepo struct{ pool *pgxpool.Pool }

func (r *reviewsRepo) Create(ctx context.Context, rv models.Review) (models.Review, error) {
	if rv.ID == "" {
		rv.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO reviews(id, request_id, rater_id, provider_id, rating, comment)
		 VALUES($1,$2,$3,$4,$5,$6)
		 RETURNING created_at`,
		rv.ID, rv.RequestID, rv.RaterID, rv.ProviderID, rv.Rating, rv.Comment).Scan(&rv.CreatedAt)
	return rv, err
}

func (r *reviewsRepo) ListByProvider(ctx context.Context, providerID string) ([]models.Review, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, request_id, rater_id, provider_id, rating, comment, created_at
		   FROM reviews WHERE provider_id=$1 ORDER BY created_at DESC`,
		providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Review
	for rows.Next() {
		var rv models.Review
		if err := rows.Scan(&rv.ID, &rv.RequestID, &rv.RaterID, &rv.ProviderID,
			&rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}
