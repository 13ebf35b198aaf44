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

type requestsRepo struct{ pool *pgxpool.Pool }

const requestCols = `id, customer_id, provider_id, category, description, lat, lng,
                     budget, is_fixed_price, status, review_id, paid, media, created_at, updated_at`

func scanRequest(row pgx.Row) (models.ServiceRequest, error) {
	var sr models.ServiceRequest
	err := row.Scan(&sr.ID, &sr.CustomerID, &sr.ProviderID, &sr.Category, &sr.Description,
		&sr.Location.Lat, &sr.Location.Lng, &sr.Budget, &sr.IsFixedPrice, &sr.Status,
		&sr.ReviewID, &sr.Paid, &sr.Media, &sr.CreatedAt, &sr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ServiceRequest{}, repository.ErrNotFound
	}
	return sr, err
}

func (r *requestsRepo) Create(ctx context.Context, sr models.ServiceRequest) (models.ServiceRequest, error) {
	if sr.ID == "" {
		sr.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO servicerequests(id, customer_id, provider_id, category, description,
		                             lat, lng, budget, is_fixed_price, status, media)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		 RETURNING `+requestCols,
		sr.ID, sr.CustomerID, sr.ProviderID, sr.Category, sr.Description,
		sr.Location.Lat, sr.Location.Lng, sr.Budget, sr.IsFixedPrice, sr.Status, sr.Media)
	return scanRequest(row)
}

func (r *requestsRepo) GetByID(ctx context.Context, id string) (models.ServiceRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx,
		`SELECT `+requestCols+` FROM servicerequests WHERE id=$1`, id))
}

func (r *requestsRepo) list(ctx context.Context, query string, args ...any) ([]models.ServiceRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ServiceRequest
	for rows.Next() {
		var sr models.ServiceRequest
		if err := rows.Scan(&sr.ID, &sr.CustomerID, &sr.ProviderID, &sr.Category, &sr.Description,
			&sr.Location.Lat, &sr.Location.Lng, &sr.Budget, &sr.IsFixedPrice, &sr.Status,
			&sr.ReviewID, &sr.Paid, &sr.Media, &sr.CreatedAt, &sr.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

func (r *requestsRepo) ListByProvider(ctx context.Context, providerID string, status models.RequestStatus) ([]models.ServiceRequest, error) {
	return r.list(ctx,
		`SELECT `+requestCols+` FROM servicerequests
		  WHERE provider_id=$1 AND status=$2 ORDER BY created_at DESC`,
		providerID, status)
}

func (r *requestsRepo) ListByCustomer(ctx context.Context, customerID string) ([]models.ServiceRequest, error) {
	return r.list(ctx,
		`SELECT `+requestCols+` FROM servicerequests
		  WHERE customer_id=$1 AND status <> 'deleted'
		  ORDER BY created_at DESC`,
		customerID)
}

func (r *requestsRepo) TransitionStatus(ctx context.Context, id string, from, to models.RequestStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE servicerequests SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`,
		id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *requestsRepo) SetReview(ctx context.Context, id, reviewID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE servicerequests SET review_id=$2, updated_at=now() WHERE id=$1`,
		id, reviewID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *requestsRepo) MarkPaid(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE servicerequests SET paid=true, updated_at=now() WHERE id=$1 AND NOT paid`,
		id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
