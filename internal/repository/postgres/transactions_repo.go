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

type transactionsRepo struct{ pool *pgxpool.Pool }

const txnCols = `id, payer_id, amount, currency, tx_ref, checkout_url, status, coins, created_at, updated_at`

func scanTxn(row pgx.Row) (models.Transaction, error) {
	var tx models.Transaction
	err := row.Scan(&tx.ID, &tx.PayerID, &tx.Amount, &tx.Currency, &tx.TxRef,
		&tx.CheckoutURL, &tx.Status, &tx.Coins, &tx.CreatedAt, &tx.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Transaction{}, repository.ErrNotFound
	}
	return tx, err
}

func (r *transactionsRepo) Create(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO transactions(id, payer_id, amount, currency, tx_ref, checkout_url, status, coins)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING `+txnCols,
		tx.ID, tx.PayerID, tx.Amount, tx.Currency, tx.TxRef, tx.CheckoutURL, tx.Status, tx.Coins)
	return scanTxn(row)
}

func (r *transactionsRepo) GetByRef(ctx context.Context, txRef string) (models.Transaction, error) {
	return scanTxn(r.pool.QueryRow(ctx,
		`SELECT `+txnCols+` FROM transactions WHERE tx_ref=$1`, txRef))
}

func (r *transactionsRepo) ListPending(ctx context.Context) ([]models.Transaction, error) {
	return r.list(ctx,
		`SELECT `+txnCols+` FROM transactions WHERE status='pending' ORDER BY created_at ASC`)
}

func (r *transactionsRepo) ListByPayer(ctx context.Context, payerID string, limit, offset int) ([]models.Transaction, error) {
	return r.list(ctx,
		`SELECT `+txnCols+` FROM transactions
		  WHERE payer_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		payerID, limit, offset)
}

func (r *transactionsRepo) list(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.ID, &tx.PayerID, &tx.Amount, &tx.Currency, &tx.TxRef,
			&tx.CheckoutURL, &tx.Status, &tx.Coins, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *transactionsRepo) UpdateStatusIf(ctx context.Context, txRef string, from, to models.TransactionStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE transactions SET status=$3, updated_at=now() WHERE tx_ref=$1 AND status=$2`,
		txRef, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
