package models

import "time"

type TransactionStatus string

const (
	TxnPending TransactionStatus = "pending"
	TxnSuccess TransactionStatus = "success"
	TxnFailed  TransactionStatus = "failed"
)

// Terminal: pending is the only state a transaction may leave.
func (s TransactionStatus) Terminal() bool { return s == TxnSuccess || s == TxnFailed }

// Transaction records one checkout with the payment gateway. TxRef is the
// gateway-facing reference and the idempotency key for reconciliation.
type Transaction struct {
	ID          string            `json:"id"`
	PayerID     string            `json:"payer_id"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	TxRef       string            `json:"tx_ref"`
	CheckoutURL string            `json:"checkout_url,omitempty"`
	Status      TransactionStatus `json:"status"`
	Coins       int64             `json:"coins"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
