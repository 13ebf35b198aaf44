package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/fixhub/fixhub-backend/internal/metrics"
	"github.com/fixhub/fixhub-backend/internal/models"
	"github.com/fixhub/fixhub-backend/internal/payments/chapa"
	repo "github.com/fixhub/fixhub-backend/internal/repository"
	"github.com/fixhub/fixhub-backend/internal/worker"
)

const (
	// CoinsPerCurrencyUnit is the fixed exchange rate applied when a
	// payment succeeds: 1 ETB buys 10 coins.
	CoinsPerCurrencyUnit = 10

	DefaultCurrency = "ETB"

	webhookJobTimeout = 15 * time.Second
)

// Gateway is the payment gateway surface the reconciler depends on.
// *chapa.Client satisfies it.
type Gateway interface {
	Initialize(ctx context.Context, req chapa.InitializeRequest) (string, error)
	Verify(ctx context.Context, txRef string) (chapa.Status, error)
}

// ReconcilerService bridges the gateway's charge lifecycle to ledger
// credits, exactly once per tx_ref. The pending->terminal status swap
// on the transaction row is the idempotency gate; webhook deliveries
// and the polling sweep both funnel through Reconcile.
type ReconcilerService struct {
	txns        repo.Transactions
	users       repo.Users
	ledger      *LedgerService
	gateway     Gateway
	pool        *worker.Pool
	log         repo.AuditLogs
	slog        *slog.Logger
	callbackURL string
}

func NewReconcilerService(txns repo.Transactions, users repo.Users, ledger *LedgerService, gw Gateway, pool *worker.Pool, audit repo.AuditLogs, logger *slog.Logger, callbackURL string) *ReconcilerService {
	return &ReconcilerService{
		txns:        txns,
		users:       users,
		ledger:      ledger,
		gateway:     gw,
		pool:        pool,
		log:         audit,
		slog:        logger,
		callbackURL: callbackURL,
	}
}

func (s *ReconcilerService) audit(ctx context.Context, txRef, action, details string) {
	var det map[string]any
	if details != "" {
		det = map[string]any{"message": details}
	}
	_ = s.log.Create(ctx, models.AuditLog{
		EntityType: "transaction",
		EntityID:   &txRef,
		Action:     action,
		Details:    det,
	})
}

func newTxRef() string {
	return fmt.Sprintf("TX-%d-%d", time.Now().UnixMilli(), rand.Intn(1000000))
}

type Checkout struct {
	CheckoutURL string `json:"checkout_url"`
	TxRef       string `json:"tx_ref"`
}

// Initiate creates a hosted checkout with the gateway and persists the
// pending transaction. The gateway call comes first: if it fails or
// times out, no local record exists, so there is never an orphan
// pending transaction pointing at a checkout the gateway never made.
func (s *ReconcilerService) Initiate(ctx context.Context, actor Principal, amount int64) (Checkout, error) {
	if amount < 1 {
		return Checkout{}, fmt.Errorf("%w: amount must be at least 1 %s", ErrInvalidQuery, DefaultCurrency)
	}
	payer, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Checkout{}, ErrNotFound
		}
		return Checkout{}, err
	}
	if payer.Role != models.RoleClient {
		return Checkout{}, fmt.Errorf("%w: payer must be a client", ErrUnauthorized)
	}

	txRef := newTxRef()
	checkoutURL, err := s.gateway.Initialize(ctx, chapa.InitializeRequest{
		Amount:      amount,
		Currency:    DefaultCurrency,
		Email:       payer.Email,
		TxRef:       txRef,
		CallbackURL: s.callbackURL + "/api/v1/transactions/webhook",
		Metadata:    map[string]string{"payer_id": payer.ID},
	})
	if err != nil {
		return Checkout{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	_, err = s.txns.Create(ctx, models.Transaction{
		PayerID:     payer.ID,
		Amount:      amount,
		Currency:    DefaultCurrency,
		TxRef:       txRef,
		CheckoutURL: checkoutURL,
		Status:      models.TxnPending,
		Coins:       amount * CoinsPerCurrencyUnit,
	})
	if err != nil {
		return Checkout{}, err
	}

	s.audit(ctx, txRef, "created", "checkout initialized")
	return Checkout{CheckoutURL: checkoutURL, TxRef: txRef}, nil
}

// Reconcile applies the gateway's observed status to the local record.
// A replay against a terminal transaction is a successful no-op; the
// ledger is credited at most once per tx_ref.
func (s *ReconcilerService) Reconcile(ctx context.Context, txRef string, observed chapa.Status) error {
	tx, err := s.txns.GetByRef(ctx, txRef)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if tx.Status.Terminal() {
		metrics.ReconciliationsTotal.WithLabelValues("replay").Inc()
		return nil
	}

	switch observed {
	case chapa.StatusSuccess:
		won, err := s.txns.UpdateStatusIf(ctx, txRef, models.TxnPending, models.TxnSuccess)
		if err != nil {
			return err
		}
		if !won {
			metrics.ReconciliationsTotal.WithLabelValues("replay").Inc()
			return nil
		}
		if _, err := s.ledger.Credit(ctx, tx.PayerID, tx.Coins); err != nil {
			// Put the row back so the sweep retries; the transaction
			// must never read success while the coins were not credited.
			_, _ = s.txns.UpdateStatusIf(ctx, txRef, models.TxnSuccess, models.TxnPending)
			return err
		}
		metrics.ReconciliationsTotal.WithLabelValues("success").Inc()
		s.audit(ctx, txRef, "status_change", fmt.Sprintf("success: %d coins credited", tx.Coins))
		return nil

	case chapa.StatusFailed:
		won, err := s.txns.UpdateStatusIf(ctx, txRef, models.TxnPending, models.TxnFailed)
		if err != nil {
			return err
		}
		if won {
			metrics.ReconciliationsTotal.WithLabelValues("failed").Inc()
			s.audit(ctx, txRef, "status_change", "failed")
		} else {
			metrics.ReconciliationsTotal.WithLabelValues("replay").Inc()
		}
		return nil

	default:
		// Still pending at the gateway; the sweep will come back.
		return nil
	}
}

// SubmitWebhook enqueues verification of a webhook delivery. The body
// of the delivery is untrusted, so only the tx_ref is taken from it;
// the status is re-fetched from the gateway before anything is applied.
// The HTTP layer acks immediately; lost work is covered by the sweep.
func (s *ReconcilerService) SubmitWebhook(txRef string) {
	s.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), webhookJobTimeout)
		defer cancel()
		if err := s.verifyAndReconcile(ctx, txRef); err != nil {
			s.slog.Warn("webhook reconciliation", "tx_ref", txRef, "err", err)
		}
	})
}

func (s *ReconcilerService) verifyAndReconcile(ctx context.Context, txRef string) error {
	status, err := s.gateway.Verify(ctx, txRef)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	return s.Reconcile(ctx, txRef, status)
}

// Sweep verifies every pending transaction against the gateway.
// Per-transaction failures are logged and skipped; they never abort
// the sweep for the others.
func (s *ReconcilerService) Sweep(ctx context.Context) error {
	pending, err := s.txns.ListPending(ctx)
	if err != nil {
		return err
	}
	for _, tx := range pending {
		if err := s.verifyAndReconcile(ctx, tx.TxRef); err != nil {
			s.slog.Warn("sweep: transaction skipped", "tx_ref", tx.TxRef, "err", err)
		}
	}
	metrics.SweepRunsTotal.Inc()
	return nil
}

// Run drives Sweep on a fixed interval until ctx is done.
func (s *ReconcilerService) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.Sweep(ctx); err != nil {
				s.slog.Error("sweep", "err", err)
			}
		}
	}
}

// ListByPayer returns the payer's transaction history.
func (s *ReconcilerService) ListByPayer(ctx context.Context, actor Principal, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.txns.ListByPayer(ctx, actor.ID, limit, offset)
}
