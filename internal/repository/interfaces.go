package repository

import (
	"context"
	"errors"

	"github.com/fixhub/fixhub-backend/internal/models"
)

// ErrNotFound is returned by every repository when the referenced row
// does not exist.
var ErrNotFound = errors.New("record not found")

// ProviderQuery bounds a geospatial provider lookup. Keywords must be
// lowercased by the caller; MaxDistanceMeters must be positive.
type ProviderQuery struct {
	Keywords          []string
	Origin            models.Point
	MaxDistanceMeters float64
}

// ProviderMatch is a candidate within the distance bound, carrying the
// geodesic distance from the query origin for ranking tie-breaks.
type ProviderMatch struct {
	User           models.User
	DistanceMeters float64
}

type Users interface {
	Create(ctx context.Context, u models.User) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)

	// FindProviders returns verified, available, unbanned providers whose
	// skills intersect q.Keywords, within q.MaxDistanceMeters of q.Origin.
	FindProviders(ctx context.Context, q ProviderQuery) ([]ProviderMatch, error)

	// SetAvailable flips availability only when the current value matches
	// from; reports whether the swap was applied.
	SetAvailable(ctx context.Context, id string, from, to bool) (bool, error)

	// AdjustCoins applies delta to the coin balance in one conditional
	// update that never lets the balance go negative. The bool reports
	// whether the update was applied; the int64 is the resulting balance.
	AdjustCoins(ctx context.Context, id string, delta int64) (int64, bool, error)

	// ApplyCompletion folds rating into the provider's running average,
	// increments completed jobs and frees availability, atomically.
	ApplyCompletion(ctx context.Context, providerID string, rating int) error
}

type Requests interface {
	Create(ctx context.Context, r models.ServiceRequest) (models.ServiceRequest, error)
	GetByID(ctx context.Context, id string) (models.ServiceRequest, error)
	ListByProvider(ctx context.Context, providerID string, status models.RequestStatus) ([]models.ServiceRequest, error)

	// ListByCustomer returns the customer's requests, newest first.
	// Deleted requests are not part of the history.
	ListByCustomer(ctx context.Context, customerID string) ([]models.ServiceRequest, error)

	// TransitionStatus is the compare-and-swap every lifecycle move goes
	// through: the status changes only if it still equals from.
	TransitionStatus(ctx context.Context, id string, from, to models.RequestStatus) (bool, error)

	SetReview(ctx context.Context, id, reviewID string) error

	// MarkPaid swaps paid false->true; reports whether this call won.
	MarkPaid(ctx context.Context, id string) (bool, error)
}

type Reviews interface {
	Create(ctx context.Context, rv models.Review) (models.Review, error)
	ListByProvider(ctx context.Context, providerID string) ([]models.Review, error)
}

type Transactions interface {
	Create(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	GetByRef(ctx context.Context, txRef string) (models.Transaction, error)
	ListPending(ctx context.Context) ([]models.Transaction, error)
	ListByPayer(ctx context.Context, payerID string, limit, offset int) ([]models.Transaction, error)

	// UpdateStatusIf swaps status only while it still equals from; the
	// pending->terminal swap is the exactly-once gate for reconciliation.
	UpdateStatusIf(ctx context.Context, txRef string, from, to models.TransactionStatus) (bool, error)
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}
