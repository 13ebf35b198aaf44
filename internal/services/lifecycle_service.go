package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/fixhub/fixhub-backend/internal/metrics"
	"github.com/fixhub/fixhub-backend/internal/models"
	repo "github.com/fixhub/fixhub-backend/internal/repository"
)

// ContactUnlockCost is the coin price of revealing provider contact
// details on a request.
const ContactUnlockCost = 5

// LifecycleService drives a service request from creation to a terminal
// state. Every transition goes through a status compare-and-swap, so
// two writers racing on the same request cannot both win.
type LifecycleService struct {
	requests repo.Requests
	users    repo.Users
	reviews  repo.Reviews
	ledger   *LedgerService
	log      repo.AuditLogs
}

func NewLifecycleService(requests repo.Requests, users repo.Users, reviews repo.Reviews, ledger *LedgerService, audit repo.AuditLogs) *LifecycleService {
	return &LifecycleService{requests: requests, users: users, reviews: reviews, ledger: ledger, log: audit}
}

func (s *LifecycleService) audit(ctx context.Context, entityID, action, details string) {
	var det map[string]any
	if details != "" {
		det = map[string]any{"message": details}
	}
	_ = s.log.Create(ctx, models.AuditLog{
		EntityType: "servicerequest",
		EntityID:   &entityID,
		Action:     action,
		Details:    det,
	})
}

type CreateRequestInput struct {
	ProviderID   string
	Category     string
	Description  string
	Location     models.Point
	Budget       *int64
	IsFixedPrice bool
	Media        []string
}

// Create binds a new pending request to a provider. Availability is not
// checked here; it is only enforced at accept time, so several pending
// requests toward one provider may coexist.
func (s *LifecycleService) Create(ctx context.Context, actor Principal, in CreateRequestInput) (models.ServiceRequest, error) {
	if actor.Role != models.RoleClient {
		return models.ServiceRequest{}, ErrUnauthorized
	}
	if in.ProviderID == actor.ID {
		return models.ServiceRequest{}, fmt.Errorf("%w: cannot request your own service", ErrInvalidQuery)
	}

	sr := models.ServiceRequest{
		CustomerID:   actor.ID,
		ProviderID:   in.ProviderID,
		Category:     in.Category,
		Description:  in.Description,
		Location:     in.Location,
		Budget:       in.Budget,
		IsFixedPrice: in.IsFixedPrice,
		Media:        in.Media,
		Status:       models.RequestPending,
	}
	if err := sr.Validate(); err != nil {
		return models.ServiceRequest{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	provider, err := s.users.GetByID(ctx, in.ProviderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return models.ServiceRequest{}, fmt.Errorf("%w: provider", ErrNotFound)
		}
		return models.ServiceRequest{}, err
	}
	if provider.Role != models.RoleProvider {
		return models.ServiceRequest{}, fmt.Errorf("%w: provider", ErrNotFound)
	}

	created, err := s.requests.Create(ctx, sr)
	if err != nil {
		return models.ServiceRequest{}, err
	}
	s.audit(ctx, created.ID, "created", "request created")
	return created, nil
}

func (s *LifecycleService) get(ctx context.Context, id string) (models.ServiceRequest, error) {
	sr, err := s.requests.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return models.ServiceRequest{}, ErrNotFound
	}
	return sr, err
}

// Accept moves a pending request to accepted and takes the provider's
// availability. The availability swap happens first; if the status swap
// then loses a race, availability is handed back.
func (s *LifecycleService) Accept(ctx context.Context, actor Principal, requestID string) (models.ServiceRequest, error) {
	sr, err := s.get(ctx, requestID)
	if err != nil {
		return models.ServiceRequest{}, err
	}
	if actor.ID != sr.ProviderID {
		return models.ServiceRequest{}, ErrUnauthorized
	}
	if sr.Status != models.RequestPending {
		return models.ServiceRequest{}, ErrInvalidTransition
	}

	taken, err := s.users.SetAvailable(ctx, sr.ProviderID, true, false)
	if err != nil {
		return models.ServiceRequest{}, err
	}
	if !taken {
		return models.ServiceRequest{}, fmt.Errorf("%w: provider already holds an active request", ErrInvalidTransition)
	}

	swapped, err := s.requests.TransitionStatus(ctx, requestID, models.RequestPending, models.RequestAccepted)
	if err != nil || !swapped {
		// Lost the race on the request; hand availability back.
		_, _ = s.users.SetAvailable(ctx, sr.ProviderID, false, true)
		if err != nil {
			return models.ServiceRequest{}, err
		}
		return models.ServiceRequest{}, ErrInvalidTransition
	}

	metrics.TransitionsTotal.WithLabelValues(string(models.RequestAccepted)).Inc()
	s.audit(ctx, requestID, "status_change", "accepted")
	return s.get(ctx, requestID)
}

// Decline moves a pending request to declined. Availability is untouched.
func (s *LifecycleService) Decline(ctx context.Context, actor Principal, requestID string) (models.ServiceRequest, error) {
	sr, err := s.get(ctx, requestID)
	if err != nil {
		return models.ServiceRequest{}, err
	}
	if actor.ID != sr.ProviderID {
		return models.ServiceRequest{}, ErrUnauthorized
	}

	swapped, err := s.requests.TransitionStatus(ctx, requestID, models.RequestPending, models.RequestDeclined)
	if err != nil {
		return models.ServiceRequest{}, err
	}
	if !swapped {
		return models.ServiceRequest{}, ErrInvalidTransition
	}

	metrics.TransitionsTotal.WithLabelValues(string(models.RequestDeclined)).Inc()
	s.audit(ctx, requestID, "status_change", "declined")
	return s.get(ctx, requestID)
}

// Complete finishes an accepted request: records the review exactly
// once, frees the provider and folds the rating into their average.
func (s *LifecycleService) Complete(ctx context.Context, actor Principal, requestID string, rating int, comment string) (models.Review, error) {
	sr, err := s.get(ctx, requestID)
	if err != nil {
		return models.Review{}, err
	}
	if actor.ID != sr.CustomerID {
		return models.Review{}, ErrUnauthorized
	}

	rv := models.Review{
		RequestID:  requestID,
		RaterID:    actor.ID,
		ProviderID: sr.ProviderID,
		Rating:     rating,
		Comment:    comment,
	}
	if err := rv.Validate(); err != nil {
		return models.Review{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	switch sr.Status {
	case models.RequestAccepted:
	case models.RequestCompleted:
		return models.Review{}, ErrAlreadyCompleted
	default:
		return models.Review{}, ErrInvalidTransition
	}

	swapped, err := s.requests.TransitionStatus(ctx, requestID, models.RequestAccepted, models.RequestCompleted)
	if err != nil {
		return models.Review{}, err
	}
	if !swapped {
		if cur, err := s.get(ctx, requestID); err == nil && cur.Status == models.RequestCompleted {
			return models.Review{}, ErrAlreadyCompleted
		}
		return models.Review{}, ErrInvalidTransition
	}

	// From here on any failure hands the status back, so the request is
	// never read as completed while the review or the provider's stats
	// are missing, and a retry can run the whole move again.
	revert := func() {
		_, _ = s.requests.TransitionStatus(ctx, requestID, models.RequestCompleted, models.RequestAccepted)
	}

	created, err := s.reviews.Create(ctx, rv)
	if err != nil {
		revert()
		return models.Review{}, err
	}
	if err := s.requests.SetReview(ctx, requestID, created.ID); err != nil {
		revert()
		return models.Review{}, err
	}
	if err := s.users.ApplyCompletion(ctx, sr.ProviderID, rating); err != nil {
		revert()
		return models.Review{}, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(models.RequestCompleted)).Inc()
	s.audit(ctx, requestID, "status_change", "completed")
	return created, nil
}

// Delete marks a non-terminal request deleted. Only the owning customer
// may delete; an accepted request frees the provider again.
func (s *LifecycleService) Delete(ctx context.Context, actor Principal, requestID string) error {
	sr, err := s.get(ctx, requestID)
	if err != nil {
		return err
	}
	if actor.ID != sr.CustomerID {
		return ErrUnauthorized
	}
	if sr.Status.Terminal() {
		return ErrInvalidTransition
	}

	swapped, err := s.requests.TransitionStatus(ctx, requestID, sr.Status, models.RequestDeleted)
	if err != nil {
		return err
	}
	if !swapped {
		return ErrInvalidTransition
	}
	if sr.Status == models.RequestAccepted {
		_, _ = s.users.SetAvailable(ctx, sr.ProviderID, false, true)
	}

	metrics.TransitionsTotal.WithLabelValues(string(models.RequestDeleted)).Inc()
	s.audit(ctx, requestID, "status_change", "deleted")
	return nil
}

// UnlockContact reveals the provider's contact details for a fixed coin
// cost. Paid requests return the contact again without charging.
func (s *LifecycleService) UnlockContact(ctx context.Context, actor Principal, requestID string) (models.ProviderContact, error) {
	sr, err := s.get(ctx, requestID)
	if err != nil {
		return models.ProviderContact{}, err
	}
	if actor.ID != sr.CustomerID {
		return models.ProviderContact{}, ErrUnauthorized
	}

	provider, err := s.users.GetByID(ctx, sr.ProviderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return models.ProviderContact{}, fmt.Errorf("%w: provider", ErrNotFound)
		}
		return models.ProviderContact{}, err
	}
	contact := models.ProviderContact{
		ProviderID: provider.ID,
		Username:   provider.Username,
		Email:      provider.Email,
		Phone:      provider.Phone,
	}

	if sr.Paid {
		return contact, nil
	}

	if _, err := s.ledger.Debit(ctx, actor.ID, ContactUnlockCost); err != nil {
		return models.ProviderContact{}, err
	}
	won, err := s.requests.MarkPaid(ctx, requestID)
	if err != nil {
		_, _ = s.ledger.Credit(ctx, actor.ID, ContactUnlockCost)
		return models.ProviderContact{}, err
	}
	if !won {
		// A concurrent unlock already paid; refund this debit.
		_, _ = s.ledger.Credit(ctx, actor.ID, ContactUnlockCost)
		return contact, nil
	}

	s.audit(ctx, requestID, "contact_unlocked", "")
	return contact, nil
}

// ListForProvider returns the provider's pending inbox.
func (s *LifecycleService) ListForProvider(ctx context.Context, actor Principal) ([]models.ServiceRequest, error) {
	if actor.Role != models.RoleProvider {
		return nil, ErrUnauthorized
	}
	return s.requests.ListByProvider(ctx, actor.ID, models.RequestPending)
}

// ListForCustomer returns all requests the customer has created.
func (s *LifecycleService) ListForCustomer(ctx context.Context, actor Principal) ([]models.ServiceRequest, error) {
	return s.requests.ListByCustomer(ctx, actor.ID)
}
