package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fixhub/fixhub-backend/internal/models"
)

type lifecycleFixture struct {
	users    *memUsers
	requests *memRequests
	reviews  *memReviews
	svc      *LifecycleService
	ledger   *LedgerService

	customer models.User
	provider models.User
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	f := &lifecycleFixture{
		users:    newMemUsers(),
		requests: newMemRequests(),
		reviews:  newMemReviews(),
	}
	f.ledger = NewLedgerService(f.users)
	f.svc = NewLifecycleService(f.requests, f.users, f.reviews, f.ledger, &memAuditLogs{})
	f.customer = f.users.put(models.User{
		Username: "customer", Email: "c@example.com", Role: models.RoleClient, Coins: 100,
	})
	f.provider = f.users.put(models.User{
		Username: "provider", Email: "p@example.com", Phone: "+251911000000",
		Role: models.RoleProvider, Available: true, Verified: true,
		Skills: []string{"plumbing"}, Location: addis,
	})
	return f
}

func (f *lifecycleFixture) asCustomer() Principal {
	return Principal{ID: f.customer.ID, Role: models.RoleClient}
}

func (f *lifecycleFixture) asProvider() Principal {
	return Principal{ID: f.provider.ID, Role: models.RoleProvider}
}

func (f *lifecycleFixture) createRequest(t *testing.T) models.ServiceRequest {
	t.Helper()
	sr, err := f.svc.Create(context.Background(), f.asCustomer(), CreateRequestInput{
		ProviderID:  f.provider.ID,
		Category:    "plumbing",
		Description: "kitchen sink leaking",
		Location:    addis,
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestPending, sr.Status)
	return sr
}

func TestCreateRequestGuards(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	// Providers cannot open requests.
	_, err := f.svc.Create(ctx, f.asProvider(), CreateRequestInput{
		ProviderID: f.customer.ID, Category: "x", Description: "y", Location: addis,
	})
	require.ErrorIs(t, err, ErrUnauthorized)

	// Self-booking is rejected.
	_, err = f.svc.Create(ctx, f.asCustomer(), CreateRequestInput{
		ProviderID: f.customer.ID, Category: "x", Description: "y", Location: addis,
	})
	require.ErrorIs(t, err, ErrInvalidQuery)

	// Target must exist and be a provider.
	_, err = f.svc.Create(ctx, f.asCustomer(), CreateRequestInput{
		ProviderID: "ghost", Category: "x", Description: "y", Location: addis,
	})
	require.ErrorIs(t, err, ErrNotFound)

	other := f.users.put(models.User{Username: "client2", Email: "c2@example.com", Role: models.RoleClient})
	_, err = f.svc.Create(ctx, f.asCustomer(), CreateRequestInput{
		ProviderID: other.ID, Category: "x", Description: "y", Location: addis,
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAcceptTakesAvailability(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	sr := f.createRequest(t)

	got, err := f.svc.Accept(ctx, f.asProvider(), sr.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestAccepted, got.Status)

	p, err := f.users.GetByID(ctx, f.provider.ID)
	require.NoError(t, err)
	require.False(t, p.Available)

	// A second pending request cannot be accepted while busy.
	second := f.createRequest(t)
	_, err = f.svc.Accept(ctx, f.asProvider(), second.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAcceptOnlyByAddressee(t *testing.T) {
	f := newLifecycleFixture(t)
	sr := f.createRequest(t)

	_, err := f.svc.Accept(context.Background(), f.asCustomer(), sr.ID)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Accept(context.Background(), f.asProvider(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentAcceptSingleWinner(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	// Many pending requests toward one provider; exactly one may win.
	ids := make([]string, 8)
	for i := range ids {
		ids[i] = f.createRequest(t).ID
	}

	var wg sync.WaitGroup
	wins := make(chan string, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := f.svc.Accept(ctx, f.asProvider(), id); err == nil {
				wins <- id
			}
		}(id)
	}
	wg.Wait()
	close(wins)

	require.Len(t, wins, 1)
	won := <-wins
	got, err := f.requests.GetByID(ctx, won)
	require.NoError(t, err)
	require.Equal(t, models.RequestAccepted, got.Status)
}

func TestDeclineLeavesAvailability(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	sr := f.createRequest(t)

	got, err := f.svc.Decline(ctx, f.asProvider(), sr.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestDeclined, got.Status)

	p, _ := f.users.GetByID(ctx, f.provider.ID)
	require.True(t, p.Available)

	// Declining twice fails the swap.
	_, err = f.svc.Decline(ctx, f.asProvider(), sr.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteRecordsReviewAndFreesProvider(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	sr := f.createRequest(t)
	_, err := f.svc.Accept(ctx, f.asProvider(), sr.ID)
	require.NoError(t, err)

	rv, err := f.svc.Complete(ctx, f.asCustomer(), sr.ID, 5, "fast and clean")
	require.NoError(t, err)
	require.Equal(t, 5, rv.Rating)

	got, _ := f.requests.GetByID(ctx, sr.ID)
	require.Equal(t, models.RequestCompleted, got.Status)
	require.NotNil(t, got.ReviewID)
	require.Equal(t, rv.ID, *got.ReviewID)

	p, _ := f.users.GetByID(ctx, f.provider.ID)
	require.True(t, p.Available)
	require.Equal(t, 1, p.CompletedJobs)
	require.InDelta(t, 5.0, p.Rating, 1e-9)

	// Second completion reports the terminal state.
	_, err = f.svc.Complete(ctx, f.asCustomer(), sr.ID, 4, "")
	require.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestCompleteGuards(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	sr := f.createRequest(t)

	// Only the customer completes.
	_, err := f.svc.Complete(ctx, f.asProvider(), sr.ID, 5, "")
	require.ErrorIs(t, err, ErrUnauthorized)

	// Rating is bounded.
	_, err = f.svc.Complete(ctx, f.asCustomer(), sr.ID, 6, "")
	require.ErrorIs(t, err, ErrInvalidQuery)

	// Pending requests cannot complete.
	_, err = f.svc.Complete(ctx, f.asCustomer(), sr.ID, 5, "")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteRevertsOnReviewFailure(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	sr := f.createRequest(t)
	_, err := f.svc.Accept(ctx, f.asProvider(), sr.ID)
	require.NoError(t, err)

	f.reviews.createErr = fmt.Errorf("review store down")
	_, err = f.svc.Complete(ctx, f.asCustomer(), sr.ID, 5, "")
	require.Error(t, err)

	// The status went back to accepted; nothing reads completed while
	// the review is missing.
	got, _ := f.requests.GetByID(ctx, sr.ID)
	require.Equal(t, models.RequestAccepted, got.Status)
	require.Nil(t, got.ReviewID)

	// A retry finishes the move and frees the provider.
	f.reviews.createErr = nil
	_, err = f.svc.Complete(ctx, f.asCustomer(), sr.ID, 5, "")
	require.NoError(t, err)
	p, _ := f.users.GetByID(ctx, f.provider.ID)
	require.True(t, p.Available)
}

func TestCompleteRevertsOnCompletionFailure(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	sr := f.createRequest(t)
	_, err := f.svc.Accept(ctx, f.asProvider(), sr.ID)
	require.NoError(t, err)

	f.users.failCompletion = true
	_, err = f.svc.Complete(ctx, f.asCustomer(), sr.ID, 4, "")
	require.Error(t, err)

	got, _ := f.requests.GetByID(ctx, sr.ID)
	require.Equal(t, models.RequestAccepted, got.Status)

	f.users.failCompletion = false
	_, err = f.svc.Complete(ctx, f.asCustomer(), sr.ID, 4, "")
	require.NoError(t, err)
	p, _ := f.users.GetByID(ctx, f.provider.ID)
	require.True(t, p.Available)
	require.Equal(t, 1, p.CompletedJobs)
}

func TestRatingRunningAverage(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	for _, rating := range []int{5, 3, 4} {
		sr := f.createRequest(t)
		_, err := f.svc.Accept(ctx, f.asProvider(), sr.ID)
		require.NoError(t, err)
		_, err = f.svc.Complete(ctx, f.asCustomer(), sr.ID, rating, "")
		require.NoError(t, err)
	}

	p, _ := f.users.GetByID(ctx, f.provider.ID)
	require.Equal(t, 3, p.CompletedJobs)
	require.InDelta(t, 4.0, p.Rating, 1e-9)
}

func TestDeleteFreesAcceptedProvider(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	sr := f.createRequest(t)
	_, err := f.svc.Accept(ctx, f.asProvider(), sr.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, f.asCustomer(), sr.ID))

	got, _ := f.requests.GetByID(ctx, sr.ID)
	require.Equal(t, models.RequestDeleted, got.Status)
	p, _ := f.users.GetByID(ctx, f.provider.ID)
	require.True(t, p.Available)

	// Terminal rows stay put.
	require.ErrorIs(t, f.svc.Delete(ctx, f.asCustomer(), sr.ID), ErrInvalidTransition)
}

func TestDeleteOnlyByOwner(t *testing.T) {
	f := newLifecycleFixture(t)
	sr := f.createRequest(t)
	require.ErrorIs(t, f.svc.Delete(context.Background(), f.asProvider(), sr.ID), ErrUnauthorized)
}

func TestUnlockContactChargesOnce(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	sr := f.createRequest(t)

	contact, err := f.svc.UnlockContact(ctx, f.asCustomer(), sr.ID)
	require.NoError(t, err)
	require.Equal(t, f.provider.ID, contact.ProviderID)
	require.Equal(t, "+251911000000", contact.Phone)

	balance, _ := f.ledger.Balance(ctx, f.customer.ID)
	require.EqualValues(t, 100-ContactUnlockCost, balance)

	// Repeat unlock is free.
	_, err = f.svc.UnlockContact(ctx, f.asCustomer(), sr.ID)
	require.NoError(t, err)
	balance, _ = f.ledger.Balance(ctx, f.customer.ID)
	require.EqualValues(t, 100-ContactUnlockCost, balance)
}

func TestUnlockContactInsufficientFunds(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	sr := f.createRequest(t)

	_, err := f.ledger.Debit(ctx, f.customer.ID, 98) // leaves 2 coins
	require.NoError(t, err)

	_, err = f.svc.UnlockContact(ctx, f.asCustomer(), sr.ID)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	got, _ := f.requests.GetByID(ctx, sr.ID)
	require.False(t, got.Paid)
}

func TestUnlockContactConcurrent(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	sr := f.createRequest(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.UnlockContact(ctx, f.asCustomer(), sr.ID)
		}()
	}
	wg.Wait()

	// Losers refund their debit; exactly one charge sticks.
	balance, _ := f.ledger.Balance(ctx, f.customer.ID)
	require.EqualValues(t, 100-ContactUnlockCost, balance)
}

func TestInboxAndHistory(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	first := f.createRequest(t)
	second := f.createRequest(t)
	_, err := f.svc.Accept(ctx, f.asProvider(), first.ID)
	require.NoError(t, err)

	inbox, err := f.svc.ListForProvider(ctx, f.asProvider())
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.Equal(t, second.ID, inbox[0].ID)

	_, err = f.svc.ListForProvider(ctx, f.asCustomer())
	require.ErrorIs(t, err, ErrUnauthorized)

	history, err := f.svc.ListForCustomer(ctx, f.asCustomer())
	require.NoError(t, err)
	require.Len(t, history, 2)

	// Deleted requests drop out of the history; the rows only survive
	// so deletion serializes against concurrent transitions.
	require.NoError(t, f.svc.Delete(ctx, f.asCustomer(), second.ID))
	history, err = f.svc.ListForCustomer(ctx, f.asCustomer())
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, first.ID, history[0].ID)
}
