package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/fixhub/fixhub-backend/internal/models"
	repo "github.com/fixhub/fixhub-backend/internal/repository"
)

// In-memory repositories backing the service tests. They hold the same
// compare-and-swap contracts as the postgres implementations, guarded
// by one mutex per store, so concurrency tests exercise real races.

type memUsers struct {
	mu    sync.Mutex
	users map[string]models.User

	failAdjust     bool // force AdjustCoins to error
	failCompletion bool // force ApplyCompletion to error
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]models.User)}
}

func (m *memUsers) put(u models.User) models.User {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
	return u
}

func (m *memUsers) Create(_ context.Context, u models.User) (models.User, error) {
	return m.put(u), nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repo.ErrNotFound
}

func (m *memUsers) FindProviders(_ context.Context, q repo.ProviderQuery) ([]repo.ProviderMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repo.ProviderMatch
	for _, u := range m.users {
		if u.Role != models.RoleProvider || !u.Verified || !u.Available || u.Banned {
			continue
		}
		if !skillsIntersect(u.Skills, q.Keywords) {
			continue
		}
		d := models.DistanceMeters(q.Origin, u.Location)
		if d > q.MaxDistanceMeters {
			continue
		}
		out = append(out, repo.ProviderMatch{User: u, DistanceMeters: d})
	}
	return out, nil
}

func skillsIntersect(skills, keywords []string) bool {
	for _, s := range skills {
		for _, k := range keywords {
			if s == k {
				return true
			}
		}
	}
	return false
}

func (m *memUsers) SetAvailable(_ context.Context, id string, from, to bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.Available != from {
		return false, nil
	}
	u.Available = to
	m.users[id] = u
	return true, nil
}

func (m *memUsers) AdjustCoins(_ context.Context, id string, delta int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAdjust {
		return 0, false, fmt.Errorf("adjust coins: forced failure")
	}
	u, ok := m.users[id]
	if !ok || u.Coins+delta < 0 {
		return 0, false, nil
	}
	u.Coins += delta
	m.users[id] = u
	return u.Coins, true, nil
}

func (m *memUsers) ApplyCompletion(_ context.Context, providerID string, rating int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCompletion {
		return fmt.Errorf("apply completion: forced failure")
	}
	u, ok := m.users[providerID]
	if !ok {
		return repo.ErrNotFound
	}
	u.Rating = (u.Rating*float64(u.CompletedJobs) + float64(rating)) / float64(u.CompletedJobs+1)
	u.CompletedJobs++
	u.Available = true
	m.users[providerID] = u
	return nil
}

type memRequests struct {
	mu   sync.Mutex
	reqs map[string]models.ServiceRequest
}

func newMemRequests() *memRequests {
	return &memRequests{reqs: make(map[string]models.ServiceRequest)}
}

func (m *memRequests) Create(_ context.Context, r models.ServiceRequest) (models.ServiceRequest, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.reqs[r.ID] = r
	m.mu.Unlock()
	return r, nil
}

func (m *memRequests) GetByID(_ context.Context, id string) (models.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok {
		return models.ServiceRequest{}, repo.ErrNotFound
	}
	return r, nil
}

func (m *memRequests) ListByProvider(_ context.Context, providerID string, status models.RequestStatus) ([]models.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ServiceRequest
	for _, r := range m.reqs {
		if r.ProviderID == providerID && r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRequests) ListByCustomer(_ context.Context, customerID string) ([]models.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ServiceRequest
	for _, r := range m.reqs {
		if r.CustomerID == customerID && r.Status != models.RequestDeleted {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRequests) TransitionStatus(_ context.Context, id string, from, to models.RequestStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	m.reqs[id] = r
	return true, nil
}

func (m *memRequests) SetReview(_ context.Context, id, reviewID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok {
		return repo.ErrNotFound
	}
	r.ReviewID = &reviewID
	m.reqs[id] = r
	return nil
}

func (m *memRequests) MarkPaid(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok || r.Paid {
		return false, nil
	}
	r.Paid = true
	m.reqs[id] = r
	return true, nil
}

type memReviews struct {
	mu      sync.Mutex
	reviews map[string]models.Review

	createErr error // forced failure for Create
}

func newMemReviews() *memReviews {
	return &memReviews{reviews: make(map[string]models.Review)}
}

func (m *memReviews) Create(_ context.Context, rv models.Review) (models.Review, error) {
	m.mu.Lock()
	failed := m.createErr
	m.mu.Unlock()
	if failed != nil {
		return models.Review{}, failed
	}
	if rv.ID == "" {
		rv.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.reviews[rv.ID] = rv
	m.mu.Unlock()
	return rv, nil
}

func (m *memReviews) ListByProvider(_ context.Context, providerID string) ([]models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Review
	for _, rv := range m.reviews {
		if rv.ProviderID == providerID {
			out = append(out, rv)
		}
	}
	return out, nil
}

type memTransactions struct {
	mu   sync.Mutex
	txns map[string]models.Transaction // keyed by tx_ref
}

func newMemTransactions() *memTransactions {
	return &memTransactions{txns: make(map[string]models.Transaction)}
}

func (m *memTransactions) Create(_ context.Context, tx models.Transaction) (models.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.txns[tx.TxRef]; dup {
		return models.Transaction{}, fmt.Errorf("duplicate tx_ref %s", tx.TxRef)
	}
	m.txns[tx.TxRef] = tx
	return tx, nil
}

func (m *memTransactions) GetByRef(_ context.Context, txRef string) (models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txns[txRef]
	if !ok {
		return models.Transaction{}, repo.ErrNotFound
	}
	return tx, nil
}

func (m *memTransactions) ListPending(_ context.Context) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Transaction
	for _, tx := range m.txns {
		if tx.Status == models.TxnPending {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memTransactions) ListByPayer(_ context.Context, payerID string, limit, offset int) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Transaction
	for _, tx := range m.txns {
		if tx.PayerID == payerID {
			out = append(out, tx)
		}
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memTransactions) UpdateStatusIf(_ context.Context, txRef string, from, to models.TransactionStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txns[txRef]
	if !ok || tx.Status != from {
		return false, nil
	}
	tx.Status = to
	m.txns[txRef] = tx
	return true, nil
}

type memAuditLogs struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (m *memAuditLogs) Create(_ context.Context, l models.AuditLog) error {
	m.mu.Lock()
	m.logs = append(m.logs, l)
	m.mu.Unlock()
	return nil
}
