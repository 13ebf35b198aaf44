package services

import (
	"context"
	"errors"
	"fmt"

	repo "github.com/fixhub/fixhub-backend/internal/repository"
)

// LedgerService owns the coin balance on the user record. Every
// mutation is one conditional update in the store, so concurrent
// debits serialize there and the balance can never be observed
// negative.
type LedgerService struct {
	users repo.Users
}

func NewLedgerService(users repo.Users) *LedgerService {
	return &LedgerService{users: users}
}

func (s *LedgerService) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: amount must be > 0", ErrInvalidQuery)
	}
	balance, applied, err := s.users.AdjustCoins(ctx, userID, amount)
	if err != nil {
		return 0, err
	}
	if !applied {
		return 0, ErrNotFound
	}
	return balance, nil
}

func (s *LedgerService) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: amount must be > 0", ErrInvalidQuery)
	}
	balance, applied, err := s.users.AdjustCoins(ctx, userID, -amount)
	if err != nil {
		return 0, err
	}
	if !applied {
		// Either the user is gone or the balance cannot cover it.
		if _, err := s.users.GetByID(ctx, userID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return 0, ErrNotFound
			}
			return 0, err
		}
		return 0, ErrInsufficientFunds
	}
	return balance, nil
}

func (s *LedgerService) Balance(ctx context.Context, userID string) (int64, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return u.Coins, nil
}
