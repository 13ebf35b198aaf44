package models

import (
	"errors"
	"time"
)

// Review is created exactly once when a request completes and is
// immutably linked back through ServiceRequest.ReviewID.
type Review struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	RaterID    string    `json:"rater_id"`
	ProviderID string    `json:"provider_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r *Review) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return errors.New("rating must be between 1 and 5")
	}
	if len(r.Comment) > 1000 {
		return errors.New("comment too long")
	}
	return nil
}
