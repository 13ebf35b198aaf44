package models

import (
	"errors"
	"strings"
	"time"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestDeclined  RequestStatus = "declined"
	RequestCompleted RequestStatus = "completed"
	RequestDeleted   RequestStatus = "deleted"
)

// Terminal reports whether no further transition may leave the status.
func (s RequestStatus) Terminal() bool {
	return s == RequestDeclined || s == RequestCompleted || s == RequestDeleted
}

// ServiceRequest is a customer's bound engagement with one provider,
// distinct from an open marketplace posting.
type ServiceRequest struct {
	ID           string        `json:"id"`
	CustomerID   string        `json:"customer_id"`
	ProviderID   string        `json:"provider_id"`
	Category     string        `json:"category"`
	Description  string        `json:"description"`
	Location     Point         `json:"location"`
	Budget       *int64        `json:"budget,omitempty"`
	IsFixedPrice bool          `json:"is_fixed_price"`
	Status       RequestStatus `json:"status"`
	ReviewID     *string       `json:"review_id,omitempty"`
	Paid         bool          `json:"paid"`
	Media        []string      `json:"media,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (r *ServiceRequest) Validate() error {
	if strings.TrimSpace(r.Category) == "" {
		return errors.New("category required")
	}
	if strings.TrimSpace(r.Description) == "" {
		return errors.New("description required")
	}
	if r.ProviderID == "" {
		return errors.New("provider id required")
	}
	if r.Budget != nil && *r.Budget < 0 {
		return errors.New("budget must not be negative")
	}
	return r.Location.Validate()
}
