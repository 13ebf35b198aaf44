package services

import "errors"

// Typed results for the HTTP layer to map onto status codes. None of
// these are wrapped silently; anything else bubbling out of a service
// is an infrastructure failure.
var (
	// ErrInvalidQuery: malformed input (missing keywords/location,
	// bad rating, self-booking). Not retried.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNotFound: referenced user/request/transaction does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized: the actor lacks rights for the operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidTransition: the state machine rejects the move from the
	// current state. No mutation occurs.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrAlreadyCompleted: completion attempted on a request that is
	// already terminal.
	ErrAlreadyCompleted = errors.New("request already completed")

	// ErrInsufficientFunds: a debit exceeds the balance. No partial debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrGateway wraps payment gateway failures. On initiate it is
	// surfaced immediately; during reconciliation it is logged and the
	// transaction stays pending for the next sweep.
	ErrGateway = errors.New("payment gateway error")
)

// Principal is the authenticated identity handed in by the auth
// boundary. Services never look at credentials, only at this.
type Principal struct {
	ID   string
	Role string
}
