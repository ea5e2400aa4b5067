package domain

import "errors"

var (
	// Input errors
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidAmount = errors.New("amount must be positive")

	// Ledger errors
	ErrInsufficientBankedCredit = errors.New("insufficient banked credit")
	ErrNoSurplus                = errors.New("no compliance surplus to bank")
	ErrLedgerInvariantViolation = errors.New("ledger invariant violation")
	ErrConcurrentModification   = errors.New("record was modified concurrently")

	// Pool errors
	ErrEmptyPool           = errors.New("pool has no members")
	ErrDuplicateMember     = errors.New("ship appears more than once in pool")
	ErrPoolInDeficit       = errors.New("pool adjusted compliance balance is negative")
	ErrMemberAlreadyPooled = errors.New("ship is already a member of a pool for this year")
	ErrStaleProposal       = errors.New("pool proposal does not match current balances")
	ErrSettlementFailed    = errors.New("pool settlement failed")
	ErrPoolNotFound        = errors.New("pool not found")

	// Route errors
	ErrRouteNotFound = errors.New("route not found")
)
