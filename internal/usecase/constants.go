package usecase

import (
	"strconv"
	"time"
)

const (
	// DefaultTransactionTimeout is the maximum duration for a ledger transaction
	// This prevents a stuck lock holder from blocking other operations on the same records
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// AdjustedCBCacheTTL is how long a year's adjusted balance listing is cached
	AdjustedCBCacheTTL = 5 * time.Minute
)

// adjustedCBGenerationKey holds a counter bumped on every committed mutation
// of year. Listings are cached under the generation they were read at.
func adjustedCBGenerationKey(year int) string {
	return "adjusted-cb-gen:" + strconv.Itoa(year)
}

func adjustedCBCacheKey(year int, generation int64) string {
	return "adjusted-cb:" + strconv.Itoa(year) + ":" + strconv.FormatInt(generation, 10)
}
