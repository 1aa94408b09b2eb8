package driven

import (
	"context"

	"github.com/afflictionmoney/portofarm/internal/domain/model"
)

// AccountStore defines the driven port for farmed-account persistence.
// Exported and displayed records never contain full secrets; those live in the
// KeyStore.
type AccountStore interface {
	// Upsert inserts or replaces an account keyed by its address.
	Upsert(ctx context.Context, account model.Account) error

	// GetByAddress retrieves a single account with its interactions loaded.
	// Returns nil, nil if no account exists at that address.
	GetByAddress(ctx context.Context, address string) (*model.Account, error)

	// ListAll returns all accounts, interactions included, ordered by creation time.
	ListAll(ctx context.Context) ([]model.Account, error)

	// AddInteraction appends an interaction to an account and bumps its
	// total_interactions counter and last-interaction timestamp atomically.
	AddInteraction(ctx context.Context, accountID int64, in model.Interaction) error

	// Count returns the number of stored accounts.
	Count(ctx context.Context) (int, error)

	// Clear removes all accounts and their interactions.
	Clear(ctx context.Context) error
}
