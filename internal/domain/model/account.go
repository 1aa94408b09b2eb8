package model

import "time"

// RedactedKeyLen is the number of leading characters of a private key that may
// appear in displayed or exported records. The full secret lives only in the
// encrypted key store.
const RedactedKeyLen = 10

// RedactKey returns the displayable form of a private key: the first
// RedactedKeyLen characters followed by an ellipsis. Keys shorter than the
// prefix are returned unchanged.
func RedactKey(key string) string {
	if len(key) <= RedactedKeyLen {
		return key
	}
	return key[:RedactedKeyLen] + "..."
}

// Account represents one farmed smart account: the address derived for an EOA
// owner, the deployment transaction that anchored it, and the demo actions
// performed against it.
type Account struct {
	ID               int64
	Address          string // Derived smart-account address.
	OwnerAddress     string // EOA address controlling the account.
	OwnerKeyRedacted string // Redacted owner private key; never the full secret.
	Network          string
	TxHash           string // Deployment (self-transfer) transaction hash.
	BlockNumber      uint64
	Balance          string // Owner balance in ETH at creation time.
	GasUsed          uint64
	Actions          []string // Action tags performed, in order.
	Note             string

	TotalInteractions int
	Interactions      []Interaction

	CreatedAt         time.Time
	LastInteractionAt time.Time
}

// Interaction is one attempted demonstration action against an account.
type Interaction struct {
	ID          int64
	AccountID   int64
	Kind        ActionKind
	TxHash      string // Reference id returned by the chain; empty when the broadcast itself failed.
	Description string
	Outcome     Outcome
	CreatedAt   time.Time
}
