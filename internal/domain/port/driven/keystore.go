package driven

import (
	"context"
	"errors"
)

// ErrEncryptionKeyNotSet is returned by KeyStore operations when
// PORTOFARM_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set PORTOFARM_SECRET_KEY")

// KeyStore defines the driven port for the raw owner-secret list. It is kept
// deliberately separate from AccountStore: the full private keys are persisted
// only here, encrypted at rest, and are never part of an exported record.
type KeyStore interface {
	// Append stores one private key at the end of the list.
	// Returns ErrEncryptionKeyNotSet if the adapter has no encryption key.
	Append(ctx context.Context, privateKey string) error

	// List returns all stored private keys in insertion order, decrypted.
	// Returns ErrEncryptionKeyNotSet if the adapter has no encryption key.
	List(ctx context.Context) ([]string, error)

	// Clear removes all stored keys.
	Clear(ctx context.Context) error
}
