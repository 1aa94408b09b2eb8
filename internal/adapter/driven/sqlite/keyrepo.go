package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/afflictionmoney/portofarm/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.KeyStore = (*KeyRepo)(nil)

// KeyRepo is the SQLite implementation of the KeyStore port interface. Private
// keys are encrypted with AES-256-GCM before write and decrypted after read,
// and live in their own table, separate from the exported account records.
type KeyRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when encryption is disabled.
}

// NewKeyRepo creates a new KeyRepo. key must be 32 bytes for AES-256-GCM, or
// nil to disable key persistence (all operations return ErrEncryptionKeyNotSet).
func NewKeyRepo(db *DB, key []byte) *KeyRepo {
	return &KeyRepo{db: db, key: key}
}

// Append stores one private key at the end of the list.
func (r *KeyRepo) Append(ctx context.Context, privateKey string) error {
	encrypted, err := r.encrypt(privateKey)
	if err != nil {
		return err
	}

	const query = `INSERT INTO farm_keys (value) VALUES (?)`
	if _, err := r.db.Writer.ExecContext(ctx, query, encrypted); err != nil {
		return fmt.Errorf("append farm key: %w", err)
	}
	return nil
}

// List returns all stored private keys in insertion order, decrypted.
func (r *KeyRepo) List(ctx context.Context) ([]string, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT value FROM farm_keys ORDER BY id`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list farm keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var encrypted string
		if err := rows.Scan(&encrypted); err != nil {
			return nil, fmt.Errorf("scan farm key: %w", err)
		}
		plaintext, err := r.decrypt(encrypted)
		if err != nil {
			return nil, fmt.Errorf("decrypt farm key: %w", err)
		}
		keys = append(keys, plaintext)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate farm keys: %w", err)
	}

	return keys, nil
}

// Clear removes all stored keys.
func (r *KeyRepo) Clear(ctx context.Context) error {
	if _, err := r.db.Writer.ExecContext(ctx, `DELETE FROM farm_keys`); err != nil {
		return fmt.Errorf("clear farm keys: %w", err)
	}
	return nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded
// string containing the nonce (12 bytes) prepended to the ciphertext.
func (r *KeyRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *KeyRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
