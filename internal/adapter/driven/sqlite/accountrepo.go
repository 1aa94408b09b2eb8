package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/afflictionmoney/portofarm/internal/domain/model"
	"github.com/afflictionmoney/portofarm/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AccountStore = (*AccountRepo)(nil)

// AccountRepo is the SQLite implementation of the AccountStore port interface.
type AccountRepo struct {
	db *DB
}

// NewAccountRepo creates a new AccountRepo backed by the given DB.
func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

// Upsert inserts or replaces an account keyed by its address. Actions are
// serialized as a JSON array in the TEXT column.
func (r *AccountRepo) Upsert(ctx context.Context, account model.Account) error {
	const query = `
		INSERT INTO accounts (
			address, owner_address, owner_key_redacted, network, tx_hash,
			block_number, balance, gas_used, actions, note, total_interactions,
			created_at, last_interaction_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			owner_address = excluded.owner_address,
			owner_key_redacted = excluded.owner_key_redacted,
			network = excluded.network,
			tx_hash = excluded.tx_hash,
			block_number = excluded.block_number,
			balance = excluded.balance,
			gas_used = excluded.gas_used,
			actions = excluded.actions,
			note = excluded.note
	`

	actions := account.Actions
	if actions == nil {
		actions = []string{}
	}
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}

	var lastInteraction any
	if !account.LastInteractionAt.IsZero() {
		lastInteraction = account.LastInteractionAt.UTC().Format(time.RFC3339)
	}

	_, err = r.db.Writer.ExecContext(ctx, query,
		account.Address, account.OwnerAddress, account.OwnerKeyRedacted,
		account.Network, account.TxHash, account.BlockNumber, account.Balance,
		account.GasUsed, string(actionsJSON), account.Note,
		account.TotalInteractions,
		account.CreatedAt.UTC().Format(time.RFC3339), lastInteraction,
	)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", account.Address, err)
	}

	return nil
}

// GetByAddress retrieves a single account with its interactions loaded.
// Returns nil, nil if the account does not exist.
func (r *AccountRepo) GetByAddress(ctx context.Context, address string) (*model.Account, error) {
	const query = `
		SELECT id, address, owner_address, owner_key_redacted, network, tx_hash,
		       block_number, balance, gas_used, actions, note, total_interactions,
		       created_at, last_interaction_at
		FROM accounts
		WHERE address = ?
	`

	account, err := scanAccount(r.db.Reader.QueryRowContext(ctx, query, address))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", address, err)
	}

	if account.Interactions, err = r.interactionsFor(ctx, account.ID); err != nil {
		return nil, err
	}

	return account, nil
}

// ListAll returns all accounts ordered by creation time, interactions included.
func (r *AccountRepo) ListAll(ctx context.Context) ([]model.Account, error) {
	const query = `
		SELECT id, address, owner_address, owner_key_redacted, network, tx_hash,
		       block_number, balance, gas_used, actions, note, total_interactions,
		       created_at, last_interaction_at
		FROM accounts
		ORDER BY created_at, id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	for i := range accounts {
		if accounts[i].Interactions, err = r.interactionsFor(ctx, accounts[i].ID); err != nil {
			return nil, err
		}
	}

	return accounts, nil
}

// AddInteraction appends an interaction and bumps the owning account's
// total_interactions and last_interaction_at in one transaction, keeping the
// counter consistent with the interaction list.
func (r *AccountRepo) AddInteraction(ctx context.Context, accountID int64, in model.Interaction) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add interaction: %w", err)
	}
	defer tx.Rollback()

	const insertQuery = `
		INSERT INTO interactions (account_id, kind, tx_hash, description, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if _, err := tx.ExecContext(ctx, insertQuery,
		accountID, string(in.Kind), in.TxHash, in.Description, string(in.Outcome),
		createdAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("insert interaction for account %d: %w", accountID, err)
	}

	const bumpQuery = `
		UPDATE accounts
		SET total_interactions = total_interactions + 1, last_interaction_at = ?
		WHERE id = ?
	`
	if _, err := tx.ExecContext(ctx, bumpQuery, createdAt.UTC().Format(time.RFC3339), accountID); err != nil {
		return fmt.Errorf("bump interaction count for account %d: %w", accountID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add interaction: %w", err)
	}
	return nil
}

// Count returns the number of stored accounts.
func (r *AccountRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

// Clear removes all accounts; interactions go with them via ON DELETE CASCADE.
func (r *AccountRepo) Clear(ctx context.Context) error {
	if _, err := r.db.Writer.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}
	return nil
}

// interactionsFor loads all interactions for one account, oldest first.
func (r *AccountRepo) interactionsFor(ctx context.Context, accountID int64) ([]model.Interaction, error) {
	const query = `
		SELECT id, account_id, kind, tx_hash, description, outcome, created_at
		FROM interactions
		WHERE account_id = ?
		ORDER BY id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list interactions for account %d: %w", accountID, err)
	}
	defer rows.Close()

	var interactions []model.Interaction
	for rows.Next() {
		var in model.Interaction
		var kind, outcome, createdAt string
		if err := rows.Scan(&in.ID, &in.AccountID, &kind, &in.TxHash, &in.Description, &outcome, &createdAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		in.Kind = model.ActionKind(kind)
		in.Outcome = model.Outcome(outcome)
		if in.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse interaction created_at: %w", err)
		}
		interactions = append(interactions, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}

	return interactions, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanAccount scans one account row without its interactions.
func scanAccount(s scanner) (*model.Account, error) {
	var account model.Account
	var actionsJSON, createdAt string
	var lastInteraction sql.NullString

	err := s.Scan(
		&account.ID, &account.Address, &account.OwnerAddress,
		&account.OwnerKeyRedacted, &account.Network, &account.TxHash,
		&account.BlockNumber, &account.Balance, &account.GasUsed,
		&actionsJSON, &account.Note, &account.TotalInteractions,
		&createdAt, &lastInteraction,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(actionsJSON), &account.Actions); err != nil {
		return nil, fmt.Errorf("unmarshal actions: %w", err)
	}

	if account.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if lastInteraction.Valid {
		if account.LastInteractionAt, err = parseTime(lastInteraction.String); err != nil {
			return nil, fmt.Errorf("parse last_interaction_at: %w", err)
		}
	}

	return &account, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
