package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afflictionmoney/portofarm/internal/domain/model"
)

func testAccount(address string) model.Account {
	return model.Account{
		Address:          address,
		OwnerAddress:     "0x1111111111111111111111111111111111111111",
		OwnerKeyRedacted: "0xabcdef01...",
		Network:          "base-sepolia",
		TxHash:           "0xdeadbeef",
		BlockNumber:      12345,
		Balance:          "0.5",
		GasUsed:          21000,
		Actions:          []string{"basic_transfer"},
		Note:             "test",
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
	}
}

func TestAccountRepo_UpsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	want := testAccount("0xaaaa000000000000000000000000000000000001")
	require.NoError(t, repo.Upsert(ctx, want))

	got, err := repo.GetByAddress(ctx, want.Address)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, want.Address, got.Address)
	assert.Equal(t, want.OwnerAddress, got.OwnerAddress)
	assert.Equal(t, want.OwnerKeyRedacted, got.OwnerKeyRedacted)
	assert.Equal(t, want.BlockNumber, got.BlockNumber)
	assert.Equal(t, []string{"basic_transfer"}, got.Actions)
	assert.Equal(t, 0, got.TotalInteractions)
	assert.Empty(t, got.Interactions)
}

func TestAccountRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)

	got, err := repo.GetByAddress(context.Background(), "0xnope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAccountRepo_UpsertOverwrites(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	account := testAccount("0xaaaa000000000000000000000000000000000002")
	require.NoError(t, repo.Upsert(ctx, account))

	account.Balance = "0.25"
	account.Actions = []string{"basic_transfer", "EXP-0001"}
	require.NoError(t, repo.Upsert(ctx, account))

	got, err := repo.GetByAddress(ctx, account.Address)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "0.25", got.Balance)
	assert.Equal(t, []string{"basic_transfer", "EXP-0001"}, got.Actions)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAccountRepo_AddInteractionKeepsCounterConsistent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	account := testAccount("0xaaaa000000000000000000000000000000000003")
	require.NoError(t, repo.Upsert(ctx, account))
	stored, err := repo.GetByAddress(ctx, account.Address)
	require.NoError(t, err)
	require.NotNil(t, stored)

	for i := 0; i < 3; i++ {
		err := repo.AddInteraction(ctx, stored.ID, model.Interaction{
			Kind:        model.ActionKeyAuthorization,
			TxHash:      "0xhash",
			Description: "Porto Smart Account Creation & Key Auth",
			Outcome:     model.OutcomeOK,
			CreatedAt:   time.Now(),
		})
		require.NoError(t, err)
	}

	got, err := repo.GetByAddress(ctx, account.Address)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.TotalInteractions)
	assert.Len(t, got.Interactions, 3)
	assert.Equal(t, got.TotalInteractions, len(got.Interactions))
	assert.False(t, got.LastInteractionAt.IsZero())
}

func TestAccountRepo_ListAllOrdered(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	first := testAccount("0xaaaa000000000000000000000000000000000004")
	first.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	second := testAccount("0xaaaa000000000000000000000000000000000005")
	second.CreatedAt = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Upsert(ctx, second))
	require.NoError(t, repo.Upsert(ctx, first))

	accounts, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, first.Address, accounts[0].Address)
	assert.Equal(t, second.Address, accounts[1].Address)
}

func TestAccountRepo_ClearCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	account := testAccount("0xaaaa000000000000000000000000000000000006")
	require.NoError(t, repo.Upsert(ctx, account))
	stored, err := repo.GetByAddress(ctx, account.Address)
	require.NoError(t, err)
	require.NoError(t, repo.AddInteraction(ctx, stored.ID, model.Interaction{
		Kind: model.ActionBatchExecution, Outcome: model.OutcomeFailed,
	}))

	require.NoError(t, repo.Clear(ctx))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var interactions int
	require.NoError(t, db.Reader.QueryRow(`SELECT COUNT(*) FROM interactions`).Scan(&interactions))
	assert.Equal(t, 0, interactions)
}
