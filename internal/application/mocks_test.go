package application

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/afflictionmoney/portofarm/internal/domain/model"
	"github.com/afflictionmoney/portofarm/internal/domain/port/driven"
)

// memAccountStore is an in-memory AccountStore for service tests.
type memAccountStore struct {
	mu        sync.Mutex
	nextID    int64
	order     []string
	accounts  map[string]*model.Account
	upsertErr error
}

func newMemAccountStore() *memAccountStore {
	return &memAccountStore{accounts: make(map[string]*model.Account)}
}

func (m *memAccountStore) Upsert(_ context.Context, account model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}

	if existing, ok := m.accounts[account.Address]; ok {
		account.ID = existing.ID
		account.TotalInteractions = existing.TotalInteractions
		account.Interactions = existing.Interactions
		account.CreatedAt = existing.CreatedAt
		account.LastInteractionAt = existing.LastInteractionAt
		m.accounts[account.Address] = &account
		return nil
	}

	m.nextID++
	account.ID = m.nextID
	m.accounts[account.Address] = &account
	m.order = append(m.order, account.Address)
	return nil
}

func (m *memAccountStore) GetByAddress(_ context.Context, address string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[address]
	if !ok {
		return nil, nil
	}
	cp := *account
	return &cp, nil
}

func (m *memAccountStore) ListAll(_ context.Context) ([]model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Account, 0, len(m.order))
	for _, addr := range m.order {
		out = append(out, *m.accounts[addr])
	}
	return out, nil
}

func (m *memAccountStore) AddInteraction(_ context.Context, accountID int64, in model.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.accounts {
		if account.ID == accountID {
			in.AccountID = accountID
			account.Interactions = append(account.Interactions, in)
			account.TotalInteractions++
			account.LastInteractionAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("no account with id %d", accountID)
}

func (m *memAccountStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts), nil
}

func (m *memAccountStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = make(map[string]*model.Account)
	m.order = nil
	return nil
}

// memKeyStore is an in-memory KeyStore for service tests.
type memKeyStore struct {
	mu       sync.Mutex
	keys     []string
	disabled bool // simulate a missing encryption key
}

func (m *memKeyStore) Append(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return driven.ErrEncryptionKeyNotSet
	}
	m.keys = append(m.keys, key)
	return nil
}

func (m *memKeyStore) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return nil, driven.ErrEncryptionKeyNotSet
	}
	return append([]string(nil), m.keys...), nil
}

func (m *memKeyStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = nil
	return nil
}

// mockChain is a scripted ChainClient. Owner and account addresses are derived
// deterministically from their inputs so assertions can predict them.
type mockChain struct {
	mu         sync.Mutex
	balance    *big.Int
	gasPrice   *big.Int
	failCreate map[string]int // per-key count of creation transfers left to fail
	failAction bool
	txCounter  int
	sent       []driven.TxRequest
}

func newMockChain() *mockChain {
	return &mockChain{
		balance:    big.NewInt(1_000_000_000_000_000_000), // 1 ETH
		gasPrice:   big.NewInt(1_000_000_000),             // 1 gwei
		failCreate: make(map[string]int),
	}
}

func mockOwner(key string) string {
	return "0xowner" + strings.TrimPrefix(key, "0x")
}

func (c *mockChain) ChainID(context.Context) (*big.Int, error)   { return big.NewInt(84532), nil }
func (c *mockChain) BlockNumber(context.Context) (uint64, error) { return 1000, nil }

func (c *mockChain) Balance(context.Context, string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balance), nil
}

func (c *mockChain) GasPrice(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.gasPrice), nil
}

func (c *mockChain) SendTransaction(_ context.Context, key string, req driven.TxRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if req.Data == nil && c.failCreate[key] > 0 {
		c.failCreate[key]--
		return "", errors.New("rpc: replacement transaction underpriced")
	}
	if req.Data != nil && c.failAction {
		return "", errors.New("rpc: execution reverted")
	}
	c.txCounter++
	c.sent = append(c.sent, req)
	return fmt.Sprintf("0xtx%04d", c.txCounter), nil
}

func (c *mockChain) WaitMined(_ context.Context, txHash string) (*driven.TxReceipt, error) {
	return &driven.TxReceipt{TxHash: txHash, BlockNumber: 4242, GasUsed: 21000, Status: 1}, nil
}

func (c *mockChain) OwnerAddress(key string) (string, error) {
	if strings.Contains(key, "bad") {
		return "", errors.New("invalid hex character")
	}
	return mockOwner(key), nil
}

func (c *mockChain) AccountAddress(owner string, _ uint64, _ string) (string, error) {
	return "0xacct" + strings.TrimPrefix(owner, "0xowner"), nil
}

func (c *mockChain) ActionData(string, model.ActionKind) ([]byte, error) {
	return []byte{0x01}, nil
}

func (c *mockChain) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// mockNotifier records every message it is asked to send.
type mockNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *mockNotifier) Notify(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return nil
}

func (n *mockNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

// newTestFarmService wires a FarmService over the in-memory fakes with an
// instant inter-item pause.
func newTestFarmService(accounts *memAccountStore, keys *memKeyStore, chain *mockChain, notifier driven.Notifier) *FarmService {
	svc := NewFarmService(
		accounts, keys, chain, notifier, NewLogBuffer(100),
		"base-sepolia",
		ActionGas{KeyAuthorization: 100000, SessionKey: 120000, IntentFlow: 80000, BatchExecution: 60000, RandomAction: 80000},
		DelaySettings{Mode: model.DelayModeManual, MinSec: 1, MaxSec: 1},
		false, 3,
	)
	svc.pause = func(ctx context.Context, stop <-chan struct{}, _ time.Duration) bool {
		select {
		case <-ctx.Done():
			return false
		case <-stop:
			return false
		default:
			return true
		}
	}
	return svc
}
