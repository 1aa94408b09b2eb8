package driven

import (
	"context"
	"errors"
	"math/big"

	"github.com/afflictionmoney/portofarm/internal/domain/model"
)

// ErrInsufficientFunds is returned by the batch runner's create step when the
// owner balance cannot cover even the basic transfer.
var ErrInsufficientFunds = errors.New("insufficient funds for gas")

// TxRequest describes one transaction to sign and broadcast.
type TxRequest struct {
	To       string
	ValueWei *big.Int // nil means zero value.
	Data     []byte
	GasLimit uint64
}

// TxReceipt is the confirmation result of a mined transaction.
type TxReceipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	Status      uint64 // 1 = success.
}

// ChainClient defines the driven port for all blockchain interaction. The
// batch runner treats every method as a black-box async operation that either
// returns an identifier or fails.
type ChainClient interface {
	// ChainID returns the connected network's chain id.
	ChainID(ctx context.Context) (*big.Int, error)

	// BlockNumber returns the latest block number.
	BlockNumber(ctx context.Context) (uint64, error)

	// Balance returns the current balance of the given address in wei.
	Balance(ctx context.Context, address string) (*big.Int, error)

	// GasPrice returns the suggested gas price in wei.
	GasPrice(ctx context.Context) (*big.Int, error)

	// SendTransaction signs req with the given private key and broadcasts it,
	// returning the transaction hash.
	SendTransaction(ctx context.Context, privateKey string, req TxRequest) (string, error)

	// WaitMined blocks until the transaction is mined or ctx is done.
	WaitMined(ctx context.Context, txHash string) (*TxReceipt, error)

	// OwnerAddress derives the EOA address for a private key. Pure; no RPC.
	OwnerAddress(privateKey string) (string, error)

	// AccountAddress derives the deterministic smart-account address for an
	// owner from its deployment anchor. Pure; no RPC. This is a placeholder
	// identifier scheme, not a custody mechanism.
	AccountAddress(owner string, blockNumber uint64, txHash string) (string, error)

	// ActionData builds the opaque calldata payload for a demo action.
	ActionData(account string, kind model.ActionKind) ([]byte, error)
}
