// Package chain implements the ChainClient driven port over Ethereum JSON-RPC.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/afflictionmoney/portofarm/internal/domain/model"
	"github.com/afflictionmoney/portofarm/internal/domain/port/driven"
)

// receiptPollInterval is how often WaitMined re-checks for a receipt.
const receiptPollInterval = time.Second

// Compile-time interface satisfaction check.
var _ driven.ChainClient = (*Client)(nil)

// Client is the ethclient-backed implementation of the ChainClient port.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
}

// Dial connects to the given JSON-RPC endpoint and caches the chain id for
// transaction signing.
func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	return &Client{eth: eth, chainID: chainID}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// ChainID returns the connected network's chain id.
func (c *Client) ChainID(_ context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.chainID), nil
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	return n, nil
}

// Balance returns the current balance of the given address in wei.
func (c *Client) Balance(ctx context.Context, address string) (*big.Int, error) {
	balance, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", address, err)
	}
	return balance, nil
}

// GasPrice returns the suggested gas price in wei.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	return price, nil
}

// SendTransaction signs req with the given private key and broadcasts it.
func (c *Client) SendTransaction(ctx context.Context, privateKey string, req driven.TxRequest) (string, error) {
	key, err := parseKey(privateKey)
	if err != nil {
		return "", err
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("nonce for %s: %w", from.Hex(), err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("gas price: %w", err)
	}

	value := req.ValueWei
	if value == nil {
		value = new(big.Int)
	}

	tx := types.NewTransaction(nonce, common.HexToAddress(req.To), value, req.GasLimit, gasPrice, req.Data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), key)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	return signed.Hash().Hex(), nil
}

// WaitMined polls for the transaction receipt until it appears or ctx is done.
func (c *Client) WaitMined(ctx context.Context, txHash string) (*driven.TxReceipt, error) {
	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return &driven.TxReceipt{
				TxHash:      txHash,
				BlockNumber: receipt.BlockNumber.Uint64(),
				GasUsed:     receipt.GasUsed,
				Status:      receipt.Status,
			}, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt for %s: %w", txHash, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// OwnerAddress derives the EOA address for a private key.
func (c *Client) OwnerAddress(privateKey string) (string, error) {
	return OwnerAddress(privateKey)
}

// AccountAddress derives the deterministic smart-account address.
func (c *Client) AccountAddress(owner string, blockNumber uint64, txHash string) (string, error) {
	return AccountAddress(owner, blockNumber, txHash)
}

// ActionData builds the opaque calldata payload for a demo action.
func (c *Client) ActionData(account string, kind model.ActionKind) ([]byte, error) {
	return ActionData(account, kind)
}
