package chain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/afflictionmoney/portofarm/internal/domain/model"
)

// ABI argument layout shared by the account derivation and every action
// payload: (address, uint256, string tag, bytes32 salt).
var (
	addressType = mustABIType("address")
	uint256Type = mustABIType("uint256")
	stringType  = mustABIType("string")
	bytes32Type = mustABIType("bytes32")

	deriveArgs = abi.Arguments{
		{Type: addressType}, {Type: uint256Type}, {Type: bytes32Type},
	}
	actionArgs = abi.Arguments{
		{Type: addressType}, {Type: uint256Type}, {Type: stringType}, {Type: bytes32Type},
	}
)

func mustABIType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %s: %v", name, err))
	}
	return t
}

// actionPayload maps each demo action to the tag embedded in its calldata and
// the label hashed into its salt.
type actionPayload struct {
	tag  string
	salt string
}

var actionPayloads = map[model.ActionKind]actionPayload{
	model.ActionKeyAuthorization: {tag: "EXP-0001_SMART_ACCOUNT_CREATION", salt: "test_key"},
	model.ActionSessionKey:       {tag: "EXP-0002_KEY_AUTHORIZATION", salt: "session_key"},
	model.ActionIntentFlow:       {tag: "EXP-0003_ORCHESTRATOR_INTEGRATION", salt: "intent_flow"},
	model.ActionBatchExecution:   {tag: "BATCH_EXECUTION", salt: "batch_execution"},

	model.ActionProtocolInteraction: {tag: "PROTOCOL_INTERACTION", salt: "random_interaction"},
	model.ActionLiquidityProvision:  {tag: "LIQUIDITY_PROVISION", salt: "random_interaction"},
	model.ActionSwapOperation:       {tag: "SWAP_OPERATION", salt: "random_interaction"},
	model.ActionYieldFarming:        {tag: "YIELD_FARMING", salt: "random_interaction"},
}

// parseKey decodes a hex private key, with or without the 0x prefix.
func parseKey(privateKey string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(privateKey), "0x")
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// OwnerAddress derives the checksummed EOA address controlled by privateKey.
func OwnerAddress(privateKey string) (string, error) {
	key, err := parseKey(privateKey)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

// AccountAddress derives the deterministic smart-account address from the
// owner, the block the creation transaction landed in, and its hash. The
// address is the first 20 bytes of keccak256(abi.encode(owner, blockNumber,
// txHash)), so replaying the same creation always yields the same account.
func AccountAddress(owner string, blockNumber uint64, txHash string) (string, error) {
	if !common.IsHexAddress(owner) {
		return "", fmt.Errorf("invalid owner address %q", owner)
	}

	packed, err := deriveArgs.Pack(
		common.HexToAddress(owner),
		new(big.Int).SetUint64(blockNumber),
		common.HexToHash(txHash),
	)
	if err != nil {
		return "", fmt.Errorf("pack derivation input: %w", err)
	}

	hash := crypto.Keccak256(packed)
	return common.BytesToAddress(hash[:20]).Hex(), nil
}

// ActionData builds the calldata payload for a demo action on the given
// account: abi.encode(account, timestamp, tag, keccak256(saltLabel)).
func ActionData(account string, kind model.ActionKind) ([]byte, error) {
	payload, ok := actionPayloads[kind]
	if !ok {
		return nil, fmt.Errorf("unknown action kind %q", kind)
	}

	var salt [32]byte
	copy(salt[:], crypto.Keccak256([]byte(payload.salt)))

	data, err := actionArgs.Pack(
		common.HexToAddress(account),
		big.NewInt(time.Now().Unix()),
		payload.tag,
		salt,
	)
	if err != nil {
		return nil, fmt.Errorf("pack %s payload: %w", kind, err)
	}
	return data, nil
}
