package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/afflictionmoney/portofarm/internal/domain/model"
	"github.com/afflictionmoney/portofarm/internal/domain/port/driven"
)

var (
	// ErrRunActive is returned when a start operation races an active run.
	ErrRunActive = errors.New("a farm run is already active")
	// ErrQueueEmpty is returned when starting a run with no keys loaded.
	ErrQueueEmpty = errors.New("key queue is empty")
	// ErrQueueExhausted is returned when every loaded key has been processed.
	ErrQueueExhausted = errors.New("all keys in the queue have been processed")
	// ErrNoAccounts is returned by RandomInteraction when nothing is stored.
	ErrNoAccounts = errors.New("no accounts stored")
)

// transferValueWei is the self-transfer amount anchoring account creation:
// 0.0001 ETH.
var transferValueWei = big.NewInt(100_000_000_000_000)

const (
	transferGasLimit = 21000

	gasLimitKeyAuth = 150000
	gasLimitSession = 180000
	gasLimitIntent  = 120000
	gasLimitBatch   = 90000
	gasLimitRandom  = 120000

	defaultNote = "Generated by Porto Farmer"
)

// ActionGas holds the per-action gas estimates used for the
// balance-vs-estimated-cost gate before each demo action.
type ActionGas struct {
	KeyAuthorization uint64
	SessionKey       uint64
	IntentFlow       uint64
	BatchExecution   uint64
	RandomAction     uint64
}

// actionStep is one entry of the fixed demo sequence run against a fresh account.
type actionStep struct {
	kind        model.ActionKind
	description string
	estimate    uint64
	gasLimit    uint64
}

// FarmService owns the batch run over the loaded key queue: one key at a time,
// strictly in order, never aborting the batch on a single item's failure. All
// run state lives behind the service's mutex; HTTP handlers only ever see
// snapshots.
type FarmService struct {
	accounts driven.AccountStore
	keys     driven.KeyStore
	chain    driven.ChainClient
	notifier driven.Notifier // nil when notifications are not configured
	runLog   *LogBuffer

	network    string
	gas        ActionGas
	autoRetry  bool
	maxRetries int

	// pause waits for d, returning false when interrupted by stop or ctx.
	// Swapped out in tests.
	pause func(ctx context.Context, stop <-chan struct{}, d time.Duration) bool

	mu           sync.Mutex
	rng          *rand.Rand
	delay        DelaySettings
	state        model.RunState
	queue        []string
	position     int
	success      int
	failure      int
	currentOwner string
	cycleCount   int
	stopCh       chan struct{}
}

// NewFarmService creates a FarmService with all required dependencies.
// notifier may be nil.
func NewFarmService(
	accounts driven.AccountStore,
	keys driven.KeyStore,
	chain driven.ChainClient,
	notifier driven.Notifier,
	runLog *LogBuffer,
	network string,
	gas ActionGas,
	delay DelaySettings,
	autoRetry bool,
	maxRetries int,
) *FarmService {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &FarmService{
		accounts:   accounts,
		keys:       keys,
		chain:      chain,
		notifier:   notifier,
		runLog:     runLog,
		network:    network,
		gas:        gas,
		autoRetry:  autoRetry,
		maxRetries: maxRetries,
		pause:      waitInterruptible,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		delay:      delay,
		state:      model.RunStateIdle,
	}
}

func waitInterruptible(ctx context.Context, stop <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}

// actionSteps is the fixed demo sequence, in execution order.
func (s *FarmService) actionSteps() []actionStep {
	return []actionStep{
		{model.ActionKeyAuthorization, "Porto Smart Account Creation & Key Auth", s.gas.KeyAuthorization, gasLimitKeyAuth},
		{model.ActionSessionKey, "Porto Key Authorization & Nonce Setup", s.gas.SessionKey, gasLimitSession},
		{model.ActionIntentFlow, "Porto Orchestrator Integration & Intent Flow", s.gas.IntentFlow, gasLimitIntent},
		{model.ActionBatchExecution, "Porto Batch Execution with Signature Validation", s.gas.BatchExecution, gasLimitBatch},
	}
}

// Restore loads previously persisted keys into the queue. Called once at
// startup; a missing encryption key only means nothing was persisted.
func (s *FarmService) Restore(ctx context.Context) error {
	keys, err := s.keys.List(ctx)
	if err != nil {
		if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
			slog.Info("key persistence disabled, starting with empty queue")
			return nil
		}
		return fmt.Errorf("restore keys: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = keys
	s.position = 0
	s.success, s.failure = 0, 0
	if len(keys) > 0 {
		slog.Info("key queue restored", "keys", len(keys))
	}
	return nil
}

// SetKeys replaces the queue with a freshly uploaded key list and resets the
// run counters. Keys are persisted encrypted when a secret key is configured;
// without one the queue is memory-only for this process lifetime.
func (s *FarmService) SetKeys(ctx context.Context, keys []string) error {
	s.mu.Lock()
	if s.state == model.RunStateRunning || s.state == model.RunStateCycling {
		s.mu.Unlock()
		return ErrRunActive
	}
	s.queue = append([]string(nil), keys...)
	s.position = 0
	s.success, s.failure = 0, 0
	s.cycleCount = 0
	s.state = model.RunStateIdle
	s.mu.Unlock()

	if err := s.keys.Clear(ctx); err != nil {
		return fmt.Errorf("clear persisted keys: %w", err)
	}
	for _, key := range keys {
		if err := s.keys.Append(ctx, key); err != nil {
			if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
				slog.Warn("keys not persisted: no encryption key configured")
				break
			}
			return fmt.Errorf("persist key: %w", err)
		}
	}

	s.runLog.Append(model.LogLevelInfo, fmt.Sprintf("loaded %d private keys", len(keys)))
	return nil
}

// Status returns a point-in-time snapshot of the run.
func (s *FarmService) Status() model.RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.RunStatus{
		State:        s.state,
		QueueLength:  len(s.queue),
		Position:     s.position,
		SuccessCount: s.success,
		FailureCount: s.failure,
		CurrentOwner: s.currentOwner,
		CycleCount:   s.cycleCount,
	}
}

// UpdateDelay replaces the inter-item delay settings, clamping manual bounds
// to min >= 1 and max >= min.
func (s *FarmService) UpdateDelay(settings DelaySettings) error {
	switch settings.Mode {
	case model.DelayModeSmart, model.DelayModeManual:
	default:
		return fmt.Errorf("invalid delay mode %q", settings.Mode)
	}
	if settings.Mode == model.DelayModeSmart {
		switch settings.Level {
		case model.DelayLevelLight, model.DelayLevelMedium, model.DelayLevelHard:
		default:
			return fmt.Errorf("invalid delay level %q", settings.Level)
		}
	}
	if settings.MinSec < 1 {
		settings.MinSec = 1
	}
	if settings.MaxSec < settings.MinSec {
		settings.MaxSec = settings.MinSec
	}

	s.mu.Lock()
	s.delay = settings
	s.mu.Unlock()
	return nil
}

// FarmNext processes exactly one queue item and returns to idle. The returned
// error covers only guard violations; a failed item is recorded in the tallies
// and the run log, not surfaced here.
func (s *FarmService) FarmNext(ctx context.Context) error {
	s.mu.Lock()
	if err := s.startableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = model.RunStateRunning
	key := s.queue[s.position]
	s.mu.Unlock()

	ok := s.processItem(ctx, key)

	s.mu.Lock()
	s.advanceLocked(ok)
	if s.position >= len(s.queue) {
		s.state = model.RunStateCompleted
	} else {
		s.state = model.RunStateIdle
	}
	s.mu.Unlock()
	return nil
}

// StartMass processes the remaining queue in the background with a randomized
// delay between items. Returns immediately; progress is visible via Status.
func (s *FarmService) StartMass(ctx context.Context) error {
	return s.start(ctx, false)
}

// StartRotation processes the queue continuously, wrapping back to the first
// key after the last, until Stop is called or ctx is canceled.
func (s *FarmService) StartRotation(ctx context.Context) error {
	return s.start(ctx, true)
}

func (s *FarmService) start(ctx context.Context, cycling bool) error {
	s.mu.Lock()
	if err := s.startableLocked(); err != nil {
		// Rotation restarts from the top of an exhausted queue.
		if !(cycling && errors.Is(err, ErrQueueExhausted)) {
			s.mu.Unlock()
			return err
		}
		s.position = 0
	}
	if cycling {
		s.state = model.RunStateCycling
	} else {
		s.state = model.RunStateRunning
	}
	stop := make(chan struct{})
	s.stopCh = stop
	s.mu.Unlock()

	if cycling {
		s.runLog.Append(model.LogLevelInfo, "rotation started")
	} else {
		s.runLog.Append(model.LogLevelInfo, "mass run started")
	}
	go s.run(ctx, cycling, stop)
	return nil
}

// startableLocked validates the guard conditions for starting a run.
// Caller holds s.mu.
func (s *FarmService) startableLocked() error {
	if s.state == model.RunStateRunning || s.state == model.RunStateCycling {
		return ErrRunActive
	}
	if len(s.queue) == 0 {
		return ErrQueueEmpty
	}
	if s.position >= len(s.queue) {
		return ErrQueueExhausted
	}
	return nil
}

// Stop requests the active background run to finish its current item and
// stop. Safe to call once per run.
func (s *FarmService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return errors.New("no active run to stop")
	}
	close(s.stopCh)
	s.stopCh = nil
	return nil
}

// run is the background batch loop. The stop channel is honored at iteration
// boundaries only: an in-flight item always completes.
func (s *FarmService) run(ctx context.Context, cycling bool, stop <-chan struct{}) {
	defer func() {
		s.mu.Lock()
		if s.state == model.RunStateRunning || s.state == model.RunStateCycling {
			s.state = model.RunStateIdle
		}
		if s.stopCh != nil {
			s.stopCh = nil
		}
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			s.runLog.Append(model.LogLevelWarning, "run interrupted by shutdown")
			return
		case <-stop:
			s.runLog.Append(model.LogLevelInfo, "run stopped")
			return
		default:
		}

		s.mu.Lock()
		if s.position >= len(s.queue) {
			if !cycling {
				s.state = model.RunStateCompleted
				success, failure := s.success, s.failure
				s.mu.Unlock()
				s.runLog.Append(model.LogLevelSuccess,
					fmt.Sprintf("batch complete: %d succeeded, %d failed", success, failure))
				slog.Info("farm run complete", "success", success, "failure", failure)
				return
			}
			s.cycleCount++
			cycle, success, failure := s.cycleCount, s.success, s.failure
			s.position = 0
			s.mu.Unlock()

			s.runLog.Append(model.LogLevelInfo,
				fmt.Sprintf("cycle %d complete: %d succeeded, %d failed", cycle, success, failure))
			s.notifyCycle(ctx, cycle, success, failure)
			continue
		}
		key := s.queue[s.position]
		s.mu.Unlock()

		ok := s.processItem(ctx, key)
		if ctx.Err() != nil {
			s.runLog.Append(model.LogLevelWarning, "run interrupted by shutdown")
			return
		}

		s.mu.Lock()
		s.advanceLocked(ok)
		remaining := len(s.queue) - s.position
		s.mu.Unlock()

		if remaining == 0 && !cycling {
			continue // completion handled at the loop top
		}

		seconds := s.nextDelay()
		s.runLog.Append(model.LogLevelInfo, fmt.Sprintf("waiting %ds before next account", seconds))
		if !s.pause(ctx, stop, time.Duration(seconds)*time.Second) {
			s.runLog.Append(model.LogLevelInfo, "run stopped")
			return
		}
	}
}

// advanceLocked moves the position forward exactly one item and updates the
// tallies. Caller holds s.mu.
func (s *FarmService) advanceLocked(ok bool) {
	s.position++
	if ok {
		s.success++
	} else {
		s.failure++
	}
	s.currentOwner = ""
}

func (s *FarmService) nextDelay() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DelaySeconds(s.delay, s.rng)
}

// processItem runs the full per-key sequence: derive the owner, create the
// account, persist it, then attempt the demo actions. Returns whether the
// item counts as a success. Errors never escape; they are demoted to run-log
// entries.
func (s *FarmService) processItem(ctx context.Context, key string) bool {
	owner, err := s.chain.OwnerAddress(key)
	if err != nil {
		s.runLog.Append(model.LogLevelError,
			fmt.Sprintf("invalid key %s: %v", model.RedactKey(key), err))
		return false
	}

	s.mu.Lock()
	s.currentOwner = owner
	s.mu.Unlock()
	s.runLog.Append(model.LogLevelInfo, fmt.Sprintf("processing %s", owner))

	account, err := s.createAccount(ctx, key, owner)
	if err != nil {
		s.runLog.Append(model.LogLevelError,
			fmt.Sprintf("account creation failed for %s: %v", owner, err))
		slog.Error("account creation failed", "owner", owner, "error", err)
		return false
	}

	// Persist before the demo actions so a later failure cannot lose the record.
	if err := s.accounts.Upsert(ctx, *account); err != nil {
		s.runLog.Append(model.LogLevelError,
			fmt.Sprintf("storing account %s failed: %v", account.Address, err))
		slog.Error("account store failed", "address", account.Address, "error", err)
		return false
	}
	stored, err := s.accounts.GetByAddress(ctx, account.Address)
	if err != nil || stored == nil {
		s.runLog.Append(model.LogLevelError,
			fmt.Sprintf("reloading account %s failed: %v", account.Address, err))
		return false
	}
	stored.Actions = account.Actions

	s.runActions(ctx, key, stored)

	s.runLog.Append(model.LogLevelSuccess,
		fmt.Sprintf("account %s ready (owner %s)", stored.Address, owner))
	return true
}

// createAccount performs the creation step, retrying transient failures when
// auto-retry is enabled. Insufficient funds is never retried.
func (s *FarmService) createAccount(ctx context.Context, key, owner string) (*model.Account, error) {
	attempts := 1
	if s.autoRetry {
		attempts = s.maxRetries
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			s.runLog.Append(model.LogLevelWarning,
				fmt.Sprintf("retrying account creation for %s (attempt %d/%d)", owner, i+1, attempts))
		}
		account, err := s.createOnce(ctx, key, owner)
		if err == nil {
			return account, nil
		}
		lastErr = err
		if errors.Is(err, driven.ErrInsufficientFunds) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// createOnce anchors one account: checks the owner can cover gas, sends a
// 0.0001 ETH self-transfer, waits for it to mine, and derives the account
// address from the creation anchor.
func (s *FarmService) createOnce(ctx context.Context, key, owner string) (*model.Account, error) {
	balance, err := s.chain.Balance(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("balance check: %w", err)
	}
	if balance.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero balance", driven.ErrInsufficientFunds)
	}

	gasPrice, err := s.chain.GasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	gasCost := new(big.Int).Mul(gasPrice, big.NewInt(transferGasLimit))
	if balance.Cmp(gasCost) < 0 {
		return nil, fmt.Errorf("%w: balance %s wei below gas cost %s wei",
			driven.ErrInsufficientFunds, balance, gasCost)
	}

	txHash, err := s.chain.SendTransaction(ctx, key, driven.TxRequest{
		To:       owner,
		ValueWei: transferValueWei,
		GasLimit: transferGasLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("creation transfer: %w", err)
	}

	receipt, err := s.chain.WaitMined(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", txHash, err)
	}

	address, err := s.chain.AccountAddress(owner, receipt.BlockNumber, txHash)
	if err != nil {
		return nil, fmt.Errorf("derive account address: %w", err)
	}

	return &model.Account{
		Address:          address,
		OwnerAddress:     owner,
		OwnerKeyRedacted: model.RedactKey(key),
		Network:          s.network,
		TxHash:           txHash,
		BlockNumber:      receipt.BlockNumber,
		Balance:          weiToEth(balance),
		GasUsed:          receipt.GasUsed,
		Actions:          []string{string(model.ActionBasicTransfer)},
		Note:             defaultNote,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// runActions attempts the fixed demo sequence against a freshly created
// account. Each action is gated on balance vs its estimated cost and fails
// independently; a skipped action records nothing.
func (s *FarmService) runActions(ctx context.Context, key string, account *model.Account) {
	balance, err := s.chain.Balance(ctx, account.OwnerAddress)
	if err != nil {
		s.runLog.Append(model.LogLevelWarning,
			fmt.Sprintf("skipping actions for %s: balance check failed: %v", account.Address, err))
		return
	}
	gasPrice, err := s.chain.GasPrice(ctx)
	if err != nil {
		s.runLog.Append(model.LogLevelWarning,
			fmt.Sprintf("skipping actions for %s: gas price failed: %v", account.Address, err))
		return
	}

	for _, step := range s.actionSteps() {
		cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(step.estimate))
		if balance.Cmp(cost) <= 0 {
			s.runLog.Append(model.LogLevelWarning,
				fmt.Sprintf("skipping %s for %s: balance below estimated cost", step.kind, account.Address))
			continue
		}
		if err := s.performAction(ctx, key, account, step); err != nil {
			s.runLog.Append(model.LogLevelWarning,
				fmt.Sprintf("%s failed for %s: %v", step.kind, account.Address, err))
		}
	}

	if err := s.accounts.Upsert(ctx, *account); err != nil {
		slog.Error("persist action list failed", "address", account.Address, "error", err)
	}
}

// performAction broadcasts one demo action and records its interaction, ok or
// failed. The account's action list is extended only on success.
func (s *FarmService) performAction(ctx context.Context, key string, account *model.Account, step actionStep) error {
	data, err := s.chain.ActionData(account.Address, step.kind)
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	txHash, sendErr := s.chain.SendTransaction(ctx, key, driven.TxRequest{
		To:       account.Address,
		Data:     data,
		GasLimit: step.gasLimit,
	})

	outcome := model.OutcomeOK
	if sendErr != nil {
		outcome = model.OutcomeFailed
	}
	interaction := model.Interaction{
		Kind:        step.kind,
		TxHash:      txHash,
		Description: step.description,
		Outcome:     outcome,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.accounts.AddInteraction(ctx, account.ID, interaction); err != nil {
		slog.Error("record interaction failed",
			"address", account.Address, "kind", step.kind, "error", err)
	}

	if sendErr != nil {
		return sendErr
	}

	account.Actions = append(account.Actions, string(step.kind))
	s.runLog.Append(model.LogLevelSuccess,
		fmt.Sprintf("%s confirmed for %s", step.description, account.Address))
	return nil
}

// RandomInteraction picks a random stored account and issues one randomly
// chosen action against it.
func (s *FarmService) RandomInteraction(ctx context.Context) error {
	accounts, err := s.accounts.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return ErrNoAccounts
	}

	s.mu.Lock()
	account := accounts[s.rng.Intn(len(accounts))]
	kind := model.RandomActionKinds[s.rng.Intn(len(model.RandomActionKinds))]
	s.mu.Unlock()

	key, err := s.keyForOwner(ctx, account.OwnerAddress)
	if err != nil {
		return err
	}

	balance, err := s.chain.Balance(ctx, account.OwnerAddress)
	if err != nil {
		return fmt.Errorf("balance check: %w", err)
	}
	gasPrice, err := s.chain.GasPrice(ctx)
	if err != nil {
		return fmt.Errorf("gas price: %w", err)
	}
	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(s.gas.RandomAction))
	if balance.Cmp(cost) <= 0 {
		s.runLog.Append(model.LogLevelWarning,
			fmt.Sprintf("skipping random %s for %s: balance below estimated cost", kind, account.Address))
		return fmt.Errorf("%w: balance below estimated cost", driven.ErrInsufficientFunds)
	}

	step := actionStep{
		kind:        kind,
		description: fmt.Sprintf("Random %s interaction", kind),
		estimate:    s.gas.RandomAction,
		gasLimit:    gasLimitRandom,
	}
	if err := s.performAction(ctx, key, &account, step); err != nil {
		return err
	}
	if err := s.accounts.Upsert(ctx, account); err != nil {
		slog.Error("persist action list failed", "address", account.Address, "error", err)
	}
	return nil
}

// keyForOwner resolves the full private key controlling owner, searching the
// in-memory queue first, then the persisted key store.
func (s *FarmService) keyForOwner(ctx context.Context, owner string) (string, error) {
	s.mu.Lock()
	candidates := append([]string(nil), s.queue...)
	s.mu.Unlock()

	if persisted, err := s.keys.List(ctx); err == nil {
		candidates = append(candidates, persisted...)
	} else if !errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		return "", fmt.Errorf("list keys: %w", err)
	}

	for _, key := range candidates {
		derived, err := s.chain.OwnerAddress(key)
		if err != nil {
			continue
		}
		if strings.EqualFold(derived, owner) {
			return key, nil
		}
	}
	return "", fmt.Errorf("no stored key for owner %s", owner)
}

// Clear wipes all stored accounts, interactions, and keys, and resets the run.
func (s *FarmService) Clear(ctx context.Context) error {
	s.mu.Lock()
	if s.state == model.RunStateRunning || s.state == model.RunStateCycling {
		s.mu.Unlock()
		return ErrRunActive
	}
	s.queue = nil
	s.position = 0
	s.success, s.failure = 0, 0
	s.cycleCount = 0
	s.currentOwner = ""
	s.state = model.RunStateIdle
	s.mu.Unlock()

	if err := s.accounts.Clear(ctx); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}
	if err := s.keys.Clear(ctx); err != nil {
		return fmt.Errorf("clear keys: %w", err)
	}

	s.runLog.Append(model.LogLevelInfo, "all stored data cleared")
	return nil
}

// notifyCycle sends the rotation cycle summary. Failures are logged, never fatal.
func (s *FarmService) notifyCycle(ctx context.Context, cycle, success, failure int) {
	if s.notifier == nil {
		return
	}
	text := fmt.Sprintf("<b>portofarm</b> cycle %d complete\nSuccess: %d\nFailed: %d",
		cycle, success, failure)
	if err := s.notifier.Notify(ctx, text); err != nil {
		slog.Error("cycle notification failed", "cycle", cycle, "error", err)
	}
}

// weiToEth formats a wei amount as a decimal ETH string with six fractional digits.
func weiToEth(wei *big.Int) string {
	f := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18))
	return f.Text('f', 6)
}
