package model

// ActionKind tags one demonstration action broadcast against an account.
type ActionKind string

const (
	ActionBasicTransfer    ActionKind = "basic_transfer"
	ActionKeyAuthorization ActionKind = "EXP-0001" // Smart account creation & key authorization.
	ActionSessionKey       ActionKind = "EXP-0002" // Key authorization & nonce setup.
	ActionIntentFlow       ActionKind = "EXP-0003" // Orchestrator integration & intent flow.
	ActionBatchExecution   ActionKind = "batch_execution"

	// Kinds used only by the random-interaction operation.
	ActionProtocolInteraction ActionKind = "protocol_interaction"
	ActionLiquidityProvision  ActionKind = "liquidity_provision"
	ActionSwapOperation       ActionKind = "swap_operation"
	ActionYieldFarming        ActionKind = "yield_farming"
)

// RandomActionKinds is the pool the random-interaction operation draws from.
var RandomActionKinds = []ActionKind{
	ActionKeyAuthorization,
	ActionSessionKey,
	ActionIntentFlow,
	ActionBatchExecution,
	ActionProtocolInteraction,
	ActionLiquidityProvision,
	ActionSwapOperation,
	ActionYieldFarming,
}

// Outcome is the result of one attempted interaction.
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeFailed Outcome = "failed"
)

// RunState is the batch runner's lifecycle state.
type RunState string

const (
	RunStateIdle      RunState = "idle"
	RunStateRunning   RunState = "running"
	RunStateCycling   RunState = "cycling" // Continuous rotation over the queue.
	RunStateCompleted RunState = "completed"
)

// DelayMode selects how the inter-item delay is produced.
type DelayMode string

const (
	DelayModeSmart  DelayMode = "smart"
	DelayModeManual DelayMode = "manual"
)

// DelayLevel is the smart-mode intensity tier.
type DelayLevel string

const (
	DelayLevelLight  DelayLevel = "light"
	DelayLevelMedium DelayLevel = "medium"
	DelayLevelHard   DelayLevel = "hard"
)

// LogLevel classifies entries in the user-visible run log.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelSuccess LogLevel = "success"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)
