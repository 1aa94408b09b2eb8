package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/afflictionmoney/portofarm/internal/application"
	"github.com/afflictionmoney/portofarm/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// AccountResponse is the JSON representation of a farmed account.
type AccountResponse struct {
	Address           string                `json:"address"`
	OwnerAddress      string                `json:"owner_address"`
	OwnerKeyRedacted  string                `json:"owner_key_redacted"`
	Network           string                `json:"network"`
	TxHash            string                `json:"tx_hash"`
	BlockNumber       uint64                `json:"block_number"`
	Balance           string                `json:"balance"`
	GasUsed           uint64                `json:"gas_used"`
	Actions           []string              `json:"actions"`
	Note              string                `json:"note"`
	TotalInteractions int                   `json:"total_interactions"`
	Interactions      []InteractionResponse `json:"interactions"`
	CreatedAt         string                `json:"created_at"`
	LastInteractionAt string                `json:"last_interaction_at,omitempty"`
}

// InteractionResponse is the JSON representation of one attempted action.
type InteractionResponse struct {
	Kind        string `json:"kind"`
	TxHash      string `json:"tx_hash"`
	Description string `json:"description"`
	Outcome     string `json:"outcome"`
	CreatedAt   string `json:"created_at"`
}

// StatusResponse is the JSON representation of the batch runner snapshot.
type StatusResponse struct {
	State        string `json:"state"`
	QueueLength  int    `json:"queue_length"`
	Position     int    `json:"position"`
	Remaining    int    `json:"remaining"`
	SuccessCount int    `json:"success_count"`
	FailureCount int    `json:"failure_count"`
	CurrentOwner string `json:"current_owner,omitempty"`
	CycleCount   int    `json:"cycle_count"`
}

// KeysResponse reports the result of a key upload.
type KeysResponse struct {
	Loaded int `json:"loaded"`
}

// ImportResponse reports the result of an account import.
type ImportResponse struct {
	Imported int `json:"imported"`
}

// NetworkResponse is the JSON representation of the connected network status.
type NetworkResponse struct {
	Network     string `json:"network"`
	ChainID     string `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	GasPriceWei string `json:"gas_price_wei"`
}

// DelayRequest is the JSON body for updating the inter-item delay settings.
type DelayRequest struct {
	Mode   string `json:"mode"`
	Level  string `json:"level"`
	MinSec int    `json:"min_sec"`
	MaxSec int    `json:"max_sec"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toAccountResponse converts a domain Account to its JSON representation.
func toAccountResponse(a model.Account) AccountResponse {
	actions := a.Actions
	if actions == nil {
		actions = []string{}
	}

	interactions := make([]InteractionResponse, 0, len(a.Interactions))
	for _, in := range a.Interactions {
		interactions = append(interactions, InteractionResponse{
			Kind:        string(in.Kind),
			TxHash:      in.TxHash,
			Description: in.Description,
			Outcome:     string(in.Outcome),
			CreatedAt:   in.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	resp := AccountResponse{
		Address:           a.Address,
		OwnerAddress:      a.OwnerAddress,
		OwnerKeyRedacted:  a.OwnerKeyRedacted,
		Network:           a.Network,
		TxHash:            a.TxHash,
		BlockNumber:       a.BlockNumber,
		Balance:           a.Balance,
		GasUsed:           a.GasUsed,
		Actions:           actions,
		Note:              a.Note,
		TotalInteractions: a.TotalInteractions,
		Interactions:      interactions,
		CreatedAt:         a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !a.LastInteractionAt.IsZero() {
		resp.LastInteractionAt = a.LastInteractionAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// toStatusResponse converts a run snapshot to its JSON representation.
func toStatusResponse(s model.RunStatus) StatusResponse {
	return StatusResponse{
		State:        string(s.State),
		QueueLength:  s.QueueLength,
		Position:     s.Position,
		Remaining:    s.Remaining(),
		SuccessCount: s.SuccessCount,
		FailureCount: s.FailureCount,
		CurrentOwner: s.CurrentOwner,
		CycleCount:   s.CycleCount,
	}
}

// toLogEntries passes the run log through; application.LogEntry already
// carries JSON tags.
func toLogEntries(entries []application.LogEntry) []application.LogEntry {
	if entries == nil {
		return []application.LogEntry{}
	}
	return entries
}
