// Package httphandler is the HTTP driving adapter serving the REST control API.
package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/afflictionmoney/portofarm/internal/application"
	"github.com/afflictionmoney/portofarm/internal/domain/model"
	"github.com/afflictionmoney/portofarm/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	farmSvc   *application.FarmService
	exportSvc *application.ExportService
	accounts  driven.AccountStore
	chain     driven.ChainClient
	runLog    *application.LogBuffer
	network   string
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	farmSvc *application.FarmService,
	exportSvc *application.ExportService,
	accounts driven.AccountStore,
	chain driven.ChainClient,
	runLog *application.LogBuffer,
	network string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		farmSvc:   farmSvc,
		exportSvc: exportSvc,
		accounts:  accounts,
		chain:     chain,
		runLog:    runLog,
		network:   network,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/keys", h.UploadKeys)
	mux.HandleFunc("GET /api/v1/accounts", h.ListAccounts)
	mux.HandleFunc("DELETE /api/v1/accounts", h.ClearAll)
	mux.HandleFunc("POST /api/v1/farm/next", h.FarmNext)
	mux.HandleFunc("POST /api/v1/farm/all", h.FarmAll)
	mux.HandleFunc("POST /api/v1/farm/rotation", h.StartRotation)
	mux.HandleFunc("DELETE /api/v1/farm/rotation", h.StopRun)
	mux.HandleFunc("POST /api/v1/farm/random", h.RandomInteraction)
	mux.HandleFunc("GET /api/v1/status", h.Status)
	mux.HandleFunc("GET /api/v1/logs", h.Logs)
	mux.HandleFunc("PUT /api/v1/delay", h.UpdateDelay)
	mux.HandleFunc("GET /api/v1/export/csv", h.ExportCSV)
	mux.HandleFunc("GET /api/v1/export/json", h.ExportJSON)
	mux.HandleFunc("POST /api/v1/import", h.Import)
	mux.HandleFunc("GET /api/v1/network", h.Network)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// serviceError maps an application error onto an HTTP status and message.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrRunActive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, application.ErrQueueEmpty):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrQueueExhausted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, application.ErrNoAccounts):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, driven.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// UploadKeys ingests a plain-text key file (one key per line) and replaces the
// farm queue.
func (h *Handler) UploadKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := application.LoadKeys(r.Body)
	if err != nil {
		if errors.Is(err, application.ErrNoKeys) {
			writeError(w, http.StatusBadRequest, "no valid private keys in upload")
			return
		}
		h.logger.Error("key upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.farmSvc.SetKeys(r.Context(), keys); err != nil {
		if !errors.Is(err, application.ErrRunActive) {
			h.logger.Error("set keys failed", "error", err)
		}
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, KeysResponse{Loaded: len(keys)})
}

// ListAccounts returns all stored accounts with their interactions.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list accounts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ClearAll wipes all stored accounts and keys.
func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.farmSvc.Clear(r.Context()); err != nil {
		if !errors.Is(err, application.ErrRunActive) {
			h.logger.Error("clear failed", "error", err)
		}
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FarmNext processes exactly one queued key and returns the updated snapshot.
func (h *Handler) FarmNext(w http.ResponseWriter, r *http.Request) {
	if err := h.farmSvc.FarmNext(r.Context()); err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(h.farmSvc.Status()))
}

// FarmAll starts a background mass run over the remaining queue.
func (h *Handler) FarmAll(w http.ResponseWriter, r *http.Request) {
	if err := h.farmSvc.StartMass(r.Context()); err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toStatusResponse(h.farmSvc.Status()))
}

// StartRotation starts continuous rotation over the queue.
func (h *Handler) StartRotation(w http.ResponseWriter, r *http.Request) {
	if err := h.farmSvc.StartRotation(r.Context()); err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toStatusResponse(h.farmSvc.Status()))
}

// StopRun asks the active background run to finish its current item and stop.
func (h *Handler) StopRun(w http.ResponseWriter, _ *http.Request) {
	if err := h.farmSvc.Stop(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(h.farmSvc.Status()))
}

// RandomInteraction issues one randomly chosen action against a random
// stored account.
func (h *Handler) RandomInteraction(w http.ResponseWriter, r *http.Request) {
	if err := h.farmSvc.RandomInteraction(r.Context()); err != nil {
		if !errors.Is(err, application.ErrNoAccounts) && !errors.Is(err, driven.ErrInsufficientFunds) {
			h.logger.Error("random interaction failed", "error", err)
		}
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status returns the batch runner snapshot.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toStatusResponse(h.farmSvc.Status()))
}

// Logs returns the buffered run log, oldest first.
func (h *Handler) Logs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toLogEntries(h.runLog.Entries()))
}

// UpdateDelay replaces the inter-item delay settings.
func (h *Handler) UpdateDelay(w http.ResponseWriter, r *http.Request) {
	var req DelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings := application.DelaySettings{
		Mode:   model.DelayMode(req.Mode),
		Level:  model.DelayLevel(req.Level),
		MinSec: req.MinSec,
		MaxSec: req.MaxSec,
	}
	if err := h.farmSvc.UpdateDelay(settings); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportCSV streams the CSV export as a dated download.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.exportSvc.CSVFilename()))
	if err := h.exportSvc.ExportCSV(r.Context(), w); err != nil {
		h.logger.Error("CSV export failed", "error", err)
	}
}

// ExportJSON streams the JSON export as a dated download.
func (h *Handler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.exportSvc.JSONFilename()))
	if err := h.exportSvc.ExportJSON(r.Context(), w); err != nil {
		h.logger.Error("JSON export failed", "error", err)
	}
}

// Import reads an export file (CSV or JSON, detected by content) and appends
// its accounts to the store.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	imported, err := h.exportSvc.Import(r.Context(), r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{Imported: imported})
}

// Network reports the connected chain's id, latest block, and gas price.
func (h *Handler) Network(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	chainID, err := h.chain.ChainID(ctx)
	if err != nil {
		h.logger.Error("chain id query failed", "error", err)
		writeError(w, http.StatusBadGateway, "network status unavailable")
		return
	}
	blockNumber, err := h.chain.BlockNumber(ctx)
	if err != nil {
		h.logger.Error("block number query failed", "error", err)
		writeError(w, http.StatusBadGateway, "network status unavailable")
		return
	}
	gasPrice, err := h.chain.GasPrice(ctx)
	if err != nil {
		h.logger.Error("gas price query failed", "error", err)
		writeError(w, http.StatusBadGateway, "network status unavailable")
		return
	}

	writeJSON(w, http.StatusOK, NetworkResponse{
		Network:     h.network,
		ChainID:     chainID.String(),
		BlockNumber: blockNumber,
		GasPriceWei: gasPrice.String(),
	})
}

// Health is the liveness endpoint used by the healthcheck binary.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
