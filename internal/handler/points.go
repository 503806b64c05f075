// Package handler exposes the points ledger over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/sheikh-saqib/rewards-points-ledger/internal/ledger"
	"github.com/sheikh-saqib/rewards-points-ledger/internal/middleware"
	"github.com/sheikh-saqib/rewards-points-ledger/internal/models"
)

type PointsHandler struct {
	service   *ledger.Service
	validator *validator.Validate
	logger    *slog.Logger
}

func NewPointsHandler(service *ledger.Service, log *slog.Logger) *PointsHandler {
	return &PointsHandler{
		service:   service,
		validator: newValidator(),
		logger:    log,
	}
}

// Register mounts the ledger routes on r.
func (h *PointsHandler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	r.HandleFunc("/rest/users/{user}", h.GetBalances).Methods(http.MethodGet)
	r.HandleFunc("/rest/users/{user}", h.RegisterUser).Methods(http.MethodPost)
	r.HandleFunc("/rest/users/{user}/transactions", h.GetTransactions).Methods(http.MethodGet)
	r.HandleFunc("/rest/points/{user}", h.AddPoints).Methods(http.MethodPost)
	r.HandleFunc("/rest/points/{user}", h.SpendPoints).Methods(http.MethodPut)
}

func (h *PointsHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetBalances returns the user's net points per payer.
func (h *PointsHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]

	balances, err := h.service.Balances(r.Context(), user)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"points": balances})
}

func (h *PointsHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]

	txs, err := h.service.History(r.Context(), user)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (h *PointsHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]

	if err := h.service.RegisterUser(r.Context(), user); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]any{"success": true})
}

// AddPoints handles {"payer": string, "points": int, "timestamp": iso}.
func (h *PointsHandler) AddPoints(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]

	var req addPointsRequest
	if err := decodeBody(w, r, h.validator, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	points, err := parsePoints(req.Points)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ts, err := parseTimestamp(*req.Timestamp)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if _, err := h.service.AddContribution(r.Context(), user, *req.Payer, points, ts); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// SpendPoints handles {"points": int} and reports the per-payer deductions.
func (h *PointsHandler) SpendPoints(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]

	var req spendPointsRequest
	if err := decodeBody(w, r, h.validator, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	points, err := parsePoints(req.Points)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	deductions, err := h.service.Spend(r.Context(), user, points)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if deductions == nil {
		deductions = []models.Deduction{}
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"results": deductions})
}

// errorMessages holds the caller-facing wording for ledger rejections.
var errorMessages = map[error]string{
	ledger.ErrUserNotFound:       "User not found",
	ledger.ErrUserExists:         "User already exists",
	ledger.ErrEmptyUser:          "User id must not be empty.",
	ledger.ErrEmptyPayer:         "Field 'payer' must be a non-empty string.",
	ledger.ErrMissingTimestamp:   "Required field 'timestamp' not found in request body.",
	ledger.ErrFutureTimestamp:    "Field 'timestamp' cannot be in the future.",
	ledger.ErrNegativeSpend:      "Field 'points' must be positive value.",
	ledger.ErrInsufficientPoints: "Not enough total points for requested deduction.",
	ledger.ErrHistoricalNegative: "Negative point total at given datetime would result in historical point total less than zero for specified payer.",
	ledger.ErrPointsOverflow:     "Field 'points' would overflow the point total.",
}

func (h *PointsHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verr ValidationError
	switch {
	case errors.As(err, &verr):
		h.respondError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, ledger.ErrUserNotFound):
		h.respondError(w, http.StatusNotFound, errorMessages[ledger.ErrUserNotFound])
	case errors.Is(err, ledger.ErrUserExists):
		h.respondError(w, http.StatusConflict, errorMessages[ledger.ErrUserExists])
	case ledger.IsValidation(err):
		h.respondError(w, http.StatusBadRequest, messageFor(err))
	case errors.Is(err, ledger.ErrLedgerInconsistency):
		h.logger.Error("ledger inconsistency",
			"path", r.URL.Path,
			"request_id", middleware.RequestID(r.Context()),
			"error", err,
		)
		h.respondError(w, http.StatusInternalServerError, "Data problem resulted in error with point totals.")
	default:
		h.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", middleware.RequestID(r.Context()),
			"error", err,
		)
		h.respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func messageFor(err error) string {
	for target, msg := range errorMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return err.Error()
}

func (h *PointsHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *PointsHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
