package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/splitstack/tally/internal/auth"
	"github.com/splitstack/tally/internal/ledger"
	"github.com/splitstack/tally/internal/metrics"
	"github.com/splitstack/tally/internal/planner"
	"github.com/splitstack/tally/internal/service"
	"github.com/splitstack/tally/internal/settlement"
	"github.com/splitstack/tally/internal/splitter"
	"github.com/splitstack/tally/internal/storage"
	"github.com/splitstack/tally/internal/transfer"
)

// errorResponse is the JSON body of every non-2xx reply.
type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := mapError(err)
	writeJSON(w, status, errorResponse{Code: code, Error: err.Error()})
}

// mapError translates domain errors into HTTP status codes. Every sentinel
// a service can surface has a mapping; anything unmapped is a 500.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, settlement.ErrValidation),
		errors.Is(err, splitter.ErrInvalidAmount),
		errors.Is(err, splitter.ErrEmptyParticipants),
		errors.Is(err, splitter.ErrTooManyParticipants),
		errors.Is(err, splitter.ErrDuplicateParticipant),
		errors.Is(err, service.ErrPayerNotParticipant),
		errors.Is(err, auth.ErrWeakCredential):
		return http.StatusBadRequest, "invalid_input"

	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized, "unauthenticated"

	case errors.Is(err, service.ErrNotMember),
		errors.Is(err, service.ErrNotPayer),
		errors.Is(err, settlement.ErrNotAuthorized):
		return http.StatusForbidden, "forbidden"

	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, settlement.ErrNotFound):
		return http.StatusNotFound, "not_found"

	case errors.Is(err, storage.ErrDuplicate),
		errors.Is(err, auth.ErrMemberExists),
		errors.Is(err, settlement.ErrAlreadyExecuted),
		errors.Is(err, settlement.ErrCancelled),
		errors.Is(err, settlement.ErrExpired),
		errors.Is(err, settlement.ErrNotExpired),
		errors.Is(err, settlement.ErrTransferMismatch),
		errors.Is(err, transfer.ErrInsufficientFunds),
		errors.Is(err, transfer.ErrUnknownAccount):
		return http.StatusConflict, "conflict"

	case errors.Is(err, ledger.ErrBalanceOverflow):
		return http.StatusUnprocessableEntity, "balance_overflow"

	case errors.Is(err, ledger.ErrLedgerCorruption),
		errors.Is(err, ledger.ErrCorruptBalance),
		errors.Is(err, planner.ErrUnbalanced):
		metrics.LedgerCorruptionTrips.Inc()
		return http.StatusInternalServerError, "ledger_corruption"

	default:
		return http.StatusInternalServerError, "internal"
	}
}
