package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ferrobank/ferro/internal/apperr"
)

// ErrorResponse is the error body every endpoint returns. Code is the stable
// machine-readable error code; Field names the offending input when known.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

// statusByCode maps error codes to HTTP statuses. Codes missing from the
// table respond 500.
var statusByCode = map[string]int{
	apperr.CodeInvalidAmount:        http.StatusBadRequest,
	apperr.CodeValidation:           http.StatusBadRequest,
	apperr.CodeUserNotFound:         http.StatusNotFound,
	apperr.CodeAccountNotFound:      http.StatusNotFound,
	apperr.CodeTransactionNotFound:  http.StatusNotFound,
	apperr.CodeEmailTaken:           http.StatusConflict,
	apperr.CodeAlreadyReversed:      http.StatusConflict,
	apperr.CodeOwnershipViolation:   http.StatusForbidden,
	apperr.CodeNotAdmin:             http.StatusForbidden,
	apperr.CodeActorInactive:        http.StatusForbidden,
	apperr.CodeUnauthorized:         http.StatusUnauthorized,
	apperr.CodeAccountFrozen:        http.StatusUnprocessableEntity,
	apperr.CodeAccountClosed:        http.StatusUnprocessableEntity,
	apperr.CodeKYCRejected:          http.StatusUnprocessableEntity,
	apperr.CodeInsufficientFunds:    http.StatusUnprocessableEntity,
	apperr.CodeAmountExceedsCeiling: http.StatusUnprocessableEntity,
	apperr.CodeTimeout:              http.StatusGatewayTimeout,
	apperr.CodeDB:                   http.StatusInternalServerError,
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends a plain error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, ErrorResponse{Error: message}, statusCode)
}

// respondAppError maps a service error onto the HTTP contract. Integrity
// errors and unrecognized errors are masked; their details were already
// logged where they occurred.
func respondAppError(w http.ResponseWriter, err error) {
	e := apperr.As(err)
	if e == nil || e.Kind() == apperr.KindIntegrity {
		respondError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	status, ok := statusByCode[e.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	respondJSON(w, ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
		Field: e.Field,
	}, status)
}
