package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"riftvault/core"
	"riftvault/native/bank"
	"riftvault/native/buyback"
	nativecommon "riftvault/native/common"
	"riftvault/native/governance"
	"riftvault/native/oraclefeed"
	"riftvault/native/staking"
	"riftvault/native/vault"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Code  uint16 `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps engine and collaborator failures onto HTTP statuses.
func statusFor(err error) int {
	var verr *vault.Error
	if errors.As(err, &verr) {
		switch verr.Kind() {
		case vault.KindValidation:
			return http.StatusBadRequest
		case vault.KindArithmetic:
			return http.StatusUnprocessableEntity
		case vault.KindConcurrency:
			return http.StatusConflict
		case vault.KindAuthorization:
			return http.StatusForbidden
		case vault.KindNotFound:
			return http.StatusNotFound
		}
	}
	switch {
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, governance.ErrUnauthorized), errors.Is(err, governance.ErrLastAuthority):
		return http.StatusForbidden
	case errors.Is(err, core.ErrTooManyConflicts):
		return http.StatusConflict
	case errors.Is(err, bank.ErrInsufficientBalance),
		errors.Is(err, staking.ErrOverDistributed),
		errors.Is(err, buyback.ErrInvalidAmount),
		errors.Is(err, nativecommon.ErrQuotaRequestsExceeded),
		errors.Is(err, nativecommon.ErrQuotaAmountExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, oraclefeed.ErrMalformedPayload),
		errors.Is(err, oraclefeed.ErrUnknownVendor),
		errors.Is(err, oraclefeed.ErrStalePrice),
		errors.Is(err, oraclefeed.ErrConfidenceTooWide),
		errors.Is(err, oraclefeed.ErrNonPositivePrice),
		errors.Is(err, oraclefeed.ErrPriceOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	if status == http.StatusInternalServerError {
		body.Error = "internal error"
	}
	var verr *vault.Error
	if errors.As(err, &verr) {
		body.Kind = verr.Kind().String()
		body.Code = uint16(verr.Code)
	}
	writeJSON(w, status, body)
}
