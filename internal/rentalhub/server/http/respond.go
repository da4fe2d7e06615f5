package http

import (
	"encoding/json"
	"net/http"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/pkg/log"
)

const codeUnauthorized = "UNAUTHORIZED"

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Failed to write response", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

// writeDomainError maps a service error to its HTTP status. Unknown errors are
// logged and hidden behind a generic message.
func writeDomainError(w http.ResponseWriter, err error) {
	code := core.CodeOf(err)
	if code == core.CodeInternal {
		log.Error(err, "Request failed")
		writeError(w, http.StatusInternalServerError, string(code), "internal error")
		return
	}
	writeError(w, statusOf(code), string(code), err.Error())
}

func statusOf(code core.Code) int {
	switch code {
	case core.CodeNotFound:
		return http.StatusNotFound
	case core.CodeCarUnavailable:
		return http.StatusConflict
	case core.CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case core.CodeForbidden:
		return http.StatusForbidden
	case core.CodeRentalNotActive, core.CodeInvalidArgument:
		return http.StatusBadRequest
	case core.CodeDeviceOffline:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
