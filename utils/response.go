package utils

import (
	"encoding/json"
	"net/http"
)

// Stable machine-readable error kinds. Clients must match on Code, not on
// the human-readable message.
const (
	CodeForbidden              = "forbidden"
	CodeNotFound               = "not_found"
	CodeTaskClosed             = "task_closed"
	CodeNotExclusive           = "not_exclusive"
	CodeAlreadyClaimed         = "already_claimed"
	CodeDuplicateClaim         = "duplicate_claim"
	CodeClaimLimitExceeded     = "claim_limit_exceeded"
	CodeRequirementsIncomplete = "requirements_incomplete"
	CodeInsufficientFunds      = "insufficient_funds"
	CodeInvalidInput           = "invalid_input"
	CodeConflict               = "conflict"
	CodeUnauthorized           = "unauthorized"
	CodeServerError            = "server_error"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteError writes a failed APIResponse with a stable error code.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, APIResponse{Success: false, Code: code, Message: message})
}

// GetStringValue returns the value of a nullable string pointer or empty string if nil
func GetStringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
