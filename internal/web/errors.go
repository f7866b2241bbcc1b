package web

import (
	"encoding/json"
	"errors"
	"net/http"

	domain "github.com/inference-gateway/adgate/internal/domain"
	logger "github.com/inference-gateway/adgate/internal/logger"
	zap "go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// badRequestError marks malformed client input
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &badRequestError{msg: msg}
}

// errorStatus maps domain errors to a status, code and client-safe message
func errorStatus(err error) (int, string, string) {
	var (
		badReq          *badRequestError
		notConnected    *domain.ProviderNotConnectedError
		credsNotFound   *domain.CredentialsNotFoundError
		credsExpired    *domain.CredentialsExpiredError
		blocked         *domain.ToolBlockedError
		approvalMissing *domain.ApprovalNotFoundError
		resolved        *domain.ApprovalAlreadyResolvedError
		expired         *domain.ApprovalExpiredError
		pending         *domain.ApprovalPendingError
		taskMissing     *domain.TaskNotFoundError
		transition      *domain.InvalidTaskTransitionError
		capacity        *domain.TaskCapacityError
	)

	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest, "bad_request", badReq.msg
	case errors.As(err, &notConnected), errors.As(err, &credsNotFound):
		return http.StatusForbidden, "not_connected", domain.UserMessageOf(err)
	case errors.As(err, &credsExpired):
		return http.StatusForbidden, "credentials_expired", domain.UserMessageOf(err)
	case errors.As(err, &blocked):
		return http.StatusForbidden, "blocked", domain.UserMessageOf(err)
	case errors.As(err, &approvalMissing):
		return http.StatusNotFound, "approval_not_found", err.Error()
	case errors.As(err, &resolved):
		return http.StatusConflict, "approval_already_resolved", err.Error()
	case errors.As(err, &expired):
		return http.StatusGone, "approval_expired", domain.UserMessageOf(err)
	case errors.As(err, &pending):
		return http.StatusAccepted, "approval_pending", err.Error()
	case errors.As(err, &taskMissing):
		return http.StatusNotFound, "task_not_found", err.Error()
	case errors.As(err, &transition):
		return http.StatusConflict, "invalid_transition", err.Error()
	case errors.As(err, &capacity):
		return http.StatusServiceUnavailable, "task_capacity", err.Error()
	default:
		return http.StatusInternalServerError, "internal", domain.UserMessageOf(err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.L(r.Context()).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	return nil
}
