package api

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/flowstate/pkg/registry"
	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

// HTTPError is an error with a status code and a stable machine-readable key.
type HTTPError struct {
	Status int
	Key    string
}

func (e HTTPError) Error() string {
	return e.Key
}

var (
	ErrBadRequest       = HTTPError{Status: http.StatusBadRequest, Key: "bad_request"}
	ErrInvalidPayload   = HTTPError{Status: http.StatusBadRequest, Key: "invalid_payload"}
	ErrPayloadTooLarge  = HTTPError{Status: http.StatusRequestEntityTooLarge, Key: "payload_too_large"}
	ErrNotFound         = HTTPError{Status: http.StatusNotFound, Key: "not_found"}
	ErrMethodNotAllowed = HTTPError{Status: http.StatusMethodNotAllowed, Key: "method_not_allowed"}
	ErrInternal         = HTTPError{Status: http.StatusInternalServerError, Key: "internal_error"}
	ErrUnavailable      = HTTPError{Status: http.StatusServiceUnavailable, Key: "store_unavailable"}
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string             `json:"error"`
	Code  string             `json:"code"`
	State statemachine.State `json:"state,omitempty"`
	// ErrorCode is the numeric engine code (10, 20, 30) for transition errors.
	ErrorCode int                   `json:"error_code,omitempty"`
	Action    statemachine.Action   `json:"action,omitempty"`
	Resolved  statemachine.State    `json:"resolved,omitempty"`
	Actions   []statemachine.Action `json:"actions,omitempty"`
}

// classify maps err to a status code and response body. Engine errors are
// conflicts with the machine's current state; store failures are 503.
func classify(err error) (int, ErrorResponse) {
	var te *statemachine.TransitionError
	if errors.As(err, &te) {
		return http.StatusConflict, ErrorResponse{
			Error:     te.Error(),
			Code:      te.Code.String(),
			ErrorCode: int(te.Code),
			State:     te.State,
			Action:    te.Action,
			Resolved:  te.Resolved,
			Actions:   te.Actions,
		}
	}

	var he HTTPError
	if errors.As(err, &he) {
		return he.Status, ErrorResponse{Error: http.StatusText(he.Status), Code: he.Key}
	}

	switch {
	case errors.Is(err, registry.ErrEmptyName):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "invalid_name"}
	case errors.Is(err, registry.ErrPersist), errors.Is(err, registry.ErrLoad):
		return http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: ErrUnavailable.Key}
	case errors.Is(err, statemachine.ErrImmutable):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "immutable"}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: ErrInternal.Key}
}
