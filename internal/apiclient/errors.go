package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mdobak/go-xerrors"
)

const (
	NetworkErrorMessage = "Network error, please check your connection"
	GenericErrorMessage = "Something went wrong, please try again"
)

var (
	ErrUnauthorized = xerrors.Message("unauthorized")
	ErrForbidden    = xerrors.Message("forbidden")
	ErrNotFound     = xerrors.Message("not found")
	ErrNetwork      = xerrors.Message("network failure")
)

// Error is a failed backend call. Status 0 means the request never got a
// response.
type Error struct {
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("api: %s", e.Message)
	}
	return fmt.Sprintf("api: %d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrNetwork:
		return e.Status == 0
	}
	return false
}

// Message returns the user-facing text of err: the backend detail when there
// is one, fallback otherwise.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

type errorPayload struct {
	Detail json.RawMessage `json:"detail"`
}

type validationIssue struct {
	Msg string `json:"msg"`
}

// parseDetail reads {"detail": "..."} or {"detail": [{"msg": "..."}]}.
func parseDetail(body []byte) string {
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil {
		return detail
	}

	var issues []validationIssue
	if err := json.Unmarshal(payload.Detail, &issues); err == nil {
		for _, issue := range issues {
			if issue.Msg != "" {
				return issue.Msg
			}
		}
	}
	return ""
}

func newResponseError(status int, body []byte) *Error {
	message := parseDetail(body)
	if message == "" {
		message = GenericErrorMessage
	}
	return &Error{Status: status, Message: message}
}

func newNetworkError(cause error) *Error {
	return &Error{Message: NetworkErrorMessage, cause: cause}
}
