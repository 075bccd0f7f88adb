package service

import "fmt"

// StatusError carries the HTTP status a handler should write along with
// the caller-facing message.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func statusError(status int, message string) *StatusError {
	return &StatusError{Status: status, Message: message}
}
