package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a non-2xx answer from the backend. Message is the backend's
// "detail" field when it sent one, otherwise the HTTP status text.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0 for transport errors.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsStatus reports whether err is a backend error with one of codes.
func IsStatus(err error, codes ...int) bool {
	status := StatusOf(err)
	if status == 0 {
		return false
	}
	for _, code := range codes {
		if status == code {
			return true
		}
	}
	return false
}

// IsAuthError reports 401 and 403 answers.
func IsAuthError(err error) bool {
	return IsStatus(err, http.StatusUnauthorized, http.StatusForbidden)
}

// countsAgainstBreaker is true for transport failures and 5xx answers. A 4xx
// means the backend is up and talking.
func countsAgainstBreaker(err error) bool {
	status := StatusOf(err)
	return status == 0 || status >= http.StatusInternalServerError
}
