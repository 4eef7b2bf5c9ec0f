package emt

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated means an authenticated call was attempted with no
// stored token. A login has to happen first.
var ErrNotAuthenticated = errors.New("no access token stored")

// AuthError means the API refused the credentials or the token. Callers
// treat it as "the token is stale, log in again".
type AuthError struct {
	StatusCode int
	Reason     string
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("authentication rejected (HTTP %d): %s", e.StatusCode, e.Reason)
	}
	return "authentication rejected: " + e.Reason
}

// APIError is a business-logic failure signaled inside a 200 response:
// the envelope carries code != "00" plus a description.
type APIError struct {
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EMT API error %s: %s", e.Code, e.Description)
}
