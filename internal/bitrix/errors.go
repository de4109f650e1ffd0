package bitrix

import (
	"errors"
	"fmt"
)

// Common client errors. Timeouts and transport failures are distinguished so
// callers can tell a slow CRM from an unreachable one; both are call-level
// failures for the production flow.
var (
	ErrUnavailable = errors.New("bitrix api unavailable")
	ErrTimeout     = errors.New("bitrix api timeout")
)

// APIError is an error returned by the CRM itself, with its code and
// human-readable description.
type APIError struct {
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("bitrix api error %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("bitrix api error %s", e.Code)
}
