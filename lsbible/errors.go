package lsbible

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument is returned for arguments rejected before any request
// is made.
var ErrInvalidArgument = errors.New("lsbible: invalid argument")

// APIError reports a non-2xx answer from the upstream API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("lsbible: upstream returned %d", e.StatusCode)
	}
	return fmt.Sprintf("lsbible: upstream returned %d: %s", e.StatusCode, body)
}

func invalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
