package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ErrUnauthorized matches any HTTPError with status 401 or 403.
var ErrUnauthorized = errors.New("unauthorized")

// HTTPError is returned for every response with a status code >= 400.
type HTTPError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
	Body       []byte
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: node returned %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: node returned %d", e.Method, e.Path, e.StatusCode)
}

func (e *HTTPError) Is(target error) bool {
	if target == ErrUnauthorized {
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

func newHTTPError(method string, path string, status int, body []byte) *HTTPError {
	ret := &HTTPError{
		StatusCode: status,
		Method:     method,
		Path:       path,
		Body:       body,
	}

	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		ret.Message = errResp.Message
		if ret.Message == "" {
			ret.Message = errResp.Error
		}
	}
	return ret
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
