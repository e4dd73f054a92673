package dome9

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 512

// APIError is returned for every non-success response from the API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Dome9 API Response unexpected: %s (%s %s)", e.Status, e.Method, e.Path)
}

func newAPIError(method, path string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}
