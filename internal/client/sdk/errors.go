package sdk

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

// ErrPreconditionRequired and ErrPreconditionFailed surface the Manifest
// Service's optimistic-concurrency responses (428/412) to the cycle
// orchestrator so it knows to restart the cycle rather than treat the
// failure as transient or fatal.
var (
	ErrPreconditionRequired = errors.New("sdk: manifest exists, If-Match header is required")
	ErrPreconditionFailed   = errors.New("sdk: If-Match does not match the current manifest ETag")
)

// APIError mirrors the Manifest Service's {code, error} envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("manifest service error: %s - %s", e.Code, e.Message)
}

func handleResponse(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("%s: %w", operation, requestErr)
	}

	switch resp.StatusCode {
	case 428:
		return ErrPreconditionRequired
	case 412:
		return ErrPreconditionFailed
	}

	if resp.IsErrorState() {
		if apiErr, ok := resp.ErrorResult().(*APIError); ok {
			return fmt.Errorf("%s: %w", operation, apiErr)
		}
		return fmt.Errorf("%s: %s", operation, resp.String())
	}

	return nil
}
