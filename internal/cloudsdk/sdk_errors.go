package cloudsdk

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"
)

var (
	ErrUnauthorized = errors.New("sdk: unauthorized")
	ErrRateLimited  = errors.New("sdk: rate limited")
	ErrServer       = errors.New("sdk: server error")
	ErrBadRequest   = errors.New("sdk: bad request")
	ErrOperation    = errors.New("sdk: operation failed")
	ErrNoTextureID  = errors.New("sdk: texture id not found")
)

// APIError is the error body returned by the API, plus the HTTP status.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
	}
	return fmt.Sprintf("api error: %d %s - %s", e.Status, e.Code, e.Message)
}

// Unwrap maps the status to one of the sentinel errors.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return ErrUnauthorized
	case e.Status == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.Status >= 500:
		return ErrServer
	case e.Status >= 400:
		return ErrBadRequest
	case e.Status == 0 && e.Code != "":
		return ErrOperation
	}
	return nil
}

func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s: %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		apiErr, ok := resp.ErrorResult().(*APIError)
		if !ok || apiErr == nil {
			apiErr = &APIError{Message: http.StatusText(resp.StatusCode)}
		}
		apiErr.Status = resp.StatusCode
		return fmt.Errorf("%s: %w", operation, apiErr)
	}

	return nil
}
