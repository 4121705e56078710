package reactivities

import (
	"errors"
	"fmt"
	"net/http"
)

var errNoActiveActivity = errors.New("no active activity")
var errNoSessionUser = errors.New("no session user")
var errNoChannel = errors.New("channel not open")
var errNoProfile = errors.New("no profile loaded")

// remote call failures. StatusCode 0 means no response was received.
type ApiError struct {
	StatusCode  int
	Message     string
	FieldErrors map[string][]string
}

func (self *ApiError) Error() string {
	if self.StatusCode == 0 {
		return fmt.Sprintf("network error: %s", self.Message)
	}
	return fmt.Sprintf("api error (%d): %s", self.StatusCode, self.Message)
}

func IsNetworkError(err error) bool {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 0
	}
	return false
}

func IsValidationError(err error) bool {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusBadRequest && 0 < len(apiErr.FieldErrors)
	}
	return false
}

func IsNotFound(err error) bool {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

func IsServerError(err error) bool {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return 500 <= apiErr.StatusCode
	}
	return false
}
