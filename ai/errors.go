package ai

import "errors"

var (
	// ErrUnavailable indicates the service is refusing calls, for example
	// because its circuit breaker is open.
	ErrUnavailable = errors.New("ai service unavailable")

	// ErrEmptyResponse indicates the model returned no choices.
	ErrEmptyResponse = errors.New("ai service returned no response")

	// ErrMalformedResponse indicates the model's reply could not be decoded
	// after every attempt.
	ErrMalformedResponse = errors.New("ai service returned a malformed response")
)
