package entity

import "errors"

var (
	// ErrRateLimitExceeded is returned when the creator has already created
	// the maximum number of short links inside the rate-limit window.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrCodeGenerationExhausted is returned when every generated short code collided.
	ErrCodeGenerationExhausted = errors.New("unable to generate unique short code")
	// ErrLinkNotFound is returned when a short code does not exist or has expired.
	// The two cases are deliberately indistinguishable.
	ErrLinkNotFound = errors.New("short link not found")
	// ErrShortCodeExists is returned when attempting to store a short code that is already taken.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrStorageUnavailable wraps every failure of the persistence layer.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrInvalidURL is returned when the original URL is not a well-formed absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidInput is returned for out-of-range arguments such as page sizes or report windows.
	ErrInvalidInput = errors.New("invalid input")
)
