package provider

import (
	"errors"
	"fmt"
)

// ErrConfiguration indicates a provider could not be constructed or called
// because of bad configuration: missing API key, unknown model, or an
// unsupported provider name. Checked with errors.Is.
var ErrConfiguration = errors.New("provider configuration error")

// ErrUnavailable indicates a backend could not be reached or kept failing
// after retries. Checked with errors.Is.
var ErrUnavailable = errors.New("provider unavailable")

// ConfigurationError wraps a construction-time failure with the provider
// name that caused it.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// configurationPatterns groups error substrings that indicate a
// misconfigured call rather than an outage: bad credentials or an
// unknown model. Matched case-insensitively against err.Error().
var configurationPatterns = [][]string{
	{"401", "403", "unauthorized", "forbidden", "permission denied"}, // bad credentials
	{"api key", "api_key", "invalid credential"},                     // key problems
	{"404", "model not found", "unknown model"},                      // unknown model
}

// WrapCallError converts a failed backend call into the error kind
// callers dispatch on. Credential and unknown-model failures become a
// ConfigurationError, since retrying can never fix them; everything else
// becomes an UnavailableError carrying how many texts were embedded
// before the failure.
func WrapCallError(name, op string, embedded int, err error) error {
	errStr := err.Error()
	for _, group := range configurationPatterns {
		if containsAny(errStr, group...) {
			return &ConfigurationError{Provider: name, Reason: fmt.Sprintf("%s: %v", op, err)}
		}
	}
	return &UnavailableError{Provider: name, Op: op, Embedded: embedded, Err: err}
}

// UnavailableError wraps a runtime backend failure. Embedded carries the
// number of texts successfully embedded before the failure, so callers can
// report partial ingestion progress.
type UnavailableError struct {
	Provider string
	Op       string
	Embedded int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}
