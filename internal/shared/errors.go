package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrRateLimited        = fmt.Errorf("rate limited")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrUnknownProvider    = fmt.Errorf("unknown provider")
	ErrUnsupported        = fmt.Errorf("operation not supported by provider")

	// Persistence errors
	ErrNotFound = fmt.Errorf("record not found")

	// Matching errors
	ErrNoMatch = fmt.Errorf("no match found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// CapabilityError reports an operation a provider does not implement.
//
// It matches [ErrUnsupported] with errors.Is.
type CapabilityError struct {
	Provider  string
	Operation string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: %s does not support %s", ErrUnsupported, e.Provider, e.Operation)
}

func (e *CapabilityError) Unwrap() error {
	return ErrUnsupported
}

// Unsupported returns a [CapabilityError] for provider and operation.
func Unsupported(provider, operation string) error {
	return &CapabilityError{Provider: provider, Operation: operation}
}
