package push

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotInitialized is returned when an operation is invoked on a
	// provider (or the orchestrator) before Init has completed successfully.
	ErrNotInitialized = errors.New("push: provider not initialized")

	// ErrAlreadyInitialized is returned by Init on a provider that is
	// already ready. A ready provider must be destroyed before it can be
	// initialized again.
	ErrAlreadyInitialized = errors.New("push: provider already initialized")

	// ErrTokenUnavailable is returned when no registration identifier is
	// available yet, e.g. before the underlying platform has registered.
	ErrTokenUnavailable = errors.New("push: no registration token available")

	// ErrMissingCredential is returned when a privileged operation is
	// attempted without the required server-side credential.
	ErrMissingCredential = errors.New("push: operation requires a server credential")

	// ErrNotSupported is returned when an operation requires a platform
	// feature the current environment does not provide.
	ErrNotSupported = errors.New("push: operation not supported on this platform")
)

// ConfigurationError reports every missing configuration field in one error,
// so callers get complete diagnostics in a single round trip.
type ConfigurationError struct {
	Kind          Kind
	MissingFields []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("push: invalid %s configuration: missing %s",
		e.Kind, strings.Join(e.MissingFields, ", "))
}

// InitError wraps any failure during provider construction or connection.
type InitError struct {
	Kind Kind
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("push: %s provider initialization failed: %v", e.Kind, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// OpError wraps a raw SDK or bridge failure, tagged with the operation that
// failed. Credentials never appear in the message.
type OpError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("push: %s %s failed: %v", e.Kind, e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
