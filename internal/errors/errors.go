package errors

import (
	"errors"
	"fmt"
)

// Common error types for the shell runtime
var (
	// Discovery errors
	ErrRegistryFetch      = errors.New("registry fetch failed")
	ErrRegistryDecode     = errors.New("registry document malformed")
	ErrDefaultsLoad       = errors.New("default remotes unavailable")
	ErrRuntimeUnavailable = errors.New("federation runtime unavailable")

	// Security rejections
	ErrOriginNotAllowed = errors.New("origin not allowed")
	ErrInvalidOrigin    = errors.New("invalid origin")
	ErrInvalidRedirect  = errors.New("invalid redirect target")

	// Session errors
	ErrRefreshFailed    = errors.New("session refresh failed")
	ErrNotAuthenticated = errors.New("not authenticated")

	// Event errors
	ErrUnknownEvent = errors.New("unknown event")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
