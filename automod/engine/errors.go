package engine

import (
	"errors"
	"fmt"
)

var (
	// invalid rule kind, punishment, or parameters at add-time
	ErrConfiguration = errors.New("invalid automod configuration")
	// delete or lookup referencing an unknown rule id
	ErrRuleNotFound = errors.New("automod rule not found")
	// registry writes are refused until the stored configuration has been loaded
	ErrNotWarm = errors.New("automod registry not warm")

	// platform refused the action (missing permission, target outranks bot, etc)
	ErrPermissionDenied = errors.New("permission denied by platform")
	// platform object (member, message, overwrite) doesn't exist
	ErrNotFound = errors.New("not found on platform")
	// network, rate-limit, or server-side failure; not retried here
	ErrTransient = errors.New("transient platform error")
)

type ConfigError struct {
	Field  string
	Detail string
}

func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Detail: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// Short label for an error, for metrics and log entries.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPermissionDenied):
		return "permission-denied"
	case errors.Is(err, ErrNotFound):
		return "not-found"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "other"
	}
}
