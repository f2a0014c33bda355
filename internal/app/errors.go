package app

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by operations called before Connect.
	ErrNotConnected = errors.New("not connected")

	// ErrInvalidIdentifier is returned for table or column names that cannot be used.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// ErrConnection represents a database connection error.
type ErrConnection struct {
	Cause error
}

func (e *ErrConnection) Error() string {
	return fmt.Sprintf("connection error: %v", e.Cause)
}

func (e *ErrConnection) Unwrap() error {
	return e.Cause
}

// ErrQuery represents a query execution error. Op names the migrator
// operation; Query is the target it ran against.
type ErrQuery struct {
	Op    string
	Query string
	Cause error
}

func (e *ErrQuery) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("query error: %v", e.Cause)
	}
	return fmt.Sprintf("query error: %s: %v", e.Op, e.Cause)
}

func (e *ErrQuery) Unwrap() error {
	return e.Cause
}

// ErrConfig represents a configuration error.
type ErrConfig struct {
	Cause error
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("config error: %v", e.Cause)
}

func (e *ErrConfig) Unwrap() error {
	return e.Cause
}
