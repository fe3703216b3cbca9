package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrConfiguration = errors.New("configuration error")
	ErrMissingField  = errors.New("missing field")
	ErrIndexNotFound = errors.New("index not found")
	ErrProvider      = errors.New("provider error")
	ErrTemporary     = errors.New("temporary failure")
	ErrTimeout       = errors.New("timeout")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// WrapProviderError marks err as a provider failure and, when temporary is set,
// as retry-worthy for callers that care.
func WrapProviderError(operation string, err error, temporary bool) error {
	if err == nil {
		return nil
	}
	if temporary {
		return fmt.Errorf("%s: %w: %w: %w", operation, ErrProvider, ErrTemporary, err)
	}
	return WrapError(ErrProvider, operation, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Missing, ", ")
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

type MissingFieldError struct {
	Source   ChunkSource
	Position int
	Field    string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s record #%d: missing required field %q", e.Source, e.Position, e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

type IndexNotFoundError struct {
	Name string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("vector index %q not found; build it with the offline indexer before starting the API", e.Name)
}

func (e *IndexNotFoundError) Is(target error) bool {
	return target == ErrIndexNotFound
}
