// Package utils holds input validation shared by the API surfaces.
package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Limits for client-supplied names and payloads
const (
	MaxIdentifierLength = 128
	MaxPayloadDepth     = 64
	MaxCallArgs         = 32
)

// IdentifierPattern matches plain JavaScript identifiers (ASCII only)
var IdentifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid input")

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalid, fieldName)
	}
	if value == "" {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%w: %s must be at least %d characters", ErrInvalid, fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%w: %s must not exceed %d characters", ErrInvalid, fieldName, maxLen)
	}
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%w: %s contains invalid characters", ErrInvalid, fieldName)
	}
	return nil
}

// ValidateIdentifier checks that name can be used as a global binding.
func ValidateIdentifier(name, fieldName string) error {
	if err := ValidateString(name, fieldName, 1, MaxIdentifierLength, true); err != nil {
		return err
	}
	if !IdentifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %s must be a JavaScript identifier", ErrInvalid, fieldName)
	}
	return nil
}

// ValidateJSONDepth checks that decoded JSON nests no deeper than maxDepth.
func ValidateJSONDepth(data any, maxDepth int) error {
	return checkDepth(data, 0, maxDepth)
}

func checkDepth(data any, currentDepth, maxDepth int) error {
	if currentDepth > maxDepth {
		return fmt.Errorf("%w: nesting depth exceeds maximum %d", ErrInvalid, maxDepth)
	}

	switch v := data.(type) {
	case map[string]any:
		for _, value := range v {
			if err := checkDepth(value, currentDepth+1, maxDepth); err != nil {
				return err
			}
		}
	case []any:
		for _, value := range v {
			if err := checkDepth(value, currentDepth+1, maxDepth); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateCallArgs bounds the argument list of a remote function call.
func ValidateCallArgs(args []any) error {
	if len(args) > MaxCallArgs {
		return fmt.Errorf("%w: at most %d arguments allowed", ErrInvalid, MaxCallArgs)
	}
	return ValidateJSONDepth(args, MaxPayloadDepth)
}
