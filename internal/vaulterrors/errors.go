// Package vaulterrors holds the error taxonomy shared across the vault's
// core packages, following the teacher's internal/errors package: a flat
// block of sentinel errors plus small constructor helpers for messages
// that need a parameter.
package vaulterrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                         = errors.New("no blob or assurance exists for the requested identifier")
	ErrTransport                        = errors.New("transport call failed")
	ErrDecryption                       = errors.New("ciphertext failed to decrypt")
	ErrInvalidFormat                    = errors.New("record failed to decode")
	ErrNotEnoughParity                  = errors.New("not enough shards available to repair")
	ErrUploadExhausted                  = errors.New("all replications refused the locator")
	ErrInsufficientAssuranceReplication = errors.New("fewer than the required replications were confirmed for an assurance slot")
	ErrMetaEntryOverwrite               = errors.New("meta push would violate write-once-read-many semantics")
	ErrInvalidPath                      = errors.New("path fails the format rules")
)

// Transport wraps an underlying transport failure so the core can test
// for ErrTransport with errors.Is while keeping the original cause.
func Transport(cause error) error {
	return fmt.Errorf("%w: %v", ErrTransport, cause)
}

// InvalidFormat wraps a decode failure with the record kind that failed.
func InvalidFormat(kind string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidFormat, kind, cause)
}

// InvalidPath wraps a path validation failure with the offending path.
func InvalidPath(path, reason string) error {
	return fmt.Errorf("%w: %q: %s", ErrInvalidPath, path, reason)
}

// MetaEntryOverwrite wraps the conflict detail for a WORM violation.
func MetaEntryOverwrite(path, reason string) error {
	return fmt.Errorf("%w: %q: %s", ErrMetaEntryOverwrite, path, reason)
}
