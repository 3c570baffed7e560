package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Error taxonomy shared by the codec, the pipeline and the batch operations.
// Concrete errors wrap one of these so callers can classify with errors.Is.
var (
	// ErrDecode marks a malformed region container or chunk slot.
	ErrDecode = errors.New("decode error")
	// ErrParse marks user supplied filter or field text that failed validation.
	ErrParse = errors.New("parse error")
	// ErrIO marks a read, write or rename failure for a region file.
	ErrIO = errors.New("io error")
	// ErrFilenamePattern marks a file whose name is not r.<x>.<z>.mca.
	ErrFilenamePattern = errors.New("filename does not match region pattern")
	// ErrSkipped is returned by a stage that decided a file needs no further work.
	ErrSkipped = errors.New("skipped")
)

// Common path errors used by validation
var (
	ErrPathEmpty      = errors.New("path cannot be empty")
	ErrPathTooLong    = errors.New("path too long (max 4096 characters)")
	ErrPathInvalid    = errors.New("path contains invalid characters")
	ErrSourceNotExist = errors.New("source does not exist")
	ErrDestNotExist   = errors.New("destination does not exist")
)

// ValidationUtils provides common validation utilities used across packages
type ValidationUtils struct{}

// NewValidationUtils creates a new ValidationUtils instance
func NewValidationUtils() *ValidationUtils {
	return &ValidationUtils{}
}

// ValidateContextCancellation checks if context is cancelled and returns appropriate error
func (vu *ValidationUtils) ValidateContextCancellation(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// ValidatePath validates that a path is non-empty, bounded and free of NUL bytes
func (vu *ValidationUtils) ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrPathEmpty
	}
	if len(path) > 4096 {
		return ErrPathTooLong
	}
	if strings.Contains(path, "\x00") {
		return ErrPathInvalid
	}
	return nil
}

// ValidateDirectoryExists validates that a destination directory exists
func (vu *ValidationUtils) ValidateDirectoryExists(path string) error {
	return vu.validateDir(path, ErrDestNotExist)
}

// ValidateSourceExists validates that a source directory exists
func (vu *ValidationUtils) ValidateSourceExists(path string) error {
	return vu.validateDir(path, ErrSourceNotExist)
}

func (vu *ValidationUtils) validateDir(path string, missing error) error {
	if err := vu.ValidatePath(path); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", missing, path)
		}
		return fmt.Errorf("failed to access directory %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	return nil
}

// IsFileLevel reports whether err should fail a single file without touching
// the rest of the batch.
func IsFileLevel(err error) bool {
	return errors.Is(err, ErrIO) || errors.Is(err, ErrDecode) || errors.Is(err, ErrFilenamePattern)
}
