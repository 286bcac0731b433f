package storage

import (
	"fmt"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// Storage errors wrap the shared taxonomy so the HTTP layer can classify them.
var (
	// ErrPathEscape is returned when a relative path resolves outside the base directory
	ErrPathEscape = fmt.Errorf("%w: path escapes base directory", entity.ErrValidation)

	// ErrObjectNotFound is returned when a stored object does not exist
	ErrObjectNotFound = fmt.Errorf("%w: stored object", entity.ErrNotFound)

	// ErrInvalidSignature is returned for expired or tampered download links
	ErrInvalidSignature = fmt.Errorf("%w: invalid or expired signature", entity.ErrForbidden)
)
