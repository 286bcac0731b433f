package entity

import "errors"

// Error taxonomy shared by services and the HTTP layer.
// Callers wrap these with fmt.Errorf("%w: ...") and classify with errors.Is.
var (
	// ErrValidation is returned for malformed submission or decision payloads
	ErrValidation = errors.New("validation failed")

	// ErrForbidden is returned when the actor's role is not permitted for a stage
	ErrForbidden = errors.New("not authorized")

	// ErrConflict covers duplicate report ids and out-of-order or repeated decisions
	ErrConflict = errors.New("conflict")

	// ErrNotFound is returned for unknown reports or draft receipts
	ErrNotFound = errors.New("not found")

	// ErrPayloadTooLarge is returned when a receipt exceeds size or count limits
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrUnsupportedMediaType is returned for receipts that are not PDF or image files
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrStorage wraps receipt storage provider failures; the upload may be retried
	ErrStorage = errors.New("storage provider error")
)
