package storage

import (
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

const (
	// DefaultMaxFileBytes is the per-file receipt limit
	DefaultMaxFileBytes int64 = 10 << 20

	// DefaultMaxFiles is the number of files accepted in one upload call
	DefaultMaxFiles = 5
)

// DefaultAllowedTypes lists the receipt formats accepted: PDF and common images
var DefaultAllowedTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/heic",
	"image/heif",
	"image/tiff",
}

// Policy validates receipt files before they reach any provider or draft store
type Policy struct {
	MaxFileBytes int64
	MaxFiles     int
	allowed      map[string]bool
}

// NewPolicy builds a policy; zero values fall back to the defaults
func NewPolicy(maxFileBytes int64, maxFiles int, allowedTypes []string) Policy {
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	if len(allowedTypes) == 0 {
		allowedTypes = DefaultAllowedTypes
	}

	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(t)] = true
	}
	return Policy{MaxFileBytes: maxFileBytes, MaxFiles: maxFiles, allowed: allowed}
}

// DefaultPolicy returns the 10 MiB / 5 file / PDF+image policy
func DefaultPolicy() Policy {
	return NewPolicy(0, 0, nil)
}

// CheckCount rejects an upload call carrying too many or no files
func (p Policy) CheckCount(n int) error {
	if n == 0 {
		return fmt.Errorf("%w: no files provided", entity.ErrValidation)
	}
	if n > p.MaxFiles {
		return fmt.Errorf("%w: %d files exceeds the limit of %d", entity.ErrPayloadTooLarge, n, p.MaxFiles)
	}
	return nil
}

// CheckSize rejects files above MaxFileBytes. Handlers call it with the
// multipart header size before reading the body.
func (p Policy) CheckSize(fileName string, size int64) error {
	if size > p.MaxFileBytes {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", entity.ErrPayloadTooLarge, fileName, size, p.MaxFileBytes)
	}
	return nil
}

// Check validates one file and returns the content type to store.
// The type is sniffed from the bytes; a declared type, when present,
// must also be on the allow list.
func (p Policy) Check(fileName, declaredType string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("%w: %s is empty", entity.ErrValidation, fileName)
	}
	if err := p.CheckSize(fileName, int64(len(content))); err != nil {
		return "", err
	}

	detected := mimetype.Detect(content)
	contentType := p.match(detected)
	if contentType == "" {
		return "", fmt.Errorf("%w: %s looks like %s; receipts must be PDF or image files",
			entity.ErrUnsupportedMediaType, fileName, detected.String())
	}

	if declared := baseMediaType(declaredType); declared != "" && declared != "application/octet-stream" {
		if !p.allowed[declared] {
			return "", fmt.Errorf("%w: declared type %s for %s", entity.ErrUnsupportedMediaType, declared, fileName)
		}
	}

	return contentType, nil
}

// Allows reports whether a media type is on the allow list
func (p Policy) Allows(contentType string) bool {
	return p.allowed[baseMediaType(contentType)]
}

// match walks the detected type and its parents until one is allowed
func (p Policy) match(detected *mimetype.MIME) string {
	for m := detected; m != nil; m = m.Parent() {
		if t := baseMediaType(m.String()); p.allowed[t] {
			return t
		}
	}
	return ""
}

func baseMediaType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(contentType)
	}
	return strings.ToLower(mediaType)
}

var _ port.UploadPolicy = Policy{}
