package storage

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/garyjia/expense-approval/pkg/utils"
	"github.com/google/uuid"
)

const keyPrefix = "receipts"

// ObjectKey builds receipts/<reportId>/<expenseId>/<yyyymmddThhmmss>-<random8>-<fileName>.
// Every segment is sanitized so keys are safe as URL paths and file paths.
func ObjectKey(reportID, expenseID, fileName string, now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s/%s/%s/%s-%s-%s",
		keyPrefix,
		keySegment(reportID),
		keySegment(expenseID),
		now.UTC().Format("20060102T150405"),
		random,
		utils.SanitizeFileName(fileName),
	)
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func keySegment(s string) string {
	s = strings.Trim(unsafeKeyChars.ReplaceAllString(s, "_"), "._")
	if s == "" {
		return "unassigned"
	}
	return s
}

// BuildObjectURL fills a public URL template. A template containing {objectKey}
// gets the key substituted (query-escaped when the template has a query string);
// otherwise the key is appended as a path.
func BuildObjectURL(template, objectKey string) string {
	template = strings.TrimSpace(template)
	if template == "" {
		return objectKey
	}
	if strings.Contains(template, "{objectKey}") {
		escaped := objectKey
		if strings.Contains(template, "?") {
			escaped = url.QueryEscape(objectKey)
		}
		return strings.ReplaceAll(template, "{objectKey}", escaped)
	}
	if strings.Contains(template, "?") {
		return template + url.QueryEscape(objectKey)
	}
	return strings.TrimRight(template, "/") + "/" + objectKey
}
