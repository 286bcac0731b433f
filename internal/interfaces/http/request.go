package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// readUploadFiles reads the "files" (or single "file") parts of a multipart body
func (h *Handlers) readUploadFiles(c *gin.Context) ([]service.UploadFile, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: request body exceeds %d bytes", entity.ErrPayloadTooLarge, tooLarge.Limit)
		}
		return nil, fmt.Errorf("%w: expected multipart form data: %v", entity.ErrValidation, err)
	}

	headers := make([]*multipart.FileHeader, 0, len(form.File["files"])+len(form.File["file"]))
	headers = append(headers, form.File["files"]...)
	headers = append(headers, form.File["file"]...)
	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		content, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, service.UploadFile{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     content,
		})
	}
	return files, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
	}
	return content, nil
}

// parseExportFilter accepts RFC 3339 timestamps or plain dates; a plain end
// date covers that whole day.
func parseExportFilter(c *gin.Context) (service.ExportFilter, error) {
	var filter service.ExportFilter
	var err error

	if raw := c.Query("start"); raw != "" {
		if filter.Start, _, err = parseTimeParam(raw); err != nil {
			return filter, fmt.Errorf("%w: invalid start %q", entity.ErrValidation, raw)
		}
	}
	if raw := c.Query("end"); raw != "" {
		var dateOnly bool
		if filter.End, dateOnly, err = parseTimeParam(raw); err != nil {
			return filter, fmt.Errorf("%w: invalid end %q", entity.ErrValidation, raw)
		}
		if dateOnly {
			filter.End = filter.End.Add(24*time.Hour - time.Nanosecond)
		}
	}
	filter.Employees = splitList(c.Query("employees"))
	return filter, nil
}

func parseTimeParam(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}
