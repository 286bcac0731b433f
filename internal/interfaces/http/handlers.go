package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/pkg/utils"
)

// Identity headers set by the fronting gateway
const (
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services       Services
	maxUploadBytes int64
	maxExportBytes int64
	logger         Logger
}

// NewHandlers creates a new Handlers instance. Non-positive limits fall back
// to the defaults.
func NewHandlers(services Services, maxUploadBytes, maxExportBytes int64, logger Logger) *Handlers {
	defaults := DefaultServerConfig()
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaults.MaxUploadBytes
	}
	if maxExportBytes <= 0 {
		maxExportBytes = defaults.MaxExportBytes
	}
	return &Handlers{
		services:       services,
		maxUploadBytes: maxUploadBytes,
		maxExportBytes: maxExportBytes,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// DecisionRequest is the body of POST /api/approvals/:reportId/decision
type DecisionRequest struct {
	Stage   string `json:"stage"`
	Action  string `json:"action"`
	Note    string `json:"note,omitempty"`
	Version *int   `json:"version,omitempty"`
}

// ReceiptURLResponse carries a freshly issued receipt link
type ReceiptURLResponse struct {
	ReceiptID int64  `json:"receipt_id"`
	URL       string `json:"url"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// FinalizeReport handles POST /api/reports/finalize
func (h *Handlers) FinalizeReport(c *gin.Context) {
	var req service.FinalizeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: invalid request body: %v", entity.ErrValidation, err))
		return
	}
	if req.EmployeeEmail == "" {
		req.EmployeeEmail = c.GetHeader(HeaderUserEmail)
	}

	report, err := h.services.Submission.Finalize(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: report})
}

// GetReport handles GET /api/reports/:id
func (h *Handlers) GetReport(c *gin.Context) {
	report, err := h.services.Approvals.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"report":          report,
			"total":           report.Total().StringFixed(2),
			"category_totals": report.CategoryTotals(),
		},
	})
}

// PreviewReport handles GET /api/reports/:id/preview
func (h *Handlers) PreviewReport(c *gin.Context) {
	report, err := h.services.Approvals.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.String(http.StatusOK, service.BuildPreview(report))
}

// UploadReceipts handles POST /api/reports/:id/receipts
func (h *Handlers) UploadReceipts(c *gin.Context) {
	files, err := h.readUploadFiles(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	receipts, err := h.services.Receipts.Upload(c.Request.Context(), service.ReceiptUploadInput{
		ReportID:  c.Param("id"),
		ExpenseID: c.PostForm("expenseId"),
		Files:     files,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: receipts})
}

// ListReceipts handles GET /api/reports/:id/receipts
func (h *Handlers) ListReceipts(c *gin.Context) {
	receipts, err := h.services.Receipts.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: receipts})
}

// ReceiptURL handles GET /api/reports/:id/receipts/:receiptId/url
func (h *Handlers) ReceiptURL(c *gin.Context) {
	receiptID, err := strconv.ParseInt(c.Param("receiptId"), 10, 64)
	if err != nil {
		h.fail(c, fmt.Errorf("%w: invalid receipt id", entity.ErrValidation))
		return
	}

	url, err := h.services.Receipts.DownloadURL(c.Request.Context(), c.Param("id"), receiptID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: ReceiptURLResponse{ReceiptID: receiptID, URL: url}})
}

// AttachDraftReceipts handles POST /api/drafts/:draftId/expenses/:expenseId/receipts
func (h *Handlers) AttachDraftReceipts(c *gin.Context) {
	files, err := h.readUploadFiles(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	metas, err := h.services.Drafts.Attach(c.Request.Context(), c.Param("draftId"), c.Param("expenseId"), files)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: metas})
}

// ListDraftReceipts handles GET /api/drafts/:draftId/receipts
func (h *Handlers) ListDraftReceipts(c *gin.Context) {
	staged, err := h.services.Drafts.List(c.Request.Context(), c.Param("draftId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: staged})
}

// GetDraftReceipt handles GET /api/drafts/:draftId/expenses/:expenseId/receipts/:receiptId
func (h *Handlers) GetDraftReceipt(c *gin.Context) {
	blob, err := h.services.Drafts.Get(c.Request.Context(), c.Param("draftId"), c.Param("expenseId"), c.Param("receiptId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", blob.Meta.FileName))
	c.Data(http.StatusOK, blob.Meta.ContentType, blob.Content)
}

// RemoveDraftReceipts handles DELETE /api/drafts/:draftId/expenses/:expenseId/receipts
func (h *Handlers) RemoveDraftReceipts(c *gin.Context) {
	ids := splitList(c.Query("ids"))
	if err := h.services.Drafts.Remove(c.Request.Context(), c.Param("draftId"), c.Param("expenseId"), ids...); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ClearDraft handles DELETE /api/drafts/:draftId
func (h *Handlers) ClearDraft(c *gin.Context) {
	if err := h.services.Drafts.Clear(c.Request.Context(), c.Param("draftId")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ListApprovals handles GET /api/approvals?stage=&status=
func (h *Handlers) ListApprovals(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	stage := strings.ToUpper(strings.TrimSpace(c.Query("stage")))
	if stage == "" {
		stage = entity.StageManager
		if actor.Role == entity.RoleFinance {
			stage = entity.StageFinance
		}
	}
	if !service.CanDecide(actor.Role, stage) {
		h.fail(c, fmt.Errorf("%w: role %q cannot view the %s queue", entity.ErrForbidden, actor.Role, stage))
		return
	}

	reports, err := h.services.Approvals.List(c.Request.Context(), stage, c.Query("status"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: reports})
}

// Decide handles POST /api/approvals/:reportId/decision
func (h *Handlers) Decide(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: invalid request body: %v", entity.ErrValidation, err))
		return
	}

	report, err := h.services.Approvals.Decide(c.Request.Context(), service.DecisionInput{
		ReportID:        c.Param("reportId"),
		Stage:           req.Stage,
		Action:          req.Action,
		Actor:           actor,
		Note:            req.Note,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// Export handles GET /api/exports?start=&end=&employees=a,b
func (h *Handlers) Export(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	if actor.Role != entity.RoleFinance && actor.Role != entity.RoleSuperAdmin {
		h.fail(c, fmt.Errorf("%w: exports are limited to finance", entity.ErrForbidden))
		return
	}

	filter, err := parseExportFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	// buffered so a failure can still be reported as JSON
	buf := &cappedBuffer{limit: h.maxExportBytes}
	if err := h.services.Exports.Export(c.Request.Context(), filter, buf); err != nil {
		if buf.exceeded && !errors.Is(err, entity.ErrPayloadTooLarge) {
			err = fmt.Errorf("%w: %w", errExportTooLarge(buf.limit), err)
		}
		h.fail(c, err)
		return
	}

	name := fmt.Sprintf("expense-export-%s.zip", time.Now().UTC().Format("20060102T150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

// ServeReceiptFile handles GET /api/receipts/files/*key for the local provider
func (h *Handlers) ServeReceiptFile(c *gin.Context) {
	if h.services.Files == nil {
		h.fail(c, fmt.Errorf("%w: receipt files are not served by this provider", entity.ErrNotFound))
		return
	}

	key := strings.TrimPrefix(c.Param("key"), "/")
	content, err := h.services.Files.Open(c.Request.Context(), key, c.Query("expires"), c.Query("signature"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, mimetype.Detect(content).String(), content)
}

// actor reads the caller identity; it writes a 401 and returns false when absent
func (h *Handlers) actor(c *gin.Context) (service.Actor, bool) {
	actor := service.Actor{
		Email: strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserEmail))),
		Role:  strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole))),
	}
	if actor.Email == "" || actor.Role == "" {
		c.JSON(http.StatusUnauthorized, Response{
			Success: false,
			Error:   "missing identity headers",
			Code:    "unauthorized",
		})
		return actor, false
	}
	if err := utils.ValidateEmail(actor.Email); err != nil {
		c.JSON(http.StatusUnauthorized, Response{
			Success: false,
			Error:   err.Error(),
			Code:    "unauthorized",
		})
		return actor, false
	}
	return actor, true
}

// fail writes the error envelope for err
func (h *Handlers) fail(c *gin.Context, err error) {
	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "status", status, "error", err)
	} else {
		h.logger.Warn("Request rejected", "path", c.Request.URL.Path, "status", status, "error", err)
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	c.JSON(status, Response{Success: false, Error: message, Code: code})
}

// statusForError maps the error taxonomy onto HTTP status codes
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, entity.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, entity.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, entity.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, entity.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, "unsupported_media_type"
	case errors.Is(err, entity.ErrStorage):
		return http.StatusBadGateway, "storage_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// cappedBuffer is an in-memory sink that refuses writes past limit
type cappedBuffer struct {
	bytes.Buffer
	limit    int64
	exceeded bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if int64(b.Len())+int64(len(p)) > b.limit {
		b.exceeded = true
		return 0, errExportTooLarge(b.limit)
	}
	return b.Buffer.Write(p)
}

func errExportTooLarge(limit int64) error {
	return fmt.Errorf("%w: export exceeds %d bytes, narrow the date range or employees", entity.ErrPayloadTooLarge, limit)
}
