// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-approval/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ReceiptFiles serves locally stored receipts behind signed links
type ReceiptFiles interface {
	Open(ctx context.Context, key, expires, signature string) ([]byte, error)
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxUploadBytes caps a multipart request body
	MaxUploadBytes int64

	// MaxExportBytes caps the export archive, which is built in memory
	MaxExportBytes int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   120 * time.Second,
		MaxUploadBytes: 5*(10<<20) + 1<<20,
		MaxExportBytes: 256 << 20,
	}
}

// Services groups the application services exposed over HTTP.
// Files is nil unless receipts are kept on the local provider.
type Services struct {
	Submission service.SubmissionService
	Receipts   service.ReceiptService
	Drafts     service.DraftService
	Approvals  service.ApprovalService
	Exports    service.ExportService
	Files      ReceiptFiles
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.MaxMultipartMemory = 8 << 20

	server := &Server{
		config:   config,
		router:   router,
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
			"user", c.GetHeader(HeaderUserEmail),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.config.MaxUploadBytes, s.config.MaxExportBytes, s.logger)

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	{
		// Reports
		api.POST("/reports/finalize", h.FinalizeReport)
		api.GET("/reports/:id", h.GetReport)
		api.GET("/reports/:id/preview", h.PreviewReport)
		api.POST("/reports/:id/receipts", h.UploadReceipts)
		api.GET("/reports/:id/receipts", h.ListReceipts)
		api.GET("/reports/:id/receipts/:receiptId/url", h.ReceiptURL)

		// Draft store
		api.POST("/drafts/:draftId/expenses/:expenseId/receipts", h.AttachDraftReceipts)
		api.GET("/drafts/:draftId/receipts", h.ListDraftReceipts)
		api.GET("/drafts/:draftId/expenses/:expenseId/receipts/:receiptId", h.GetDraftReceipt)
		api.DELETE("/drafts/:draftId/expenses/:expenseId/receipts", h.RemoveDraftReceipts)
		api.DELETE("/drafts/:draftId", h.ClearDraft)

		// Approvals
		api.GET("/approvals", h.ListApprovals)
		api.POST("/approvals/:reportId/decision", h.Decide)

		// Exports
		api.GET("/exports", h.Export)

		// Local receipt downloads
		api.GET("/receipts/files/*key", h.ServeReceiptFile)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
