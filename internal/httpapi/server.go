// Package httpapi exposes the compliance service as a JSON API over echo.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"auditflow/internal/compliance"
	"auditflow/internal/model"
)

// DefaultMaxUploadBytes caps multipart evidence requests.
const DefaultMaxUploadBytes = 32 << 20

// Options configures a Server.
type Options struct {
	Service  *compliance.Service
	Tokens   *TokenIssuer
	Renderer compliance.CertificateRenderer
	Logger   compliance.Logger
	Metrics  *Metrics

	// MaxUploadBytes limits request bodies of upload endpoints. Zero means
	// DefaultMaxUploadBytes.
	MaxUploadBytes int64
}

// Server routes HTTP requests to the compliance service.
type Server struct {
	e         *echo.Echo
	svc       *compliance.Service
	tokens    *TokenIssuer
	renderer  compliance.CertificateRenderer
	logger    compliance.Logger
	metrics   *Metrics
	maxUpload int64
}

// NewServer builds the echo instance and registers every route.
func NewServer(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("service is required")
	}
	if opts.Tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if opts.Renderer == nil {
		return nil, fmt.Errorf("certificate renderer is required")
	}
	if opts.Logger == nil {
		opts.Logger = compliance.NewNopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics("auditflow")
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{
		e:         echo.New(),
		svc:       opts.Service,
		tokens:    opts.Tokens,
		renderer:  opts.Renderer,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		maxUpload: opts.MaxUploadBytes,
	}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.HTTPErrorHandler = s.handleError

	s.e.Use(middleware.Recover())
	s.e.Use(s.requestID)
	s.e.Use(s.logRequests)
	s.e.Use(s.metrics.Middleware)

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	s.e.GET("/metrics", s.metrics.Handler())

	api := s.e.Group("/api/v1")
	api.POST("/register", s.register)
	api.POST("/login", s.login)

	authed := api.Group("", s.requireAuth)
	authed.GET("/me", s.getMe)
	authed.PUT("/me", s.updateMe)

	authed.POST("/connections", s.requestConnection)
	authed.GET("/connections", s.listConnections)
	authed.POST("/connections/:id/accept", s.acceptConnection)
	authed.POST("/connections/:id/reject", s.rejectConnection)
	authed.GET("/partners", s.listPartners)

	authed.GET("/templates", s.listTemplates)
	authed.GET("/templates/items", s.listTemplateItems)

	buyer := requireRole(model.RoleBuyer)
	supplier := requireRole(model.RoleSupplier)
	upload := middleware.BodyLimit(fmt.Sprintf("%dB", s.maxUpload))

	authed.PUT("/me/photo", s.updateMyPhoto, upload)
	authed.GET("/profiles/:id/photo", s.getProfilePhoto)

	authed.POST("/audits", s.createAudit, buyer)
	authed.GET("/audits", s.listAudits)
	authed.GET("/audits/:id", s.getAudit)
	authed.GET("/audits/:id/items", s.getAuditItems)
	authed.GET("/audits/:id/custom-items", s.getCustomItems)
	authed.POST("/audits/:id/items", s.addAuditItems, buyer)
	authed.POST("/audits/:id/submit", s.submitAudit, supplier)
	authed.POST("/audits/:id/custom-items", s.addCustomItem, supplier, upload)
	authed.GET("/audits/:id/certificate", s.getCertificate)

	authed.GET("/items/:id", s.getItem)
	authed.POST("/items/:id/evidence", s.submitEvidence, supplier, upload)
	authed.POST("/items/:id/review", s.reviewItem, buyer)
	authed.GET("/items/:id/comments", s.listComments)
	authed.POST("/items/:id/comments", s.addComment)
	authed.GET("/items/:id/files/:n", s.downloadEvidence)
}

// ServeHTTP lets the server be used as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("api listening", "addr", addr)
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(echo.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, id)
		c.Set("request_id", id)
		return next(c)
	}
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		req := c.Request()
		s.logger.Debug("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", c.Response().Status,
			"duration", time.Since(start),
			"request_id", c.Get("request_id"),
		)
		return nil
	}
}
