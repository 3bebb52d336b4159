// Package api exposes the Reefey analysis pipeline over HTTP.
package api

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gocache "github.com/patrickmn/go-cache"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/datastore"
	"github.com/Reefey/Backend-sub000/internal/logging"
	"github.com/Reefey/Backend-sub000/internal/observability"
	"github.com/Reefey/Backend-sub000/internal/pipeline"
	"github.com/Reefey/Backend-sub000/internal/quota"
)

const (
	responseCacheTTL     = 5 * time.Minute
	responseCacheCleanup = 10 * time.Minute
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings
	Gate     *quota.Gate
	Pipeline *pipeline.Orchestrator

	apiLogger      *slog.Logger
	apiLevelVar    *slog.LevelVar
	apiLoggerClose func() error
	responseCache  *gocache.Cache
	metrics        *observability.Metrics
	startTime      time.Time
}

// CustomValidator adapts go-playground/validator to the Echo Validator
// interface.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator.
func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}

// New creates the API controller and registers all routes on the given Echo
// instance.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	gate *quota.Gate, orchestrator *pipeline.Orchestrator,
	m *observability.Metrics) (*Controller, error) {

	c := &Controller{
		Echo:          e,
		DS:            ds,
		Settings:      settings,
		Gate:          gate,
		Pipeline:      orchestrator,
		responseCache: gocache.New(responseCacheTTL, responseCacheCleanup),
		metrics:       m,
		startTime:     time.Now(),
	}

	c.apiLevelVar = new(slog.LevelVar)
	c.apiLevelVar.Set(slog.LevelInfo)
	if settings.WebServer.Debug {
		c.apiLevelVar.Set(slog.LevelDebug)
	}

	apiLogger, closeFunc, err := logging.NewFileLogger("logs/web.log", "api", c.apiLevelVar)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: c.apiLevelVar})
		c.apiLogger = slog.New(fbHandler).With("service", "api")
		c.apiLoggerClose = func() error { return nil }
	} else {
		c.apiLogger = apiLogger
		c.apiLoggerClose = closeFunc
	}

	e.Validator = &CustomValidator{validator: validator.New()}

	c.Group = e.Group("/api/v1")
	c.Group.Use(middleware.Recover())
	c.Group.Use(middleware.CORS())
	// Uploads dominate request size; everything else is small JSON.
	c.Group.Use(middleware.BodyLimit(fmt.Sprintf("%dM", conf.MaxUploadSizeMB)))
	c.Group.Use(c.LoggingMiddleware())

	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	c.initRoutes()

	return c, nil
}

// initRoutes registers all endpoint groups.
func (c *Controller) initRoutes() {
	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"analysis routes", c.initAnalyzeRoutes},
		{"quota routes", c.initQuotaRoutes},
		{"sighting routes", c.initSightingRoutes},
		{"species routes", c.initSpeciesRoutes},
		{"system routes", c.initSystemRoutes},
	}

	for _, initializer := range routeInitializers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.apiLogger.Error("Panic during route initialization",
						"routes", initializer.name,
						"panic", r)
				}
			}()
			initializer.fn()
			c.apiLogger.Debug("Initialized routes", "routes", initializer.name)
		}()
	}
}

// LoggingMiddleware logs each request and feeds the HTTP metrics.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			req := ctx.Request()
			res := ctx.Response()
			elapsed := time.Since(start)

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.Int64("latency_ms", elapsed.Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "API Request", attrs...)

			if c.metrics != nil && c.metrics.HTTP != nil {
				// ctx.Path is the route template, keeps label cardinality bounded.
				c.metrics.HTTP.RecordRequest(req.Method, ctx.Path(), res.Status, elapsed.Seconds())
			}

			return err
		}
	}
}

// Shutdown releases controller resources.
func (c *Controller) Shutdown() {
	if c.responseCache != nil {
		c.responseCache.Flush()
	}
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			c.apiLogger.Error("Failed to close API log file", "error", err)
		}
	}
}

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlationId"`
}

// NewErrorResponse creates an error response with a fresh correlation ID.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a short random identifier for error tracking.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs the error and writes a typed error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	c.apiLogger.Error("API Error",
		"correlation_id", errorResp.CorrelationID,
		"message", message,
		"error", errorStr,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP(),
	)

	return ctx.JSON(code, errorResp)
}
