// Package api implements the PlantDoc JSON endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	mw "github.com/tphakala/plantdoc/internal/api/middleware"
	"github.com/tphakala/plantdoc/internal/buildinfo"
	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/datastore"
	"github.com/tphakala/plantdoc/internal/diagnosis"
	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/logger"
)

// Diagnoser runs the prediction pipeline.
type Diagnoser interface {
	Diagnose(ctx context.Context, plant string, images ...[]byte) (*diagnosis.Result, error)
}

// ModelStatus reports which classifiers are available.
type ModelStatus interface {
	Plants() []string
	Loaded() int
}

// Controller holds the dependencies of the API handlers.
type Controller struct {
	Echo      *echo.Echo
	Group     *echo.Group
	DS        datastore.Interface
	Diagnosis Diagnoser
	Models    ModelStatus
	Settings  *conf.Settings
	BuildInfo *buildinfo.Context

	metricsHandler http.Handler
	hostStats      HostStatsFunc
	log            logger.Logger
	startTime      time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithBuildInfo sets the version reported by the health endpoint.
func WithBuildInfo(info *buildinfo.Context) Option {
	return func(c *Controller) { c.BuildInfo = info }
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(c *Controller) { c.metricsHandler = h }
}

// WithHostStats replaces the host memory probe of the health endpoint.
func WithHostStats(fn HostStatsFunc) Option {
	return func(c *Controller) { c.hostStats = fn }
}

// New creates the controller and registers its routes on e.
func New(e *echo.Echo, ds datastore.Interface, diag Diagnoser, models ModelStatus, settings *conf.Settings, opts ...Option) *Controller {
	c := &Controller{
		Echo:      e,
		Group:     e.Group("/api/v1"),
		DS:        ds,
		Diagnosis: diag,
		Models:    models,
		Settings:  settings,
		hostStats: virtualMemory,
		log:       GetLogger(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Echo.GET("/", c.Root)
	c.Echo.GET("/test_db", c.PlantList)
	if c.metricsHandler != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metricsHandler))
	}

	c.Group.GET("/plant_list", c.PlantList)
	c.Group.POST("/uploadfile", c.UploadFile)
	c.Group.POST("/disease_detail", c.DiseaseDetail)
	c.Group.POST("/disease_list", c.DiseaseList)
	c.Group.GET("/news_list", c.NewsList)
	c.Group.POST("/news", c.AddNews)
	c.Group.GET("/health", c.HealthCheck)
}

// Root answers the liveness probe of the original clients.
func (c *Controller) Root(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Hello World"})
}

// ErrorResponse is the JSON envelope of every error.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// HandleError writes the error envelope. code is the HTTP status; the
// envelope code is the error's own code when it carries one.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := ErrorResponse{
		Error:         message,
		Message:       message,
		Code:          code,
		CorrelationID: mw.CorrelationID(ctx),
	}
	if err != nil {
		// Server-side failures keep their detail in the log only.
		if code < http.StatusInternalServerError {
			resp.Error = err.Error()
		}
		if appCode := errors.CodeOf(err); appCode != 0 {
			resp.Code = appCode
		}
	}

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("status", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		c.log.Error("API error", fields...)
	} else {
		c.log.Debug("API client error", fields...)
	}

	return ctx.JSON(code, resp)
}

// handleError maps err to its HTTP status and writes the envelope.
func (c *Controller) handleError(ctx echo.Context, err error, message string) error {
	return c.HandleError(ctx, err, message, statusFor(err))
}
