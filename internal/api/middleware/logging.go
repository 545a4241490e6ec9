// Package middleware provides the echo middleware of the PlantDoc server.
package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/plantdoc/internal/logger"
)

// HTTPMetrics receives per-request measurements. A nil recorder is allowed.
type HTTPMetrics interface {
	RequestStarted()
	RecordHTTPRequest(method, path string, statusCode int, durationSeconds float64, size int64)
}

// NewRequestID tags every request with a UUID in X-Request-ID, reused as
// the correlation id of error responses. An incoming id is kept.
func NewRequestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	})
}

// CorrelationID returns the request id assigned by NewRequestID, or a new
// one when the middleware is not installed.
func CorrelationID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return uuid.NewString()
}

// NewRequestLogger logs each request and records HTTP metrics. Paths are
// recorded by route pattern to bound label cardinality.
func NewRequestLogger(log logger.Logger, metrics HTTPMetrics) echo.MiddlewareFunc {
	return NewRequestLoggerWithSkipper(log, metrics, nil)
}

// NewRequestLoggerWithSkipper is NewRequestLogger with a skipper for
// noisy endpoints such as /metrics.
func NewRequestLoggerWithSkipper(log logger.Logger, metrics HTTPMetrics, skipper middleware.Skipper) echo.MiddlewareFunc {
	if skipper == nil {
		skipper = middleware.DefaultSkipper
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}

			start := time.Now()
			if metrics != nil {
				metrics.RequestStarted()
			}

			err := next(c)
			if err != nil {
				// Let echo write the response so the status is final.
				c.Error(err)
			}

			req, res := c.Request(), c.Response()
			latency := time.Since(start)
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}

			if metrics != nil {
				metrics.RecordHTTPRequest(req.Method, path, res.Status, latency.Seconds(), res.Size)
			}

			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("path", req.URL.Path),
				logger.Int("status", res.Status),
				logger.String("ip", c.RealIP()),
				logger.Duration("latency", latency),
				logger.String("correlation_id", res.Header().Get(echo.HeaderXRequestID)),
			}
			if err != nil {
				fields = append(fields, logger.Error(err))
			}

			reqLog := log.WithContext(req.Context())
			switch {
			case res.Status >= 500:
				reqLog.Error("request", fields...)
			case res.Status >= 400:
				reqLog.Warn("request", fields...)
			default:
				reqLog.Info("request", fields...)
			}
			return nil
		}
	}
}
