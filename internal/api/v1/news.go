package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/plantdoc/internal/errors"
)

// NewsRequest is the body of POST /news, as JSON or form fields.
type NewsRequest struct {
	Title string `json:"title" form:"title"`
	Body  string `json:"body" form:"body"`
}

// NewsList returns all news items, newest first.
func (c *Controller) NewsList(ctx echo.Context) error {
	news, err := c.DS.AllNews(ctx.Request().Context())
	if err != nil {
		return c.handleError(ctx, err, "No news found")
	}
	return ctx.JSON(http.StatusOK, news)
}

// AddNews creates a news item and returns it with status 201.
func (c *Controller) AddNews(ctx echo.Context) error {
	var req NewsRequest
	if err := ctx.Bind(&req); err != nil {
		bindErr := errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
		return c.handleError(ctx, bindErr, "Invalid news payload")
	}

	item, err := c.DS.AddNews(ctx.Request().Context(), req.Title, req.Body)
	if err != nil {
		return c.handleError(ctx, err, "Failed to add news")
	}
	return ctx.JSON(http.StatusCreated, item)
}
