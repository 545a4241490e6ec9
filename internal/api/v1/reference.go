package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/plantdoc/internal/datastore"
	"github.com/tphakala/plantdoc/internal/errors"
)

// PlantList returns every plant name. Also served at /test_db.
func (c *Controller) PlantList(ctx echo.Context) error {
	plants, err := c.DS.AllPlants(ctx.Request().Context())
	if err != nil {
		return c.handleError(ctx, err, "No plants found")
	}
	return ctx.JSON(http.StatusOK, plants)
}

// DiseaseList returns the diseases of form field plant_name with their
// picture URLs. An unknown plant yields an empty list.
func (c *Controller) DiseaseList(ctx echo.Context) error {
	plant := strings.TrimSpace(ctx.FormValue("plant_name"))
	if plant == "" {
		return c.handleError(ctx, missingField("plant_name"), "Missing plant name")
	}

	diseases, err := c.DS.DiseasesForPlant(ctx.Request().Context(), plant, datastore.WithPictures)
	switch {
	case errors.IsNotFound(err):
		return ctx.JSON(http.StatusOK, []datastore.DiseaseSummary{})
	case err != nil:
		return c.handleError(ctx, err, "Failed to load diseases")
	}
	return ctx.JSON(http.StatusOK, diseases)
}

// DiseaseDetail returns the reference entry of disease_name for
// plant_name. Both fields are required since disease names repeat across
// plants.
func (c *Controller) DiseaseDetail(ctx echo.Context) error {
	disease := strings.TrimSpace(ctx.FormValue("disease_name"))
	if disease == "" {
		return c.handleError(ctx, missingField("disease_name"), "Missing disease name")
	}
	plant := strings.TrimSpace(ctx.FormValue("plant_name"))
	if plant == "" {
		return c.handleError(ctx, missingField("plant_name"), "Missing plant name")
	}

	detail, err := c.DS.DiseaseDetail(ctx.Request().Context(), disease, plant)
	if err != nil {
		return c.handleError(ctx, err, "Disease not found")
	}
	return ctx.JSON(http.StatusOK, detail)
}
