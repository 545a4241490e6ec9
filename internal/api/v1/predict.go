package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/plantdoc/internal/errors"
)

// Prediction is one ranked label of an upload response.
type Prediction struct {
	Name       string  `json:"name"`
	Percentage float32 `json:"percentage"`
}

// UploadFile diagnoses one or two leaf photos. Form fields: plant, image1
// and the optional image2. Responds with the top labels, best first.
func (c *Controller) UploadFile(ctx echo.Context) error {
	plant := strings.TrimSpace(ctx.FormValue("plant"))
	if plant == "" {
		return c.handleError(ctx, missingField("plant"), "Missing plant")
	}

	first, err := ctx.FormFile("image1")
	if err != nil {
		return c.handleError(ctx, missingField("image1"), "Missing image")
	}
	images := make([][]byte, 0, 2)
	data, err := readUpload(first)
	if err != nil {
		return c.handleError(ctx, err, "Failed to read image")
	}
	images = append(images, data)

	if second, err := ctx.FormFile("image2"); err == nil {
		data, err := readUpload(second)
		if err != nil {
			return c.handleError(ctx, err, "Failed to read image")
		}
		images = append(images, data)
	}

	result, err := c.Diagnosis.Diagnose(ctx.Request().Context(), plant, images...)
	if err != nil {
		return c.handleError(ctx, err, predictionMessage(err))
	}

	out := make([]Prediction, 0, len(result.Predictions))
	for _, p := range result.Predictions {
		out = append(out, Prediction{Name: p.Label, Percentage: p.Score})
	}
	return ctx.JSON(http.StatusOK, out)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, uploadError(err, fh)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, uploadError(err, fh)
	}
	return data, nil
}

func uploadError(err error, fh *multipart.FileHeader) error {
	return errors.New(err).
		Component("api").
		Category(errors.CategoryValidation).
		FileContext(fh.Filename, fh.Size).
		Build()
}

func predictionMessage(err error) string {
	switch statusFor(err) {
	case http.StatusBadRequest:
		return "Invalid prediction request"
	case http.StatusUnprocessableEntity:
		return "Model returned no usable scores"
	case http.StatusServiceUnavailable:
		return "Prediction canceled"
	default:
		return "Prediction failed"
	}
}
