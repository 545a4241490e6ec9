package api

import (
	"net/http"

	"github.com/tphakala/plantdoc/internal/errors"
)

// statusFor maps an error category to the HTTP status of its response.
func statusFor(err error) int {
	var ee *errors.EnhancedError
	if !errors.As(err, &ee) {
		return http.StatusInternalServerError
	}

	switch ee.Category {
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryDegenerate:
		return http.StatusUnprocessableEntity
	case errors.CategoryCancellation, errors.CategoryTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// missingField is the 400 error of an absent form field.
func missingField(name string) error {
	return errors.Newf("%s is required", name).
		Component("api").
		Category(errors.CategoryValidation).
		Context("field", name).
		Build()
}
