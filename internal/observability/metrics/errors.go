package metrics

import "github.com/tphakala/plantdoc/internal/errors"

// errorType returns the label value used for err in *_errors_total series.
func errorType(err error) string {
	if err == nil {
		return "none"
	}
	var enhanced *errors.EnhancedError
	if errors.As(err, &enhanced) && enhanced.Category != "" {
		return string(enhanced.Category)
	}
	return string(errors.CategoryGeneric)
}
