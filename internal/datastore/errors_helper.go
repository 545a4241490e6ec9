package datastore

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/privacy"
)

var (
	// ErrNotFound signals that a read matched no rows.
	ErrNotFound = errors.NewStd("not found")
	// ErrNotConnected is returned when the store was not opened.
	ErrNotConnected = errors.NewStd("database connection is not initialized")
)

// notFound builds the absence result of a read.
func notFound(operation, what string, context ...any) error {
	builder := errors.New(fmt.Errorf("%s: %w", what, ErrNotFound)).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("operation", operation)
	return withContext(builder, context).Build()
}

// dbError creates a categorized store failure. Connection strings are
// scrubbed from the message.
func dbError(err error, operation string, context ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(operation, "record", context...)
	}
	builder := errors.New(privacy.Scrub(err)).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)
	return withContext(builder, context).Build()
}

// validationError rejects invalid write input.
func validationError(message, field string) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}

func withContext(builder *errors.ErrorBuilder, context []any) *errors.ErrorBuilder {
	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}
	return builder
}
