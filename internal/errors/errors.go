// Package errors provides categorized errors with optional telemetry
// reporting. Errors are built with a fluent builder:
//
//	errors.New(err).Component("datastore").Category(errors.CategoryDatabase).Build()
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ErrorCategory groups errors for status mapping, metrics and telemetry.
type ErrorCategory string

const (
	CategoryModelInit        ErrorCategory = "model-initialization"
	CategoryModelLoad        ErrorCategory = "model-loading"
	CategoryModelUnavailable ErrorCategory = "model-unavailable"
	CategoryLabelLoad        ErrorCategory = "label-loading"
	CategoryValidation       ErrorCategory = "validation"
	CategoryDegenerate       ErrorCategory = "degenerate-input"
	CategoryImageDecode      ErrorCategory = "image-decode"
	CategoryFileIO           ErrorCategory = "file-io"
	CategoryNetwork          ErrorCategory = "network"
	CategoryDatabase         ErrorCategory = "database"
	CategoryHTTP             ErrorCategory = "http-request"
	CategoryConfiguration    ErrorCategory = "configuration"
	CategorySystem           ErrorCategory = "system-resource"
	CategoryGeneric          ErrorCategory = "generic"
	CategoryNotFound         ErrorCategory = "not-found"
	CategoryConflict         ErrorCategory = "conflict"
	CategoryProcessing       ErrorCategory = "processing"
	CategoryState            ErrorCategory = "state"
	CategoryTimeout          ErrorCategory = "timeout"
	CategoryCancellation     ErrorCategory = "cancellation"
)

// Priorities accepted by ErrorBuilder.Priority.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with the component it was raised in, a
// category, an optional client-facing code and free-form context.
type EnhancedError struct {
	Err       error
	Category  ErrorCategory
	Priority  string // empty unless set explicitly
	Code      int    // exposed to API clients when non-zero
	Context   map[string]any
	Timestamp time.Time

	component string
	mu        sync.RWMutex
	reported  bool
}

func (ee *EnhancedError) Error() string { return ee.Err.Error() }
func (ee *EnhancedError) Unwrap() error { return ee.Err }

// Is matches another EnhancedError by category, otherwise defers to the
// wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return Is(ee.Err, target)
}

// GetComponent returns the component name.
func (ee *EnhancedError) GetComponent() string { return ee.component }

// GetPriority returns the explicit priority, or "".
func (ee *EnhancedError) GetPriority() string { return ee.Priority }

// GetTimestamp returns when the error was built.
func (ee *EnhancedError) GetTimestamp() time.Time { return ee.Timestamp }

// GetContext returns a copy of the error context.
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	if ee.Context == nil {
		return nil
	}
	out := make(map[string]any, len(ee.Context))
	maps.Copy(out, ee.Context)
	return out
}

// MarkReported records that the error was sent to telemetry.
func (ee *EnhancedError) MarkReported() {
	ee.mu.Lock()
	ee.reported = true
	ee.mu.Unlock()
}

// IsReported reports whether MarkReported was called.
func (ee *EnhancedError) IsReported() bool {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	return ee.reported
}

// ErrorBuilder collects the fields of an EnhancedError.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	code      int
	context   map[string]any
}

// New starts building an EnhancedError around err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf is New(fmt.Errorf(format, args...)).
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Priority sets the explicit priority override for the error.
// Unknown values fall back to medium.
func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		eb.priority = priority
	default:
		if priority != "" {
			eb.priority = PriorityMedium
		}
	}
	return eb
}

// Code sets a numeric error code that is surfaced to API clients.
func (eb *ErrorBuilder) Code(code int) *ErrorBuilder {
	eb.code = code
	return eb
}

// Context adds one key to the error context.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// ModelContext adds the plant and the artifact format. The artifact path
// itself is not recorded.
func (eb *ErrorBuilder) ModelContext(plant, modelPath string) *ErrorBuilder {
	if plant != "" {
		eb.Context("plant", plant)
	}
	if modelPath != "" {
		eb.Context("model_format", fileExtension(modelPath))
	}
	return eb
}

// FileContext adds the extension and a size bucket of a file.
func (eb *ErrorBuilder) FileContext(filePath string, fileSize int64) *ErrorBuilder {
	if filePath != "" {
		eb.Context("file_extension", fileExtension(filePath))
	}
	if fileSize > 0 {
		eb.Context("file_size_category", sizeBucket(fileSize))
	}
	return eb
}

// Timing records an operation and how long it ran.
func (eb *ErrorBuilder) Timing(operation string, duration time.Duration) *ErrorBuilder {
	return eb.Context("operation", operation).Context("duration_ms", duration.Milliseconds())
}

// Build creates the EnhancedError. When a telemetry reporter or hook is
// active, a missing component is detected from the call stack, a missing
// category is guessed from the message and the error is reported.
func (eb *ErrorBuilder) Build() *EnhancedError {
	if eb.err == nil {
		eb.err = NewStd("unspecified error")
	}

	reporting := hasActiveReporting.Load()
	component, category := eb.component, eb.category
	if component == "" && reporting {
		component = detectComponent()
	}
	if component == "" {
		component = ComponentUnknown
	}
	if category == "" {
		category = inheritCategory(eb.err)
		if category == CategoryGeneric && reporting {
			category = guessCategory(eb.err, component)
		}
	}

	ee := &EnhancedError{
		Err:       eb.err,
		Category:  category,
		Priority:  eb.priority,
		Code:      eb.code,
		Context:   eb.context,
		Timestamp: time.Now(),
		component: component,
	}
	if reporting {
		reportToTelemetry(ee)
	}
	return ee
}

func inheritCategory(err error) ErrorCategory {
	var inner *EnhancedError
	if stderrors.As(err, &inner) && inner.Category != "" {
		return inner.Category
	}
	return CategoryGeneric
}

// componentPackages maps package path fragments to component names,
// checked in order against the caller's frames.
var componentPackages = []struct{ fragment, component string }{
	{"internal/classifier", "classifier"},
	{"internal/imageprep", "imageprep"},
	{"internal/fusion", "fusion"},
	{"internal/diagnosis", "diagnosis"},
	{"internal/datastore", "datastore"},
	{"internal/conf", "configuration"},
	{"internal/telemetry", "telemetry"},
	{"internal/api", "api"},
}

func detectComponent() string {
	pcs := make([]uintptr, 32)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(3, pcs)])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.Function, "/internal/errors.") {
			for _, p := range componentPackages {
				if strings.Contains(frame.Function, p.fragment) {
					return p.component
				}
			}
		}
		if !more {
			return ""
		}
	}
}

// messageCategories is checked in order; every keyword of an entry must
// appear in the lowercased message.
var messageCategories = []struct {
	keywords []string
	category ErrorCategory
}{
	{[]string{"model", "load"}, CategoryModelLoad},
	{[]string{"label"}, CategoryLabelLoad},
	{[]string{"decode"}, CategoryImageDecode},
	{[]string{"image"}, CategoryImageDecode},
	{[]string{"connection"}, CategoryNetwork},
	{[]string{"timeout"}, CategoryNetwork},
	{[]string{"mismatch"}, CategoryValidation},
	{[]string{"invalid"}, CategoryValidation},
	{[]string{"file"}, CategoryFileIO},
	{[]string{"open"}, CategoryFileIO},
}

var componentCategories = map[string]ErrorCategory{
	"classifier":    CategoryModelInit,
	"datastore":     CategoryDatabase,
	"api":           CategoryHTTP,
	"configuration": CategoryConfiguration,
}

func guessCategory(err error, component string) ErrorCategory {
	msg := strings.ToLower(err.Error())
	for _, mc := range messageCategories {
		if containsAll(msg, mc.keywords) {
			return mc.category
		}
	}
	if c, ok := componentCategories[component]; ok {
		return c
	}
	return CategoryGeneric
}

func containsAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}

func fileExtension(path string) string {
	if i := strings.LastIndexByte(path, '.'); i > 0 && i < len(path)-1 {
		return strings.ToLower(path[i+1:])
	}
	return "none"
}

func sizeBucket(size int64) string {
	const kb, mb = 1 << 10, 1 << 20
	switch {
	case size < kb:
		return "tiny"
	case size < mb:
		return "small"
	case size < 10*mb:
		return "medium"
	case size < 100*mb:
		return "large"
	default:
		return "very-large"
	}
}

// ValidationError creates a validation error
func ValidationError(message string) *EnhancedError {
	return New(NewStd(message)).
		Category(CategoryValidation).
		Build()
}

// NewStd is errors.New from the standard library. Use it for sentinels.
func NewStd(text string) error {
	return stderrors.New(text)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}

func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// IsCategory checks if an error is an EnhancedError with the specified category.
func IsCategory(err error, category ErrorCategory) bool {
	var enhancedErr *EnhancedError
	return As(err, &enhancedErr) && enhancedErr.Category == category
}

// IsNotFound checks if an error is an EnhancedError with CategoryNotFound.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}

// CodeOf returns the numeric code of the first EnhancedError in err's tree
// that carries one, or 0.
func CodeOf(err error) int {
	for err != nil {
		var enhancedErr *EnhancedError
		if !As(err, &enhancedErr) {
			return 0
		}
		if enhancedErr.Code != 0 {
			return enhancedErr.Code
		}
		err = enhancedErr.Err
	}
	return 0
}
