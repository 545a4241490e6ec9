package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SentryReporter sends built errors to Sentry with scrubbed messages.
type SentryReporter struct {
	enabled bool
}

func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	message := scrubMessageForPrivacy(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))
	component := ee.GetComponent()

	sentry.WithScope(func(scope *sentry.Scope) {
		title := generateErrorTitle(ee)

		scope.SetTag("error_title", title)
		scope.SetTag("component", component)
		scope.SetTag("category", string(ee.Category))
		if ee.Code != 0 {
			scope.SetTag("error_code", fmt.Sprint(ee.Code))
		}

		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrubMessageForPrivacy(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}

		level := getErrorLevel(ee.Category)
		scope.SetLevel(level)
		scope.SetFingerprint([]string{title, component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = level
		event.Exception = []sentry.Exception{{Type: title, Value: message}}

		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

// titleCase capitalizes every word. A Caser keeps state, so one is made
// per call.
func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

var categoryTitles = map[ErrorCategory]string{
	CategoryValidation:       "Validation Error",
	CategoryDatabase:         "Database Error",
	CategoryFileIO:           "File I/O Error",
	CategoryModelInit:        "Model Initialization Error",
	CategoryModelLoad:        "Model Loading Error",
	CategoryModelUnavailable: "Model Unavailable",
	CategoryProcessing:       "Inference Error",
	CategoryConfiguration:    "Configuration Error",
}

// generateErrorTitle joins component, category and operation into the
// Sentry grouping title, e.g. "Datastore Database Error Add News".
func generateErrorTitle(ee *EnhancedError) string {
	var parts []string
	if component := ee.GetComponent(); component != "" && component != ComponentUnknown {
		parts = append(parts, titleCase(component))
	}
	if title, ok := categoryTitles[ee.Category]; ok {
		parts = append(parts, title)
	} else if ee.Category != "" {
		parts = append(parts, string(ee.Category))
	}
	if operation, ok := ee.GetContext()["operation"].(string); ok && operation != "" {
		parts = append(parts, titleCase(strings.ReplaceAll(operation, "_", " ")))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}
	return strings.Join(parts, " ")
}

func getErrorLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryNetwork, CategoryFileIO, CategoryHTTP, CategoryTimeout:
		return sentry.LevelWarning
	case CategoryNotFound, CategoryValidation, CategoryDegenerate:
		return sentry.LevelInfo
	default:
		return sentry.LevelError
	}
}

// PrivacyScrubber rewrites a message before it leaves the process.
type PrivacyScrubber func(string) string

var privacyScrubber atomic.Pointer[PrivacyScrubber]

// SetPrivacyScrubber replaces the built-in scrubber used for reported
// messages and string context values. nil restores the built-in one.
func SetPrivacyScrubber(scrubber PrivacyScrubber) {
	if scrubber == nil {
		privacyScrubber.Store(nil)
		return
	}
	privacyScrubber.Store(&scrubber)
}

func scrubMessageForPrivacy(message string) string {
	if s := privacyScrubber.Load(); s != nil {
		return (*s)(message)
	}
	return basicURLScrub(message)
}

var (
	urlQueryRegex   = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	queryParamRegex = regexp.MustCompile(`[?&]([^=\s]+)=([^&\s]+)`)
	dsnRegex        = regexp.MustCompile(`(\w+://)[^:@/\s]+:[^@/\s]+@`)
	secretRegexes   = []*regexp.Regexp{
		regexp.MustCompile(`api[_-]?key[=:]\S+`),
		regexp.MustCompile(`token[=:]\S+`),
		regexp.MustCompile(`password[=:]\S+`),
		regexp.MustCompile(`[0-9a-fA-F]{32,}`),
	}
)

// basicURLScrub removes query strings, DSN credentials and obvious secrets
func basicURLScrub(message string) string {
	scrubbed := urlQueryRegex.ReplaceAllString(message, "$1?[REDACTED]")
	scrubbed = queryParamRegex.ReplaceAllString(scrubbed, "?[REDACTED]")
	scrubbed = dsnRegex.ReplaceAllString(scrubbed, "$1[CREDENTIALS_REDACTED]@")
	for _, re := range secretRegexes {
		scrubbed = re.ReplaceAllString(scrubbed, "[SECRET_REDACTED]")
	}
	return scrubbed
}
