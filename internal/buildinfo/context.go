// Package buildinfo holds build-time metadata, kept apart from user
// configuration.
package buildinfo

// UnknownValue is reported for metadata not injected at build time.
const UnknownValue = "unknown"

// Context contains build-time metadata injected at startup through
// -ldflags on main.version and main.buildDate.
type Context struct {
	version   string
	buildDate string
}

// NewContext returns build metadata.
func NewContext(version, buildDate string) *Context {
	return &Context{version: version, buildDate: buildDate}
}

// Version returns the release version or UnknownValue.
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns the build timestamp or UnknownValue.
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// String formats the metadata for version output.
func (c *Context) String() string {
	return c.Version() + " (built " + c.BuildDate() + ")"
}
