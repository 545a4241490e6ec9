// Package privacy scrubs connection strings, credentials and URLs from
// messages before they reach logs or error telemetry.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
)

var (
	// URLs including database DSNs written as URLs.
	urlPattern = regexp.MustCompile(`\b(?:https?|mysql|postgres(?:ql)?|sqlite)://\S+`)

	// MySQL driver DSNs: user:password@tcp(host:port)/db
	mysqlDSNPattern = regexp.MustCompile(`\b[^\s:@/]+:[^\s@]*@(?:tcp|unix)\([^)]*\)\S*`)

	// key=value DSNs as accepted by pgx.
	keyValueSecretPattern = regexp.MustCompile(`(?i)\b(password|user|host)=\S+`)
)

// ScrubMessage replaces URLs and database connection strings in message
// with stable anonymized tokens.
func ScrubMessage(message string) string {
	message = urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
	message = mysqlDSNPattern.ReplaceAllStringFunc(message, func(dsn string) string {
		return "dsn-" + shortHash(dsn, 8)
	})
	return keyValueSecretPattern.ReplaceAllString(message, "$1=[REDACTED]")
}

// AnonymizeURL reduces a URL to a hash of its scheme, host category, port
// and path structure. Credentials, host names and query strings never
// contribute to the result.
func AnonymizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "url-hash-" + shortHash(rawURL, 8)
	}

	parts := make([]string, 0, 4)
	if u.Scheme != "" {
		parts = append(parts, u.Scheme)
	}
	if host := u.Hostname(); host != "" {
		parts = append(parts, categorizeHost(host))
	}
	if port := u.Port(); port != "" {
		parts = append(parts, "port-"+port)
	}
	if u.Path != "" && u.Path != "/" {
		parts = append(parts, anonymizePath(u.Path))
	}
	return "url-" + shortHash(strings.Join(parts, ":"), 12)
}

// Scrub returns err with its message passed through ScrubMessage. The
// original stays reachable through errors.Is and errors.As.
func Scrub(err error) error {
	if err == nil {
		return nil
	}
	return &scrubbed{err: err, msg: ScrubMessage(err.Error())}
}

type scrubbed struct {
	err error
	msg string
}

func (e *scrubbed) Error() string { return e.msg }
func (e *scrubbed) Unwrap() error { return e.err }

func shortHash(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:n])
}

// categorizeHost keeps only the kind of host.
func categorizeHost(host string) string {
	if host == "localhost" {
		return "localhost"
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		switch {
		case addr.IsLoopback():
			return "localhost"
		case addr.IsPrivate(), addr.IsLinkLocalUnicast():
			return "private-ip"
		default:
			return "public-ip"
		}
	}
	if i := strings.LastIndexByte(host, '.'); i >= 0 && i < len(host)-1 {
		return "domain-" + host[i+1:]
	}
	return "unknown-host"
}

// anonymizePath keeps the path shape. Route segments are kept, numbers
// collapse to "numeric" and everything else is hashed.
func anonymizePath(path string) string {
	var out []string
	for segment := range strings.SplitSeq(strings.Trim(path, "/"), "/") {
		switch {
		case segment == "":
		case routeSegments[strings.ToLower(segment)]:
			out = append(out, segment)
		case isNumeric(segment):
			out = append(out, "numeric")
		default:
			out = append(out, "seg-"+shortHash(segment, 4))
		}
	}
	if len(out) == 0 {
		return "root"
	}
	return strings.Join(out, "/")
}

var routeSegments = map[string]bool{
	"api": true, "v1": true, "seed": true, "seeds": true, "uploads": true,
	"plants": true, "diseases": true, "news": true,
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
