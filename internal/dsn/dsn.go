// Package dsn assembles PostgreSQL connection URIs from discrete parameters.
package dsn

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

var ErrMissingPassword = errors.New("database password is required")

const scheme = "postgresql"

// Params are the discrete parts of a connection URI. Options become sorted
// query parameters such as sslmode.
type Params struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
	Options  map[string]string
}

// Build returns postgresql://<user>:<password>@<host>:<port>/<database>.
// User and password are percent-encoded so reserved URI characters survive.
// The result depends only on p.
func Build(p Params) (string, error) {
	if p.Password == "" {
		return "", ErrMissingPassword
	}
	if strings.TrimSpace(p.User) == "" {
		return "", fmt.Errorf("database user is required")
	}
	if strings.TrimSpace(p.Host) == "" {
		return "", fmt.Errorf("database host is required")
	}
	if strings.TrimSpace(p.Database) == "" {
		return "", fmt.Errorf("database name is required")
	}
	if p.Port <= 0 || p.Port > 65535 {
		return "", fmt.Errorf("invalid database port %d", p.Port)
	}

	var builder strings.Builder
	builder.WriteString(scheme)
	builder.WriteString("://")
	builder.WriteString(escape(p.User))
	builder.WriteString(":")
	builder.WriteString(escape(p.Password))
	builder.WriteString("@")
	builder.WriteString(strings.TrimSpace(p.Host))
	builder.WriteString(":")
	builder.WriteString(strconv.Itoa(p.Port))
	builder.WriteString("/")
	builder.WriteString(url.PathEscape(strings.TrimSpace(p.Database)))

	if len(p.Options) > 0 {
		keys := make([]string, 0, len(p.Options))
		for key := range p.Options {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for i, key := range keys {
			if i == 0 {
				builder.WriteString("?")
			} else {
				builder.WriteString("&")
			}
			builder.WriteString(url.QueryEscape(key))
			builder.WriteString("=")
			builder.WriteString(url.QueryEscape(p.Options[key]))
		}
	}
	return builder.String(), nil
}

// Redact replaces the password of a connection URI for logging.
func Redact(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.User == nil {
		return uri
	}
	if _, ok := parsed.User.Password(); !ok {
		return uri
	}
	return parsed.Redacted()
}

// escape percent-encodes everything outside the unreserved set. Spaces become
// %20 rather than '+', which userinfo parsers do not decode.
func escape(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}
