package glpi

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Client.
type Option func(*clientOptions)

// clientOptions holds configuration options for the Client.
type clientOptions struct {
	timeout            time.Duration
	timeoutSet         bool
	httpClient         *http.Client
	logger             zerolog.Logger
	userAgent          string
	insecureSkipVerify bool
	requestHeaders     map[string]string
}

func newClientOptions() *clientOptions {
	return &clientOptions{
		timeout:        30 * time.Second,
		logger:         zerolog.Nop(),
		userAgent:      "glpictl",
		requestHeaders: map[string]string{},
	}
}

// WithTimeout sets the HTTP client timeout. Values below one second are
// ignored.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		if timeout >= time.Second {
			o.timeout = timeout
			o.timeoutSet = true
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client. New works on a copy
// of client and of its *http.Transport, so WithTimeout and
// WithInsecureSkipVerify never modify the caller's values. Without
// WithTimeout the Timeout of client is kept.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithLogger sets the logger used for request and cache tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithUserAgent sets a custom user agent string.
func WithUserAgent(userAgent string) Option {
	return func(o *clientOptions) {
		if userAgent = strings.TrimSpace(userAgent); userAgent != "" {
			o.userAgent = userAgent
		}
	}
}

// WithInsecureSkipVerify disables certificate verification.
// Use with caution and only for development/testing.
func WithInsecureSkipVerify() Option {
	return func(o *clientOptions) {
		o.insecureSkipVerify = true
	}
}

// WithRequestHeader adds a header sent on every request. The headers owned
// by the client (Content-Type, App-Token, Session-Token, Authorization) can
// not be overridden.
func WithRequestHeader(header, value string) Option {
	return func(o *clientOptions) {
		header = strings.TrimSpace(header)

		switch {
		case header == "",
			strings.EqualFold(header, "Content-Type"),
			strings.EqualFold(header, headerAppToken),
			strings.EqualFold(header, headerSessionToken),
			strings.EqualFold(header, "Authorization"):
			return
		}

		o.requestHeaders[header] = value
	}
}
