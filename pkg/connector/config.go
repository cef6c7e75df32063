package connector

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// AuthType selects how requests are authenticated.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthAPIKey AuthType = "api_key"
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthCustom AuthType = "custom"
)

// AuthParams holds the credentials for an API. Which fields are required
// depends on the AuthType; Validate enforces that.
type AuthParams struct {
	// Key and HeaderName are used by api_key auth. HeaderName defaults to
	// X-API-Key.
	Key        string `json:"-"`
	HeaderName string `json:"header_name,omitempty"`

	// Token is used by bearer auth.
	Token string `json:"-"`

	// Username and Password are used by basic auth.
	Username string `json:"username,omitempty"`
	Password string `json:"-"`

	// Headers is the verbatim header map used by custom auth.
	Headers map[string]string `json:"-"`
}

// EndpointConfig describes one callable endpoint of an API.
type EndpointConfig struct {
	// Method is the HTTP method; defaults to GET.
	Method string `json:"method,omitempty"`

	// Path is resolved against the API base URL with standard URL-join
	// semantics: a relative path replaces the path component, an absolute
	// URL replaces everything.
	Path string `json:"path"`

	// Headers are endpoint-specific headers. They override auth headers on
	// key collision.
	Headers map[string]string `json:"headers,omitempty"`

	// Description documents the endpoint for introspection.
	Description string `json:"description,omitempty"`

	// Parameters documents the accepted parameters for introspection.
	Parameters map[string]string `json:"parameters,omitempty"`

	// ResponseFormat hints the expected response format (json, xml, text).
	ResponseFormat string `json:"response_format,omitempty"`
}

// APIConfig is the validated, immutable per-API configuration record. The
// connector only reads it; construction and env substitution happen in the
// configuration layer.
type APIConfig struct {
	Name      string                    `json:"name"`
	BaseURL   string                    `json:"base_url"`
	AuthType  AuthType                  `json:"auth_type"`
	Auth      AuthParams                `json:"auth"`
	Endpoints map[string]EndpointConfig `json:"endpoints"`
	Enabled   bool                      `json:"enabled"`
}

// Validate checks the config invariants: an absolute http(s) base URL and the
// auth parameters required by the auth type.
func (c *APIConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.AuthType, validation.In(
			AuthNone, AuthAPIKey, AuthBearer, AuthBasic, AuthCustom,
		)),
	); err != nil {
		return err
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must use http or https scheme, got: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url must be absolute with a host")
	}

	switch c.AuthType {
	case AuthAPIKey:
		if c.Auth.Key == "" {
			return fmt.Errorf("api_key auth requires auth.key")
		}
	case AuthBearer:
		if c.Auth.Token == "" {
			return fmt.Errorf("bearer auth requires auth.token")
		}
	case AuthBasic:
		if c.Auth.Username == "" || c.Auth.Password == "" {
			return fmt.Errorf("basic auth requires auth.username and auth.password")
		}
	case AuthCustom:
		if len(c.Auth.Headers) == 0 {
			return fmt.Errorf("custom auth requires auth.headers")
		}
	}

	for name, ep := range c.Endpoints {
		if ep.Path == "" {
			return fmt.Errorf("endpoint %q: path is required", name)
		}
	}

	return nil
}

// Settings are the global connector defaults, treated as read-only inputs.
type Settings struct {
	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after the first. Zero
	// falls back to the default; a negative value disables retries.
	MaxRetries int

	// RetryDelay is the fixed delay between attempts (not exponential).
	RetryDelay time.Duration

	// UserAgent is sent on every request.
	UserAgent string

	// VerifySSL toggles TLS certificate verification.
	VerifySSL bool

	// FollowRedirects toggles redirect following entirely; when off, the
	// redirect response itself is returned.
	FollowRedirects bool
}

// DefaultSettings returns the documented defaults: 30s timeout, 3 retries
// with a fixed 1s delay, TLS verification and redirects on.
func DefaultSettings() Settings {
	return Settings{
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		RetryDelay:      1 * time.Second,
		UserAgent:       "conduit/1.0",
		VerifySSL:       true,
		FollowRedirects: true,
	}
}

// withDefaults fills zero fields from DefaultSettings. A negative MaxRetries
// normalizes to zero (single attempt).
func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.Timeout == 0 {
		s.Timeout = def.Timeout
	}
	if s.MaxRetries == 0 {
		s.MaxRetries = def.MaxRetries
	}
	if s.MaxRetries < 0 {
		s.MaxRetries = 0
	}
	if s.RetryDelay == 0 {
		s.RetryDelay = def.RetryDelay
	}
	if s.UserAgent == "" {
		s.UserAgent = def.UserAgent
	}
	return s
}

// NewHTTPClient builds the HTTP client for one connector: per-attempt
// timeout, optional TLS verification, and redirect handling.
func (s Settings) NewHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	if !s.VerifySSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	client := &http.Client{
		Timeout:   s.Timeout,
		Transport: transport,
	}

	if !s.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client
}
