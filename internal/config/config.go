// Package config loads the conduit HCL configuration file and converts it
// into the runtime types the manager consumes.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/hashicorp-forge/conduit/pkg/connector"
)

// Config is the root of the HCL configuration file.
type Config struct {
	// StorageDir is where session record files and the metadata database
	// live. Defaults to "./conduit-data".
	StorageDir string `hcl:"storage_dir,optional"`

	Settings *SettingsBlock `hcl:"settings,block"`
	APIs     []*APIBlock    `hcl:"api,block"`
}

// SettingsBlock holds the shared HTTP client settings. Zero values fall back
// to connector defaults.
type SettingsBlock struct {
	TimeoutSeconds  int    `hcl:"timeout_seconds,optional"`
	MaxRetries      int    `hcl:"max_retries,optional"`
	RetryDelayMS    int    `hcl:"retry_delay_ms,optional"`
	UserAgent       string `hcl:"user_agent,optional"`
	VerifySSL       *bool  `hcl:"verify_ssl,optional"`
	FollowRedirects *bool  `hcl:"follow_redirects,optional"`
}

// APIBlock is one labeled `api "name" { ... }` block.
type APIBlock struct {
	Name     string           `hcl:"name,label"`
	BaseURL  string           `hcl:"base_url"`
	AuthType string           `hcl:"auth_type,optional"`
	Enabled  *bool            `hcl:"enabled,optional"`
	Auth     *AuthBlock       `hcl:"auth,block"`
	Endpoint []*EndpointBlock `hcl:"endpoint,block"`
}

// AuthBlock carries the credentials for one API. String values support
// ${ENV_VAR} references so secrets stay out of the file.
type AuthBlock struct {
	Key        string            `hcl:"key,optional"`
	HeaderName string            `hcl:"header_name,optional"`
	Token      string            `hcl:"token,optional"`
	Username   string            `hcl:"username,optional"`
	Password   string            `hcl:"password,optional"`
	Headers    map[string]string `hcl:"headers,optional"`
}

// EndpointBlock is one labeled `endpoint "name" { ... }` block.
type EndpointBlock struct {
	Name           string                 `hcl:"name,label"`
	Method         string                 `hcl:"method,optional"`
	Path           string                 `hcl:"path"`
	Headers        map[string]string      `hcl:"headers,optional"`
	Description    string                 `hcl:"description,optional"`
	Parameters     map[string]string      `hcl:"parameters,optional"`
	ResponseFormat string                 `hcl:"response_format,optional"`
}

// Load reads and decodes the configuration file.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("decoding config file %s: %w", path, err)
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = "./conduit-data"
	}
	return &cfg, nil
}

// ClientSettings converts the settings block into connector settings,
// falling back to defaults for anything unset.
func (c *Config) ClientSettings() connector.Settings {
	s := connector.DefaultSettings()
	b := c.Settings
	if b == nil {
		return s
	}
	if b.TimeoutSeconds > 0 {
		s.Timeout = time.Duration(b.TimeoutSeconds) * time.Second
	}
	if b.MaxRetries > 0 {
		s.MaxRetries = b.MaxRetries
	}
	if b.RetryDelayMS > 0 {
		s.RetryDelay = time.Duration(b.RetryDelayMS) * time.Millisecond
	}
	if b.UserAgent != "" {
		s.UserAgent = b.UserAgent
	}
	if b.VerifySSL != nil {
		s.VerifySSL = *b.VerifySSL
	}
	if b.FollowRedirects != nil {
		s.FollowRedirects = *b.FollowRedirects
	}
	return s
}

// APIConfigs converts the api blocks into connector configurations,
// expanding ${ENV_VAR} references in credential values. All invalid blocks
// are reported together.
func (c *Config) APIConfigs() ([]*connector.APIConfig, error) {
	var result *multierror.Error
	configs := make([]*connector.APIConfig, 0, len(c.APIs))

	seen := map[string]bool{}
	for _, block := range c.APIs {
		if seen[block.Name] {
			result = multierror.Append(result, fmt.Errorf("duplicate api block %q", block.Name))
			continue
		}
		seen[block.Name] = true

		cfg := block.toAPIConfig()
		if err := cfg.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("api %q: %w", block.Name, err))
			continue
		}
		configs = append(configs, cfg)
	}

	return configs, result.ErrorOrNil()
}

func (b *APIBlock) toAPIConfig() *connector.APIConfig {
	cfg := &connector.APIConfig{
		Name:      b.Name,
		BaseURL:   b.BaseURL,
		AuthType:  connector.AuthType(b.AuthType),
		Enabled:   true,
		Endpoints: map[string]connector.EndpointConfig{},
	}
	if b.AuthType == "" {
		cfg.AuthType = connector.AuthNone
	}
	if b.Enabled != nil {
		cfg.Enabled = *b.Enabled
	}

	if b.Auth != nil {
		cfg.Auth = connector.AuthParams{
			Key:        expandEnv(b.Auth.Key),
			HeaderName: b.Auth.HeaderName,
			Token:      expandEnv(b.Auth.Token),
			Username:   expandEnv(b.Auth.Username),
			Password:   expandEnv(b.Auth.Password),
		}
		if len(b.Auth.Headers) > 0 {
			cfg.Auth.Headers = make(map[string]string, len(b.Auth.Headers))
			for k, v := range b.Auth.Headers {
				cfg.Auth.Headers[k] = expandEnv(v)
			}
		}
	}

	for _, ep := range b.Endpoint {
		method := ep.Method
		if method == "" {
			method = "GET"
		}
		cfg.Endpoints[ep.Name] = connector.EndpointConfig{
			Method:         method,
			Path:           ep.Path,
			Headers:        ep.Headers,
			Description:    ep.Description,
			Parameters:     ep.Parameters,
			ResponseFormat: ep.ResponseFormat,
		}
	}

	return cfg
}

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with the environment value. Unset
// variables expand to the empty string, which validation then catches for
// required credentials.
func expandEnv(s string) string {
	return envRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := envRefPattern.FindStringSubmatch(ref)[1]
		return os.Getenv(name)
	})
}
