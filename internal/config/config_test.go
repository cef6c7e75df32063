package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/conduit/pkg/connector"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conduit.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const sampleConfig = `
storage_dir = "/tmp/conduit-test"

settings {
  timeout_seconds = 10
  max_retries     = 5
  retry_delay_ms  = 250
  user_agent      = "conduit-test/1.0"
  verify_ssl      = false
}

api "github" {
  base_url  = "https://api.github.com"
  auth_type = "bearer"

  auth {
    token = "${CONDUIT_TEST_TOKEN}"
  }

  endpoint "list_repos" {
    method      = "GET"
    path        = "/user/repos"
    description = "List repositories for the authenticated user"
  }

  endpoint "create_issue" {
    method = "POST"
    path   = "/repos/owner/repo/issues"
  }
}

api "open" {
  base_url = "https://example.com"
  enabled  = false

  endpoint "ping" {
    path = "/ping"
  }
}
`

func TestLoadAndConvert(t *testing.T) {
	t.Setenv("CONDUIT_TEST_TOKEN", "tok-123")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/conduit-test", cfg.StorageDir)

	settings := cfg.ClientSettings()
	assert.Equal(t, 10*time.Second, settings.Timeout)
	assert.Equal(t, 5, settings.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, settings.RetryDelay)
	assert.Equal(t, "conduit-test/1.0", settings.UserAgent)
	assert.False(t, settings.VerifySSL)
	assert.True(t, settings.FollowRedirects)

	apis, err := cfg.APIConfigs()
	require.NoError(t, err)
	require.Len(t, apis, 2)

	github := apis[0]
	assert.Equal(t, "github", github.Name)
	assert.Equal(t, connector.AuthBearer, github.AuthType)
	assert.Equal(t, "tok-123", github.Auth.Token)
	assert.True(t, github.Enabled)
	require.Contains(t, github.Endpoints, "list_repos")
	assert.Equal(t, "GET", github.Endpoints["list_repos"].Method)
	assert.Equal(t, "/user/repos", github.Endpoints["list_repos"].Path)

	open := apis[1]
	assert.Equal(t, connector.AuthNone, open.AuthType)
	assert.False(t, open.Enabled)
	// Method defaults to GET.
	assert.Equal(t, "GET", open.Endpoints["ping"].Method)
}

func TestDefaultsWhenBlocksAbsent(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
api "a" {
  base_url = "https://example.com"
  endpoint "e" {
    path = "/"
  }
}
`))
	require.NoError(t, err)
	assert.Equal(t, "./conduit-data", cfg.StorageDir)

	settings := cfg.ClientSettings()
	assert.Equal(t, connector.DefaultSettings(), settings)
}

func TestUnsetEnvVarFailsValidationForBearer(t *testing.T) {
	os.Unsetenv("CONDUIT_MISSING_TOKEN")

	cfg, err := Load(writeConfig(t, `
api "a" {
  base_url  = "https://example.com"
  auth_type = "bearer"
  auth {
    token = "${CONDUIT_MISSING_TOKEN}"
  }
  endpoint "e" {
    path = "/"
  }
}
`))
	require.NoError(t, err)

	_, err = cfg.APIConfigs()
	assert.Error(t, err)
}

func TestDuplicateAPIBlocksRejected(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
api "a" {
  base_url = "https://example.com"
  endpoint "e" {
    path = "/"
  }
}

api "a" {
  base_url = "https://example.org"
  endpoint "e" {
    path = "/"
  }
}
`))
	require.NoError(t, err)

	_, err = cfg.APIConfigs()
	assert.Error(t, err)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, `api "a" {`))
	assert.Error(t, err)
}
