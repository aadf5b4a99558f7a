package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogParses(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)
	require.NotEmpty(t, cat.Integrations)

	notion, err := cat.Get("notion")
	require.NoError(t, err)
	assert.Equal(t, "notion", notion.Key)
	assert.Equal(t, AuthTypeOAuth, notion.AuthType)
	assert.NotEmpty(t, notion.ServerURL)
	assert.Equal(t, "read_content update_content", notion.ScopeString())

	linear, err := cat.Get("linear")
	require.NoError(t, err)
	assert.Empty(t, linear.ScopeString())
}

func TestGetUnknownKey(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	_, err = cat.Get("does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReadFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
integrations:
  example:
    displayName: Example
    serverUrl: https://mcp.example.com/mcp
    authType: oauth
    scopes: [read, write]
    staticCredentials:
      clientId: client-123
`), 0o644))

	cat, err := ReadFrom(path)
	require.NoError(t, err)

	example, err := cat.Get("example")
	require.NoError(t, err)
	assert.Equal(t, "https://mcp.example.com/mcp", example.ServerURL)
	require.NotNil(t, example.StaticCredentials)
	assert.Equal(t, "client-123", example.StaticCredentials.ClientID)
	assert.Equal(t, "read write", example.ScopeString())
}

func TestReadFromRejectsInvalidAuthType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
integrations:
  broken:
    authType: password
`), 0o644))

	_, err := ReadFrom(path)
	require.Error(t, err)
}

func TestParseRejectsOAuthWithoutServerOrFallback(t *testing.T) {
	_, err := parse([]byte(`
integrations:
  floating:
    authType: oauth
`))
	require.Error(t, err)
}

func TestParseAllowsFallbackOnlyOAuth(t *testing.T) {
	cat, err := parse([]byte(`
integrations:
  legacy:
    authType: oauth
    fallbackOAuthConfig:
      authorizationEndpoint: https://auth.legacy.com/authorize
      tokenEndpoint: https://auth.legacy.com/token
`))
	require.NoError(t, err)

	legacy, err := cat.Get("legacy")
	require.NoError(t, err)
	require.NotNil(t, legacy.FallbackOAuthConfig)
	assert.True(t, legacy.IsOAuth())
}
