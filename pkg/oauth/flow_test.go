package oauth

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lufe-digital/inbox-zero/pkg/catalog"
)

func TestStartFlowBuildsPKCEAuthorizationURL(t *testing.T) {
	provider := newFakeProvider(t)
	provider.registration = true

	manager := newTestManager(t, newTestCatalog(map[string]catalog.Integration{
		"acme": {
			AuthType:  catalog.AuthTypeOAuth,
			ServerURL: provider.serverURL(),
			Scopes:    []string{"read_content"},
		},
	}), newTestDAO(t))

	request, err := manager.StartFlow(t.Context(), "acme", "https://app.example.com/callback", "csrf-state")
	require.NoError(t, err)
	assert.NotEmpty(t, request.CodeVerifier)
	assert.Equal(t, "csrf-state", request.State)

	parsed, err := url.Parse(request.AuthorizationURL)
	require.NoError(t, err)
	assert.Equal(t, provider.srv.URL+"/authorize", parsed.Scheme+"://"+parsed.Host+parsed.Path)

	query := parsed.Query()
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "dynamic-client-1", query.Get("client_id"))
	assert.Equal(t, "https://app.example.com/callback", query.Get("redirect_uri"))
	assert.Equal(t, "csrf-state", query.Get("state"))
	assert.Equal(t, "read_content", query.Get("scope"))
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
	assert.Equal(t, ChallengeFromVerifier(request.CodeVerifier), query.Get("code_challenge"))
	assert.Equal(t, provider.serverURL(), query.Get("resource"))
}

func TestStartFlowGeneratesStateWhenEmpty(t *testing.T) {
	provider := newFakeProvider(t)
	provider.registration = true

	manager := newTestManager(t, newTestCatalog(map[string]catalog.Integration{
		"acme": {AuthType: catalog.AuthTypeOAuth, ServerURL: provider.serverURL()},
	}), newTestDAO(t))

	request, err := manager.StartFlow(t.Context(), "acme", "https://app.example.com/callback", "")
	require.NoError(t, err)
	assert.NotEmpty(t, request.State)
}

func TestStartFlowRequiresServerURL(t *testing.T) {
	manager := newTestManager(t, newTestCatalog(map[string]catalog.Integration{
		"tokens-only": {AuthType: catalog.AuthTypeAPIToken},
	}), newTestDAO(t))

	_, err := manager.StartFlow(t.Context(), "tokens-only", "https://app.example.com/callback", "")
	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
}
