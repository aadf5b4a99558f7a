package oauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lufe-digital/inbox-zero/pkg/catalog"
)

func TestGetAuthTokenDispatchesToAPIKey(t *testing.T) {
	dao := newTestDAO(t)
	manager := newTestManager(t, newTestCatalog(map[string]catalog.Integration{
		"hubspot": {AuthType: catalog.AuthTypeAPIToken},
	}), dao)

	require.NoError(t, manager.ConfigureAPIKey(t.Context(), "hubspot", "account-1", "secret-key"))

	token, err := manager.GetAuthToken(t.Context(), "hubspot", "account-1")
	require.NoError(t, err)
	assert.Equal(t, "secret-key", token)
}

func TestGetAuthTokenAPIKeyMissing(t *testing.T) {
	manager := newTestManager(t, newTestCatalog(map[string]catalog.Integration{
		"hubspot": {AuthType: catalog.AuthTypeAPIToken},
	}), newTestDAO(t))

	_, err := manager.GetAuthToken(t.Context(), "hubspot", "account-1")
	var notConnectedErr *NotConnectedError
	require.ErrorAs(t, err, &notConnectedErr)
}

func TestGetAuthTokenDispatchesToOAuth(t *testing.T) {
	provider := newFakeProvider(t)
	dao := newTestDAO(t)
	future := time.Now().Add(time.Hour)
	seedConnection(t, dao, "acme", "account-1", "access-token-live", nil, &future)

	manager := newTestManager(t, newTestCatalog(map[string]catalog.Integration{
		"acme": {AuthType: catalog.AuthTypeOAuth, ServerURL: provider.serverURL()},
	}), dao)

	token, err := manager.GetAuthToken(t.Context(), "acme", "account-1")
	require.NoError(t, err)
	assert.Equal(t, "access-token-live", token)
}

func TestGetAuthTokenUnknownIntegration(t *testing.T) {
	manager := newTestManager(t, newTestCatalog(nil), newTestDAO(t))

	_, err := manager.GetAuthToken(t.Context(), "nope", "account-1")
	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
}

func TestConfigureAPIKeyRejectsOAuthIntegrations(t *testing.T) {
	manager := newTestManager(t, newTestCatalog(map[string]catalog.Integration{
		"acme": {AuthType: catalog.AuthTypeOAuth, ServerURL: "https://mcp.acme.com/mcp"},
	}), newTestDAO(t))

	err := manager.ConfigureAPIKey(t.Context(), "acme", "account-1", "secret-key")
	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
}
