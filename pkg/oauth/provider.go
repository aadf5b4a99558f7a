package oauth

import (
	"context"
	"fmt"
)

// GetAuthToken is the single entry point consumers use to obtain a
// currently-valid credential for an integration. api-token integrations get
// their stored key; oauth integrations get a refreshed-if-needed access
// token.
func (m *Manager) GetAuthToken(ctx context.Context, integrationKey, emailAccountID string) (string, error) {
	def, err := m.integration(integrationKey)
	if err != nil {
		return "", err
	}

	if !def.IsOAuth() {
		return m.apiKey(ctx, integrationKey, emailAccountID)
	}
	return m.EnsureValid(ctx, integrationKey, emailAccountID)
}

func (m *Manager) apiKey(ctx context.Context, integrationKey, emailAccountID string) (string, error) {
	record, err := m.dao.GetIntegration(ctx, integrationKey)
	if err != nil {
		return "", fmt.Errorf("reading integration record: %w", err)
	}
	if record == nil {
		return "", &NotConnectedError{Integration: integrationKey, EmailAccountID: emailAccountID}
	}

	connection, err := m.dao.GetConnection(ctx, emailAccountID, record.ID)
	if err != nil {
		return "", fmt.Errorf("reading connection: %w", err)
	}
	if connection == nil || !connection.IsActive || connection.APIKey == nil || *connection.APIKey == "" {
		return "", &NotConnectedError{Integration: integrationKey, EmailAccountID: emailAccountID}
	}
	return *connection.APIKey, nil
}

// ConfigureAPIKey stores an API key connection for an api-token integration.
func (m *Manager) ConfigureAPIKey(ctx context.Context, integrationKey, emailAccountID, apiKey string) error {
	def, err := m.integration(integrationKey)
	if err != nil {
		return err
	}
	if def.IsOAuth() {
		return &ConfigurationError{Integration: def.Key, Reason: "integration uses OAuth, run the authorization flow instead of setting an API key"}
	}
	if apiKey == "" {
		return &ConfigurationError{Integration: def.Key, Reason: "empty API key"}
	}

	record, err := m.dao.EnsureIntegration(ctx, def.Key)
	if err != nil {
		return fmt.Errorf("ensuring integration record for %s: %w", def.Key, err)
	}
	return m.dao.UpsertAPIKeyConnection(ctx, emailAccountID, record.ID, apiKey)
}
