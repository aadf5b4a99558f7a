package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/lufe-digital/inbox-zero/pkg/catalog"
	"github.com/lufe-digital/inbox-zero/pkg/telemetry"
)

// GetClient resolves OAuth client credentials for an integration. Resolution
// order: static credentials from the catalog, previously registered
// credentials from the store, then fresh dynamic registration (RFC 7591).
//
// Dynamic registration needs a redirect URI to register; refresh-time callers
// have none, so when nothing is configured or stored they fail here rather
// than attempt a registration that cannot name a callback.
func (m *Manager) GetClient(ctx context.Context, integrationKey, redirectURI string) (*ClientCredentials, error) {
	def, err := m.integration(integrationKey)
	if err != nil {
		return nil, err
	}

	if static := def.StaticCredentials; static != nil {
		return &ClientCredentials{ClientID: static.ClientID, ClientSecret: static.ClientSecret}, nil
	}

	record, err := m.dao.GetIntegration(ctx, def.Key)
	if err != nil {
		return nil, fmt.Errorf("reading integration record: %w", err)
	}
	if record != nil && record.OAuthClientID != nil && *record.OAuthClientID != "" {
		creds := &ClientCredentials{ClientID: *record.OAuthClientID}
		if record.OAuthClientSecret != nil {
			creds.ClientSecret = *record.OAuthClientSecret
		}
		return creds, nil
	}

	if def.ServerURL == "" {
		return nil, &ConfigurationError{Integration: def.Key, Reason: "no server URL configured, cannot register a client dynamically"}
	}
	if redirectURI == "" {
		return nil, &ConfigurationError{Integration: def.Key, Reason: "no redirect URI available and no client credentials configured or stored"}
	}

	return m.registerClient(ctx, def, redirectURI)
}

// registerClient performs dynamic client registration as a public client.
// PKCE substitutes for a client secret, so token_endpoint_auth_method is
// "none".
func (m *Manager) registerClient(ctx context.Context, def catalog.Integration, redirectURI string) (*ClientCredentials, error) {
	metadata, err := m.Discover(ctx, def.Key)
	if err != nil {
		return nil, err
	}
	if metadata.RegistrationEndpoint == "" {
		return nil, &RegistrationError{
			Integration: def.Key,
			Reason:      "the authorization server does not support dynamic client registration, configure static credentials",
		}
	}

	registration := registrationRequest{
		ClientName:              fmt.Sprintf("Inbox Zero - %s", def.DisplayName),
		RedirectURIs:            []string{redirectURI},
		TokenEndpointAuthMethod: "none",
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		Scope:                   def.ScopeString(),
	}

	response, err := m.postRegistration(ctx, metadata.RegistrationEndpoint, registration)
	telemetry.RecordRegistration(ctx, def.Key, err)
	if err != nil {
		return nil, &RegistrationError{Integration: def.Key, Reason: "dynamic client registration failed", Err: err}
	}

	if err := m.dao.UpsertIntegrationClient(ctx, def.Key, response.ClientID, response.ClientSecret); err != nil {
		return nil, fmt.Errorf("storing registered client for %s: %w", def.Key, err)
	}
	m.log.Info("registered OAuth client",
		zap.String("integration", def.Key),
		zap.String("client_id", response.ClientID))

	return &ClientCredentials{ClientID: response.ClientID, ClientSecret: response.ClientSecret}, nil
}

func (m *Manager) postRegistration(ctx context.Context, registrationEndpoint string, registration registrationRequest) (*registrationResponse, error) {
	body, err := json.Marshal(registration)
	if err != nil {
		return nil, fmt.Errorf("marshalling registration request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, registrationEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending registration request to %s: %w", registrationEndpoint, err)
	}
	defer resp.Body.Close()

	// 201 Created or 200 OK are both acceptable
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registration endpoint returned status %d: %s", resp.StatusCode, readProviderError(resp.Body))
	}

	var response registrationResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decoding registration response: %w", err)
	}
	if response.ClientID == "" {
		return nil, fmt.Errorf("registration response missing client_id")
	}
	return &response, nil
}

// readProviderError extracts a human-readable message from an OAuth error
// response body, preferring the structured RFC 6749 fields.
func readProviderError(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var parsed struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Message          string `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		switch {
		case parsed.ErrorDescription != "":
			return parsed.ErrorDescription
		case parsed.Error != "":
			return parsed.Error
		case parsed.Message != "":
			return parsed.Message
		}
	}
	return string(raw)
}
