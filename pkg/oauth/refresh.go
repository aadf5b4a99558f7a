package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/lufe-digital/inbox-zero/pkg/catalog"
	"github.com/lufe-digital/inbox-zero/pkg/db"
	"github.com/lufe-digital/inbox-zero/pkg/telemetry"
)

// EnsureValid returns a currently-valid access token for the account's
// connection, refreshing it first when it has expired. Expired connections
// without a refresh token need the user to reconnect; missing connections
// need the authorization flow to be run.
func (m *Manager) EnsureValid(ctx context.Context, integrationKey, emailAccountID string) (string, error) {
	def, err := m.integration(integrationKey)
	if err != nil {
		return "", err
	}

	connection, err := m.activeConnection(ctx, def, emailAccountID)
	if err != nil {
		return "", err
	}

	// Still valid: hand back the stored token untouched.
	if connection.ExpiresAt == nil || connection.ExpiresAt.After(m.now()) {
		return *connection.AccessToken, nil
	}

	if connection.RefreshToken == nil || *connection.RefreshToken == "" {
		return "", &ReconnectRequiredError{Integration: def.Key, EmailAccountID: emailAccountID}
	}

	// Serialize refreshes per connection: concurrent expired callers share
	// one refresh exchange instead of racing to burn the same refresh token.
	token, err, _ := m.refreshes.Do(def.Key+"\x00"+emailAccountID, func() (any, error) {
		return m.refreshConnection(ctx, def, emailAccountID)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// activeConnection loads the account's connection and checks it is usable for
// the OAuth path. An OAuth connection without an access token is a hard
// error, not an empty string.
func (m *Manager) activeConnection(ctx context.Context, def catalog.Integration, emailAccountID string) (*db.Connection, error) {
	record, err := m.dao.GetIntegration(ctx, def.Key)
	if err != nil {
		return nil, fmt.Errorf("reading integration record: %w", err)
	}
	if record == nil {
		return nil, &NotConnectedError{Integration: def.Key, EmailAccountID: emailAccountID}
	}

	connection, err := m.dao.GetConnection(ctx, emailAccountID, record.ID)
	if err != nil {
		return nil, fmt.Errorf("reading connection: %w", err)
	}
	if connection == nil || !connection.IsActive || connection.AccessToken == nil || *connection.AccessToken == "" {
		return nil, &NotConnectedError{Integration: def.Key, EmailAccountID: emailAccountID}
	}
	return connection, nil
}

// refreshConnection performs a refresh-token grant and persists the rotated
// tokens. It re-reads the connection first so callers queued behind the
// singleflight leader observe the leader's result instead of refreshing
// again.
func (m *Manager) refreshConnection(ctx context.Context, def catalog.Integration, emailAccountID string) (string, error) {
	connection, err := m.activeConnection(ctx, def, emailAccountID)
	if err != nil {
		return "", err
	}
	if connection.ExpiresAt == nil || connection.ExpiresAt.After(m.now()) {
		return *connection.AccessToken, nil
	}
	if connection.RefreshToken == nil || *connection.RefreshToken == "" {
		return "", &ReconnectRequiredError{Integration: def.Key, EmailAccountID: emailAccountID}
	}

	creds, err := m.GetClient(ctx, def.Key, "")
	if err != nil {
		return "", err
	}
	metadata, err := m.Discover(ctx, def.Key)
	if err != nil {
		return "", err
	}

	response, err := m.refreshGrant(ctx, def, metadata.TokenEndpoint, creds, *connection.RefreshToken)
	telemetry.RecordRefresh(ctx, def.Key, err)
	if err != nil {
		return "", err
	}

	expiresAt := m.expiryFrom(def.Key, response.ExpiresIn)

	update := db.TokenUpdate{
		ConnectionID:         connection.ID,
		AccessToken:          response.AccessToken,
		ExpiresAt:            expiresAt,
		ExpectedRefreshToken: connection.RefreshToken,
	}
	// Servers may rotate the refresh token on every use; keep whichever one
	// is now valid.
	if response.RefreshToken != "" {
		update.RefreshToken = &response.RefreshToken
	}

	applied, err := m.dao.UpdateConnectionTokens(ctx, update)
	if err != nil {
		return "", fmt.Errorf("storing refreshed tokens for %s: %w", def.Key, err)
	}
	if !applied {
		// Another instance refreshed concurrently and rotated the token
		// under us. Its result is the valid one.
		m.log.Warn("lost refresh race, using tokens stored by the winner",
			zap.String("integration", def.Key),
			zap.String("email_account_id", emailAccountID))
		current, err := m.activeConnection(ctx, def, emailAccountID)
		if err != nil {
			return "", err
		}
		return *current.AccessToken, nil
	}

	m.log.Info("refreshed access token",
		zap.String("integration", def.Key),
		zap.String("email_account_id", emailAccountID),
		zap.Time("expires_at", expiresAt),
		zap.Bool("rotated_refresh_token", response.RefreshToken != ""))

	return response.AccessToken, nil
}

// refreshGrant POSTs a refresh_token grant to the token endpoint, binding the
// result to the integration's server with the RFC 8707 resource parameter.
// Done by hand because golang.org/x/oauth2 has no hook for extra refresh
// parameters.
func (m *Manager) refreshGrant(ctx context.Context, def catalog.Integration, tokenEndpoint string, creds *ClientCredentials, refreshToken string) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", creds.ClientID)
	if creds.ClientSecret != "" {
		form.Set("client_secret", creds.ClientSecret)
	}
	if def.ServerURL != "" {
		form.Set("resource", def.ServerURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TokenRefreshError{Integration: def.Key, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, &TokenRefreshError{Integration: def.Key, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TokenRefreshError{Integration: def.Key, Err: fmt.Errorf("reading token response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		refreshErr := &TokenRefreshError{
			Integration: def.Key,
			Err:         fmt.Errorf("token endpoint returned status %d", resp.StatusCode),
		}
		var parsed struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &parsed) == nil {
			refreshErr.ProviderError = parsed.Error
			refreshErr.ProviderErrorDescription = parsed.ErrorDescription
		}
		return nil, refreshErr
	}

	var response tokenResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &TokenRefreshError{Integration: def.Key, Err: fmt.Errorf("parsing token response: %w", err)}
	}
	if response.AccessToken == "" {
		return nil, &TokenRefreshError{Integration: def.Key, Err: fmt.Errorf("token response has no access token")}
	}
	return &response, nil
}
