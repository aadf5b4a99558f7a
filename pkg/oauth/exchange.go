package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/lufe-digital/inbox-zero/pkg/db"
	"github.com/lufe-digital/inbox-zero/pkg/telemetry"
)

// Tokens is the outcome of a successful code exchange or refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Exchange trades an authorization code plus its PKCE verifier for tokens and
// persists the connection for the account. The caller must pass the same
// redirect URI and verifier it used at StartFlow time.
func (m *Manager) Exchange(ctx context.Context, integrationKey, code, codeVerifier, redirectURI, emailAccountID string) (*Tokens, error) {
	def, err := m.integration(integrationKey)
	if err != nil {
		return nil, err
	}
	if def.ServerURL == "" {
		return nil, &ConfigurationError{Integration: def.Key, Reason: "no server URL configured"}
	}

	creds, err := m.GetClient(ctx, def.Key, redirectURI)
	if err != nil {
		return nil, err
	}
	metadata, err := m.Discover(ctx, def.Key)
	if err != nil {
		return nil, err
	}

	conf := m.oauthConfig(metadata, creds, redirectURI, def.Scopes)
	token, err := conf.Exchange(m.httpContext(ctx), code,
		oauth2.VerifierOption(codeVerifier),
		oauth2.SetAuthURLParam("resource", def.ServerURL),
	)
	telemetry.RecordExchange(ctx, def.Key, err)
	if err != nil {
		exchangeErr := &TokenExchangeError{Integration: def.Key, Err: err}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			exchangeErr.ProviderError = retrieveErr.ErrorCode
			exchangeErr.ProviderErrorDescription = retrieveErr.ErrorDescription
		}
		return nil, exchangeErr
	}

	expiresAt := m.expiryFrom(def.Key, token.ExpiresIn)

	record, err := m.dao.EnsureIntegration(ctx, def.Key)
	if err != nil {
		return nil, fmt.Errorf("ensuring integration record for %s: %w", def.Key, err)
	}

	connection := db.Connection{
		EmailAccountID: emailAccountID,
		IntegrationID:  record.ID,
		AccessToken:    &token.AccessToken,
		ExpiresAt:      &expiresAt,
		IsActive:       true,
	}
	// A provider that issues no refresh token stays null in the store; we
	// never invent one.
	if token.RefreshToken != "" {
		connection.RefreshToken = &token.RefreshToken
	}
	if err := m.dao.UpsertConnection(ctx, connection); err != nil {
		return nil, fmt.Errorf("storing connection for %s: %w", def.Key, err)
	}

	m.log.Info("connected integration",
		zap.String("integration", def.Key),
		zap.String("email_account_id", emailAccountID),
		zap.Time("expires_at", expiresAt),
		zap.Bool("has_refresh_token", token.RefreshToken != ""))

	return &Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// httpContext makes the oauth2 package use the manager's HTTP client.
func (m *Manager) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.client)
}
