package oauth

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

// AuthorizationRequest is the result of starting an authorization flow: the
// URL to redirect the user to, and the secrets the caller must carry across
// the redirect and hand back at callback time. The code verifier is not
// persisted here; a short-lived signed cookie is the usual transport.
type AuthorizationRequest struct {
	AuthorizationURL string
	CodeVerifier     string
	State            string
}

// StartFlow builds a PKCE authorization request for an integration. The
// state parameter is the caller's CSRF token; an empty state gets a fresh
// random one.
func (m *Manager) StartFlow(ctx context.Context, integrationKey, redirectURI, state string) (*AuthorizationRequest, error) {
	def, err := m.integration(integrationKey)
	if err != nil {
		return nil, err
	}
	if def.ServerURL == "" {
		return nil, &ConfigurationError{Integration: def.Key, Reason: "no server URL configured"}
	}
	if redirectURI == "" {
		return nil, &ConfigurationError{Integration: def.Key, Reason: "no redirect URI provided"}
	}

	creds, err := m.GetClient(ctx, def.Key, redirectURI)
	if err != nil {
		return nil, err
	}
	metadata, err := m.Discover(ctx, def.Key)
	if err != nil {
		return nil, err
	}
	// A metadata document without an authorization endpoint is unusable even
	// though discovery itself succeeded.
	if metadata.AuthorizationEndpoint == "" {
		return nil, &DiscoveryError{
			Integration: def.Key,
			ServerURL:   def.ServerURL,
			Err:         errors.New("authorization server metadata has no authorization endpoint"),
		}
	}

	if state == "" {
		state = GenerateState()
	}
	verifier := GenerateCodeVerifier()

	conf := m.oauthConfig(metadata, creds, redirectURI, def.Scopes)
	authorizationURL := conf.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		// RFC 8707: bind the requested token to the integration's server.
		oauth2.SetAuthURLParam("resource", def.ServerURL),
	)

	return &AuthorizationRequest{
		AuthorizationURL: authorizationURL,
		CodeVerifier:     verifier,
		State:            state,
	}, nil
}

func (m *Manager) oauthConfig(metadata *AuthServerMetadata, creds *ClientCredentials, redirectURI string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  metadata.AuthorizationEndpoint,
			TokenURL: metadata.TokenEndpoint,
		},
	}
}
