package oauth

// AuthServerMetadata represents metadata from /.well-known/oauth-authorization-server
// Based on RFC 8414 - OAuth 2.0 Authorization Server Metadata
type AuthServerMetadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	RegistrationEndpoint          string   `json:"registration_endpoint,omitempty"`
	JWKSUri                       string   `json:"jwks_uri,omitempty"`
	ScopesSupported               []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported        []string `json:"response_types_supported,omitempty"`
	GrantTypesSupported           []string `json:"grant_types_supported,omitempty"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// ProtectedResourceMetadata represents metadata from /.well-known/oauth-protected-resource
// Based on RFC 9728 - OAuth 2.0 Protected Resource Metadata
type ProtectedResourceMetadata struct {
	Resource             string   `json:"resource"`
	AuthorizationServer  string   `json:"authorization_server,omitempty"`  // RFC 9728 standard (single)
	AuthorizationServers []string `json:"authorization_servers,omitempty"` // Some servers use plural (array)
	Scopes               []string `json:"scopes,omitempty"`
}

// WWWAuthenticateChallenge represents a parsed WWW-Authenticate header challenge
type WWWAuthenticateChallenge struct {
	Scheme     string
	Parameters map[string]string
}

// registrationRequest represents an OAuth 2.0 Dynamic Client Registration request (RFC 7591)
type registrationRequest struct {
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// registrationResponse represents an OAuth 2.0 Dynamic Client Registration response (RFC 7591)
type registrationResponse struct {
	ClientID              string `json:"client_id"`
	ClientSecret          string `json:"client_secret,omitempty"`
	ClientIDIssuedAt      int64  `json:"client_id_issued_at,omitempty"`
	ClientSecretExpiresAt int64  `json:"client_secret_expires_at,omitempty"`
}

// ClientCredentials are the resolved OAuth client credentials for an
// integration: static, previously registered, or freshly registered.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

// tokenResponse represents a token endpoint response (RFC 6749 Section 5.1)
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}
