package catalog

import "strings"

// AuthType says how an integration authenticates.
type AuthType string

const (
	AuthTypeOAuth    AuthType = "oauth"
	AuthTypeAPIToken AuthType = "api-token"
)

// Catalog holds the integration definitions, keyed by integration key.
type Catalog struct {
	Integrations map[string]Integration
}

// integrations.yaml

type topLevel struct {
	Name         string                 `yaml:"name,omitempty" json:"name,omitempty"`
	Integrations map[string]Integration `yaml:"integrations" json:"integrations"`
}

// Integration describes a single third-party integration: where its MCP
// server lives, which scopes to request, and how to authenticate against it.
// Definitions are immutable at runtime.
type Integration struct {
	Key         string `yaml:"key,omitempty" json:"key,omitempty"`
	DisplayName string `yaml:"displayName,omitempty" json:"displayName,omitempty"`

	// ServerURL is the MCP server endpoint. Empty for api-token integrations
	// that have no protocol flow.
	ServerURL string   `yaml:"serverUrl,omitempty" json:"serverUrl,omitempty" validate:"omitempty,url"`
	Scopes    []string `yaml:"scopes,omitempty" json:"scopes,omitempty"`
	AuthType  AuthType `yaml:"authType" json:"authType" validate:"required,oneof=oauth api-token"`

	// StaticCredentials are pre-registered client credentials, used when the
	// provider does not support dynamic client registration.
	StaticCredentials *StaticCredentials `yaml:"staticCredentials,omitempty" json:"staticCredentials,omitempty"`

	// FallbackOAuthConfig is used when authorization-server discovery fails.
	FallbackOAuthConfig *FallbackOAuthConfig `yaml:"fallbackOAuthConfig,omitempty" json:"fallbackOAuthConfig,omitempty"`
}

type StaticCredentials struct {
	ClientID     string `yaml:"clientId" json:"clientId" validate:"required"`
	ClientSecret string `yaml:"clientSecret,omitempty" json:"clientSecret,omitempty"`
}

type FallbackOAuthConfig struct {
	AuthorizationEndpoint string `yaml:"authorizationEndpoint" json:"authorizationEndpoint" validate:"required,url"`
	TokenEndpoint         string `yaml:"tokenEndpoint" json:"tokenEndpoint" validate:"required,url"`
	RegistrationEndpoint  string `yaml:"registrationEndpoint,omitempty" json:"registrationEndpoint,omitempty" validate:"omitempty,url"`
}

// IsOAuth reports whether the integration runs the OAuth protocol flow.
func (i *Integration) IsOAuth() bool {
	return i.AuthType == AuthTypeOAuth
}

// ScopeString joins the configured scopes into the space-separated form used
// on the wire (RFC 6749 Section 3.3).
func (i *Integration) ScopeString() string {
	return strings.Join(i.Scopes, " ")
}
