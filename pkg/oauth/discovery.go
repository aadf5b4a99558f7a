package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/lufe-digital/inbox-zero/pkg/catalog"
	"github.com/lufe-digital/inbox-zero/pkg/telemetry"
)

// discoveryStrategy is one way of obtaining authorization-server metadata.
// Strategies are tried in order; returning (nil, nil) means "not applicable,
// try the next one".
type discoveryStrategy struct {
	name string
	run  func(ctx context.Context, def catalog.Integration) (*AuthServerMetadata, error)
}

// Discover produces authorization-server metadata for an integration,
// trying the persisted cache, then live discovery (RFC 9728 + RFC 8414),
// then the integration's static fallback config. It never returns cached
// endpoints computed for a different server URL.
func (m *Manager) Discover(ctx context.Context, integrationKey string) (*AuthServerMetadata, error) {
	def, err := m.integration(integrationKey)
	if err != nil {
		return nil, err
	}
	if def.ServerURL == "" && def.FallbackOAuthConfig == nil {
		return nil, &ConfigurationError{Integration: integrationKey, Reason: "no server URL configured"}
	}

	strategies := []discoveryStrategy{
		{name: "cache", run: m.cachedMetadata},
		{name: "live", run: m.liveDiscovery},
		{name: "fallback", run: m.staticFallback},
	}

	var errs []error
	for _, strategy := range strategies {
		metadata, err := strategy.run(ctx, def)
		if err != nil {
			m.log.Debug("discovery strategy failed",
				zap.String("integration", def.Key),
				zap.String("strategy", strategy.name),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", strategy.name, err))
			continue
		}
		if metadata == nil {
			continue
		}
		telemetry.RecordDiscovery(ctx, def.Key, strategy.name)
		return metadata, nil
	}

	telemetry.RecordDiscovery(ctx, def.Key, "error")
	if def.FallbackOAuthConfig == nil {
		errs = append(errs, errors.New("no fallback OAuth config is set for this integration"))
	}
	return nil, &DiscoveryError{Integration: def.Key, ServerURL: def.ServerURL, Err: errors.Join(errs...)}
}

// cachedMetadata returns the persisted endpoints when they were discovered
// for the currently configured server URL. A cache hit makes no network call.
func (m *Manager) cachedMetadata(ctx context.Context, def catalog.Integration) (*AuthServerMetadata, error) {
	if def.ServerURL == "" {
		return nil, nil
	}
	record, err := m.dao.GetIntegration(ctx, def.Key)
	if err != nil {
		return nil, fmt.Errorf("reading integration record: %w", err)
	}
	if record == nil || !record.HasCachedEndpoints(def.ServerURL) {
		return nil, nil
	}
	return &AuthServerMetadata{
		AuthorizationEndpoint: *record.RegisteredAuthorizationURL,
		TokenEndpoint:         *record.RegisteredTokenURL,
	}, nil
}

// liveDiscovery resolves the authorization server for the integration's MCP
// server and fetches its metadata. The protected-resource steps are best
// effort; the authorization-server metadata fetch is not.
func (m *Manager) liveDiscovery(ctx context.Context, def catalog.Integration) (*AuthServerMetadata, error) {
	if def.ServerURL == "" {
		return nil, nil
	}

	parsed, err := url.Parse(def.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %s: %w", def.ServerURL, err)
	}
	// Discovery targets the server origin, not the MCP endpoint path.
	baseURL := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)

	authServerURL := baseURL
	if resourceMetadata := m.probeProtectedResource(ctx, def, baseURL); resourceMetadata != nil {
		authServerURL = resourceMetadata.authorizationServer()
		m.log.Debug("protected-resource metadata points to authorization server",
			zap.String("integration", def.Key),
			zap.String("authorization_server", authServerURL))
	}

	metadata, err := m.fetchAuthServerMetadata(ctx, authServerURL)
	if err != nil {
		return nil, err
	}

	if err := m.dao.UpsertIntegrationEndpoints(ctx, def.Key, metadata.AuthorizationEndpoint, metadata.TokenEndpoint, def.ServerURL); err != nil {
		return nil, fmt.Errorf("caching discovered endpoints: %w", err)
	}
	m.log.Info("discovered authorization server",
		zap.String("integration", def.Key),
		zap.String("authorization_endpoint", metadata.AuthorizationEndpoint),
		zap.String("token_endpoint", metadata.TokenEndpoint))
	return metadata, nil
}

// staticFallback builds metadata from the integration's fallbackOAuthConfig
// and persists it as the cache so subsequent calls are cache hits.
func (m *Manager) staticFallback(ctx context.Context, def catalog.Integration) (*AuthServerMetadata, error) {
	fallback := def.FallbackOAuthConfig
	if fallback == nil {
		return nil, nil
	}
	metadata := &AuthServerMetadata{
		AuthorizationEndpoint: fallback.AuthorizationEndpoint,
		TokenEndpoint:         fallback.TokenEndpoint,
		RegistrationEndpoint:  fallback.RegistrationEndpoint,
	}
	if err := m.dao.UpsertIntegrationEndpoints(ctx, def.Key, metadata.AuthorizationEndpoint, metadata.TokenEndpoint, def.ServerURL); err != nil {
		return nil, fmt.Errorf("caching fallback endpoints: %w", err)
	}
	m.log.Warn("authorization server discovery failed, using fallback OAuth config",
		zap.String("integration", def.Key))
	return metadata, nil
}

// probeProtectedResource tries to locate the server's protected-resource
// metadata (RFC 9728): first via a 401 probe's WWW-Authenticate
// resource_metadata pointer, then via the well-known document. Servers that
// implement neither are common; every failure here is logged and swallowed.
func (m *Manager) probeProtectedResource(ctx context.Context, def catalog.Integration, baseURL string) *ProtectedResourceMetadata {
	metadataURL := baseURL + "/.well-known/oauth-protected-resource"
	if pointer := m.probeResourceMetadataURL(ctx, def); pointer != "" {
		metadataURL = pointer
	}

	metadata, err := m.fetchProtectedResourceMetadata(ctx, metadataURL)
	if err != nil {
		m.log.Debug("protected-resource metadata not available",
			zap.String("integration", def.Key),
			zap.String("url", metadataURL),
			zap.Error(err))
		return nil
	}
	return metadata
}

// probeResourceMetadataURL sends an unauthenticated request to the MCP server
// hoping for a 401 whose WWW-Authenticate header carries a resource_metadata
// pointer (RFC 9728 Section 5.1). Best effort.
func (m *Manager) probeResourceMetadataURL(ctx context.Context, def catalog.Integration) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, def.ServerURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		m.log.Debug("server probe failed", zap.String("integration", def.Key), zap.Error(err))
		return ""
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusUnauthorized {
		return ""
	}
	challenges, err := ParseWWWAuthenticate(resp.Header.Get("WWW-Authenticate"))
	if err != nil {
		return ""
	}
	return FindResourceMetadataURL(challenges)
}

func (m *Manager) fetchProtectedResourceMetadata(ctx context.Context, metadataURL string) (*ProtectedResourceMetadata, error) {
	var metadata ProtectedResourceMetadata
	if err := m.getJSON(ctx, metadataURL, &metadata); err != nil {
		return nil, err
	}
	if metadata.authorizationServer() == "" {
		return nil, errors.New("authorization_server missing in protected resource metadata")
	}
	return &metadata, nil
}

// authorizationServer handles both the RFC 9728 plural form and the singular
// form some servers use.
func (p *ProtectedResourceMetadata) authorizationServer() string {
	if p.AuthorizationServer != "" {
		return p.AuthorizationServer
	}
	if len(p.AuthorizationServers) > 0 {
		return p.AuthorizationServers[0]
	}
	return ""
}

// fetchAuthServerMetadata fetches RFC 8414 metadata from the authorization
// server, falling back to the OIDC discovery document for servers that only
// publish that.
func (m *Manager) fetchAuthServerMetadata(ctx context.Context, authServerURL string) (*AuthServerMetadata, error) {
	base := strings.TrimSuffix(authServerURL, "/")

	var errs []error
	for _, wellKnown := range []string{"/.well-known/oauth-authorization-server", "/.well-known/openid-configuration"} {
		var metadata AuthServerMetadata
		if err := m.getJSON(ctx, base+wellKnown, &metadata); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := validateAuthServerMetadata(&metadata, authServerURL); err != nil {
			errs = append(errs, err)
			continue
		}
		return &metadata, nil
	}
	return nil, fmt.Errorf("fetching authorization server metadata from %s: %w", authServerURL, errors.Join(errs...))
}

func validateAuthServerMetadata(metadata *AuthServerMetadata, authServerURL string) error {
	if metadata.Issuer == "" {
		return errors.New("issuer field missing in authorization server metadata")
	}
	if metadata.AuthorizationEndpoint == "" {
		return errors.New("authorization_endpoint field missing in authorization server metadata")
	}
	if metadata.TokenEndpoint == "" {
		return errors.New("token_endpoint field missing in authorization server metadata")
	}

	// RFC 8414 Section 3.2: the issuer must match the server the metadata
	// was fetched from.
	issuerURL, err := url.Parse(metadata.Issuer)
	if err != nil {
		return fmt.Errorf("invalid issuer URL: %w", err)
	}
	authURL, err := url.Parse(authServerURL)
	if err != nil {
		return fmt.Errorf("invalid authorization server URL: %w", err)
	}
	if issuerURL.Scheme != authURL.Scheme || issuerURL.Host != authURL.Host {
		return fmt.Errorf("issuer URL %s does not match authorization server URL %s", metadata.Issuer, authServerURL)
	}
	return nil
}

// getJSON fetches a metadata document with a single request. Failures are
// never retried here; a failed strategy just hands off to the next one in
// the discovery chain.
func (m *Manager) getJSON(ctx context.Context, requestURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", requestURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s returned status %d", requestURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing JSON from %s: %w", requestURL, err)
	}
	return nil
}
