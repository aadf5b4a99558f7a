package oauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lufe-digital/inbox-zero/pkg/catalog"
	"github.com/lufe-digital/inbox-zero/pkg/db"
)

func newTestDAO(t *testing.T) db.DAO {
	t.Helper()
	dao, err := db.New(db.WithDatabaseFile(filepath.Join(t.TempDir(), "integrations.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dao.Close() })
	return dao
}

func newTestCatalog(integrations map[string]catalog.Integration) *catalog.Catalog {
	for key, def := range integrations {
		def.Key = key
		integrations[key] = def
	}
	return &catalog.Catalog{Integrations: integrations}
}

// fakeProvider is an in-process MCP server + authorization server. It records
// every request so tests can assert on network traffic (or its absence).
type fakeProvider struct {
	t  *testing.T
	mu sync.Mutex

	srv *httptest.Server

	registration      bool  // expose a registration_endpoint
	expiresIn         int64 // 0 omits expires_in from token responses
	issueRefreshToken bool
	rotateOnRefresh   bool
	rejectCode        bool // authorization_code grants fail with invalid_grant
	failWellKnown     bool // authorization-server metadata endpoints return 500
	resourceMetadata  string

	currentRefresh   string
	lastRegistration registrationRequest
	lastTokenForm    url.Values
	requests         []string
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{t: t, issueRefreshToken: true, expiresIn: 3600}
	p.srv = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.srv.Close)
	return p
}

// serverURL returns the MCP endpoint, deliberately carrying a path suffix so
// tests exercise the origin-stripping behavior.
func (p *fakeProvider) serverURL() string {
	return p.srv.URL + "/mcp"
}

func (p *fakeProvider) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *fakeProvider) requestPaths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.requests...)
}

func (p *fakeProvider) handle(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.requests = append(p.requests, r.URL.Path)
	p.mu.Unlock()

	switch r.URL.Path {
	case "/.well-known/oauth-protected-resource":
		if p.resourceMetadata == "" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]any{
			"resource":              p.serverURL(),
			"authorization_servers": []string{p.resourceMetadata},
		})
	case "/.well-known/oauth-authorization-server", "/.well-known/openid-configuration":
		if p.failWellKnown {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		metadata := map[string]any{
			"issuer":                 p.srv.URL,
			"authorization_endpoint": p.srv.URL + "/authorize",
			"token_endpoint":         p.srv.URL + "/token",
		}
		if p.registration {
			metadata["registration_endpoint"] = p.srv.URL + "/register"
		}
		writeJSON(w, metadata)
	case "/register":
		var req registrationRequest
		require.NoError(p.t, json.NewDecoder(r.Body).Decode(&req))
		p.mu.Lock()
		p.lastRegistration = req
		p.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]any{"client_id": "dynamic-client-1"})
	case "/token":
		p.handleToken(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (p *fakeProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	require.NoError(p.t, r.ParseForm())
	p.mu.Lock()
	p.lastTokenForm = r.PostForm
	p.mu.Unlock()

	response := map[string]any{
		"access_token": "access-token-1",
		"token_type":   "Bearer",
	}
	if p.expiresIn > 0 {
		response["expires_in"] = p.expiresIn
	}

	switch r.PostFormValue("grant_type") {
	case "authorization_code":
		if p.rejectCode {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_grant",
				"error_description": "authorization code is not valid",
			})
			return
		}
		if p.issueRefreshToken {
			p.mu.Lock()
			p.currentRefresh = "refresh-token-1"
			p.mu.Unlock()
			response["refresh_token"] = "refresh-token-1"
		}
	case "refresh_token":
		p.mu.Lock()
		current := p.currentRefresh
		p.mu.Unlock()
		if r.PostFormValue("refresh_token") != current {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_grant",
				"error_description": "refresh token is not valid",
			})
			return
		}
		response["access_token"] = "access-token-2"
		if p.rotateOnRefresh {
			p.mu.Lock()
			p.currentRefresh = "refresh-token-2"
			p.mu.Unlock()
			response["refresh_token"] = "refresh-token-2"
		}
	default:
		http.Error(w, "unsupported grant", http.StatusBadRequest)
		return
	}

	writeJSON(w, response)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestManager(t *testing.T, cat *catalog.Catalog, dao db.DAO, opts ...ManagerOption) *Manager {
	t.Helper()
	opts = append([]ManagerOption{
		WithHTTPClient(&http.Client{Timeout: 5 * time.Second}),
	}, opts...)
	return NewManager(cat, dao, opts...)
}
