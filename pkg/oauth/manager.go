package oauth

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lufe-digital/inbox-zero/pkg/catalog"
	"github.com/lufe-digital/inbox-zero/pkg/db"
)

// defaultTokenLifetime is assumed when a token response carries no
// expires_in. Treating such tokens as never-expiring would be worse than an
// occasional early refresh.
const defaultTokenLifetime = time.Hour

// Manager runs the OAuth lifecycle for integrations: authorization-server
// discovery, client registration, the PKCE code flow, and token refresh.
// All state lives in the store, so multiple instances can run concurrently.
type Manager struct {
	catalog *catalog.Catalog
	dao     db.DAO
	client  *http.Client
	log     *zap.Logger
	now     func() time.Time

	// refreshes serializes in-flight refreshes per connection so two expired
	// callers don't both burn the same refresh token.
	refreshes singleflight.Group
}

type ManagerOption func(*Manager)

// WithHTTPClient overrides the HTTP client used for all protocol calls.
func WithHTTPClient(client *http.Client) ManagerOption {
	return func(m *Manager) { m.client = client }
}

// WithLogger sets the manager's logger.
func WithLogger(log *zap.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager builds a Manager over the given catalog and store. Construct it
// once at process start and share it; it holds no per-request state.
func NewManager(cat *catalog.Catalog, dao db.DAO, opts ...ManagerOption) *Manager {
	m := &Manager{
		catalog: cat,
		dao:     dao,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// integration resolves a catalog key, mapping unknown keys to the
// configuration error every operation reports them as.
func (m *Manager) integration(key string) (catalog.Integration, error) {
	def, err := m.catalog.Get(key)
	if err != nil {
		return catalog.Integration{}, &ConfigurationError{Integration: key, Reason: "unknown integration key"}
	}
	return def, nil
}

// expiryFrom computes the absolute expiry for a token response, applying the
// default lifetime when the provider omitted expires_in.
func (m *Manager) expiryFrom(integrationKey string, expiresIn int64) time.Time {
	if expiresIn > 0 {
		return m.now().Add(time.Duration(expiresIn) * time.Second)
	}
	m.log.Warn("token response has no expires_in, applying default lifetime",
		zap.String("integration", integrationKey),
		zap.Duration("lifetime", defaultTokenLifetime))
	return m.now().Add(defaultTokenLifetime)
}
