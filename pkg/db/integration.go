package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

type IntegrationDAO interface {
	GetIntegration(ctx context.Context, name string) (*Integration, error)
	EnsureIntegration(ctx context.Context, name string) (*Integration, error)
	UpsertIntegrationEndpoints(ctx context.Context, name, authorizationURL, tokenURL, serverURL string) error
	UpsertIntegrationClient(ctx context.Context, name, clientID, clientSecret string) error
}

// Integration is the persisted per-integration record: the discovery cache
// plus any dynamically registered client credentials. Created lazily on
// first use.
type Integration struct {
	ID                         string     `db:"id"`
	Name                       string     `db:"name"`
	RegisteredAuthorizationURL *string    `db:"registered_authorization_url"`
	RegisteredTokenURL         *string    `db:"registered_token_url"`
	RegisteredServerURL        *string    `db:"registered_server_url"`
	OAuthClientID              *string    `db:"oauth_client_id"`
	OAuthClientSecret          *string    `db:"oauth_client_secret"`
	CreatedAt                  *time.Time `db:"created_at"`
	UpdatedAt                  *time.Time `db:"updated_at"`
}

// HasCachedEndpoints reports whether the discovery cache is populated and was
// computed for the given server URL. A changed server URL invalidates it.
func (i *Integration) HasCachedEndpoints(serverURL string) bool {
	return i.RegisteredAuthorizationURL != nil && *i.RegisteredAuthorizationURL != "" &&
		i.RegisteredTokenURL != nil && *i.RegisteredTokenURL != "" &&
		i.RegisteredServerURL != nil && *i.RegisteredServerURL == serverURL
}

func (d *dao) GetIntegration(ctx context.Context, name string) (*Integration, error) {
	const query = `SELECT * FROM integration WHERE name = $1`

	var integration Integration
	err := d.db.GetContext(ctx, &integration, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &integration, nil
}

func (d *dao) EnsureIntegration(ctx context.Context, name string) (*Integration, error) {
	// OR IGNORE avoids unique constraint errors. We don't care if the record already exists.
	const query = `INSERT OR IGNORE INTO integration (id, name) VALUES ($1, $2)`

	_, err := d.db.ExecContext(ctx, query, uuid.NewString(), name)
	if err != nil {
		return nil, err
	}
	return d.GetIntegration(ctx, name)
}

// UpsertIntegrationEndpoints writes the discovery cache. It only touches the
// endpoint columns so a concurrent client registration is never clobbered.
func (d *dao) UpsertIntegrationEndpoints(ctx context.Context, name, authorizationURL, tokenURL, serverURL string) error {
	const query = `
		INSERT INTO integration (id, name, registered_authorization_url, registered_token_url, registered_server_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			registered_authorization_url = excluded.registered_authorization_url,
			registered_token_url = excluded.registered_token_url,
			registered_server_url = excluded.registered_server_url,
			updated_at = CURRENT_TIMESTAMP`

	_, err := d.db.ExecContext(ctx, query, uuid.NewString(), name, authorizationURL, tokenURL, serverURL)
	return err
}

// UpsertIntegrationClient stores dynamically registered client credentials
// without touching the endpoint cache columns.
func (d *dao) UpsertIntegrationClient(ctx context.Context, name, clientID, clientSecret string) error {
	const query = `
		INSERT INTO integration (id, name, oauth_client_id, oauth_client_secret)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			oauth_client_id = excluded.oauth_client_id,
			oauth_client_secret = excluded.oauth_client_secret,
			updated_at = CURRENT_TIMESTAMP`

	_, err := d.db.ExecContext(ctx, query, uuid.NewString(), name, clientID, clientSecret)
	return err
}
