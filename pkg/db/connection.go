package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

type ConnectionDAO interface {
	GetConnection(ctx context.Context, emailAccountID, integrationID string) (*Connection, error)
	UpsertConnection(ctx context.Context, connection Connection) error
	UpsertAPIKeyConnection(ctx context.Context, emailAccountID, integrationID, apiKey string) error
	UpdateConnectionTokens(ctx context.Context, update TokenUpdate) (bool, error)
}

// Connection is the persisted link between an email account and an
// integration. At most one row exists per (email_account_id, integration_id);
// the unique constraint makes the upsert keyed on that pair.
type Connection struct {
	ID             string     `db:"id"`
	EmailAccountID string     `db:"email_account_id"`
	IntegrationID  string     `db:"integration_id"`
	AccessToken    *string    `db:"access_token"`
	RefreshToken   *string    `db:"refresh_token"`
	ExpiresAt      *time.Time `db:"expires_at"`
	IsActive       bool       `db:"is_active"`
	APIKey         *string    `db:"api_key"`
	CreatedAt      *time.Time `db:"created_at"`
	UpdatedAt      *time.Time `db:"updated_at"`
}

// TokenUpdate describes a refresh-time token rotation. ExpectedRefreshToken
// is the refresh token the caller read before refreshing; the update only
// applies while the row still carries it, so a concurrent refresh cannot be
// overwritten with stale tokens.
type TokenUpdate struct {
	ConnectionID         string
	AccessToken          string
	RefreshToken         *string
	ExpiresAt            time.Time
	ExpectedRefreshToken *string
}

func (d *dao) GetConnection(ctx context.Context, emailAccountID, integrationID string) (*Connection, error) {
	const query = `SELECT * FROM connection WHERE email_account_id = $1 AND integration_id = $2`

	var connection Connection
	err := d.db.GetContext(ctx, &connection, query, emailAccountID, integrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &connection, nil
}

func (d *dao) UpsertConnection(ctx context.Context, connection Connection) error {
	const query = `
		INSERT INTO connection (id, email_account_id, integration_id, access_token, refresh_token, expires_at, is_active, api_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (email_account_id, integration_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			is_active = excluded.is_active,
			updated_at = CURRENT_TIMESTAMP`

	id := connection.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := d.db.ExecContext(ctx, query, id, connection.EmailAccountID, connection.IntegrationID,
		connection.AccessToken, connection.RefreshToken, connection.ExpiresAt, connection.IsActive, connection.APIKey)
	return err
}

func (d *dao) UpsertAPIKeyConnection(ctx context.Context, emailAccountID, integrationID, apiKey string) error {
	const query = `
		INSERT INTO connection (id, email_account_id, integration_id, is_active, api_key)
		VALUES ($1, $2, $3, TRUE, $4)
		ON CONFLICT (email_account_id, integration_id) DO UPDATE SET
			api_key = excluded.api_key,
			is_active = TRUE,
			updated_at = CURRENT_TIMESTAMP`

	_, err := d.db.ExecContext(ctx, query, uuid.NewString(), emailAccountID, integrationID, apiKey)
	return err
}

// UpdateConnectionTokens applies a refresh-time rotation. It reports false
// when the guard did not match, meaning another refresh won the race and the
// caller should re-read the connection instead of persisting its result.
func (d *dao) UpdateConnectionTokens(ctx context.Context, update TokenUpdate) (bool, error) {
	const query = `
		UPDATE connection SET
			access_token = $2,
			refresh_token = COALESCE($3, refresh_token),
			expires_at = $4,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND refresh_token IS $5`

	result, err := d.db.ExecContext(ctx, query, update.ConnectionID, update.AccessToken,
		update.RefreshToken, update.ExpiresAt, update.ExpectedRefreshToken)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
