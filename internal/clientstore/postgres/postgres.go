//go:build postgres

// Package postgres backs the client store with PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"oidcsync/internal/clientstore"
	"oidcsync/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS client_details (
	id BIGSERIAL PRIMARY KEY,
	client_id TEXT NOT NULL,
	client_secret TEXT NOT NULL DEFAULT '',
	client_name TEXT NOT NULL DEFAULT '',
	client_description TEXT NOT NULL DEFAULT '',
	client_uri TEXT NOT NULL DEFAULT '',
	policy_uri TEXT NOT NULL DEFAULT '',
	redirect_uris TEXT[] NOT NULL DEFAULT '{}',
	scope TEXT[] NOT NULL DEFAULT '{}',
	grant_types TEXT[] NOT NULL DEFAULT '{}',
	response_types TEXT[] NOT NULL DEFAULT '{}',
	post_logout_redirect_uris TEXT[] NOT NULL DEFAULT '{}',
	contacts TEXT[] NOT NULL DEFAULT '{}',
	allow_introspection BOOLEAN NOT NULL DEFAULT FALSE,
	code_challenge_method TEXT NOT NULL DEFAULT '',
	token_endpoint_auth_method TEXT NOT NULL DEFAULT '',
	access_token_validity INTEGER NOT NULL DEFAULT 0,
	id_token_validity INTEGER NOT NULL DEFAULT 0,
	refresh_token_validity INTEGER NOT NULL DEFAULT 0,
	device_code_validity INTEGER NOT NULL DEFAULT 0,
	clear_access_tokens_on_refresh BOOLEAN NOT NULL DEFAULT FALSE,
	reuse_refresh_token BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_client_details_client_id ON client_details(client_id);
`

const columns = `id, client_id, client_secret, client_name,
	client_description, client_uri, policy_uri, redirect_uris, scope,
	grant_types, response_types, post_logout_redirect_uris, contacts,
	allow_introspection, code_challenge_method, token_endpoint_auth_method,
	access_token_validity, id_token_validity, refresh_token_validity,
	device_code_validity, clear_access_tokens_on_refresh,
	reuse_refresh_token, created_at`

// Store implements clientstore.Store backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ clientstore.Store = (*Store)(nil)

// New connects to the database at connStr and bootstraps the schema.
func New(connStr string) (*Store, error) {
	ctx := context.Background()
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewFromPool creates a Store from an existing connection pool. The schema
// is assumed to be in place.
func NewFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) All(ctx context.Context) ([]*domain.ClientRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+columns+` FROM client_details ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ClientRecord
	for rows.Next() {
		rec, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ByClientID(ctx context.Context, clientID string) (*domain.ClientRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+columns+` FROM client_details WHERE client_id = $1`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found *domain.ClientRecord
	for rows.Next() {
		if found != nil {
			return nil, clientstore.ErrAmbiguous
		}
		found, err = scanClient(rows)
		if err != nil {
			return nil, err
		}
	}
	return found, rows.Err()
}

func (s *Store) AllClientIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT client_id FROM client_details`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (s *Store) Save(ctx context.Context, rec *domain.ClientRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO client_details (client_id, client_secret, client_name,
			client_description, client_uri, policy_uri, redirect_uris, scope,
			grant_types, response_types, post_logout_redirect_uris, contacts,
			allow_introspection, code_challenge_method,
			token_endpoint_auth_method, access_token_validity,
			id_token_validity, refresh_token_validity, device_code_validity,
			clear_access_tokens_on_refresh, reuse_refresh_token, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22)
		 RETURNING id`,
		rec.ClientID, rec.ClientSecret, rec.ClientName, rec.ClientDescription,
		rec.ClientURI, rec.PolicyURI, orEmpty(rec.RedirectURIs),
		orEmpty(rec.Scope), orEmpty(rec.GrantTypes), orEmpty(rec.ResponseTypes),
		orEmpty(rec.PostLogoutRedirectURIs), orEmpty(rec.Contacts),
		rec.AllowIntrospection, rec.CodeChallengeMethod,
		rec.TokenEndpointAuthMethod, rec.AccessTokenValiditySeconds,
		rec.IDTokenValiditySeconds, rec.RefreshTokenValiditySeconds,
		rec.DeviceCodeValiditySeconds, rec.ClearAccessTokensOnRefresh,
		rec.ReuseRefreshToken, rec.CreatedAt,
	).Scan(&rec.ID)
}

func (s *Store) Update(ctx context.Context, rec *domain.ClientRecord) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE client_details SET client_id = $1, client_secret = $2,
			client_name = $3, client_description = $4, client_uri = $5,
			policy_uri = $6, redirect_uris = $7, scope = $8, grant_types = $9,
			response_types = $10, post_logout_redirect_uris = $11,
			contacts = $12, allow_introspection = $13,
			code_challenge_method = $14, token_endpoint_auth_method = $15,
			access_token_validity = $16, id_token_validity = $17,
			refresh_token_validity = $18, device_code_validity = $19,
			clear_access_tokens_on_refresh = $20, reuse_refresh_token = $21
		 WHERE id = $22`,
		rec.ClientID, rec.ClientSecret, rec.ClientName, rec.ClientDescription,
		rec.ClientURI, rec.PolicyURI, orEmpty(rec.RedirectURIs),
		orEmpty(rec.Scope), orEmpty(rec.GrantTypes), orEmpty(rec.ResponseTypes),
		orEmpty(rec.PostLogoutRedirectURIs), orEmpty(rec.Contacts),
		rec.AllowIntrospection, rec.CodeChallengeMethod,
		rec.TokenEndpointAuthMethod, rec.AccessTokenValiditySeconds,
		rec.IDTokenValiditySeconds, rec.RefreshTokenValiditySeconds,
		rec.DeviceCodeValiditySeconds, rec.ClearAccessTokensOnRefresh,
		rec.ReuseRefreshToken, rec.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return clientstore.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, clientID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM client_details WHERE client_id = $1`, clientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return clientstore.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteByClientIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM client_details WHERE client_id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanClient(rows pgx.Rows) (*domain.ClientRecord, error) {
	var rec domain.ClientRecord
	if err := rows.Scan(&rec.ID, &rec.ClientID, &rec.ClientSecret,
		&rec.ClientName, &rec.ClientDescription, &rec.ClientURI, &rec.PolicyURI,
		&rec.RedirectURIs, &rec.Scope, &rec.GrantTypes, &rec.ResponseTypes,
		&rec.PostLogoutRedirectURIs, &rec.Contacts, &rec.AllowIntrospection,
		&rec.CodeChallengeMethod, &rec.TokenEndpointAuthMethod,
		&rec.AccessTokenValiditySeconds, &rec.IDTokenValiditySeconds,
		&rec.RefreshTokenValiditySeconds, &rec.DeviceCodeValiditySeconds,
		&rec.ClearAccessTokensOnRefresh, &rec.ReuseRefreshToken,
		&rec.CreatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// orEmpty keeps TEXT[] columns NOT NULL friendly.
func orEmpty(vals []string) []string {
	if vals == nil {
		return []string{}
	}
	return vals
}
