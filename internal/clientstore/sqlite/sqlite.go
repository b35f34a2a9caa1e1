//go:build sqlite

// Package sqlite backs the client store with a single-file SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // CGO-less SQLite driver

	"oidcsync/internal/clientstore"
	"oidcsync/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS client_details (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	client_id TEXT NOT NULL,
	client_secret TEXT NOT NULL DEFAULT '',
	client_name TEXT NOT NULL DEFAULT '',
	client_description TEXT NOT NULL DEFAULT '',
	client_uri TEXT NOT NULL DEFAULT '',
	policy_uri TEXT NOT NULL DEFAULT '',
	redirect_uris TEXT NOT NULL DEFAULT '[]',
	scope TEXT NOT NULL DEFAULT '[]',
	grant_types TEXT NOT NULL DEFAULT '[]',
	response_types TEXT NOT NULL DEFAULT '[]',
	post_logout_redirect_uris TEXT NOT NULL DEFAULT '[]',
	contacts TEXT NOT NULL DEFAULT '[]',
	allow_introspection INTEGER NOT NULL DEFAULT 0,
	code_challenge_method TEXT NOT NULL DEFAULT '',
	token_endpoint_auth_method TEXT NOT NULL DEFAULT '',
	access_token_validity INTEGER NOT NULL DEFAULT 0,
	id_token_validity INTEGER NOT NULL DEFAULT 0,
	refresh_token_validity INTEGER NOT NULL DEFAULT 0,
	device_code_validity INTEGER NOT NULL DEFAULT 0,
	clear_access_tokens_on_refresh INTEGER NOT NULL DEFAULT 0,
	reuse_refresh_token INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_client_details_client_id ON client_details(client_id);
`

const columns = `id, client_id, client_secret, client_name, client_description,
	client_uri, policy_uri, redirect_uris, scope, grant_types, response_types,
	post_logout_redirect_uris, contacts, allow_introspection,
	code_challenge_method, token_endpoint_auth_method, access_token_validity,
	id_token_validity, refresh_token_validity, device_code_validity,
	clear_access_tokens_on_refresh, reuse_refresh_token, created_at`

// Store implements clientstore.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ clientstore.Store = (*Store)(nil)

// New opens (or creates) the database at dsn and bootstraps the schema.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) All(ctx context.Context) ([]*domain.ClientRecord, error) {
	rows, err := s.db.QueryContext(ctx,
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM client_details WHERE client_id = ?`, clientID)
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
	rows, err := s.db.QueryContext(ctx, `SELECT client_id FROM client_details`)
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
	lists, err := encodeLists(rec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO client_details (client_id, client_secret, client_name,
			client_description, client_uri, policy_uri, redirect_uris, scope,
			grant_types, response_types, post_logout_redirect_uris, contacts,
			allow_introspection, code_challenge_method,
			token_endpoint_auth_method, access_token_validity,
			id_token_validity, refresh_token_validity, device_code_validity,
			clear_access_tokens_on_refresh, reuse_refresh_token, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ClientID, rec.ClientSecret, rec.ClientName, rec.ClientDescription,
		rec.ClientURI, rec.PolicyURI, lists.redirectURIs, lists.scope,
		lists.grantTypes, lists.responseTypes, lists.postLogoutRedirectURIs,
		lists.contacts, boolToInt(rec.AllowIntrospection),
		rec.CodeChallengeMethod, rec.TokenEndpointAuthMethod,
		rec.AccessTokenValiditySeconds, rec.IDTokenValiditySeconds,
		rec.RefreshTokenValiditySeconds, rec.DeviceCodeValiditySeconds,
		boolToInt(rec.ClearAccessTokensOnRefresh), boolToInt(rec.ReuseRefreshToken),
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return err
	}
	rec.ID, err = res.LastInsertId()
	return err
}

func (s *Store) Update(ctx context.Context, rec *domain.ClientRecord) error {
	lists, err := encodeLists(rec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE client_details SET client_id = ?, client_secret = ?,
			client_name = ?, client_description = ?, client_uri = ?,
			policy_uri = ?, redirect_uris = ?, scope = ?, grant_types = ?,
			response_types = ?, post_logout_redirect_uris = ?, contacts = ?,
			allow_introspection = ?, code_challenge_method = ?,
			token_endpoint_auth_method = ?, access_token_validity = ?,
			id_token_validity = ?, refresh_token_validity = ?,
			device_code_validity = ?, clear_access_tokens_on_refresh = ?,
			reuse_refresh_token = ?
		 WHERE id = ?`,
		rec.ClientID, rec.ClientSecret, rec.ClientName, rec.ClientDescription,
		rec.ClientURI, rec.PolicyURI, lists.redirectURIs, lists.scope,
		lists.grantTypes, lists.responseTypes, lists.postLogoutRedirectURIs,
		lists.contacts, boolToInt(rec.AllowIntrospection),
		rec.CodeChallengeMethod, rec.TokenEndpointAuthMethod,
		rec.AccessTokenValiditySeconds, rec.IDTokenValiditySeconds,
		rec.RefreshTokenValiditySeconds, rec.DeviceCodeValiditySeconds,
		boolToInt(rec.ClearAccessTokensOnRefresh), boolToInt(rec.ReuseRefreshToken),
		rec.ID,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return clientstore.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, clientID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM client_details WHERE client_id = ?`, clientID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return clientstore.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteByClientIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM client_details WHERE client_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Close() error { return s.db.Close() }

type encodedLists struct {
	redirectURIs           string
	scope                  string
	grantTypes             string
	responseTypes          string
	postLogoutRedirectURIs string
	contacts               string
}

func encodeLists(rec *domain.ClientRecord) (encodedLists, error) {
	var out encodedLists
	var err error
	if out.redirectURIs, err = encodeList(rec.RedirectURIs); err != nil {
		return out, err
	}
	if out.scope, err = encodeList(rec.Scope); err != nil {
		return out, err
	}
	if out.grantTypes, err = encodeList(rec.GrantTypes); err != nil {
		return out, err
	}
	if out.responseTypes, err = encodeList(rec.ResponseTypes); err != nil {
		return out, err
	}
	if out.postLogoutRedirectURIs, err = encodeList(rec.PostLogoutRedirectURIs); err != nil {
		return out, err
	}
	if out.contacts, err = encodeList(rec.Contacts); err != nil {
		return out, err
	}
	return out, nil
}

func encodeList(vals []string) (string, error) {
	if vals == nil {
		vals = []string{}
	}
	data, err := json.Marshal(vals)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeList(data string, dst *[]string) error {
	if data == "" {
		*dst = nil
		return nil
	}
	var vals []string
	if err := json.Unmarshal([]byte(data), &vals); err != nil {
		return err
	}
	if len(vals) == 0 {
		vals = nil
	}
	*dst = vals
	return nil
}

func scanClient(rows *sql.Rows) (*domain.ClientRecord, error) {
	var rec domain.ClientRecord
	var redirectURIs, scope, grantTypes, responseTypes, postLogout, contacts string
	var allowIntrospection, clearOnRefresh, reuseRefresh int
	var createdAt string
	if err := rows.Scan(&rec.ID, &rec.ClientID, &rec.ClientSecret,
		&rec.ClientName, &rec.ClientDescription, &rec.ClientURI, &rec.PolicyURI,
		&redirectURIs, &scope, &grantTypes, &responseTypes, &postLogout,
		&contacts, &allowIntrospection, &rec.CodeChallengeMethod,
		&rec.TokenEndpointAuthMethod, &rec.AccessTokenValiditySeconds,
		&rec.IDTokenValiditySeconds, &rec.RefreshTokenValiditySeconds,
		&rec.DeviceCodeValiditySeconds, &clearOnRefresh, &reuseRefresh,
		&createdAt); err != nil {
		return nil, err
	}
	lists := []struct {
		data string
		dst  *[]string
	}{
		{redirectURIs, &rec.RedirectURIs},
		{scope, &rec.Scope},
		{grantTypes, &rec.GrantTypes},
		{responseTypes, &rec.ResponseTypes},
		{postLogout, &rec.PostLogoutRedirectURIs},
		{contacts, &rec.Contacts},
	}
	for _, l := range lists {
		if err := decodeList(l.data, l.dst); err != nil {
			return nil, err
		}
	}
	rec.AllowIntrospection = allowIntrospection != 0
	rec.ClearAccessTokensOnRefresh = clearOnRefresh != 0
	rec.ReuseRefreshToken = reuseRefresh != 0
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = ts
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
