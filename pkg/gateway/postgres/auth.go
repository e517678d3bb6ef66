package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gemeos/tenant-auth/pkg/gateway"
)

// GetSession resolves the access token to a live, unrevoked session
func (g *Gateway) GetSession(ctx context.Context) (*gateway.AuthSession, error) {
	if g.accessToken == "" {
		return nil, nil
	}

	query := `
		SELECT s.expires_at, p.user_id, p.email, p.metadata
		FROM auth_sessions s
		JOIN profiles p ON p.user_id = s.user_id
		WHERE s.token_hash = $1
		  AND s.revoked_at IS NULL
		  AND s.expires_at > $2
	`
	session := &gateway.AuthSession{}
	var metadata []byte
	err := g.db.QueryRowContext(ctx, query, HashToken(g.accessToken), g.now()).Scan(
		&session.ExpiresAt, &session.User.ID, &session.User.Email, &metadata,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &session.User.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal user metadata: %w", err)
		}
	}

	return session, nil
}

// GetUser returns the user behind the current session
func (g *Gateway) GetUser(ctx context.Context) (*gateway.AuthUser, error) {
	session, err := g.GetSession(ctx)
	if err != nil || session == nil {
		return nil, err
	}
	return &session.User, nil
}

// SignOut revokes the current session
func (g *Gateway) SignOut(ctx context.Context) error {
	if g.accessToken == "" {
		return nil
	}

	query := `UPDATE auth_sessions SET revoked_at = $2 WHERE token_hash = $1 AND revoked_at IS NULL`
	if _, err := g.db.ExecContext(ctx, query, HashToken(g.accessToken), g.now()); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// InviteUserByEmail records a pending invitation; delivery is handled by the mailer
// that consumes the invitations table.
func (g *Gateway) InviteUserByEmail(ctx context.Context, email string, metadata map[string]any) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal invitation metadata: %w", err)
	}

	query := `
		INSERT INTO invitations (email, metadata, invited_by, created_at)
		VALUES ($1, $2, (SELECT user_id FROM auth_sessions WHERE token_hash = $3), $4)
		ON CONFLICT (email) DO UPDATE
		SET metadata = EXCLUDED.metadata, invited_by = EXCLUDED.invited_by, created_at = EXCLUDED.created_at
	`
	if _, err := g.db.ExecContext(ctx, query, email, metadataJSON, HashToken(g.accessToken), g.now()); err != nil {
		return fmt.Errorf("failed to invite user: %w", err)
	}
	return nil
}
