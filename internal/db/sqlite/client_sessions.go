package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	stderrs "github.com/chatwarden/chatwarden/internal/errors"

	"github.com/chatwarden/chatwarden/internal/db"
)

func (c *sqliteClient) CreateSession(ctx context.Context, session *db.VerificationSession) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO verification_sessions (
			id, user_id, chat_id, question, answer, choices, created_at, expires_at,
			attempts, subscription_verified, state
		) VALUES (
			:id, :user_id, :chat_id, :question, :answer, :choices, :created_at, :expires_at,
			:attempts, :subscription_verified, :state
		)
	`
	_, err := c.db.NamedExecContext(ctx, query, session)
	return err
}

func (c *sqliteClient) GetSession(ctx context.Context, id string) (*db.VerificationSession, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var session db.VerificationSession
	err := c.db.GetContext(ctx, &session, `SELECT * FROM verification_sessions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stderrs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

func (c *sqliteClient) GetPendingSession(ctx context.Context, chatID, userID int64) (*db.VerificationSession, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var session db.VerificationSession
	err := c.db.GetContext(ctx, &session, `
		SELECT * FROM verification_sessions
		WHERE chat_id = ? AND user_id = ? AND state = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, chatID, userID, db.SessionStatePending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stderrs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pending session: %w", err)
	}
	return &session, nil
}

func (c *sqliteClient) UpdateSession(ctx context.Context, session *db.VerificationSession) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		UPDATE verification_sessions
		SET attempts = :attempts,
			subscription_verified = :subscription_verified,
			state = :state
		WHERE id = :id
	`
	_, err := c.db.NamedExecContext(ctx, query, session)
	return err
}

func (c *sqliteClient) GetExpiredSessions(ctx context.Context, now time.Time) ([]*db.VerificationSession, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var sessions []*db.VerificationSession
	err := c.db.SelectContext(ctx, &sessions, `
		SELECT * FROM verification_sessions
		WHERE state = ? AND expires_at <= ?
	`, db.SessionStatePending, now)
	if err != nil {
		return nil, fmt.Errorf("get expired sessions: %w", err)
	}
	return sessions, nil
}
