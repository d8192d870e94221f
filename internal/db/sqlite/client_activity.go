package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chatwarden/chatwarden/internal/db"
)

func (c *sqliteClient) GetActivity(ctx context.Context, chatID, userID int64) (*db.UserActivity, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var activity db.UserActivity
	err := c.db.GetContext(ctx, &activity, `
		SELECT user_id, chat_id, recent_seen_at, recent_texts, warning_count, last_warning_at, mute_until, banned
		FROM user_activity
		WHERE chat_id = ? AND user_id = ?
	`, chatID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return db.DefaultActivity(userID, chatID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return &activity, nil
}

func (c *sqliteClient) SaveActivity(ctx context.Context, activity *db.UserActivity) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO user_activity (user_id, chat_id, recent_seen_at, recent_texts, warning_count, last_warning_at, mute_until, banned)
		VALUES (:user_id, :chat_id, :recent_seen_at, :recent_texts, :warning_count, :last_warning_at, :mute_until, :banned)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
		recent_seen_at=excluded.recent_seen_at,
		recent_texts=excluded.recent_texts,
		warning_count=excluded.warning_count,
		last_warning_at=excluded.last_warning_at,
		mute_until=excluded.mute_until,
		banned=excluded.banned;
	`
	_, err := c.db.NamedExecContext(ctx, query, activity)
	return err
}
