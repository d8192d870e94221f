package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	stderrs "github.com/chatwarden/chatwarden/internal/errors"

	"github.com/chatwarden/chatwarden/internal/db"
)

func (c *sqliteClient) GetPolicy(ctx context.Context, chatID int64) (*db.ChatPolicy, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var policy db.ChatPolicy
	err := c.db.GetContext(ctx, &policy, `SELECT * FROM chat_policies WHERE chat_id = ?`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stderrs.ErrPolicyMissing
	}
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}
	return &policy, nil
}

func (c *sqliteClient) SetPolicy(ctx context.Context, policy *db.ChatPolicy) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO chat_policies (
			chat_id, banned_words, blocked_link_kinds, whitelisted_domains, media_rules, max_file_size, block_forwards,
			flood_limit, flood_window_ns, similarity_threshold, max_warnings, escalation_ladder,
			mute_duration_ns, required_channel, captcha_enabled, captcha_timeout_ns, allow_on_check_failure
		) VALUES (
			:chat_id, :banned_words, :blocked_link_kinds, :whitelisted_domains, :media_rules, :max_file_size, :block_forwards,
			:flood_limit, :flood_window_ns, :similarity_threshold, :max_warnings, :escalation_ladder,
			:mute_duration_ns, :required_channel, :captcha_enabled, :captcha_timeout_ns, :allow_on_check_failure
		)
		ON CONFLICT(chat_id) DO UPDATE SET
		banned_words=excluded.banned_words,
		blocked_link_kinds=excluded.blocked_link_kinds,
		whitelisted_domains=excluded.whitelisted_domains,
		media_rules=excluded.media_rules,
		max_file_size=excluded.max_file_size,
		block_forwards=excluded.block_forwards,
		flood_limit=excluded.flood_limit,
		flood_window_ns=excluded.flood_window_ns,
		similarity_threshold=excluded.similarity_threshold,
		max_warnings=excluded.max_warnings,
		escalation_ladder=excluded.escalation_ladder,
		mute_duration_ns=excluded.mute_duration_ns,
		required_channel=excluded.required_channel,
		captcha_enabled=excluded.captcha_enabled,
		captcha_timeout_ns=excluded.captcha_timeout_ns,
		allow_on_check_failure=excluded.allow_on_check_failure;
	`
	_, err := c.db.NamedExecContext(ctx, query, policy)
	return err
}
