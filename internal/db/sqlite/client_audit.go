package sqlite

import (
	"context"
	"fmt"

	"github.com/chatwarden/chatwarden/internal/db"
)

// Audit history is capped per chat; older rows beyond the cap are pruned on
// every append.
const auditRetainPerChat = 100

func (c *sqliteClient) AppendAudit(ctx context.Context, record *db.AuditRecord) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO audit_log (event_kind, user_id, chat_id, verdict, reason, created_at)
		VALUES (:event_kind, :user_id, :chat_id, :verdict, :reason, :created_at)
	`
	if _, err := c.db.NamedExecContext(ctx, query, record); err != nil {
		return err
	}

	_, err := c.db.ExecContext(ctx, `
		DELETE FROM audit_log
		WHERE chat_id = ? AND id NOT IN (
			SELECT id FROM audit_log WHERE chat_id = ? ORDER BY id DESC LIMIT ?
		)
	`, record.ChatID, record.ChatID, auditRetainPerChat)
	return err
}

func (c *sqliteClient) GetAuditLog(ctx context.Context, chatID int64, limit int) ([]*db.AuditRecord, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if limit <= 0 || limit > auditRetainPerChat {
		limit = auditRetainPerChat
	}
	var records []*db.AuditRecord
	err := c.db.SelectContext(ctx, &records, `
		SELECT * FROM audit_log WHERE chat_id = ? ORDER BY id DESC LIMIT ?
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("get audit log: %w", err)
	}
	return records, nil
}
