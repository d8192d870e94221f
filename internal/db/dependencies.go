package db

import (
	"context"
	"time"
)

type Client interface {
	Close() error

	GetActivity(ctx context.Context, chatID, userID int64) (*UserActivity, error)
	SaveActivity(ctx context.Context, activity *UserActivity) error

	GetPolicy(ctx context.Context, chatID int64) (*ChatPolicy, error)
	SetPolicy(ctx context.Context, policy *ChatPolicy) error

	CreateSession(ctx context.Context, session *VerificationSession) error
	GetSession(ctx context.Context, id string) (*VerificationSession, error)
	GetPendingSession(ctx context.Context, chatID, userID int64) (*VerificationSession, error)
	UpdateSession(ctx context.Context, session *VerificationSession) error
	GetExpiredSessions(ctx context.Context, now time.Time) ([]*VerificationSession, error)

	AppendAudit(ctx context.Context, record *AuditRecord) error
	GetAuditLog(ctx context.Context, chatID int64, limit int) ([]*AuditRecord, error)
}
