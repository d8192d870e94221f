package audit

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/chatwarden/chatwarden/internal/db"
)

const queueSize = 1024

type auditStore interface {
	AppendAudit(ctx context.Context, record *db.AuditRecord) error
}

// Logger fans moderation decisions out to the structured audit stream and the
// audit table. Fully fire-and-forget: enqueueing never blocks a decision, and
// a full queue drops the record rather than stalling the engine.
type Logger struct {
	q     chan db.AuditRecord
	zl    *zap.Logger
	store auditStore

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

func NewLogger(zl *zap.Logger, store auditStore) *Logger {
	return &Logger{
		q:     make(chan db.AuditRecord, queueSize),
		zl:    zl,
		store: store,
	}
}

// Decision enqueues one audit record. Never blocks, never fails the caller.
func (l *Logger) Decision(eventKind string, userID, chatID int64, verdict, reason string, at time.Time) {
	record := db.AuditRecord{
		EventKind: eventKind,
		UserID:    userID,
		ChatID:    chatID,
		Verdict:   verdict,
		Reason:    reason,
		CreatedAt: at,
	}
	select {
	case l.q <- record:
	default:
		log.WithField("object", "AuditLogger").Warn("audit queue full, dropping record")
	}
}

func (l *Logger) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case record := <-l.q:
				l.emit(runCtx, record)
			}
		}
	}()

	l.started = true
	return nil
}

func (l *Logger) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return nil
	}
	l.started = false
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (l *Logger) emit(ctx context.Context, record db.AuditRecord) {
	if l.zl != nil {
		l.zl.Info("moderation decision",
			zap.String("event_kind", record.EventKind),
			zap.Int64("user_id", record.UserID),
			zap.Int64("chat_id", record.ChatID),
			zap.String("verdict", record.Verdict),
			zap.String("reason", record.Reason),
			zap.Time("timestamp", record.CreatedAt),
		)
	}
	if l.store == nil {
		return
	}
	if err := l.store.AppendAudit(ctx, &record); err != nil {
		log.WithField("object", "AuditLogger").WithField("error", err.Error()).Error("failed to append audit record")
	}
}
