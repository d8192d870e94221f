package verification

import (
	"context"
	"strings"
	"time"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/chatwarden/chatwarden/internal/db"
	stderrs "github.com/chatwarden/chatwarden/internal/errors"
)

const defaultMaxAttempts = 3

type Outcome string

const (
	// OutcomePending means the session stays open: wrong answer with retries
	// left, or an unmet subscription requirement.
	OutcomePending Outcome = "pending"
	OutcomeSolved  Outcome = "solved"
	OutcomeFailed  Outcome = "failed"
	OutcomeExpired Outcome = "expired"
)

type sessionStore interface {
	CreateSession(ctx context.Context, session *db.VerificationSession) error
	GetPendingSession(ctx context.Context, chatID, userID int64) (*db.VerificationSession, error)
	UpdateSession(ctx context.Context, session *db.VerificationSession) error
}

// SubscriptionChecker reports whether a user is subscribed to a channel. An
// error means the status is unknown, not that the user is unsubscribed.
type SubscriptionChecker interface {
	IsSubscribed(ctx context.Context, userID int64, channel string) (bool, error)
}

// Gate drives the new-member verification state machine. A session moves
// pending → solved, failed or expired; closed sessions never reopen.
type Gate struct {
	store       sessionStore
	subs        SubscriptionChecker
	captcha     *Generator
	maxAttempts int
	logger      *log.Entry
}

func NewGate(store sessionStore, subs SubscriptionChecker, captcha *Generator, maxAttempts int) *Gate {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Gate{
		store:       store,
		subs:        subs,
		captcha:     captcha,
		maxAttempts: maxAttempts,
		logger:      log.WithField("object", "VerificationGate"),
	}
}

// Begin opens a verification session for a joining member if the chat policy
// requires one. Returns whether the member must be restricted until cleared.
// An existing pending session is reused so a rejoin does not reset the clock.
func (g *Gate) Begin(ctx context.Context, userID, chatID int64, policy *db.ChatPolicy, now time.Time) (bool, error) {
	if !policy.CaptchaEnabled && policy.RequiredChannel == "" {
		return false, nil
	}

	if _, err := g.store.GetPendingSession(ctx, chatID, userID); err == nil {
		return true, nil
	} else if !errors.Is(err, stderrs.ErrNotFound) {
		return false, errors.Wrap(stderrs.ErrPersistence, err.Error())
	}

	session := &db.VerificationSession{
		ID:        uuid.New(),
		UserID:    userID,
		ChatID:    chatID,
		Choices:   db.StringSlice{},
		CreatedAt: now,
		ExpiresAt: now.Add(policy.CaptchaTimeout()),
		State:     db.SessionStatePending,
	}
	if policy.CaptchaEnabled {
		challenge := g.captcha.Generate()
		session.Question = challenge.Question
		session.Answer = challenge.Answer
		session.Choices = challenge.Choices
	}
	if err := g.store.CreateSession(ctx, session); err != nil {
		return false, errors.Wrap(stderrs.ErrPersistence, err.Error())
	}
	g.logger.WithField("chat_id", chatID).WithField("user_id", userID).Debug("verification session created")
	return true, nil
}

// Solve processes a submitted answer against a pending session. Both the
// captcha and, when the policy names a channel, the subscription check must
// pass before the session closes as solved. Wrong answers consume attempts; an
// exhausted session fails. Solving an expired session only closes it as
// expired.
func (g *Gate) Solve(ctx context.Context, session *db.VerificationSession, policy *db.ChatPolicy, answer string, now time.Time) (Outcome, error) {
	if session.State != db.SessionStatePending {
		return Outcome(session.State), stderrs.ErrSessionClosed
	}

	if IsExpired(session, now) {
		session.State = db.SessionStateExpired
		if err := g.store.UpdateSession(ctx, session); err != nil {
			return OutcomeExpired, errors.Wrap(stderrs.ErrPersistence, err.Error())
		}
		return OutcomeExpired, nil
	}

	if session.Answer != "" && !answersMatch(session.Answer, answer) {
		session.Attempts++
		if session.Attempts >= g.maxAttempts {
			session.State = db.SessionStateFailed
		}
		if err := g.store.UpdateSession(ctx, session); err != nil {
			return OutcomePending, errors.Wrap(stderrs.ErrPersistence, err.Error())
		}
		if session.State == db.SessionStateFailed {
			return OutcomeFailed, nil
		}
		return OutcomePending, nil
	}

	if policy.RequiredChannel != "" && !session.SubscriptionVerified {
		subscribed, err := g.checkSubscription(ctx, session.UserID, policy)
		if err != nil {
			return OutcomePending, err
		}
		if !subscribed {
			if err := g.store.UpdateSession(ctx, session); err != nil {
				return OutcomePending, errors.Wrap(stderrs.ErrPersistence, err.Error())
			}
			return OutcomePending, nil
		}
		session.SubscriptionVerified = true
	}

	session.State = db.SessionStateSolved
	if err := g.store.UpdateSession(ctx, session); err != nil {
		return OutcomeSolved, errors.Wrap(stderrs.ErrPersistence, err.Error())
	}
	return OutcomeSolved, nil
}

// checkSubscription applies the fail-closed default: an unknown result blocks
// unless the policy explicitly allows it.
func (g *Gate) checkSubscription(ctx context.Context, userID int64, policy *db.ChatPolicy) (bool, error) {
	subscribed, err := g.subs.IsSubscribed(ctx, userID, policy.RequiredChannel)
	if err != nil {
		g.logger.WithField("error", err.Error()).
			WithField("user_id", userID).
			WithField("channel", policy.RequiredChannel).
			Warn("subscription check failed")
		if policy.AllowOnCheckFailure {
			return true, nil
		}
		return false, errors.Wrap(stderrs.ErrSubscriptionUnknown, err.Error())
	}
	return subscribed, nil
}

// Expire closes a pending session whose deadline has passed. No-op when the
// session is already closed or still inside its window.
func (g *Gate) Expire(ctx context.Context, session *db.VerificationSession, now time.Time) (bool, error) {
	if session.State != db.SessionStatePending || !IsExpired(session, now) {
		return false, nil
	}
	session.State = db.SessionStateExpired
	if err := g.store.UpdateSession(ctx, session); err != nil {
		return false, errors.Wrap(stderrs.ErrPersistence, err.Error())
	}
	return true, nil
}

// IsExpired reports whether now is at or past the session deadline. Pure; the
// caller owns the clock.
func IsExpired(session *db.VerificationSession, now time.Time) bool {
	return !now.Before(session.ExpiresAt)
}

func answersMatch(expected, submitted string) bool {
	return strings.EqualFold(strings.TrimSpace(expected), strings.TrimSpace(submitted))
}
