package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/chatwarden/chatwarden/internal/db"
	stderrs "github.com/chatwarden/chatwarden/internal/errors"
)

type activityStore interface {
	GetActivity(ctx context.Context, chatID, userID int64) (*db.UserActivity, error)
	SaveActivity(ctx context.Context, activity *db.UserActivity) error
	GetPolicy(ctx context.Context, chatID int64) (*db.ChatPolicy, error)
}

// VerificationGate starts the new-member clearance flow. Implemented by the
// verification package; declared here so the engine stays decoupled from it.
type VerificationGate interface {
	Begin(ctx context.Context, userID, chatID int64, policy *db.ChatPolicy, now time.Time) (required bool, err error)
}

// AuditSink receives one structured record per decision, fire-and-forget.
type AuditSink interface {
	Decision(eventKind string, userID, chatID int64, verdict, reason string, at time.Time)
}

// Orchestrator composes the detectors, the warning engine and the
// verification gate into one decision per incoming event.
type Orchestrator struct {
	store    activityStore
	gate     VerificationGate
	audit    AuditSink
	defaults *db.ChatPolicy
	flood    FloodDetector
	repeat   SimilarityDetector
	content  ContentFilter
	warnings WarningEngine
	locks    *keyedMutex
	logger   *log.Entry
}

// NewOrchestrator wires the engine. defaults is the policy template for chats
// with no stored policy; nil falls back to the built-in defaults.
func NewOrchestrator(store activityStore, gate VerificationGate, audit AuditSink, defaults *db.ChatPolicy) *Orchestrator {
	return &Orchestrator{
		store:    store,
		gate:     gate,
		audit:    audit,
		defaults: defaults,
		locks:    newKeyedMutex(),
		logger:   log.WithField("object", "Orchestrator"),
	}
}

// Decide produces a single verdict for one event. Events for the same
// (chat,user) pair are serialized; different pairs proceed concurrently. At
// most one escalation step is taken per event, no matter how many detectors
// fired.
func (o *Orchestrator) Decide(ctx context.Context, event Event) (Verdict, error) {
	timer := prometheus.NewTimer(decisionDuration)
	defer timer.ObserveDuration()

	select {
	case <-ctx.Done():
		return Verdict{}, ctx.Err()
	default:
	}

	policy, err := o.effectivePolicy(ctx, event.ChatID)
	if err != nil {
		return Verdict{}, err
	}

	var verdict Verdict
	switch event.Kind {
	case EventJoin:
		verdict, err = o.decideJoin(ctx, event, policy)
	case EventMessage:
		verdict, err = o.decideMessage(ctx, event, policy)
	default:
		return Verdict{}, fmt.Errorf("unknown event kind %q", event.Kind)
	}
	if err != nil && !verdict.Unpersisted {
		return Verdict{}, err
	}

	recordVerdict(verdict)
	if o.audit != nil {
		o.audit.Decision(string(event.Kind), event.UserID, event.ChatID,
			string(verdict.Kind), reasonFromViolations(verdict.Violations), event.At)
	}
	return verdict, err
}

func (o *Orchestrator) decideJoin(ctx context.Context, event Event, policy *db.ChatPolicy) (Verdict, error) {
	required, err := o.gate.Begin(ctx, event.UserID, event.ChatID, policy, event.At)
	if err != nil {
		return Verdict{}, fmt.Errorf("begin verification: %w", err)
	}
	if required {
		return Verdict{Kind: VerdictRestrictPendingVerification}, nil
	}
	return Verdict{Kind: VerdictAllow}, nil
}

func (o *Orchestrator) decideMessage(ctx context.Context, event Event, policy *db.ChatPolicy) (Verdict, error) {
	unlock := o.locks.Lock(activityKey{chatID: event.ChatID, userID: event.UserID})
	defer unlock()

	activity, err := o.store.GetActivity(ctx, event.ChatID, event.UserID)
	if err != nil {
		return Verdict{}, errors.Wrap(stderrs.ErrPersistence, err.Error())
	}

	if activity.Banned {
		return Verdict{Kind: VerdictBan}, nil
	}

	var violations []ViolationKind
	if o.flood.Check(activity, policy, event.At) {
		violations = append(violations, ViolationFlood)
	}
	if _, flagged := o.repeat.Check(activity, policy, event.Text); flagged {
		violations = append(violations, ViolationRepeatedContent)
	}
	violations = append(violations, o.content.Evaluate(event, policy)...)

	verdict := Verdict{Kind: VerdictAllow, Violations: violations}
	if len(violations) > 0 {
		punishment, err := o.warnings.Escalate(activity, policy, event.At)
		if err != nil {
			return Verdict{}, err
		}
		verdict.Kind = verdictFromPunishment(punishment)
		verdict.MuteFor = punishment.MuteFor
	} else if activity.MuteUntil != nil && activity.MuteUntil.After(event.At) {
		// Muted users should not be able to post at all; anything that slips
		// through gets removed without another escalation step.
		verdict.Kind = VerdictDeleteMessage
	}

	if err := o.store.SaveActivity(ctx, activity); err != nil {
		// The verdict still applies to the live chat, flagged for
		// reconciliation.
		o.logger.WithField("error", err.Error()).
			WithField("chat_id", event.ChatID).
			WithField("user_id", event.UserID).
			Error("failed to save activity, verdict unpersisted")
		verdict.Unpersisted = true
		return verdict, errors.Wrap(stderrs.ErrPersistence, err.Error())
	}
	return verdict, nil
}

// ResetWarnings clears a user's warning state on behalf of the external
// permission layer.
func (o *Orchestrator) ResetWarnings(ctx context.Context, chatID, userID int64) error {
	unlock := o.locks.Lock(activityKey{chatID: chatID, userID: userID})
	defer unlock()

	activity, err := o.store.GetActivity(ctx, chatID, userID)
	if err != nil {
		return errors.Wrap(stderrs.ErrPersistence, err.Error())
	}
	o.warnings.ResetWarnings(activity)
	if err := o.store.SaveActivity(ctx, activity); err != nil {
		return errors.Wrap(stderrs.ErrPersistence, err.Error())
	}
	return nil
}

func (o *Orchestrator) effectivePolicy(ctx context.Context, chatID int64) (*db.ChatPolicy, error) {
	policy, err := o.store.GetPolicy(ctx, chatID)
	if errors.Is(err, stderrs.ErrPolicyMissing) {
		o.logger.WithField("chat_id", chatID).Warn("no policy for chat, using defaults")
		if o.defaults != nil {
			return o.defaults.CloneFor(chatID), nil
		}
		return db.DefaultPolicy(chatID), nil
	}
	if err != nil {
		return nil, errors.Wrap(stderrs.ErrPersistence, err.Error())
	}
	return policy, nil
}

func verdictFromPunishment(punishment Punishment) VerdictKind {
	switch punishment.Kind {
	case PunishDelete:
		return VerdictDeleteMessage
	case PunishMute:
		return VerdictMute
	case PunishBan:
		return VerdictBan
	default:
		return VerdictWarn
	}
}
