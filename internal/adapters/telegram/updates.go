package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/chatwarden/chatwarden/internal/db"
	stderrs "github.com/chatwarden/chatwarden/internal/errors"
	"github.com/chatwarden/chatwarden/internal/moderation"
	"github.com/chatwarden/chatwarden/internal/verification"
)

type decider interface {
	Decide(ctx context.Context, event moderation.Event) (moderation.Verdict, error)
}

type sessionLookup interface {
	GetPendingSession(ctx context.Context, chatID, userID int64) (*db.VerificationSession, error)
	GetPolicy(ctx context.Context, chatID int64) (*db.ChatPolicy, error)
}

// UpdateProcessor maps platform updates to engine events, routes them through
// the orchestrator and hands the verdicts to the enforcer.
type UpdateProcessor struct {
	engine   decider
	gate     *verification.Gate
	enforcer *Enforcer
	store    sessionLookup
	defaults *db.ChatPolicy
	logger   *log.Entry
}

func NewUpdateProcessor(engine decider, gate *verification.Gate, enforcer *Enforcer, store sessionLookup, defaults *db.ChatPolicy) *UpdateProcessor {
	return &UpdateProcessor{
		engine:   engine,
		gate:     gate,
		enforcer: enforcer,
		store:    store,
		defaults: defaults,
		logger:   log.WithField("object", "UpdateProcessor"),
	}
}

func (p *UpdateProcessor) Process(ctx context.Context, u *api.Update) error {
	if u == nil {
		return nil
	}

	if u.CallbackQuery != nil {
		return p.processCallback(ctx, u.CallbackQuery)
	}
	if u.Message != nil && u.Message.From != nil && !u.Message.From.IsBot {
		if len(u.Message.NewChatMembers) > 0 {
			return p.processJoins(ctx, u.Message)
		}
		return p.processMessage(ctx, u.Message)
	}
	return nil
}

func (p *UpdateProcessor) processMessage(ctx context.Context, msg *api.Message) error {
	event := EventFromMessage(msg)

	// A pending verification session swallows the message as a captcha answer
	// attempt instead of feeding the moderation pipeline.
	if handled, err := p.trySolve(ctx, event, msg.Text); handled || err != nil {
		return err
	}

	verdict, err := p.engine.Decide(ctx, event)
	if err != nil && !verdict.Unpersisted {
		return fmt.Errorf("decide: %w", err)
	}
	if err := p.enforcer.Apply(ctx, verdict, event); err != nil {
		return fmt.Errorf("apply verdict: %w", err)
	}
	return nil
}

func (p *UpdateProcessor) processJoins(ctx context.Context, msg *api.Message) error {
	for i := range msg.NewChatMembers {
		member := &msg.NewChatMembers[i]
		if member.IsBot {
			continue
		}
		event := moderation.Event{
			Kind:   moderation.EventJoin,
			UserID: member.ID,
			ChatID: msg.Chat.ID,
			At:     time.Unix(int64(msg.Date), 0),
		}
		verdict, err := p.engine.Decide(ctx, event)
		if err != nil {
			return fmt.Errorf("decide join: %w", err)
		}
		if err := p.enforcer.Apply(ctx, verdict, event); err != nil {
			p.logger.WithField("error", err.Error()).
				WithField("chat_id", event.ChatID).
				WithField("user_id", event.UserID).
				Error("failed to apply join verdict")
			continue
		}
		if verdict.Kind == moderation.VerdictRestrictPendingVerification {
			if err := p.presentChallenge(ctx, event.ChatID, event.UserID); err != nil {
				p.logger.WithField("error", err.Error()).
					WithField("chat_id", event.ChatID).
					WithField("user_id", event.UserID).
					Error("failed to present challenge")
			}
		}
	}
	return nil
}

// presentChallenge posts the open session's question to the chat. A session
// without a question (subscription-only verification) gets a confirm button
// instead, since the restricted member cannot message their way through.
func (p *UpdateProcessor) presentChallenge(ctx context.Context, chatID, userID int64) error {
	session, err := p.store.GetPendingSession(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("get pending session: %w", err)
	}
	if session.Question != "" {
		return p.enforcer.PresentChallenge(ctx, chatID, userID, session.Question, session.Choices)
	}

	policy, err := p.policyFor(ctx, chatID)
	if err != nil {
		return err
	}
	if policy.RequiredChannel == "" {
		return nil
	}
	prompt := fmt.Sprintf("Subscribe to @%s, then press the button below", policy.RequiredChannel)
	return p.enforcer.PresentChallenge(ctx, chatID, userID, prompt, []string{"I have subscribed"})
}

// processCallback resolves an inline challenge button press into a solve
// attempt against the presser's own pending session.
func (p *UpdateProcessor) processCallback(ctx context.Context, cq *api.CallbackQuery) error {
	userID, answer, ok := parseVerifyCallbackData(cq.Data)
	if !ok || cq.Message == nil {
		return nil
	}
	if cq.From.ID != userID {
		return p.enforcer.AnswerCallback(cq.ID, "This challenge is not yours to solve", false)
	}
	chatID := cq.Message.Chat.ID

	session, err := p.store.GetPendingSession(ctx, chatID, userID)
	if errors.Is(err, stderrs.ErrNotFound) {
		return p.enforcer.AnswerCallback(cq.ID, "Nothing left to verify", false)
	}
	if err != nil {
		return fmt.Errorf("get pending session: %w", err)
	}

	policy, err := p.policyFor(ctx, chatID)
	if err != nil {
		return err
	}

	outcome, err := p.gate.Solve(ctx, session, policy, answer, time.Now())
	if err != nil && !errors.Is(err, stderrs.ErrSubscriptionUnknown) {
		return fmt.Errorf("solve session: %w", err)
	}

	switch outcome {
	case verification.OutcomeSolved:
		if err := p.enforcer.Unrestrict(ctx, chatID, userID); err != nil {
			return err
		}
		return p.enforcer.AnswerCallback(cq.ID, "Verified, welcome!", false)
	case verification.OutcomeFailed, verification.OutcomeExpired:
		if err := p.enforcer.Kick(ctx, chatID, userID); err != nil {
			return err
		}
		return p.enforcer.AnswerCallback(cq.ID, "Verification failed", true)
	default:
		return p.enforcer.AnswerCallback(cq.ID, "Not verified yet, try again", true)
	}
}

func (p *UpdateProcessor) trySolve(ctx context.Context, event moderation.Event, answer string) (bool, error) {
	session, err := p.store.GetPendingSession(ctx, event.ChatID, event.UserID)
	if errors.Is(err, stderrs.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get pending session: %w", err)
	}

	policy, err := p.policyFor(ctx, event.ChatID)
	if err != nil {
		return false, err
	}

	outcome, err := p.gate.Solve(ctx, session, policy, answer, event.At)
	if err != nil && !errors.Is(err, stderrs.ErrSubscriptionUnknown) {
		return true, fmt.Errorf("solve session: %w", err)
	}

	switch outcome {
	case verification.OutcomeSolved:
		if err := p.enforcer.Unrestrict(ctx, event.ChatID, event.UserID); err != nil {
			return true, err
		}
	case verification.OutcomeFailed, verification.OutcomeExpired:
		if err := p.enforcer.Kick(ctx, event.ChatID, event.UserID); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (p *UpdateProcessor) policyFor(ctx context.Context, chatID int64) (*db.ChatPolicy, error) {
	policy, err := p.store.GetPolicy(ctx, chatID)
	if errors.Is(err, stderrs.ErrPolicyMissing) {
		if p.defaults != nil {
			return p.defaults.CloneFor(chatID), nil
		}
		return db.DefaultPolicy(chatID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}
	return policy, nil
}

const verifyCallbackPrefix = "verify"

func verifyCallbackData(userID int64, choice string) string {
	return fmt.Sprintf("%s:%d:%s", verifyCallbackPrefix, userID, choice)
}

func parseVerifyCallbackData(data string) (int64, string, bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[0] != verifyCallbackPrefix {
		return 0, "", false
	}
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return userID, parts[2], true
}

// EventFromMessage flattens a platform message into an engine event.
func EventFromMessage(msg *api.Message) moderation.Event {
	event := moderation.Event{
		Kind:      moderation.EventMessage,
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      messageText(msg),
		Media:     mediaKind(msg),
		Forwarded: msg.ForwardOrigin != nil,
		At:        time.Unix(int64(msg.Date), 0),
	}
	if msg.Document != nil {
		event.FileName = msg.Document.FileName
		event.FileSize = int64(msg.Document.FileSize)
	}
	return event
}

func messageText(msg *api.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

func mediaKind(msg *api.Message) moderation.MediaKind {
	switch {
	case len(msg.Photo) > 0:
		return moderation.MediaPhoto
	case msg.Video != nil:
		return moderation.MediaVideo
	case msg.Audio != nil:
		return moderation.MediaAudio
	case msg.Document != nil:
		return moderation.MediaDocument
	case msg.Sticker != nil:
		return moderation.MediaSticker
	case msg.Animation != nil:
		return moderation.MediaAnimation
	default:
		return moderation.MediaNone
	}
}
