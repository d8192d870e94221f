package telegram

import (
	"context"
	"fmt"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/chatwarden/chatwarden/internal/moderation"
)

type sender interface {
	Send(c api.Chattable) (api.Message, error)
	Request(c api.Chattable) (*api.APIResponse, error)
}

// Enforcer translates engine verdicts into chat platform actions. It carries
// no decision logic of its own.
type Enforcer struct {
	bot    sender
	logger *log.Entry
}

func NewEnforcer(bot sender) *Enforcer {
	return &Enforcer{
		bot:    bot,
		logger: log.WithField("object", "Enforcer"),
	}
}

// Apply executes one verdict against the chat. Mutes restrict the member
// until the verdict's deadline; kicks are a ban immediately undone so the
// member may rejoin.
func (e *Enforcer) Apply(ctx context.Context, verdict moderation.Verdict, event moderation.Event) error {
	entry := e.logger.WithField("chat_id", event.ChatID).
		WithField("user_id", event.UserID).
		WithField("verdict", string(verdict.Kind))
	if verdict.Unpersisted {
		entry.Warn("applying unpersisted verdict")
	}

	switch verdict.Kind {
	case moderation.VerdictAllow, moderation.VerdictRestrictPendingVerification:
		if verdict.Kind == moderation.VerdictRestrictPendingVerification {
			return e.restrict(event.ChatID, event.UserID, time.Time{})
		}
		return nil
	case moderation.VerdictDeleteMessage:
		return e.deleteMessage(event.ChatID, event.MessageID)
	case moderation.VerdictWarn:
		return e.deleteMessage(event.ChatID, event.MessageID)
	case moderation.VerdictMute:
		if err := e.deleteMessage(event.ChatID, event.MessageID); err != nil {
			entry.WithField("error", err.Error()).Error("failed to delete message")
		}
		return e.restrict(event.ChatID, event.UserID, time.Now().Add(verdict.MuteFor))
	case moderation.VerdictBan:
		if event.MessageID != 0 {
			if err := e.deleteMessage(event.ChatID, event.MessageID); err != nil {
				entry.WithField("error", err.Error()).Error("failed to delete message")
			}
		}
		return e.ban(event.ChatID, event.UserID)
	case moderation.VerdictKick:
		return e.Kick(ctx, event.ChatID, event.UserID)
	default:
		return fmt.Errorf("unknown verdict kind %q", verdict.Kind)
	}
}

// Kick removes a member from the chat without a lasting ban.
func (e *Enforcer) Kick(ctx context.Context, chatID, userID int64) error {
	if err := e.ban(chatID, userID); err != nil {
		return err
	}
	config := api.UnbanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
	}
	if _, err := e.bot.Request(config); err != nil {
		return fmt.Errorf("failed to unban user: %w", err)
	}
	return nil
}

// PresentChallenge posts the captcha question to the chat with one inline
// button per answer choice. Presses come back as callback queries carrying
// the choice in their data.
func (e *Enforcer) PresentChallenge(ctx context.Context, chatID, userID int64, question string, choices []string) error {
	msg := api.NewMessage(chatID, question)
	if len(choices) > 0 {
		buttons := make([]api.InlineKeyboardButton, 0, len(choices))
		for _, choice := range choices {
			buttons = append(buttons, api.NewInlineKeyboardButtonData(choice, verifyCallbackData(userID, choice)))
		}
		msg.ReplyMarkup = api.NewInlineKeyboardMarkup(api.NewInlineKeyboardRow(buttons...))
	}
	if _, err := e.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send challenge: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges an inline button press: a toast by default, a
// popup when alert is set.
func (e *Enforcer) AnswerCallback(callbackID, text string, alert bool) error {
	cb := api.NewCallback(callbackID, text)
	if alert {
		cb = api.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := e.bot.Request(cb); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

// Unrestrict restores a verified member's ability to post.
func (e *Enforcer) Unrestrict(ctx context.Context, chatID, userID int64) error {
	config := api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		Permissions: &api.ChatPermissions{
			CanSendMessages:       true,
			CanSendOtherMessages:  true,
			CanAddWebPagePreviews: true,
		},
	}
	if _, err := e.bot.Request(config); err != nil {
		return fmt.Errorf("failed to unrestrict user: %w", err)
	}
	return nil
}

func (e *Enforcer) deleteMessage(chatID int64, messageID int) error {
	if messageID == 0 {
		return nil
	}
	if _, err := e.bot.Request(api.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (e *Enforcer) restrict(chatID, userID int64, until time.Time) error {
	config := api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		Permissions: &api.ChatPermissions{
			CanSendMessages:       false,
			CanSendOtherMessages:  false,
			CanAddWebPagePreviews: false,
		},
	}
	if !until.IsZero() {
		config.UntilDate = until.Unix()
	}
	if _, err := e.bot.Request(config); err != nil {
		return fmt.Errorf("failed to restrict user: %w", err)
	}
	return nil
}

func (e *Enforcer) ban(chatID, userID int64) error {
	config := api.BanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		RevokeMessages: true,
	}
	if _, err := e.bot.Request(config); err != nil {
		return fmt.Errorf("failed to ban user: %w", err)
	}
	return nil
}
