package telegram

import (
	"context"
	"fmt"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
)

// SubscriptionChecker resolves channel membership through the chat platform.
// A platform error is reported as-is so the gate treats the result as unknown
// rather than unsubscribed.
type SubscriptionChecker struct {
	bot *api.BotAPI
}

func NewSubscriptionChecker(bot *api.BotAPI) *SubscriptionChecker {
	return &SubscriptionChecker{bot: bot}
}

func (s *SubscriptionChecker) IsSubscribed(ctx context.Context, userID int64, channel string) (bool, error) {
	if !strings.HasPrefix(channel, "@") {
		channel = "@" + channel
	}
	member, err := s.bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			UserID: userID,
			ChatConfig: api.ChatConfig{
				SuperGroupUsername: channel,
			},
		},
	})
	if err != nil {
		return false, fmt.Errorf("get chat member: %w", err)
	}
	return member.Status == "member" || member.IsAdministrator() || member.IsCreator(), nil
}
