package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type (
	// UserActivity is the per-(chat,user) moderation state: message history
	// consumed by the flood and similarity detectors plus the warning ladder
	// position. One row per pair, created on first observed message.
	UserActivity struct {
		UserID        int64       `db:"user_id"`
		ChatID        int64       `db:"chat_id"`
		RecentSeenAt  TimeSlice   `db:"recent_seen_at"`
		RecentTexts   StringSlice `db:"recent_texts"`
		WarningCount  int         `db:"warning_count"`
		LastWarningAt *time.Time  `db:"last_warning_at"`
		MuteUntil     *time.Time  `db:"mute_until"`
		Banned        bool        `db:"banned"`
	}

	// ChatPolicy holds the moderation rules for one chat. Mutated only by the
	// admin surface, read on every decision.
	ChatPolicy struct {
		ChatID              int64       `db:"chat_id"`
		BannedWords         StringSlice `db:"banned_words"`
		BlockedLinkKinds    StringSlice `db:"blocked_link_kinds"`
		WhitelistedDomains  StringSlice `db:"whitelisted_domains"`
		MediaRules          BoolMap     `db:"media_rules"`
		MaxFileSize         int64       `db:"max_file_size"`
		BlockForwards       bool        `db:"block_forwards"`
		FloodLimit          int         `db:"flood_limit"`
		FloodWindowNS       int64       `db:"flood_window_ns"`
		SimilarityThreshold float64     `db:"similarity_threshold"`
		MaxWarnings         int         `db:"max_warnings"`
		EscalationLadder    StringSlice `db:"escalation_ladder"`
		MuteDurationNS      int64       `db:"mute_duration_ns"`
		RequiredChannel     string      `db:"required_channel"`
		CaptchaEnabled      bool        `db:"captcha_enabled"`
		CaptchaTimeoutNS    int64       `db:"captcha_timeout_ns"`
		AllowOnCheckFailure bool        `db:"allow_on_check_failure"`
	}

	// VerificationSession tracks a new member through the captcha and
	// subscription gates. State is append-only: pending is the only state a
	// session can leave.
	VerificationSession struct {
		ID                   string      `db:"id"`
		UserID               int64       `db:"user_id"`
		ChatID               int64       `db:"chat_id"`
		Question             string      `db:"question"`
		Answer               string      `db:"answer"`
		Choices              StringSlice `db:"choices"`
		CreatedAt            time.Time   `db:"created_at"`
		ExpiresAt            time.Time   `db:"expires_at"`
		Attempts             int         `db:"attempts"`
		SubscriptionVerified bool        `db:"subscription_verified"`
		State                string      `db:"state"`
	}

	AuditRecord struct {
		ID        int64     `db:"id"`
		EventKind string    `db:"event_kind"`
		UserID    int64     `db:"user_id"`
		ChatID    int64     `db:"chat_id"`
		Verdict   string    `db:"verdict"`
		Reason    string    `db:"reason"`
		CreatedAt time.Time `db:"created_at"`
	}

	StringSlice []string
	TimeSlice   []time.Time
	BoolMap     map[string]bool
)

const (
	SessionStatePending = "pending"
	SessionStateSolved  = "solved"
	SessionStateExpired = "expired"
	SessionStateFailed  = "failed"
)

const (
	defaultFloodLimit          = 5
	defaultFloodWindow         = time.Minute
	defaultSimilarityThreshold = 0.8
	defaultMaxWarnings         = 3
	defaultMuteDuration        = 10 * time.Minute
	defaultMaxFileSize         = 20 << 20
	defaultCaptchaTimeout      = 5 * time.Minute
)

// DefaultPolicy is the built-in fallback for chats with no stored policy.
func DefaultPolicy(chatID int64) *ChatPolicy {
	return &ChatPolicy{
		ChatID:              chatID,
		BannedWords:         StringSlice{},
		BlockedLinkKinds:    StringSlice{"shortener", "scam"},
		WhitelistedDomains:  StringSlice{},
		MediaRules:          BoolMap{},
		MaxFileSize:         defaultMaxFileSize,
		FloodLimit:          defaultFloodLimit,
		FloodWindowNS:       defaultFloodWindow.Nanoseconds(),
		SimilarityThreshold: defaultSimilarityThreshold,
		MaxWarnings:         defaultMaxWarnings,
		EscalationLadder:    StringSlice{"warn", "mute", "ban"},
		MuteDurationNS:      defaultMuteDuration.Nanoseconds(),
		CaptchaEnabled:      true,
		CaptchaTimeoutNS:    defaultCaptchaTimeout.Nanoseconds(),
	}
}

// CloneFor copies a policy template for one chat. The clone shares slice and
// map backing with the template; both are read-only once handed to the engine.
func (p *ChatPolicy) CloneFor(chatID int64) *ChatPolicy {
	clone := *p
	clone.ChatID = chatID
	return &clone
}

func DefaultActivity(userID, chatID int64) *UserActivity {
	return &UserActivity{
		UserID:       userID,
		ChatID:       chatID,
		RecentSeenAt: TimeSlice{},
		RecentTexts:  StringSlice{},
	}
}

func (p *ChatPolicy) FloodWindow() time.Duration {
	if p.FloodWindowNS <= 0 {
		return defaultFloodWindow
	}
	return time.Duration(p.FloodWindowNS)
}

func (p *ChatPolicy) MuteDuration() time.Duration {
	if p.MuteDurationNS <= 0 {
		return defaultMuteDuration
	}
	return time.Duration(p.MuteDurationNS)
}

func (p *ChatPolicy) CaptchaTimeout() time.Duration {
	if p.CaptchaTimeoutNS <= 0 {
		return defaultCaptchaTimeout
	}
	return time.Duration(p.CaptchaTimeoutNS)
}

func (s StringSlice) Value() (driver.Value, error) {
	return jsonValue(s)
}

func (s *StringSlice) Scan(v interface{}) error {
	return jsonScan(v, s)
}

func (t TimeSlice) Value() (driver.Value, error) {
	return jsonValue(t)
}

func (t *TimeSlice) Scan(v interface{}) error {
	return jsonScan(v, t)
}

func (m BoolMap) Value() (driver.Value, error) {
	return jsonValue(m)
}

func (m *BoolMap) Scan(v interface{}) error {
	return jsonScan(v, m)
}

func jsonValue(v interface{}) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func jsonScan(src, dst interface{}) error {
	if src == nil {
		return nil
	}
	switch data := src.(type) {
	case string:
		return json.Unmarshal([]byte(data), dst)
	case []byte:
		return json.Unmarshal(data, dst)
	default:
		return fmt.Errorf("cannot scan type %T into %T", src, dst)
	}
}
