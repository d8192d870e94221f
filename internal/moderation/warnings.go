package moderation

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/chatwarden/chatwarden/internal/db"
	stderrs "github.com/chatwarden/chatwarden/internal/errors"
)

type PunishmentKind string

const (
	PunishDelete PunishmentKind = "delete"
	PunishWarn   PunishmentKind = "warn"
	PunishMute   PunishmentKind = "mute"
	PunishBan    PunishmentKind = "ban"
)

// Punishment is one escalation step selected from the ladder.
type Punishment struct {
	Kind    PunishmentKind
	MuteFor time.Duration
}

// WarningEngine maps accumulated infractions to escalating punishments.
// Warning counts only grow until an explicit reset; once a user reaches the
// ban state no further transitions happen.
type WarningEngine struct{}

// Escalate increments the warning count and selects the punishment for the new
// count from the policy ladder, clamped to the last rung. Reaching the maximum
// always forces a ban regardless of the ladder. Mute punishments stamp
// mute_until on the activity.
func (e WarningEngine) Escalate(activity *db.UserActivity, policy *db.ChatPolicy, now time.Time) (Punishment, error) {
	if activity.Banned {
		return Punishment{Kind: PunishBan}, nil
	}

	activity.WarningCount++
	activity.LastWarningAt = &now

	if policy.MaxWarnings > 0 && activity.WarningCount >= policy.MaxWarnings {
		activity.Banned = true
		return Punishment{Kind: PunishBan}, nil
	}

	punishment, err := ladderSelect(policy, activity.WarningCount)
	if err != nil {
		return Punishment{}, err
	}
	if punishment.Kind == PunishBan {
		activity.Banned = true
	}
	if punishment.Kind == PunishMute {
		until := now.Add(punishment.MuteFor)
		activity.MuteUntil = &until
	}
	return punishment, nil
}

// ResetWarnings clears the warning count, mute and ban state. Callable only by
// the external permission layer.
func (WarningEngine) ResetWarnings(activity *db.UserActivity) {
	activity.WarningCount = 0
	activity.MuteUntil = nil
	activity.Banned = false
}

func ladderSelect(policy *db.ChatPolicy, warningCount int) (Punishment, error) {
	ladder := policy.EscalationLadder
	if len(ladder) == 0 {
		return Punishment{Kind: PunishWarn}, nil
	}
	idx := warningCount - 1
	if idx >= len(ladder) {
		idx = len(ladder) - 1
	}
	return ParsePunishment(ladder[idx], policy.MuteDuration())
}

// ParsePunishment parses one ladder rung. Mute rungs may carry an explicit
// human duration ("mute:10m"); without one the policy default applies. An
// unparseable duration surfaces ErrInvalidDuration instead of defaulting.
func ParsePunishment(rung string, defaultMute time.Duration) (Punishment, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(strings.ToLower(rung)), ":")
	switch PunishmentKind(kind) {
	case PunishDelete, PunishWarn, PunishBan:
		return Punishment{Kind: PunishmentKind(kind)}, nil
	case PunishMute:
		if arg == "" {
			return Punishment{Kind: PunishMute, MuteFor: defaultMute}, nil
		}
		d, err := ParseMuteDuration(arg)
		if err != nil {
			return Punishment{}, err
		}
		return Punishment{Kind: PunishMute, MuteFor: d}, nil
	default:
		return Punishment{}, errors.Wrapf(stderrs.ErrInvalidDuration, "unknown punishment %q", rung)
	}
}

// ParseMuteDuration parses a human duration string like "10m" or "2h".
func ParseMuteDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return 0, errors.Wrapf(stderrs.ErrInvalidDuration, "parse %q", s)
	}
	return d, nil
}
