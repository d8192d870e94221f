package moderation

import (
	"time"

	"github.com/chatwarden/chatwarden/internal/db"
)

// FloodDetector counts message timestamps per user per chat inside a sliding
// window. No separate reset timer exists: counts decay as the window slides
// past old entries.
type FloodDetector struct{}

// Check appends now to the user's timestamp history, evicts entries older than
// the policy window and reports whether the remaining count exceeds the limit.
// The first message of a user is never flagged.
func (FloodDetector) Check(activity *db.UserActivity, policy *db.ChatPolicy, now time.Time) bool {
	window := policy.FloodWindow()
	cutoff := now.Add(-window)

	kept := activity.RecentSeenAt[:0]
	for _, at := range activity.RecentSeenAt {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	kept = append(kept, now)
	activity.RecentSeenAt = kept

	if policy.FloodLimit <= 0 {
		return false
	}
	return len(activity.RecentSeenAt) > policy.FloodLimit
}
