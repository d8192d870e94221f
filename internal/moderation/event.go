package moderation

import (
	"time"
)

type EventKind string

const (
	EventMessage EventKind = "message"
	EventJoin    EventKind = "join"
)

type MediaKind string

const (
	MediaNone      MediaKind = ""
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaAudio     MediaKind = "audio"
	MediaDocument  MediaKind = "document"
	MediaSticker   MediaKind = "sticker"
	MediaAnimation MediaKind = "animation"
)

// Event is one unit of chat activity fed into the engine. Message events carry
// content; join events carry only identity.
type Event struct {
	Kind      EventKind
	UserID    int64
	ChatID    int64
	MessageID int
	Text      string
	Media     MediaKind
	FileName  string
	FileSize  int64
	Forwarded bool
	At        time.Time
}

type VerdictKind string

const (
	VerdictAllow                       VerdictKind = "allow"
	VerdictDeleteMessage               VerdictKind = "delete_message"
	VerdictWarn                        VerdictKind = "warn"
	VerdictMute                        VerdictKind = "mute"
	VerdictBan                         VerdictKind = "ban"
	VerdictRestrictPendingVerification VerdictKind = "restrict_pending_verification"
	VerdictKick                        VerdictKind = "kick"
)

// Verdict is the single decision the enforcement layer applies atomically.
// Unpersisted marks decisions whose state update failed and needs
// reconciliation.
type Verdict struct {
	Kind        VerdictKind
	MuteFor     time.Duration
	Violations  []ViolationKind
	Unpersisted bool
}

type ViolationKind string

const (
	ViolationFlood           ViolationKind = "flood"
	ViolationRepeatedContent ViolationKind = "repeated_content"
	ViolationBannedWord      ViolationKind = "banned_word"
	ViolationBlockedLink     ViolationKind = "blocked_link"
	ViolationMediaBlocked    ViolationKind = "media_blocked"
	ViolationFileTooLarge    ViolationKind = "file_too_large"
	ViolationDangerousFile   ViolationKind = "dangerous_file"
	ViolationForward         ViolationKind = "forward_blocked"
)

func reasonFromViolations(violations []ViolationKind) string {
	if len(violations) == 0 {
		return ""
	}
	reason := string(violations[0])
	for _, v := range violations[1:] {
		reason += "," + string(v)
	}
	return reason
}
