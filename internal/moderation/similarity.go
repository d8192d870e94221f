package moderation

import (
	"regexp"
	"strings"

	"github.com/chatwarden/chatwarden/internal/db"
)

const (
	// Number of past messages kept for repetition comparison.
	similarityHistoryDepth = 10
	// Texts are truncated before the quadratic LCS pass.
	similarityMaxRunes = 512
)

var (
	whitespaceRE  = regexp.MustCompile(`\s+`)
	punctuationRE = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

// SimilarityDetector flags messages that repeat a user's recent content. The
// ratio is a longest-common-subsequence measure in [0,1], pure and symmetric.
type SimilarityDetector struct{}

// Check compares text against the user's stored history, most recent first
// (early exit only; ordering does not affect the result), then appends the
// normalized text, evicting the oldest entry beyond the history depth.
// Returns the best ratio and whether it met the policy threshold. Messages
// with no text, such as captionless media, carry no repeatable content and
// are neither compared nor recorded.
func (SimilarityDetector) Check(activity *db.UserActivity, policy *db.ChatPolicy, text string) (float64, bool) {
	cleaned := NormalizeText(text)
	if cleaned == "" {
		return 0, false
	}

	best := 0.0
	flagged := false
	for i := len(activity.RecentTexts) - 1; i >= 0; i-- {
		ratio := SimilarityRatio(cleaned, activity.RecentTexts[i])
		if ratio > best {
			best = ratio
		}
		if policy.SimilarityThreshold > 0 && best >= policy.SimilarityThreshold {
			flagged = true
			break
		}
	}

	activity.RecentTexts = append(activity.RecentTexts, cleaned)
	if len(activity.RecentTexts) > similarityHistoryDepth {
		activity.RecentTexts = activity.RecentTexts[len(activity.RecentTexts)-similarityHistoryDepth:]
	}

	return best, flagged
}

// NormalizeText lowercases, collapses whitespace and strips common punctuation
// so trivially mutated repeats still match.
func NormalizeText(text string) string {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	cleaned = whitespaceRE.ReplaceAllString(cleaned, " ")
	return punctuationRE.ReplaceAllString(cleaned, "")
}

// SimilarityRatio returns 2*LCS(a,b)/(len(a)+len(b)) over runes. Equal strings
// score 1, disjoint strings score 0. Symmetric by construction.
func SimilarityRatio(a, b string) float64 {
	ra := truncateRunes(a, similarityMaxRunes)
	rb := truncateRunes(b, similarityMaxRunes)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	// Single-row LCS table.
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
		for j := range curr {
			curr[j] = 0
		}
	}
	lcs := prev[len(rb)]

	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

func truncateRunes(s string, limit int) []rune {
	runes := []rune(s)
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return runes
}
