package moderation

import (
	"testing"

	"github.com/chatwarden/chatwarden/internal/db"
)

func TestSimilarityRatioProperties(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "identical", a: "buy my course now", b: "buy my course now", want: 1},
		{name: "both empty", a: "", b: "", want: 1},
		{name: "one empty", a: "hello", b: "", want: 0},
		{name: "disjoint", a: "abc", b: "xyz", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SimilarityRatio(tt.a, tt.b); got != tt.want {
				t.Fatalf("ratio(%q,%q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilarityRatioIsSymmetric(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"join my channel for free crypto", "join my channel for free money"},
		{"hello world", "world hello"},
		{"a", "abcdef"},
	}
	for _, pair := range pairs {
		ab := SimilarityRatio(pair[0], pair[1])
		ba := SimilarityRatio(pair[1], pair[0])
		if ab != ba {
			t.Fatalf("ratio not symmetric for %q/%q: %v != %v", pair[0], pair[1], ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Fatalf("ratio out of range for %q/%q: %v", pair[0], pair[1], ab)
		}
	}
}

func TestNormalizeTextCollapsesNoise(t *testing.T) {
	t.Parallel()

	got := NormalizeText("  Buy   NOW!!!   Limited,  offer.  ")
	want := "buy now limited offer"
	if got != want {
		t.Fatalf("normalize = %q, want %q", got, want)
	}
}

func TestSimilarityDetectorFlagsRepeatedContent(t *testing.T) {
	t.Parallel()

	activity := db.DefaultActivity(1, 100)
	policy := db.DefaultPolicy(100)
	policy.SimilarityThreshold = 0.8

	detector := SimilarityDetector{}

	if _, flagged := detector.Check(activity, policy, "check out my channel"); flagged {
		t.Fatalf("first message must not be flagged")
	}
	score, flagged := detector.Check(activity, policy, "Check out my channel!")
	if !flagged {
		t.Fatalf("near-identical repeat must be flagged, score %v", score)
	}
	if score < policy.SimilarityThreshold {
		t.Fatalf("score %v below threshold %v", score, policy.SimilarityThreshold)
	}
}

func TestSimilarityDetectorIgnoresEmptyText(t *testing.T) {
	t.Parallel()

	activity := db.DefaultActivity(1, 100)
	policy := db.DefaultPolicy(100)
	policy.SimilarityThreshold = 0.8

	detector := SimilarityDetector{}

	// Back-to-back captionless media normalizes to nothing and must not
	// count as repeated content.
	for i := 0; i < 3; i++ {
		score, flagged := detector.Check(activity, policy, "")
		if flagged {
			t.Fatalf("empty text %d flagged with score %v", i, score)
		}
	}
	if _, flagged := detector.Check(activity, policy, "  !!! "); flagged {
		t.Fatalf("punctuation-only text flagged")
	}
	if len(activity.RecentTexts) != 0 {
		t.Fatalf("empty texts recorded in history: %v", activity.RecentTexts)
	}
}

func TestSimilarityDetectorBoundsHistory(t *testing.T) {
	t.Parallel()

	activity := db.DefaultActivity(1, 100)
	policy := db.DefaultPolicy(100)
	policy.SimilarityThreshold = 1.01 // never flag, just fill history

	detector := SimilarityDetector{}
	for i := 0; i < similarityHistoryDepth+5; i++ {
		detector.Check(activity, policy, string(rune('a'+i)))
	}
	if len(activity.RecentTexts) != similarityHistoryDepth {
		t.Fatalf("history length = %d, want %d", len(activity.RecentTexts), similarityHistoryDepth)
	}
	if activity.RecentTexts[0] != "f" {
		t.Fatalf("oldest entries not evicted, head = %q", activity.RecentTexts[0])
	}
}
