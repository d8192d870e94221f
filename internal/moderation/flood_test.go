package moderation

import (
	"testing"
	"time"

	"github.com/chatwarden/chatwarden/internal/db"
)

func TestFloodDetectorFirstMessageIsClear(t *testing.T) {
	t.Parallel()

	activity := db.DefaultActivity(1, 100)
	policy := db.DefaultPolicy(100)
	policy.FloodLimit = 1

	if (FloodDetector{}).Check(activity, policy, time.Now()) {
		t.Fatalf("first message must never be flagged")
	}
}

func TestFloodDetectorFlagsBurstAndRecovers(t *testing.T) {
	t.Parallel()

	activity := db.DefaultActivity(1, 100)
	policy := db.DefaultPolicy(100)
	policy.FloodLimit = 5
	policy.FloodWindowNS = (10 * time.Second).Nanoseconds()

	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	detector := FloodDetector{}

	// Six messages inside three seconds: only the sixth crosses the limit.
	for i := 0; i < 5; i++ {
		if detector.Check(activity, policy, start.Add(time.Duration(i)*500*time.Millisecond)) {
			t.Fatalf("message %d flagged below the limit", i+1)
		}
	}
	if !detector.Check(activity, policy, start.Add(3*time.Second)) {
		t.Fatalf("sixth message within window must be flagged")
	}

	// Still over the limit while the window holds all entries.
	if !detector.Check(activity, policy, start.Add(4*time.Second)) {
		t.Fatalf("seventh message within window must stay flagged")
	}

	// Far enough ahead the window evicts the burst entirely.
	if detector.Check(activity, policy, start.Add(30*time.Second)) {
		t.Fatalf("message after window slid past burst must be clear")
	}
	if len(activity.RecentSeenAt) != 1 {
		t.Fatalf("expected history reduced to 1 entry, got %d", len(activity.RecentSeenAt))
	}
}

func TestFloodDetectorEvictsOldTimestamps(t *testing.T) {
	t.Parallel()

	activity := db.DefaultActivity(7, 200)
	policy := db.DefaultPolicy(200)
	policy.FloodLimit = 100
	policy.FloodWindowNS = time.Minute.Nanoseconds()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	detector := FloodDetector{}
	for i := 0; i < 10; i++ {
		detector.Check(activity, policy, start.Add(time.Duration(i)*time.Second))
	}
	detector.Check(activity, policy, start.Add(2*time.Minute))

	if len(activity.RecentSeenAt) != 1 {
		t.Fatalf("expected stale timestamps evicted, got %d entries", len(activity.RecentSeenAt))
	}
}
