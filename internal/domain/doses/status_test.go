package doses

import (
	"testing"
	"time"
)

func TestClassify_ResolutionFlagsDominate(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-2 * time.Hour)
	future := now.Add(2 * time.Hour)

	cases := []struct {
		name  string
		event DoseEvent
		want  EventStatus
	}{
		{"skipped beats taken", DoseEvent{ScheduledAt: past, Taken: true, Skipped: true}, StatusSkipped},
		{"skipped future", DoseEvent{ScheduledAt: future, Skipped: true}, StatusSkipped},
		{"taken past", DoseEvent{ScheduledAt: past, Taken: true}, StatusTaken},
		{"taken future", DoseEvent{ScheduledAt: future, Taken: true}, StatusTaken},
		{"pending past is overdue", DoseEvent{ScheduledAt: past}, StatusOverdue},
		{"pending future is upcoming", DoseEvent{ScheduledAt: future}, StatusUpcoming},
		{"pending exactly now is upcoming", DoseEvent{ScheduledAt: now}, StatusUpcoming},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.event, now)
			if got.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got.Status)
			}
		})
	}
}

func TestClassify_BucketsOrderOverdueFirst(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	overdue := Classify(DoseEvent{ScheduledAt: now.Add(-time.Hour)}, now)
	upcoming := Classify(DoseEvent{ScheduledAt: now.Add(time.Hour)}, now)
	resolved := Classify(DoseEvent{ScheduledAt: now.Add(-time.Hour), Taken: true}, now)

	if !(overdue.Bucket < upcoming.Bucket && upcoming.Bucket < resolved.Bucket) {
		t.Fatalf("expected overdue < upcoming < resolved, got %d %d %d",
			overdue.Bucket, upcoming.Bucket, resolved.Bucket)
	}
}

func TestClassify_ZeroTimeFallsBackToNow(t *testing.T) {
	now := time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC)

	got := Classify(DoseEvent{}, now)
	if got.Status != StatusUpcoming {
		t.Fatalf("expected UPCOMING for zero scheduled_at, got %s", got.Status)
	}
	if !got.ScheduledAt.Equal(now) {
		t.Fatalf("expected now as sort key, got %s", got.ScheduledAt)
	}
	if got.HourLabel != "15:00" {
		t.Fatalf("expected hour label 15:00, got %s", got.HourLabel)
	}
}

func TestClassify_HourLabelTruncatesToHour(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	e := DoseEvent{ScheduledAt: time.Date(2025, 6, 10, 8, 45, 12, 0, time.UTC)}

	if got := Classify(e, now).HourLabel; got != "08:00" {
		t.Fatalf("expected 08:00, got %s", got)
	}
}
