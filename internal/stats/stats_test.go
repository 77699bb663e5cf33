package stats

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/suPer8Hu/devassist/internal/models"
	"github.com/suPer8Hu/devassist/internal/seed"
	"github.com/suPer8Hu/devassist/internal/store"
)

func lang(s string) *string { return &s }

func TestParseTimeframe(t *testing.T) {
	cases := []struct {
		in      string
		want    Timeframe
		wantErr bool
	}{
		{"", All, false},
		{"all", All, false},
		{"day", Day, false},
		{"Week", Week, false},
		{" month ", Month, false},
		{"year", Year, false},
		{"decade", "", true},
		{"7d", "", true},
	}
	for _, tc := range cases {
		got, err := ParseTimeframe(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidTimeframe) {
				t.Errorf("ParseTimeframe(%q): expected ErrInvalidTimeframe, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseTimeframe(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestCompute(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	logs := []models.ActivityLog{
		{ActionType: models.ActionOptimize, Language: lang("javascript"), CreatedAt: now.Add(-time.Hour)},
		{ActionType: models.ActionOptimize, Language: lang("javascript"), CreatedAt: now.Add(-2 * time.Hour)},
		{ActionType: models.ActionChat, CreatedAt: now.Add(-3 * time.Hour)},
		{ActionType: models.ActionScore, Language: lang("python"), CreatedAt: now.Add(-3 * 24 * time.Hour)},
		{ActionType: models.ActionScore, Language: lang(""), CreatedAt: now.Add(-40 * 24 * time.Hour)},
	}

	all := Compute(logs, All, now)
	if all.TotalActivities != 5 {
		t.Fatalf("expected 5, got %d", all.TotalActivities)
	}
	if all.ActivitiesByType["optimize"] != 2 || all.ActivitiesByType["chat"] != 1 || all.ActivitiesByType["score"] != 2 {
		t.Fatalf("unexpected by type: %v", all.ActivitiesByType)
	}
	if len(all.ActivitiesByLanguage) != 2 || all.ActivitiesByLanguage["javascript"] != 2 || all.ActivitiesByLanguage["python"] != 1 {
		t.Fatalf("unexpected by language: %v", all.ActivitiesByLanguage)
	}

	day := Compute(logs, Day, now)
	if day.TotalActivities != 3 || day.ActivitiesByType["score"] != 0 {
		t.Fatalf("unexpected day stats: %+v", day)
	}
	week := Compute(logs, Week, now)
	if week.TotalActivities != 4 {
		t.Fatalf("expected 4 in week, got %d", week.TotalActivities)
	}

	empty := Compute(nil, Month, now)
	if empty.TotalActivities != 0 || empty.ActivitiesByType == nil || empty.ActivitiesByLanguage == nil {
		t.Fatalf("expected zero stats with empty maps, got %+v", empty)
	}
}

func TestCompute_BoundaryIsInclusive(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	logs := []models.ActivityLog{
		{ActionType: models.ActionChat, CreatedAt: now.Add(-24 * time.Hour)},
		{ActionType: models.ActionChat, CreatedAt: now.Add(-24*time.Hour - time.Microsecond)},
	}
	if got := Compute(logs, Day, now).TotalActivities; got != 1 {
		t.Fatalf("expected the record at the cutoff to count, got %d", got)
	}
}

func TestService_SeededTimeframes(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 31, 9, 30, 0, 0, time.UTC)
	st := store.NewMemStore()
	res, err := seed.Run(ctx, st, seed.Options{Random: rand.New(rand.NewSource(7)), Now: now})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := NewService(st).WithNow(func() time.Time { return now })
	uid := res.User.ID

	all, err := svc.ComputeStats(ctx, uid, All)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if all.TotalActivities != res.Activities {
		t.Fatalf("expected %d activities, got %d", res.Activities, all.TotalActivities)
	}

	year, _ := svc.ComputeStats(ctx, uid, Year)
	if year.TotalActivities != all.TotalActivities {
		t.Fatalf("every seeded record is inside a year: %d != %d", year.TotalActivities, all.TotalActivities)
	}

	week, _ := svc.ComputeStats(ctx, uid, Week)
	if week.TotalActivities > all.TotalActivities {
		t.Fatalf("week must be a subset of all")
	}
	for k, v := range week.ActivitiesByType {
		if v > all.ActivitiesByType[k] {
			t.Fatalf("week count for %s exceeds all", k)
		}
	}

	recent, err := svc.RecentActivities(ctx, uid, Week, 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) > 5 {
		t.Fatalf("expected at most 5, got %d", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].CreatedAt.After(recent[i-1].CreatedAt) {
			t.Fatalf("recent activities not newest first")
		}
	}

	langs, err := svc.Languages(ctx, uid, All)
	if err != nil {
		t.Fatalf("languages: %v", err)
	}
	if _, ok := langs[""]; ok {
		t.Fatalf("empty language must not be counted")
	}
}
