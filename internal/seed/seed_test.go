package seed

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/suPer8Hu/devassist/internal/auth"
	"github.com/suPer8Hu/devassist/internal/models"
	"github.com/suPer8Hu/devassist/internal/store"
)

func TestRun_Deterministic(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	run := func() []models.ActivityLog {
		st := store.NewMemStore()
		res, err := Run(ctx, st, Options{Random: rand.New(rand.NewSource(42)), Now: now})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		logs, err := st.ListActivities(ctx, res.User.ID, store.ActivityFilter{})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		return logs
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("same seed produced %d and %d records", len(a), len(b))
	}
	for i := range a {
		if !a[i].CreatedAt.Equal(b[i].CreatedAt) || a[i].ActionType != b[i].ActionType {
			t.Fatalf("record %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestRun_Contents(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	st := store.NewMemStore()

	res, err := Run(ctx, st, Options{Random: rand.New(rand.NewSource(1)), Now: now})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if res.User.ID != 1 || res.User.Username != DemoUsername {
		t.Fatalf("unexpected demo user: %+v", res.User)
	}
	if !auth.CheckPassword(res.User.PasswordHash, DemoPassword) {
		t.Fatalf("demo password must verify against the stored hash")
	}

	bms, _ := st.ListBookmarks(ctx, res.User.ID)
	if len(bms) != 3 || res.Bookmarks != 3 {
		t.Fatalf("expected 3 bookmarks, got %d", len(bms))
	}

	if res.Activities < ActivityDays || res.Activities > 5*ActivityDays {
		t.Fatalf("activity count %d out of range", res.Activities)
	}
	logs, _ := st.ListActivities(ctx, res.User.ID, store.ActivityFilter{})
	oldest := now.AddDate(0, 0, -ActivityDays)
	for _, l := range logs {
		if !l.CreatedAt.After(oldest) || l.CreatedAt.After(now) {
			t.Fatalf("activity at %s outside the seeded window", l.CreatedAt)
		}
		if l.ActionType == models.ActionChat && l.Language != nil {
			t.Fatalf("chat activity must not carry a language")
		}
	}
}

func TestRun_RequiresRandom(t *testing.T) {
	if _, err := Run(context.Background(), store.NewMemStore(), Options{}); err == nil {
		t.Fatalf("expected an error without a random source")
	}
}
