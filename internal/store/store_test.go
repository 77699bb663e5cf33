package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/suPer8Hu/devassist/internal/db"
	"github.com/suPer8Hu/devassist/internal/models"
	"gorm.io/datatypes"
)

func openTestGorm(t *testing.T) *GormStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.Connect("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := NewGormStore(gdb)
	if err != nil {
		t.Fatalf("new gorm store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// eachStore runs fn against a fresh MemStore and a fresh sqlite-backed GormStore.
func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, openTestGorm(t)) })
}

func ptr[T any](v T) *T { return &v }

func mustUser(t *testing.T, s Store, name string) *models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), &models.User{Username: name, PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestUsers_UniqueUsernameAndDefaults(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		u := mustUser(t, s, "alex")
		if u.ID != 1 {
			t.Fatalf("expected first id 1, got %d", u.ID)
		}
		if u.Role != DefaultRole {
			t.Fatalf("expected role %q, got %q", DefaultRole, u.Role)
		}

		_, err := s.CreateUser(ctx, &models.User{Username: "alex", PasswordHash: "y"})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}

		got, err := s.GetUserByUsername(ctx, "alex")
		if err != nil || got.ID != u.ID {
			t.Fatalf("get by username: %+v err=%v", got, err)
		}
		if _, err := s.GetUser(ctx, 99); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		updated, err := s.UpdateUser(ctx, u.ID, models.UserPatch{DisplayName: ptr("Alex M")})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.DisplayName != "Alex M" || updated.Username != "alex" {
			t.Fatalf("unexpected patch result: %+v", updated)
		}
	})
}

func TestConversations_MoveToFrontOnUpdate(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		u := mustUser(t, s, "alex")

		c1, _ := s.CreateConversation(ctx, &models.Conversation{UserID: u.ID, Title: "first"})
		c2, _ := s.CreateConversation(ctx, &models.Conversation{UserID: u.ID, Title: "second"})
		if _, err := s.CreateConversation(ctx, &models.Conversation{UserID: u.ID + 1, Title: "other"}); err != nil {
			t.Fatalf("create: %v", err)
		}

		list, err := s.ListConversations(ctx, u.ID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 2 || list[0].ID != c2.ID || list[1].ID != c1.ID {
			t.Fatalf("unexpected order: %+v", list)
		}

		before := c1.LastModified
		up, err := s.UpdateConversation(ctx, c1.ID, models.ConversationPatch{Title: ptr("renamed")})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if up.LastModified.Before(before) {
			t.Fatalf("lastModified went backwards: %v < %v", up.LastModified, before)
		}

		list, _ = s.ListConversations(ctx, u.ID)
		if list[0].ID != c1.ID || list[0].Title != "renamed" {
			t.Fatalf("expected updated conversation first, got %+v", list[0])
		}
	})
}

func TestConversations_DefaultTitle(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		c, err := s.CreateConversation(context.Background(), &models.Conversation{UserID: 1})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if c.Title != DefaultConversation {
			t.Fatalf("expected default title, got %q", c.Title)
		}
	})
}

func TestDeleteConversation_CascadesAndIsIdempotent(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c, _ := s.CreateConversation(ctx, &models.Conversation{UserID: 1, Title: "t"})
		keep, _ := s.CreateConversation(ctx, &models.Conversation{UserID: 1, Title: "keep"})
		for i := 0; i < 3; i++ {
			if _, err := s.CreateMessage(ctx, &models.ChatMessage{UserID: 1, ConversationID: c.ID, Content: "m"}); err != nil {
				t.Fatalf("create message: %v", err)
			}
		}
		if _, err := s.CreateMessage(ctx, &models.ChatMessage{UserID: 1, ConversationID: keep.ID, Content: "k"}); err != nil {
			t.Fatalf("create message: %v", err)
		}

		if err := s.DeleteConversation(ctx, c.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := s.DeleteConversation(ctx, c.ID); err != nil {
			t.Fatalf("second delete should be a no-op, got %v", err)
		}
		if _, err := s.GetConversation(ctx, c.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		msgs, _ := s.ListMessages(ctx, c.ID)
		if len(msgs) != 0 {
			t.Fatalf("expected messages removed, got %d", len(msgs))
		}
		msgs, _ = s.ListMessages(ctx, keep.ID)
		if len(msgs) != 1 {
			t.Fatalf("other conversation lost messages: %d", len(msgs))
		}
	})
}

func TestMessages_Chronological(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i := 0; i < 4; i++ {
			_, err := s.CreateMessage(ctx, &models.ChatMessage{UserID: 1, ConversationID: 7, Content: fmt.Sprintf("m%d", i), IsAI: i%2 == 1})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
		}
		msgs, err := s.ListMessages(ctx, 7)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for i, m := range msgs {
			if m.Content != fmt.Sprintf("m%d", i) {
				t.Fatalf("message %d out of order: %q", i, m.Content)
			}
			if i > 0 && m.CreatedAt.Before(msgs[i-1].CreatedAt) {
				t.Fatalf("createdAt not ascending at %d", i)
			}
		}
		if !msgs[1].IsAI || msgs[0].IsAI {
			t.Fatalf("isAi not preserved: %+v", msgs[:2])
		}
	})
}

func TestBookmarks_CreateDefaults(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		b, err := s.CreateBookmark(context.Background(), &models.Bookmark{UserID: 1, Title: "t", Content: "c"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if b.Tags == nil || len(b.Tags) != 0 {
			t.Fatalf("expected empty tags, got %#v", b.Tags)
		}
		if b.Category != DefaultBookmarkCategory || b.ContentType != models.ContentNote || b.Version != 1 || b.Starred {
			t.Fatalf("unexpected defaults: %+v", b)
		}

		got, err := s.GetBookmark(context.Background(), b.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Tags == nil {
			t.Fatalf("tags nil after reload")
		}
	})
}

func TestBookmarks_UpdateVersioning(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		b, _ := s.CreateBookmark(ctx, &models.Bookmark{UserID: 1, Title: "t", Content: "c", Tags: []string{"go"}})

		up, err := s.UpdateBookmark(ctx, b.ID, models.BookmarkPatch{Starred: ptr(true), ExpectedVersion: ptr(1)})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if up.Version != 2 || !up.Starred || up.Title != "t" || len(up.Tags) != 1 {
			t.Fatalf("unexpected update result: %+v", up)
		}
		if up.LastModified.Before(b.LastModified) {
			t.Fatalf("lastModified went backwards")
		}

		_, err = s.UpdateBookmark(ctx, b.ID, models.BookmarkPatch{Title: ptr("stale"), ExpectedVersion: ptr(1)})
		if !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
		got, _ := s.GetBookmark(ctx, b.ID)
		if got.Title != "t" || got.Version != 2 {
			t.Fatalf("conflicting update was applied: %+v", got)
		}

		if _, err := s.UpdateBookmark(ctx, 999, models.BookmarkPatch{Title: ptr("x")}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestBookmarks_ClearCategoryID(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		cat, _ := s.CreateCategory(ctx, &models.Category{UserID: 1, Name: "Go"})
		b, _ := s.CreateBookmark(ctx, &models.Bookmark{UserID: 1, Title: "t", CategoryID: &cat.ID})

		up, err := s.UpdateBookmark(ctx, b.ID, models.BookmarkPatch{Notes: ptr("n")})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if up.CategoryID == nil || *up.CategoryID != cat.ID {
			t.Fatalf("unset patch field changed categoryId: %v", up.CategoryID)
		}

		up, err = s.UpdateBookmark(ctx, b.ID, models.BookmarkPatch{CategoryID: models.Null[uint64]()})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if up.CategoryID != nil {
			t.Fatalf("expected categoryId cleared, got %v", *up.CategoryID)
		}
	})
}

func TestBookmarks_ListsAndFilters(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		cat, _ := s.CreateCategory(ctx, &models.Category{UserID: 1, Name: "Frontend"})
		a, _ := s.CreateBookmark(ctx, &models.Bookmark{UserID: 1, Title: "React Query", Content: "caching", Tags: []string{"React", "API"}, Category: "Frontend", CategoryID: &cat.ID})
		b, _ := s.CreateBookmark(ctx, &models.Bookmark{UserID: 1, Title: "Interfaces", Content: "type alias", Tags: []string{"TypeScript"}, Notes: "read later"})
		c, _ := s.CreateBookmark(ctx, &models.Bookmark{UserID: 1, Title: "Grid", Content: "display: grid", Tags: []string{"CSS"}})
		if _, err := s.CreateBookmark(ctx, &models.Bookmark{UserID: 2, Title: "React other user", Tags: []string{"React"}}); err != nil {
			t.Fatalf("create: %v", err)
		}

		all, _ := s.ListBookmarks(ctx, 1)
		if len(all) != 3 || all[0].ID != c.ID || all[2].ID != a.ID {
			t.Fatalf("expected newest first, got %+v", all)
		}

		byTag, _ := s.ListBookmarksByTag(ctx, 1, "React")
		if len(byTag) != 1 || byTag[0].ID != a.ID {
			t.Fatalf("tag filter: %+v", byTag)
		}
		byCat, _ := s.ListBookmarksByCategory(ctx, 1, "Frontend")
		if len(byCat) != 1 || byCat[0].ID != a.ID {
			t.Fatalf("category filter: %+v", byCat)
		}
		byCatID, _ := s.ListBookmarksByCategoryID(ctx, 1, cat.ID)
		if len(byCatID) != 1 || byCatID[0].ID != a.ID {
			t.Fatalf("category id filter: %+v", byCatID)
		}

		cases := []struct {
			q    string
			want []uint64
		}{
			{"react", []uint64{a.ID}},
			{"TYPESCRIPT", []uint64{b.ID}},
			{"later", []uint64{b.ID}},
			{"grid", []uint64{c.ID}},
			{"a", []uint64{c.ID, b.ID, a.ID}},
			{"", []uint64{c.ID, b.ID, a.ID}},
			{"nomatch", nil},
		}
		for _, tc := range cases {
			got, err := s.SearchBookmarks(ctx, 1, tc.q)
			if err != nil {
				t.Fatalf("search %q: %v", tc.q, err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("search %q: got %d results, want %d", tc.q, len(got), len(tc.want))
			}
			for i := range got {
				if got[i].ID != tc.want[i] {
					t.Fatalf("search %q: result %d id=%d want %d", tc.q, i, got[i].ID, tc.want[i])
				}
			}
		}
	})
}

func TestExecuteTemplate(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		tpl, _ := s.CreateBookmark(ctx, &models.Bookmark{UserID: 1, Title: "tpl", IsTemplate: true})
		plain, _ := s.CreateBookmark(ctx, &models.Bookmark{UserID: 1, Title: "plain"})

		for i := 0; i < 2; i++ {
			if _, err := s.ExecuteTemplate(ctx, tpl.ID); err != nil {
				t.Fatalf("execute: %v", err)
			}
		}
		got, _ := s.GetBookmark(ctx, tpl.ID)
		if got.ExecutionCount != 2 || got.LastExecutedAt == nil {
			t.Fatalf("unexpected execution state: %+v", got)
		}
		if _, err := s.ExecuteTemplate(ctx, plain.ID); !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected ErrInvalid, got %v", err)
		}
	})
}

func TestDeleteBookmark_Idempotent(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		b, _ := s.CreateBookmark(ctx, &models.Bookmark{UserID: 1, Title: "t"})
		for i := 0; i < 2; i++ {
			if err := s.DeleteBookmark(ctx, b.ID); err != nil {
				t.Fatalf("delete %d: %v", i, err)
			}
		}
		if _, err := s.GetBookmark(ctx, b.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := s.DeleteBookmark(ctx, 12345); err != nil {
			t.Fatalf("delete of unknown id: %v", err)
		}
	})
}

func TestCategories_OrderAndCycles(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		root, _ := s.CreateCategory(ctx, &models.Category{UserID: 1, Name: "root", Order: 2})
		child, err := s.CreateCategory(ctx, &models.Category{UserID: 1, Name: "child", ParentID: &root.ID, Order: 1})
		if err != nil {
			t.Fatalf("create child: %v", err)
		}
		grand, _ := s.CreateCategory(ctx, &models.Category{UserID: 1, Name: "grand", ParentID: &child.ID, Order: 1})
		if root.Color != DefaultCategoryColor {
			t.Fatalf("expected default color, got %q", root.Color)
		}

		list, _ := s.ListCategories(ctx, 1)
		if len(list) != 3 || list[0].ID != child.ID || list[1].ID != grand.ID || list[2].ID != root.ID {
			t.Fatalf("unexpected order: %+v", list)
		}

		_, err = s.UpdateCategory(ctx, root.ID, models.CategoryPatch{ParentID: models.Some(grand.ID)})
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected cycle rejection, got %v", err)
		}
		_, err = s.UpdateCategory(ctx, root.ID, models.CategoryPatch{ParentID: models.Some(root.ID)})
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected self-parent rejection, got %v", err)
		}
		_, err = s.CreateCategory(ctx, &models.Category{UserID: 1, Name: "orphan", ParentID: ptr(uint64(999))})
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected unknown parent rejection, got %v", err)
		}
		_, err = s.CreateCategory(ctx, &models.Category{UserID: 2, Name: "foreign", ParentID: &root.ID})
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected foreign parent rejection, got %v", err)
		}

		moved, err := s.UpdateCategory(ctx, grand.ID, models.CategoryPatch{ParentID: models.Null[uint64]()})
		if err != nil {
			t.Fatalf("reparent to root: %v", err)
		}
		if moved.ParentID != nil {
			t.Fatalf("expected parentId cleared")
		}
	})
}

func TestDeleteCategory_DetachesBookmarksAndChildren(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		parent, _ := s.CreateCategory(ctx, &models.Category{UserID: 1, Name: "parent"})
		child, _ := s.CreateCategory(ctx, &models.Category{UserID: 1, Name: "child", ParentID: &parent.ID})
		b, _ := s.CreateBookmark(ctx, &models.Bookmark{UserID: 1, Title: "t", Category: "parent", CategoryID: &parent.ID})

		if err := s.DeleteCategory(ctx, parent.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := s.DeleteCategory(ctx, parent.ID); err != nil {
			t.Fatalf("second delete: %v", err)
		}

		gotB, _ := s.GetBookmark(ctx, b.ID)
		if gotB.CategoryID != nil {
			t.Fatalf("bookmark still points at deleted category")
		}
		if gotB.Category != "parent" {
			t.Fatalf("legacy category name should be kept, got %q", gotB.Category)
		}
		gotC, _ := s.GetCategory(ctx, child.ID)
		if gotC.ParentID != nil {
			t.Fatalf("child still points at deleted parent")
		}
	})
}

func TestGoals_Ordering(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		mk := func(title string, deadline *string, done bool) uint64 {
			g, err := s.CreateGoal(ctx, &models.UserGoal{
				UserID: 1, Title: title, Category: models.GoalPerformance,
				TargetValue: 10, Deadline: deadline, Completed: done,
			})
			if err != nil {
				t.Fatalf("create goal: %v", err)
			}
			return g.ID
		}
		noDeadline := mk("none", nil, false)
		late := mk("late", ptr("2025-12-01"), false)
		done := mk("done", ptr("2025-01-01"), true)
		early := mk("early", ptr("2025-06-01"), false)

		goals, err := s.ListGoals(ctx, 1)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		want := []uint64{early, late, noDeadline, done}
		for i, g := range goals {
			if g.ID != want[i] {
				t.Fatalf("position %d: got %q", i, g.Title)
			}
		}

		up, err := s.UpdateGoal(ctx, early, models.GoalPatch{CurrentValue: ptr(15)})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if up.Progress() != 100 {
			t.Fatalf("expected clamped progress, got %d", up.Progress())
		}
	})
}

func TestGoals_DeadlinesCompareAsInstants(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		mk := func(title, deadline string) (*models.UserGoal, error) {
			return s.CreateGoal(ctx, &models.UserGoal{
				UserID: 1, Title: title, Category: models.GoalReadability, TargetValue: 1, Deadline: &deadline,
			})
		}

		utc, err := mk("utc", "2025-01-31T20:00:00Z")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		// 2025-01-31T15:00:00Z, the earlier instant
		tokyo, err := mk("tokyo", "2025-02-01T00:00:00+09:00")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if *tokyo.Deadline != "2025-01-31T15:00:00Z" {
			t.Fatalf("expected deadline stored in UTC, got %q", *tokyo.Deadline)
		}
		date, err := mk("date", "2025-01-31")
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		for _, bad := range []string{"", "soon", "31/01/2025", "2025-13-01"} {
			if _, err := mk("bad", bad); !errors.Is(err, ErrInvalid) {
				t.Errorf("deadline %q: expected ErrInvalid, got %v", bad, err)
			}
		}

		goals, err := s.ListGoals(ctx, 1)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		want := []uint64{date.ID, tokyo.ID, utc.ID}
		if len(goals) != len(want) {
			t.Fatalf("expected %d goals, got %d", len(want), len(goals))
		}
		for i, g := range goals {
			if g.ID != want[i] {
				t.Fatalf("position %d: got %q", i, g.Title)
			}
		}

		if _, err := s.UpdateGoal(ctx, utc.ID, models.GoalPatch{Deadline: models.Some("next week")}); !errors.Is(err, ErrInvalid) {
			t.Fatalf("update with bad deadline: expected ErrInvalid, got %v", err)
		}
		up, err := s.UpdateGoal(ctx, utc.ID, models.GoalPatch{Deadline: models.Some("2025-01-30T23:00:00-05:00")})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if *up.Deadline != "2025-01-31T04:00:00Z" {
			t.Fatalf("expected normalized deadline, got %q", *up.Deadline)
		}
		cleared, err := s.UpdateGoal(ctx, utc.ID, models.GoalPatch{Deadline: models.Null[string]()})
		if err != nil || cleared.Deadline != nil {
			t.Fatalf("clearing the deadline: %+v, %v", cleared, err)
		}
	})
}

func TestSnippets_ScoreRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		sn, _ := s.CreateSnippet(ctx, &models.CodeSnippet{UserID: 1, Title: "a", Code: "x := 1", Language: "go"})
		if sn.Score != nil {
			t.Fatalf("expected nil score")
		}
		fb := []byte(`{"strengths":["short"]}`)
		up, err := s.UpdateSnippet(ctx, sn.ID, models.SnippetPatch{Score: models.Some(80), Feedback: ptr(datatypes.JSON(fb))})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if up.Score == nil || *up.Score != 80 {
			t.Fatalf("score not stored: %v", up.Score)
		}
		got, _ := s.GetSnippet(ctx, sn.ID)
		if !strings.Contains(string(got.Feedback), "short") {
			t.Fatalf("feedback not stored: %s", got.Feedback)
		}
	})
}

func TestActivities_FilterAndLimit(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Second)
		langs := []string{"go", "ts", "go", "py"}
		for i, l := range langs {
			lang := l
			_, err := s.CreateActivity(ctx, &models.ActivityLog{
				UserID:     1,
				ActionType: models.ActionOptimize,
				Language:   &lang,
				CreatedAt:  now.Add(-time.Duration(i) * 48 * time.Hour),
			})
			if err != nil {
				t.Fatalf("create activity: %v", err)
			}
		}
		if _, err := s.CreateActivity(ctx, &models.ActivityLog{UserID: 2, ActionType: models.ActionChat}); err != nil {
			t.Fatalf("create activity: %v", err)
		}

		all, _ := s.ListActivities(ctx, 1, ActivityFilter{})
		if len(all) != 4 || !all[0].CreatedAt.Equal(now) {
			t.Fatalf("expected 4 newest first, got %+v", all)
		}
		goOnly, _ := s.ListActivities(ctx, 1, ActivityFilter{Language: "go"})
		if len(goOnly) != 2 {
			t.Fatalf("language filter: %d", len(goOnly))
		}
		recent, _ := s.ListActivities(ctx, 1, ActivityFilter{Since: now.Add(-72 * time.Hour)})
		if len(recent) != 2 {
			t.Fatalf("since filter: %d", len(recent))
		}
		limited, _ := s.ListActivities(ctx, 1, ActivityFilter{Limit: 1})
		if len(limited) != 1 || !limited[0].CreatedAt.Equal(now) {
			t.Fatalf("limit: %+v", limited)
		}
	})
}

func TestJobs_Lifecycle(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		j := &models.Job{ID: "01JOBTESTID000000000000000", UserID: 1, Kind: models.JobScore, Code: "x", Language: "go", Status: models.JobQueued}
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("create job: %v", err)
		}
		if err := s.UpdateJobStatusRunning(ctx, j.ID); err != nil {
			t.Fatalf("running: %v", err)
		}
		if err := s.MarkJobSucceeded(ctx, j.ID, []byte(`{"score":90}`)); err != nil {
			t.Fatalf("succeeded: %v", err)
		}
		// a late duplicate delivery must not move a finished job back to running
		if err := s.UpdateJobStatusRunning(ctx, j.ID); err != nil {
			t.Fatalf("running again: %v", err)
		}
		got, err := s.GetJob(ctx, j.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != models.JobSucceeded || !strings.Contains(string(got.Result), "90") {
			t.Fatalf("unexpected job: %+v", got)
		}
		if err := s.MarkJobFailed(ctx, "missing", "boom"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestImportBookmarks(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		in := []models.Bookmark{
			{ID: 50, UserID: 9, Title: "a", Version: 7, ExecutionCount: 3},
			{Title: "b", Tags: []string{"x"}, Category: "Docs"},
		}
		out, err := ImportBookmarks(ctx, s, 1, in)
		if err != nil {
			t.Fatalf("import: %v", err)
		}
		if len(out) != 2 || out[0].UserID != 1 || out[0].Version != 1 || out[0].ExecutionCount != 0 {
			t.Fatalf("unexpected import: %+v", out)
		}
		if out[1].Category != "Docs" || out[0].Category != DefaultBookmarkCategory {
			t.Fatalf("categories: %q %q", out[0].Category, out[1].Category)
		}
		list, _ := s.ListBookmarks(ctx, 1)
		if len(list) != 2 {
			t.Fatalf("expected 2 stored, got %d", len(list))
		}
	})
}
