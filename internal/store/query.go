package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/suPer8Hu/devassist/internal/models"
)

const (
	DefaultBookmarkCategory = "General"
	DefaultCategoryColor    = "#6366f1"
	DefaultConversation     = "New Conversation"
	DefaultRole             = "developer"
)

// clock hands out strictly increasing UTC timestamps so that records written
// back to back still have a total order by time.
type clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func newClock(now func() time.Time) *clock {
	if now == nil {
		now = time.Now
	}
	return &clock{now: now}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Round(0).Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

// Create defaults shared by both backends.

func bookmarkDefaults(b *models.Bookmark) {
	if b.Tags == nil {
		b.Tags = []string{}
	}
	if b.Category == "" {
		b.Category = DefaultBookmarkCategory
	}
	if b.ContentType == "" {
		b.ContentType = models.ContentNote
	}
	if b.Version <= 0 {
		b.Version = 1
	}
}

func conversationDefaults(c *models.Conversation) {
	if strings.TrimSpace(c.Title) == "" {
		c.Title = DefaultConversation
	}
}

func categoryDefaults(c *models.Category) {
	if c.Color == "" {
		c.Color = DefaultCategoryColor
	}
}

func userDefaults(u *models.User) {
	if u.Role == "" {
		u.Role = DefaultRole
	}
}

// Sort orders.

func sortConversations(cs []models.Conversation) {
	sort.SliceStable(cs, func(i, j int) bool {
		if !cs[i].LastModified.Equal(cs[j].LastModified) {
			return cs[i].LastModified.After(cs[j].LastModified)
		}
		return cs[i].ID > cs[j].ID
	})
}

func sortMessages(ms []models.ChatMessage) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.Before(ms[j].CreatedAt)
		}
		return ms[i].ID < ms[j].ID
	})
}

func sortBookmarks(bs []models.Bookmark) {
	sort.SliceStable(bs, func(i, j int) bool {
		if !bs[i].CreatedAt.Equal(bs[j].CreatedAt) {
			return bs[i].CreatedAt.After(bs[j].CreatedAt)
		}
		return bs[i].ID > bs[j].ID
	})
}

func sortSnippets(ss []models.CodeSnippet) {
	sort.SliceStable(ss, func(i, j int) bool {
		if !ss[i].CreatedAt.Equal(ss[j].CreatedAt) {
			return ss[i].CreatedAt.After(ss[j].CreatedAt)
		}
		return ss[i].ID > ss[j].ID
	})
}

// sortCategories orders by Order, keeping insertion order for ties.
func sortCategories(cs []models.Category) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Order != cs[j].Order {
			return cs[i].Order < cs[j].Order
		}
		return cs[i].ID < cs[j].ID
	})
}

// goalDeadline canonicalizes d, rejecting anything that is not an ISO date.
func goalDeadline(d *string) (*string, error) {
	out, err := models.NormalizeDeadline(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", err, ErrInvalid)
	}
	return out, nil
}

// goalPatchDeadline canonicalizes a deadline carried by p.
func goalPatchDeadline(p *models.GoalPatch) error {
	if !p.Deadline.Set || !p.Deadline.Valid {
		return nil
	}
	d, err := goalDeadline(&p.Deadline.Value)
	if err != nil {
		return err
	}
	p.Deadline.Value = *d
	return nil
}

// sortGoals puts incomplete goals first; inside each group goals with a
// deadline come first, earliest deadline first.
func sortGoals(gs []models.UserGoal) {
	sort.SliceStable(gs, func(i, j int) bool {
		a, b := gs[i], gs[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		at, aok := a.DeadlineTime()
		bt, bok := b.DeadlineTime()
		switch {
		case aok && bok:
			if !at.Equal(bt) {
				return at.Before(bt)
			}
		case aok:
			return true
		case bok:
			return false
		}
		return a.ID < b.ID
	})
}

func sortActivities(as []models.ActivityLog) {
	sort.SliceStable(as, func(i, j int) bool {
		if !as[i].CreatedAt.Equal(as[j].CreatedAt) {
			return as[i].CreatedAt.After(as[j].CreatedAt)
		}
		return as[i].ID > as[j].ID
	})
}

// Predicates.

func matchesSearch(b *models.Bookmark, q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	for _, f := range []string{b.Title, b.Content, b.Notes, b.Category} {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	for _, t := range b.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

func matchesActivity(a *models.ActivityLog, f ActivityFilter) bool {
	if f.Language != "" && (a.Language == nil || *a.Language != f.Language) {
		return false
	}
	if !f.Since.IsZero() && a.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

func limitActivities(as []models.ActivityLog, limit int) []models.ActivityLog {
	if limit > 0 && len(as) > limit {
		return as[:limit]
	}
	return as
}

func filterBookmarks(bs []models.Bookmark, keep func(*models.Bookmark) bool) []models.Bookmark {
	out := make([]models.Bookmark, 0, len(bs))
	for i := range bs {
		if keep(&bs[i]) {
			out = append(out, bs[i])
		}
	}
	return out
}

// createsCycle reports whether making parentID the parent of id would put id
// on its own ancestor chain. parentOf returns ok=false for unknown ids.
func createsCycle(id, parentID uint64, parentOf func(uint64) (*uint64, bool)) bool {
	seen := map[uint64]bool{}
	cur := parentID
	for !seen[cur] {
		if cur == id {
			return true
		}
		seen[cur] = true
		p, ok := parentOf(cur)
		if !ok || p == nil {
			return false
		}
		cur = *p
	}
	return true
}
