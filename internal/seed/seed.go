// Package seed fills a fresh store with the demo account and sample data.
package seed

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/suPer8Hu/devassist/internal/auth"
	"github.com/suPer8Hu/devassist/internal/models"
	"github.com/suPer8Hu/devassist/internal/store"
	"gorm.io/datatypes"
)

const (
	DemoUsername = "alexmorgan"
	DemoPassword = "password123"

	// ActivityDays is how far back the synthetic activity log reaches.
	ActivityDays = 30
)

var demoLanguages = []string{"javascript", "typescript", "python", "go", "css"}

var demoActions = []models.ActionType{models.ActionChat, models.ActionOptimize, models.ActionScore}

// Options controls Run. Random must be set so that runs are reproducible.
type Options struct {
	Random *rand.Rand
	Now    time.Time
}

// Result reports what Run created.
type Result struct {
	User       *models.User
	Bookmarks  int
	Activities int
}

// Run creates the demo user (id 1 on an empty store), its bookmarks and
// ActivityDays days of random activity ending at opts.Now.
func Run(ctx context.Context, s store.Store, opts Options) (*Result, error) {
	if opts.Random == nil {
		return nil, fmt.Errorf("seed: random source is required")
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	hash, err := auth.HashPassword(DemoPassword)
	if err != nil {
		return nil, err
	}
	user, err := s.CreateUser(ctx, &models.User{
		Username:     DemoUsername,
		PasswordHash: hash,
		DisplayName:  "Alex Morgan",
		Role:         "Developer",
	})
	if err != nil {
		return nil, fmt.Errorf("seed user: %w", err)
	}

	res := &Result{User: user}
	for _, b := range demoBookmarks(user.ID) {
		if _, err := s.CreateBookmark(ctx, &b); err != nil {
			return nil, fmt.Errorf("seed bookmark %q: %w", b.Title, err)
		}
		res.Bookmarks++
	}

	n, err := seedActivities(ctx, s, user.ID, opts.Random, opts.Now)
	if err != nil {
		return nil, err
	}
	res.Activities = n

	log.Printf("[seed] user=%s uid=%d bookmarks=%d activities=%d", user.Username, user.ID, res.Bookmarks, res.Activities)
	return res, nil
}

func demoBookmarks(uid uint64) []models.Bookmark {
	return []models.Bookmark{
		{
			UserID:  uid,
			Title:   "Optimizing API calls with React Query",
			Content: "React Query provides a powerful way to handle API calls with built-in caching and state management. Here's how to optimize your API calls...",
			Tags:    []string{"React", "API"},
		},
		{
			UserID:  uid,
			Title:   "TypeScript interface vs type alias",
			Content: "TypeScript offers two ways to define custom types: interfaces and type aliases. Here's when to use each one...",
			Tags:    []string{"TypeScript"},
		},
		{
			UserID: uid,
			Title:  "CSS Grid vs Flexbox decision tree",
			Content: "```css\n.grid-layout {\n  display: grid;\n  grid-template-columns: repeat(auto-fill, minmax(200px, 1fr));\n  gap: 1rem;\n}\n\n" +
				".flex-layout {\n  display: flex;\n  flex-wrap: wrap;\n  gap: 1rem;\n}\n```\n\n" +
				"Use Grid when you need two-dimensional layouts and Flexbox for one-dimensional layouts.",
			Tags:        []string{"CSS", "Layout"},
			ContentType: models.ContentCode,
		},
	}
}

// seedActivities writes 1..5 records per day for the last ActivityDays days.
// Every record falls strictly inside (now-ActivityDays days, now].
func seedActivities(ctx context.Context, s store.Activities, uid uint64, r *rand.Rand, now time.Time) (int, error) {
	count := 0
	for day := 0; day < ActivityDays; day++ {
		perDay := 1 + r.Intn(5)
		for i := 0; i < perDay; i++ {
			offset := time.Duration(day)*24*time.Hour + time.Duration(r.Int63n(int64(24*time.Hour)))
			action := demoActions[r.Intn(len(demoActions))]

			var lang *string
			if action != models.ActionChat {
				l := demoLanguages[r.Intn(len(demoLanguages))]
				lang = &l
			}
			meta := fmt.Sprintf(`{"success":%t,"duration":%d,"seeded":true}`, r.Intn(10) > 0, 200+r.Intn(3000))

			if _, err := s.CreateActivity(ctx, &models.ActivityLog{
				UserID:     uid,
				ActionType: action,
				Language:   lang,
				Metadata:   datatypes.JSON(meta),
				CreatedAt:  now.Add(-offset),
			}); err != nil {
				return count, fmt.Errorf("seed activity: %w", err)
			}
			count++
		}
	}
	return count, nil
}
