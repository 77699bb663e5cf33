package store

import (
	"context"
	"fmt"

	"github.com/suPer8Hu/devassist/internal/models"
)

// ImportBookmarks creates each bookmark for userID with the usual create
// defaults. Incoming ids, versions, counters and chat references are
// discarded. It stops at the first failure and returns what was created.
func ImportBookmarks(ctx context.Context, s Bookmarks, userID uint64, in []models.Bookmark) ([]models.Bookmark, error) {
	out := make([]models.Bookmark, 0, len(in))
	for i := range in {
		b := in[i]
		b.ID = 0
		b.UserID = userID
		b.Version = 0
		b.ExecutionCount = 0
		b.LastExecutedAt = nil
		b.ConversationID, b.MessageID = nil, nil
		created, err := s.CreateBookmark(ctx, &b)
		if err != nil {
			return out, fmt.Errorf("import bookmark %d: %w", i, err)
		}
		out = append(out, *created)
	}
	return out, nil
}
