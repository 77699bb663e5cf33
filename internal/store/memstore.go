package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/suPer8Hu/devassist/internal/models"
	"gorm.io/datatypes"
)

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now as the source of create/update timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// MemStore keeps every entity in process memory. Data is lost on restart.
// All methods are safe for concurrent use; concurrent updates of the same
// record are last-writer-wins unless a bookmark version is supplied.
type MemStore struct {
	mu    sync.RWMutex
	clock *clock

	users         map[uint64]models.User
	conversations map[uint64]models.Conversation
	messages      map[uint64]models.ChatMessage
	categories    map[uint64]models.Category
	bookmarks     map[uint64]models.Bookmark
	snippets      map[uint64]models.CodeSnippet
	goals         map[uint64]models.UserGoal
	activities    map[uint64]models.ActivityLog
	jobs          map[string]models.Job

	userSeq, conversationSeq, messageSeq, categorySeq uint64
	bookmarkSeq, snippetSeq, goalSeq, activitySeq     uint64
}

var _ Store = (*MemStore)(nil)

func NewMemStore(opts ...Option) *MemStore {
	o := buildOptions(opts)
	return &MemStore{
		clock:         newClock(o.now),
		users:         make(map[uint64]models.User),
		conversations: make(map[uint64]models.Conversation),
		messages:      make(map[uint64]models.ChatMessage),
		categories:    make(map[uint64]models.Category),
		bookmarks:     make(map[uint64]models.Bookmark),
		snippets:      make(map[uint64]models.CodeSnippet),
		goals:         make(map[uint64]models.UserGoal),
		activities:    make(map[uint64]models.ActivityLog),
		jobs:          make(map[string]models.Job),
	}
}

func (s *MemStore) Close() error { return nil }

func next(seq *uint64) uint64 {
	*seq++
	return *seq
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyJSON(j datatypes.JSON) datatypes.JSON {
	if j == nil {
		return nil
	}
	return append(datatypes.JSON(nil), j...)
}

func cloneBookmark(b models.Bookmark) models.Bookmark {
	b.Tags = append([]string{}, b.Tags...)
	b.ConversationID = copyPtr(b.ConversationID)
	b.MessageID = copyPtr(b.MessageID)
	b.CategoryID = copyPtr(b.CategoryID)
	b.LastExecutedAt = copyPtr(b.LastExecutedAt)
	return b
}

func cloneCategory(c models.Category) models.Category {
	c.ParentID = copyPtr(c.ParentID)
	return c
}

func cloneSnippet(sn models.CodeSnippet) models.CodeSnippet {
	sn.Score = copyPtr(sn.Score)
	sn.Feedback = copyJSON(sn.Feedback)
	return sn
}

func cloneGoal(g models.UserGoal) models.UserGoal {
	g.Deadline = copyPtr(g.Deadline)
	return g
}

func cloneActivity(a models.ActivityLog) models.ActivityLog {
	a.Language = copyPtr(a.Language)
	a.Metadata = copyJSON(a.Metadata)
	return a
}

func cloneJob(j models.Job) models.Job {
	j.SnippetID = copyPtr(j.SnippetID)
	j.IdempotencyKey = copyPtr(j.IdempotencyKey)
	j.Error = copyPtr(j.Error)
	j.Result = copyJSON(j.Result)
	return j
}

// Users

func (s *MemStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return nil, fmt.Errorf("username %q is taken: %w", u.Username, ErrConflict)
		}
	}
	userDefaults(u)
	u.ID = next(&s.userSeq)
	s.users[u.ID] = *u
	out := *u
	return &out, nil
}

func (s *MemStore) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return &u, nil
}

func (s *MemStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
}

func (s *MemStore) UpdateUser(ctx context.Context, id uint64, p models.UserPatch) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if p.Username != nil && *p.Username != u.Username {
		for _, other := range s.users {
			if other.ID != id && other.Username == *p.Username {
				return nil, fmt.Errorf("username %q is taken: %w", *p.Username, ErrConflict)
			}
		}
	}
	p.Apply(&u)
	s.users[id] = u
	return &u, nil
}

// Conversations

func (s *MemStore) CreateConversation(ctx context.Context, c *models.Conversation) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conversationDefaults(c)
	now := s.clock.Now()
	c.ID = next(&s.conversationSeq)
	c.CreatedAt, c.LastModified = now, now
	s.conversations[c.ID] = *c
	out := *c
	return &out, nil
}

func (s *MemStore) GetConversation(ctx context.Context, id uint64) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %d: %w", id, ErrNotFound)
	}
	return &c, nil
}

func (s *MemStore) UpdateConversation(ctx context.Context, id uint64, p models.ConversationPatch) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %d: %w", id, ErrNotFound)
	}
	p.Apply(&c)
	c.LastModified = s.clock.Now()
	s.conversations[id] = c
	return &c, nil
}

func (s *MemStore) DeleteConversation(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
	for mid, m := range s.messages {
		if m.ConversationID == id {
			delete(s.messages, mid)
		}
	}
	return nil
}

func (s *MemStore) ListConversations(ctx context.Context, userID uint64) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Conversation, 0)
	for _, c := range s.conversations {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sortConversations(out)
	return out, nil
}

// Messages

func (s *MemStore) CreateMessage(ctx context.Context, m *models.ChatMessage) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = next(&s.messageSeq)
	m.CreatedAt = s.clock.Now()
	s.messages[m.ID] = *m
	out := *m
	return &out, nil
}

func (s *MemStore) ListMessages(ctx context.Context, conversationID uint64) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatMessage, 0)
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sortMessages(out)
	return out, nil
}

// Categories

func (s *MemStore) CreateCategory(ctx context.Context, c *models.Category) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ParentID != nil {
		parent, ok := s.categories[*c.ParentID]
		if !ok || parent.UserID != c.UserID {
			return nil, fmt.Errorf("unknown parent category %d: %w", *c.ParentID, ErrInvalid)
		}
	}
	categoryDefaults(c)
	now := s.clock.Now()
	c.ID = next(&s.categorySeq)
	c.CreatedAt, c.LastModified = now, now
	s.categories[c.ID] = cloneCategory(*c)
	out := cloneCategory(*c)
	return &out, nil
}

func (s *MemStore) GetCategory(ctx context.Context, id uint64) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	out := cloneCategory(c)
	return &out, nil
}

func (s *MemStore) parentOf(id uint64) (*uint64, bool) {
	c, ok := s.categories[id]
	if !ok {
		return nil, false
	}
	return c.ParentID, true
}

func (s *MemStore) UpdateCategory(ctx context.Context, id uint64, p models.CategoryPatch) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	if p.ParentID.Set && p.ParentID.Valid {
		parent, ok := s.categories[p.ParentID.Value]
		if !ok || parent.UserID != c.UserID {
			return nil, fmt.Errorf("unknown parent category %d: %w", p.ParentID.Value, ErrInvalid)
		}
		if createsCycle(id, p.ParentID.Value, s.parentOf) {
			return nil, fmt.Errorf("category %d would become its own ancestor: %w", id, ErrInvalid)
		}
	}
	c = cloneCategory(c)
	p.Apply(&c)
	c.LastModified = s.clock.Now()
	s.categories[id] = c
	out := cloneCategory(c)
	return &out, nil
}

func (s *MemStore) DeleteCategory(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return nil
	}
	delete(s.categories, id)
	now := s.clock.Now()
	for cid, c := range s.categories {
		if c.ParentID != nil && *c.ParentID == id {
			c.ParentID = nil
			c.LastModified = now
			s.categories[cid] = c
		}
	}
	for bid, b := range s.bookmarks {
		if b.CategoryID != nil && *b.CategoryID == id {
			b = cloneBookmark(b)
			b.CategoryID = nil
			b.LastModified = now
			s.bookmarks[bid] = b
		}
	}
	return nil
}

func (s *MemStore) ListCategories(ctx context.Context, userID uint64) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Category, 0)
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, cloneCategory(c))
		}
	}
	sortCategories(out)
	return out, nil
}

// Bookmarks

func (s *MemStore) CreateBookmark(ctx context.Context, b *models.Bookmark) (*models.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bookmarkDefaults(b)
	now := s.clock.Now()
	b.ID = next(&s.bookmarkSeq)
	b.CreatedAt, b.LastModified = now, now
	s.bookmarks[b.ID] = cloneBookmark(*b)
	out := cloneBookmark(*b)
	return &out, nil
}

func (s *MemStore) GetBookmark(ctx context.Context, id uint64) (*models.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookmarks[id]
	if !ok {
		return nil, fmt.Errorf("bookmark %d: %w", id, ErrNotFound)
	}
	out := cloneBookmark(b)
	return &out, nil
}

func (s *MemStore) UpdateBookmark(ctx context.Context, id uint64, p models.BookmarkPatch) (*models.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookmarks[id]
	if !ok {
		return nil, fmt.Errorf("bookmark %d: %w", id, ErrNotFound)
	}
	if p.ExpectedVersion != nil && *p.ExpectedVersion != b.Version {
		return nil, fmt.Errorf("bookmark %d at version %d, expected %d: %w", id, b.Version, *p.ExpectedVersion, ErrVersionConflict)
	}
	b = cloneBookmark(b)
	p.Apply(&b)
	if b.Tags == nil {
		b.Tags = []string{}
	}
	b.Version++
	b.LastModified = s.clock.Now()
	s.bookmarks[id] = b
	out := cloneBookmark(b)
	return &out, nil
}

func (s *MemStore) DeleteBookmark(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bookmarks, id)
	return nil
}

func (s *MemStore) ExecuteTemplate(ctx context.Context, id uint64) (*models.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookmarks[id]
	if !ok {
		return nil, fmt.Errorf("bookmark %d: %w", id, ErrNotFound)
	}
	if !b.IsTemplate {
		return nil, fmt.Errorf("bookmark %d is not a template: %w", id, ErrInvalid)
	}
	b = cloneBookmark(b)
	now := s.clock.Now()
	b.ExecutionCount++
	b.LastExecutedAt = &now
	s.bookmarks[id] = b
	out := cloneBookmark(b)
	return &out, nil
}

func (s *MemStore) userBookmarks(userID uint64, keep func(*models.Bookmark) bool) []models.Bookmark {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Bookmark, 0)
	for _, b := range s.bookmarks {
		if b.UserID == userID && keep(&b) {
			out = append(out, cloneBookmark(b))
		}
	}
	sortBookmarks(out)
	return out
}

func (s *MemStore) ListBookmarks(ctx context.Context, userID uint64) ([]models.Bookmark, error) {
	return s.userBookmarks(userID, func(*models.Bookmark) bool { return true }), nil
}

func (s *MemStore) ListBookmarksByCategory(ctx context.Context, userID uint64, category string) ([]models.Bookmark, error) {
	return s.userBookmarks(userID, func(b *models.Bookmark) bool { return b.Category == category }), nil
}

func (s *MemStore) ListBookmarksByCategoryID(ctx context.Context, userID, categoryID uint64) ([]models.Bookmark, error) {
	return s.userBookmarks(userID, func(b *models.Bookmark) bool {
		return b.CategoryID != nil && *b.CategoryID == categoryID
	}), nil
}

func (s *MemStore) ListBookmarksByTag(ctx context.Context, userID uint64, tag string) ([]models.Bookmark, error) {
	return s.userBookmarks(userID, func(b *models.Bookmark) bool { return b.HasTag(tag) }), nil
}

func (s *MemStore) SearchBookmarks(ctx context.Context, userID uint64, query string) ([]models.Bookmark, error) {
	return s.userBookmarks(userID, func(b *models.Bookmark) bool { return matchesSearch(b, query) }), nil
}

// Snippets

func (s *MemStore) CreateSnippet(ctx context.Context, sn *models.CodeSnippet) (*models.CodeSnippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn.ID = next(&s.snippetSeq)
	sn.CreatedAt = s.clock.Now()
	s.snippets[sn.ID] = cloneSnippet(*sn)
	out := cloneSnippet(*sn)
	return &out, nil
}

func (s *MemStore) GetSnippet(ctx context.Context, id uint64) (*models.CodeSnippet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sn, ok := s.snippets[id]
	if !ok {
		return nil, fmt.Errorf("snippet %d: %w", id, ErrNotFound)
	}
	out := cloneSnippet(sn)
	return &out, nil
}

func (s *MemStore) UpdateSnippet(ctx context.Context, id uint64, p models.SnippetPatch) (*models.CodeSnippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn, ok := s.snippets[id]
	if !ok {
		return nil, fmt.Errorf("snippet %d: %w", id, ErrNotFound)
	}
	sn = cloneSnippet(sn)
	p.Apply(&sn)
	s.snippets[id] = sn
	out := cloneSnippet(sn)
	return &out, nil
}

func (s *MemStore) DeleteSnippet(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snippets, id)
	return nil
}

func (s *MemStore) ListSnippets(ctx context.Context, userID uint64) ([]models.CodeSnippet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.CodeSnippet, 0)
	for _, sn := range s.snippets {
		if sn.UserID == userID {
			out = append(out, cloneSnippet(sn))
		}
	}
	sortSnippets(out)
	return out, nil
}

// Goals

func (s *MemStore) CreateGoal(ctx context.Context, g *models.UserGoal) (*models.UserGoal, error) {
	d, err := goalDeadline(g.Deadline)
	if err != nil {
		return nil, err
	}
	g.Deadline = d
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = next(&s.goalSeq)
	g.CreatedAt = s.clock.Now()
	s.goals[g.ID] = cloneGoal(*g)
	out := cloneGoal(*g)
	return &out, nil
}

func (s *MemStore) GetGoal(ctx context.Context, id uint64) (*models.UserGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[id]
	if !ok {
		return nil, fmt.Errorf("goal %d: %w", id, ErrNotFound)
	}
	out := cloneGoal(g)
	return &out, nil
}

func (s *MemStore) UpdateGoal(ctx context.Context, id uint64, p models.GoalPatch) (*models.UserGoal, error) {
	if err := goalPatchDeadline(&p); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return nil, fmt.Errorf("goal %d: %w", id, ErrNotFound)
	}
	g = cloneGoal(g)
	p.Apply(&g)
	s.goals[id] = g
	out := cloneGoal(g)
	return &out, nil
}

func (s *MemStore) DeleteGoal(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.goals, id)
	return nil
}

func (s *MemStore) ListGoals(ctx context.Context, userID uint64) ([]models.UserGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.UserGoal, 0)
	for _, g := range s.goals {
		if g.UserID == userID {
			out = append(out, cloneGoal(g))
		}
	}
	sortGoals(out)
	return out, nil
}

// Activities

func (s *MemStore) CreateActivity(ctx context.Context, a *models.ActivityLog) (*models.ActivityLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = next(&s.activitySeq)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.clock.Now()
	} else {
		a.CreatedAt = a.CreatedAt.UTC()
	}
	s.activities[a.ID] = cloneActivity(*a)
	out := cloneActivity(*a)
	return &out, nil
}

func (s *MemStore) ListActivities(ctx context.Context, userID uint64, f ActivityFilter) ([]models.ActivityLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ActivityLog, 0)
	for _, a := range s.activities {
		if a.UserID == userID && matchesActivity(&a, f) {
			out = append(out, cloneActivity(a))
		}
	}
	sortActivities(out)
	return limitActivities(out, f.Limit), nil
}

// Jobs

func (s *MemStore) CreateJob(ctx context.Context, j *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("job %s: %w", j.ID, ErrConflict)
	}
	now := s.clock.Now()
	j.CreatedAt, j.UpdatedAt = now, now
	s.jobs[j.ID] = cloneJob(*j)
	return nil
}

func (s *MemStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	out := cloneJob(j)
	return &out, nil
}

func (s *MemStore) UpdateJobStatusRunning(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if j.Status != models.JobQueued {
		return nil
	}
	j.Status = models.JobRunning
	j.UpdatedAt = s.clock.Now()
	s.jobs[id] = j
	return nil
}

func (s *MemStore) MarkJobSucceeded(ctx context.Context, id string, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	j.Status = models.JobSucceeded
	j.Result = copyJSON(result)
	j.Error = nil
	j.UpdatedAt = s.clock.Now()
	s.jobs[id] = j
	return nil
}

func (s *MemStore) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	j.Status = models.JobFailed
	j.Error = &errMsg
	j.Result = nil
	j.UpdatedAt = s.clock.Now()
	s.jobs[id] = j
	return nil
}
