// Package store holds every entity of the application behind one Store
// interface. MemStore keeps records in maps for the lifetime of the process;
// GormStore keeps them in a SQL database through gorm. Both backends share
// the sort orders and predicates in query.go so they answer identically.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/suPer8Hu/devassist/internal/models"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrConflict        = errors.New("record already exists")
	ErrVersionConflict = errors.New("version conflict")
	ErrInvalid         = errors.New("invalid request")
)

type Users interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUser(ctx context.Context, id uint64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUser(ctx context.Context, id uint64, p models.UserPatch) (*models.User, error)
}

type Conversations interface {
	CreateConversation(ctx context.Context, c *models.Conversation) (*models.Conversation, error)
	GetConversation(ctx context.Context, id uint64) (*models.Conversation, error)
	UpdateConversation(ctx context.Context, id uint64, p models.ConversationPatch) (*models.Conversation, error)
	// DeleteConversation also removes the conversation's messages.
	DeleteConversation(ctx context.Context, id uint64) error
	ListConversations(ctx context.Context, userID uint64) ([]models.Conversation, error)
}

type Messages interface {
	CreateMessage(ctx context.Context, m *models.ChatMessage) (*models.ChatMessage, error)
	ListMessages(ctx context.Context, conversationID uint64) ([]models.ChatMessage, error)
}

type Categories interface {
	CreateCategory(ctx context.Context, c *models.Category) (*models.Category, error)
	GetCategory(ctx context.Context, id uint64) (*models.Category, error)
	UpdateCategory(ctx context.Context, id uint64, p models.CategoryPatch) (*models.Category, error)
	// DeleteCategory detaches bookmarks and child categories from the category.
	DeleteCategory(ctx context.Context, id uint64) error
	ListCategories(ctx context.Context, userID uint64) ([]models.Category, error)
}

type Bookmarks interface {
	CreateBookmark(ctx context.Context, b *models.Bookmark) (*models.Bookmark, error)
	GetBookmark(ctx context.Context, id uint64) (*models.Bookmark, error)
	UpdateBookmark(ctx context.Context, id uint64, p models.BookmarkPatch) (*models.Bookmark, error)
	DeleteBookmark(ctx context.Context, id uint64) error
	ExecuteTemplate(ctx context.Context, id uint64) (*models.Bookmark, error)
	ListBookmarks(ctx context.Context, userID uint64) ([]models.Bookmark, error)
	ListBookmarksByCategory(ctx context.Context, userID uint64, category string) ([]models.Bookmark, error)
	ListBookmarksByCategoryID(ctx context.Context, userID, categoryID uint64) ([]models.Bookmark, error)
	ListBookmarksByTag(ctx context.Context, userID uint64, tag string) ([]models.Bookmark, error)
	SearchBookmarks(ctx context.Context, userID uint64, query string) ([]models.Bookmark, error)
}

type Snippets interface {
	CreateSnippet(ctx context.Context, s *models.CodeSnippet) (*models.CodeSnippet, error)
	GetSnippet(ctx context.Context, id uint64) (*models.CodeSnippet, error)
	UpdateSnippet(ctx context.Context, id uint64, p models.SnippetPatch) (*models.CodeSnippet, error)
	DeleteSnippet(ctx context.Context, id uint64) error
	ListSnippets(ctx context.Context, userID uint64) ([]models.CodeSnippet, error)
}

type Goals interface {
	CreateGoal(ctx context.Context, g *models.UserGoal) (*models.UserGoal, error)
	GetGoal(ctx context.Context, id uint64) (*models.UserGoal, error)
	UpdateGoal(ctx context.Context, id uint64, p models.GoalPatch) (*models.UserGoal, error)
	DeleteGoal(ctx context.Context, id uint64) error
	ListGoals(ctx context.Context, userID uint64) ([]models.UserGoal, error)
}

// ActivityFilter narrows ListActivities. Zero values mean no constraint.
type ActivityFilter struct {
	Language string
	Since    time.Time
	Limit    int
}

type Activities interface {
	// CreateActivity appends a log entry. A preset CreatedAt is kept so that
	// historical records can be replayed; otherwise it is set to now.
	CreateActivity(ctx context.Context, a *models.ActivityLog) (*models.ActivityLog, error)
	// ListActivities returns the user's logs newest first.
	ListActivities(ctx context.Context, userID uint64, f ActivityFilter) ([]models.ActivityLog, error)
}

type Jobs interface {
	CreateJob(ctx context.Context, j *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	UpdateJobStatusRunning(ctx context.Context, id string) error
	MarkJobSucceeded(ctx context.Context, id string, result []byte) error
	MarkJobFailed(ctx context.Context, id string, errMsg string) error
}

type Store interface {
	Users
	Conversations
	Messages
	Categories
	Bookmarks
	Snippets
	Goals
	Activities
	Jobs
	Close() error
}
