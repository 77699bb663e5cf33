package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/suPer8Hu/devassist/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormStore implements Store on a SQL database (sqlite or mysql).
type GormStore struct {
	db    *gorm.DB
	clock *clock
}

var _ Store = (*GormStore)(nil)

// NewGormStore migrates the schema and returns a store on db.
func NewGormStore(db *gorm.DB, opts ...Option) (*GormStore, error) {
	o := buildOptions(opts)
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &GormStore{db: db, clock: newClock(o.now)}, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.ChatMessage{},
		&models.Category{},
		&models.Bookmark{},
		&models.CodeSnippet{},
		&models.UserGoal{},
		&models.ActivityLog{},
		&models.Job{},
	)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return err
}

// saveAll writes every column of the loaded record x, zero values included.
func saveAll(tx *gorm.DB, x any) error {
	return tx.Model(x).Select("*").Updates(x).Error
}

// Users

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	var cnt int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", u.Username).Count(&cnt).Error; err != nil {
		return nil, err
	}
	if cnt > 0 {
		return nil, fmt.Errorf("username %q is taken: %w", u.Username, ErrConflict)
	}
	userDefaults(u)
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func (s *GormStore) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return &u, nil
}

func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFound(err, "user", username)
	}
	return &u, nil
}

func (s *GormStore) UpdateUser(ctx context.Context, id uint64, p models.UserPatch) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&u, id).Error; err != nil {
			return notFound(err, "user", id)
		}
		if p.Username != nil && *p.Username != u.Username {
			var cnt int64
			if err := tx.Model(&models.User{}).Where("username = ? AND id <> ?", *p.Username, id).Count(&cnt).Error; err != nil {
				return err
			}
			if cnt > 0 {
				return fmt.Errorf("username %q is taken: %w", *p.Username, ErrConflict)
			}
		}
		p.Apply(&u)
		return saveAll(tx, &u)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Conversations

func (s *GormStore) CreateConversation(ctx context.Context, c *models.Conversation) (*models.Conversation, error) {
	conversationDefaults(c)
	now := s.clock.Now()
	c.CreatedAt, c.LastModified = now, now
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GormStore) GetConversation(ctx context.Context, id uint64) (*models.Conversation, error) {
	var c models.Conversation
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err, "conversation", id)
	}
	return &c, nil
}

func (s *GormStore) UpdateConversation(ctx context.Context, id uint64, p models.ConversationPatch) (*models.Conversation, error) {
	var c models.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&c, id).Error; err != nil {
			return notFound(err, "conversation", id)
		}
		p.Apply(&c)
		c.LastModified = s.clock.Now()
		return saveAll(tx, &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *GormStore) DeleteConversation(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&models.ChatMessage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Conversation{}, id).Error
	})
}

func (s *GormStore) ListConversations(ctx context.Context, userID uint64) ([]models.Conversation, error) {
	out := make([]models.Conversation, 0)
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_modified DESC").Order("id DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Messages

func (s *GormStore) CreateMessage(ctx context.Context, m *models.ChatMessage) (*models.ChatMessage, error) {
	m.CreatedAt = s.clock.Now()
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

func (s *GormStore) ListMessages(ctx context.Context, conversationID uint64) ([]models.ChatMessage, error) {
	out := make([]models.ChatMessage, 0)
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Categories

func (s *GormStore) parentOf(tx *gorm.DB) func(uint64) (*uint64, bool) {
	return func(id uint64) (*uint64, bool) {
		var c models.Category
		if err := tx.Select("id", "parent_id").First(&c, id).Error; err != nil {
			return nil, false
		}
		return c.ParentID, true
	}
}

func (s *GormStore) checkParent(tx *gorm.DB, userID, parentID uint64) error {
	var parent models.Category
	if err := tx.First(&parent, parentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("unknown parent category %d: %w", parentID, ErrInvalid)
		}
		return err
	}
	if parent.UserID != userID {
		return fmt.Errorf("unknown parent category %d: %w", parentID, ErrInvalid)
	}
	return nil
}

func (s *GormStore) CreateCategory(ctx context.Context, c *models.Category) (*models.Category, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c.ParentID != nil {
			if err := s.checkParent(tx, c.UserID, *c.ParentID); err != nil {
				return err
			}
		}
		categoryDefaults(c)
		now := s.clock.Now()
		c.CreatedAt, c.LastModified = now, now
		return tx.Create(c).Error
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GormStore) GetCategory(ctx context.Context, id uint64) (*models.Category, error) {
	var c models.Category
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err, "category", id)
	}
	return &c, nil
}

func (s *GormStore) UpdateCategory(ctx context.Context, id uint64, p models.CategoryPatch) (*models.Category, error) {
	var c models.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&c, id).Error; err != nil {
			return notFound(err, "category", id)
		}
		if p.ParentID.Set && p.ParentID.Valid {
			if err := s.checkParent(tx, c.UserID, p.ParentID.Value); err != nil {
				return err
			}
			if createsCycle(id, p.ParentID.Value, s.parentOf(tx)) {
				return fmt.Errorf("category %d would become its own ancestor: %w", id, ErrInvalid)
			}
		}
		p.Apply(&c)
		c.LastModified = s.clock.Now()
		return saveAll(tx, &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *GormStore) DeleteCategory(ctx context.Context, id uint64) error {
	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Bookmark{}).
			Where("category_id = ?", id).
			Updates(map[string]any{"category_id": nil, "last_modified": now}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Category{}).
			Where("parent_id = ?", id).
			Updates(map[string]any{"parent_id": nil, "last_modified": now}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Category{}, id).Error
	})
}

func (s *GormStore) ListCategories(ctx context.Context, userID uint64) ([]models.Category, error) {
	out := make([]models.Category, 0)
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("sort_order ASC").Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Bookmarks

func (s *GormStore) CreateBookmark(ctx context.Context, b *models.Bookmark) (*models.Bookmark, error) {
	bookmarkDefaults(b)
	now := s.clock.Now()
	b.CreatedAt, b.LastModified = now, now
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

func (s *GormStore) GetBookmark(ctx context.Context, id uint64) (*models.Bookmark, error) {
	var b models.Bookmark
	if err := s.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, notFound(err, "bookmark", id)
	}
	return &b, nil
}

func (s *GormStore) UpdateBookmark(ctx context.Context, id uint64, p models.BookmarkPatch) (*models.Bookmark, error) {
	var b models.Bookmark
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&b, id).Error; err != nil {
			return notFound(err, "bookmark", id)
		}
		prev := b.Version
		if p.ExpectedVersion != nil && *p.ExpectedVersion != prev {
			return fmt.Errorf("bookmark %d at version %d, expected %d: %w", id, prev, *p.ExpectedVersion, ErrVersionConflict)
		}
		p.Apply(&b)
		if b.Tags == nil {
			b.Tags = []string{}
		}
		b.Version = prev + 1
		b.LastModified = s.clock.Now()
		res := tx.Model(&b).Where("version = ?", prev).Select("*").Updates(&b)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("bookmark %d changed concurrently: %w", id, ErrVersionConflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *GormStore) DeleteBookmark(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Delete(&models.Bookmark{}, id).Error
}

func (s *GormStore) ExecuteTemplate(ctx context.Context, id uint64) (*models.Bookmark, error) {
	var b models.Bookmark
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&b, id).Error; err != nil {
			return notFound(err, "bookmark", id)
		}
		if !b.IsTemplate {
			return fmt.Errorf("bookmark %d is not a template: %w", id, ErrInvalid)
		}
		now := s.clock.Now()
		b.ExecutionCount++
		b.LastExecutedAt = &now
		return tx.Model(&b).Updates(map[string]any{
			"execution_count":  b.ExecutionCount,
			"last_executed_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *GormStore) findBookmarks(ctx context.Context, query string, args ...any) ([]models.Bookmark, error) {
	out := make([]models.Bookmark, 0)
	if err := s.db.WithContext(ctx).
		Where(query, args...).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) ListBookmarks(ctx context.Context, userID uint64) ([]models.Bookmark, error) {
	return s.findBookmarks(ctx, "user_id = ?", userID)
}

func (s *GormStore) ListBookmarksByCategory(ctx context.Context, userID uint64, category string) ([]models.Bookmark, error) {
	return s.findBookmarks(ctx, "user_id = ? AND category = ?", userID, category)
}

func (s *GormStore) ListBookmarksByCategoryID(ctx context.Context, userID, categoryID uint64) ([]models.Bookmark, error) {
	return s.findBookmarks(ctx, "user_id = ? AND category_id = ?", userID, categoryID)
}

// Tags live in a JSON column, so tag and text matching run over the user's
// rows in Go with the same predicates MemStore uses.

func (s *GormStore) ListBookmarksByTag(ctx context.Context, userID uint64, tag string) ([]models.Bookmark, error) {
	all, err := s.ListBookmarks(ctx, userID)
	if err != nil {
		return nil, err
	}
	return filterBookmarks(all, func(b *models.Bookmark) bool { return b.HasTag(tag) }), nil
}

func (s *GormStore) SearchBookmarks(ctx context.Context, userID uint64, query string) ([]models.Bookmark, error) {
	all, err := s.ListBookmarks(ctx, userID)
	if err != nil {
		return nil, err
	}
	return filterBookmarks(all, func(b *models.Bookmark) bool { return matchesSearch(b, query) }), nil
}

// Snippets

func (s *GormStore) CreateSnippet(ctx context.Context, sn *models.CodeSnippet) (*models.CodeSnippet, error) {
	sn.CreatedAt = s.clock.Now()
	if err := s.db.WithContext(ctx).Create(sn).Error; err != nil {
		return nil, err
	}
	return sn, nil
}

func (s *GormStore) GetSnippet(ctx context.Context, id uint64) (*models.CodeSnippet, error) {
	var sn models.CodeSnippet
	if err := s.db.WithContext(ctx).First(&sn, id).Error; err != nil {
		return nil, notFound(err, "snippet", id)
	}
	return &sn, nil
}

func (s *GormStore) UpdateSnippet(ctx context.Context, id uint64, p models.SnippetPatch) (*models.CodeSnippet, error) {
	var sn models.CodeSnippet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sn, id).Error; err != nil {
			return notFound(err, "snippet", id)
		}
		p.Apply(&sn)
		return saveAll(tx, &sn)
	})
	if err != nil {
		return nil, err
	}
	return &sn, nil
}

func (s *GormStore) DeleteSnippet(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Delete(&models.CodeSnippet{}, id).Error
}

func (s *GormStore) ListSnippets(ctx context.Context, userID uint64) ([]models.CodeSnippet, error) {
	out := make([]models.CodeSnippet, 0)
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Goals

func (s *GormStore) CreateGoal(ctx context.Context, g *models.UserGoal) (*models.UserGoal, error) {
	d, err := goalDeadline(g.Deadline)
	if err != nil {
		return nil, err
	}
	g.Deadline = d
	g.CreatedAt = s.clock.Now()
	if err := s.db.WithContext(ctx).Create(g).Error; err != nil {
		return nil, err
	}
	return g, nil
}

func (s *GormStore) GetGoal(ctx context.Context, id uint64) (*models.UserGoal, error) {
	var g models.UserGoal
	if err := s.db.WithContext(ctx).First(&g, id).Error; err != nil {
		return nil, notFound(err, "goal", id)
	}
	return &g, nil
}

func (s *GormStore) UpdateGoal(ctx context.Context, id uint64, p models.GoalPatch) (*models.UserGoal, error) {
	if err := goalPatchDeadline(&p); err != nil {
		return nil, err
	}
	var g models.UserGoal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&g, id).Error; err != nil {
			return notFound(err, "goal", id)
		}
		p.Apply(&g)
		return saveAll(tx, &g)
	})
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *GormStore) DeleteGoal(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Delete(&models.UserGoal{}, id).Error
}

func (s *GormStore) ListGoals(ctx context.Context, userID uint64) ([]models.UserGoal, error) {
	out := make([]models.UserGoal, 0)
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&out).Error; err != nil {
		return nil, err
	}
	sortGoals(out)
	return out, nil
}

// Activities

func (s *GormStore) CreateActivity(ctx context.Context, a *models.ActivityLog) (*models.ActivityLog, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.clock.Now()
	} else {
		a.CreatedAt = a.CreatedAt.UTC()
	}
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

func (s *GormStore) ListActivities(ctx context.Context, userID uint64, f ActivityFilter) ([]models.ActivityLog, error) {
	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC")
	if f.Language != "" {
		q = q.Where("language = ?", f.Language)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since.UTC())
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	out := make([]models.ActivityLog, 0)
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Jobs

func (s *GormStore) CreateJob(ctx context.Context, j *models.Job) error {
	now := s.clock.Now()
	j.CreatedAt, j.UpdatedAt = now, now
	return s.db.WithContext(ctx).Create(j).Error
}

func (s *GormStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var j models.Job
	if err := s.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "job", id)
	}
	return &j, nil
}

func (s *GormStore) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobQueued).
		Updates(map[string]any{"status": models.JobRunning, "updated_at": s.clock.Now()}).Error
}

func (s *GormStore) finishJob(ctx context.Context, id string, fields map[string]any) error {
	fields["updated_at"] = s.clock.Now()
	res := s.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *GormStore) MarkJobSucceeded(ctx context.Context, id string, result []byte) error {
	return s.finishJob(ctx, id, map[string]any{
		"status": models.JobSucceeded,
		"result": datatypes.JSON(result),
		"error":  nil,
	})
}

func (s *GormStore) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return s.finishJob(ctx, id, map[string]any{
		"status": models.JobFailed,
		"error":  errMsg,
		"result": nil,
	})
}
