package models

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type ContentType string

const (
	ContentChat ContentType = "chat"
	ContentCode ContentType = "code"
	ContentNote ContentType = "note"
	ContentLink ContentType = "link"
)

func (t ContentType) Valid() bool {
	switch t {
	case ContentChat, ContentCode, ContentNote, ContentLink:
		return true
	}
	return false
}

type GoalCategory string

const (
	GoalPerformance   GoalCategory = "performance"
	GoalReadability   GoalCategory = "readability"
	GoalBestPractices GoalCategory = "best_practices"
	GoalErrorHandling GoalCategory = "error_handling"
)

func (c GoalCategory) Valid() bool {
	switch c {
	case GoalPerformance, GoalReadability, GoalBestPractices, GoalErrorHandling:
		return true
	}
	return false
}

type ActionType string

const (
	ActionChat     ActionType = "chat"
	ActionOptimize ActionType = "optimize"
	ActionScore    ActionType = "score"
)

type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"type:varchar(72);not null" json:"-"`
	DisplayName  string `gorm:"type:varchar(128)" json:"displayName"`
	AvatarURL    string `gorm:"type:varchar(512)" json:"avatarUrl"`
	Role         string `gorm:"type:varchar(32);not null" json:"role"`
}

type Conversation struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint64    `gorm:"index;not null" json:"userId"`
	Title        string    `gorm:"type:varchar(255);not null" json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `gorm:"index" json:"lastModified"`
}

type ChatMessage struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         uint64    `gorm:"index;not null" json:"userId"`
	ConversationID uint64    `gorm:"index;not null" json:"conversationId"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	IsAI           bool      `gorm:"not null" json:"isAi"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Category struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint64    `gorm:"index;not null" json:"userId"`
	Name         string    `gorm:"type:varchar(128);not null" json:"name"`
	Description  string    `gorm:"type:text" json:"description"`
	ParentID     *uint64   `gorm:"index" json:"parentId"`
	Order        int       `gorm:"column:sort_order;not null" json:"order"`
	Color        string    `gorm:"type:varchar(16)" json:"color"`
	Icon         string    `gorm:"type:varchar(64)" json:"icon"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

type Bookmark struct {
	ID             uint64                      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         uint64                      `gorm:"index;not null" json:"userId"`
	ConversationID *uint64                     `json:"conversationId"`
	MessageID      *uint64                     `json:"messageId"`
	Title          string                      `gorm:"type:varchar(255);not null" json:"title"`
	Content        string                      `gorm:"type:text;not null" json:"content"`
	Tags           datatypes.JSONSlice[string] `gorm:"not null" json:"tags"`
	Category       string                      `gorm:"type:varchar(128);index" json:"category"`
	CategoryID     *uint64                     `gorm:"index" json:"categoryId"`
	Notes          string                      `gorm:"type:text" json:"notes"`
	ContentType    ContentType                 `gorm:"type:varchar(16);not null" json:"contentType"`
	Starred        bool                        `gorm:"not null" json:"starred"`
	URL            string                      `gorm:"type:varchar(1024)" json:"url"`
	IsTemplate     bool                        `gorm:"not null" json:"isTemplate"`
	Version        int                         `gorm:"not null" json:"version"`
	ExecutionCount int                         `gorm:"not null" json:"executionCount"`
	LastExecutedAt *time.Time                  `json:"lastExecutedAt"`
	CreatedAt      time.Time                   `json:"createdAt"`
	LastModified   time.Time                   `json:"lastModified"`
}

// HasTag reports whether tag is one of the bookmark's tags.
func (b *Bookmark) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type CodeSnippet struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64         `gorm:"index;not null" json:"userId"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`
	Code      string         `gorm:"type:text;not null" json:"code"`
	Language  string         `gorm:"type:varchar(64);not null" json:"language"`
	Score     *int           `json:"score"`
	Feedback  datatypes.JSON `json:"feedback"`
	CreatedAt time.Time      `json:"createdAt"`
}

type UserGoal struct {
	ID           uint64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint64       `gorm:"index;not null" json:"userId"`
	Title        string       `gorm:"type:varchar(255);not null" json:"title"`
	Description  string       `gorm:"type:text" json:"description"`
	Category     GoalCategory `gorm:"type:varchar(32);not null" json:"category"`
	TargetValue  int          `gorm:"not null" json:"targetValue"`
	CurrentValue int          `gorm:"not null" json:"currentValue"`
	Deadline     *string      `gorm:"type:varchar(32)" json:"deadline"`
	Completed    bool         `gorm:"not null" json:"completed"`
	CreatedAt    time.Time    `json:"createdAt"`
}

var ErrInvalidDeadline = errors.New("deadline must be a YYYY-MM-DD date or an RFC 3339 timestamp")

// parseDeadline accepts a calendar date (read as UTC midnight) or an RFC 3339 timestamp.
func parseDeadline(s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, false, nil
	}
	return time.Time{}, false, ErrInvalidDeadline
}

// NormalizeDeadline returns d in canonical form: dates stay YYYY-MM-DD and
// timestamps are rewritten in UTC. nil means no deadline.
func NormalizeDeadline(d *string) (*string, error) {
	if d == nil {
		return nil, nil
	}
	t, dateOnly, err := parseDeadline(*d)
	if err != nil {
		return nil, err
	}
	var out string
	if dateOnly {
		out = t.Format(time.DateOnly)
	} else {
		out = t.UTC().Format(time.RFC3339Nano)
	}
	return &out, nil
}

// DeadlineTime reports the instant of the deadline; ok is false when there is none.
func (g *UserGoal) DeadlineTime() (time.Time, bool) {
	if g.Deadline == nil {
		return time.Time{}, false
	}
	t, _, err := parseDeadline(*g.Deadline)
	return t, err == nil
}

// Progress is the completion percentage, clamped to 100.
func (g *UserGoal) Progress() int {
	return Progress(g.CurrentValue, g.TargetValue)
}

// MarshalJSON adds the computed progress field.
func (g UserGoal) MarshalJSON() ([]byte, error) {
	type goal UserGoal
	return json.Marshal(struct {
		goal
		Progress int `json:"progress"`
	}{goal(g), g.Progress()})
}

func Progress(current, target int) int {
	if target <= 0 {
		return 0
	}
	p := int(math.Round(float64(current) / float64(target) * 100))
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

type ActivityLog struct {
	ID         uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint64         `gorm:"index:idx_activity_user_created,priority:1;not null" json:"userId"`
	ActionType ActionType     `gorm:"type:varchar(16);index;not null" json:"actionType"`
	Language   *string        `gorm:"type:varchar(64);index" json:"language"`
	Metadata   datatypes.JSON `json:"metadata"`
	CreatedAt  time.Time      `gorm:"index:idx_activity_user_created,priority:2" json:"createdAt"`
}
