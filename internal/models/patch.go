package models

import (
	"bytes"
	"encoding/json"

	"gorm.io/datatypes"
)

// Nullable distinguishes an absent JSON field (Set=false) from an explicit
// null (Set=true, Valid=false) and from a value (Set=true, Valid=true).
type Nullable[T any] struct {
	Set   bool
	Valid bool
	Value T
}

func Some[T any](v T) Nullable[T] { return Nullable[T]{Set: true, Valid: true, Value: v} }

func Null[T any]() Nullable[T] { return Nullable[T]{Set: true} }

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		var zero T
		n.Valid, n.Value = false, zero
		return nil
	}
	if err := json.Unmarshal(b, &n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func (n Nullable[T]) applyTo(dst **T) {
	if !n.Set {
		return
	}
	if !n.Valid {
		*dst = nil
		return
	}
	v := n.Value
	*dst = &v
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Patches are shallow merges: a nil pointer (or an unset Nullable) keeps the
// stored value, anything else replaces it. Nested values are replaced whole.

type UserPatch struct {
	Username     *string `json:"username"`
	DisplayName  *string `json:"displayName"`
	AvatarURL    *string `json:"avatarUrl"`
	Role         *string `json:"role"`
	PasswordHash *string `json:"-"`
}

func (p UserPatch) Apply(u *User) {
	set(&u.Username, p.Username)
	set(&u.DisplayName, p.DisplayName)
	set(&u.AvatarURL, p.AvatarURL)
	set(&u.Role, p.Role)
	set(&u.PasswordHash, p.PasswordHash)
}

type ConversationPatch struct {
	Title *string `json:"title"`
}

func (p ConversationPatch) Apply(c *Conversation) {
	set(&c.Title, p.Title)
}

type CategoryPatch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	ParentID    Nullable[uint64] `json:"parentId"`
	Order       *int             `json:"order"`
	Color       *string          `json:"color"`
	Icon        *string          `json:"icon"`
}

func (p CategoryPatch) Apply(c *Category) {
	set(&c.Name, p.Name)
	set(&c.Description, p.Description)
	p.ParentID.applyTo(&c.ParentID)
	set(&c.Order, p.Order)
	set(&c.Color, p.Color)
	set(&c.Icon, p.Icon)
}

type BookmarkPatch struct {
	Title       *string          `json:"title"`
	Content     *string          `json:"content"`
	Tags        *[]string        `json:"tags"`
	Category    *string          `json:"category"`
	CategoryID  Nullable[uint64] `json:"categoryId"`
	Notes       *string          `json:"notes"`
	ContentType *ContentType     `json:"contentType"`
	Starred     *bool            `json:"starred"`
	URL         *string          `json:"url"`
	IsTemplate  *bool            `json:"isTemplate"`

	// ExpectedVersion, when set, must equal the stored version.
	ExpectedVersion *int `json:"expectedVersion"`
}

func (p BookmarkPatch) Apply(b *Bookmark) {
	set(&b.Title, p.Title)
	set(&b.Content, p.Content)
	if p.Tags != nil {
		tags := make([]string, len(*p.Tags))
		copy(tags, *p.Tags)
		b.Tags = tags
	}
	set(&b.Category, p.Category)
	p.CategoryID.applyTo(&b.CategoryID)
	set(&b.Notes, p.Notes)
	set(&b.ContentType, p.ContentType)
	set(&b.Starred, p.Starred)
	set(&b.URL, p.URL)
	set(&b.IsTemplate, p.IsTemplate)
}

type SnippetPatch struct {
	Title    *string         `json:"title"`
	Code     *string         `json:"code"`
	Language *string         `json:"language"`
	Score    Nullable[int]   `json:"score"`
	Feedback *datatypes.JSON `json:"feedback"`
}

func (p SnippetPatch) Apply(s *CodeSnippet) {
	set(&s.Title, p.Title)
	set(&s.Code, p.Code)
	set(&s.Language, p.Language)
	p.Score.applyTo(&s.Score)
	if p.Feedback != nil {
		s.Feedback = append(datatypes.JSON(nil), (*p.Feedback)...)
	}
}

type GoalPatch struct {
	Title        *string          `json:"title"`
	Description  *string          `json:"description"`
	Category     *GoalCategory    `json:"category"`
	TargetValue  *int             `json:"targetValue"`
	CurrentValue *int             `json:"currentValue"`
	Deadline     Nullable[string] `json:"deadline"`
	Completed    *bool            `json:"completed"`
}

func (p GoalPatch) Apply(g *UserGoal) {
	set(&g.Title, p.Title)
	set(&g.Description, p.Description)
	set(&g.Category, p.Category)
	set(&g.TargetValue, p.TargetValue)
	set(&g.CurrentValue, p.CurrentValue)
	p.Deadline.applyTo(&g.Deadline)
	set(&g.Completed, p.Completed)
}
