package models

import (
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

type JobKind string

const (
	JobOptimize JobKind = "optimize"
	JobScore    JobKind = "score"
)

// Job is an asynchronous optimize or score request.
type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	UserID uint64  `gorm:"index;not null" json:"userId"`
	Kind   JobKind `gorm:"type:varchar(16);not null" json:"kind"`

	Code      string  `gorm:"type:text;not null" json:"-"`
	Language  string  `gorm:"type:varchar(64);not null" json:"language"`
	SnippetID *uint64 `json:"snippetId,omitempty"`

	IdempotencyKey *string `gorm:"type:varchar(128);index" json:"-"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	Result datatypes.JSON `json:"result,omitempty"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}
