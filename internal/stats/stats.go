// Package stats aggregates a user's activity log for the dashboard.
package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/devassist/internal/models"
	"github.com/suPer8Hu/devassist/internal/store"
)

var ErrInvalidTimeframe = errors.New("invalid timeframe")

type Timeframe string

const (
	All   Timeframe = "all"
	Day   Timeframe = "day"
	Week  Timeframe = "week"
	Month Timeframe = "month"
	Year  Timeframe = "year"
)

// ParseTimeframe accepts "", "all", "day", "week", "month" and "year"
// (case-insensitive). The empty string means all time.
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(strings.ToLower(strings.TrimSpace(s))); tf {
	case "", All:
		return All, nil
	case Day, Week, Month, Year:
		return tf, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrInvalidTimeframe)
	}
}

// Cutoff returns the earliest createdAt kept for tf. The zero time means no cutoff.
func Cutoff(tf Timeframe, now time.Time) time.Time {
	switch tf {
	case Day:
		return now.Add(-24 * time.Hour)
	case Week:
		return now.AddDate(0, 0, -7)
	case Month:
		return now.AddDate(0, -1, 0)
	case Year:
		return now.AddDate(-1, 0, 0)
	}
	return time.Time{}
}

type Stats struct {
	TotalActivities      int            `json:"totalActivities"`
	ActivitiesByType     map[string]int `json:"activitiesByType"`
	ActivitiesByLanguage map[string]int `json:"activitiesByLanguage"`
}

// Compute tallies logs created at or after the cutoff for tf.
func Compute(logs []models.ActivityLog, tf Timeframe, now time.Time) Stats {
	cutoff := Cutoff(tf, now)
	st := Stats{
		ActivitiesByType:     map[string]int{},
		ActivitiesByLanguage: map[string]int{},
	}
	for i := range logs {
		l := &logs[i]
		if !cutoff.IsZero() && l.CreatedAt.Before(cutoff) {
			continue
		}
		st.TotalActivities++
		if l.ActionType != "" {
			st.ActivitiesByType[string(l.ActionType)]++
		}
		if l.Language != nil && *l.Language != "" {
			st.ActivitiesByLanguage[*l.Language]++
		}
	}
	return st
}

type Service struct {
	activities store.Activities
	now        func() time.Time
}

func NewService(activities store.Activities) *Service {
	return &Service{activities: activities, now: time.Now}
}

// WithNow pins the reference time, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) ComputeStats(ctx context.Context, userID uint64, tf Timeframe) (Stats, error) {
	logs, err := s.activities.ListActivities(ctx, userID, store.ActivityFilter{})
	if err != nil {
		return Stats{}, err
	}
	return Compute(logs, tf, s.now()), nil
}

// RecentActivities returns up to limit logs inside tf, newest first.
// limit <= 0 returns all of them.
func (s *Service) RecentActivities(ctx context.Context, userID uint64, tf Timeframe, limit int) ([]models.ActivityLog, error) {
	return s.activities.ListActivities(ctx, userID, store.ActivityFilter{
		Since: Cutoff(tf, s.now()),
		Limit: limit,
	})
}

// Languages returns the per-language counts inside tf.
func (s *Service) Languages(ctx context.Context, userID uint64, tf Timeframe) (map[string]int, error) {
	st, err := s.ComputeStats(ctx, userID, tf)
	if err != nil {
		return nil, err
	}
	return st.ActivitiesByLanguage, nil
}
