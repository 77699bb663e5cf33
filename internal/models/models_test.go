package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestProgress(t *testing.T) {
	cases := []struct {
		current, target, want int
	}{
		{65, 100, 65},
		{150, 100, 100},
		{1, 3, 33},
		{2, 3, 67},
		{5, 0, 0},
		{-5, 10, 0},
	}
	for _, tc := range cases {
		if got := Progress(tc.current, tc.target); got != tc.want {
			t.Fatalf("Progress(%d, %d) = %d, want %d", tc.current, tc.target, got, tc.want)
		}
	}
}

func TestNullable_Unmarshal(t *testing.T) {
	var p CategoryPatch

	if err := json.Unmarshal([]byte(`{"name":"x"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.ParentID.Set {
		t.Fatalf("absent field should not be set")
	}

	p = CategoryPatch{}
	if err := json.Unmarshal([]byte(`{"parentId":null}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !p.ParentID.Set || p.ParentID.Valid {
		t.Fatalf("null should be set and invalid: %+v", p.ParentID)
	}

	p = CategoryPatch{}
	if err := json.Unmarshal([]byte(`{"parentId":7}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !p.ParentID.Valid || p.ParentID.Value != 7 {
		t.Fatalf("value not decoded: %+v", p.ParentID)
	}
}

func TestBookmarkPatch_ShallowMerge(t *testing.T) {
	parent := uint64(3)
	b := Bookmark{Title: "t", Tags: []string{"a"}, CategoryID: &parent, Notes: "n"}

	var p BookmarkPatch
	if err := json.Unmarshal([]byte(`{"tags":["b","c"],"categoryId":null}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	p.Apply(&b)

	if b.Title != "t" || b.Notes != "n" {
		t.Fatalf("unset fields changed: %+v", b)
	}
	if len(b.Tags) != 2 || b.Tags[0] != "b" {
		t.Fatalf("tags not replaced: %v", b.Tags)
	}
	if b.CategoryID != nil {
		t.Fatalf("categoryId not cleared")
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	if JobQueued.Terminal() || JobRunning.Terminal() {
		t.Fatalf("queued/running are not terminal")
	}
	if !JobSucceeded.Terminal() || !JobFailed.Terminal() {
		t.Fatalf("succeeded/failed are terminal")
	}
}

func TestUserGoalJSONIncludesProgress(t *testing.T) {
	b, err := json.Marshal(UserGoal{ID: 3, Title: "t", TargetValue: 4, CurrentValue: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["progress"] != float64(25) || m["id"] != float64(3) || m["targetValue"] != float64(4) {
		t.Fatalf("unexpected goal json: %s", b)
	}
}

func TestNormalizeDeadline(t *testing.T) {
	cases := map[string]string{
		"2025-03-09":                "2025-03-09",
		" 2025-03-09 ":              "2025-03-09",
		"2025-03-09T10:00:00Z":      "2025-03-09T10:00:00Z",
		"2025-03-09T10:00:00+02:00": "2025-03-09T08:00:00Z",
		"2025-03-09T10:00:00.5Z":    "2025-03-09T10:00:00.5Z",
	}
	for in, want := range cases {
		got, err := NormalizeDeadline(&in)
		if err != nil || *got != want {
			t.Errorf("NormalizeDeadline(%q) = %v, %v; want %q", in, got, err, want)
		}
	}
	if got, err := NormalizeDeadline(nil); got != nil || err != nil {
		t.Fatalf("nil deadline: %v, %v", got, err)
	}
	for _, bad := range []string{"", "soon", "2025-02-30", "2025-03-09 10:00"} {
		if _, err := NormalizeDeadline(&bad); !errors.Is(err, ErrInvalidDeadline) {
			t.Errorf("%q: expected ErrInvalidDeadline, got %v", bad, err)
		}
	}

	g := UserGoal{Deadline: strPtr("garbage")}
	if _, ok := g.DeadlineTime(); ok {
		t.Fatalf("unparsable stored deadline must count as none")
	}
}

func strPtr(s string) *string { return &s }
