// Package export renders bookmarks and the dashboard as downloadable files.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/suPer8Hu/devassist/internal/models"
	"github.com/suPer8Hu/devassist/internal/stats"
	"github.com/suPer8Hu/devassist/internal/store"
)

type Format string

const (
	JSON     Format = "json"
	Markdown Format = "markdown"
	HTML     Format = "html"
)

// ParseFormat defaults to JSON. Unknown names fail with store.ErrInvalid.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return JSON, nil
	case JSON, Markdown, HTML:
		return f, nil
	default:
		return "", fmt.Errorf("export format %q: %w", s, store.ErrInvalid)
	}
}

func (f Format) ContentType() string {
	switch f {
	case Markdown:
		return "text/markdown; charset=utf-8"
	case HTML:
		return "text/html; charset=utf-8"
	}
	return "application/json"
}

func (f Format) Ext() string {
	if f == Markdown {
		return "md"
	}
	return string(f)
}

// Bookmarks renders bs in format f.
func Bookmarks(bs []models.Bookmark, f Format) ([]byte, error) {
	switch f {
	case JSON:
		return json.MarshalIndent(bs, "", "  ")
	case Markdown:
		return bookmarksMarkdown(bs), nil
	case HTML:
		var buf bytes.Buffer
		if err := bookmarksHTML.Execute(&buf, bs); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("export format %q: %w", f, store.ErrInvalid)
}

func bookmarksMarkdown(bs []models.Bookmark) []byte {
	var b strings.Builder
	b.WriteString("# Bookmarks\n")
	for _, bm := range bs {
		fmt.Fprintf(&b, "\n## %s\n\n", bm.Title)
		fmt.Fprintf(&b, "- Category: %s\n", bm.Category)
		if len(bm.Tags) > 0 {
			fmt.Fprintf(&b, "- Tags: %s\n", strings.Join(bm.Tags, ", "))
		}
		if bm.Starred {
			b.WriteString("- Starred\n")
		}
		if bm.URL != "" {
			fmt.Fprintf(&b, "- URL: <%s>\n", bm.URL)
		}
		fmt.Fprintf(&b, "- Created: %s\n\n", bm.CreatedAt.UTC().Format(time.RFC3339))
		b.WriteString(strings.TrimRight(bm.Content, "\n"))
		b.WriteString("\n")
		if bm.Notes != "" {
			b.WriteString("\n")
			for _, line := range strings.Split(strings.TrimRight(bm.Notes, "\n"), "\n") {
				fmt.Fprintf(&b, "> %s\n", line)
			}
		}
	}
	return []byte(b.String())
}

var bookmarksHTML = template.Must(template.New("bookmarks").Funcs(template.FuncMap{
	"join": strings.Join,
	"date": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Bookmarks</title></head>
<body>
<h1>Bookmarks</h1>
{{- range .}}
<article>
<h2>{{.Title}}</h2>
<p>Category: {{.Category}}{{if .Tags}} | Tags: {{join .Tags ", "}}{{end}}{{if .Starred}} | Starred{{end}}</p>
{{- if .URL}}
<p><a href="{{.URL}}">{{.URL}}</a></p>
{{- end}}
{{- if eq .ContentType "code"}}
<pre><code>{{.Content}}</code></pre>
{{- else}}
<div>{{.Content}}</div>
{{- end}}
{{- if .Notes}}
<blockquote>{{.Notes}}</blockquote>
{{- end}}
<p><small>{{date .CreatedAt}}</small></p>
</article>
{{- end}}
</body>
</html>
`))

// Dashboard is the downloadable dashboard snapshot.
type Dashboard struct {
	ID         string               `json:"id"`
	ExportedAt time.Time            `json:"exportedAt"`
	Timeframe  stats.Timeframe      `json:"timeframe"`
	Stats      stats.Stats          `json:"stats"`
	Goals      []models.UserGoal    `json:"goals"`
	Activities []models.ActivityLog `json:"activities"`
}

func NewDashboard(tf stats.Timeframe, st stats.Stats, goals []models.UserGoal, acts []models.ActivityLog, now time.Time) Dashboard {
	if goals == nil {
		goals = []models.UserGoal{}
	}
	if acts == nil {
		acts = []models.ActivityLog{}
	}
	return Dashboard{
		ID:         uuid.NewString(),
		ExportedAt: now.UTC(),
		Timeframe:  tf,
		Stats:      st,
		Goals:      goals,
		Activities: acts,
	}
}

func (d Dashboard) Filename() string {
	return fmt.Sprintf("dashboard-export-%s.json", d.ExportedAt.Format("2006-01-02"))
}

func BookmarksFilename(f Format, now time.Time) string {
	return fmt.Sprintf("bookmarks-%s.%s", now.UTC().Format("2006-01-02"), f.Ext())
}
