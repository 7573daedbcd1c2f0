package writeup

import (
	"strings"
	"time"

	"github.com/hitoshi/writeuptracker/internal/model"
)

const notAvailable = "N/A"

// RenderNotesMarkdown はノート付きwriteupを1件1ブロックのMarkdownに整形する。
// ブロック間は空行で区切る。
func RenderNotesMarkdown(items []model.WriteupWithRelations) string {
	blocks := make([]string, 0, len(items))
	for _, item := range items {
		blocks = append(blocks, renderNoteBlock(item))
	}
	return strings.Join(blocks, "\n\n")
}

func renderNoteBlock(item model.WriteupWithRelations) string {
	var b strings.Builder
	b.WriteString(item.Title)
	b.WriteString("[")
	b.WriteString(item.Link)
	b.WriteString("]\n")
	b.WriteString("Author: " + joinOrNA(item.Authors) + "\n")
	b.WriteString("Programs: " + joinOrNA(item.Programs) + "\n")
	b.WriteString("Bugs: " + joinOrNA(item.Bugs) + "\n")
	b.WriteString("Bounty: " + stringOrNA(item.Bounty) + "\n")
	b.WriteString("Published At: " + dateOrNA(item.PublishedAt) + "\n")
	b.WriteString("Added At: " + dateOrNA(item.AddedAt) + "\n")
	b.WriteString("\n")
	if item.Note != nil {
		b.WriteString(*item.Note)
	}
	b.WriteString("\n----")
	return b.String()
}

func joinOrNA(values []string) string {
	if len(values) == 0 {
		return notAvailable
	}
	return strings.Join(values, ", ")
}

func stringOrNA(s *string) string {
	if s == nil || *s == "" {
		return notAvailable
	}
	return *s
}

func dateOrNA(t *time.Time) string {
	if t == nil {
		return notAvailable
	}
	return t.UTC().Format("2006-01-02")
}

// ExportFilename はエクスポートファイル名を返す。
func ExportFilename(now time.Time) string {
	return "writeup-notes-" + now.Format("2006-01-02") + ".md"
}
