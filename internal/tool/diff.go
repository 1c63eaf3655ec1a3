package tool

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// buildDiffMetadata renders a line diff between two versions of a file and
// counts added and deleted lines, for the metadata attached to write and
// edit results.
func buildDiffMetadata(path, before, after, baseDir string) (string, int, int) {
	if before == after {
		return "", 0, 0
	}

	dmp := diffmatchpatch.New()
	a, b, lineIndex := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineIndex)

	var sb strings.Builder
	if rel := displayPath(path, baseDir); rel != "" {
		fmt.Fprintf(&sb, "--- %s\n+++ %s\n", rel, rel)
	}

	added, deleted := 0, 0
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
			added += lineCount(d.Text)
		case diffmatchpatch.DiffDelete:
			prefix = "-"
			deleted += lineCount(d.Text)
		default:
			continue
		}
		for _, line := range splitLines(d.Text) {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	if added == 0 && deleted == 0 {
		return "", 0, 0
	}
	return sb.String(), added, deleted
}

func displayPath(path, baseDir string) string {
	if path == "" {
		return ""
	}
	if baseDir == "" {
		return path
	}
	if rel, err := filepath.Rel(baseDir, path); err == nil {
		return rel
	}
	return path
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

func lineCount(text string) int {
	return len(splitLines(text))
}
