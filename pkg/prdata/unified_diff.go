package prdata

import (
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// FromUnifiedDiff builds a payload from a raw `git diff` / patch file.
func FromUnifiedDiff(raw string, number int, title, description string) (*PullRequest, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse unified diff: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("unified diff contains no files")
	}

	pr := &PullRequest{
		Number:      number,
		Title:       title,
		Description: description,
		Files:       make([]File, 0, len(files)),
	}
	for _, f := range files {
		pr.Files = append(pr.Files, fileFromDiff(f))
	}
	return pr, nil
}

func fileFromDiff(f *gitdiff.File) File {
	out := File{Filename: f.NewName, Status: "modified"}
	switch {
	case f.IsNew:
		out.Status = "added"
	case f.IsDelete:
		out.Status = "removed"
		out.Filename = f.OldName
	case f.IsRename:
		out.Status = "renamed"
	}

	if f.IsBinary {
		out.Diff = "Binary file changed"
		return out
	}

	var b strings.Builder
	for _, frag := range f.TextFragments {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@", frag.OldPosition, frag.OldLines, frag.NewPosition, frag.NewLines)
		if frag.Comment != "" {
			b.WriteString(" " + frag.Comment)
		}
		b.WriteString("\n")
		for _, line := range frag.Lines {
			switch line.Op {
			case gitdiff.OpAdd:
				out.Additions++
				b.WriteString("+")
			case gitdiff.OpDelete:
				out.Deletions++
				b.WriteString("-")
			default:
				b.WriteString(" ")
			}
			b.WriteString(line.Line)
			if !strings.HasSuffix(line.Line, "\n") {
				b.WriteString("\n")
			}
		}
	}
	out.Diff = b.String()
	return out
}
