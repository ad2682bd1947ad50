// Package prdata models the pull request payload produced by the export scripts
// (pr.json) and the per-file records split out of it for ingestion.
package prdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type PullRequest struct {
	Number      int             `json:"pr_number"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	State       string          `json:"state,omitempty"`
	CreatedAt   string          `json:"created_at,omitempty"`
	UpdatedAt   string          `json:"updated_at,omitempty"`
	Author      json.RawMessage `json:"author,omitempty"`
	Comments    json.RawMessage `json:"comments,omitempty"`
	Reviews     json.RawMessage `json:"reviews,omitempty"`
	Files       []File          `json:"files"`
}

type File struct {
	Filename   string          `json:"filename"`
	Status     string          `json:"status"`
	Additions  int             `json:"additions"`
	Deletions  int             `json:"deletions"`
	DiffChunks json.RawMessage `json:"diff_chunks,omitempty"`
	Diff       string          `json:"full_diff"`
}

// UnmarshalJSON accepts both payload generations: flat status/additions/deletions with a
// "diff" field, and the newer "summary" object with "full_diff".
func (f *File) UnmarshalJSON(data []byte) error {
	var raw struct {
		Filename  string `json:"filename"`
		Status    string `json:"status"`
		Additions int    `json:"additions"`
		Deletions int    `json:"deletions"`
		Summary   *struct {
			Status    string `json:"status"`
			Additions *int   `json:"additions"`
			Deletions *int   `json:"deletions"`
		} `json:"summary"`
		DiffChunks json.RawMessage `json:"diff_chunks"`
		FullDiff   string          `json:"full_diff"`
		Diff       string          `json:"diff"`
		Patch      string          `json:"patch"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*f = File{
		Filename:   raw.Filename,
		Status:     raw.Status,
		Additions:  raw.Additions,
		Deletions:  raw.Deletions,
		DiffChunks: raw.DiffChunks,
		Diff:       firstNonEmpty(raw.FullDiff, raw.Diff, raw.Patch),
	}
	if s := raw.Summary; s != nil {
		if s.Status != "" {
			f.Status = s.Status
		}
		if s.Additions != nil {
			f.Additions = *s.Additions
		}
		if s.Deletions != nil {
			f.Deletions = *s.Deletions
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func Parse(raw []byte) (*PullRequest, error) {
	var pr PullRequest
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, fmt.Errorf("invalid pull request payload: %w", err)
	}
	return &pr, nil
}

// Manifest lists every changed file, one per line, so a reviewer can check coverage.
func (pr *PullRequest) Manifest() string {
	if len(pr.Files) == 0 {
		return "(no changed files)"
	}
	var b strings.Builder
	for _, f := range pr.Files {
		fmt.Fprintf(&b, "- %s (%s, +%d/-%d)\n", f.Filename, orUnknown(f.Status), f.Additions, f.Deletions)
	}
	return strings.TrimRight(b.String(), "\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "modified"
	}
	return s
}

type FileSummary struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// Metadata is the PR level record (pr_metadata.json).
type Metadata struct {
	Number        int             `json:"pr_number"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	State         string          `json:"state,omitempty"`
	CreatedAt     string          `json:"created_at,omitempty"`
	UpdatedAt     string          `json:"updated_at,omitempty"`
	Author        json.RawMessage `json:"author,omitempty"`
	Comments      json.RawMessage `json:"comments,omitempty"`
	Reviews       json.RawMessage `json:"reviews,omitempty"`
	FileSummaries []FileSummary   `json:"file_summaries"`
}

// FileRecord is one modified file (modified_files/<path>.json).
type FileRecord struct {
	Filename     string          `json:"filename"`
	Status       string          `json:"status"`
	Additions    int             `json:"additions"`
	Deletions    int             `json:"deletions"`
	TotalChanges int             `json:"total_changes"`
	DiffChunks   json.RawMessage `json:"diff_chunks,omitempty"`
	FullDiff     string          `json:"full_diff"`
}

var ErrMissingNumber = errors.New("pull request payload must contain a 'pr_number' field")

// Split separates the PR metadata from the per-file diff records.
func (pr *PullRequest) Split() (Metadata, []FileRecord, error) {
	if pr.Number == 0 {
		return Metadata{}, nil, ErrMissingNumber
	}

	meta := Metadata{
		Number:        pr.Number,
		Title:         pr.Title,
		Description:   pr.Description,
		State:         pr.State,
		CreatedAt:     pr.CreatedAt,
		UpdatedAt:     pr.UpdatedAt,
		Author:        pr.Author,
		Comments:      pr.Comments,
		Reviews:       pr.Reviews,
		FileSummaries: make([]FileSummary, 0, len(pr.Files)),
	}

	records := make([]FileRecord, 0, len(pr.Files))
	for _, f := range pr.Files {
		meta.FileSummaries = append(meta.FileSummaries, FileSummary{
			Filename:  f.Filename,
			Status:    f.Status,
			Additions: f.Additions,
			Deletions: f.Deletions,
		})
		if f.Filename == "" {
			continue
		}
		records = append(records, FileRecord{
			Filename:     f.Filename,
			Status:       f.Status,
			Additions:    f.Additions,
			Deletions:    f.Deletions,
			TotalChanges: f.Additions + f.Deletions,
			DiffChunks:   f.DiffChunks,
			FullDiff:     f.Diff,
		})
	}
	return meta, records, nil
}
