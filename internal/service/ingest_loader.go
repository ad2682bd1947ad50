package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BearPays/code-review-assistant-back/pkg/prdata"
	"github.com/BearPays/code-review-assistant-back/pkg/rag/corpus"
	"github.com/BearPays/code-review-assistant-back/pkg/utils"
)

// PayloadFile is where a change set directory keeps its full pull request record.
const PayloadFile = "pr.json"

// LoadDirectory reads a change set directory laid out as
// <dir>/{pr_data,source_code,pr_feature}/... and returns its documents and pr.json, if any.
func LoadDirectory(dir string) ([]Document, json.RawMessage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read change set directory: %w", err)
	}

	var docs []Document
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		kind, ok := corpus.KindForFolder(entry.Name())
		if !ok {
			continue
		}
		root := filepath.Join(dir, entry.Name())
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && utils.ExcludedDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !utils.Indexable(path) {
				return nil
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			docs = append(docs, Document{Kind: kind, Path: filepath.ToSlash(rel), Text: string(content)})
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	payload, err := os.ReadFile(filepath.Join(dir, corpus.KindDiff.Folder(), PayloadFile))
	if errors.Is(err, fs.ErrNotExist) {
		return docs, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read payload: %w", err)
	}
	return docs, payload, nil
}

// PullRequestDocuments turns a pull request into diff corpus documents laid out the way
// the split command writes them: pr_metadata.json plus one record per modified file.
func PullRequestDocuments(pr *prdata.PullRequest) ([]Document, error) {
	meta, records, err := pr.Split()
	if err != nil {
		return nil, err
	}

	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, err
	}
	docs := []Document{{Kind: corpus.KindDiff, Path: "pr_metadata.json", Text: string(raw)}}

	for _, rec := range records {
		raw, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{
			Kind: corpus.KindDiff,
			Path: "modified_files/" + rec.Filename + ".json",
			Text: string(raw),
		})
	}
	return docs, nil
}

// WriteSplit writes the split form of pr under <dir>/pr_data, next to a copy of the original
// record, and returns the number of files written.
func WriteSplit(pr *prdata.PullRequest, raw []byte, dir string) (int, error) {
	docs, err := PullRequestDocuments(pr)
	if err != nil {
		return 0, err
	}
	root := filepath.Join(dir, corpus.KindDiff.Folder())
	if len(raw) > 0 {
		docs = append(docs, Document{Kind: corpus.KindDiff, Path: PayloadFile, Text: string(raw)})
	}

	for _, doc := range docs {
		if !filepath.IsLocal(doc.Path) {
			return 0, fmt.Errorf("refusing to write outside %s: %q", root, doc.Path)
		}
		target := filepath.Join(root, filepath.FromSlash(doc.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return 0, err
		}
		if err := os.WriteFile(target, []byte(doc.Text), 0o644); err != nil {
			return 0, err
		}
	}
	return len(docs), nil
}
