package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var ErrPayloadUnavailable = errors.New("change set payload unavailable")

// PayloadStore returns the full structured payload (metadata + per-file diffs) of a change set.
type PayloadStore interface {
	Load(ctx context.Context, changeSetID string) (json.RawMessage, error)
}

type payloadLoader interface {
	LoadPayload(ctx context.Context, changeSetID string) (json.RawMessage, bool, error)
}

// DBPayloadStore reads payloads stored by the ingestion CLI.
type DBPayloadStore struct {
	loader payloadLoader
}

func NewDBPayloadStore(loader payloadLoader) *DBPayloadStore {
	return &DBPayloadStore{loader: loader}
}

func (s *DBPayloadStore) Load(ctx context.Context, changeSetID string) (json.RawMessage, error) {
	raw, ok, err := s.loader.LoadPayload(ctx, changeSetID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPayloadUnavailable, changeSetID, err)
	}
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("%w: no payload ingested for %s", ErrPayloadUnavailable, changeSetID)
	}
	return raw, nil
}

// FilePayloadStore reads <dir>/<changeset>/pr_data/pr.json.
type FilePayloadStore struct {
	dir string
}

func NewFilePayloadStore(dir string) *FilePayloadStore {
	return &FilePayloadStore{dir: dir}
}

func (s *FilePayloadStore) Path(changeSetID string) string {
	return filepath.Join(s.dir, changeSetID, "pr_data", "pr.json")
}

func (s *FilePayloadStore) Load(_ context.Context, changeSetID string) (json.RawMessage, error) {
	if changeSetID == "" || filepath.Base(changeSetID) != changeSetID {
		return nil, fmt.Errorf("%w: invalid change set id %q", ErrPayloadUnavailable, changeSetID)
	}

	raw, err := os.ReadFile(s.Path(changeSetID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: payload file not found at %s", ErrPayloadUnavailable, s.Path(changeSetID))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadUnavailable, err)
	}
	return raw, nil
}
