package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/BearPays/code-review-assistant-back/internal/entity"
	"github.com/BearPays/code-review-assistant-back/internal/repository/contract"
	"github.com/BearPays/code-review-assistant-back/internal/repository/specification"
	"github.com/BearPays/code-review-assistant-back/internal/repository/unitofwork"
	"github.com/BearPays/code-review-assistant-back/pkg/embedding"
	"github.com/BearPays/code-review-assistant-back/pkg/events"
	"github.com/BearPays/code-review-assistant-back/pkg/prdata"
	"github.com/BearPays/code-review-assistant-back/pkg/rag/corpus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memDB backs a fake unit of work; writes land in pending until Commit.
type memDB struct {
	mu         sync.Mutex
	changeSets map[string]*entity.ChangeSet
	payloads   map[string]*entity.ChangeSetPayload
	chunks     []*entity.CorpusChunk
	commits    int
}

func newMemDB() *memDB {
	return &memDB{changeSets: map[string]*entity.ChangeSet{}, payloads: map[string]*entity.ChangeSetPayload{}}
}

func (db *memDB) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return &memUoW{db: db} }

type memUoW struct {
	db      *memDB
	pending []func()
	inTx    bool
}

func (u *memUoW) Begin(context.Context) error { u.inTx = true; return nil }

func (u *memUoW) Commit() error {
	if !u.inTx {
		return errors.New("no transaction")
	}
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	for _, op := range u.pending {
		op()
	}
	u.pending, u.inTx = nil, false
	u.db.commits++
	return nil
}

func (u *memUoW) Rollback() error {
	if !u.inTx {
		return errors.New("no transaction")
	}
	u.pending, u.inTx = nil, false
	return nil
}

func (u *memUoW) ChangeSetRepository() contract.ChangeSetRepository     { return &memChangeSets{u} }
func (u *memUoW) CorpusChunkRepository() contract.CorpusChunkRepository { return &memChunks{u} }

type memChangeSets struct{ u *memUoW }

func (r *memChangeSets) Upsert(_ context.Context, cs *entity.ChangeSet) error {
	r.u.pending = append(r.u.pending, func() { r.u.db.changeSets[cs.Id] = cs })
	return nil
}

func (r *memChangeSets) FindOne(context.Context, ...specification.Specification) (*entity.ChangeSet, error) {
	return nil, nil
}

func (r *memChangeSets) FindAll(context.Context, ...specification.Specification) ([]*entity.ChangeSet, error) {
	return nil, nil
}

func (r *memChangeSets) Delete(context.Context, string) error { return nil }

func (r *memChangeSets) UpsertPayload(_ context.Context, p *entity.ChangeSetPayload) error {
	r.u.pending = append(r.u.pending, func() { r.u.db.payloads[p.ChangeSetId] = p })
	return nil
}

func (r *memChangeSets) FindPayload(context.Context, string) (*entity.ChangeSetPayload, error) {
	return nil, nil
}

type memChunks struct{ u *memUoW }

func (r *memChunks) CreateBulk(_ context.Context, chunks []*entity.CorpusChunk) error {
	r.u.pending = append(r.u.pending, func() { r.u.db.chunks = append(r.u.db.chunks, chunks...) })
	return nil
}

func (r *memChunks) DeleteByCorpus(context.Context, string, string) error { return nil }

func (r *memChunks) DeleteByChangeSet(_ context.Context, id string) error {
	r.u.pending = append(r.u.pending, func() {
		kept := r.u.db.chunks[:0]
		for _, c := range r.u.db.chunks {
			if c.ChangeSetId != id {
				kept = append(kept, c)
			}
		}
		r.u.db.chunks = kept
	})
	return nil
}

func (r *memChunks) Count(_ context.Context, specs ...specification.Specification) (int64, error) {
	r.u.db.mu.Lock()
	defer r.u.db.mu.Unlock()
	var id string
	for _, s := range specs {
		if bc, ok := s.(specification.ByChangeSet); ok {
			id = bc.ChangeSetId
		}
	}
	var n int64
	for _, c := range r.u.db.chunks {
		if c.ChangeSetId == id {
			n++
		}
	}
	return n, nil
}

func (r *memChunks) FindAll(context.Context, ...specification.Specification) ([]*entity.CorpusChunk, error) {
	return r.u.db.chunks, nil
}

func (r *memChunks) SearchSimilarWithScore(context.Context, []float32, int, string, string) ([]*entity.ScoredCorpusChunk, error) {
	return nil, nil
}

func (r *memChunks) Stats(context.Context, string) ([]entity.CorpusStat, error) { return nil, nil }

type fakeEmbedder struct {
	mu    sync.Mutex
	texts []string
	fail  bool
}

func (f *fakeEmbedder) Generate(_ context.Context, text, taskType string) (*embedding.EmbeddingResponse, error) {
	if f.fail {
		return nil, errors.New("embedding backend down")
	}
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{1, 0, 0}}}, nil
}

func sampleRequest() IngestRequest {
	return IngestRequest{
		ChangeSetID: "pr-1",
		Title:       "Add login",
		Documents: []Document{
			{Kind: corpus.KindDiff, Path: "pr_metadata.json", Text: `{"pr_number": 1}`},
			{Kind: corpus.KindCode, Path: "auth/login.go", Text: "package auth\n\nconst password = \"hunter2hunter2\"\n"},
			{Kind: corpus.KindCode, Path: "config/.env", Text: "DB_PASSWORD=supersecret"},
			{Kind: corpus.KindRequirements, Path: "feature.md", Text: "Users can log in with email."},
		},
		Payload: []byte(`{"pr_number": 1}`),
	}
}

func TestIngestStoresRedactedChunks(t *testing.T) {
	db := newMemDB()
	emb := &fakeEmbedder{}
	pub := &memPublisher{}
	svc := NewIngestService(db, emb, pub, nil, 2)

	res, err := svc.Ingest(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Files)
	assert.Equal(t, []string{"config/.env"}, res.Skipped)
	assert.Equal(t, 1, res.Chunks[corpus.KindCode])
	assert.False(t, res.Reindexed)

	require.Len(t, db.chunks, 3)
	for _, c := range db.chunks {
		assert.Len(t, c.EmbeddingValue, 3)
		assert.NotContains(t, c.Document, "hunter2hunter2")
		if c.FilePath == "auth/login.go" {
			assert.Equal(t, "go", c.Language)
		}
	}
	assert.Contains(t, db.changeSets, "pr-1")
	assert.Contains(t, db.payloads, "pr-1")

	emb.mu.Lock()
	assert.True(t, strings.HasPrefix(emb.texts[0], "File: "))
	emb.mu.Unlock()

	require.Equal(t, 1, pub.count())
	assert.Equal(t, events.TypeChangeSetIngested, pub.events[0].EventType())
}

func TestIngestRefusesDuplicateUnlessForced(t *testing.T) {
	db := newMemDB()
	pub := &memPublisher{}
	svc := NewIngestService(db, &fakeEmbedder{}, pub, nil, 0)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, sampleRequest())
	require.NoError(t, err)

	_, err = svc.Ingest(ctx, sampleRequest())
	assert.ErrorIs(t, err, ErrAlreadyIngested)

	req := sampleRequest()
	req.Force = true
	req.Documents = req.Documents[:1]
	res, err := svc.Ingest(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Reindexed)
	assert.Len(t, db.chunks, 1, "old chunks replaced")

	require.Equal(t, 3, pub.count())
	assert.Equal(t, events.TypeChangeSetReindexed, pub.events[2].EventType())
}

func TestIngestEmbeddingFailureStoresNothing(t *testing.T) {
	db := newMemDB()
	svc := NewIngestService(db, &fakeEmbedder{fail: true}, nil, nil, 0)

	_, err := svc.Ingest(context.Background(), sampleRequest())
	assert.ErrorContains(t, err, "embedding backend down")
	assert.Empty(t, db.chunks)
	assert.Zero(t, db.commits)
}

func TestIngestValidation(t *testing.T) {
	svc := NewIngestService(newMemDB(), &fakeEmbedder{}, nil, nil, 0)

	_, err := svc.Ingest(context.Background(), IngestRequest{})
	assert.Error(t, err)

	_, err = svc.Ingest(context.Background(), IngestRequest{ChangeSetID: "x"})
	assert.ErrorIs(t, err, ErrNothingToIngest)
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("pr_data/pr.json", `{"pr_number": 3, "title": "t", "files": []}`)
	write("source_code/main.go", "package main")
	write("source_code/node_modules/lib/index.js", "module.exports = 1")
	write("source_code/logo.png", "binary")
	write("pr_feature/spec.md", "# Feature")
	write("notes/ignored.md", "not a corpus")

	docs, payload, err := LoadDirectory(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, payload)

	byPath := map[string]corpus.Kind{}
	for _, d := range docs {
		byPath[d.Path] = d.Kind
	}
	assert.Equal(t, corpus.KindCode, byPath["main.go"])
	assert.Equal(t, corpus.KindRequirements, byPath["spec.md"])
	assert.Equal(t, corpus.KindDiff, byPath["pr.json"])
	assert.NotContains(t, byPath, "node_modules/lib/index.js")
	assert.NotContains(t, byPath, "logo.png")
	assert.NotContains(t, byPath, "ignored.md")
}

func TestWriteSplitRejectsEscapingPaths(t *testing.T) {
	pr := &prdata.PullRequest{Number: 1, Files: []prdata.File{{Filename: "../../outside.go", Diff: "+x"}}}
	_, err := WriteSplit(pr, nil, t.TempDir())
	assert.ErrorContains(t, err, "refusing to write")
}
