package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BearPays/code-review-assistant-back/internal/entity"
	"github.com/BearPays/code-review-assistant-back/internal/pkg/logger"
	"github.com/BearPays/code-review-assistant-back/internal/repository/specification"
	"github.com/BearPays/code-review-assistant-back/internal/repository/unitofwork"
	"github.com/BearPays/code-review-assistant-back/pkg/embedding"
	"github.com/BearPays/code-review-assistant-back/pkg/events"
	"github.com/BearPays/code-review-assistant-back/pkg/rag/corpus"
	"github.com/BearPays/code-review-assistant-back/pkg/redact"
	"github.com/BearPays/code-review-assistant-back/pkg/utils"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAlreadyIngested = errors.New("change set already ingested (use force to re-index)")
	ErrNothingToIngest = errors.New("nothing to ingest")
)

// Document is one source file destined for a corpus.
type Document struct {
	Kind corpus.Kind
	Path string // relative to the corpus folder
	Text string
}

type IngestRequest struct {
	ChangeSetID string
	Title       string
	Description string
	Documents   []Document
	Payload     json.RawMessage // full pr.json, optional
	Force       bool
}

type IngestResult struct {
	ChangeSetID string
	Files       int
	Chunks      map[corpus.Kind]int
	Skipped     []string // withheld by path policy
	Reindexed   bool
	Duration    time.Duration
}

type IIngestService interface {
	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)
	Stats(ctx context.Context, changeSetID string) ([]entity.CorpusStat, error)
}

type ingestService struct {
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	publisher         events.Publisher
	logger            logger.ILogger
	concurrency       int
	chunkSize         int
	chunkOverlap      int
	withheldPaths     []string
}

func NewIngestService(
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	publisher events.Publisher,
	log logger.ILogger,
	concurrency int,
) IIngestService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ingestService{
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		publisher:         publisher,
		logger:            log,
		concurrency:       concurrency,
		chunkSize:         utils.DefaultChunkSize,
		chunkOverlap:      utils.DefaultChunkOverlap,
		withheldPaths:     redact.DefaultPathPatterns,
	}
}

func (s *ingestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	start := time.Now()
	if req.ChangeSetID == "" {
		return nil, fmt.Errorf("change set id is required")
	}
	if len(req.Documents) == 0 && len(req.Payload) == 0 {
		return nil, ErrNothingToIngest
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	existing, err := uow.CorpusChunkRepository().Count(ctx, specification.ByChangeSet{ChangeSetId: req.ChangeSetID})
	if err != nil {
		return nil, fmt.Errorf("count existing chunks: %w", err)
	}
	if existing > 0 && !req.Force {
		return nil, fmt.Errorf("%w: %s has %d chunks", ErrAlreadyIngested, req.ChangeSetID, existing)
	}

	result := &IngestResult{ChangeSetID: req.ChangeSetID, Chunks: map[corpus.Kind]int{}, Reindexed: existing > 0}

	// 1. Split
	var chunks []*entity.CorpusChunk
	for _, doc := range req.Documents {
		if redact.MatchPath(doc.Path, s.withheldPaths) {
			result.Skipped = append(result.Skipped, doc.Path)
			continue
		}
		result.Files++

		language := utils.LanguageFor(doc.Path)
		var parts []string
		if language != "" {
			parts = utils.SplitCode(doc.Text, s.chunkSize, s.chunkOverlap)
		} else {
			parts = utils.SplitText(doc.Text, s.chunkSize, s.chunkOverlap)
		}
		for i, part := range parts {
			chunks = append(chunks, &entity.CorpusChunk{
				Id:          uuid.New(),
				ChangeSetId: req.ChangeSetID,
				Corpus:      string(doc.Kind),
				FilePath:    doc.Path,
				ChunkIndex:  i,
				Language:    language,
				Document:    redact.Secrets(part),
				CreatedAt:   time.Now(),
			})
			result.Chunks[doc.Kind]++
		}
	}

	s.logger.Info("IngestService", "Change set split into chunks", map[string]interface{}{
		"change_set_id": req.ChangeSetID,
		"files":         result.Files,
		"chunks":        len(chunks),
		"skipped":       len(result.Skipped),
	})

	// 2. Embed
	if err := s.embed(ctx, chunks); err != nil {
		return nil, err
	}

	// 3. Store
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.ChangeSetRepository().Upsert(ctx, &entity.ChangeSet{
		Id:          req.ChangeSetID,
		Title:       req.Title,
		Description: req.Description,
		CreatedAt:   time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("upsert change set: %w", err)
	}
	if len(req.Payload) > 0 {
		if err := uow.ChangeSetRepository().UpsertPayload(ctx, &entity.ChangeSetPayload{
			ChangeSetId: req.ChangeSetID,
			Payload:     req.Payload,
			UpdatedAt:   time.Now(),
		}); err != nil {
			return nil, fmt.Errorf("store payload: %w", err)
		}
	}
	if existing > 0 {
		if err := uow.CorpusChunkRepository().DeleteByChangeSet(ctx, req.ChangeSetID); err != nil {
			return nil, fmt.Errorf("delete old chunks: %w", err)
		}
	}
	if len(chunks) > 0 {
		if err := uow.CorpusChunkRepository().CreateBulk(ctx, chunks); err != nil {
			return nil, fmt.Errorf("store chunks: %w", err)
		}
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	result.Duration = time.Since(start)
	s.announce(ctx, result)
	return result, nil
}

func (s *ingestService) embed(ctx context.Context, chunks []*entity.CorpusChunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	var mu sync.Mutex
	done := 0
	for _, chunk := range chunks {
		g.Go(func() error {
			// The path helps retrieval match questions that name a file.
			text := fmt.Sprintf("File: %s\n\n%s", chunk.FilePath, chunk.Document)
			res, err := s.embeddingProvider.Generate(gctx, text, embedding.TaskRetrievalDocument)
			if err != nil {
				return fmt.Errorf("embed %s chunk %d: %w", chunk.FilePath, chunk.ChunkIndex, err)
			}
			chunk.EmbeddingValue = res.Embedding.Values

			mu.Lock()
			done++
			if done%50 == 0 {
				s.logger.Debug("IngestService", "Embedding progress", map[string]interface{}{
					"done":  done,
					"total": len(chunks),
				})
			}
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// announce publishes ingestion events. The bus is best effort.
func (s *ingestService) announce(ctx context.Context, result *IngestResult) {
	chunks := map[string]interface{}{}
	for k, n := range result.Chunks {
		chunks[string(k)] = n
	}
	evs := []events.Event{events.NewChangeSetEvent(events.TypeChangeSetIngested, result.ChangeSetID, map[string]interface{}{
		"files":  result.Files,
		"chunks": chunks,
	})}
	if result.Reindexed {
		evs = append(evs, events.NewChangeSetEvent(events.TypeChangeSetReindexed, result.ChangeSetID, nil))
	}

	for _, e := range evs {
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.logger.Warn("IngestService", "Failed to publish event", map[string]interface{}{
				"event": e.EventType(),
				"error": err.Error(),
			})
		}
	}

	s.logger.Info("IngestService", "Change set ingested", map[string]interface{}{
		"change_set_id": result.ChangeSetID,
		"files":         result.Files,
		"chunks":        chunks,
		"reindexed":     result.Reindexed,
		"duration_ms":   result.Duration.Milliseconds(),
	})
}

func (s *ingestService) Stats(ctx context.Context, changeSetID string) ([]entity.CorpusStat, error) {
	return s.uowFactory.NewUnitOfWork(ctx).CorpusChunkRepository().Stats(ctx, changeSetID)
}
