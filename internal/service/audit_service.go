package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/BearPays/code-review-assistant-back/internal/pkg/logger"
	"github.com/BearPays/code-review-assistant-back/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/patrickmn/go-cache"
)

const (
	AuditTopic = "session_audit"

	AuditKindRequest  = "request"
	AuditKindResponse = "response"
	AuditKindError    = "error"

	defaultAuditQueue = 256
)

// AuditRecord is one line of a session's audit file.
type AuditRecord struct {
	SessionID   string    `json:"session_id"`
	ChangeSetID string    `json:"changeset_id"`
	Mode        string    `json:"mode"`
	Kind        string    `json:"kind"`
	Query       string    `json:"query,omitempty"`
	Answer      string    `json:"answer,omitempty"`
	Error       string    `json:"error,omitempty"`
	Steps       int       `json:"steps,omitempty"`
	ToolsUsed   []string  `json:"tools_used,omitempty"`
	DurationMs  int64     `json:"duration_ms,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type IAuditService interface {
	// Record never blocks; records are dropped when the queue is full.
	Record(rec AuditRecord)
	Consume(ctx context.Context) error
	Dropped() int64
}

type auditService struct {
	queue     chan AuditRecord
	pubSub    *gochannel.GoChannel
	topicName string
	dir       string
	publisher events.Publisher
	loggers   *cache.Cache
	logger    logger.ILogger
	dropped   atomic.Int64
}

func NewAuditService(pubSub *gochannel.GoChannel, dir string, publisher events.Publisher, log logger.ILogger) IAuditService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	loggers := cache.New(30*time.Minute, 10*time.Minute)
	// idle session files are closed, not just flushed
	loggers.OnEvicted(func(_ string, v interface{}) {
		if l, ok := v.(*logger.ZapLogger); ok {
			_ = l.Close()
		}
	})
	return &auditService{
		queue:     make(chan AuditRecord, defaultAuditQueue),
		pubSub:    pubSub,
		topicName: AuditTopic,
		dir:       dir,
		publisher: publisher,
		loggers:   loggers,
		logger:    log,
	}
}

func (s *auditService) Record(rec AuditRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	select {
	case s.queue <- rec:
	default:
		s.dropped.Add(1)
		s.logger.Warn("Audit", "Audit queue full, record dropped", map[string]interface{}{
			"session_id": rec.SessionID,
			"kind":       rec.Kind,
		})
	}
}

func (s *auditService) Dropped() int64 { return s.dropped.Load() }

// Consume subscribes before the forwarder starts so no record is published into an empty topic.
func (s *auditService) Consume(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, s.topicName)
	if err != nil {
		return err
	}

	go s.forward(ctx)
	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (s *auditService) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-s.queue:
			payload, err := json.Marshal(rec)
			if err != nil {
				s.logger.Error("Audit", "Failed to marshal record", map[string]interface{}{"error": err.Error()})
				continue
			}
			if err := s.pubSub.Publish(s.topicName, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
				s.logger.Error("Audit", "Failed to publish record", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

func (s *auditService) processMessage(ctx context.Context, msg *message.Message) {
	var rec AuditRecord
	if err := json.Unmarshal(msg.Payload, &rec); err != nil {
		s.logger.Error("Audit", "Failed to unmarshal record", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}

	details := map[string]interface{}{
		"session_id":   rec.SessionID,
		"changeset_id": rec.ChangeSetID,
		"mode":         rec.Mode,
		"timestamp":    rec.Timestamp.Format(time.RFC3339Nano),
	}
	if rec.Query != "" {
		details["query"] = rec.Query
	}
	if rec.Answer != "" {
		details["answer"] = rec.Answer
		details["steps"] = rec.Steps
		details["tools_used"] = rec.ToolsUsed
		details["duration_ms"] = rec.DurationMs
	}
	if rec.Error != "" {
		details["error"] = rec.Error
	}
	s.sessionLogger(rec.SessionID).Info("Session", rec.Kind, details)

	if rec.Kind == AuditKindResponse {
		ev := events.NewChangeSetEvent(events.TypeSessionTurn, rec.ChangeSetID, map[string]interface{}{
			"session_id":  rec.SessionID,
			"mode":        rec.Mode,
			"steps":       rec.Steps,
			"tools_used":  rec.ToolsUsed,
			"duration_ms": rec.DurationMs,
		})
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn("Audit", "Failed to publish session turn", map[string]interface{}{"error": err.Error()})
		}
	}

	msg.Ack()
}

func (s *auditService) sessionLogger(sessionID string) logger.ILogger {
	name := auditFileName(sessionID)
	if l, ok := s.loggers.Get(name); ok {
		s.loggers.SetDefault(name, l)
		return l.(*logger.ZapLogger)
	}
	l := logger.NewIsolatedLogger(filepath.Join(s.dir, name))
	s.loggers.SetDefault(name, l)
	return l
}

var safeSessionID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// auditFileName keeps client chosen ids from escaping the audit directory.
func auditFileName(sessionID string) string {
	if safeSessionID.MatchString(sessionID) {
		return sessionID + ".jsonl"
	}
	sum := sha1.Sum([]byte(sessionID))
	return hex.EncodeToString(sum[:]) + ".jsonl"
}
