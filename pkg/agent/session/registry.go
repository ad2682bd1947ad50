package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearPays/code-review-assistant-back/internal/pkg/logger"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/orchestrator"
	"github.com/BearPays/code-review-assistant-back/pkg/llm"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

var (
	ErrSessionBusy       = errors.New("session is busy with another turn")
	ErrChangeSetRequired = errors.New("changeset_id is required")
	ErrSessionNotFound   = errors.New("session not found")
)

// Orchestrator is the part of orchestrator.Orchestrator a session drives.
type Orchestrator interface {
	ChangeSetID() string
	Mode() orchestrator.Mode
	SetMode(orchestrator.Mode) error
	ToolNames() []string
	Turn(ctx context.Context, history []llm.Message, query string, opts ...orchestrator.TurnOption) (orchestrator.TurnResult, error)
}

// Factory builds the orchestrator for a change set.
type Factory func(ctx context.Context, changeSetID string, mode orchestrator.Mode) (Orchestrator, error)

// OrchestratorFactory adapts orchestrator.New.
func OrchestratorFactory(deps orchestrator.Deps) Factory {
	return func(ctx context.Context, changeSetID string, mode orchestrator.Mode) (Orchestrator, error) {
		return orchestrator.New(ctx, deps, changeSetID, mode)
	}
}

type Request struct {
	SessionID   string
	ChangeSetID string
	Mode        orchestrator.Mode
}

// TurnFunc runs one turn against the session's orchestrator. history is a private copy of
// the transcript; the returned messages are appended only when err is nil.
type TurnFunc func(ctx context.Context, orch Orchestrator, history []llm.Message) ([]llm.Message, error)

type Info struct {
	SessionID   string
	ChangeSetID string
	Mode        orchestrator.Mode
	Created     bool
	Turns       int
	Messages    int
	Tools       []string // only filled by Registry.Info
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type state struct {
	changeSetID string
	mode        orchestrator.Mode
	orch        Orchestrator
	transcript  []llm.Message
	turns       int
	createdAt   time.Time
	updatedAt   time.Time
}

type entry struct {
	lock    turnLock
	refs    atomic.Int32 // written under Registry.mu; read by the eviction callback
	state   *state       // written under Registry.mu while holding lock
	deleted bool
	live    atomic.Bool
}

type Option func(*Registry)

// WithTTL evicts sessions idle for longer than ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

func WithClearOnChangeSetSwitch(clear bool) Option {
	return func(r *Registry) { r.clearOnSwitch = clear }
}

func WithLogger(l logger.ILogger) Option {
	return func(r *Registry) { r.logger = l }
}

// Registry maps session ids to their orchestrator and transcript. Turns of one session
// run one at a time in arrival order; different sessions run in parallel.
type Registry struct {
	factory       Factory
	ttl           time.Duration
	clearOnSwitch bool
	logger        logger.ILogger

	mu      sync.Mutex
	entries *cache.Cache
	// inFlight holds entries with a turn running or queued. They are never idle, so a
	// cache expiry in the middle of a turn must not hand out a second entry for the id.
	inFlight map[string]*entry
}

func NewRegistry(factory Factory, opts ...Option) *Registry {
	r := &Registry{
		factory:       factory,
		clearOnSwitch: true,
		logger:        logger.NewNopLogger(),
		inFlight:      make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}

	expiration, cleanup := cache.NoExpiration, time.Duration(0)
	if r.ttl > 0 {
		expiration, cleanup = r.ttl, r.ttl/2
	}
	r.entries = cache.New(expiration, cleanup)
	r.entries.OnEvicted(func(id string, v interface{}) {
		if e, ok := v.(*entry); ok && e.live.Load() && e.refs.Load() == 0 {
			r.logger.Info("SessionRegistry", "Idle session evicted", map[string]interface{}{
				"session_id": id,
			})
		}
	})
	return r
}

// Do resolves or creates the session and runs fn while holding its turn lock.
func (r *Registry) Do(ctx context.Context, req Request, fn TurnFunc) (Info, error) {
	if req.ChangeSetID == "" {
		return Info{}, ErrChangeSetRequired
	}
	mode, err := orchestrator.ParseMode(string(req.Mode))
	if err != nil {
		return Info{}, err
	}
	id := req.SessionID
	if id == "" {
		id = uuid.NewString()
	}

	e := r.checkout(id)
	defer r.checkin(id, e)

	if err := e.lock.acquire(ctx); err != nil {
		return Info{SessionID: id}, fmt.Errorf("%w: %w", ErrSessionBusy, err)
	}
	defer e.lock.release()

	now := time.Now()
	cur := e.state
	var next state
	var undo func()

	switch {
	case cur == nil:
		orch, err := r.factory(ctx, req.ChangeSetID, mode)
		if err != nil {
			return Info{SessionID: id}, err
		}
		next = state{changeSetID: req.ChangeSetID, mode: mode, orch: orch, createdAt: now}
		r.logger.Info("SessionRegistry", "Session created", map[string]interface{}{
			"session_id":    id,
			"change_set_id": req.ChangeSetID,
			"mode":          mode,
		})

	case cur.changeSetID != req.ChangeSetID:
		orch, err := r.factory(ctx, req.ChangeSetID, mode)
		if err != nil {
			return Info{SessionID: id}, err
		}
		next = *cur
		next.changeSetID, next.mode, next.orch = req.ChangeSetID, mode, orch
		if r.clearOnSwitch {
			next.transcript = nil
		}
		r.logger.Info("SessionRegistry", "Session switched change set", map[string]interface{}{
			"session_id":         id,
			"from_change_set_id": cur.changeSetID,
			"to_change_set_id":   req.ChangeSetID,
			"transcript_cleared": r.clearOnSwitch,
		})

	default:
		next = *cur
		if cur.mode != mode {
			if err := cur.orch.SetMode(mode); err != nil {
				return Info{SessionID: id}, err
			}
			prev := cur.mode
			undo = func() { _ = cur.orch.SetMode(prev) }
			next.mode = mode
			r.logger.Debug("SessionRegistry", "Session switched mode", map[string]interface{}{
				"session_id": id,
				"from_mode":  prev,
				"to_mode":    mode,
			})
		}
	}

	added, err := fn(ctx, next.orch, slices.Clone(next.transcript))
	if err != nil {
		if undo != nil {
			undo()
		}
		return Info{SessionID: id, ChangeSetID: next.changeSetID, Mode: next.mode}, err
	}

	next.transcript = append(slices.Clone(next.transcript), added...)
	next.turns++
	next.updatedAt = now
	r.commit(id, e, &next)

	return Info{
		SessionID:   id,
		ChangeSetID: next.changeSetID,
		Mode:        next.mode,
		Created:     cur == nil,
		Turns:       next.turns,
		Messages:    len(next.transcript),
		CreatedAt:   next.createdAt,
		UpdatedAt:   next.updatedAt,
	}, nil
}

// lookup finds the entry for id. Callers hold r.mu.
func (r *Registry) lookup(id string) (*entry, bool) {
	if e, ok := r.inFlight[id]; ok {
		return e, true
	}
	if v, ok := r.entries.Get(id); ok {
		return v.(*entry), true
	}
	return nil, false
}

func (r *Registry) checkout(id string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.lookup(id)
	if !ok {
		e = &entry{}
	}
	e.refs.Add(1)
	r.inFlight[id] = e
	if !e.deleted {
		r.entries.SetDefault(id, e)
	}
	return e
}

// checkin restarts the idle clock once nobody is running or queued on the entry, and
// drops entries that never got a session.
func (r *Registry) checkin(id string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.refs.Add(-1) > 0 {
		return
	}
	if r.inFlight[id] == e {
		delete(r.inFlight, id)
	}
	if e.deleted {
		return
	}
	if e.state == nil {
		if v, ok := r.entries.Get(id); ok && v.(*entry) == e {
			r.entries.Delete(id)
		}
		return
	}
	r.entries.SetDefault(id, e)
}

func (r *Registry) commit(id string, e *entry, s *state) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.state = s
	if !e.deleted {
		e.live.Store(true)
		r.entries.SetDefault(id, e)
	}
}

// History returns a copy of the session transcript.
func (r *Registry) History(id string) ([]llm.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.lookup(id)
	if !ok || e.state == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return slices.Clone(e.state.transcript), nil
}

func (r *Registry) Info(id string) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.lookup(id)
	if !ok || e.state == nil {
		return Info{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s := e.state
	return Info{
		SessionID:   id,
		ChangeSetID: s.changeSetID,
		Mode:        s.mode,
		Turns:       s.turns,
		Messages:    len(s.transcript),
		Tools:       s.orch.ToolNames(),
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
	}, nil
}

// Delete ends a session. A turn already running finishes but is not kept.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.lookup(id)
	if !ok || e.deleted {
		return false
	}
	e.deleted = true
	e.live.Store(false)
	delete(r.inFlight, id)
	r.entries.Delete(id)
	return e.state != nil
}

// Len counts live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	items := r.entries.Items()
	for _, item := range items {
		if item.Object.(*entry).state != nil {
			n++
		}
	}
	for id, e := range r.inFlight {
		if _, cached := items[id]; !cached && e.state != nil {
			n++
		}
	}
	return n
}
