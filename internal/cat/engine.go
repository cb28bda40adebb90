// Package cat runs computerized adaptive test sessions: it assigns each
// examinee a shuffled item pool, picks the most informative next item and
// re-estimates ability after every answer.
package cat

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/adaptest/internal/irt"
	"github.com/pavelanni/adaptest/internal/model"
)

// Engine implements session creation, item selection and answer submission
// on top of a Registry. It is safe for concurrent use.
type Engine struct {
	cfg      model.CATConfig
	grid     irt.Grid
	prior    irt.Prior
	registry Registry
	recorder Recorder

	rngMu sync.Mutex
	rng   *rand.Rand

	now func() time.Time
}

// New creates an Engine. A nil registry, recorder or rng is replaced by an
// in-memory registry, a NopRecorder and a randomly seeded source.
func New(cfg model.CATConfig, registry Registry, recorder Recorder, rng *rand.Rand) *Engine {
	if registry == nil {
		registry = NewMemoryRegistry()
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.PriorSD <= 0 {
		cfg.PriorSD = 1
	}
	return &Engine{
		cfg:      cfg,
		grid:     irt.Grid{Min: cfg.GridMin, Max: cfg.GridMax, Size: cfg.GridSize},
		prior:    irt.Prior{Mean: cfg.InitialTheta, SD: cfg.PriorSD},
		registry: registry,
		recorder: recorder,
		rng:      rng,
		now:      time.Now,
	}
}

// NewSeeded returns a deterministic source for New.
func NewSeeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Config returns the engine configuration.
func (e *Engine) Config() model.CATConfig {
	return e.cfg
}

// CreateSession returns the session for userID, building it from bank if the
// user has none. An existing session is returned unchanged, whatever bank
// is passed.
func (e *Engine) CreateSession(userID string, bank []model.Item) (model.SessionSnapshot, error) {
	sess, created, err := e.registry.GetOrCreate(userID, func() (*Session, error) {
		return e.buildSession(userID, bank)
	})
	if err != nil {
		return model.SessionSnapshot{}, err
	}
	snap := sess.Snapshot()
	if created {
		slog.Info("created session", "user_id", userID, "pool", snap.PoolSize, "max_questions", snap.MaxQuestions)
	}
	return snap, nil
}

func (e *Engine) buildSession(userID string, bank []model.Item) (*Session, error) {
	pool := make([]model.Item, 0, len(bank))
	for _, it := range bank {
		if Qualifies(it, e.cfg.RequireAllOptions) {
			pool = append(pool, it)
		}
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("create session for %q: %w", userID, ErrEmptyItemBank)
	}
	if skipped := len(bank) - len(pool); skipped > 0 {
		slog.Debug("excluded unqualified items", "user_id", userID, "count", skipped)
	}

	// Parameter rows are derived from the shuffled items, so one
	// permutation covers both.
	e.rngMu.Lock()
	e.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	e.rngMu.Unlock()

	if e.cfg.MaxQuestions > 0 && e.cfg.MaxQuestions < len(pool) {
		pool = pool[:e.cfg.MaxQuestions]
	}
	return newSession(userID, pool, e.prior.Mean, e.prior.SD, e.now()), nil
}

// NextItem returns the most informative unanswered item for userID. ok is
// false once the session is completed. Repeated calls without a submission
// return the same item.
func (e *Engine) NextItem(userID string) (item model.Item, ok bool, err error) {
	sess, found := e.registry.Get(userID)
	if !found {
		return model.Item{}, false, ErrSessionNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.completed {
		return model.Item{}, false, nil
	}
	idx, ok := irt.SelectNext(sess.params, sess.theta, sess.asked)
	if !ok {
		return model.Item{}, false, nil
	}
	return sess.items[idx], true, nil
}

// SubmitAnswer scores selected against itemID's key, appends the outcome and
// re-estimates theta from the full history. The answer is then passed to the
// Recorder outside the session lock; a recording failure is logged and
// reported as Recorded=false without undoing the update.
func (e *Engine) SubmitAnswer(ctx context.Context, userID, itemID, selected string) (model.AnswerResult, error) {
	sess, found := e.registry.Get(userID)
	if !found {
		return model.AnswerResult{}, ErrSessionNotFound
	}

	ev, res, err := e.apply(sess, itemID, selected)
	if err != nil {
		return model.AnswerResult{}, err
	}

	if err := e.recorder.RecordAnswer(ctx, ev); err != nil {
		slog.Error("failed to record answer", "user_id", userID, "item_id", itemID, "seq", ev.Seq, "error", err)
	} else {
		res.Recorded = true
	}
	return res, nil
}

func (e *Engine) apply(sess *Session, itemID, selected string) (model.AnswerEvent, model.AnswerResult, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	idx, ok := sess.index[itemID]
	if !ok {
		return model.AnswerEvent{}, model.AnswerResult{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	if sess.completed {
		return model.AnswerEvent{}, model.AnswerResult{}, ErrSessionCompleted
	}
	if sess.asked[idx] {
		return model.AnswerEvent{}, model.AnswerResult{}, fmt.Errorf("%w: %s", ErrAlreadyAnswered, itemID)
	}

	item := sess.items[idx]
	correct := isCorrect(item, selected)
	outcome := 0
	if correct {
		outcome = 1
	}
	sess.administered = append(sess.administered, itemID)
	sess.order = append(sess.order, idx)
	sess.outcomes = append(sess.outcomes, outcome)
	sess.asked[idx] = true

	est := irt.Posterior(sess.params, sess.order, sess.outcomes, e.grid, e.prior)
	if !math.IsNaN(est.Theta) && !math.IsInf(est.Theta, 0) {
		sess.theta, sess.se = est.Theta, est.SE
	}
	if len(sess.administered) == sess.maxQuestions {
		sess.completed = true
	}
	now := e.now()
	sess.updatedAt = now

	ev := model.AnswerEvent{
		ID:             uuid.NewString(),
		UserID:         sess.userID,
		ItemID:         itemID,
		SelectedOption: selected,
		Correct:        correct,
		Seq:            len(sess.administered),
		Theta:          sess.theta,
		CreatedAt:      now,
	}
	res := model.AnswerResult{
		Correct:   correct,
		Theta:     sess.theta,
		SE:        sess.se,
		Remaining: sess.remaining(),
		Completed: sess.completed,
	}
	if sess.completed {
		slog.Info("session completed", "user_id", sess.userID, "theta", sess.theta, "se", sess.se)
	}
	return ev, res, nil
}

// Snapshot returns the current state of userID's session.
func (e *Engine) Snapshot(userID string) (model.SessionSnapshot, error) {
	sess, ok := e.registry.Get(userID)
	if !ok {
		return model.SessionSnapshot{}, ErrSessionNotFound
	}
	return sess.Snapshot(), nil
}

// EndSession evicts userID's session so that the next CreateSession starts a
// new attempt.
func (e *Engine) EndSession(userID string) error {
	if !e.registry.Delete(userID) {
		return ErrSessionNotFound
	}
	slog.Info("evicted session", "user_id", userID)
	return nil
}

// EvictIdle evicts sessions idle for longer than ttl.
func (e *Engine) EvictIdle(ttl time.Duration) int {
	n := e.registry.EvictIdle(e.now().Add(-ttl))
	if n > 0 {
		slog.Info("evicted idle sessions", "count", n, "ttl", ttl)
	}
	return n
}

// ActiveSessions returns the number of sessions held by the registry.
func (e *Engine) ActiveSessions() int {
	return e.registry.Len()
}
