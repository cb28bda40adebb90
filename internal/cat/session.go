package cat

import (
	"math"
	"sync"
	"time"

	"github.com/pavelanni/adaptest/internal/bank"
	"github.com/pavelanni/adaptest/internal/model"
)

// Session is one examinee's attempt. All fields are guarded by mu; params
// row i always describes items[i].
type Session struct {
	mu sync.Mutex

	userID       string
	items        []model.Item
	params       []model.ItemParams
	index        map[string]int
	administered []string
	order        []int
	asked        map[int]bool
	outcomes     []int
	theta        float64
	se           float64
	maxQuestions int
	completed    bool
	startedAt    time.Time
	updatedAt    time.Time
}

func newSession(userID string, items []model.Item, theta, se float64, now time.Time) *Session {
	s := &Session{
		userID:       userID,
		items:        items,
		params:       make([]model.ItemParams, len(items)),
		index:        make(map[string]int, len(items)),
		asked:        make(map[int]bool, len(items)),
		theta:        theta,
		se:           se,
		maxQuestions: len(items),
		startedAt:    now,
		updatedAt:    now,
	}
	for i, it := range items {
		s.params[i] = it.Params()
		s.index[it.ID] = i
	}
	return s
}

// Qualifies reports whether an item can be administered: a non-empty option
// set using known labels, a correct option that is one of them, finite
// parameters and a guessing parameter in [0, 1). With requireAll every label
// in model.OptionLabels must be present.
func Qualifies(it model.Item, requireAll bool) bool {
	if it.ID == "" || len(it.Options) == 0 {
		return false
	}
	for label := range it.Options {
		if !model.IsOptionLabel(label) {
			return false
		}
	}
	if requireAll && len(it.Options) != len(model.OptionLabels) {
		return false
	}
	if _, ok := it.Options[it.CorrectOption]; !ok {
		return false
	}
	for _, v := range []float64{it.A, it.B, it.C} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return it.C >= 0 && it.C < 1
}

func (s *Session) remaining() int {
	return s.maxQuestions - len(s.administered)
}

func (s *Session) status() model.SessionStatus {
	if s.completed {
		return model.StatusCompleted
	}
	return model.StatusInProgress
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() model.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() model.SessionSnapshot {
	return model.SessionSnapshot{
		UserID:       s.userID,
		Status:       s.status(),
		Theta:        s.theta,
		SE:           s.se,
		Administered: append([]string{}, s.administered...),
		Outcomes:     append([]int{}, s.outcomes...),
		PoolSize:     len(s.items),
		MaxQuestions: s.maxQuestions,
		Remaining:    s.remaining(),
		Completed:    s.completed,
		StartedAt:    s.startedAt,
		UpdatedAt:    s.updatedAt,
	}
}

func (s *Session) lastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// isCorrect compares a submitted option with the key, ignoring case and
// surrounding whitespace.
func isCorrect(it model.Item, selected string) bool {
	return bank.NormalizeOption(selected) == it.CorrectOption
}
