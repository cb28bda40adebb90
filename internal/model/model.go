package model

import "time"

// OptionLabels is the fixed label alphabet for multiple-choice alternatives.
var OptionLabels = []string{"A", "B", "C", "D"}

// IsOptionLabel reports whether s is one of OptionLabels.
func IsOptionLabel(s string) bool {
	for _, l := range OptionLabels {
		if s == l {
			return true
		}
	}
	return false
}

// Default calibration parameters used when the item bank leaves them unset.
const (
	DefaultDiscrimination = 1.0
	DefaultDifficulty     = 0.0
	DefaultGuessing       = 0.25
)

// Item is a calibrated multiple-choice item. Items are never mutated once built.
type Item struct {
	ID            string            `json:"id"`
	Stem          string            `json:"stem"`
	Options       map[string]string `json:"options"`
	CorrectOption string            `json:"-"`
	A             float64           `json:"-"`
	B             float64           `json:"-"`
	C             float64           `json:"-"`
}

// Params returns the item's 3PL parameter triple.
func (it Item) Params() ItemParams {
	return ItemParams{A: it.A, B: it.B, C: it.C}
}

// ItemParams holds the discrimination (A), difficulty (B) and
// pseudo-guessing (C) parameters of the 3PL model.
type ItemParams struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
}

// SessionStatus represents the status of an adaptive test session.
type SessionStatus string

const (
	StatusNotStarted SessionStatus = "not_started"
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
)

// SessionSnapshot is a read-only copy of a session's state.
type SessionSnapshot struct {
	UserID       string        `json:"user_id"`
	Status       SessionStatus `json:"status"`
	Theta        float64       `json:"theta"`
	SE           float64       `json:"se"`
	Administered []string      `json:"administered"`
	Outcomes     []int         `json:"outcomes"`
	PoolSize     int           `json:"pool_size"`
	MaxQuestions int           `json:"max_questions"`
	Remaining    int           `json:"remaining"`
	Completed    bool          `json:"completed"`
	StartedAt    time.Time     `json:"started_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// AnswerResult is returned after an answer has been applied to a session.
type AnswerResult struct {
	Correct   bool    `json:"correct"`
	Theta     float64 `json:"theta"`
	SE        float64 `json:"se"`
	Remaining int     `json:"remaining"`
	Completed bool    `json:"completed"`
	Recorded  bool    `json:"recorded"`
}

// AnswerEvent is the durable record of a single submitted answer.
type AnswerEvent struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ItemID         string    `json:"question_id"`
	SelectedOption string    `json:"selected_option"`
	Correct        bool      `json:"correct"`
	Seq            int       `json:"seq"`
	Theta          float64   `json:"theta"`
	CreatedAt      time.Time `json:"created_at"`
}

// CATConfig holds runtime parameters for the adaptive engine.
type CATConfig struct {
	MaxQuestions      int // 0 means all qualifying items
	InitialTheta      float64
	PriorSD           float64
	GridMin           float64
	GridMax           float64
	GridSize          int
	RequireAllOptions bool // every label in OptionLabels must be present
}

// DefaultCATConfig returns the engine defaults.
func DefaultCATConfig() CATConfig {
	return CATConfig{
		MaxQuestions:      10,
		InitialTheta:      0.0,
		PriorSD:           1.0,
		GridMin:           -4.0,
		GridMax:           4.0,
		GridSize:          161,
		RequireAllOptions: true,
	}
}

// QuestionRow is a raw item-bank row as supplied by the store.
// Nil parameters fall back to the Default* constants.
type QuestionRow struct {
	ID   string   `json:"id"`
	Stem string   `json:"question"`
	A    *float64 `json:"level_a,omitempty"`
	B    *float64 `json:"level_b,omitempty"`
	C    *float64 `json:"level_c,omitempty"`
}

// AlternativeRow is a raw answer alternative keyed by question id.
type AlternativeRow struct {
	QuestionID string `json:"question_id"`
	Option     string `json:"option"`
	Answer     string `json:"answer"`
	Correct    bool   `json:"correct"`
}

// ItemImport is used for loading items from JSON.
type ItemImport struct {
	ID           string              `json:"id"`
	Question     string              `json:"question"`
	A            *float64            `json:"a,omitempty"`
	B            *float64            `json:"b,omitempty"`
	C            *float64            `json:"c,omitempty"`
	Alternatives []AlternativeImport `json:"alternatives"`
}

// AlternativeImport is one alternative inside an ItemImport.
type AlternativeImport struct {
	Option  string `json:"option"`
	Answer  string `json:"answer"`
	Correct bool   `json:"correct,omitempty"`
}
