package cat

import (
	"context"

	"github.com/pavelanni/adaptest/internal/model"
)

// Recorder durably logs submitted answers.
type Recorder interface {
	RecordAnswer(ctx context.Context, ev model.AnswerEvent) error
}

// NopRecorder discards every event.
type NopRecorder struct{}

// RecordAnswer implements Recorder.
func (NopRecorder) RecordAnswer(context.Context, model.AnswerEvent) error { return nil }
