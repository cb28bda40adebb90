package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/adaptest/internal/model"
)

// ExportHistory builds an export of every recorded answer, grouped by user.
func (s *Store) ExportHistory() (model.HistoryExport, error) {
	events, err := s.ListAllAnswers()
	if err != nil {
		return model.HistoryExport{}, fmt.Errorf("list answers: %w", err)
	}

	export := model.HistoryExport{
		ExportedAt: time.Now().UTC(),
		NumAnswers: len(events),
		Users:      []model.UserHistory{},
	}
	for _, ev := range events {
		n := len(export.Users)
		if n == 0 || export.Users[n-1].UserID != ev.UserID {
			export.Users = append(export.Users, model.UserHistory{UserID: ev.UserID})
			n++
		}
		uh := &export.Users[n-1]
		uh.Answers = append(uh.Answers, ev)
		if ev.Correct {
			uh.Correct++
		}
		uh.FinalTheta = ev.Theta
	}
	return export, nil
}
