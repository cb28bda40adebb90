package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/adaptest/internal/model"
)

// RecordAnswer appends an answer event to user_answers. It implements
// cat.Recorder.
func (s *Store) RecordAnswer(ctx context.Context, ev model.AnswerEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_answers (id, user_id, question_id, selected_option, correct, seq, theta, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.UserID, ev.ItemID, ev.SelectedOption, ev.Correct, ev.Seq, ev.Theta, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record answer %s/%s: %w", ev.UserID, ev.ItemID, err)
	}
	return nil
}

const answerColumns = `id, user_id, question_id, selected_option, correct, seq, theta, created_at`

// ListAnswers returns a user's answers in submission order.
func (s *Store) ListAnswers(userID string) ([]model.AnswerEvent, error) {
	return s.queryAnswers(
		`SELECT `+answerColumns+` FROM user_answers WHERE user_id = $1 ORDER BY seq, created_at`, userID)
}

// ListAllAnswers returns every answer grouped by user, in submission order.
func (s *Store) ListAllAnswers() ([]model.AnswerEvent, error) {
	return s.queryAnswers(`SELECT ` + answerColumns + ` FROM user_answers ORDER BY user_id, seq, created_at`)
}

func (s *Store) queryAnswers(query string, args ...any) ([]model.AnswerEvent, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []model.AnswerEvent
	for rows.Next() {
		var ev model.AnswerEvent
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.ItemID, &ev.SelectedOption, &ev.Correct,
			&ev.Seq, &ev.Theta, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// AnswerCount returns the number of recorded answers.
func (s *Store) AnswerCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM user_answers`).Scan(&count)
	return count, err
}
