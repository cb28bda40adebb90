package model

import "time"

// HistoryExport is the top-level JSON structure for answer history export.
type HistoryExport struct {
	ExportedAt time.Time     `json:"exported_at"`
	NumAnswers int           `json:"num_answers"`
	Users      []UserHistory `json:"users"`
}

// UserHistory holds one examinee's recorded answers in submission order.
type UserHistory struct {
	UserID     string        `json:"user_id"`
	Answers    []AnswerEvent `json:"answers"`
	Correct    int           `json:"correct"`
	FinalTheta float64       `json:"final_theta"`
}
