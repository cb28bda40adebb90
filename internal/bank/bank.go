// Package bank assembles calibrated items from raw question and
// alternative rows supplied by an item-bank provider.
package bank

import (
	"strings"
	"unicode/utf8"

	"github.com/pavelanni/adaptest/internal/model"
)

// NormalizeOption trims and upper-cases a label and keeps its first rune,
// so " a) " and "A" are the same option.
func NormalizeOption(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(s)
	return string(r)
}

// Build joins question rows with their alternatives. Alternatives whose
// label is not in model.OptionLabels are dropped. An item whose
// alternatives flag zero or several correct options gets an empty
// CorrectOption, which makes it fail qualification later; Build itself
// never rejects an item.
func Build(questions []model.QuestionRow, alternatives []model.AlternativeRow) []model.Item {
	byQID := make(map[string][]model.AlternativeRow, len(questions))
	for _, alt := range alternatives {
		opt := NormalizeOption(alt.Option)
		if !model.IsOptionLabel(opt) {
			continue
		}
		alt.Option = opt
		byQID[alt.QuestionID] = append(byQID[alt.QuestionID], alt)
	}

	items := make([]model.Item, 0, len(questions))
	for _, q := range questions {
		it := model.Item{
			ID:      q.ID,
			Stem:    q.Stem,
			Options: map[string]string{},
			A:       valueOr(q.A, model.DefaultDiscrimination),
			B:       valueOr(q.B, model.DefaultDifficulty),
			C:       valueOr(q.C, model.DefaultGuessing),
		}
		correct := 0
		for _, alt := range byQID[q.ID] {
			it.Options[alt.Option] = alt.Answer
			if alt.Correct {
				correct++
				it.CorrectOption = alt.Option
			}
		}
		if correct != 1 {
			it.CorrectOption = ""
		}
		items = append(items, it)
	}
	return items
}

// FromImport converts JSON import records into question and alternative rows.
func FromImport(imports []model.ItemImport) ([]model.QuestionRow, []model.AlternativeRow) {
	questions := make([]model.QuestionRow, 0, len(imports))
	var alts []model.AlternativeRow
	for _, ii := range imports {
		questions = append(questions, model.QuestionRow{
			ID:   ii.ID,
			Stem: ii.Question,
			A:    ii.A,
			B:    ii.B,
			C:    ii.C,
		})
		for _, a := range ii.Alternatives {
			alts = append(alts, model.AlternativeRow{
				QuestionID: ii.ID,
				Option:     a.Option,
				Answer:     a.Answer,
				Correct:    a.Correct,
			})
		}
	}
	return questions, alts
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
