package store

import (
	"context"
	"testing"
	"time"

	"github.com/pavelanni/adaptest/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr(f float64) *float64 { return &f }

func testImport(id string, correct string) model.ItemImport {
	ii := model.ItemImport{ID: id, Question: "question " + id}
	for _, label := range model.OptionLabels {
		ii.Alternatives = append(ii.Alternatives, model.AlternativeImport{
			Option:  label,
			Answer:  "answer " + label,
			Correct: label == correct,
		})
	}
	return ii
}

func TestNewUnsupportedDriver(t *testing.T) {
	if _, err := New(Driver("oracle"), ""); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestItemImportAndBank(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.ItemCount()
	if err != nil {
		t.Fatalf("ItemCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 items, got %d", count)
	}

	calibrated := testImport("q1", "B")
	calibrated.A, calibrated.B, calibrated.C = ptr(1.8), ptr(-0.5), ptr(0.2)
	n, err := s.ImportItems([]model.ItemImport{calibrated, testImport("q2", "D")})
	if err != nil {
		t.Fatalf("ImportItems: %v", err)
	}
	if n != 2 {
		t.Errorf("ImportItems = %d, want 2", n)
	}

	items, err := s.LoadBank(ctx)
	if err != nil {
		t.Fatalf("LoadBank: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	q1 := items[0]
	if q1.ID != "q1" || q1.CorrectOption != "B" || len(q1.Options) != 4 {
		t.Errorf("q1 = %+v", q1)
	}
	if q1.A != 1.8 || q1.B != -0.5 || q1.C != 0.2 {
		t.Errorf("q1 params = (%f, %f, %f)", q1.A, q1.B, q1.C)
	}
	if q1.Options["C"] != "answer C" {
		t.Errorf("q1 option C = %q", q1.Options["C"])
	}

	q2 := items[1]
	if q2.A != model.DefaultDiscrimination || q2.B != model.DefaultDifficulty || q2.C != model.DefaultGuessing {
		t.Errorf("q2 params = (%f, %f, %f), want defaults", q2.A, q2.B, q2.C)
	}

	questions, err := s.ListQuestions(ctx)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if questions[1].A != nil {
		t.Errorf("unset level_a should scan as nil")
	}
}

func TestUpsertItemReplacesAlternatives(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertItem(testImport("q1", "A")); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}
	updated := testImport("q1", "C")
	updated.Question = "reworded"
	updated.Alternatives = updated.Alternatives[:3]
	if err := s.UpsertItem(updated); err != nil {
		t.Fatalf("UpsertItem update: %v", err)
	}

	count, _ := s.ItemCount()
	if count != 1 {
		t.Errorf("expected 1 item after upsert, got %d", count)
	}
	items, err := s.LoadBank(ctx)
	if err != nil {
		t.Fatalf("LoadBank: %v", err)
	}
	if items[0].Stem != "reworded" || items[0].CorrectOption != "C" || len(items[0].Options) != 3 {
		t.Errorf("updated item = %+v", items[0])
	}
}

func TestImportItemsRejectsEmptyID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ImportItems([]model.ItemImport{testImport("ok", "A"), testImport("", "A")})
	if err == nil {
		t.Fatal("expected error for empty id")
	}
	count, _ := s.ItemCount()
	if count != 0 {
		t.Errorf("failed import left %d items behind", count)
	}
}

func TestRecordAndListAnswers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	events := []model.AnswerEvent{
		{ID: "e2", UserID: "bob", ItemID: "q2", SelectedOption: "B", Correct: false, Seq: 2, Theta: -0.3, CreatedAt: at.Add(time.Minute)},
		{ID: "e1", UserID: "bob", ItemID: "q1", SelectedOption: "A", Correct: true, Seq: 1, Theta: 0.4, CreatedAt: at},
		{ID: "e3", UserID: "amy", ItemID: "q1", SelectedOption: "A", Correct: true, Seq: 1, Theta: 0.4, CreatedAt: at},
	}
	for _, ev := range events {
		if err := s.RecordAnswer(ctx, ev); err != nil {
			t.Fatalf("RecordAnswer: %v", err)
		}
	}

	got, err := s.ListAnswers("bob")
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(got))
	}
	if got[0].ID != "e1" || got[1].ID != "e2" {
		t.Errorf("answers out of order: %s, %s", got[0].ID, got[1].ID)
	}
	if !got[0].Correct || got[1].Correct {
		t.Errorf("correct flags = %v, %v", got[0].Correct, got[1].Correct)
	}
	if !got[0].CreatedAt.Equal(at) {
		t.Errorf("created_at = %v, want %v", got[0].CreatedAt, at)
	}

	// Duplicate ids are rejected.
	if err := s.RecordAnswer(ctx, events[0]); err == nil {
		t.Error("expected error for duplicate event id")
	}

	count, err := s.AnswerCount()
	if err != nil {
		t.Fatalf("AnswerCount: %v", err)
	}
	if count != 3 {
		t.Errorf("AnswerCount = %d, want 3", count)
	}
}

func TestExportHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Now()

	for i, ev := range []model.AnswerEvent{
		{UserID: "amy", ItemID: "q1", SelectedOption: "A", Correct: true, Theta: 0.5},
		{UserID: "amy", ItemID: "q2", SelectedOption: "C", Correct: true, Theta: 0.9},
		{UserID: "bob", ItemID: "q1", SelectedOption: "B", Correct: false, Theta: -0.4},
	} {
		ev.ID = string(rune('a' + i))
		ev.Seq = i + 1
		ev.CreatedAt = at
		if err := s.RecordAnswer(ctx, ev); err != nil {
			t.Fatalf("RecordAnswer: %v", err)
		}
	}

	export, err := s.ExportHistory()
	if err != nil {
		t.Fatalf("ExportHistory: %v", err)
	}
	if export.NumAnswers != 3 || len(export.Users) != 2 {
		t.Fatalf("export = %d answers, %d users", export.NumAnswers, len(export.Users))
	}
	amy := export.Users[0]
	if amy.UserID != "amy" || len(amy.Answers) != 2 || amy.Correct != 2 || amy.FinalTheta != 0.9 {
		t.Errorf("amy = %+v", amy)
	}
	bob := export.Users[1]
	if bob.UserID != "bob" || bob.Correct != 0 || bob.FinalTheta != -0.4 {
		t.Errorf("bob = %+v", bob)
	}
}

func TestExportHistoryEmpty(t *testing.T) {
	s := newTestStore(t)
	export, err := s.ExportHistory()
	if err != nil {
		t.Fatalf("ExportHistory: %v", err)
	}
	if export.NumAnswers != 0 || export.Users == nil {
		t.Errorf("empty export = %+v", export)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetMetadata("missing")
	if err != nil || v != "" {
		t.Errorf("GetMetadata(missing) = (%q, %v), want empty", v, err)
	}

	if err := s.SetImportedFileHash("items.json", "abc"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	if err := s.SetImportedFileHash("items.json", "def"); err != nil {
		t.Fatalf("SetImportedFileHash overwrite: %v", err)
	}
	got, err := s.GetImportedFileHash("items.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if got != "def" {
		t.Errorf("hash = %q, want 'def'", got)
	}
}
