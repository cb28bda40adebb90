package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite

	"github.com/pavelanni/adaptest/internal/bank"
	"github.com/pavelanni/adaptest/internal/model"
)

// Driver selects the SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Store is the SQL-backed item bank and answer history.
type Store struct {
	db     *sql.DB
	driver Driver
}

// New opens the database for driver and ensures the schema exists.
// For SQLite, dsn is a file path (or ":memory:").
func New(driver Driver, dsn string) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		drvName = "sqlite"
		if dsn == "" {
			dsn = "adaptest.db"
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/adaptest?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// Each SQLite connection to ":memory:" is its own database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := schemaSQLite
	if s.driver == DriverPostgres {
		schema = schemaPostgres
	}
	_, err := s.db.Exec(schema)
	return err
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS questions (
	id TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	level_a REAL,
	level_b REAL,
	level_c REAL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS alternatives (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	option TEXT NOT NULL,
	answer TEXT NOT NULL DEFAULT '',
	correct INTEGER NOT NULL DEFAULT 0,
	UNIQUE (question_id, option)
);

CREATE TABLE IF NOT EXISTS user_answers (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	question_id TEXT NOT NULL,
	selected_option TEXT NOT NULL,
	correct INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	theta REAL NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_user_answers_user ON user_answers (user_id, seq);

CREATE TABLE IF NOT EXISTS exam_metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS questions (
	id TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	level_a DOUBLE PRECISION,
	level_b DOUBLE PRECISION,
	level_c DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS alternatives (
	id BIGSERIAL PRIMARY KEY,
	question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	option TEXT NOT NULL,
	answer TEXT NOT NULL DEFAULT '',
	correct BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (question_id, option)
);

CREATE TABLE IF NOT EXISTS user_answers (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	question_id TEXT NOT NULL,
	selected_option TEXT NOT NULL,
	correct BOOLEAN NOT NULL,
	seq INTEGER NOT NULL,
	theta DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_user_answers_user ON user_answers (user_id, seq);

CREATE TABLE IF NOT EXISTS exam_metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// UpsertItem stores an item and replaces its alternatives.
func (s *Store) UpsertItem(ii model.ItemImport) error {
	_, err := s.ImportItems([]model.ItemImport{ii})
	return err
}

// ImportItems stores items in a single transaction, replacing the
// alternatives of any item that already exists. It returns the number of
// items written.
func (s *Store) ImportItems(items []model.ItemImport) (int, error) {
	questions, alts := bank.FromImport(items)

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now()
	for _, q := range questions {
		if q.ID == "" {
			return 0, fmt.Errorf("item with empty id")
		}
		_, err := tx.Exec(
			`INSERT INTO questions (id, question, level_a, level_b, level_c, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE SET question = EXCLUDED.question,
			   level_a = EXCLUDED.level_a, level_b = EXCLUDED.level_b, level_c = EXCLUDED.level_c`,
			q.ID, q.Stem, nullFloat(q.A), nullFloat(q.B), nullFloat(q.C), now,
		)
		if err != nil {
			return 0, fmt.Errorf("upsert question %s: %w", q.ID, err)
		}
		if _, err := tx.Exec(`DELETE FROM alternatives WHERE question_id = $1`, q.ID); err != nil {
			return 0, fmt.Errorf("clear alternatives for %s: %w", q.ID, err)
		}
	}
	for _, alt := range alts {
		_, err := tx.Exec(
			`INSERT INTO alternatives (question_id, option, answer, correct) VALUES ($1, $2, $3, $4)`,
			alt.QuestionID, bank.NormalizeOption(alt.Option), alt.Answer, alt.Correct,
		)
		if err != nil {
			return 0, fmt.Errorf("insert alternative %s/%s: %w", alt.QuestionID, alt.Option, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(questions), nil
}

// ListQuestions returns all question rows. Unset parameters stay nil.
func (s *Store) ListQuestions(ctx context.Context) ([]model.QuestionRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, question, level_a, level_b, level_c FROM questions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.QuestionRow
	for rows.Next() {
		var q model.QuestionRow
		var a, b, c sql.NullFloat64
		if err := rows.Scan(&q.ID, &q.Stem, &a, &b, &c); err != nil {
			return nil, err
		}
		q.A, q.B, q.C = floatPtr(a), floatPtr(b), floatPtr(c)
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListAlternatives returns all alternatives.
func (s *Store) ListAlternatives(ctx context.Context) ([]model.AlternativeRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, option, answer, correct FROM alternatives ORDER BY question_id, option`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var alts []model.AlternativeRow
	for rows.Next() {
		var a model.AlternativeRow
		if err := rows.Scan(&a.QuestionID, &a.Option, &a.Answer, &a.Correct); err != nil {
			return nil, err
		}
		alts = append(alts, a)
	}
	return alts, rows.Err()
}

// LoadBank returns the full item bank, built from questions and alternatives.
func (s *Store) LoadBank(ctx context.Context) ([]model.Item, error) {
	questions, err := s.ListQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	alts, err := s.ListAlternatives(ctx)
	if err != nil {
		return nil, fmt.Errorf("list alternatives: %w", err)
	}
	return bank.Build(questions, alts), nil
}

// ItemCount returns the number of questions in the database.
func (s *Store) ItemCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
