package bank

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)

	"github.com/forecastbench/forecastbench/pkg/bench/question"
)

// schema is the Index's single table: a derived cache, never the
// source of truth. Deleting the file and calling Rebuild recreates it
// from the bank's JSON/JSONL files.
const schema = `
CREATE TABLE IF NOT EXISTS questions (
    source         TEXT NOT NULL,
    id             TEXT NOT NULL,
    category       TEXT NOT NULL,
    resolved       INTEGER NOT NULL DEFAULT 0,
    valid_question INTEGER NOT NULL DEFAULT 1,
    kind           TEXT NOT NULL,
    PRIMARY KEY (source, id)
);
CREATE INDEX IF NOT EXISTS idx_questions_source_category ON questions(source, category);
CREATE INDEX IF NOT EXISTS idx_questions_resolved ON questions(source, resolved, valid_question);
`

// Index is a local, rebuildable secondary index over
// (source, category, resolved, valid_question). No package outside
// bank opens or queries it; curator.Filter works on the question
// tables loaded from the bank.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (or creates) a SQLite index at path. Pass ":memory:"
// for an ephemeral index, e.g. in tests.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("bank: open index %q: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bank: enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bank: create schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying database handle.
func (idx *Index) Close() error { return idx.db.Close() }

// Rebuild replaces the index contents with qt's questions for source.
func (idx *Index) Rebuild(ctx context.Context, source question.Source, qt *QuestionTable) error {
	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE source = ?`, source); err != nil {
		return err
	}
	for _, q := range qt.Questions {
		h := q.Head()
		resolved := 0
		if h.Resolved {
			resolved = 1
		}
		valid := 0
		if h.ValidQuestion {
			valid = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO questions(source, id, category, resolved, valid_question, kind)
			VALUES(?,?,?,?,?,?)
			ON CONFLICT(source, id) DO UPDATE SET
				category = excluded.category,
				resolved = excluded.resolved,
				valid_question = excluded.valid_question,
				kind = excluded.kind
		`, source, h.ID, h.Category, resolved, valid, q.Kind())
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Candidate is a lightweight row returned by filter queries — the
// curator re-fetches the full Question from the bank's JSON files
// once it has decided which ids to pull.
type Candidate struct {
	Source   question.Source
	ID       string
	Category question.Category
}

// FilterCandidates returns ids matching the curator's filter pass:
// not resolved, valid_question=true, category != "Other".
func (idx *Index) FilterCandidates(ctx context.Context, source question.Source) ([]Candidate, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT id, category FROM questions
		WHERE source = ? AND resolved = 0 AND valid_question = 1 AND category != ?
	`, source, question.CategoryOther)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		c := Candidate{Source: source}
		if err := rows.Scan(&c.ID, &c.Category); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
