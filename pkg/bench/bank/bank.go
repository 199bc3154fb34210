// Package bank implements the Question Bank: stable storage of
// canonical questions and per-question resolution series, plus the
// id-stability machinery (hash mapping, remap, nullify) those
// questions depend on.
package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/forecastbench/forecastbench/pkg/bench/berrors"
	"github.com/forecastbench/forecastbench/pkg/bench/idhash"
	"github.com/forecastbench/forecastbench/pkg/bench/question"
	"github.com/forecastbench/forecastbench/pkg/bench/store"
)

// keyPrefix is the object-store layout root for bank artifacts.
const keyPrefix = "question_bank"

func seriesKey(source question.Source, id string) string {
	return fmt.Sprintf("%s/%s/%s.jsonl", keyPrefix, source, id)
}

func hashMappingKey(source question.Source) string {
	return fmt.Sprintf("%s/%s/hash_mapping.json", keyPrefix, source)
}

func questionTableKey(source question.Source) string {
	return fmt.Sprintf("%s/%s/questions.json", keyPrefix, source)
}

// Bank is the per-deployment handle onto the question-table and
// resolution-store artifacts for every source, backed by an
// ObjectStore. Writes are whole-file replaces, never partial appends.
type Bank struct {
	objStore store.ObjectStore
}

// New returns a Bank backed by objStore.
func New(objStore store.ObjectStore) *Bank {
	return &Bank{objStore: objStore}
}

// QuestionTable is the mutable-field question table for one source.
// Only Resolved, FreezeDatetimeValue, the market_info datetimes, and
// adapter-provided text fields may change after a question is first
// written; id is immutable.
type QuestionTable struct {
	Source    question.Source     `json:"source"`
	Questions []question.Question `json:"-"`
}

// questionTableJSON is the concrete on-disk envelope, since the
// Question interface cannot round-trip through encoding/json without
// a discriminated-union wrapper.
type questionTableJSON struct {
	Source    question.Source   `json:"source"`
	Questions []json.RawMessage `json:"questions"`
	Kinds     []string          `json:"kinds"`
}

// LoadQuestionTable reads and decodes the question table for source.
// A missing table is not an error — it means the source has no
// questions yet.
func (b *Bank) LoadQuestionTable(ctx context.Context, source question.Source) (*QuestionTable, error) {
	raw, err := b.objStore.Get(ctx, questionTableKey(source))
	if err == store.ErrNotExist {
		return &QuestionTable{Source: source}, nil
	}
	if err != nil {
		return nil, err
	}

	var env questionTableJSON
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, berrors.NewDataIntegrity("bank.LoadQuestionTable", err)
	}

	qt := &QuestionTable{Source: source}
	for i, kind := range env.Kinds {
		q, err := decodeQuestion(kind, env.Questions[i])
		if err != nil {
			return nil, berrors.NewDataIntegrity("bank.LoadQuestionTable", err)
		}
		qt.Questions = append(qt.Questions, q)
	}
	return qt, nil
}

func decodeQuestion(kind string, raw json.RawMessage) (question.Question, error) {
	return question.DecodeByKind(kind, raw)
}

// WriteQuestionTable replaces the question table for source in a
// single atomic write.
func (b *Bank) WriteQuestionTable(ctx context.Context, qt *QuestionTable) error {
	env := questionTableJSON{Source: qt.Source}
	for _, q := range qt.Questions {
		raw, err := json.Marshal(q)
		if err != nil {
			return err
		}
		env.Questions = append(env.Questions, raw)
		env.Kinds = append(env.Kinds, q.Kind())
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.objStore.Put(ctx, questionTableKey(qt.Source), body)
}

// LoadSeries reads the resolution series for (source, id). Readers
// must treat a series whose last row is not yesterday UTC as stale —
// CheckFreshness enforces that separately so callers can choose
// whether staleness is fatal.
func (b *Bank) LoadSeries(ctx context.Context, source question.Source, id string) (*question.ResolutionSeries, error) {
	raw, err := b.objStore.Get(ctx, seriesKey(source, id))
	if err == store.ErrNotExist {
		// An empty series is allowed only for freshly added,
		// unresolved questions.
		return &question.ResolutionSeries{ID: id, Source: source}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeJSONLSeries(source, id, raw)
}

// WriteSeries replaces the full daily series for (source, id) with a
// single atomic write, one JSON line per day.
func (b *Bank) WriteSeries(ctx context.Context, series *question.ResolutionSeries) error {
	body := encodeJSONLSeries(series)
	return b.objStore.Put(ctx, seriesKey(series.Source, series.ID), body)
}

// jsonlRow is one line of a <source>/<id>.jsonl resolution file.
type jsonlRow struct {
	ID    string       `json:"id"`
	Date  question.Day `json:"date"`
	Value float64      `json:"value"`
}

func encodeJSONLSeries(series *question.ResolutionSeries) []byte {
	var out []byte
	for _, p := range series.Points {
		row := jsonlRow{ID: series.ID, Date: p.Date, Value: p.Value}
		line, _ := json.Marshal(row)
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

func decodeJSONLSeries(source question.Source, id string, raw []byte) (*question.ResolutionSeries, error) {
	series := &question.ResolutionSeries{ID: id, Source: source}
	lines := splitLines(raw)
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		var row jsonlRow
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, berrors.NewDataIntegrity("bank.decodeJSONLSeries", err)
		}
		series.Points = append(series.Points, question.ResolutionPoint{Date: row.Date, Value: row.Value})
	}
	sort.Slice(series.Points, func(i, j int) bool { return series.Points[i].Date.Before(series.Points[j].Date) })
	if err := checkContiguous(series); err != nil {
		return nil, err
	}
	return series, nil
}

// checkContiguous enforces that each (id,date) has at most one value
// and that the series is contiguous by day after the first
// observation.
func checkContiguous(series *question.ResolutionSeries) error {
	for i := 1; i < len(series.Points); i++ {
		gap := series.Points[i].Date.Sub(series.Points[i-1].Date)
		if gap == 0 {
			return berrors.DataIntegrityf("bank.checkContiguous", "duplicate date %s in series %s/%s", series.Points[i].Date, series.Source, series.ID)
		}
		if gap != 1 {
			return berrors.DataIntegrityf("bank.checkContiguous", "non-contiguous series %s/%s: gap of %d days after %s", series.Source, series.ID, gap, series.Points[i-1].Date)
		}
	}
	return nil
}

// CheckFreshness reports whether series' last row is at least as
// recent as yesterday (today-1). A stale series means the caller must
// refuse to curate new sets for that source.
func CheckFreshness(series *question.ResolutionSeries, today question.Day) error {
	if len(series.Points) == 0 {
		return nil
	}
	yesterday := today.AddDays(-1)
	last := series.Points[len(series.Points)-1].Date
	if last.Before(yesterday) {
		return berrors.DataIntegrityf("bank.CheckFreshness", "series %s/%s is stale: last row %s, expected %s", series.Source, series.ID, last, yesterday)
	}
	return nil
}

func splitLines(b []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, c := range b {
		if c == '\n' {
			lines = append(lines, b[start:i])
			start = i + 1
		}
	}
	if start < len(b) {
		lines = append(lines, b[start:])
	}
	return lines
}

// Hydrate attaches the canonical Question record to every entry of
// set by loading each referenced source's question table and matching
// on id. Question sets on disk carry only id/source/resolution_dates
// (see question.SetEntry); every downstream consumer — the resolution
// engine above all — needs the full record to dispatch resolution.
func (b *Bank) Hydrate(ctx context.Context, set *question.Set) error {
	tables := make(map[question.Source]*QuestionTable)
	for i := range set.Questions {
		e := &set.Questions[i]
		if e.IsCombo() {
			continue
		}
		t, ok := tables[e.Source]
		if !ok {
			loaded, err := b.LoadQuestionTable(ctx, e.Source)
			if err != nil {
				return err
			}
			t = loaded
			tables[e.Source] = t
		}
		q := findQuestion(t, e.ID)
		if q == nil {
			return berrors.DataIntegrityf("bank.Hydrate", "question %s/%s in set but not in bank", e.Source, e.ID)
		}
		e.Question = q
	}
	return nil
}

func findQuestion(t *QuestionTable, id string) question.Question {
	for _, q := range t.Questions {
		if q.Head().ID == id {
			return q
		}
	}
	return nil
}

// HashMappingStore persists idhash.HashMapping entries per source.
type HashMappingStore struct {
	objStore store.ObjectStore
}

// NewHashMappingStore returns a store bound to objStore.
func NewHashMappingStore(objStore store.ObjectStore) *HashMappingStore {
	return &HashMappingStore{objStore: objStore}
}

// Load reads the hash-mapping table for source.
func (h *HashMappingStore) Load(ctx context.Context, source question.Source) (*idhash.HashMapping, error) {
	m := idhash.NewHashMapping()
	raw, err := h.objStore.Get(ctx, hashMappingKey(source))
	if err == store.ErrNotExist {
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, berrors.NewDataIntegrity("bank.HashMappingStore.Load", err)
	}
	return m, nil
}

// Save replaces the hash-mapping table for source.
func (h *HashMappingStore) Save(ctx context.Context, source question.Source, m *idhash.HashMapping) error {
	body, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return h.objStore.Put(ctx, hashMappingKey(source), body)
}
