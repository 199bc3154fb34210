// Package adapter implements the Source Adapter Contract: the three
// pure operations every source provides (normalize, resolution
// series construction, resolve). The fetch plumbing that produces raw
// records is an external collaborator; everything in this package
// operates on already-fetched data.
package adapter

import (
	"math"
	"strings"
	"time"

	"github.com/forecastbench/forecastbench/pkg/bench/idhash"
	"github.com/forecastbench/forecastbench/pkg/bench/question"
)

// RawObservation is one externally-fetched (date, value) sample
// before forward-fill. Value is a float, matching the dataset-source
// schema; market sources observe a probability in [0,1].
type RawObservation struct {
	Date  question.Day
	Value float64
}

// RawRecord is the structured payload a fetcher hands to Normalize:
// the fields an upstream source exposes before canonicalization —
// category assignment and freeze_datetime_value are not yet attached.
// Fields that don't apply to a given source kind are left zero; the
// concrete adapter for that kind reads only the ones it needs.
type RawRecord struct {
	ID                 string `json:"id"`
	URL                string `json:"url,omitempty"`
	QuestionText       string `json:"question"`
	Background         string `json:"background,omitempty"`
	ResolutionCriteria string `json:"resolution_criteria,omitempty"`

	// RawCategory is an unclassified source-provided topic hint (a
	// tag, section name, or short phrase); Classify maps it (together
	// with QuestionText) onto the closed Category set.
	RawCategory string `json:"raw_category,omitempty"`

	// FreezeDatetime and ObservedValue are the freeze-time snapshot:
	// the moment the record was pulled in for inclusion, and the
	// value observed on the source at that moment, copied verbatim
	// into freeze_datetime_value.
	FreezeDatetime time.Time `json:"freeze_datetime"`
	ObservedValue  string    `json:"observed_value"`

	// ForecastHorizons applies to dataset sources only.
	ForecastHorizons []int `json:"forecast_horizons,omitempty"`

	// FreezeRate applies to event-count sources only.
	FreezeRate float64 `json:"freeze_rate,omitempty"`

	// Comparison applies to encyclopedic-table sources only.
	Comparison question.ComparisonKind `json:"comparison,omitempty"`

	// Market* fields apply to market sources only.
	MarketOpenDatetime       time.Time  `json:"market_open_datetime,omitempty"`
	MarketCloseDatetime      time.Time  `json:"market_close_datetime,omitempty"`
	MarketResolutionDatetime *time.Time `json:"market_resolution_datetime,omitempty"`
}

// Classifier assigns a topical Category to a raw record. It is the
// "external classifier" spec.md §4.A delegates normalize's category
// assignment to — Normalize calls it but never classifies itself.
type Classifier interface {
	Classify(raw RawRecord) question.Category
}

// KeywordClassifier is a minimal default Classifier: the first
// category whose keyword list matches a substring of the record's
// question text or raw category hint wins, case-insensitively, with
// CategoryOther as the fallback. A production deployment supplies its
// own Classifier (an LLM call, a trained model) through
// pipeline.Config; this one exists so normalize is runnable and
// testable without that external dependency.
type KeywordClassifier struct {
	Keywords map[question.Category][]string
}

// NewKeywordClassifier returns a classifier pre-seeded with one
// representative keyword set per non-Other category in the data model.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{Keywords: map[question.Category][]string{
		"Science & Tech":       {"technology", "software", "ai", "space", "science"},
		"Healthcare & Biology": {"health", "disease", "vaccine", "biology", "medicine"},
		"Economics & Business": {"economy", "economic", "inflation", "market", "business", "trade"},
		"Environment & Energy": {"climate", "energy", "emissions", "environment"},
		"Politics & Governance": {"election", "congress", "president", "government", "policy"},
		"Arts & Recreation":    {"film", "music", "art", "game", "entertainment"},
		"Security & Defense":   {"war", "military", "defense", "security", "conflict"},
		"Sports":               {"championship", "league", "tournament", "match", "sport"},
	}}
}

// Classify implements Classifier.
func (c *KeywordClassifier) Classify(raw RawRecord) question.Category {
	text := strings.ToLower(raw.QuestionText + " " + raw.RawCategory)
	for _, cat := range question.Categories {
		for _, kw := range c.Keywords[cat] {
			if strings.Contains(text, kw) {
				return cat
			}
		}
	}
	return question.CategoryOther
}

// Adapter is the per-source contract. Each concrete adapter below
// implements it for exactly one of the four question-variant kinds
// named in the data model.
type Adapter interface {
	// Source returns the source this adapter handles.
	Source() question.Source

	// Normalize produces the canonical Question record from a fetched
	// RawRecord: it assigns the id, header text fields,
	// freeze_datetime_value, and (via classifier) category. It is
	// pure — fetch plumbing lives entirely outside this method.
	Normalize(raw RawRecord, classifier Classifier) (question.Question, error)

	// BuildSeries constructs a contiguous, forward-filled daily
	// resolution series ending at lastDay, from raw,
	// possibly sparse, observations starting no earlier than epoch.
	BuildSeries(id string, raw []RawObservation, epoch, lastDay question.Day) *question.ResolutionSeries

	// Resolve maps (id, forecast_due_date, resolution_date, series) to
	// a ground-truth value in [0,1], or NaN for indeterminate
	// outcomes. Callers must apply the remap/nullify tables before
	// calling Resolve; Resolve itself assumes ids are already
	// canonical and unnullified.
	Resolve(q question.Question, forecastDueDate, resolutionDate question.Day, series *question.ResolutionSeries) float64
}

// ApplyRemapAndNullify canonicalizes id through the remap table and
// checks the nullify table before any resolution lookup. Returns the
// canonical id and whether the forecast should resolve to NaN.
func ApplyRemapAndNullify(remap *idhash.RemapTable, nullify *idhash.NullifyTable, id string, forecastDueDate question.Day) (canonicalID string, nullified bool, err error) {
	canonicalID, err = remap.Canonicalize(id)
	if err != nil {
		return "", false, err
	}
	if nullify.IsNullified(canonicalID, forecastDueDate) {
		return canonicalID, true, nil
	}
	return canonicalID, false, nil
}

// buildSeriesForwardFill is the shared forward-fill implementation
// every concrete adapter's BuildSeries delegates to: a dense day
// index from epoch to lastDay, each day taking the most recent
// observation at or before it, or left absent until the first
// observation arrives.
func buildSeriesForwardFill(id string, source question.Source, raw []RawObservation, epoch, lastDay question.Day) *question.ResolutionSeries {
	byDate := make(map[string]float64, len(raw))
	for _, o := range raw {
		byDate[o.Date.String()] = o.Value
	}

	points := make([]question.ResolutionPoint, 0, lastDay.Sub(epoch)+1)
	haveValue := false
	var current float64
	for d := epoch; !d.After(lastDay); d = d.AddDays(1) {
		if v, ok := byDate[d.String()]; ok {
			current = v
			haveValue = true
		}
		if haveValue {
			points = append(points, question.ResolutionPoint{Date: d, Value: current})
		}
	}
	return &question.ResolutionSeries{ID: id, Source: source, Points: points}
}

// NaN is the sanctioned sentinel for an indeterminate resolution.
func NaN() float64 { return math.NaN() }

// IsNaN reports whether v is the indeterminate sentinel.
func IsNaN(v float64) bool { return math.IsNaN(v) }
