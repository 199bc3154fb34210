// Package question defines the canonical question record and the
// resolution-series types shared by every downstream component: the
// bank, the curator, the resolution engine, and the scorer.
package question

import (
	"encoding/json"
	"fmt"
	"time"
)

// Source identifies where a question originates. It is a closed,
// validated string rather than an unconstrained type so that bank
// files and question-set files round-trip byte-for-byte.
type Source string

// Market sources: the question and a community probability already
// exist externally.
const (
	SourceManifold   Source = "manifold"
	SourceMetaculus  Source = "metaculus"
	SourceInfer      Source = "infer"
	SourcePolymarket Source = "polymarket"
)

// Dataset sources: questions are synthesized by the system from
// templates over a numeric or categorical time series.
const (
	SourceACLED     Source = "acled"
	SourceDBNomics  Source = "dbnomics"
	SourceFRED      Source = "fred"
	SourceWikipedia Source = "wikipedia"
	SourceYFinance  Source = "yfinance"
)

// MarketSources lists the closed set of prediction-market sources.
var MarketSources = map[Source]bool{
	SourceManifold:   true,
	SourceMetaculus:  true,
	SourceInfer:      true,
	SourcePolymarket: true,
}

// DataSources lists the closed set of dataset sources.
var DataSources = map[Source]bool{
	SourceACLED:     true,
	SourceDBNomics:  true,
	SourceFRED:      true,
	SourceWikipedia: true,
	SourceYFinance:  true,
}

// IsMarket reports whether s is a market source.
func (s Source) IsMarket() bool { return MarketSources[s] }

// IsDataset reports whether s is a dataset source.
func (s Source) IsDataset() bool { return DataSources[s] }

// Valid reports whether s belongs to either closed class.
func (s Source) Valid() bool { return s.IsMarket() || s.IsDataset() }

// Category is one of the closed set of topical tags, or "Other".
type Category string

// Categories lists the closed set of topical tags a question may
// carry. It ends with "Other", the catch-all that the curator's
// filter pass drops.
var Categories = []Category{
	"Science & Tech",
	"Healthcare & Biology",
	"Economics & Business",
	"Environment & Energy",
	"Politics & Governance",
	"Arts & Recreation",
	"Security & Defense",
	"Sports",
	"Other",
}

// CategoryOther is the catch-all category the curator filters out.
const CategoryOther Category = "Other"

// ForecastHorizonsDays is the closed set of day offsets a dataset
// question's forecast_horizons may draw from.
var ForecastHorizonsDays = []int{7, 30, 90, 180, 365, 1095, 1825, 3650}

// Day is a calendar date truncated to UTC midnight. Using a distinct
// type instead of passing time.Time everywhere keeps accidental
// time-of-day/timezone bugs out of the hot resolution-series loops.
type Day struct {
	t time.Time
}

// NewDay truncates t to a UTC calendar date.
func NewDay(t time.Time) Day {
	u := t.UTC()
	return Day{time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Day{}, err
	}
	return Day{t}, nil
}

// String renders the day as YYYY-MM-DD.
func (d Day) String() string { return d.t.Format("2006-01-02") }

// MarshalJSON implements json.Marshaler as a quoted YYYY-MM-DD string.
func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Day) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// AddDays returns d shifted by n calendar days.
func (d Day) AddDays(n int) Day { return Day{d.t.AddDate(0, 0, n)} }

// Sub returns the whole number of days between d and o (d - o).
func (d Day) Sub(o Day) int { return int(d.t.Sub(o.t).Hours() / 24) }

// Before reports whether d is strictly earlier than o.
func (d Day) Before(o Day) bool { return d.t.Before(o.t) }

// After reports whether d is strictly later than o.
func (d Day) After(o Day) bool { return d.t.After(o.t) }

// Equal reports whether d and o denote the same calendar date.
func (d Day) Equal(o Day) bool { return d.t.Equal(o.t) }

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool { return d.t.IsZero() }

// Time returns the underlying UTC-midnight time.Time.
func (d Day) Time() time.Time { return d.t }

// Header carries the fields common to every question variant,
// regardless of its source kind.
type Header struct {
	ID                 string   `json:"id"`
	Source             Source   `json:"source"`
	URL                string   `json:"url,omitempty"`
	QuestionText       string   `json:"question"`
	Background         string   `json:"background,omitempty"`
	ResolutionCriteria string   `json:"resolution_criteria,omitempty"`
	Category           Category `json:"category"`
	Resolved           bool     `json:"resolved"`
	ValidQuestion       bool    `json:"valid_question"`

	FreezeDatetime                  time.Time `json:"freeze_datetime"`
	FreezeDatetimeValue             string    `json:"freeze_datetime_value"`
	FreezeDatetimeValueExplanation  string    `json:"freeze_datetime_value_explanation,omitempty"`
}

// Question is the sum type over the four concrete question variants.
// Resolution dispatches on the concrete type rather than a
// string-keyed branch, matching how the original Python distinguishes
// rows by a "source" column switch — here it is a method set instead.
type Question interface {
	// Head returns the shared header fields.
	Head() *Header
	// Kind names the variant for logging and JSON discrimination.
	Kind() string
}

// MarketQuestion is a prediction-market question: the market itself
// and a community probability exist on the external platform.
type MarketQuestion struct {
	Header

	MarketInfoOpenDatetime       time.Time  `json:"market_info_open_datetime"`
	MarketInfoCloseDatetime      time.Time  `json:"market_info_close_datetime"`
	MarketInfoResolutionDatetime *time.Time `json:"market_info_resolution_datetime,omitempty"`
}

func (q *MarketQuestion) Head() *Header { return &q.Header }
func (q *MarketQuestion) Kind() string  { return "market" }

// NumericQuestion is a synthesized question over a monetary,
// econometric, climate, or energy time series: resolves on whether
// the value strictly increased.
type NumericQuestion struct {
	Header
	ForecastHorizons []int `json:"forecast_horizons"`
}

func (q *NumericQuestion) Head() *Header { return &q.Header }
func (q *NumericQuestion) Kind() string  { return "numeric" }

// EventCountQuestion is a synthesized question over a discrete event
// series (e.g. conflict-event counts): resolves by comparing a
// trailing 30-day sum to a freeze-time reference rate.
type EventCountQuestion struct {
	Header
	ForecastHorizons []int   `json:"forecast_horizons"`
	FreezeRate       float64 `json:"freeze_rate"`
}

func (q *EventCountQuestion) Head() *Header { return &q.Header }
func (q *EventCountQuestion) Kind() string  { return "event_count" }

// ComparisonKind enumerates the allowed encyclopedic-table comparisons.
type ComparisonKind string

const (
	ComparisonSame           ComparisonKind = "SAME"
	ComparisonSameOrMore     ComparisonKind = "SAME_OR_MORE"
	ComparisonMore           ComparisonKind = "MORE"
	ComparisonSameOrLess     ComparisonKind = "SAME_OR_LESS"
	ComparisonOnePercentMore ComparisonKind = "ONE_PERCENT_MORE"
)

// EncyclopedicQuestion is a synthesized question over an encyclopedic
// table row: resolves by a named comparison between the value at
// forecast_due_date and at resolution_date.
type EncyclopedicQuestion struct {
	Header
	ForecastHorizons []int          `json:"forecast_horizons"`
	Comparison       ComparisonKind `json:"comparison"`
}

func (q *EncyclopedicQuestion) Head() *Header { return &q.Header }
func (q *EncyclopedicQuestion) Kind() string  { return "encyclopedic" }

// DecodeByKind unmarshals raw into the concrete Question variant named
// by kind ("market", "numeric", "event_count", "encyclopedic") — the
// single decode switch every caller that reads a question off the
// wire or out of storage shares, so the four Kind() strings stay the
// one place new variants need to be registered.
func DecodeByKind(kind string, raw json.RawMessage) (Question, error) {
	switch kind {
	case "market":
		var q MarketQuestion
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, err
		}
		return &q, nil
	case "numeric":
		var q NumericQuestion
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, err
		}
		return &q, nil
	case "event_count":
		var q EventCountQuestion
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, err
		}
		return &q, nil
	case "encyclopedic":
		var q EncyclopedicQuestion
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, err
		}
		return &q, nil
	default:
		return nil, fmt.Errorf("question: unknown question kind %q", kind)
	}
}

// Combo represents a combination (pair) question: two legs and a
// direction per leg, rather than a tuple-keyed id. The storage layer
// still serializes id as a 2-element array for shipped question sets.
type Combo struct {
	Legs       [2]string `json:"legs"`
	Directions [2]int    `json:"directions"` // each -1 or +1
}

// ResolveOutcome combines two leg outcomes per the combo direction
// rule: r_i contributes r_i if direction is +1, else (1 - r_i).
func (c Combo) ResolveOutcome(r1, r2 float64) float64 {
	leg := func(r float64, d int) float64 {
		if d == 1 {
			return r
		}
		return 1 - r
	}
	return leg(r1, c.Directions[0]) * leg(r2, c.Directions[1])
}

// ResolutionPoint is one (date, value) row of a resolution series.
type ResolutionPoint struct {
	Date  Day     `json:"date"`
	Value float64 `json:"value"`
}

// ResolutionSeries is the ordered, contiguous daily series for one
// question id, forward-filled where the upstream source publishes
// intermittently.
type ResolutionSeries struct {
	ID     string             `json:"id"`
	Source Source             `json:"source"`
	Points []ResolutionPoint  `json:"points"`
}

// ValueAt returns the series value at d and whether it was present
// (after forward-fill, any date at or after the series start and at
// or before the last point is present).
func (rs *ResolutionSeries) ValueAt(d Day) (float64, bool) {
	if len(rs.Points) == 0 {
		return 0, false
	}
	if d.Before(rs.Points[0].Date) {
		return 0, false
	}
	last := rs.Points[0]
	for _, p := range rs.Points {
		if p.Date.After(d) {
			break
		}
		last = p
	}
	if last.Date.After(d) {
		return 0, false
	}
	return last.Value, true
}
