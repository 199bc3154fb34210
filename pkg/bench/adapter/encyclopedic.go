package adapter

import (
	"fmt"

	"github.com/forecastbench/forecastbench/pkg/bench/question"
)

// EncyclopedicAdapter implements the Source Adapter Contract for
// encyclopedic-table rows: resolves by one of five named comparisons
// between the value at resolution_date and at forecast_due_date.
// Records that disappear from the upstream table between the two
// dates resolve to NaN.
type EncyclopedicAdapter struct {
	source question.Source
}

// NewEncyclopedicAdapter returns an adapter for the given source.
func NewEncyclopedicAdapter(source question.Source) *EncyclopedicAdapter {
	return &EncyclopedicAdapter{source: source}
}

func (a *EncyclopedicAdapter) Source() question.Source { return a.source }

// Normalize builds the canonical EncyclopedicQuestion from raw,
// including the comparison kind resolve later evaluates.
func (a *EncyclopedicAdapter) Normalize(raw RawRecord, classifier Classifier) (question.Question, error) {
	if raw.ID == "" {
		return nil, fmt.Errorf("adapter: encyclopedic raw record missing id")
	}
	return &question.EncyclopedicQuestion{
		Header: question.Header{
			ID:                  raw.ID,
			Source:              a.source,
			URL:                 raw.URL,
			QuestionText:        raw.QuestionText,
			Background:          raw.Background,
			ResolutionCriteria:  raw.ResolutionCriteria,
			Category:            classifier.Classify(raw),
			ValidQuestion:       true,
			FreezeDatetime:      raw.FreezeDatetime,
			FreezeDatetimeValue: raw.ObservedValue,
		},
		ForecastHorizons: raw.ForecastHorizons,
		Comparison:       raw.Comparison,
	}, nil
}

func (a *EncyclopedicAdapter) BuildSeries(id string, raw []RawObservation, epoch, lastDay question.Day) *question.ResolutionSeries {
	return buildSeriesForwardFill(id, a.source, raw, epoch, lastDay)
}

func (a *EncyclopedicAdapter) Resolve(q question.Question, forecastDueDate, resolutionDate question.Day, series *question.ResolutionSeries) float64 {
	eq, ok := q.(*question.EncyclopedicQuestion)
	if !ok {
		return NaN()
	}
	due, okDue := series.ValueAt(forecastDueDate)
	res, okRes := series.ValueAt(resolutionDate)
	if !okDue || !okRes {
		// The record disappeared from the upstream table between the
		// two observation dates.
		return NaN()
	}

	switch eq.Comparison {
	case question.ComparisonSame:
		if res == due {
			return 1
		}
		return 0
	case question.ComparisonSameOrMore:
		if res >= due {
			return 1
		}
		return 0
	case question.ComparisonMore:
		if res > due {
			return 1
		}
		return 0
	case question.ComparisonSameOrLess:
		if res <= due {
			return 1
		}
		return 0
	case question.ComparisonOnePercentMore:
		if res >= due*1.01 {
			return 1
		}
		return 0
	default:
		return NaN()
	}
}
