package adapter

import (
	"fmt"

	"github.com/forecastbench/forecastbench/pkg/bench/question"
)

// NumericAdapter implements the Source Adapter Contract for monetary,
// econometric, climate, and energy time series: resolves 1 if the
// value strictly increased between forecast_due_date and
// resolution_date, else 0. NaN if either endpoint is missing.
type NumericAdapter struct {
	source question.Source
}

// NewNumericAdapter returns an adapter for the given dataset source.
func NewNumericAdapter(source question.Source) *NumericAdapter {
	return &NumericAdapter{source: source}
}

func (a *NumericAdapter) Source() question.Source { return a.source }

// Normalize builds the canonical NumericQuestion from raw.
func (a *NumericAdapter) Normalize(raw RawRecord, classifier Classifier) (question.Question, error) {
	if raw.ID == "" {
		return nil, fmt.Errorf("adapter: numeric raw record missing id")
	}
	return &question.NumericQuestion{
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
	}, nil
}

func (a *NumericAdapter) BuildSeries(id string, raw []RawObservation, epoch, lastDay question.Day) *question.ResolutionSeries {
	return buildSeriesForwardFill(id, a.source, raw, epoch, lastDay)
}

func (a *NumericAdapter) Resolve(q question.Question, forecastDueDate, resolutionDate question.Day, series *question.ResolutionSeries) float64 {
	due, okDue := series.ValueAt(forecastDueDate)
	res, okRes := series.ValueAt(resolutionDate)
	if !okDue || !okRes {
		return NaN()
	}
	if res > due {
		return 1
	}
	return 0
}
