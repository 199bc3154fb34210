package adapter

import (
	"fmt"

	"github.com/forecastbench/forecastbench/pkg/bench/question"
)

// EventCountAdapter implements the Source Adapter Contract for
// discrete event series (e.g. conflict-event counts): resolves by
// comparing a trailing 30-day sum ending at resolution_date to a
// freeze-time reference rate (a 30-day-equivalent average computed at
// freeze time, optionally scaled/offset per question template and
// carried on the question as FreezeRate).
type EventCountAdapter struct {
	source question.Source
}

// NewEventCountAdapter returns an adapter for the given dataset source.
func NewEventCountAdapter(source question.Source) *EventCountAdapter {
	return &EventCountAdapter{source: source}
}

func (a *EventCountAdapter) Source() question.Source { return a.source }

// Normalize builds the canonical EventCountQuestion from raw,
// including the freeze-time reference rate the resolve step compares
// the trailing 30-day sum against.
func (a *EventCountAdapter) Normalize(raw RawRecord, classifier Classifier) (question.Question, error) {
	if raw.ID == "" {
		return nil, fmt.Errorf("adapter: event_count raw record missing id")
	}
	return &question.EventCountQuestion{
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
		FreezeRate:       raw.FreezeRate,
	}, nil
}

func (a *EventCountAdapter) BuildSeries(id string, raw []RawObservation, epoch, lastDay question.Day) *question.ResolutionSeries {
	return buildSeriesForwardFill(id, a.source, raw, epoch, lastDay)
}

// windowSum returns the sum of the forward-filled series over the
// trailing 30-day window [end-29, end], or NaN if any day in the
// window lacks a value.
func windowSum(series *question.ResolutionSeries, end question.Day) float64 {
	sum := 0.0
	for offset := 29; offset >= 0; offset-- {
		d := end.AddDays(-offset)
		v, ok := series.ValueAt(d)
		if !ok {
			return NaN()
		}
		sum += v
	}
	return sum
}

func (a *EventCountAdapter) Resolve(q question.Question, forecastDueDate, resolutionDate question.Day, series *question.ResolutionSeries) float64 {
	ecq, ok := q.(*question.EventCountQuestion)
	if !ok {
		return NaN()
	}
	trailing := windowSum(series, resolutionDate)
	if IsNaN(trailing) {
		return NaN()
	}
	if trailing > ecq.FreezeRate {
		return 1
	}
	return 0
}
