package adapter

import (
	"fmt"

	"github.com/forecastbench/forecastbench/pkg/bench/question"
)

// MarketAdapter implements the Source Adapter Contract for prediction
// markets: the series is the community probability, forward-filled,
// and resolve returns the series value at resolution_date, or the
// last pre-close value once the market has closed.
type MarketAdapter struct {
	source question.Source
}

// NewMarketAdapter returns an adapter for the given market source.
func NewMarketAdapter(source question.Source) *MarketAdapter {
	return &MarketAdapter{source: source}
}

func (a *MarketAdapter) Source() question.Source { return a.source }

// Normalize builds the canonical MarketQuestion: header text and
// freeze_datetime_value come straight off raw, category is delegated
// to classifier, and the three market datetimes are carried as-is.
func (a *MarketAdapter) Normalize(raw RawRecord, classifier Classifier) (question.Question, error) {
	if raw.ID == "" {
		return nil, fmt.Errorf("adapter: market raw record missing id")
	}
	return &question.MarketQuestion{
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
		MarketInfoOpenDatetime:       raw.MarketOpenDatetime,
		MarketInfoCloseDatetime:      raw.MarketCloseDatetime,
		MarketInfoResolutionDatetime: raw.MarketResolutionDatetime,
	}, nil
}

func (a *MarketAdapter) BuildSeries(id string, raw []RawObservation, epoch, lastDay question.Day) *question.ResolutionSeries {
	return buildSeriesForwardFill(id, a.source, raw, epoch, lastDay)
}

// Resolve returns the market's probability at resolutionDate. If the
// market closed before resolutionDate, the last pre-close value is
// used — the final resolved outcome (0, 1, or a fractional value for
// markets that resolve fractionally) is carried forward for every
// date at or after close. An ambiguous/annulled market is represented
// by a NaN value in the series and propagates directly.
func (a *MarketAdapter) Resolve(q question.Question, forecastDueDate, resolutionDate question.Day, series *question.ResolutionSeries) float64 {
	mq, ok := q.(*question.MarketQuestion)
	if !ok {
		return NaN()
	}

	lookupDate := resolutionDate
	closeDay := question.NewDay(mq.MarketInfoCloseDatetime)
	if !closeDay.IsZero() && closeDay.Before(resolutionDate) {
		lookupDate = closeDay
	}

	v, present := series.ValueAt(lookupDate)
	if !present {
		return NaN()
	}
	return v
}
