package question

import "encoding/json"

// Set is a question-set file: `{ forecast_due_date, question_set,
// questions[] }`. Market questions appear once; dataset questions
// appear once and carry resolution_dates per horizon; combo questions
// carry a combination_of payload.
type Set struct {
	ForecastDueDate Day        `json:"forecast_due_date"`
	QuestionSet     string     `json:"question_set"`
	Questions       []SetEntry `json:"questions"`
}

// SetEntry is one row of a question set. It is a flattened view over
// the Question sum type plus the set-specific fields (resolution
// dates, combination payload) that only exist once a question is
// placed into a set.
type SetEntry struct {
	ID               string         `json:"id"`
	Source           Source         `json:"source"`
	Question         Question       `json:"-"`
	ResolutionDates  []Day          `json:"resolution_dates,omitempty"`
	CombinationOf    *Combo         `json:"combination_of,omitempty"`
}

// IsCombo reports whether the entry is a combination (pair) question.
func (e *SetEntry) IsCombo() bool { return e.CombinationOf != nil }

// setEntryJSON mirrors SetEntry for JSON round-tripping, since the
// embedded Question interface cannot be unmarshaled directly.
type setEntryJSON struct {
	ID              string   `json:"id"`
	Source          Source   `json:"source"`
	ResolutionDates []Day    `json:"resolution_dates,omitempty"`
	CombinationOf   *Combo   `json:"combination_of,omitempty"`
}

// MarshalJSON flattens the entry to the wire schema.
func (e SetEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(setEntryJSON{
		ID:              e.ID,
		Source:          e.Source,
		ResolutionDates: e.ResolutionDates,
		CombinationOf:   e.CombinationOf,
	})
}

// UnmarshalJSON restores the flattened fields; callers resolve
// e.Question separately from the bank, since a question set alone
// does not carry the full canonical record.
func (e *SetEntry) UnmarshalJSON(b []byte) error {
	var raw setEntryJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	e.ID = raw.ID
	e.Source = raw.Source
	e.ResolutionDates = raw.ResolutionDates
	e.CombinationOf = raw.CombinationOf
	return nil
}

// Direction is the per-leg sign for a combo forecast row; empty for
// single-question rows.
type Direction []int

// ForecastRow is one row of a submitted forecast file.
type ForecastRow struct {
	ID             string    `json:"id"`
	Source         Source    `json:"source"`
	Direction      Direction `json:"direction,omitempty"`
	Forecast       *float64  `json:"forecast"`
	ResolutionDate *Day      `json:"resolution_date,omitempty"`
	Reasoning      string    `json:"reasoning,omitempty"`
}

// ForecastSet is a submitted forecast file.
type ForecastSet struct {
	Organization      string        `json:"organization"`
	Model             string        `json:"model"`
	ModelOrganization string        `json:"model_organization"`
	QuestionSet       string        `json:"question_set"`
	ForecastDueDate   Day           `json:"forecast_due_date"`
	Forecasts         []ForecastRow `json:"forecasts"`
}

// ProcessedForecastRow is a ForecastRow after resolution: it carries
// the ground truth and bookkeeping fields the scorer needs.
type ProcessedForecastRow struct {
	ForecastRow
	ResolvedTo                     float64 `json:"resolved_to"`
	Resolved                       bool    `json:"resolved"`
	Imputed                        bool    `json:"imputed"`
	MarketValueOnDueDate           float64 `json:"market_value_on_due_date"`
	MarketValueOnDueDateMinusOne   float64 `json:"market_value_on_due_date_minus_one"`
	ForecastDueDate                Day     `json:"forecast_due_date"`
	QuestionPK                     string  `json:"question_pk"`
}

// ProcessedForecastSet is a ForecastSet after resolution.
type ProcessedForecastSet struct {
	Organization      string                  `json:"organization"`
	Model             string                  `json:"model"`
	ModelOrganization string                  `json:"model_organization"`
	QuestionSet       string                  `json:"question_set"`
	ForecastDueDate   Day                     `json:"forecast_due_date"`
	Forecasts         []ProcessedForecastRow  `json:"forecasts"`
}

// ResolutionRow is one row of a resolution set: the ground truth
// table alone, without any forecaster's numbers.
type ResolutionRow struct {
	ID                           string  `json:"id"`
	Source                       Source  `json:"source"`
	Direction                    Direction `json:"direction,omitempty"`
	ResolutionDate               Day     `json:"resolution_date,omitempty"`
	ResolvedTo                   float64 `json:"resolved_to"`
	Resolved                     bool    `json:"resolved"`
	MarketValueOnDueDate         float64 `json:"market_value_on_due_date"`
	MarketValueOnDueDateMinusOne float64 `json:"market_value_on_due_date_minus_one"`
}

// ResolutionSet is the per-question-set ground-truth table, published
// alongside (but independent of) every submitter's processed file.
type ResolutionSet struct {
	ForecastDueDate Day             `json:"forecast_due_date"`
	QuestionSet     string          `json:"question_set"`
	Resolutions     []ResolutionRow `json:"resolutions"`
}

// DistinguishedModel names a benchmark-internal pseudo-forecaster that
// receives special imputation treatment during resolution.
type DistinguishedModel string

const (
	ModelImputedForecaster DistinguishedModel = "Imputed Forecaster"
	ModelNaiveForecaster   DistinguishedModel = "Naive Forecaster"
	ModelAlways0           DistinguishedModel = "Always 0"
	ModelAlways1           DistinguishedModel = "Always 1"
	ModelAlways05          DistinguishedModel = "Always 0.5"
	ModelRandomUniform     DistinguishedModel = "Random Uniform"
)
