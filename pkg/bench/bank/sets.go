package bank

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/forecastbench/forecastbench/pkg/bench/berrors"
	"github.com/forecastbench/forecastbench/pkg/bench/question"
	"github.com/forecastbench/forecastbench/pkg/bench/store"
)

// SetStore reads and writes the question-set, forecast-set,
// processed-forecast-set, and resolution-set files, the four
// non-bank artifact families a curation/resolution/scoring run
// produces or consumes. It shares the same ObjectStore the Bank
// writes question tables and series through, but addresses a disjoint
// key namespace: question_sets/, forecast_sets/,
// processed_forecast_sets/, resolution_sets/.
type SetStore struct {
	objStore store.ObjectStore
}

// NewSetStore binds a SetStore to objStore.
func NewSetStore(objStore store.ObjectStore) *SetStore {
	return &SetStore{objStore: objStore}
}

func questionSetKey(forecastDueDate question.Day, kind string) string {
	return fmt.Sprintf("question_sets/%s-%s.json", forecastDueDate, kind)
}

func forecastSetKey(forecastDueDate question.Day, name string) string {
	return fmt.Sprintf("forecast_sets/%s/%s.json", forecastDueDate, name)
}

func processedForecastSetKey(forecastDueDate question.Day, name string) string {
	return fmt.Sprintf("processed_forecast_sets/%s/%s.json", forecastDueDate, name)
}

func resolutionSetKey(forecastDueDate question.Day) string {
	return fmt.Sprintf("resolution_sets/%s_resolution_set.json", forecastDueDate)
}

// WriteQuestionSet writes set under question_sets/<due>-<kind>.json,
// where kind is "llm" or "human".
func (s *SetStore) WriteQuestionSet(ctx context.Context, set *question.Set, kind string) error {
	body, err := json.Marshal(set)
	if err != nil {
		return err
	}
	return s.objStore.Put(ctx, questionSetKey(set.ForecastDueDate, kind), body)
}

// LoadQuestionSet reads the question_sets/<due>-<kind>.json file. The
// returned Set's entries carry only their id/source/resolution-dates
// fields — callers must Hydrate it against the Bank to attach full
// Question records.
func (s *SetStore) LoadQuestionSet(ctx context.Context, forecastDueDate question.Day, kind string) (*question.Set, error) {
	raw, err := s.objStore.Get(ctx, questionSetKey(forecastDueDate, kind))
	if err != nil {
		return nil, err
	}
	var set question.Set
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, berrors.NewDataIntegrity("bank.LoadQuestionSet", err)
	}
	return &set, nil
}

// ListForecastSets returns every submitted forecast file's key under
// forecast_sets/<due>/.
func (s *SetStore) ListForecastSets(ctx context.Context, forecastDueDate question.Day) ([]string, error) {
	return s.objStore.List(ctx, fmt.Sprintf("forecast_sets/%s/", forecastDueDate))
}

// LoadForecastSet reads one forecast_sets/<due>/<name>.json file.
func (s *SetStore) LoadForecastSet(ctx context.Context, key string) (*question.ForecastSet, error) {
	raw, err := s.objStore.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var fs question.ForecastSet
	if err := json.Unmarshal(raw, &fs); err != nil {
		return nil, berrors.NewDataIntegrity("bank.LoadForecastSet", err)
	}
	return &fs, nil
}

// WriteProcessedForecastSet writes pfs under
// processed_forecast_sets/<due>/<name>.json.
func (s *SetStore) WriteProcessedForecastSet(ctx context.Context, pfs *question.ProcessedForecastSet, name string) error {
	body, err := json.Marshal(pfs)
	if err != nil {
		return err
	}
	return s.objStore.Put(ctx, processedForecastSetKey(pfs.ForecastDueDate, name), body)
}

// ListProcessedForecastSets returns every processed forecast file's
// key under processed_forecast_sets/<due>/.
func (s *SetStore) ListProcessedForecastSets(ctx context.Context, forecastDueDate question.Day) ([]string, error) {
	return s.objStore.List(ctx, fmt.Sprintf("processed_forecast_sets/%s/", forecastDueDate))
}

// LoadProcessedForecastSet reads one processed_forecast_sets/<due>/<name>.json file.
func (s *SetStore) LoadProcessedForecastSet(ctx context.Context, key string) (*question.ProcessedForecastSet, error) {
	raw, err := s.objStore.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var pfs question.ProcessedForecastSet
	if err := json.Unmarshal(raw, &pfs); err != nil {
		return nil, berrors.NewDataIntegrity("bank.LoadProcessedForecastSet", err)
	}
	return &pfs, nil
}

// WriteResolutionSet writes rs under
// resolution_sets/<due>_resolution_set.json.
func (s *SetStore) WriteResolutionSet(ctx context.Context, rs *question.ResolutionSet) error {
	body, err := json.Marshal(rs)
	if err != nil {
		return err
	}
	return s.objStore.Put(ctx, resolutionSetKey(rs.ForecastDueDate), body)
}

// LoadResolutionSet reads the resolution_sets/<due>_resolution_set.json file.
func (s *SetStore) LoadResolutionSet(ctx context.Context, forecastDueDate question.Day) (*question.ResolutionSet, error) {
	raw, err := s.objStore.Get(ctx, resolutionSetKey(forecastDueDate))
	if err != nil {
		return nil, err
	}
	var rs question.ResolutionSet
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, berrors.NewDataIntegrity("bank.LoadResolutionSet", err)
	}
	return &rs, nil
}
