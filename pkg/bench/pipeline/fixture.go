package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forecastbench/forecastbench/pkg/bench/adapter"
	"github.com/forecastbench/forecastbench/pkg/bench/question"
)

// fixtureFile is the on-disk shape one source's fixture takes under a
// FixtureFetcher's root directory: <root>/<source>.json. Records are
// raw, pre-normalize payloads — the same shape a real per-source HTTP
// client would hand to Normalize — so a fixture run exercises the
// adapter's Normalize step exactly as a live fetch would, rather than
// bypassing it with already-canonical records.
type fixtureFile struct {
	Records      []adapter.RawRecord              `json:"records"`
	Observations map[string][]fixtureObservation `json:"observations"`
}

type fixtureObservation struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// FixtureFetcher satisfies Fetcher by reading <root>/<source>.json,
// the way the teacher's Backtest.LoadDataFromJSON reads a historical
// data fixture instead of calling a live exchange. A production
// deployment wires a real per-source HTTP client behind the same
// Fetcher interface; FixtureFetcher exists so the pipeline, and
// cmd/bankupdate, can run end to end against committed fixtures for
// local development and the cmd/replay sanity check, without a
// network dependency.
type FixtureFetcher struct {
	Root string
}

// Fetch decodes source's fixture file into raw records; normalize
// still runs on every one of them in the pipeline's bank-update step.
func (f FixtureFetcher) Fetch(ctx context.Context, source question.Source) ([]adapter.RawRecord, map[string][]adapter.RawObservation, error) {
	path := filepath.Join(f.Root, string(source)+".json")
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: reading fixture %s: %w", path, err)
	}

	var file fixtureFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, nil, fmt.Errorf("pipeline: decoding fixture %s: %w", path, err)
	}

	observations := make(map[string][]adapter.RawObservation, len(file.Observations))
	for id, points := range file.Observations {
		out := make([]adapter.RawObservation, 0, len(points))
		for _, p := range points {
			day, err := question.ParseDay(p.Date)
			if err != nil {
				return nil, nil, fmt.Errorf("pipeline: fixture %s id %s: %w", path, id, err)
			}
			out = append(out, adapter.RawObservation{Date: day, Value: p.Value})
		}
		observations[id] = out
	}

	return file.Records, observations, nil
}
