// Package curator implements the Question-Set Curator: filtering,
// greedy cross-source allocation, stratified (market) or even-fill
// (dataset) sampling, horizon expansion, and deterministic human-set
// derivation.
package curator

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/forecastbench/forecastbench/pkg/bench/question"
)

// Config is the curator's enumerated option struct, replacing the
// scattered module-level constants a less structured implementation
// would read at import time.
type Config struct {
	LLMN             int
	HumanN           int
	MarketSources    []question.Source
	DatasetSources   []question.Source
	Seed             int64
	FreezeWindowDays int // days after release during which submitters may submit
}

// DefaultConfig returns the production-shaped default.
func DefaultConfig() Config {
	return Config{
		LLMN:             1000,
		HumanN:           200,
		FreezeWindowDays: 7,
		Seed:             0,
	}
}

// candidate bundles a question with the derived fields the sampler
// needs, so the sampling pass never re-walks the question variant
// switch.
type candidate struct {
	q                question.Question
	source           question.Source
	category         question.Category
	isMarket         bool
	freezeValue      decimal.Decimal
	daysToClose      int
	forecastHorizons []int
}

// Filter applies the curation drop rules to a source's raw question
// list, returning the surviving candidates.
func Filter(source question.Source, questions []question.Question, asOf question.Day, freezeWindowDays int) []candidate {
	allForecastsDue := asOf.AddDays(freezeWindowDays)
	var out []candidate

	for _, q := range questions {
		h := q.Head()
		if !h.ValidQuestion {
			continue
		}
		if h.Category == question.CategoryOther {
			continue
		}
		if h.Resolved {
			continue
		}
		if h.FreezeDatetimeValue == "" || h.FreezeDatetimeValue == "N/A" {
			continue
		}

		c := candidate{q: q, source: source, category: h.Category}

		switch v := q.(type) {
		case *question.MarketQuestion:
			closeDay := question.NewDay(v.MarketInfoCloseDatetime)
			if !closeDay.After(allForecastsDue) {
				continue
			}
			fv, err := decimal.NewFromString(h.FreezeDatetimeValue)
			if err != nil {
				continue
			}
			c.isMarket = true
			c.freezeValue = fv
			c.daysToClose = closeDay.Sub(asOf)
		case *question.NumericQuestion:
			if len(v.ForecastHorizons) == 0 {
				continue
			}
			c.forecastHorizons = v.ForecastHorizons
		case *question.EventCountQuestion:
			if len(v.ForecastHorizons) == 0 {
				continue
			}
			c.forecastHorizons = v.ForecastHorizons
		case *question.EncyclopedicQuestion:
			if len(v.ForecastHorizons) == 0 {
				continue
			}
			c.forecastHorizons = v.ForecastHorizons
		default:
			continue
		}

		out = append(out, c)
	}
	return out
}

// BinTelemetry is one row of the per-source {bin, got, want,
// available} table the curator emits, so silent bin starvation shows
// up in operational telemetry instead of a quietly thin leaderboard.
type BinTelemetry struct {
	Source    question.Source
	Bin       string
	Got       int
	Want      int
	Available int
}

// Shortfall reports whether this bin fell short of its target.
func (t BinTelemetry) Shortfall() bool { return t.Got < t.Want }

// SampleMarket stratified-samples exactly n market questions from
// candidates by composite bin. Rounding residuals are distributed to
// the highest-weight bins (to fill) or lowest-weight bins (to trim).
func SampleMarket(source question.Source, candidates []candidate, n int, rng *rand.Rand) ([]candidate, []BinTelemetry, error) {
	type bin struct {
		key    CompositeBin
		weight decimal.Decimal
		items  []candidate
	}
	bins := make(map[string]*bin)
	order := make([]string, 0)

	for _, mv := range MarketValueBins {
		for _, h := range TimeHorizonBins {
			key := CompositeBin{MarketValueLabel: mv.Label, HorizonLabel: h.Label}
			bins[key.Label()] = &bin{key: key, weight: CompositeWeight(mv, h)}
			order = append(order, key.Label())
		}
	}

	totalWeight := decimal.Zero
	for _, b := range bins {
		totalWeight = totalWeight.Add(b.weight)
	}

	for _, c := range candidates {
		if !c.isMarket {
			continue
		}
		mvBin, err := GetMarketValueBin(c.freezeValue)
		if err != nil {
			return nil, nil, err
		}
		hBin, err := GetTimeHorizonBin(c.daysToClose)
		if err != nil {
			return nil, nil, err
		}
		key := CompositeBin{MarketValueLabel: mvBin.Label, HorizonLabel: hBin.Label}
		b := bins[key.Label()]
		b.items = append(b.items, c)
	}

	sort.Strings(order)

	targets := make([]int, len(order))
	weights := make([]float64, len(order))
	availability := make([]int, len(order))
	for i, key := range order {
		b := bins[key]
		normWeight, _ := b.weight.Div(totalWeight).Float64()
		weights[i] = normWeight
		availability[i] = len(b.items)
		raw := b.weight.Div(totalWeight).Mul(decimal.NewFromInt(int64(n)))
		targets[i] = int(raw.Round(0).IntPart())
		if targets[i] > availability[i] {
			targets[i] = availability[i]
		}
	}
	targets = DistributeRoundingResidual(targets, weights, availability, n)

	var sampled []candidate
	var telemetry []BinTelemetry
	for i, key := range order {
		b := bins[key]
		want := targets[i]
		items := append([]candidate(nil), b.items...)
		rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		if want > len(items) {
			want = len(items)
		}
		sampled = append(sampled, items[:want]...)
		telemetry = append(telemetry, BinTelemetry{
			Source: source, Bin: key, Got: want, Want: targets[i], Available: len(items),
		})
	}
	return sampled, telemetry, nil
}

// SampleDataset evenly fills n dataset questions from candidates
// across category, using the same greedy even-fill as cross-source
// allocation.
func SampleDataset(source question.Source, candidates []candidate, n int, rng *rand.Rand) ([]candidate, []BinTelemetry, error) {
	byCategory := make(map[question.Category][]candidate)
	var categories []question.Category
	for _, c := range candidates {
		if _, ok := byCategory[c.category]; !ok {
			categories = append(categories, c.category)
		}
		byCategory[c.category] = append(byCategory[c.category], c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	availability := make([]int, len(categories))
	for i, cat := range categories {
		availability[i] = len(byCategory[cat])
	}
	targets := GreedyEvenFill(n, availability)

	var sampled []candidate
	var telemetry []BinTelemetry
	for i, cat := range categories {
		items := append([]candidate(nil), byCategory[cat]...)
		rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		want := targets[i]
		if want > len(items) {
			want = len(items)
		}
		sampled = append(sampled, items[:want]...)
		telemetry = append(telemetry, BinTelemetry{
			Source: source, Bin: string(cat), Got: want, Want: targets[i], Available: len(items),
		})
	}
	return sampled, telemetry, nil
}

// Expand attaches resolution_dates = forecast_due_date + h for each
// horizon on dataset questions.
func Expand(forecastDueDate question.Day, candidates []candidate) []question.SetEntry {
	entries := make([]question.SetEntry, 0, len(candidates))
	for _, c := range candidates {
		e := question.SetEntry{ID: c.q.Head().ID, Source: c.source, Question: c.q}
		if !c.isMarket {
			for _, h := range c.forecastHorizons {
				e.ResolutionDates = append(e.ResolutionDates, forecastDueDate.AddDays(h))
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// DeriveHumanSet samples humanN entries uniformly at random from the
// produced LLM set, per source, deterministically given rng.
// Allocation across sources uses the same greedy even-fill so the
// human set's per-source shares track the LLM set's.
func DeriveHumanSet(llmEntries []question.SetEntry, humanN int, rng *rand.Rand) []question.SetEntry {
	bySource := make(map[question.Source][]question.SetEntry)
	var sources []question.Source
	for _, e := range llmEntries {
		if _, ok := bySource[e.Source]; !ok {
			sources = append(sources, e.Source)
		}
		bySource[e.Source] = append(bySource[e.Source], e)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

	availability := make([]int, len(sources))
	for i, s := range sources {
		availability[i] = len(bySource[s])
	}
	targets := GreedyEvenFill(humanN, availability)

	var out []question.SetEntry
	for i, s := range sources {
		items := append([]question.SetEntry(nil), bySource[s]...)
		rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		want := targets[i]
		if want > len(items) {
			want = len(items)
		}
		out = append(out, items[:want]...)
	}
	return out
}

// NewRand returns a deterministic RNG seeded from cfg.Seed so two
// runs over the same inputs produce byte-identical question sets.
func NewRand(cfg Config) *rand.Rand {
	return rand.New(rand.NewSource(cfg.Seed))
}

// BuildQuestionSet runs the full filter -> allocate -> sample ->
// expand pipeline across every configured market and dataset source,
// returning the LLM set plus aggregated telemetry.
func BuildQuestionSet(cfg Config, forecastDueDate question.Day, bySourceQuestions map[question.Source][]question.Question) (*question.Set, []BinTelemetry, error) {
	rng := NewRand(cfg)

	marketTarget := cfg.LLMN / 2
	datasetTarget := cfg.LLMN - marketTarget

	marketAvail := make([]int, len(cfg.MarketSources))
	marketCandidates := make([][]candidate, len(cfg.MarketSources))
	for i, s := range cfg.MarketSources {
		marketCandidates[i] = Filter(s, bySourceQuestions[s], forecastDueDate, cfg.FreezeWindowDays)
		marketAvail[i] = len(marketCandidates[i])
	}
	marketAlloc := GreedyEvenFill(marketTarget, marketAvail)

	datasetAvail := make([]int, len(cfg.DatasetSources))
	datasetCandidates := make([][]candidate, len(cfg.DatasetSources))
	for i, s := range cfg.DatasetSources {
		datasetCandidates[i] = Filter(s, bySourceQuestions[s], forecastDueDate, cfg.FreezeWindowDays)
		datasetAvail[i] = len(datasetCandidates[i])
	}
	datasetAlloc := GreedyEvenFill(datasetTarget, datasetAvail)

	var allEntries []question.SetEntry
	var telemetry []BinTelemetry

	for i, s := range cfg.MarketSources {
		sampled, tel, err := SampleMarket(s, marketCandidates[i], marketAlloc[i], rng)
		if err != nil {
			return nil, nil, fmt.Errorf("curator: sampling market source %s: %w", s, err)
		}
		allEntries = append(allEntries, Expand(forecastDueDate, sampled)...)
		telemetry = append(telemetry, tel...)
	}

	for i, s := range cfg.DatasetSources {
		sampled, tel, err := SampleDataset(s, datasetCandidates[i], datasetAlloc[i], rng)
		if err != nil {
			return nil, nil, fmt.Errorf("curator: sampling dataset source %s: %w", s, err)
		}
		allEntries = append(allEntries, Expand(forecastDueDate, sampled)...)
		telemetry = append(telemetry, tel...)
	}

	sort.Slice(allEntries, func(i, j int) bool { return allEntries[i].ID < allEntries[j].ID })

	set := &question.Set{
		ForecastDueDate: forecastDueDate,
		QuestionSet:     forecastDueDate.String() + "-llm.json",
		Questions:       allEntries,
	}
	return set, telemetry, nil
}
