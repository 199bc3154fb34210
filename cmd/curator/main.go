// curator is the standalone job binary that runs the question-set
// curation stage alone: read the bank's current question tables for
// the configured sources, sample an LLM question set plus a derived
// human question set, and write both to the question_sets/ key space.
// It is meant to be invoked once per freeze cycle by an external
// scheduler.
package main

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/forecastbench/forecastbench/pkg/bench/adapter"
	"github.com/forecastbench/forecastbench/pkg/bench/bank"
	"github.com/forecastbench/forecastbench/pkg/bench/curator"
	"github.com/forecastbench/forecastbench/pkg/bench/pipeline"
	"github.com/forecastbench/forecastbench/pkg/bench/question"
	"github.com/forecastbench/forecastbench/pkg/benchmetrics"
	"github.com/forecastbench/forecastbench/pkg/config"
	"github.com/forecastbench/forecastbench/pkg/logger"
)

var (
	dueDateFlag    = flag.String("due-date", "", "forecast_due_date, YYYY-MM-DD (default: today)")
	llmNFlag       = flag.Int("llm-n", 1000, "target LLM question-set size")
	humanNFlag     = flag.Int("human-n", 200, "target human question-set size")
	marketSources  = flag.String("market-sources", "manifold,metaculus,infer,polymarket", "comma-separated market sources")
	datasetSources = flag.String("dataset-sources", "fred,dbnomics,yfinance,acled,wikipedia", "comma-separated dataset sources")
	freezeWindow   = flag.Int("freeze-window-days", 7, "days after release during which submitters may still submit")
)

func main() {
	flag.Parse()
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobal(log)
	metrics := benchmetrics.Default()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.JobTimeout)
	defer cancel()

	due, err := parseDueDate(*dueDateFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("curator: parsing -due-date")
	}

	objStore, err := cfg.BuildStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("curator: building object store")
	}
	b := bank.New(objStore)
	registry := adapter.NewDefaultRegistry()
	sets := bank.NewSetStore(objStore)

	market := parseSources(*marketSources)
	dataset := parseSources(*datasetSources)
	curCfg := curator.Config{
		LLMN: *llmNFlag, HumanN: *humanNFlag, FreezeWindowDays: *freezeWindow,
		MarketSources: market, DatasetSources: dataset,
	}

	p := pipeline.New(b, registry, nil, nil, nil, nil, pipeline.Config{
		Sources: append(append([]question.Source(nil), market...), dataset...),
		Curator: curCfg,
	})
	p.OnStageComplete(func(r *pipeline.StageResult) {
		log.Info().Str("run_id", r.RunID).Str("stage", string(r.Stage)).
			Dur("duration", r.Duration).Interface("data", r.Data).Msg("curator: stage complete")
	})

	start := time.Now()
	set, telemetry, err := p.RunCurate(ctx, due)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordJobRun("curator", "error", elapsed)
		log.Fatal().Err(err).Msg("curator: run failed")
	}
	metrics.RecordJobRun("curator", "ok", elapsed)

	for _, row := range telemetry {
		metrics.CuratorBinGot.WithLabelValues(string(row.Source), row.Bin).Set(float64(row.Got))
		metrics.CuratorBinWant.WithLabelValues(string(row.Source), row.Bin).Set(float64(row.Want))
		if row.Shortfall() {
			metrics.CuratorBinShortfall.WithLabelValues(string(row.Source), row.Bin).Inc()
			log.Warn().Str("source", string(row.Source)).Str("bin", row.Bin).
				Int("got", row.Got).Int("want", row.Want).Msg("curator: bin shortfall")
		}
	}

	if err := sets.WriteQuestionSet(ctx, set, "llm"); err != nil {
		log.Fatal().Err(err).Msg("curator: writing llm question set")
	}

	rng := curator.NewRand(curCfg)
	humanEntries := curator.DeriveHumanSet(set.Questions, curCfg.HumanN, rng)
	humanSet := &question.Set{ForecastDueDate: due, QuestionSet: due.String() + "-human.json", Questions: humanEntries}
	if err := sets.WriteQuestionSet(ctx, humanSet, "human"); err != nil {
		log.Fatal().Err(err).Msg("curator: writing human question set")
	}

	metrics.CuratorSetSize.WithLabelValues("all", "llm").Set(float64(len(set.Questions)))
	metrics.CuratorSetSize.WithLabelValues("all", "human").Set(float64(len(humanSet.Questions)))
	log.Info().Int("llm_size", len(set.Questions)).Int("human_size", len(humanSet.Questions)).Msg("curator: done")
}

func parseDueDate(s string) (question.Day, error) {
	if s == "" {
		return question.ParseDay(time.Now().UTC().Format("2006-01-02"))
	}
	return question.ParseDay(s)
}

func parseSources(s string) []question.Source {
	parts := strings.Split(s, ",")
	out := make([]question.Source, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, question.Source(p))
	}
	return out
}
