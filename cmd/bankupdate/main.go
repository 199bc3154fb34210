// bankupdate is the standalone job binary that runs the bank-update
// stage alone: fetch each configured source's current question list
// and new raw observations, fold them into the question bank, and
// exit. It is meant to be invoked on its own fixed cadence by an
// external scheduler (cron, a Kubernetes CronJob) — cmd/scheduler
// exists separately for local/dev runs that want all four stages in
// one process.
package main

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/forecastbench/forecastbench/pkg/bench/adapter"
	"github.com/forecastbench/forecastbench/pkg/bench/bank"
	"github.com/forecastbench/forecastbench/pkg/bench/question"
	"github.com/forecastbench/forecastbench/pkg/benchmetrics"
	"github.com/forecastbench/forecastbench/pkg/config"
	"github.com/forecastbench/forecastbench/pkg/logger"

	"github.com/forecastbench/forecastbench/pkg/bench/pipeline"
)

var (
	sourcesFlag  = flag.String("sources", "fred,dbnomics,yfinance,acled,wikipedia,manifold,metaculus,infer,polymarket", "comma-separated sources to update")
	fixtureRoot  = flag.String("fixtures", "", "directory of <source>.json fixtures to fetch from (local/dev only)")
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

	objStore, err := cfg.BuildStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("bankupdate: building object store")
	}
	b := bank.New(objStore)
	registry := adapter.NewDefaultRegistry()

	var fetcher pipeline.Fetcher
	if *fixtureRoot != "" {
		fetcher = pipeline.FixtureFetcher{Root: *fixtureRoot}
	} else {
		log.Fatal().Msg("bankupdate: no live fetcher wired; pass -fixtures for local/dev runs")
	}

	sources := parseSources(*sourcesFlag)
	p := pipeline.New(b, registry, nil, nil, nil, fetcher, pipeline.Config{Sources: sources})
	p.OnStageComplete(func(r *pipeline.StageResult) {
		ev := log.Info()
		if !r.Success {
			ev = log.Error()
		}
		ev.Str("run_id", r.RunID).Str("stage", string(r.Stage)).Dur("duration", r.Duration).
			Interface("data", r.Data).Str("error", r.Error).Msg("bankupdate: stage complete")
	})

	start := time.Now()
	questions, err := p.RunBankUpdate(ctx)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordJobRun("bankupdate", "error", elapsed)
		log.Fatal().Err(err).Msg("bankupdate: run failed")
	}
	metrics.RecordJobRun("bankupdate", "ok", elapsed)

	total := 0
	for source, qs := range questions {
		total += len(qs)
		metrics.BankQuestionsWritten.WithLabelValues(string(source)).Add(float64(len(qs)))
	}
	log.Info().Int("total_questions", total).Msg("bankupdate: done")
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
