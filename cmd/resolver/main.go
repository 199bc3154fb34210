// resolver is the standalone job binary that runs the resolution
// stage alone: load a curated question set plus every submitted
// forecast file due against it, resolve and impute each, and write
// the processed forecast sets and the shared resolution set. It is
// meant to run on a per-question-set delayed trigger, a fixed number
// of days (the operational lag) after the question set's
// forecast_due_date, once every question's resolution horizon has had
// a chance to elapse.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/forecastbench/forecastbench/pkg/bench/adapter"
	"github.com/forecastbench/forecastbench/pkg/bench/bank"
	"github.com/forecastbench/forecastbench/pkg/bench/idhash"
	"github.com/forecastbench/forecastbench/pkg/bench/pipeline"
	"github.com/forecastbench/forecastbench/pkg/bench/question"
	"github.com/forecastbench/forecastbench/pkg/bench/resolve"
	"github.com/forecastbench/forecastbench/pkg/benchmetrics"
	"github.com/forecastbench/forecastbench/pkg/config"
	"github.com/forecastbench/forecastbench/pkg/logger"
)

var (
	dueDateFlag  = flag.String("due-date", "", "forecast_due_date of the question set to resolve, YYYY-MM-DD")
	asOfFlag     = flag.String("as-of", "", "processing date, YYYY-MM-DD (default: today)")
	setKindFlag  = flag.String("set-kind", "llm", "question-set kind to resolve against: llm or human")
	remapFile    = flag.String("remap-table", "", "path to the operator-maintained remap table JSON file")
	nullifyFile  = flag.String("nullify-table", "", "path to the operator-maintained nullify table JSON file")
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

	if *dueDateFlag == "" {
		log.Fatal().Msg("resolver: -due-date is required")
	}
	due, err := question.ParseDay(*dueDateFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("resolver: parsing -due-date")
	}
	asOf, err := parseAsOf(*asOfFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("resolver: parsing -as-of")
	}

	objStore, err := cfg.BuildStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("resolver: building object store")
	}
	b := bank.New(objStore)
	registry := adapter.NewDefaultRegistry()
	sets := bank.NewSetStore(objStore)

	remap, err := idhash.LoadRemapTable(*remapFile)
	if err != nil {
		log.Fatal().Err(err).Msg("resolver: loading remap table")
	}
	nullify, err := idhash.LoadNullifyTable(*nullifyFile)
	if err != nil {
		log.Fatal().Err(err).Msg("resolver: loading nullify table")
	}
	policy := resolve.NewImputationPolicy(nil)

	set, err := sets.LoadQuestionSet(ctx, due, *setKindFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("resolver: loading question set")
	}
	if err := b.Hydrate(ctx, set); err != nil {
		log.Fatal().Err(err).Msg("resolver: hydrating question set")
	}

	keys, err := sets.ListForecastSets(ctx, due)
	if err != nil {
		log.Fatal().Err(err).Msg("resolver: listing forecast sets")
	}
	forecastSets := make([]*question.ForecastSet, 0, len(keys))
	for _, key := range keys {
		fs, err := sets.LoadForecastSet(ctx, key)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("resolver: skipping unreadable forecast set")
			metrics.ResolutionFilesProcessed.WithLabelValues("error").Inc()
			continue
		}
		forecastSets = append(forecastSets, fs)
	}

	p := pipeline.New(b, registry, remap, nullify, policy, nil, pipeline.Config{})

	start := time.Now()
	processed, resolutionSets, err := p.RunResolve(ctx, set, asOf, forecastSets)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordJobRun("resolver", "error", elapsed)
		log.Fatal().Err(err).Msg("resolver: run failed")
	}
	metrics.RecordJobRun("resolver", "ok", elapsed)

	for _, pfs := range processed {
		name := pfs.Organization + "-" + pfs.Model
		if err := sets.WriteProcessedForecastSet(ctx, pfs, name); err != nil {
			log.Error().Err(err).Str("model", name).Msg("resolver: writing processed forecast set")
			metrics.ResolutionFilesProcessed.WithLabelValues("error").Inc()
			continue
		}
		metrics.ResolutionFilesProcessed.WithLabelValues("ok").Inc()
		for _, row := range pfs.Forecasts {
			if row.Imputed {
				metrics.ResolutionRowsImputed.WithLabelValues(pfs.Model).Inc()
			}
		}
	}

	// Ground truth does not vary by submitter, so every processed
	// forecast set's resolution set is identical for the same question
	// set; write the first one as the canonical resolution_sets/ file.
	if len(resolutionSets) > 0 {
		if err := sets.WriteResolutionSet(ctx, resolutionSets[0]); err != nil {
			log.Fatal().Err(err).Msg("resolver: writing resolution set")
		}
	}

	for _, v := range policy.Violations() {
		metrics.RecordImputationViolation(v.Model, "overall")
		log.Warn().Str("organization", v.Organization).Str("model", v.Model).
			Float64("imputed_pct", v.ImputedPct).Msg("resolver: imputation ceiling exceeded")
	}

	log.Info().Int("forecast_sets", len(processed)).Msg("resolver: done")
}

func parseAsOf(s string) (question.Day, error) {
	if s == "" {
		return question.ParseDay(time.Now().UTC().Format("2006-01-02"))
	}
	return question.ParseDay(s)
}
