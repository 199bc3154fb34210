// scorer is the standalone job binary that runs the scoring stage
// alone: load the processed forecast sets for every forecast_due_date
// listed in -due-dates, flatten them into scoring rows, and publish
// the leaderboard. It applies no inclusion cutoff of its own: it
// scores exactly the due dates it is given.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/forecastbench/forecastbench/pkg/bench/bank"
	"github.com/forecastbench/forecastbench/pkg/bench/pipeline"
	"github.com/forecastbench/forecastbench/pkg/bench/question"
	"github.com/forecastbench/forecastbench/pkg/bench/score"
	"github.com/forecastbench/forecastbench/pkg/benchmetrics"
	"github.com/forecastbench/forecastbench/pkg/config"
	"github.com/forecastbench/forecastbench/pkg/logger"
)

var (
	dueDatesFlag      = flag.String("due-dates", "", "comma-separated forecast_due_dates to include, YYYY-MM-DD")
	superforecaster   = flag.String("superforecaster-pk", "", "model_pk (org::model::model_org) to compare against as the superforecaster baseline")
	publicComparison  = flag.String("public-pk", "", "model_pk to compare against as the public baseline")
	outFlag           = flag.String("out", "", "if set, write the leaderboard JSON to this path instead of storage")
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

	if *dueDatesFlag == "" {
		log.Fatal().Msg("scorer: -due-dates is required")
	}
	dueDates, err := parseDueDates(*dueDatesFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("scorer: parsing -due-dates")
	}
	if *superforecaster == "" || *publicComparison == "" {
		log.Fatal().Msg("scorer: -superforecaster-pk and -public-pk are required")
	}

	objStore, err := cfg.BuildStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("scorer: building object store")
	}
	b := bank.New(objStore)
	sets := bank.NewSetStore(objStore)

	var processed []*question.ProcessedForecastSet
	for _, due := range dueDates {
		keys, err := sets.ListProcessedForecastSets(ctx, due)
		if err != nil {
			log.Fatal().Err(err).Str("due_date", due.String()).Msg("scorer: listing processed forecast sets")
		}
		for _, key := range keys {
			pfs, err := sets.LoadProcessedForecastSet(ctx, key)
			if err != nil {
				log.Error().Err(err).Str("key", key).Msg("scorer: skipping unreadable processed forecast set")
				continue
			}
			processed = append(processed, pfs)
		}
	}

	p := pipeline.New(b, nil, nil, nil, nil, nil, pipeline.Config{
		Score:             score.DefaultConfig(),
		SuperforecasterPK: *superforecaster,
		PublicPK:          *publicComparison,
	})

	start := time.Now()
	lb, err := p.RunScore(ctx, processed)
	elapsed := time.Since(start).Seconds()
	metrics.ScoringJobSeconds.WithLabelValues("total").Observe(elapsed)
	if err != nil {
		metrics.RecordJobRun("scorer", "error", elapsed)
		log.Fatal().Err(err).Msg("scorer: run failed")
	}
	metrics.RecordJobRun("scorer", "ok", elapsed)

	body, err := json.MarshalIndent(lb, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("scorer: marshaling leaderboard")
	}
	if *outFlag != "" {
		if err := writeFile(*outFlag, body); err != nil {
			log.Fatal().Err(err).Msg("scorer: writing leaderboard file")
		}
	} else if err := objStore.Put(ctx, "leaderboards/"+time.Now().UTC().Format("2006-01-02")+".json", body); err != nil {
		log.Fatal().Err(err).Msg("scorer: writing leaderboard to store")
	}

	log.Info().Int("entries", len(lb.Entries)).Msg("scorer: done")
}

func parseDueDates(s string) ([]question.Day, error) {
	var out []question.Day
	cur := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			part := s[cur:i]
			cur = i + 1
			if part == "" {
				continue
			}
			d, err := question.ParseDay(part)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
	}
	return out, nil
}
