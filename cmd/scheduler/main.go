// scheduler is the long-running daemon that re-runs bank update,
// curation, resolution, and scoring on their own fixed cadences in one
// process, for local development and small deployments that don't
// want four separate externally-triggered cron jobs. Each of the four
// standalone binaries (cmd/bankupdate, cmd/curator, cmd/resolver,
// cmd/scorer) remains the production path for a per-stage scheduled
// job; this daemon exists so the whole pipeline can be exercised end
// to end against one long-lived process and a single ops-log feed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/pkg/bench/adapter"
	"github.com/forecastbench/forecastbench/pkg/bench/bank"
	"github.com/forecastbench/forecastbench/pkg/bench/curator"
	"github.com/forecastbench/forecastbench/pkg/bench/idhash"
	"github.com/forecastbench/forecastbench/pkg/bench/pipeline"
	"github.com/forecastbench/forecastbench/pkg/bench/question"
	"github.com/forecastbench/forecastbench/pkg/bench/resolve"
	"github.com/forecastbench/forecastbench/pkg/bench/score"
	"github.com/forecastbench/forecastbench/pkg/bench/store"
	"github.com/forecastbench/forecastbench/pkg/benchmetrics"
	"github.com/forecastbench/forecastbench/pkg/config"
	"github.com/forecastbench/forecastbench/pkg/logger"
	"github.com/forecastbench/forecastbench/pkg/opslog"
)

var (
	fixtureRoot     = flag.String("fixtures", "", "directory of <source>.json fixtures to fetch from (local/dev only)")
	marketSources   = flag.String("market-sources", "manifold,metaculus,infer,polymarket", "comma-separated market sources")
	datasetSources  = flag.String("dataset-sources", "fred,dbnomics,yfinance,acled,wikipedia", "comma-separated dataset sources")
	llmN            = flag.Int("llm-n", 1000, "target LLM question-set size")
	humanN          = flag.Int("human-n", 200, "target human question-set size")
	freezeWindow    = flag.Int("freeze-window-days", 7, "days after release during which submitters may still submit")
	resolutionLag   = flag.Int("resolution-lag-days", 14, "days after forecast_due_date before a question set is resolved")
	inclusionCutoff = flag.Int("inclusion-cutoff-days", 50, "minimum age, in days, of a forecast_due_date to be scored")
	superforecaster = flag.String("superforecaster-pk", "", "model_pk to compare against as the superforecaster baseline")
	publicPK        = flag.String("public-pk", "", "model_pk to compare against as the public baseline")

	bankUpdateCron = flag.String("bankupdate-cron", "0 2 * * *", "cron spec for the bank-update stage")
	curateCron     = flag.String("curate-cron", "0 3 * * 1", "cron spec for the curation stage (default: weekly)")
	resolveCron    = flag.String("resolve-cron", "0 4 * * *", "cron spec for the resolution stage")
	scoreCron      = flag.String("score-cron", "0 5 * * *", "cron spec for the scoring stage")
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

	hub := opslog.NewHub(log)
	go hub.Run()
	status := &schedulerStatus{}
	opsServer := &http.Server{Addr: cfg.OpsLogAddr, Handler: opsMux(hub, status, metrics)}
	go func() {
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("scheduler: ops log server stopped")
		}
	}()

	ctx := context.Background()
	objStore, err := cfg.BuildStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler: building object store")
	}
	b := bank.New(objStore)
	sets := bank.NewSetStore(objStore)
	registry := adapter.NewDefaultRegistry()

	var fetcher pipeline.Fetcher
	if *fixtureRoot != "" {
		fetcher = pipeline.FixtureFetcher{Root: *fixtureRoot}
	}

	market := parseSources(*marketSources)
	dataset := parseSources(*datasetSources)
	allSources := append(append([]question.Source(nil), market...), dataset...)

	curCfg := curator.Config{
		LLMN: *llmN, HumanN: *humanN, FreezeWindowDays: *freezeWindow,
		MarketSources: market, DatasetSources: dataset,
	}

	p := pipeline.New(b, registry, idhash.NewRemapTable(), idhash.NewNullifyTable(), resolve.NewImputationPolicy(nil), fetcher, pipeline.Config{
		Sources:           allSources,
		Curator:           curCfg,
		Score:             score.DefaultConfig(),
		SuperforecasterPK: *superforecaster,
		PublicPK:          *publicPK,
	})
	p.OnStageComplete(func(r *pipeline.StageResult) {
		ev := log.Info()
		if !r.Success {
			ev = log.Error()
		}
		ev.Str("run_id", r.RunID).Str("stage", string(r.Stage)).Dur("duration", r.Duration).
			Str("error", r.Error).Msg("scheduler: stage complete")
		hub.BroadcastStageComplete(r.RunID, string(r.Stage), r.Data)
		status.record(r)
	})
	p.OnError(func(runID string, err error) {
		log.Error().Str("run_id", runID).Err(err).Msg("scheduler: job error")
		hub.BroadcastJobError(runID, err, "pipeline")
	})

	sched := cron.New()
	mustAdd(log, sched, *bankUpdateCron, "bankupdate", func() {
		runStage(log, metrics, "bankupdate", cfg.JobTimeout, func(ctx context.Context) error {
			if fetcher == nil {
				return nil
			}
			_, err := p.RunBankUpdate(ctx)
			return err
		})
	})
	mustAdd(log, sched, *curateCron, "curator", func() {
		runStage(log, metrics, "curator", cfg.JobTimeout, func(ctx context.Context) error {
			return runCurateOnce(ctx, log, p, sets, curCfg)
		})
	})
	mustAdd(log, sched, *resolveCron, "resolver", func() {
		runStage(log, metrics, "resolver", cfg.JobTimeout, func(ctx context.Context) error {
			return runResolveOnce(ctx, log, p, b, sets, *resolutionLag)
		})
	})
	mustAdd(log, sched, *scoreCron, "scorer", func() {
		runStage(log, metrics, "scorer", cfg.JobTimeout, func(ctx context.Context) error {
			return runScoreOnce(ctx, log, p, sets, objStore, *inclusionCutoff, *superforecaster, *publicPK)
		})
	})

	sched.Start()
	log.Info().Str("ops_log_addr", cfg.OpsLogAddr).Msg("scheduler: started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("scheduler: shutting down")
	stopCtx := sched.Stop()
	<-stopCtx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = opsServer.Shutdown(shutdownCtx)
}

func mustAdd(log zerolog.Logger, sched *cron.Cron, spec, name string, fn func()) {
	if _, err := sched.AddFunc(spec, fn); err != nil {
		log.Fatal().Err(err).Str("stage", name).Str("spec", spec).Msg("scheduler: registering cron entry")
	}
}

func runStage(log zerolog.Logger, metrics *benchmetrics.Metrics, name string, timeout time.Duration, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordJobRun(name, "error", elapsed)
		log.Error().Str("stage", name).Err(err).Msg("scheduler: stage run failed")
		return
	}
	metrics.RecordJobRun(name, "ok", elapsed)
}

func runCurateOnce(ctx context.Context, log zerolog.Logger, p *pipeline.Pipeline, sets *bank.SetStore, curCfg curator.Config) error {
	due := question.NewDay(time.Now().UTC())
	set, telemetry, err := p.RunCurate(ctx, due)
	if err != nil {
		return err
	}
	for _, row := range telemetry {
		if row.Shortfall() {
			log.Warn().Str("source", string(row.Source)).Str("bin", row.Bin).
				Int("got", row.Got).Int("want", row.Want).Msg("scheduler: curator bin shortfall")
		}
	}
	if err := sets.WriteQuestionSet(ctx, set, "llm"); err != nil {
		return err
	}
	rng := curator.NewRand(curCfg)
	humanEntries := curator.DeriveHumanSet(set.Questions, curCfg.HumanN, rng)
	humanSet := &question.Set{ForecastDueDate: due, QuestionSet: due.String() + "-human.json", Questions: humanEntries}
	return sets.WriteQuestionSet(ctx, humanSet, "human")
}

func runResolveOnce(ctx context.Context, log zerolog.Logger, p *pipeline.Pipeline, b *bank.Bank, sets *bank.SetStore, resolutionLagDays int) error {
	due := question.NewDay(time.Now().UTC()).AddDays(-resolutionLagDays)
	set, err := sets.LoadQuestionSet(ctx, due, "llm")
	if err != nil {
		log.Warn().Str("due_date", due.String()).Err(err).Msg("scheduler: no question set due for resolution yet")
		return nil
	}
	if err := b.Hydrate(ctx, set); err != nil {
		return err
	}
	keys, err := sets.ListForecastSets(ctx, due)
	if err != nil {
		return err
	}
	forecastSets := make([]*question.ForecastSet, 0, len(keys))
	for _, key := range keys {
		fs, err := sets.LoadForecastSet(ctx, key)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("scheduler: skipping unreadable forecast set")
			continue
		}
		forecastSets = append(forecastSets, fs)
	}
	processed, resolutionSets, err := p.RunResolve(ctx, set, question.NewDay(time.Now().UTC()), forecastSets)
	if err != nil {
		return err
	}
	for _, pfs := range processed {
		if err := sets.WriteProcessedForecastSet(ctx, pfs, pfs.Organization+"-"+pfs.Model); err != nil {
			log.Error().Err(err).Str("model", pfs.Model).Msg("scheduler: writing processed forecast set")
		}
	}
	if len(resolutionSets) > 0 {
		return sets.WriteResolutionSet(ctx, resolutionSets[0])
	}
	return nil
}

func runScoreOnce(ctx context.Context, log zerolog.Logger, p *pipeline.Pipeline, sets *bank.SetStore, objStore store.ObjectStore, inclusionCutoffDays int, superforecasterPK, publicPK string) error {
	if superforecasterPK == "" || publicPK == "" {
		log.Warn().Msg("scheduler: skipping score stage, -superforecaster-pk/-public-pk not set")
		return nil
	}
	today := question.NewDay(time.Now().UTC())
	cutoff := today.AddDays(-inclusionCutoffDays)
	keys, err := objStore.List(ctx, "processed_forecast_sets/")
	if err != nil {
		return err
	}
	var processed []*question.ProcessedForecastSet
	for _, key := range keys {
		due, ok := dueDateFromProcessedKey(key)
		if !ok || due.After(cutoff) {
			continue
		}
		pfs, err := sets.LoadProcessedForecastSet(ctx, key)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("scheduler: skipping unreadable processed forecast set")
			continue
		}
		processed = append(processed, pfs)
	}
	lb, err := p.RunScore(ctx, processed)
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(lb, "", "  ")
	if err != nil {
		return err
	}
	return objStore.Put(ctx, "leaderboards/"+today.String()+".json", body)
}

// dueDateFromProcessedKey extracts the forecast_due_date directory
// segment from a "processed_forecast_sets/<due>/<name>.json" key.
func dueDateFromProcessedKey(key string) (question.Day, bool) {
	const prefix = "processed_forecast_sets/"
	if !strings.HasPrefix(key, prefix) {
		return question.Day{}, false
	}
	rest := key[len(prefix):]
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return question.Day{}, false
	}
	due, err := question.ParseDay(rest[:idx])
	if err != nil {
		return question.Day{}, false
	}
	return due, true
}

// schedulerStatus holds the most recent result of each of the four
// stages, for the /status endpoint — a lightweight in-memory snapshot,
// not a durable record (every stage's real output is the artifact it
// wrote to the object store).
type schedulerStatus struct {
	mu   sync.RWMutex
	last map[pipeline.Stage]*pipeline.StageResult
}

func (s *schedulerStatus) record(r *pipeline.StageResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		s.last = make(map[pipeline.Stage]*pipeline.StageResult)
	}
	s.last[r.Stage] = r
}

func (s *schedulerStatus) snapshot() map[pipeline.Stage]*pipeline.StageResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[pipeline.Stage]*pipeline.StageResult, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out
}

func opsMux(hub *opslog.Hub, status *schedulerStatus, metrics *benchmetrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"clients": hub.ClientCount()})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status.snapshot())
	})
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	return mux
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
