// replay is a manual sanity-checking CLI: it loads a recorded
// ReplayFixture (a question set's already-resolved scoring rows) and
// re-runs the leaderboard computation against it, the way the
// teacher's polymarket-backtest CLI replayed a recorded HistoricalData
// fixture through a strategy instead of hitting a live exchange. It
// exists so an operator can reproduce a past scoring run, or a
// candidate one, before publishing a refreshed leaderboard.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/forecastbench/forecastbench/pkg/bench/score"
)

var (
	fixtureFlag = flag.String("fixture", "", "path to a ReplayFixture JSON file")
	outFlag     = flag.String("out", "", "if set, write the resulting leaderboard JSON here instead of stdout")
	replicates  = flag.Int("replicates", 0, "override the bootstrap replicate count (0: use the default config's count)")
)

func main() {
	flag.Parse()
	if *fixtureFlag == "" {
		fmt.Fprintln(os.Stderr, "replay: -fixture is required")
		os.Exit(1)
	}

	fx, err := score.LoadReplayFixture(*fixtureFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}

	cfg := score.DefaultConfig()
	if *replicates > 0 {
		cfg.NReplicates = *replicates
	}

	lb, err := score.Replay(context.Background(), cfg, fx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: scoring failed: %v\n", err)
		os.Exit(1)
	}

	body, err := json.MarshalIndent(lb, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: marshaling leaderboard: %v\n", err)
		os.Exit(1)
	}

	if *outFlag == "" {
		os.Stdout.Write(body)
		fmt.Println()
		return
	}
	if err := os.WriteFile(*outFlag, body, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "replay: writing %s: %v\n", *outFlag, err)
		os.Exit(1)
	}
	fmt.Printf("replay: wrote %d entries to %s\n", len(lb.Entries), *outFlag)
}
