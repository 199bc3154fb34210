package score

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// ReplayFixture is the on-disk bundle a replay run consumes: a
// question set's already-resolved rows, loaded straight from JSON the
// way the teacher's Backtest.LoadDataFromJSON reads a recorded
// HistoricalData file instead of hitting a live source. A replay
// fixture skips the bank/curator/resolver stages entirely — it is
// built from already-resolved ProcessedForecastSet output (or, for a
// pure scoring-stage sanity check, already-flattened Rows) and exists
// to reproduce a past scoring run byte-for-byte before publishing a
// refreshed leaderboard.
type ReplayFixture struct {
	Rows              []Row  `json:"rows"`
	SuperforecasterPK string `json:"superforecaster_pk"`
	PublicPK          string `json:"public_pk"`
}

// LoadReplayFixture reads and decodes a ReplayFixture from filename.
func LoadReplayFixture(filename string) (*ReplayFixture, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("score: opening replay fixture: %w", err)
	}
	defer f.Close()

	var fx ReplayFixture
	if err := json.NewDecoder(f).Decode(&fx); err != nil {
		return nil, fmt.Errorf("score: decoding replay fixture %s: %w", filename, err)
	}
	return &fx, nil
}

// Replay re-runs BuildLeaderboard against a previously recorded
// fixture, for manual sanity-checking a leaderboard before publishing
// it (cmd/replay), without needing to re-derive rows from a live bank.
func Replay(ctx context.Context, cfg Config, fx *ReplayFixture) (*Leaderboard, error) {
	return BuildLeaderboard(ctx, cfg, fx.Rows, fx.SuperforecasterPK, fx.PublicPK)
}
