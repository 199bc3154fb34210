package score

import (
	"fmt"
	"math"
)

// OracleIncrements returns the closed set of 201 calibration fractions
// 0.000, 0.005, ..., 1.000 the x%-oracle models are generated at.
func OracleIncrements() []float64 {
	out := make([]float64, 201)
	for i := range out {
		out[i] = math.Round(float64(i)*0.005*1000) / 1000
	}
	return out
}

// OracleModelName renders the display name for the pct oracle, e.g.
// "27.5% forecaster".
func OracleModelName(pct float64) string {
	return fmt.Sprintf("%s%% forecaster", trimTrailingZero(pct*100))
}

func trimTrailingZero(v float64) string {
	s := fmt.Sprintf("%.1f", math.Round(v*10)/10)
	return s
}

const benchmarkOrgName = "ForecastBench"

// BuildOracleRows synthesizes one row per x%-oracle model for every
// base row in template (which must already carry a resolved_to of
// exactly 0 or 1 — the oracles are only meaningful against binary
// ground truth). The oracle's forecast is pct when resolved_to=1 and
// (1-pct) when resolved_to=0, so at pct=1.0 it is a perfect
// forecaster and at pct=0.5 it is indistinguishable from "Always
// 0.5".
func BuildOracleRows(template []Row) ([]Row, error) {
	var out []Row
	for _, pct := range OracleIncrements() {
		name := OracleModelName(pct)
		for _, base := range template {
			row := base
			row.Model = ModelKey{Organization: benchmarkOrgName, Model: name, ModelOrganization: benchmarkOrgName}
			switch row.ResolvedTo {
			case 1:
				row.Forecast = pct
			case 0:
				row.Forecast = 1 - pct
			default:
				return nil, fmt.Errorf("score: oracle base row for %s resolved_to=%v, want 0 or 1", row.QuestionPK, row.ResolvedTo)
			}
			out = append(out, row)
		}
	}
	return out, nil
}

// IsOracleModel reports whether model belongs to the closed set of
// x%-oracle names, so oracle rows can be told apart from submitted
// ones (see RemoveOracleRows).
func IsOracleModel(organization, model string) bool {
	if organization != benchmarkOrgName {
		return false
	}
	for _, pct := range OracleIncrements() {
		if model == OracleModelName(pct) {
			return true
		}
	}
	return false
}

// RemoveOracleRows drops every x%-oracle row from rows.
func RemoveOracleRows(rows []Row) []Row {
	out := rows[:0:0]
	for _, r := range rows {
		if IsOracleModel(r.Model.Organization, r.Model.Model) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// OracleEquivalent finds, for each model's overall score, the
// largest oracle pct whose own overall score is no better than the
// model's (score <= oracle score, i.e. the best-calibrated oracle the
// model matches or beats), rounded up to the nearest integer
// percentage point.
func OracleEquivalent(modelOverall map[string]float64, oraclePK func(pct float64) string, oracleOverall map[string]float64) (map[string]float64, error) {
	out := make(map[string]float64, len(modelOverall))
	increments := OracleIncrements()
	for pk, score := range modelOverall {
		best := -1.0
		for _, pct := range increments {
			oPK := oraclePK(pct)
			threshold, ok := oracleOverall[oPK]
			if !ok {
				return nil, fmt.Errorf("score: missing oracle score for pct %.3f", pct)
			}
			if score <= threshold {
				best = pct
			}
		}
		if best < 0 {
			return nil, fmt.Errorf("score: unable to find oracle equivalent for model %q", pk)
		}
		out[pk] = math.Ceil(best*100) / 100
	}
	return out, nil
}

// RescaleToAlways05 linearly shifts every value in scores by a
// constant so that always05PK's entry becomes exactly 0.25, matching
// the benchmark-wide convention that the "Always 0.5" forecaster
// anchors the scale.
func RescaleToAlways05(scores map[string]float64, always05PK string) (map[string]float64, error) {
	base, ok := scores[always05PK]
	if !ok {
		return nil, fmt.Errorf("score: Always 0.5 model %q not present in scores", always05PK)
	}
	shift := 0.25 - base
	out := make(map[string]float64, len(scores))
	for pk, v := range scores {
		out[pk] = v + shift
	}
	return out, nil
}
