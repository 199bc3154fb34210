package score

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// TwoWayFixedEffects estimates question difficulty b_j in the model
// brier_{i,j} = a_i + b_j + u_{i,j} (i = model, j = question) via
// iterative alternating demeaning — the Gauss-Seidel equivalent of
// the absorbed two-way OLS fit the upstream pipeline computes with a
// dedicated fixed-effects regression library. Dataset questions use
// this estimator; market questions short-circuit to the Imputed
// Forecaster's own Brier score (DatasetFixedEffects vs
// MarketFixedEffects below), since with exactly one forecast per
// market question the two are algebraically identical.
func DatasetFixedEffects(rows []ScoredRow) (map[string]float64, error) {
	byModel := make(map[string][]int)
	byQuestion := make(map[string][]int)
	for i, r := range rows {
		byModel[r.Model.PK()] = append(byModel[r.Model.PK()], i)
		byQuestion[r.QuestionPK] = append(byQuestion[r.QuestionPK], i)
	}
	if len(byQuestion) == 0 {
		return map[string]float64{}, nil
	}

	a := make(map[string]float64, len(byModel))
	b := make(map[string]float64, len(byQuestion))

	const maxIter = 500
	const tol = 1e-10

	prev := make([]float64, len(byQuestion))
	keys := make([]string, 0, len(byQuestion))
	for q := range byQuestion {
		keys = append(keys, q)
	}

	for iter := 0; iter < maxIter; iter++ {
		for m, idxs := range byModel {
			sum := 0.0
			for _, i := range idxs {
				sum += rows[i].Brier - b[rows[i].QuestionPK]
			}
			a[m] = sum / float64(len(idxs))
		}

		var maxDelta float64
		for ki, q := range keys {
			idxs := byQuestion[q]
			sum := 0.0
			for _, i := range idxs {
				sum += rows[i].Brier - a[rows[i].Model.PK()]
			}
			newB := sum / float64(len(idxs))
			delta := newB - b[q]
			if d := absf(delta); d > maxDelta {
				maxDelta = d
			}
			b[q] = newB
			prev[ki] = newB
		}

		if maxDelta < tol {
			break
		}
	}

	mean := floats.Sum(prev) / float64(len(prev))
	for q := range b {
		b[q] -= mean
	}
	return b, nil
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// MarketFixedEffects returns the Imputed Forecaster's per-question
// Brier score as the market question_fixed_effect, since a market
// question has exactly one resolved row (the designated imputed
// system model) and the within-question mean therefore equals that
// row's own score.
func MarketFixedEffects(rows []ScoredRow, imputedOrg, imputedModel string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, r := range rows {
		if r.Organization() == imputedOrg && r.Model.Model == imputedModel {
			out[r.QuestionPK] = r.Brier
		}
	}
	return out, nil
}

// ApplyFixedEffects annotates every row of rows with its question's
// fixed effect and the resulting two_way_fixed_effects residual
// (brier - fixed_effect). It errors if a question present in rows has
// no estimated fixed effect — that would silently under-count
// questions the way the upstream pipeline's own assertion guards
// against.
func ApplyFixedEffects(rows []ScoredRow, fx map[string]float64) error {
	seen := make(map[string]bool)
	for i := range rows {
		seen[rows[i].QuestionPK] = true
	}
	if len(seen) != len(fx) {
		return fmt.Errorf("score: estimated %d question fixed effects, want %d", len(fx), len(seen))
	}
	for i := range rows {
		b, ok := fx[rows[i].QuestionPK]
		if !ok {
			return fmt.Errorf("score: no fixed effect estimated for question %q", rows[i].QuestionPK)
		}
		rows[i].QuestionFixedEffect = b
		rows[i].TwoWayFixedEffects = rows[i].Brier - b
	}
	return nil
}
