package curator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGreedyEvenFillRespectsAvailabilityCeiling(t *testing.T) {
	got := GreedyEvenFill(100, []int{10, 5, 1000})
	assert.LessOrEqual(t, got[0], 10)
	assert.LessOrEqual(t, got[1], 5)
	sum := got[0] + got[1] + got[2]
	assert.Equal(t, 100, sum)
}

func TestGreedyEvenFillCapsAtGlobalCeiling(t *testing.T) {
	got := GreedyEvenFill(1000, []int{1, 2, 3})
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestGreedyEvenFillEmptyAvailable(t *testing.T) {
	got := GreedyEvenFill(10, nil)
	assert.Empty(t, got)
}

func TestDistributeRoundingResidualFillsHighestWeightFirst(t *testing.T) {
	targets := []int{1, 1, 1}
	weights := []float64{0.1, 0.5, 0.4}
	availability := []int{10, 10, 10}
	out := DistributeRoundingResidual(targets, weights, availability, 5)
	assert.Equal(t, 5, out[0]+out[1]+out[2])
	assert.GreaterOrEqual(t, out[1], out[0])
}

func TestDistributeRoundingResidualTrimsLowestWeightFirst(t *testing.T) {
	targets := []int{3, 3, 3}
	weights := []float64{0.1, 0.5, 0.4}
	availability := []int{10, 10, 10}
	out := DistributeRoundingResidual(targets, weights, availability, 7)
	assert.Equal(t, 7, out[0]+out[1]+out[2])
	assert.LessOrEqual(t, out[0], targets[0])
}
