package curator

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// MarketValueBin is one of the 12 fixed intervals over a market's
// freeze-time probability.
type MarketValueBin struct {
	Label        string
	Low, High    decimal.Decimal
	InclusiveMax bool // true only for the final bin [0.99, 1.00]
	Weight       decimal.Decimal
}

// Contains reports whether v falls in the bin's half-open interval
// (closed on the right for the final bin only).
func (b MarketValueBin) Contains(v decimal.Decimal) bool {
	if v.LessThan(b.Low) {
		return false
	}
	if b.InclusiveMax {
		return !v.GreaterThan(b.High)
	}
	return v.LessThan(b.High)
}

// TimeHorizonBin is one of the 7 fixed day-offset intervals to a
// market's close.
type TimeHorizonBin struct {
	Label      string
	LowDays    int
	HighDays   int // -1 means unbounded (366+)
	Weight     decimal.Decimal
}

// Contains reports whether days falls within the bin.
func (b TimeHorizonBin) Contains(days int) bool {
	if days < b.LowDays {
		return false
	}
	if b.HighDays < 0 {
		return true
	}
	return days <= b.HighDays
}

// d builds a decimal.Decimal from a float64 literal. Used only at
// package-init time for the fixed bin table; runtime values always
// flow through decimal arithmetic.
func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// MarketValueBins is the closed set of 12 market-probability bins.
// Weights sum to exactly 1 under rational arithmetic (verified by
// ValidateBinWeights and by the package's weight-normalization test).
var MarketValueBins = []MarketValueBin{
	{Label: "[0.00,0.01)", Low: d(0.00), High: d(0.01), Weight: d(0.02)},
	{Label: "[0.01,0.10)", Low: d(0.01), High: d(0.10), Weight: d(0.096)},
	{Label: "[0.10,0.20)", Low: d(0.10), High: d(0.20), Weight: d(0.096)},
	{Label: "[0.20,0.30)", Low: d(0.20), High: d(0.30), Weight: d(0.096)},
	{Label: "[0.30,0.40)", Low: d(0.30), High: d(0.40), Weight: d(0.096)},
	{Label: "[0.40,0.50)", Low: d(0.40), High: d(0.50), Weight: d(0.096)},
	{Label: "[0.50,0.60)", Low: d(0.50), High: d(0.60), Weight: d(0.096)},
	{Label: "[0.60,0.70)", Low: d(0.60), High: d(0.70), Weight: d(0.096)},
	{Label: "[0.70,0.80)", Low: d(0.70), High: d(0.80), Weight: d(0.096)},
	{Label: "[0.80,0.90)", Low: d(0.80), High: d(0.90), Weight: d(0.096)},
	{Label: "[0.90,0.99)", Low: d(0.90), High: d(0.99), Weight: d(0.096)},
	{Label: "[0.99,1.00]", Low: d(0.99), High: d(1.00), InclusiveMax: true, Weight: d(0.02)},
}

// TimeHorizonBins is the closed set of 7 days-to-close bins.
var TimeHorizonBins = []TimeHorizonBin{
	{Label: "0-7", LowDays: 0, HighDays: 7, Weight: d(0.12)},
	{Label: "8-30", LowDays: 8, HighDays: 30, Weight: d(0.21)},
	{Label: "31-50", LowDays: 31, HighDays: 50, Weight: d(0.21)},
	{Label: "51-90", LowDays: 51, HighDays: 90, Weight: d(0.14)},
	{Label: "91-180", LowDays: 91, HighDays: 180, Weight: d(0.14)},
	{Label: "181-365", LowDays: 181, HighDays: 365, Weight: d(0.14)},
	{Label: "366+", LowDays: 366, HighDays: -1, Weight: d(0.04)},
}

// UnknownBinWeight is the composite weight assigned to a candidate
// that matches no bin on one axis (should never happen given the
// bins above are a partition of [0,1] and [0,∞), but is named so a
// future bin-table edit has somewhere explicit to signal the gap).
const UnknownBinWeight = 0.0

// ValidateBinWeights verifies that both axes' weights sum to exactly
// 1 using exact rational arithmetic, mirroring the upstream pipeline's
// own fractions.Fraction check against float drift.
func ValidateBinWeights() error {
	if err := sumToOneExact(marketValueWeightStrings()); err != nil {
		return fmt.Errorf("curator: market-value bin weights: %w", err)
	}
	if err := sumToOneExact(timeHorizonWeightStrings()); err != nil {
		return fmt.Errorf("curator: time-horizon bin weights: %w", err)
	}
	return nil
}

func marketValueWeightStrings() []string {
	out := make([]string, len(MarketValueBins))
	for i, b := range MarketValueBins {
		out[i] = b.Weight.String()
	}
	return out
}

func timeHorizonWeightStrings() []string {
	out := make([]string, len(TimeHorizonBins))
	for i, b := range TimeHorizonBins {
		out[i] = b.Weight.String()
	}
	return out
}

// sumToOneExact parses each weight as an exact big.Rat and checks the
// sum equals 1/1 with no rounding anywhere in the chain.
func sumToOneExact(weights []string) error {
	sum := new(big.Rat)
	for _, w := range weights {
		r, ok := new(big.Rat).SetString(w)
		if !ok {
			return fmt.Errorf("weight %q is not a valid rational", w)
		}
		sum.Add(sum, r)
	}
	one := big.NewRat(1, 1)
	if sum.Cmp(one) != 0 {
		return fmt.Errorf("weights sum to %s, want 1", sum.RatString())
	}
	return nil
}

// GetMarketValueBin returns the bin containing v, or an error — every
// v in [0,1] must match exactly one bin since the bins partition it.
func GetMarketValueBin(v decimal.Decimal) (MarketValueBin, error) {
	for _, b := range MarketValueBins {
		if b.Contains(v) {
			return b, nil
		}
	}
	return MarketValueBin{}, fmt.Errorf("curator: value %s matches no market-value bin", v)
}

// GetTimeHorizonBin returns the bin containing daysToClose.
func GetTimeHorizonBin(daysToClose int) (TimeHorizonBin, error) {
	for _, b := range TimeHorizonBins {
		if b.Contains(daysToClose) {
			return b, nil
		}
	}
	return TimeHorizonBin{}, fmt.Errorf("curator: %d days matches no horizon bin", daysToClose)
}

// CompositeBin is the Cartesian-product bin identifier over
// market-value and horizon bins, used only for market-question
// sampling.
type CompositeBin struct {
	MarketValueLabel string
	HorizonLabel     string
}

// Label renders the composite bin as a stable string key.
func (c CompositeBin) Label() string {
	return c.MarketValueLabel + "|" + c.HorizonLabel
}

// CompositeWeight is the normalized product of the two axis weights
// for a given composite bin.
func CompositeWeight(mv MarketValueBin, h TimeHorizonBin) decimal.Decimal {
	return mv.Weight.Mul(h.Weight)
}
