package curator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBinWeights(t *testing.T) {
	err := ValidateBinWeights()
	require.NoError(t, err)
}

func TestMarketValueBinsPartitionUnitInterval(t *testing.T) {
	tests := []struct {
		value decimal.Decimal
		want  string
	}{
		{decimal.NewFromFloat(0.0), "[0.00,0.01)"},
		{decimal.NewFromFloat(0.005), "[0.00,0.01)"},
		{decimal.NewFromFloat(0.01), "[0.01,0.10)"},
		{decimal.NewFromFloat(0.5), "[0.50,0.60)"},
		{decimal.NewFromFloat(0.99), "[0.99,1.00]"},
		{decimal.NewFromFloat(1.0), "[0.99,1.00]"},
	}
	for _, tt := range tests {
		bin, err := GetMarketValueBin(tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.want, bin.Label, "value %s", tt.value)
	}
}

func TestTimeHorizonBinsPartitionNonNegativeDays(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{0, "0-7"},
		{7, "0-7"},
		{8, "8-30"},
		{90, "51-90"},
		{365, "181-365"},
		{366, "366+"},
		{10000, "366+"},
	}
	for _, tt := range tests {
		bin, err := GetTimeHorizonBin(tt.days)
		require.NoError(t, err)
		assert.Equal(t, tt.want, bin.Label, "days %d", tt.days)
	}
}

func TestGetMarketValueBinRejectsOutOfRange(t *testing.T) {
	_, err := GetMarketValueBin(decimal.NewFromFloat(-0.1))
	assert.Error(t, err)

	_, err = GetMarketValueBin(decimal.NewFromFloat(1.1))
	assert.Error(t, err)
}

func TestCompositeWeightIsProductOfAxisWeights(t *testing.T) {
	mv := MarketValueBins[0]
	h := TimeHorizonBins[0]
	got := CompositeWeight(mv, h)
	want := mv.Weight.Mul(h.Weight)
	assert.True(t, got.Equal(want))
}
