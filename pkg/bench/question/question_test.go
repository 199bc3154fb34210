package question

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComboResolveOutcomeIdentity(t *testing.T) {
	// Combo combination identity (spec property #5): for any direction d
	// and leg outcomes (r1, r2) in {0,1}^2, the combo outcome equals the
	// product of each leg contribution, flipped when its direction is -1.
	cases := []struct {
		d1, d2 int
		r1, r2 float64
		want   float64
	}{
		{1, 1, 1, 1, 1},
		{1, 1, 1, 0, 0},
		{1, -1, 1, 0, 1},
		{-1, -1, 0, 0, 1},
		{-1, 1, 0, 1, 1},
		{1, -1, 0, 0, 0},
	}
	for _, c := range cases {
		combo := Combo{Directions: [2]int{c.d1, c.d2}}
		got := combo.ResolveOutcome(c.r1, c.r2)
		assert.Equal(t, c.want, got)
	}
}

func TestDayJSONRoundTrip(t *testing.T) {
	d, err := ParseDay("2024-05-01")
	require.NoError(t, err)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-05-01"`, string(b))

	var out Day
	require.NoError(t, json.Unmarshal(b, &out))
	assert.True(t, out.Equal(d))
}

func TestDayArithmetic(t *testing.T) {
	d, _ := ParseDay("2024-05-01")
	d2 := d.AddDays(30)
	assert.Equal(t, "2024-05-31", d2.String())
	assert.Equal(t, 30, d2.Sub(d))
	assert.True(t, d2.After(d))
	assert.True(t, d.Before(d2))
}

func TestResolutionSeriesValueAtForwardFills(t *testing.T) {
	d0, _ := ParseDay("2024-01-01")
	series := &ResolutionSeries{
		ID: "q1", Source: SourceFRED,
		Points: []ResolutionPoint{
			{Date: d0, Value: 1.0},
			{Date: d0.AddDays(5), Value: 2.0},
		},
	}

	v, ok := series.ValueAt(d0.AddDays(2))
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	v, ok = series.ValueAt(d0.AddDays(5))
	require.True(t, ok)
	assert.Equal(t, 2.0, v)

	_, ok = series.ValueAt(d0.AddDays(-1))
	assert.False(t, ok)
}

func TestSourceClassification(t *testing.T) {
	assert.True(t, SourceManifold.IsMarket())
	assert.False(t, SourceManifold.IsDataset())
	assert.True(t, SourceFRED.IsDataset())
	assert.False(t, SourceFRED.IsMarket())
	assert.True(t, Source("manifold").Valid())
	assert.False(t, Source("bogus").Valid())
}
