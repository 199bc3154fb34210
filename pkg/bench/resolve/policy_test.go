package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImputationPolicyNoViolationUnderCeiling(t *testing.T) {
	p := NewImputationPolicy(DefaultImputationLimits())
	for i := 0; i < 100; i++ {
		p.RecordRow("acme", "gpt", i < 4)
	}
	assert.Empty(t, p.Violations())
}

func TestImputationPolicyFlagsOverCeiling(t *testing.T) {
	p := NewImputationPolicy(&ImputationLimits{MaxImputedPct: 5.0})
	for i := 0; i < 100; i++ {
		p.RecordRow("acme", "gpt", i < 10)
	}
	violations := p.Violations()
	require.Len(t, violations, 1)
	assert.Equal(t, "acme", violations[0].Organization)
	assert.Equal(t, "gpt", violations[0].Model)
	assert.InDelta(t, 10.0, violations[0].ImputedPct, 1e-9)
}

func TestImputationPolicyTracksSubmittersIndependently(t *testing.T) {
	p := NewImputationPolicy(&ImputationLimits{MaxImputedPct: 5.0})
	for i := 0; i < 100; i++ {
		p.RecordRow("acme", "gpt", i < 10)
		p.RecordRow("other", "claude", false)
	}
	violations := p.Violations()
	require.Len(t, violations, 1)
	assert.Equal(t, "acme", violations[0].Organization)
}
