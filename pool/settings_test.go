package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_Defaults(t *testing.T) {
	st := DefaultSettings()
	require.NoError(t, st.Validate())
	assert.Equal(t, 500, st.InitialCapacity)
	assert.Equal(t, 10_000, st.MaximumSize)
	assert.Equal(t, 10*time.Second, st.ExpireAfterAccess)
	assert.Equal(t, 5*time.Second, st.SweepPeriod())
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"odd expiry", func(s *Settings) { s.ExpireAfterAccess = 3 }},
		{"zero expiry", func(s *Settings) { s.ExpireAfterAccess = 0 }},
		{"zero maximum", func(s *Settings) { s.MaximumSize = 0 }},
		{"initial above maximum", func(s *Settings) { s.InitialCapacity = s.MaximumSize + 1 }},
		{"negative shards", func(s *Settings) { s.Shards = -1 }},
		{"unknown policy", func(s *Settings) { s.Policy = "fifo" }},
		{"negative reap interval", func(s *Settings) { s.ReapInterval = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := DefaultSettings()
			tt.mutate(&st)
			assert.Error(t, st.Validate())
		})
	}
}

func TestSettings_EmptyPolicyMeansLRU(t *testing.T) {
	st := DefaultSettings()
	st.Policy = ""
	require.NoError(t, st.Validate())
	assert.NotNil(t, newPolicy[int](st))

	st.Policy = Policy2Q
	require.NoError(t, st.Validate())
	assert.NotNil(t, newPolicy[int](st))
}
