package costexplorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wescmx/aws/internal/clock"
)

func TestPreviousMonth(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		wantStart string
		wantEnd   string
	}{
		{
			name:      "mid month",
			now:       time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC),
			wantStart: "2026-07-01",
			wantEnd:   "2026-08-01",
		},
		{
			name:      "first of month",
			now:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			wantStart: "2026-02-01",
			wantEnd:   "2026-03-01",
		},
		{
			name:      "january rolls back a year",
			now:       time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
			wantStart: "2025-12-01",
			wantEnd:   "2026-01-01",
		},
		{
			name:      "march after leap february",
			now:       time.Date(2028, 3, 31, 0, 0, 0, 0, time.UTC),
			wantStart: "2028-02-01",
			wantEnd:   "2028-03-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := PreviousMonth(clock.NewFakeClock(tt.now))
			assert.Equal(t, tt.wantStart, w.StartDate())
			assert.Equal(t, tt.wantEnd, w.EndDate())
		})
	}
}

func TestResolveWindowOverride(t *testing.T) {
	c := clock.NewFakeClock(time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC))

	w, err := ResolveWindow("2026-01-01", "2026-04-01", c)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01", w.StartDate())
	assert.Equal(t, "2026-04-01", w.EndDate())
}

func TestResolveWindowDefaultsToPreviousMonth(t *testing.T) {
	c := clock.NewFakeClock(time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC))

	w, err := ResolveWindow("", "", c)
	require.NoError(t, err)
	assert.Equal(t, "2026-07-01", w.StartDate())
	assert.Equal(t, "2026-08-01", w.EndDate())
}

func TestParseWindowRejectsBadInput(t *testing.T) {
	_, err := ParseWindow("2026-13-01", "2026-02-01")
	assert.Error(t, err)

	_, err = ParseWindow("2026-02-01", "2026-02-01")
	assert.Error(t, err)

	_, err = ParseWindow("2026-03-01", "2026-02-01")
	assert.Error(t, err)
}
