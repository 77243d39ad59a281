package provider_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vdem-gis/outage-etl/internal/config"
	"github.com/vdem-gis/outage-etl/internal/provider"
)

func TestPublishBoundary_AlwaysWithinFifteenMinutes(t *testing.T) {
	for minute := 0; minute < 60; minute++ {
		for _, second := range []int{0, 30, 59} {
			now := time.Date(2026, 2, 10, 14, minute, second, 0, time.UTC)
			b := provider.PublishBoundary(now)

			behind := now.Sub(b)
			assert.GreaterOrEqual(t, behind, time.Duration(0), "boundary after now at %v", now)
			assert.Less(t, behind, 15*time.Minute, "boundary too far behind at %v", now)
			assert.Contains(t, []int{2, 17, 32, 47}, b.Minute(), "at %v", now)
		}
	}
}

func TestPublishBoundary_WrapsToPreviousHour(t *testing.T) {
	now := time.Date(2026, 2, 10, 14, 1, 30, 0, time.UTC)
	b := provider.PublishBoundary(now)
	assert.Equal(t, time.Date(2026, 2, 10, 13, 47, 0, 0, time.UTC), b)
}

func TestPublishBoundary_WrapsAcrossMidnight(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 10, 0, time.UTC)
	b := provider.PublishBoundary(now)
	assert.Equal(t, time.Date(2026, 2, 9, 23, 47, 0, 0, time.UTC), b)
}

func TestCandidateDateStrings_OrderAndContent(t *testing.T) {
	rules := config.DateRules{
		Layouts:        []string{"2006_01_02_15_04"},
		Timezone:       "UTC",
		OffsetsMinutes: []int{0, 1},
		Suffixes:       []string{"_00", "_30"},
	}
	now := time.Date(2026, 2, 10, 14, 20, 0, 0, time.UTC)

	candidates, err := provider.CandidateDateStrings(now, rules)
	require.NoError(t, err)

	// 2 boundaries x 2 offsets x 1 layout x 2 suffixes.
	require.Len(t, candidates, 8)
	assert.Equal(t, "2026_02_10_14_17_00", candidates[0], "current boundary leads when well past rollover")
	assert.Contains(t, candidates, "2026_02_10_14_02_00")
	assert.Contains(t, candidates, "2026_02_10_14_18_30")

	seen := map[string]bool{}
	for _, c := range candidates {
		assert.False(t, seen[c], "duplicate candidate %q", c)
		seen[c] = true
	}
}

func TestCandidateDateStrings_PreferPreviousNearRollover(t *testing.T) {
	rules := config.DateRules{
		Layouts:        []string{"2006_01_02_15_04"},
		Timezone:       "UTC",
		OffsetsMinutes: []int{0},
		Suffixes:       []string{""},
		PreferPrevious: true,
	}

	// 90 seconds past the 14:17 boundary: still inside publish latency
	// slack, so the previous interval's file is the better first guess.
	now := time.Date(2026, 2, 10, 14, 18, 30, 0, time.UTC)
	candidates, err := provider.CandidateDateStrings(now, rules)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "2026_02_10_14_02", candidates[0])
	assert.Equal(t, "2026_02_10_14_17", candidates[1])

	// Well past the slack the current boundary leads again.
	now = time.Date(2026, 2, 10, 14, 25, 0, 0, time.UTC)
	candidates, err = provider.CandidateDateStrings(now, rules)
	require.NoError(t, err)
	assert.Equal(t, "2026_02_10_14_17", candidates[0])
}

func TestCandidateDateStrings_ProviderTimezone(t *testing.T) {
	rules := config.DateRules{
		Layouts:        []string{"2006_01_02_15_04"},
		Timezone:       "America/New_York",
		OffsetsMinutes: []int{0},
		Suffixes:       []string{""},
	}

	// 19:20 UTC is 14:20 EST.
	now := time.Date(2026, 2, 10, 19, 20, 0, 0, time.UTC)
	candidates, err := provider.CandidateDateStrings(now, rules)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	assert.Equal(t, "2026_02_10_14_17", candidates[0])
}

func TestCandidateDateStrings_BadTimezone(t *testing.T) {
	rules := config.DateRules{
		Layouts:  []string{"2006_01_02_15_04"},
		Timezone: "Mars/Olympus_Mons",
	}
	_, err := provider.CandidateDateStrings(time.Now(), rules)
	assert.Error(t, err)
}

func TestCandidateDateStrings_Pure(t *testing.T) {
	rules := config.DateRules{
		Layouts:        []string{"2006_01_02_15_04"},
		Timezone:       "UTC",
		OffsetsMinutes: []int{0, 1, 2},
		Suffixes:       []string{"_00", "_30"},
	}
	now := time.Date(2026, 2, 10, 9, 33, 12, 0, time.UTC)

	first, err := provider.CandidateDateStrings(now, rules)
	require.NoError(t, err)
	second, err := provider.CandidateDateStrings(now, rules)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(first), fmt.Sprint(second))
}
