package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleMatchesTags(t *testing.T) {
	t.Parallel()
	checkTags := map[string]struct{}{"prod": {}, "web": {}}

	generic := &Rule{}
	assert.True(t, generic.IsGeneric())
	assert.True(t, generic.MatchesTags(checkTags))

	subset := &Rule{Tags: []string{"prod"}}
	assert.True(t, subset.MatchesTags(checkTags))

	full := &Rule{Tags: []string{"prod", "web"}}
	assert.True(t, full.MatchesTags(checkTags))

	superset := &Rule{Tags: []string{"prod", "db"}}
	assert.False(t, superset.MatchesTags(checkTags))
}

func TestRuleMatchesCondition(t *testing.T) {
	t.Parallel()
	anyUnhealthy := &Rule{}
	assert.True(t, anyUnhealthy.MatchesCondition(ConditionWarning))
	assert.True(t, anyUnhealthy.MatchesCondition(ConditionCritical))
	assert.False(t, anyUnhealthy.MatchesCondition(ConditionOK))

	criticalOnly := &Rule{Conditions: []Condition{ConditionCritical}}
	assert.True(t, criticalOnly.MatchesCondition(ConditionCritical))
	assert.False(t, criticalOnly.MatchesCondition(ConditionWarning))
}

func TestTimeRestrictionActiveAt(t *testing.T) {
	t.Parallel()
	tr := &TimeRestriction{
		Days:      []string{"monday", "tuesday"},
		StartTime: "09:00",
		EndTime:   "17:00",
	}
	require.NoError(t, tr.Validate())

	// 2026-08-24 is a Monday
	monMorning := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)
	assert.True(t, tr.ActiveAt(monMorning, time.UTC))

	monNight := time.Date(2026, 8, 24, 20, 0, 0, 0, time.UTC)
	assert.False(t, tr.ActiveAt(monNight, time.UTC))

	// window end is exclusive
	monClose := time.Date(2026, 8, 24, 17, 0, 0, 0, time.UTC)
	assert.False(t, tr.ActiveAt(monClose, time.UTC))

	wed := time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC)
	assert.False(t, tr.ActiveAt(wed, time.UTC))
}

func TestTimeRestrictionTimezone(t *testing.T) {
	t.Parallel()
	tr := &TimeRestriction{StartTime: "09:00", EndTime: "17:00"}

	sydney, err := time.LoadLocation("Australia/Sydney")
	require.NoError(t, err)

	// 23:30 UTC on Sunday is Monday 09:30 in Sydney (AEST, UTC+10)
	utcNight := time.Date(2026, 8, 23, 23, 30, 0, 0, time.UTC)
	assert.True(t, tr.ActiveAt(utcNight, sydney))
	assert.False(t, tr.ActiveAt(utcNight, time.UTC))
}

func TestTimeRestrictionValidate(t *testing.T) {
	t.Parallel()
	bad := &TimeRestriction{Days: []string{"funday"}, StartTime: "09:00", EndTime: "17:00"}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidTimeRestriction)

	badClock := &TimeRestriction{StartTime: "25:00", EndTime: "17:00"}
	assert.ErrorIs(t, badClock.Validate(), ErrInvalidTimeRestriction)
}

func TestMaintenanceActiveAt(t *testing.T) {
	t.Parallel()
	w := &ScheduledMaintenance{StartTime: 100, EndTime: 200}
	assert.False(t, w.ActiveAt(99))
	assert.True(t, w.ActiveAt(100))
	assert.True(t, w.ActiveAt(199))
	assert.False(t, w.ActiveAt(200))
}
