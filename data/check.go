package data

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// ClassCheck is the store class name for checks
const ClassCheck = "check"

// Check is the monitored entity; the unit of state tracking
type Check struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`

	Condition Condition `json:"condition"`
	Failing   bool      `json:"failing"`

	// Episode tracking for the current run of unhealthy samples
	FailingStreak int       `json:"failing_streak"`
	FailingSince  int64     `json:"failing_since"`
	MostSevere    Condition `json:"most_severe"`

	CurrentStateID   string `json:"current_state_id"`
	LastProblemAlert int64  `json:"last_problem_alert"`
	ProblemAlerted   bool   `json:"problem_alerted"`

	NotificationCount   int `json:"notification_count"`
	InitialFailureDelay int `json:"initial_failure_delay"`
	RepeatFailureDelay  int `json:"repeat_failure_delay"`
}

// Class implements store.Record
func (c *Check) Class() string { return ClassCheck }

// Key implements store.Record
func (c *Check) Key() string { return c.ID }

// Indexes implements store.Record; checks are unique by name
func (c *Check) Indexes() map[string]string {
	return map[string]string{"name": c.Name}
}

// AckHash returns the stable short token used to identify this check in
// out-of-band acknowledgement channels. It is derived from the immutable id,
// so it survives renames.
func (c *Check) AckHash() string {
	sum := sha1.Sum([]byte(c.ID))
	return hex.EncodeToString(sum[:])[:8]
}

// Relation set keys owned by a check

// CheckTagsKey holds the set of tag names attached to a check
func CheckTagsKey(checkID string) string {
	return fmt.Sprintf("check:%s:tags", checkID)
}

// CheckRoutesKey holds the set of materialized route ids for a check
func CheckRoutesKey(checkID string) string {
	return fmt.Sprintf("check:%s:routes", checkID)
}

// CheckStatesKey holds the sorted state history, scored by created_at
func CheckStatesKey(checkID string) string {
	return fmt.Sprintf("check:%s:states", checkID)
}

// CheckScheduledKey holds the sorted scheduled maintenance windows, scored by
// start time
func CheckScheduledKey(checkID string) string {
	return fmt.Sprintf("check:%s:scheduled_maintenances", checkID)
}

// CheckUnscheduledKey holds the sorted unscheduled maintenance windows,
// scored by start time
func CheckUnscheduledKey(checkID string) string {
	return fmt.Sprintf("check:%s:unscheduled_maintenances", checkID)
}

// CheckAlertingMediaKey holds the set of medium ids with an outstanding
// problem alert for the check
func CheckAlertingMediaKey(checkID string) string {
	return fmt.Sprintf("check:%s:alerting_media", checkID)
}

// MediumAlertingChecksKey is the reverse side of alerting media; the set of
// check ids a medium is currently alerting on
func MediumAlertingChecksKey(mediumID string) string {
	return fmt.Sprintf("medium:%s:alerting_checks", mediumID)
}
