// Package data defines the entity records persisted by the flapjack store
// and the condition vocabulary shared across the pipeline
package data

import "errors"

// Condition is the health token reported for a check
type Condition string

// Condition vocabulary
const (
	ConditionOK       Condition = "ok"
	ConditionUnknown  Condition = "unknown"
	ConditionWarning  Condition = "warning"
	ConditionCritical Condition = "critical"
)

// ErrInvalidCondition is returned when a condition token is outside the
// vocabulary
var ErrInvalidCondition = errors.New("invalid condition")

var severityRank = map[Condition]int{
	ConditionOK:       0,
	ConditionUnknown:  1,
	ConditionWarning:  2,
	ConditionCritical: 3,
}

// ParseCondition validates a raw condition token
func ParseCondition(s string) (Condition, error) {
	c := Condition(s)
	if _, ok := severityRank[c]; !ok {
		return "", ErrInvalidCondition
	}
	return c, nil
}

// IsHealthy returns whether the condition counts as healthy
func (c Condition) IsHealthy() bool {
	return c == ConditionOK
}

// IsUnhealthy returns whether the condition counts as a failure state
func (c Condition) IsUnhealthy() bool {
	_, ok := severityRank[c]
	return ok && c != ConditionOK
}

// Severity returns the rank of the condition; unknown ranks below the named
// failure conditions but above healthy
func (c Condition) Severity() int {
	return severityRank[c]
}

// WorseThan reports whether c is strictly more severe than other
func (c Condition) WorseThan(other Condition) bool {
	return c.Severity() > other.Severity()
}
