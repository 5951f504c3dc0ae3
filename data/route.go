package data

// ClassRoute is the store class name for routes
const ClassRoute = "route"

// Route is the materialized join of a rule with a matching check, carrying
// the per-pair alerting flag
type Route struct {
	ID        string `json:"id"`
	RuleID    string `json:"rule_id"`
	CheckID   string `json:"check_id"`
	ContactID string `json:"contact_id"`

	IsAlerting bool `json:"is_alerting"`

	// ConditionsList is copied from the rule at materialization time;
	// empty matches any unhealthy condition
	ConditionsList []Condition `json:"conditions_list,omitempty"`
}

// Class implements store.Record
func (r *Route) Class() string { return ClassRoute }

// Key implements store.Record
func (r *Route) Key() string { return r.ID }

// Indexes implements store.Record
func (r *Route) Indexes() map[string]string { return nil }

// MatchesCondition applies the route's severity filter
func (r *Route) MatchesCondition(c Condition) bool {
	if len(r.ConditionsList) == 0 {
		return c.IsUnhealthy()
	}
	for _, rc := range r.ConditionsList {
		if rc == c {
			return true
		}
	}
	return false
}
