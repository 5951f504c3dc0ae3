package data

import "fmt"

// ClassRule is the store class name for rules
const ClassRule = "rule"

// Rule is a contact's routing policy: which conditions they want to hear
// about, over which media, during which hours, for which tagged checks
type Rule struct {
	ID        string `json:"id"`
	ContactID string `json:"contact_id"`

	// Conditions restricts the rule to these severities; empty matches
	// any unhealthy condition
	Conditions []Condition `json:"conditions,omitempty"`

	// Tags must all be present on a check for the rule to match it;
	// empty makes the rule generic (matches every check)
	Tags []string `json:"tags,omitempty"`

	TimeRestrictions []TimeRestriction `json:"time_restrictions,omitempty"`
}

// Class implements store.Record
func (r *Rule) Class() string { return ClassRule }

// Key implements store.Record
func (r *Rule) Key() string { return r.ID }

// Indexes implements store.Record
func (r *Rule) Indexes() map[string]string { return nil }

// IsGeneric reports whether the rule matches every check
func (r *Rule) IsGeneric() bool { return len(r.Tags) == 0 }

// MatchesTags reports whether the rule's full tag set is a subset of the
// supplied check tag set
func (r *Rule) MatchesTags(checkTags map[string]struct{}) bool {
	for _, t := range r.Tags {
		if _, ok := checkTags[t]; !ok {
			return false
		}
	}
	return true
}

// MatchesCondition applies the rule's severity filter; an empty conditions
// list matches any unhealthy condition
func (r *Rule) MatchesCondition(c Condition) bool {
	if len(r.Conditions) == 0 {
		return c.IsUnhealthy()
	}
	for _, rc := range r.Conditions {
		if rc == c {
			return true
		}
	}
	return false
}

// RuleMediaKey holds the set of medium ids a rule delivers over
func RuleMediaKey(ruleID string) string {
	return fmt.Sprintf("rule:%s:media", ruleID)
}

// GenericRulesKey holds the set of rules with no tag requirement
func GenericRulesKey() string { return "rules:generic" }

// TagRulesKey holds the set of rule ids carrying a tag
func TagRulesKey(tag string) string {
	return fmt.Sprintf("tag:%s:rules", tag)
}

// TagChecksKey holds the set of check ids carrying a tag
func TagChecksKey(tag string) string {
	return fmt.Sprintf("tag:%s:checks", tag)
}
