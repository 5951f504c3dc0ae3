// Package notifier turns notifications into per-medium alerts and runs the
// dispatch worker pools that deliver them
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"

	"github.com/flapjack/flapjack/data"
	"github.com/flapjack/flapjack/log"
	"github.com/flapjack/flapjack/maintenance"
	"github.com/flapjack/flapjack/store"
)

// maxSeverityScore bounds severity-scored range scans over alerting media
const maxSeverityScore = 16

// RecomputeRoutes rebuilds the materialized route set for a check. It must
// be called whenever the check's tag set, the rule population, or a rule's
// tags change. New routes start with is_alerting unset.
func RecomputeRoutes(ctx context.Context, st store.Store, chk *data.Check) error {
	tags, err := st.SetMembers(ctx, data.CheckTagsKey(chk.ID))
	if err != nil {
		return err
	}
	tagSet := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		tagSet[t] = struct{}{}
	}

	// generic rules match every check
	matching := make(map[string]*data.Rule)
	genericIDs, err := st.SetMembers(ctx, data.GenericRulesKey())
	if err != nil {
		return err
	}
	candidates := append([]string{}, genericIDs...)

	// rules sharing at least one tag with the check are candidates; the
	// full tag subset test decides
	for _, t := range tags {
		tagged, err := st.SetMembers(ctx, data.TagRulesKey(t))
		if err != nil {
			return err
		}
		candidates = append(candidates, tagged...)
	}

	for _, rid := range candidates {
		if _, done := matching[rid]; done {
			continue
		}
		var rule data.Rule
		if err := st.Get(ctx, data.ClassRule, rid, &rule); err != nil {
			log.Errorf(log.NotifierMgr, "Notifier: dropping dangling rule %s: %v", rid, err)
			continue
		}
		if rule.MatchesTags(tagSet) {
			matching[rid] = &rule
		}
	}

	// reconcile existing routes against the matching rule set
	existing, err := st.SetMembers(ctx, data.CheckRoutesKey(chk.ID))
	if err != nil {
		return err
	}
	routed := make(map[string]struct{}, len(existing))
	for _, routeID := range existing {
		var rt data.Route
		if err := st.Get(ctx, data.ClassRoute, routeID, &rt); err != nil {
			_ = st.RemoveFromSet(ctx, data.CheckRoutesKey(chk.ID), routeID)
			continue
		}
		if _, keep := matching[rt.RuleID]; !keep {
			if err := st.RemoveFromSet(ctx, data.CheckRoutesKey(chk.ID), routeID); err != nil {
				return err
			}
			if err := st.Delete(ctx, &rt); err != nil {
				return err
			}
			continue
		}
		routed[rt.RuleID] = struct{}{}
	}

	for rid, rule := range matching {
		if _, done := routed[rid]; done {
			continue
		}
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		rt := &data.Route{
			ID:             id.String(),
			RuleID:         rid,
			CheckID:        chk.ID,
			ContactID:      rule.ContactID,
			ConditionsList: rule.Conditions,
		}
		if err := st.Save(ctx, rt); err != nil {
			return err
		}
		if err := st.AddToSet(ctx, data.CheckRoutesKey(chk.ID), rt.ID); err != nil {
			return err
		}
	}
	return nil
}

// Resolution is the outcome of resolving one notification
type Resolution struct {
	Alerts       []*data.Alert
	ContactRules map[string][]string
	RuleRoutes   map[string][]string
}

// Resolve expands a notification into the alert set owed to contacts,
// honouring severity filters, time restrictions and per-medium
// de-duplication. Alerts are not yet queued; the caller enqueues them so the
// notification completes atomically.
func (m *Manager) Resolve(ctx context.Context, n *data.Notification) (*Resolution, error) {
	var chk data.Check
	if err := m.store.Get(ctx, data.ClassCheck, n.CheckID, &chk); err != nil {
		return nil, err
	}

	switch n.Type {
	case data.NotificationRecovery:
		return m.resolveRecovery(ctx, &chk, n)
	case data.NotificationProblem, data.NotificationAcknowledgement,
		data.NotificationScheduledMaintenance, data.NotificationTest:
		return m.resolveByRoutes(ctx, &chk, n)
	default:
		return nil, fmt.Errorf("notifier: unhandled notification type %q", n.Type)
	}
}

func (m *Manager) resolveByRoutes(ctx context.Context, chk *data.Check, n *data.Notification) (*Resolution, error) {
	res := &Resolution{
		ContactRules: make(map[string][]string),
		RuleRoutes:   make(map[string][]string),
	}

	routeIDs, err := m.store.SetMembers(ctx, data.CheckRoutesKey(chk.ID))
	if err != nil {
		return nil, err
	}
	isProblem := n.Type == data.NotificationProblem
	isTest := n.Type == data.NotificationTest

	for _, routeID := range routeIDs {
		var rt data.Route
		if err := m.store.Get(ctx, data.ClassRoute, routeID, &rt); err != nil {
			log.Errorf(log.NotifierMgr, "Notifier: dropping dangling route %s on check %s: %v", routeID, chk.ID, err)
			_ = m.store.RemoveFromSet(ctx, data.CheckRoutesKey(chk.ID), routeID)
			continue
		}
		if isTest {
			// a test notification targets one contact and skips the
			// severity and schedule filters
			if n.ContactID != "" && rt.ContactID != n.ContactID {
				continue
			}
		} else if !rt.MatchesCondition(n.Severity) {
			continue
		}

		var rule data.Rule
		if err := m.store.Get(ctx, data.ClassRule, rt.RuleID, &rule); err != nil {
			log.Errorf(log.NotifierMgr, "Notifier: route %s references missing rule %s: %v", routeID, rt.RuleID, err)
			continue
		}
		var contact data.Contact
		if err := m.store.Get(ctx, data.ClassContact, rule.ContactID, &contact); err != nil {
			log.Errorf(log.NotifierMgr, "Notifier: rule %s references missing contact %s: %v", rule.ID, rule.ContactID, err)
			continue
		}

		if !isTest && !ruleActiveAt(&rule, &contact, n.Timestamp) {
			continue
		}

		mediumIDs, err := m.store.SetMembers(ctx, data.RuleMediaKey(rule.ID))
		if err != nil {
			return nil, err
		}

		var produced bool
		for _, mid := range mediumIDs {
			var med data.Medium
			if err := m.store.Get(ctx, data.ClassMedium, mid, &med); err != nil {
				log.Errorf(log.NotifierMgr, "Notifier: removing missing medium %s from rule %s: %v", mid, rule.ID, err)
				_ = m.store.RemoveFromSet(ctx, data.RuleMediaKey(rule.ID), mid)
				continue
			}
			// an undeliverable medium must not enter the alerting media
			// set, or it would suppress the re-alert once its gateway is
			// configured
			if _, deliverable := m.gatewayCfg[string(med.Type)]; !deliverable {
				log.Warnf(log.NotifierMgr, "Notifier: no gateway configured for medium %s (%s); skipping", med.ID, med.Type)
				continue
			}

			if isProblem {
				ok, err := m.markAlerting(ctx, chk, &med, n)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
			}

			alert, err := m.buildAlert(chk, &contact, &med, n)
			if err != nil {
				return nil, err
			}
			if isProblem {
				if err := m.applyRollup(ctx, chk, &med, alert); err != nil {
					return nil, err
				}
			}
			res.Alerts = append(res.Alerts, alert)
			produced = true
		}

		if produced {
			res.ContactRules[contact.ID] = append(res.ContactRules[contact.ID], rule.ID)
			res.RuleRoutes[rule.ID] = append(res.RuleRoutes[rule.ID], rt.ID)
			if isProblem && !rt.IsAlerting {
				rt.IsAlerting = true
				if err := m.store.Save(ctx, &rt); err != nil {
					return nil, err
				}
			}
		}
	}
	return res, nil
}

// markAlerting records a (check, medium) pair in the alerting media set.
// A pair already present only re-alerts on severity escalation.
func (m *Manager) markAlerting(ctx context.Context, chk *data.Check, med *data.Medium, n *data.Notification) (bool, error) {
	key := data.CheckAlertingMediaKey(chk.ID)
	score, present, err := m.store.SortedScore(ctx, key, med.ID)
	if err != nil {
		return false, err
	}
	sev := float64(n.Severity.Severity())
	if present && sev <= score {
		return false, nil
	}
	if err := m.store.SortedAdd(ctx, key, sev, med.ID); err != nil {
		return false, err
	}
	if err := m.store.AddToSet(ctx, data.MediumAlertingChecksKey(med.ID), chk.ID); err != nil {
		return false, err
	}
	return true, nil
}

// applyRollup converts an individual problem alert into a digest once the
// medium's simultaneously alerting check count exceeds its threshold
func (m *Manager) applyRollup(ctx context.Context, chk *data.Check, med *data.Medium, alert *data.Alert) error {
	if med.RollupThreshold <= 0 {
		return nil
	}
	checkIDs, err := m.store.SetMembers(ctx, data.MediumAlertingChecksKey(med.ID))
	if err != nil {
		return err
	}
	if len(checkIDs) <= med.RollupThreshold {
		return nil
	}
	names := make([]string, 0, len(checkIDs))
	for _, cid := range checkIDs {
		var other data.Check
		if err := m.store.Get(ctx, data.ClassCheck, cid, &other); err != nil {
			continue
		}
		names = append(names, other.Name)
	}
	alert.Rollup = data.RollupProblem
	alert.RollupChecks = names
	alert.Summary = fmt.Sprintf("%d checks failing", len(checkIDs))
	return nil
}

// resolveRecovery targets the media that previously alerted for the check,
// then clears the alerting state on routes and media
func (m *Manager) resolveRecovery(ctx context.Context, chk *data.Check, n *data.Notification) (*Resolution, error) {
	res := &Resolution{
		ContactRules: make(map[string][]string),
		RuleRoutes:   make(map[string][]string),
	}
	mediumIDs, err := m.store.SortedRange(ctx, data.CheckAlertingMediaKey(chk.ID), 0, maxSeverityScore)
	if err != nil {
		return nil, err
	}
	for _, mid := range mediumIDs {
		var med data.Medium
		if err := m.store.Get(ctx, data.ClassMedium, mid, &med); err != nil {
			log.Errorf(log.NotifierMgr, "Notifier: alerting media on check %s references missing medium %s: %v",
				chk.ID, mid, err)
			_ = m.store.SortedRemove(ctx, data.CheckAlertingMediaKey(chk.ID), mid)
			continue
		}
		var contact data.Contact
		if err := m.store.Get(ctx, data.ClassContact, med.ContactID, &contact); err != nil {
			log.Errorf(log.NotifierMgr, "Notifier: medium %s references missing contact %s: %v", mid, med.ContactID, err)
			continue
		}
		alert, err := m.buildAlert(chk, &contact, &med, n)
		if err != nil {
			return nil, err
		}
		if med.RollupThreshold > 0 {
			checkIDs, err := m.store.SetMembers(ctx, data.MediumAlertingChecksKey(med.ID))
			if err != nil {
				return nil, err
			}
			if len(checkIDs) > med.RollupThreshold {
				alert.Rollup = data.RollupRecovery
			}
		}
		res.Alerts = append(res.Alerts, alert)
	}

	if err := maintenance.ClearAlertingRoutes(ctx, m.store, chk.ID); err != nil {
		return nil, err
	}
	if err := maintenance.ClearAlertingMedia(ctx, m.store, chk.ID); err != nil {
		return nil, err
	}
	return res, nil
}

func (m *Manager) buildAlert(chk *data.Check, contact *data.Contact, med *data.Medium, n *data.Notification) (*data.Alert, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return &data.Alert{
		ID:             id.String(),
		NotificationID: n.ID,
		CheckID:        chk.ID,
		CheckName:      chk.Name,
		ContactID:      contact.ID,
		MediumID:       med.ID,
		MediumType:     med.Type,
		Address:        med.Address,
		Type:           n.Type,
		Condition:      n.Severity,
		Summary:        n.Summary,
		Details:        n.Details,
		EnqueuedAt:     time.Now().Unix(),
	}, nil
}

func ruleActiveAt(rule *data.Rule, contact *data.Contact, ts int64) bool {
	if len(rule.TimeRestrictions) == 0 {
		return true
	}
	loc := time.UTC
	if contact.Timezone != "" {
		parsed, err := time.LoadLocation(contact.Timezone)
		if err != nil {
			log.Warnf(log.NotifierMgr, "Notifier: contact %s has invalid timezone %q", contact.ID, contact.Timezone)
		} else {
			loc = parsed
		}
	}
	at := time.Unix(ts, 0)
	for i := range rule.TimeRestrictions {
		if rule.TimeRestrictions[i].ActiveAt(at, loc) {
			return true
		}
	}
	return false
}
