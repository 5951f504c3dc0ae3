package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flapjack/flapjack/config"
	"github.com/flapjack/flapjack/data"
	"github.com/flapjack/flapjack/gateways/base"
	"github.com/flapjack/flapjack/store/redisdb"
)

type fakeGateway struct {
	outcome base.Outcome
	got     []*data.Alert
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) Deliver(_ context.Context, alert *data.Alert) base.Outcome {
	g.got = append(g.got, alert)
	return g.outcome
}

func testManager(t *testing.T) (*Manager, *redisdb.DB, *fakeGateway) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	db := redisdb.NewWithClient(client)

	gw := &fakeGateway{outcome: base.Delivered}
	cfg := &config.Config{
		Notifier: config.NotifierConfig{MaxAttempts: 3, MaxBackoff: 60, ShutdownGrace: 1},
		Gateways: map[string]config.GatewayConfig{
			"email": {Enabled: true, Queue: "alerts.email", Timeout: 1, Workers: 1},
		},
	}
	m, err := Setup(cfg, db, db, map[data.MediumType]base.Gateway{data.MediumEmail: gw})
	require.NoError(t, err)
	return m, db, gw
}

// seedContact wires a contact, one email medium and one rule together
func seedContact(t *testing.T, db *redisdb.DB, contactID string, rule *data.Rule, med *data.Medium) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.Save(ctx, &data.Contact{ID: contactID, Name: contactID, Timezone: "UTC"}))

	med.ContactID = contactID
	require.NoError(t, db.Save(ctx, med))
	require.NoError(t, db.AddToSet(ctx, data.ContactMediaKey(contactID), med.ID))

	rule.ContactID = contactID
	require.NoError(t, db.Save(ctx, rule))
	require.NoError(t, db.AddToSet(ctx, data.ContactRulesKey(contactID), rule.ID))
	require.NoError(t, db.AddToSet(ctx, data.RuleMediaKey(rule.ID), med.ID))
	if rule.IsGeneric() {
		require.NoError(t, db.AddToSet(ctx, data.GenericRulesKey(), rule.ID))
	} else {
		for _, tag := range rule.Tags {
			require.NoError(t, db.AddToSet(ctx, data.TagRulesKey(tag), rule.ID))
		}
	}
}

func seedCheck(t *testing.T, db *redisdb.DB, id, name string, tags ...string) *data.Check {
	t.Helper()
	ctx := context.Background()
	chk := &data.Check{ID: id, Name: name, Enabled: true}
	require.NoError(t, db.Save(ctx, chk))
	for _, tag := range tags {
		require.NoError(t, db.AddToSet(ctx, data.CheckTagsKey(id), tag))
		require.NoError(t, db.AddToSet(ctx, data.TagChecksKey(tag), id))
	}
	require.NoError(t, RecomputeRoutes(ctx, db, chk))
	return chk
}

func problemFor(chk *data.Check, sev data.Condition, at int64) *data.Notification {
	return &data.Notification{
		ID:        "n-" + chk.ID,
		CheckID:   chk.ID,
		CheckName: chk.Name,
		Type:      data.NotificationProblem,
		Severity:  sev,
		Timestamp: at,
		Summary:   "it broke",
	}
}

func TestRecomputeRoutes(t *testing.T) {
	t.Parallel()
	_, db, _ := testManager(t)
	ctx := context.Background()

	seedContact(t, db, "alice", &data.Rule{ID: "generic"}, &data.Medium{ID: "m1", Type: data.MediumEmail})
	seedContact(t, db, "bob", &data.Rule{
		ID:         "tagged",
		Tags:       []string{"prod", "web"},
		Conditions: []data.Condition{data.ConditionCritical},
	}, &data.Medium{ID: "m2", Type: data.MediumEmail})

	// only the generic rule matches a check carrying one of the two tags
	chk := seedCheck(t, db, "c1", "web1:http", "prod")
	routes, err := db.SetMembers(ctx, data.CheckRoutesKey("c1"))
	require.NoError(t, err)
	require.Len(t, routes, 1)

	var rt data.Route
	require.NoError(t, db.Get(ctx, data.ClassRoute, routes[0], &rt))
	assert.Equal(t, "generic", rt.RuleID)
	assert.Equal(t, "alice", rt.ContactID)
	assert.False(t, rt.IsAlerting)
	assert.Empty(t, rt.ConditionsList)

	// completing the tag set pulls in the tagged rule
	require.NoError(t, db.AddToSet(ctx, data.CheckTagsKey("c1"), "web"))
	require.NoError(t, RecomputeRoutes(ctx, db, chk))
	routes, err = db.SetMembers(ctx, data.CheckRoutesKey("c1"))
	require.NoError(t, err)
	require.Len(t, routes, 2)

	var taggedRoute data.Route
	for _, id := range routes {
		require.NoError(t, db.Get(ctx, data.ClassRoute, id, &taggedRoute))
		if taggedRoute.RuleID == "tagged" {
			break
		}
	}
	assert.Equal(t, "bob", taggedRoute.ContactID)
	assert.Equal(t, []data.Condition{data.ConditionCritical}, taggedRoute.ConditionsList)

	// dropping a tag removes the tagged route and its record
	require.NoError(t, db.RemoveFromSet(ctx, data.CheckTagsKey("c1"), "web"))
	require.NoError(t, RecomputeRoutes(ctx, db, chk))
	routes, err = db.SetMembers(ctx, data.CheckRoutesKey("c1"))
	require.NoError(t, err)
	require.Len(t, routes, 1)

	var gone data.Route
	err = db.Get(ctx, data.ClassRoute, taggedRoute.ID, &gone)
	assert.Error(t, err)

	// recomputing again is stable
	require.NoError(t, RecomputeRoutes(ctx, db, chk))
	again, err := db.SetMembers(ctx, data.CheckRoutesKey("c1"))
	require.NoError(t, err)
	assert.Equal(t, routes, again)
}

func TestResolveProblemDeduplicatesPerMedium(t *testing.T) {
	t.Parallel()
	m, db, _ := testManager(t)
	ctx := context.Background()

	seedContact(t, db, "alice", &data.Rule{ID: "r1"}, &data.Medium{ID: "m1", Type: data.MediumEmail, Address: "alice@example.com"})
	chk := seedCheck(t, db, "c1", "web1:http")

	res, err := m.Resolve(ctx, problemFor(chk, data.ConditionWarning, 1000))
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	alert := res.Alerts[0]
	assert.Equal(t, "alice", alert.ContactID)
	assert.Equal(t, "alice@example.com", alert.Address)
	assert.Equal(t, data.MediumEmail, alert.MediumType)
	assert.Equal(t, data.ConditionWarning, alert.Condition)

	routes, err := db.SetMembers(ctx, data.CheckRoutesKey("c1"))
	require.NoError(t, err)
	var rt data.Route
	require.NoError(t, db.Get(ctx, data.ClassRoute, routes[0], &rt))
	assert.True(t, rt.IsAlerting)

	// the same severity does not alert the medium again
	res, err = m.Resolve(ctx, problemFor(chk, data.ConditionWarning, 1300))
	require.NoError(t, err)
	assert.Empty(t, res.Alerts)

	// escalation does
	res, err = m.Resolve(ctx, problemFor(chk, data.ConditionCritical, 1310))
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, data.ConditionCritical, res.Alerts[0].Condition)

	// and a later de-escalation does not
	res, err = m.Resolve(ctx, problemFor(chk, data.ConditionWarning, 1320))
	require.NoError(t, err)
	assert.Empty(t, res.Alerts)
}

func TestResolveSkipsUndeliverableMedium(t *testing.T) {
	t.Parallel()
	m, db, _ := testManager(t)
	ctx := context.Background()

	// carol's pagerduty medium has no gateway block in this deployment
	seedContact(t, db, "carol", &data.Rule{ID: "r1"}, &data.Medium{ID: "m1", Type: data.MediumPagerDuty})
	chk := seedCheck(t, db, "c1", "web1:http")

	res, err := m.Resolve(ctx, problemFor(chk, data.ConditionCritical, 1000))
	require.NoError(t, err)
	assert.Empty(t, res.Alerts)

	// the pair must not be marked alerting, or it would swallow the
	// re-alert once a pagerduty gateway is configured
	media, err := db.SortedRange(ctx, data.CheckAlertingMediaKey("c1"), 0, maxSeverityScore)
	require.NoError(t, err)
	assert.Empty(t, media)

	m.gatewayCfg["pagerduty"] = config.GatewayConfig{Enabled: true, Queue: "alerts.pagerduty"}
	res, err = m.Resolve(ctx, problemFor(chk, data.ConditionCritical, 1010))
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "m1", res.Alerts[0].MediumID)
}

func TestResolveSeverityFilter(t *testing.T) {
	t.Parallel()
	m, db, _ := testManager(t)
	ctx := context.Background()

	seedContact(t, db, "alice", &data.Rule{
		ID:         "crit-only",
		Conditions: []data.Condition{data.ConditionCritical},
	}, &data.Medium{ID: "m1", Type: data.MediumEmail})
	chk := seedCheck(t, db, "c1", "web1:http")

	res, err := m.Resolve(ctx, problemFor(chk, data.ConditionWarning, 1000))
	require.NoError(t, err)
	assert.Empty(t, res.Alerts)

	res, err = m.Resolve(ctx, problemFor(chk, data.ConditionCritical, 1010))
	require.NoError(t, err)
	assert.Len(t, res.Alerts, 1)
}

func TestResolveTimeRestrictions(t *testing.T) {
	t.Parallel()
	m, db, _ := testManager(t)
	ctx := context.Background()

	seedContact(t, db, "alice", &data.Rule{
		ID: "office-hours",
		TimeRestrictions: []data.TimeRestriction{
			{Days: []string{"monday"}, StartTime: "09:00", EndTime: "17:00"},
		},
	}, &data.Medium{ID: "m1", Type: data.MediumEmail})
	chk := seedCheck(t, db, "c1", "web1:http")

	// 2026-08-24 is a Monday
	inHours := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC).Unix()
	afterHours := time.Date(2026, 8, 24, 20, 0, 0, 0, time.UTC).Unix()

	res, err := m.Resolve(ctx, problemFor(chk, data.ConditionCritical, inHours))
	require.NoError(t, err)
	assert.Len(t, res.Alerts, 1)

	res, err = m.Resolve(ctx, problemFor(chk, data.ConditionCritical, afterHours))
	require.NoError(t, err)
	assert.Empty(t, res.Alerts)

	// test notifications ignore the schedule
	res, err = m.Resolve(ctx, &data.Notification{
		ID: "t1", CheckID: "c1", CheckName: chk.Name,
		Type: data.NotificationTest, Severity: data.ConditionCritical,
		Timestamp: afterHours, Summary: "test",
	})
	require.NoError(t, err)
	assert.Len(t, res.Alerts, 1)
}

func TestResolveTestNotificationTargetsOneContact(t *testing.T) {
	t.Parallel()
	m, db, _ := testManager(t)
	ctx := context.Background()

	seedContact(t, db, "alice", &data.Rule{ID: "r1"}, &data.Medium{ID: "m1", Type: data.MediumEmail})
	seedContact(t, db, "bob", &data.Rule{ID: "r2"}, &data.Medium{ID: "m2", Type: data.MediumEmail})
	chk := seedCheck(t, db, "c1", "web1:http")

	res, err := m.Resolve(ctx, &data.Notification{
		ID: "t1", CheckID: "c1", CheckName: chk.Name,
		Type: data.NotificationTest, Severity: data.ConditionCritical,
		Timestamp: 1000, Summary: "test", ContactID: "bob",
	})
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "bob", res.Alerts[0].ContactID)

	// test notifications never mark media as alerting
	media, err := db.SortedRange(ctx, data.CheckAlertingMediaKey("c1"), 0, maxSeverityScore)
	require.NoError(t, err)
	assert.Empty(t, media)
}

func TestResolveRollup(t *testing.T) {
	t.Parallel()
	m, db, _ := testManager(t)
	ctx := context.Background()

	seedContact(t, db, "alice", &data.Rule{ID: "r1"}, &data.Medium{
		ID: "m1", Type: data.MediumEmail, RollupThreshold: 1,
	})
	c1 := seedCheck(t, db, "c1", "web1:http")
	c2 := seedCheck(t, db, "c2", "web2:http")

	res, err := m.Resolve(ctx, problemFor(c1, data.ConditionCritical, 1000))
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	assert.Empty(t, res.Alerts[0].Rollup)

	// the second simultaneously failing check tips the medium into digests
	res, err = m.Resolve(ctx, problemFor(c2, data.ConditionCritical, 1010))
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, data.RollupProblem, res.Alerts[0].Rollup)
	assert.Equal(t, "2 checks failing", res.Alerts[0].Summary)
	assert.ElementsMatch(t, []string{"web1:http", "web2:http"}, res.Alerts[0].RollupChecks)

	// recovering one check while still over threshold sends a rollup recovery
	res, err = m.Resolve(ctx, &data.Notification{
		ID: "n-rec", CheckID: "c1", CheckName: c1.Name,
		Type: data.NotificationRecovery, Severity: data.ConditionOK,
		Timestamp: 1020, Summary: "back",
	})
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, data.RollupRecovery, res.Alerts[0].Rollup)

	checks, err := db.SetMembers(ctx, data.MediumAlertingChecksKey("m1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, checks)
}

func TestResolveRecoveryClearsAlertingState(t *testing.T) {
	t.Parallel()
	m, db, _ := testManager(t)
	ctx := context.Background()

	seedContact(t, db, "alice", &data.Rule{ID: "r1"}, &data.Medium{ID: "m1", Type: data.MediumEmail})
	chk := seedCheck(t, db, "c1", "web1:http")

	res, err := m.Resolve(ctx, problemFor(chk, data.ConditionCritical, 1000))
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)

	res, err = m.Resolve(ctx, &data.Notification{
		ID: "n-rec", CheckID: "c1", CheckName: chk.Name,
		Type: data.NotificationRecovery, Severity: data.ConditionOK,
		Timestamp: 1010, Summary: "back",
	})
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, data.NotificationRecovery, res.Alerts[0].Type)

	media, err := db.SortedRange(ctx, data.CheckAlertingMediaKey("c1"), 0, maxSeverityScore)
	require.NoError(t, err)
	assert.Empty(t, media)

	routes, err := db.SetMembers(ctx, data.CheckRoutesKey("c1"))
	require.NoError(t, err)
	var rt data.Route
	require.NoError(t, db.Get(ctx, data.ClassRoute, routes[0], &rt))
	assert.False(t, rt.IsAlerting)

	// a recovery with no alerting media targets nobody
	res, err = m.Resolve(ctx, &data.Notification{
		ID: "n-rec2", CheckID: "c1", CheckName: chk.Name,
		Type: data.NotificationRecovery, Severity: data.ConditionOK,
		Timestamp: 1020, Summary: "still back",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Alerts)
}
