package base

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flapjack/flapjack/data"
)

func TestClassifyStatus(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Delivered, ClassifyStatus(http.StatusOK))
	assert.Equal(t, Delivered, ClassifyStatus(http.StatusAccepted))
	assert.Equal(t, TransientFailure, ClassifyStatus(http.StatusTooManyRequests))
	assert.Equal(t, TransientFailure, ClassifyStatus(http.StatusBadGateway))
	assert.Equal(t, PermanentFailure, ClassifyStatus(http.StatusBadRequest))
	assert.Equal(t, PermanentFailure, ClassifyStatus(http.StatusNotFound))
}

func TestSubject(t *testing.T) {
	t.Parallel()
	problem := &data.Alert{
		CheckName: "web1:http",
		Type:      data.NotificationProblem,
		Condition: data.ConditionCritical,
		Summary:   "connection refused",
	}
	assert.Equal(t, "ALERT web1:http is critical: connection refused", Subject(problem))

	recovery := &data.Alert{
		CheckName: "web1:http",
		Type:      data.NotificationRecovery,
		Condition: data.ConditionOK,
		Summary:   "200 OK",
	}
	assert.Equal(t, "RECOVERY web1:http is ok: 200 OK", Subject(recovery))

	rollup := &data.Alert{
		Type:         data.NotificationProblem,
		Rollup:       data.RollupProblem,
		RollupChecks: []string{"web1:http", "web2:http", "db1:ping"},
	}
	assert.Equal(t, "ALERT [rollup] 3 checks failing: web1:http, web2:http, db1:ping", Subject(rollup))
}

func TestBody(t *testing.T) {
	t.Parallel()
	a := &data.Alert{
		CheckName:    "web1:http",
		Type:         data.NotificationProblem,
		Condition:    data.ConditionWarning,
		Summary:      "slow",
		Details:      "latency 4s",
		RollupChecks: []string{"web1:http", "web2:http"},
	}
	body := Body(a)
	assert.Contains(t, body, "latency 4s")
	assert.Contains(t, body, "  - web2:http")
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "delivered", Delivered.String())
	assert.Equal(t, "transient failure", TransientFailure.String())
	assert.Equal(t, "permanent failure", PermanentFailure.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
