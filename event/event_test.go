package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flapjack/flapjack/data"
)

func TestParse(t *testing.T) {
	t.Parallel()
	raw := []byte(`{"entity":"web1","check":"http","type":"service","state":"critical","summary":"connection refused","time":1700000000,"tags":["prod","web"]}`)
	e, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "web1:http", e.CheckName())
	assert.Equal(t, data.ConditionCritical, e.Condition())
	assert.Equal(t, TypeService, e.Type)
	assert.Equal(t, []string{"prod", "web"}, e.Tags)
	assert.False(t, e.IsAcknowledgement())
}

func TestParseAction(t *testing.T) {
	t.Parallel()
	raw := []byte(`{"entity":"web1","type":"action","state":"acknowledgement","summary":"on it","time":1700000000,"acknowledgement_id":"8f3a2b1c","duration":3600}`)
	e, err := Parse(raw)
	require.NoError(t, err)
	assert.True(t, e.IsAcknowledgement())
	assert.Equal(t, int64(3600), e.Duration)
	assert.Equal(t, "8f3a2b1c", e.AcknowledgementID)
	assert.Equal(t, "web1", e.CheckName())
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		raw  string
		err  error
	}{
		{"not json", `{{{`, ErrMalformed},
		{"missing entity", `{"type":"service","state":"ok","summary":"x","time":1}`, ErrMalformed},
		{"missing time", `{"entity":"a","type":"service","state":"ok","summary":"x"}`, ErrMalformed},
		{"bad type", `{"entity":"a","type":"gauge","state":"ok","summary":"x","time":1}`, ErrInvalidType},
		{"bad state", `{"entity":"a","type":"service","state":"sideways","summary":"x","time":1}`, ErrMalformed},
		{"action with condition state", `{"entity":"a","type":"action","state":"ok","summary":"x","time":1}`, ErrMalformed},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tc.raw))
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestParseOverrides(t *testing.T) {
	t.Parallel()
	raw := []byte(`{"entity":"db1","type":"service","state":"warning","summary":"slow","time":5,"initial_failure_delay":60,"repeat_failure_delay":120}`)
	e, err := Parse(raw)
	require.NoError(t, err)
	require.NotNil(t, e.InitialFailureDelay)
	require.NotNil(t, e.RepeatFailureDelay)
	assert.Equal(t, 60, *e.InitialFailureDelay)
	assert.Equal(t, 120, *e.RepeatFailureDelay)
}
