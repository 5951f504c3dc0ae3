package data

// ClassAlert is the store class name for alerts
const ClassAlert = "alert"

// Alert is a dispatchable delivery item targeted at one (contact, medium)
type Alert struct {
	ID             string           `json:"alert_id"`
	NotificationID string           `json:"notification_id"`
	CheckID        string           `json:"check_id"`
	CheckName      string           `json:"check_name"`
	ContactID      string           `json:"contact_id"`
	MediumID       string           `json:"medium_id"`
	MediumType     MediumType       `json:"medium_type"`
	Address        string           `json:"address"`
	Type           NotificationType `json:"notification_type"`
	Condition      Condition        `json:"condition"`
	Summary        string           `json:"summary"`
	Details        string           `json:"details"`
	Attempts       int              `json:"attempts"`
	EnqueuedAt     int64            `json:"enqueued_at"`

	// Rollup digest fields; RollupChecks carries the names of every
	// check the medium is currently alerting on when Rollup is set
	Rollup       string   `json:"rollup,omitempty"`
	RollupChecks []string `json:"rollup_checks,omitempty"`
}

// Rollup markers
const (
	RollupProblem  = "problem"
	RollupRecovery = "recovery"
)

// Class implements store.Record
func (a *Alert) Class() string { return ClassAlert }

// Key implements store.Record
func (a *Alert) Key() string { return a.ID }

// Indexes implements store.Record
func (a *Alert) Indexes() map[string]string { return nil }
