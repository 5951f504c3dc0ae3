package data

// ClassMedium is the store class name for media
const ClassMedium = "medium"

// MediumType enumerates delivery channels
type MediumType string

// Supported delivery channel types
const (
	MediumEmail     MediumType = "email"
	MediumSMS       MediumType = "sms"
	MediumSMSNexmo  MediumType = "sms_nexmo"
	MediumSNS       MediumType = "sns"
	MediumPagerDuty MediumType = "pagerduty"
	MediumJabber    MediumType = "jabber"
	MediumSlack     MediumType = "slack"
	MediumWebhook   MediumType = "webhook"
)

// Medium is a delivery channel owned by a contact
type Medium struct {
	ID        string     `json:"id"`
	ContactID string     `json:"contact_id"`
	Type      MediumType `json:"type"`
	Address   string     `json:"address"`

	// Interval is the minimum number of seconds between identical alerts
	// on this medium
	Interval int `json:"interval"`

	// RollupThreshold switches the medium to digest alerts when more than
	// this many checks alert simultaneously; zero disables rollup
	RollupThreshold int `json:"rollup_threshold"`
}

// Class implements store.Record
func (m *Medium) Class() string { return ClassMedium }

// Key implements store.Record
func (m *Medium) Key() string { return m.ID }

// Indexes implements store.Record
func (m *Medium) Indexes() map[string]string { return nil }
