package data

// ClassNotification is the store class name for notifications
const ClassNotification = "notification"

// NotificationType classifies why an alert is being sent
type NotificationType string

// Notification types
const (
	NotificationProblem              NotificationType = "problem"
	NotificationAcknowledgement      NotificationType = "acknowledgement"
	NotificationRecovery             NotificationType = "recovery"
	NotificationScheduledMaintenance NotificationType = "scheduled_maintenance"
	NotificationTest                 NotificationType = "test"
)

// Notification is the internal work item emitted by the processor when a
// transition warrants delivery
type Notification struct {
	ID        string           `json:"id"`
	CheckID   string           `json:"check_id"`
	CheckName string           `json:"check_name"`
	StateID   string           `json:"state_id"`
	Type      NotificationType `json:"type"`
	Severity  Condition        `json:"severity"`
	Timestamp int64            `json:"timestamp"`
	Summary   string           `json:"summary"`
	Details   string           `json:"details"`

	// ContactID narrows a test notification to one contact's routes
	ContactID string `json:"contact_id,omitempty"`

	// Escalated marks a problem whose severity rose above the episode's
	// previous worst, bypassing per-medium de-duplication
	Escalated bool `json:"escalated,omitempty"`
}

// Class implements store.Record
func (n *Notification) Class() string { return ClassNotification }

// Key implements store.Record
func (n *Notification) Key() string { return n.ID }

// Indexes implements store.Record
func (n *Notification) Indexes() map[string]string { return nil }
