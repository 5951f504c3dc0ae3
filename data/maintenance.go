package data

// Store class names for maintenance windows
const (
	ClassScheduledMaintenance   = "scheduled_maintenance"
	ClassUnscheduledMaintenance = "unscheduled_maintenance"
)

// ScheduledMaintenance is a pre-declared suppression window [StartTime,
// EndTime). StartTime never changes once persisted; EndTime may be truncated.
type ScheduledMaintenance struct {
	ID        string `json:"id"`
	CheckID   string `json:"check_id"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Summary   string `json:"summary"`
}

// Class implements store.Record
func (m *ScheduledMaintenance) Class() string { return ClassScheduledMaintenance }

// Key implements store.Record
func (m *ScheduledMaintenance) Key() string { return m.ID }

// Indexes implements store.Record
func (m *ScheduledMaintenance) Indexes() map[string]string { return nil }

// ActiveAt reports whether t falls inside the window
func (m *ScheduledMaintenance) ActiveAt(t int64) bool {
	return m.StartTime <= t && t < m.EndTime
}

// UnscheduledMaintenance is a suppression window opened by an
// acknowledgement. A check has at most one open window at a time.
type UnscheduledMaintenance struct {
	ID        string `json:"id"`
	CheckID   string `json:"check_id"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Summary   string `json:"summary"`
}

// Class implements store.Record
func (m *UnscheduledMaintenance) Class() string { return ClassUnscheduledMaintenance }

// Key implements store.Record
func (m *UnscheduledMaintenance) Key() string { return m.ID }

// Indexes implements store.Record
func (m *UnscheduledMaintenance) Indexes() map[string]string { return nil }

// ActiveAt reports whether t falls inside the window
func (m *UnscheduledMaintenance) ActiveAt(t int64) bool {
	return m.StartTime <= t && t < m.EndTime
}
