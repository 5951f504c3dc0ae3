package data

// ClassState is the store class name for states
const ClassState = "state"

// State is one sample in a check's history. Immutable once saved.
type State struct {
	ID        string    `json:"id"`
	CheckID   string    `json:"check_id"`
	Condition Condition `json:"condition"`
	CreatedAt int64     `json:"created_at"`
	Summary   string    `json:"summary"`
	Details   string    `json:"details"`
}

// Class implements store.Record
func (s *State) Class() string { return ClassState }

// Key implements store.Record
func (s *State) Key() string { return s.ID }

// Indexes implements store.Record
func (s *State) Indexes() map[string]string { return nil }
