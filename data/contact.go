package data

import "fmt"

// ClassContact is the store class name for contacts
const ClassContact = "contact"

// Contact is a human recipient of alerts
type Contact struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// Class implements store.Record
func (c *Contact) Class() string { return ClassContact }

// Key implements store.Record
func (c *Contact) Key() string { return c.ID }

// Indexes implements store.Record
func (c *Contact) Indexes() map[string]string {
	return map[string]string{"name": c.Name}
}

// ContactMediaKey holds the set of medium ids owned by a contact
func ContactMediaKey(contactID string) string {
	return fmt.Sprintf("contact:%s:media", contactID)
}

// ContactRulesKey holds the set of rule ids owned by a contact
func ContactRulesKey(contactID string) string {
	return fmt.Sprintf("contact:%s:rules", contactID)
}
