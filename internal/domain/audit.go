package domain

import "time"

// Action is a bitmask of entity lifecycle actions subject to auditing.
// The zero value means the entity is never audited.
type Action uint8

const (
	ActionCreate Action = 1 << iota
	ActionUpdate
	ActionDelete

	ActionAll = ActionCreate | ActionUpdate | ActionDelete
)

// Has reports whether a contains all actions in mask.
func (a Action) Has(mask Action) bool {
	return a&mask == mask
}

// EntryType marks the lifecycle phase an audit record was written for.
type EntryType string

const (
	EntryInsert EntryType = "I"
	EntryUpdate EntryType = "U"
	EntryDelete EntryType = "D"
)

// AuditRecord is one row of the field-level audit trail. For deletes a
// single record is written with a nil PropertyName.
type AuditRecord struct {
	ID           string    `json:"id"`
	EntryType    EntryType `json:"entryType"`
	EntityName   string    `json:"entityName"`
	EntityID     string    `json:"entityId"`
	PropertyName *string   `json:"propertyName,omitempty"`
	OldValue     *string   `json:"oldValue,omitempty"`
	NewValue     *string   `json:"newValue,omitempty"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
}
