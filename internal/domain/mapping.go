package domain

import "time"

// OperationMapping is a learned rule associating a source operation label with
// a budget category. A nil CategoryID is a valid stub: the label is known and
// intentionally left uncategorized, which is not the same as no mapping at all.
type OperationMapping struct {
	ID             int32     `json:"id"`
	DepartmentID   int32     `json:"departmentId"`
	OperationLabel string    `json:"operationLabel"`
	CategoryID     *int32    `json:"categoryId,omitempty"`
	Priority       int32     `json:"priority"`
	Confidence     float64   `json:"confidence"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// IsStub reports whether the mapping excludes its label from categorization.
func (m *OperationMapping) IsStub() bool {
	return m.CategoryID == nil
}

type OperationMappingRepository interface {
	Create(mapping *OperationMapping) (*OperationMapping, error)
	GetByID(departmentID int32, id int32) (*OperationMapping, error)
	// Resolve returns the authoritative active mapping for the exact
	// label+department: highest priority, then highest confidence, then most
	// recently updated. ErrMappingNotFound when none is active.
	Resolve(operationLabel string, departmentID int32) (*OperationMapping, error)
	ListActive(operationLabel string, departmentID int32) ([]*OperationMapping, error)
	Deactivate(departmentID int32, id int32) error
}
