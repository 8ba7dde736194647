package domain

import "time"

type CategoryKind string

const (
	CategoryKindCapex CategoryKind = "capex"
	CategoryKindOpex  CategoryKind = "opex"
)

type BudgetCategory struct {
	ID           int32        `json:"id"`
	DepartmentID int32        `json:"departmentId"`
	Name         string       `json:"name"`
	Kind         CategoryKind `json:"kind"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	DeletedAt    *time.Time   `json:"deletedAt,omitempty"`
}

type BudgetCategoryRepository interface {
	Create(category *BudgetCategory) (*BudgetCategory, error)
	GetByID(departmentID int32, id int32) (*BudgetCategory, error)
	GetByName(departmentID int32, name string) (*BudgetCategory, error)
	GetAllByDepartment(departmentID int32) ([]*BudgetCategory, error)
	SoftDelete(departmentID int32, id int32) error
}
