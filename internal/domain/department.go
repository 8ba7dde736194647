package domain

import "time"

// Department scopes every transaction, mapping and aggregate. A department may
// carry a default category that a sync run can opt into applying to records
// the classifier left uncategorized.
type Department struct {
	ID                int32     `json:"id"`
	Name              string    `json:"name"`
	DefaultCategoryID *int32    `json:"defaultCategoryId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type DepartmentRepository interface {
	GetByID(id int32) (*Department, error)
}
