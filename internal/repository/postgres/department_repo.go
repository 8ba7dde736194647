package postgres

import (
	"context"

	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DepartmentRepository implements domain.DepartmentRepository using PostgreSQL
type DepartmentRepository struct {
	pool *pgxpool.Pool
}

// NewDepartmentRepository creates a new DepartmentRepository
func NewDepartmentRepository(pool *pgxpool.Pool) *DepartmentRepository {
	return &DepartmentRepository{pool: pool}
}

// GetByID retrieves a department by its ID
func (r *DepartmentRepository) GetByID(id int32) (*domain.Department, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, default_category_id, created_at, updated_at
		FROM departments
		WHERE id = $1`,
		id)

	var department domain.Department
	err := row.Scan(
		&department.ID, &department.Name, &department.DefaultCategoryID,
		&department.CreatedAt, &department.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrDepartmentNotFound
		}
		return nil, err
	}
	return &department, nil
}
