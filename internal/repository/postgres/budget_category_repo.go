package postgres

import (
	"context"

	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BudgetCategoryRepository implements domain.BudgetCategoryRepository using PostgreSQL
type BudgetCategoryRepository struct {
	pool *pgxpool.Pool
}

// NewBudgetCategoryRepository creates a new BudgetCategoryRepository
func NewBudgetCategoryRepository(pool *pgxpool.Pool) *BudgetCategoryRepository {
	return &BudgetCategoryRepository{pool: pool}
}

const categoryColumns = `
	id, department_id, name, kind, created_at, updated_at, deleted_at`

// Create creates a new budget category
func (r *BudgetCategoryRepository) Create(category *domain.BudgetCategory) (*domain.BudgetCategory, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO budget_categories (department_id, name, kind)
		VALUES ($1, $2, $3)
		RETURNING `+categoryColumns,
		category.DepartmentID, category.Name, string(category.Kind))

	created, err := scanCategory(row)
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a budget category by its ID within a department
func (r *BudgetCategoryRepository) GetByID(departmentID int32, id int32) (*domain.BudgetCategory, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		SELECT `+categoryColumns+`
		FROM budget_categories
		WHERE department_id = $1 AND id = $2 AND deleted_at IS NULL`,
		departmentID, id)

	category, err := scanCategory(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, err
	}
	return category, nil
}

// GetByName retrieves a budget category by its name within a department
func (r *BudgetCategoryRepository) GetByName(departmentID int32, name string) (*domain.BudgetCategory, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		SELECT `+categoryColumns+`
		FROM budget_categories
		WHERE department_id = $1 AND name = $2 AND deleted_at IS NULL`,
		departmentID, name)

	category, err := scanCategory(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, err
	}
	return category, nil
}

// GetAllByDepartment retrieves all budget categories for a department
func (r *BudgetCategoryRepository) GetAllByDepartment(departmentID int32) ([]*domain.BudgetCategory, error) {
	ctx := context.Background()
	rows, err := r.pool.Query(ctx, `
		SELECT `+categoryColumns+`
		FROM budget_categories
		WHERE department_id = $1 AND deleted_at IS NULL
		ORDER BY name`,
		departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []*domain.BudgetCategory
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// SoftDelete marks a budget category as deleted
func (r *BudgetCategoryRepository) SoftDelete(departmentID int32, id int32) error {
	ctx := context.Background()
	tag, err := r.pool.Exec(ctx, `
		UPDATE budget_categories
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE department_id = $1 AND id = $2 AND deleted_at IS NULL`,
		departmentID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}

func scanCategory(row rowScanner) (*domain.BudgetCategory, error) {
	var (
		category domain.BudgetCategory
		kind     string
	)
	err := row.Scan(
		&category.ID, &category.DepartmentID, &category.Name, &kind,
		&category.CreatedAt, &category.UpdatedAt, &category.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	category.Kind = domain.CategoryKind(kind)
	return &category, nil
}
