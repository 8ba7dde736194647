package postgres

import (
	"context"

	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OperationMappingRepository implements domain.OperationMappingRepository
// using PostgreSQL
type OperationMappingRepository struct {
	pool *pgxpool.Pool
}

// NewOperationMappingRepository creates a new OperationMappingRepository
func NewOperationMappingRepository(pool *pgxpool.Pool) *OperationMappingRepository {
	return &OperationMappingRepository{pool: pool}
}

const mappingColumns = `
	id, department_id, operation_label, category_id, priority, confidence,
	is_active, created_at, updated_at`

// Create inserts a new operation mapping
func (r *OperationMappingRepository) Create(mapping *domain.OperationMapping) (*domain.OperationMapping, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO operation_mappings (
			department_id, operation_label, category_id, priority, confidence, is_active
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+mappingColumns,
		mapping.DepartmentID, mapping.OperationLabel, mapping.CategoryID,
		mapping.Priority, mapping.Confidence, mapping.IsActive)

	created, err := scanMapping(row)
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a mapping by its ID within a department
func (r *OperationMappingRepository) GetByID(departmentID int32, id int32) (*domain.OperationMapping, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		SELECT `+mappingColumns+`
		FROM operation_mappings
		WHERE department_id = $1 AND id = $2`,
		departmentID, id)

	mapping, err := scanMapping(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrMappingNotFound
		}
		return nil, err
	}
	return mapping, nil
}

// Resolve returns the authoritative active mapping for the exact
// label+department. Tie-break order: highest priority, then highest
// confidence, then most recently updated.
func (r *OperationMappingRepository) Resolve(operationLabel string, departmentID int32) (*domain.OperationMapping, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		SELECT `+mappingColumns+`
		FROM operation_mappings
		WHERE operation_label = $1 AND department_id = $2 AND is_active = TRUE
		ORDER BY priority DESC, confidence DESC, updated_at DESC
		LIMIT 1`,
		operationLabel, departmentID)

	mapping, err := scanMapping(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrMappingNotFound
		}
		return nil, err
	}
	return mapping, nil
}

// ListActive returns all active mappings for a label within a department
func (r *OperationMappingRepository) ListActive(operationLabel string, departmentID int32) ([]*domain.OperationMapping, error) {
	ctx := context.Background()
	rows, err := r.pool.Query(ctx, `
		SELECT `+mappingColumns+`
		FROM operation_mappings
		WHERE operation_label = $1 AND department_id = $2 AND is_active = TRUE
		ORDER BY priority DESC, confidence DESC, updated_at DESC`,
		operationLabel, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []*domain.OperationMapping
	for rows.Next() {
		mapping, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, mapping)
	}
	return mappings, rows.Err()
}

// Deactivate marks a mapping inactive; superseded mappings are never deleted
func (r *OperationMappingRepository) Deactivate(departmentID int32, id int32) error {
	ctx := context.Background()
	tag, err := r.pool.Exec(ctx, `
		UPDATE operation_mappings
		SET is_active = FALSE, updated_at = NOW()
		WHERE department_id = $1 AND id = $2 AND is_active = TRUE`,
		departmentID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMappingNotFound
	}
	return nil
}

func scanMapping(row rowScanner) (*domain.OperationMapping, error) {
	var mapping domain.OperationMapping
	err := row.Scan(
		&mapping.ID, &mapping.DepartmentID, &mapping.OperationLabel,
		&mapping.CategoryID, &mapping.Priority, &mapping.Confidence,
		&mapping.IsActive, &mapping.CreatedAt, &mapping.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}
