package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
)

// MappingResolver resolves the authoritative mapping for an operation label.
type MappingResolver interface {
	Resolve(operationLabel string, departmentID int32) (*domain.OperationMapping, error)
}

// MappingRule matches a transaction's source operation label against the
// learned operation mappings for its department. A stub mapping (nil category)
// produces a decision too: the label is known and intentionally uncategorized,
// so the remaining heuristics must not run.
type MappingRule struct {
	resolver MappingResolver
}

func NewMappingRule(resolver MappingResolver) *MappingRule {
	return &MappingRule{resolver: resolver}
}

func (r *MappingRule) Name() string { return "operation-mapping" }

func (r *MappingRule) Match(_ context.Context, input Input) (*Decision, error) {
	if input.OperationLabel == nil || *input.OperationLabel == "" {
		return nil, nil
	}

	mapping, err := r.resolver.Resolve(*input.OperationLabel, input.DepartmentID)
	if errors.Is(err, domain.ErrMappingNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if mapping.IsStub() {
		return &Decision{
			CategoryID: nil,
			Confidence: mapping.Confidence,
			Reasoning: []string{fmt.Sprintf(
				"operation label %q is excluded by mapping %d (stub)", *input.OperationLabel, mapping.ID)},
		}, nil
	}

	return &Decision{
		CategoryID: mapping.CategoryID,
		Confidence: mapping.Confidence,
		Reasoning: []string{fmt.Sprintf(
			"operation label %q matched mapping %d (priority %d, confidence %.2f)",
			*input.OperationLabel, mapping.ID, mapping.Priority, mapping.Confidence)},
	}, nil
}
