package classify

import (
	"context"
	"fmt"

	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
)

const (
	// historyMinSamples is the minimum number of previously classified
	// transactions a counterparty needs before its history is trusted.
	historyMinSamples = 3
	// historyMinShare is the share of the counterparty's history the dominant
	// category must hold.
	historyMinShare = 0.8
	// historyConfidence is the moderate confidence a history match earns.
	historyConfidence = 0.65
)

// CounterpartyHistory exposes the classification history of counterparties.
type CounterpartyHistory interface {
	CounterpartyHistoryByINN(departmentID int32, inn string) ([]domain.CounterpartyCategoryStat, error)
	CounterpartyHistoryByName(departmentID int32, normalizedName string) ([]domain.CounterpartyCategoryStat, error)
}

// HistoryRule reuses the dominant category of a counterparty that was
// previously classified consistently. Tax id is the stronger identity and is
// tried before the normalized name.
type HistoryRule struct {
	history CounterpartyHistory
}

func NewHistoryRule(history CounterpartyHistory) *HistoryRule {
	return &HistoryRule{history: history}
}

func (r *HistoryRule) Name() string { return "counterparty-history" }

func (r *HistoryRule) Match(_ context.Context, input Input) (*Decision, error) {
	if input.CounterpartyINN != nil && *input.CounterpartyINN != "" {
		stats, err := r.history.CounterpartyHistoryByINN(input.DepartmentID, *input.CounterpartyINN)
		if err != nil {
			return nil, err
		}
		if decision := r.decide(stats, fmt.Sprintf("tax id %s", *input.CounterpartyINN)); decision != nil {
			return decision, nil
		}
	}

	if input.CounterpartyName != nil && *input.CounterpartyName != "" {
		normalized := domain.NormalizeCounterpartyName(*input.CounterpartyName)
		stats, err := r.history.CounterpartyHistoryByName(input.DepartmentID, normalized)
		if err != nil {
			return nil, err
		}
		if decision := r.decide(stats, fmt.Sprintf("name %q", normalized)); decision != nil {
			return decision, nil
		}
	}

	return nil, nil
}

func (r *HistoryRule) decide(stats []domain.CounterpartyCategoryStat, identity string) *Decision {
	var total, top int64
	var topCategory int32
	for _, stat := range stats {
		total += stat.Count
		if stat.Count > top {
			top = stat.Count
			topCategory = stat.CategoryID
		}
	}
	if total < historyMinSamples {
		return nil
	}
	if float64(top)/float64(total) < historyMinShare {
		return nil
	}
	category := topCategory
	return &Decision{
		CategoryID: &category,
		Confidence: historyConfidence,
		Reasoning: []string{fmt.Sprintf(
			"counterparty %s was classified into category %d in %d of %d prior transactions",
			identity, category, top, total)},
	}
}
