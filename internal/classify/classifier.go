// Package classify assigns budget categories to imported transactions.
//
// Classification runs an ordered chain of rules. Each rule either abstains
// (nil decision) or produces a decision with a confidence score and a
// human-readable justification; the first non-abstaining rule wins and later
// rules never run. Classification is a pure read of its inputs and the current
// mapping/history snapshot — it never writes anything.
package classify

import (
	"context"
	"fmt"

	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
	"github.com/shopspring/decimal"
)

// Input carries the transaction attributes the rules consult.
type Input struct {
	PaymentPurpose   string
	CounterpartyName *string
	CounterpartyINN  *string
	Amount           decimal.Decimal
	DepartmentID     int32
	PaymentType      domain.PaymentType
	OperationLabel   *string
}

// Decision is the classifier outcome. A nil CategoryID with Confidence 0 means
// every rule abstained; a nil CategoryID with a positive confidence means a
// mapping stub explicitly excluded the label from categorization.
type Decision struct {
	CategoryID *int32
	Confidence float64
	Reasoning  []string
}

// Rule is one strategy in the chain. Returning (nil, nil) abstains.
type Rule interface {
	Name() string
	Match(ctx context.Context, input Input) (*Decision, error)
}

// Classifier runs rules in order and returns the first decision.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier over the given rule chain.
func NewClassifier(rules ...Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns the decision of the first matching rule. When every rule
// abstains the returned decision has no category and confidence 0, with the
// reasoning recording each rule that passed.
func (c *Classifier) Classify(ctx context.Context, input Input) (*Decision, error) {
	var abstained []string
	for _, rule := range c.rules {
		decision, err := rule.Match(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		if decision != nil {
			decision.Reasoning = append(abstained, decision.Reasoning...)
			return decision, nil
		}
		abstained = append(abstained, fmt.Sprintf("%s: no match", rule.Name()))
	}
	return &Decision{
		Confidence: 0,
		Reasoning:  append(abstained, "all rules exhausted, category left unassigned"),
	}, nil
}
