package classify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Roughriver74/west-buget-it-sub003/internal/domain"
)

// KeywordEntry associates a payment-purpose phrase with a category name.
// Confidence reflects how specific the phrase is: a generic phrase like
// "оплата" earns less trust than a narrow one like "аренда помещения".
type KeywordEntry struct {
	Phrase       string
	CategoryName string
	Confidence   float64
}

// DefaultKeywords is the bounded set of known purpose-phrase associations.
// Phrases are matched case-insensitively as substrings of the payment purpose.
var DefaultKeywords = []KeywordEntry{
	{Phrase: "аренда помещения", CategoryName: "Rent", Confidence: 0.8},
	{Phrase: "аренда", CategoryName: "Rent", Confidence: 0.65},
	{Phrase: "заработная плата", CategoryName: "Payroll", Confidence: 0.8},
	{Phrase: "зарплата", CategoryName: "Payroll", Confidence: 0.75},
	{Phrase: "оплата счету по заказу", CategoryName: "Customer payments", Confidence: 0.6},
	{Phrase: "оплата по счету", CategoryName: "Suppliers", Confidence: 0.55},
	{Phrase: "страховая премия", CategoryName: "Insurance", Confidence: 0.75},
	{Phrase: "лицензия", CategoryName: "Software licenses", Confidence: 0.7},
	{Phrase: "подписка", CategoryName: "Software licenses", Confidence: 0.6},
	{Phrase: "коммунальные услуги", CategoryName: "Utilities", Confidence: 0.8},
	{Phrase: "электроэнергия", CategoryName: "Utilities", Confidence: 0.75},
	{Phrase: "услуги связи", CategoryName: "Telecom", Confidence: 0.75},
	{Phrase: "интернет", CategoryName: "Telecom", Confidence: 0.6},
	{Phrase: "командировочные расходы", CategoryName: "Travel", Confidence: 0.8},
	{Phrase: "возврат", CategoryName: "Refunds", Confidence: 0.5},
	{Phrase: "налог", CategoryName: "Taxes", Confidence: 0.65},
}

// CategoryLookup resolves a category name within a department.
type CategoryLookup interface {
	GetByName(departmentID int32, name string) (*domain.BudgetCategory, error)
}

// KeywordRule matches known phrases in the free-text payment purpose. When
// several phrases match, the most confident one wins; ties go to the longer
// (more specific) phrase.
type KeywordRule struct {
	categories CategoryLookup
	keywords   []KeywordEntry
}

func NewKeywordRule(categories CategoryLookup, keywords []KeywordEntry) *KeywordRule {
	sorted := make([]KeywordEntry, len(keywords))
	copy(sorted, keywords)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		return len(sorted[i].Phrase) > len(sorted[j].Phrase)
	})
	return &KeywordRule{categories: categories, keywords: sorted}
}

func (r *KeywordRule) Name() string { return "purpose-keyword" }

func (r *KeywordRule) Match(_ context.Context, input Input) (*Decision, error) {
	purpose := strings.ToLower(input.PaymentPurpose)
	if purpose == "" {
		return nil, nil
	}

	for _, entry := range r.keywords {
		if !strings.Contains(purpose, strings.ToLower(entry.Phrase)) {
			continue
		}
		category, err := r.categories.GetByName(input.DepartmentID, entry.CategoryName)
		if errors.Is(err, domain.ErrCategoryNotFound) {
			// The phrase is known but the department has no such category;
			// let the remaining rules try.
			continue
		}
		if err != nil {
			return nil, err
		}
		return &Decision{
			CategoryID: &category.ID,
			Confidence: entry.Confidence,
			Reasoning: []string{fmt.Sprintf(
				"payment purpose contains %q, associated with category %q (confidence %.2f)",
				entry.Phrase, entry.CategoryName, entry.Confidence)},
		}, nil
	}
	return nil, nil
}
