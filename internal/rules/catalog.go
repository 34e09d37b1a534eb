// internal/rules/catalog.go
package rules

import (
	"context"
	"fmt"

	"github.com/solatis/stagekeeper/internal/types"
)

/*
 * Field and list catalog.
 *
 * The catalog is the injected vocabulary a rule is checked against: which
 * transaction attributes exist and their kind, which transaction categories
 * exist, and a registry that resolves list ids. The core never stores list
 * contents; it only checks that ids resolve.
 *
 * Field kinds:
 *   - numeric:  ordering operators, numeric thresholds, selectable threshold type
 *   - text:     equality and substring operators, literal threshold
 *   - category: equality and membership operators, literal threshold
 *   - list:     membership in an external list chosen via selectedList
 *
 * Only numeric fields may use percentage or reference thresholds; every
 * other kind is implicitly literal.
 */

// FieldKind classifies a transaction attribute.
type FieldKind string

const (
	FieldNumeric  FieldKind = "numeric"
	FieldText     FieldKind = "text"
	FieldCategory FieldKind = "category"
	FieldList     FieldKind = "list"
)

// ParseFieldKind converts s to a FieldKind.
func ParseFieldKind(s string) (FieldKind, error) {
	switch FieldKind(s) {
	case FieldNumeric, FieldText, FieldCategory, FieldList:
		return FieldKind(s), nil
	default:
		return "", fmt.Errorf("field kind %q: %w", s, types.ErrInvalidEnum)
	}
}

// FieldSpec names one catalog field.
type FieldSpec struct {
	Name  string
	Label string
	Kind  FieldKind
}

// ListRef identifies an external list. Contents are never held by the core.
type ListRef struct {
	ID    string
	Name  string
	Type  string
	Count int
}

// ListRegistry resolves list ids.
type ListRegistry interface {
	Lookup(ctx context.Context, id string) (ListRef, bool, error)
}

// StaticLists is an in-memory ListRegistry.
type StaticLists []ListRef

// Lookup implements ListRegistry.
func (l StaticLists) Lookup(_ context.Context, id string) (ListRef, bool, error) {
	for _, ref := range l {
		if ref.ID == id {
			return ref, true, nil
		}
	}
	return ListRef{}, false, nil
}

// ChainedLists resolves an id through each registry in turn.
type ChainedLists []ListRegistry

// Lookup implements ListRegistry. The first registry that knows id wins.
func (l ChainedLists) Lookup(ctx context.Context, id string) (ListRef, bool, error) {
	for _, registry := range l {
		if registry == nil {
			continue
		}
		ref, ok, err := registry.Lookup(ctx, id)
		if err != nil || ok {
			return ref, ok, err
		}
	}
	return ListRef{}, false, nil
}

// Catalog is the vocabulary rules are validated against.
type Catalog struct {
	fields           map[string]FieldSpec
	order            []string
	transactionTypes []string
	lists            ListRegistry
}

// NewCatalog builds a catalog. Later duplicates of a field name replace earlier ones.
// A nil registry resolves no list.
func NewCatalog(fields []FieldSpec, transactionTypes []string, lists ListRegistry) *Catalog {
	c := &Catalog{
		fields:           make(map[string]FieldSpec, len(fields)),
		transactionTypes: append([]string(nil), transactionTypes...),
		lists:            lists,
	}
	for _, f := range fields {
		if _, seen := c.fields[f.Name]; !seen {
			c.order = append(c.order, f.Name)
		}
		c.fields[f.Name] = f
	}
	if c.lists == nil {
		c.lists = StaticLists(nil)
	}
	return c
}

// DefaultFields is the built-in transaction attribute vocabulary.
var DefaultFields = []FieldSpec{
	{Name: "amount", Label: "Amount", Kind: FieldNumeric},
	{Name: "transaction_count", Label: "Transaction Count", Kind: FieldNumeric},
	{Name: "transaction_type", Label: "Transaction Type", Kind: FieldCategory},
	{Name: "pep_list", Label: "PEP List", Kind: FieldList},
	{Name: "country", Label: "Country", Kind: FieldCategory},
	{Name: "merchant", Label: "Merchant", Kind: FieldText},
	{Name: "merchant_category", Label: "Merchant Category", Kind: FieldCategory},
	{Name: "customer_id", Label: "Customer ID", Kind: FieldText},
	{Name: "account_id", Label: "Account ID", Kind: FieldText},
	{Name: "channel", Label: "Channel", Kind: FieldCategory},
	{Name: "counterparty_name", Label: "Counterparty Name", Kind: FieldText},
	{Name: "counterparty_type", Label: "Counterparty Type", Kind: FieldCategory},
	{Name: "currency", Label: "Currency", Kind: FieldCategory},
	{Name: "account_type", Label: "Account Type", Kind: FieldCategory},
}

// DefaultTransactionTypes is the built-in transaction category vocabulary.
var DefaultTransactionTypes = []string{"deposit", "withdrawal", "transfer"}

// DefaultLists is the built-in list registry content.
var DefaultLists = StaticLists{
	{ID: "pep_a", Name: "PEP List A", Type: "pep"},
	{ID: "pep_b", Name: "PEP List B", Type: "pep"},
	{ID: "hawala", Name: "Hawala Parties", Type: "counterparty"},
	{ID: "watchlist", Name: "Watchlist", Type: "watchlist"},
	{ID: "sanctions", Name: "Sanctions List", Type: "sanctions"},
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	return NewCatalog(DefaultFields, DefaultTransactionTypes, DefaultLists)
}

// Fields returns the catalog fields in declaration order.
func (c *Catalog) Fields() []FieldSpec {
	out := make([]FieldSpec, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.fields[name])
	}
	return out
}

// Kind returns the kind of field, if the catalog knows it.
func (c *Catalog) Kind(field string) (FieldKind, bool) {
	f, ok := c.fields[field]
	return f.Kind, ok
}

// KindOf returns the kind of a nullable target field; false when unset or unknown.
func (c *Catalog) KindOf(field *string) (FieldKind, bool) {
	if field == nil {
		return "", false
	}
	return c.Kind(*field)
}

// IsNumeric reports whether field resolves to a numeric attribute.
func (c *Catalog) IsNumeric(field *string) bool {
	k, ok := c.KindOf(field)
	return ok && k == FieldNumeric
}

// HasTransactionType reports whether t is a known transaction category.
func (c *Catalog) HasTransactionType(t string) bool {
	for _, known := range c.transactionTypes {
		if known == t {
			return true
		}
	}
	return false
}

// TransactionTypes returns the known transaction categories.
func (c *Catalog) TransactionTypes() []string {
	return append([]string(nil), c.transactionTypes...)
}

// Lists returns the catalog's list registry.
func (c *Catalog) Lists() ListRegistry {
	return c.lists
}

// LookupList resolves a list id through the registry.
func (c *Catalog) LookupList(ctx context.Context, id string) (ListRef, bool, error) {
	return c.lists.Lookup(ctx, id)
}

// WithLists returns a copy of the catalog resolving lists through registry.
func (c *Catalog) WithLists(registry ListRegistry) *Catalog {
	next := *c
	next.lists = registry
	if next.lists == nil {
		next.lists = StaticLists(nil)
	}
	return &next
}

// NormalizeCondition applies the field-kind update rule: a condition whose
// target resolves to a known non-numeric field is implicitly literal.
func (c *Catalog) NormalizeCondition(cond types.Condition) types.Condition {
	kind, ok := c.KindOf(cond.TargetField)
	if !ok || kind == FieldNumeric || cond.ThresholdType == types.ThresholdLiteral {
		return cloneCondition(cond)
	}
	return UpdateCondition(cond, ConditionPatch{ThresholdType: types.Some(types.ThresholdLiteral)})
}

// NormalizeRule applies NormalizeCondition to every condition of r.
func (c *Catalog) NormalizeRule(r types.Rule) types.Rule {
	next := CloneRule(r)
	for i := range next.Stages {
		for j := range next.Stages[i].Conditions {
			next.Stages[i].Conditions[j] = c.NormalizeCondition(next.Stages[i].Conditions[j])
		}
	}
	return next
}
