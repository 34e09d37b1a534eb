package config

import (
	"github.com/solatis/stagekeeper/internal/rules"
)

// BuildCatalog turns the catalog section into a rules.Catalog.
// A non-nil registry takes precedence over configured lists; with neither,
// the built-in lists are used.
func (c CatalogConfig) BuildCatalog(registry rules.ListRegistry) (*rules.Catalog, error) {
	fields := rules.DefaultFields
	if len(c.Fields) > 0 {
		fields = make([]rules.FieldSpec, 0, len(c.Fields))
		for _, f := range c.Fields {
			kind, err := rules.ParseFieldKind(f.Kind)
			if err != nil {
				return nil, err
			}
			label := f.Label
			if label == "" {
				label = f.Name
			}
			fields = append(fields, rules.FieldSpec{Name: f.Name, Label: label, Kind: kind})
		}
	}

	txTypes := rules.DefaultTransactionTypes
	if len(c.TransactionTypes) > 0 {
		txTypes = c.TransactionTypes
	}

	if registry == nil {
		if len(c.Lists) > 0 {
			lists := make(rules.StaticLists, 0, len(c.Lists))
			for _, l := range c.Lists {
				lists = append(lists, rules.ListRef{ID: l.ID, Name: l.Name, Type: l.Type})
			}
			registry = lists
		} else {
			registry = rules.DefaultLists
		}
	}

	return rules.NewCatalog(fields, txTypes, registry), nil
}
