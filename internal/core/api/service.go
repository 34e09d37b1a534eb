// Package api provides the gRPC rule service: validation, submission and
// retrieval of canonical rule documents per tenant.
package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solatis/stagekeeper/internal/core/config"
	"github.com/solatis/stagekeeper/internal/core/db"
	"github.com/solatis/stagekeeper/internal/rules"
)

// RuleStore persists canonical documents. Implemented by *db.RuleStore.
type RuleStore interface {
	Save(ctx context.Context, tenantID, name string, doc rules.Document, est rules.CostEstimate) (db.StoredRule, bool, error)
	Get(ctx context.Context, tenantID, ruleID string) (db.StoredRule, error)
	List(ctx context.Context, tenantID string, limit int) ([]db.StoredRule, error)
	Delete(ctx context.Context, tenantID, ruleID string) error
}

// ListSource resolves list ids per tenant. Implemented by *db.ListStore.
type ListSource interface {
	ForTenant(tenantID string) rules.ListRegistry
}

// RuleAPIService implements RuleServiceServer.
// Thin orchestration layer delegating to auth, rules, and database packages.
type RuleAPIService struct {
	store   RuleStore
	lists   ListSource
	catalog *rules.Catalog
	cfg     *config.RuleAPIConfig
	logger  *slog.Logger
}

// NewRuleAPIService creates the service. lists may be nil, in which case
// list ids resolve against the catalog's own registry only.
func NewRuleAPIService(store RuleStore, lists ListSource, catalog *rules.Catalog, cfg *config.RuleAPIConfig, logger *slog.Logger) (*RuleAPIService, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RuleAPIService{
		store:   store,
		lists:   lists,
		catalog: catalog,
		cfg:     cfg,
		logger:  logger.With("component", "rule_api"),
	}, nil
}

// catalogFor returns the catalog resolving tenantID's registered lists
// first and the configured lists after them.
func (s *RuleAPIService) catalogFor(tenantID string) *rules.Catalog {
	if s.lists == nil {
		return s.catalog
	}
	return s.catalog.WithLists(rules.ChainedLists{s.lists.ForTenant(tenantID), s.catalog.Lists()})
}
