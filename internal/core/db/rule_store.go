package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/stagekeeper/internal/rules"
	"github.com/solatis/stagekeeper/internal/types"
)

// StoredRule is a submitted canonical rule document.
type StoredRule struct {
	RuleID     string    `db:"rule_id"`
	TenantID   string    `db:"tenant_id"`
	Name       string    `db:"name"`
	LogicType  string    `db:"logic_type"`
	Document   string    `db:"document"`
	Digest     string    `db:"digest"`
	Priority   int       `db:"priority"`
	StageCount int       `db:"stage_count"`
	CreatedAt  time.Time `db:"created_at"`
}

// RuleStore persists canonical rule documents per tenant.
// A document is stored once per tenant: re-submitting identical bytes
// returns the existing record.
type RuleStore struct {
	queries *Queries
	now     func() time.Time
}

// NewRuleStore creates a store over the named queries.
func NewRuleStore(queries *Queries) *RuleStore {
	return &RuleStore{queries: queries, now: time.Now}
}

// Save stores doc for tenantID. created is false when the tenant already
// holds a document with the same digest; that record is returned unchanged.
func (s *RuleStore) Save(ctx context.Context, tenantID, name string, doc rules.Document, est rules.CostEstimate) (stored StoredRule, created bool, err error) {
	existing, err := s.byDigest(ctx, tenantID, doc.Digest)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrRuleNotFound) {
		return StoredRule{}, false, err
	}

	rec := StoredRule{
		RuleID:     string(types.NewRuleID()),
		TenantID:   tenantID,
		Name:       name,
		LogicType:  string(doc.Rule.LogicType),
		Document:   string(doc.JSON),
		Digest:     doc.Digest,
		Priority:   est.Priority,
		StageCount: len(doc.Rule.Stages),
		CreatedAt:  s.now().UTC().Truncate(time.Second),
	}

	_, err = s.queries.Exec(ctx, "insert-rule",
		rec.RuleID, rec.TenantID, rec.Name, rec.LogicType, rec.Document,
		rec.Digest, rec.Priority, rec.StageCount, rec.CreatedAt,
	)
	if isUniqueViolation(err) {
		// A concurrent submission of the same document won the insert.
		existing, err := s.byDigest(ctx, tenantID, doc.Digest)
		return existing, false, err
	}
	if err != nil {
		return StoredRule{}, false, fmt.Errorf("insert rule: %w", err)
	}
	return rec, true, nil
}

// Get returns the stored rule with ruleID for tenantID.
func (s *RuleStore) Get(ctx context.Context, tenantID, ruleID string) (StoredRule, error) {
	var rec StoredRule
	err := s.queries.Get(ctx, "get-rule", &rec, tenantID, ruleID)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredRule{}, fmt.Errorf("%s: %w", ruleID, ErrRuleNotFound)
	}
	if err != nil {
		return StoredRule{}, fmt.Errorf("get rule: %w", err)
	}
	return rec, nil
}

// List returns up to limit rules for tenantID, cheapest priority first.
func (s *RuleStore) List(ctx context.Context, tenantID string, limit int) ([]StoredRule, error) {
	var recs []StoredRule
	if err := s.queries.Select(ctx, "list-rules", &recs, tenantID, limit); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return recs, nil
}

// Delete removes the rule with ruleID for tenantID.
func (s *RuleStore) Delete(ctx context.Context, tenantID, ruleID string) error {
	res, err := s.queries.Exec(ctx, "delete-rule", tenantID, ruleID)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", ruleID, ErrRuleNotFound)
	}
	return nil
}

func (s *RuleStore) byDigest(ctx context.Context, tenantID, digest string) (StoredRule, error) {
	var rec StoredRule
	err := s.queries.Get(ctx, "get-rule-by-digest", &rec, tenantID, digest)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredRule{}, ErrRuleNotFound
	}
	if err != nil {
		return StoredRule{}, fmt.Errorf("get rule by digest: %w", err)
	}
	return rec, nil
}
