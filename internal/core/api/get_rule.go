package api

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"
)

// GetRule returns one stored rule. Request: {rule_id}.
func (s *RuleAPIService) GetRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	ruleID, err := stringField(req, "rule_id")
	if err != nil {
		return nil, err
	}

	rec, err := s.store.Get(ctx, tenantID, ruleID)
	if err != nil {
		return nil, storeError(err)
	}
	return response(storedRuleFields(rec))
}

// DeleteRule removes one stored rule. Request: {rule_id}. Response: {rule_id}.
func (s *RuleAPIService) DeleteRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	ruleID, err := stringField(req, "rule_id")
	if err != nil {
		return nil, err
	}

	if err := s.store.Delete(ctx, tenantID, ruleID); err != nil {
		return nil, storeError(err)
	}
	s.logger.InfoContext(ctx, "rule deleted", "tenant_id", tenantID, "rule_id", ruleID)
	return response(map[string]interface{}{"rule_id": ruleID})
}
