package api

import (
	"context"
	"errors"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/stagekeeper/internal/rules"
)

// SubmitRule validates, canonicalizes and stores a rule document.
// Request: {name, rule}. Response: the stored rule plus "created", which is
// false when the tenant already held a byte-identical document.
func (s *RuleAPIService) SubmitRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}

	name, err := stringField(req, "name")
	if err != nil {
		return nil, err
	}

	r, err := s.decodeRule(req)
	if err != nil {
		return nil, err
	}

	cat := s.catalogFor(tenantID)
	doc, err := rules.Canonicalize(ctx, r, cat)
	var verrs rules.ValidationErrors
	if errors.As(err, &verrs) {
		return nil, invalidRule(verrs)
	}
	if err != nil {
		return nil, storeError(err)
	}

	est := rules.EstimateCost(r, cat)
	rec, created, err := s.store.Save(ctx, tenantID, name, doc, est)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to store rule", "tenant_id", tenantID, "digest", doc.Digest, "error", err)
		return nil, storeError(err)
	}

	s.logger.InfoContext(ctx, "rule submitted",
		"tenant_id", tenantID,
		"rule_id", rec.RuleID,
		"digest", rec.Digest,
		"priority", rec.Priority,
		"created", created,
	)

	fields := storedRuleFields(rec)
	fields["created"] = created
	return response(fields)
}
