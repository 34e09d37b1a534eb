package api

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/stagekeeper/internal/core/db"
)

// SyncRules returns the tenant's stored rules in priority order.
// Request: {if_none_match?}. Response: {rules[], etag, not_modified}.
// When if_none_match equals the current ETag the rule list is empty.
// Returns up to max_rules_per_sync rules.
func (s *RuleAPIService) SyncRules(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}

	recs, err := s.store.List(ctx, tenantID, s.cfg.MaxRulesPerSync)
	if err != nil {
		return nil, storeError(err)
	}

	etag := computeETag(recs)
	if req.GetFields()["if_none_match"].GetStringValue() == etag {
		return response(map[string]interface{}{
			"rules":        []interface{}{},
			"etag":         etag,
			"not_modified": true,
		})
	}

	list := make([]interface{}, len(recs))
	for i, rec := range recs {
		list[i] = storedRuleFields(rec)
	}
	return response(map[string]interface{}{
		"rules":        list,
		"etag":         etag,
		"not_modified": false,
	})
}

// computeETag hashes the sorted rule_id:digest pairs. Any submission or
// deletion changes it; re-submitting an identical document does not.
func computeETag(recs []db.StoredRule) string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.RuleID + ":" + r.Digest
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
