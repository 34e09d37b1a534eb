package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/stagekeeper/internal/core/auth"
	"github.com/solatis/stagekeeper/internal/core/db"
	"github.com/solatis/stagekeeper/internal/ruledoc"
	"github.com/solatis/stagekeeper/internal/types"
)

// tenantFrom returns the authenticated tenant or an INTERNAL status when the
// interceptor did not run.
func tenantFrom(ctx context.Context) (string, error) {
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		return "", status.Error(codes.Internal, "missing tenant_id in context")
	}
	return tenantID, nil
}

// stringField returns the trimmed string field name of req, or
// INVALID_ARGUMENT if it is absent or empty.
func stringField(req *structpb.Struct, name string) (string, error) {
	v := strings.TrimSpace(req.GetFields()[name].GetStringValue())
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	return v, nil
}

// decodeRule reads the "rule" object of req as a rule document.
func (s *RuleAPIService) decodeRule(req *structpb.Struct) (types.Rule, error) {
	obj := req.GetFields()["rule"].GetStructValue()
	if obj == nil {
		return types.Rule{}, status.Error(codes.InvalidArgument, "rule is required")
	}

	data, err := protojson.Marshal(obj)
	if err != nil {
		return types.Rule{}, status.Error(codes.InvalidArgument, fmt.Sprintf("encode rule: %v", err))
	}

	r, err := ruledoc.Read(bytes.NewReader(data), ruledoc.FormatJSON, s.cfg.MaxDocumentBytes)
	if errors.Is(err, ruledoc.ErrDocumentTooLarge) {
		return types.Rule{}, status.Error(codes.ResourceExhausted, err.Error())
	}
	if err != nil {
		return types.Rule{}, status.Error(codes.InvalidArgument, err.Error())
	}
	return r, nil
}

// storedRuleFields renders a stored rule for responses. The document is the
// canonical JSON text so clients can recompute the digest.
func storedRuleFields(rec db.StoredRule) map[string]interface{} {
	return map[string]interface{}{
		"rule_id":     rec.RuleID,
		"name":        rec.Name,
		"logic_type":  rec.LogicType,
		"digest":      rec.Digest,
		"priority":    rec.Priority,
		"stage_count": rec.StageCount,
		"created_at":  rec.CreatedAt.UTC().Format(time.RFC3339),
		"document":    rec.Document,
	}
}

// response builds a Struct from fields or fails with INTERNAL.
func response(fields map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("build response: %v", err))
	}
	return out, nil
}
