package api

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/stagekeeper/internal/rules"
)

// ValidateRule checks a rule document against the tenant's catalog without
// storing it. Request: {rule}. Response: {valid, errors[]} plus digest and
// priority when valid. An invalid rule is a successful call.
func (s *RuleAPIService) ValidateRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}

	r, err := s.decodeRule(req)
	if err != nil {
		return nil, err
	}

	cat := s.catalogFor(tenantID)
	errs, err := rules.Validate(ctx, r, cat)
	if err != nil {
		return nil, storeError(err)
	}

	fields := map[string]interface{}{
		"valid":  len(errs) == 0,
		"errors": validationErrorList(errs),
	}
	if len(errs) == 0 {
		data, err := rules.MarshalCanonical(r)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		fields["digest"] = rules.Digest(data)
		fields["priority"] = rules.EstimateCost(r, cat).Priority
	}

	return response(fields)
}
