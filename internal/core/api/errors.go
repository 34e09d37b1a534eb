package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/stagekeeper/internal/core/db"
	"github.com/solatis/stagekeeper/internal/rules"
)

// Auth errors are mapped in the auth package interceptor.
// Malformed requests and invalid rules map to INVALID_ARGUMENT; validation
// failures carry the full error list as a Struct detail.
// Missing rules map to NOT_FOUND, context expiry to DEADLINE_EXCEEDED and
// everything else from the database to UNAVAILABLE.

// storeError maps a storage error to a gRPC status.
func storeError(err error) error {
	switch {
	case errors.Is(err, db.ErrRuleNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}

// invalidRule returns INVALID_ARGUMENT with errs attached as a detail.
func invalidRule(errs rules.ValidationErrors) error {
	st := status.New(codes.InvalidArgument, errs.Error())
	detail, err := structpb.NewStruct(map[string]interface{}{
		"errors": validationErrorList(errs),
	})
	if err != nil {
		return st.Err()
	}
	if withDetail, err := st.WithDetails(detail); err == nil {
		return withDetail.Err()
	}
	return st.Err()
}

// ValidationErrorsFromStatus extracts the validation error list attached by
// SubmitRule, or nil if err carries none.
func ValidationErrorsFromStatus(err error) rules.ValidationErrors {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	var out rules.ValidationErrors
	for _, d := range st.Details() {
		s, ok := d.(*structpb.Struct)
		if !ok {
			continue
		}
		for _, v := range s.GetFields()["errors"].GetListValue().GetValues() {
			f := v.GetStructValue().GetFields()
			out = append(out, rules.ValidationError{
				Path:    f["path"].GetStringValue(),
				Code:    rules.Code(f["code"].GetStringValue()),
				Message: f["message"].GetStringValue(),
			})
		}
	}
	return out
}

func validationErrorList(errs rules.ValidationErrors) []interface{} {
	list := make([]interface{}, len(errs))
	for i, e := range errs {
		list[i] = map[string]interface{}{
			"path":    e.Path,
			"code":    string(e.Code),
			"message": e.Message,
		}
	}
	return list
}
