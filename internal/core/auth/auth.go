// Package auth provides HMAC-based API key authentication for the rule API.
//
// Keys are never stored. The database holds HMAC-SHA256(secret, key) where
// secret is one of the SK_HMAC_SECRET values, selected by the secret_id
// embedded in the key itself.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// tenantIDKey is the context key for storing authenticated tenant ID.
const tenantIDKey = contextKey("tenant_id")

// Queries defines the database operations needed for authentication.
// Implemented by *db.Queries.
type Queries interface {
	Get(ctx context.Context, name string, dest interface{}, args ...interface{}) error
	Exec(ctx context.Context, name string, args ...interface{}) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Holds in-memory secret map for O(1) lookup and queries for key verification.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	now     func() time.Time
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries) *Authenticator {
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		now:     time.Now,
	}
}

// Authenticate validates apiKey and returns its tenant_id.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	// key_hash is unique, so at most one row matches.
	var result struct {
		TenantID   string       `db:"tenant_id"`
		RevokedAt  sql.NullTime `db:"revoked_at"`
		APIKeyID   string       `db:"api_key_id"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
	}

	err = a.queries.Get(ctx, "get-api-key-by-hash", &result, ComputeHMAC(secret, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if result.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	// 1-minute throttle keeps busy clients from writing on every call.
	now := a.now()
	if shouldUpdateLastUsed(result.LastUsedAt, now) {
		_, _ = a.queries.Exec(ctx, "update-last-used", now.UTC(), result.APIKeyID)
	}

	return result.TenantID, nil
}

// shouldUpdateLastUsed implements the 1-minute last_used_at throttle.
func shouldUpdateLastUsed(lastUsed sql.NullTime, now time.Time) bool {
	if !lastUsed.Valid {
		return true
	}
	return now.Sub(lastUsed.Time) > time.Minute
}

// UnaryInterceptor returns a gRPC interceptor that authenticates requests.
// Health checks pass through unauthenticated.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if info.FullMethod == healthCheckMethod {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get("x-api-key")
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		tenantID, err := a.Authenticate(ctx, apiKeys[0])
		switch {
		case err == nil:
		case errors.Is(err, ErrKeyRevoked):
			return nil, status.Error(codes.PermissionDenied, err.Error())
		case errors.Is(err, ErrStoreUnavailable):
			return nil, status.Error(codes.Unavailable, ErrStoreUnavailable.Error())
		default:
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(WithTenantID(ctx, tenantID), req)
	}
}

const healthCheckMethod = "/grpc.health.v1.Health/Check"

// WithTenantID returns ctx carrying tenantID as the authenticated tenant.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// TenantIDFromContext extracts tenant ID from context.
// Returns empty string if not found.
func TenantIDFromContext(ctx context.Context) string {
	if tenantID, ok := ctx.Value(tenantIDKey).(string); ok {
		return tenantID
	}
	return ""
}
