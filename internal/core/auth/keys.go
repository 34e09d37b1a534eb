package auth

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// IssuedKey is a freshly created API key. Key is shown once and never stored.
type IssuedKey struct {
	APIKeyID string
	TenantID string
	SecretID string
	Key      string
}

// IssueKey creates an API key for tenantID signed with secretID. An empty
// secretID selects the newest configured secret; UUIDv7 ids sort by time.
func (a *Authenticator) IssueKey(ctx context.Context, tenantID, name, secretID string) (IssuedKey, error) {
	if tenantID == "" {
		return IssuedKey{}, fmt.Errorf("issue key: empty tenant id")
	}
	if secretID == "" {
		secretID = a.newestSecretID()
		if secretID == "" {
			return IssuedKey{}, fmt.Errorf("issue key: no HMAC secrets configured")
		}
	}
	secret, ok := a.secrets[secretID]
	if !ok {
		return IssuedKey{}, fmt.Errorf("issue key: %w: %s", ErrUnknownKey, secretID)
	}

	key, err := GenerateAPIKey(secretID)
	if err != nil {
		return IssuedKey{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return IssuedKey{}, fmt.Errorf("issue key: %w", err)
	}
	now := a.now().UTC()

	if _, err := a.queries.Exec(ctx, "upsert-tenant", tenantID, tenantID, now); err != nil {
		return IssuedKey{}, fmt.Errorf("issue key: upsert tenant: %w", err)
	}
	if _, err := a.queries.Exec(ctx, "insert-api-key",
		id.String(), tenantID, name, secretID, ComputeHMAC(secret, key), now,
	); err != nil {
		return IssuedKey{}, fmt.Errorf("issue key: %w", err)
	}

	return IssuedKey{APIKeyID: id.String(), TenantID: tenantID, SecretID: secretID, Key: key}, nil
}

// RevokeKey marks apiKeyID revoked. Revoking twice returns ErrKeyNotFound.
func (a *Authenticator) RevokeKey(ctx context.Context, apiKeyID string) error {
	res, err := a.queries.Exec(ctx, "revoke-api-key", a.now().UTC(), apiKeyID)
	if err != nil {
		return fmt.Errorf("revoke key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke key: %w", err)
	}
	if n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (a *Authenticator) newestSecretID() string {
	ids := make([]string, 0, len(a.secrets))
	for id := range a.secrets {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Strings(ids)
	return ids[len(ids)-1]
}
