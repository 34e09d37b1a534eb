package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/stagekeeper/internal/rules"
)

// listRow mirrors the lists table.
type listRow struct {
	ListID     string `db:"list_id"`
	Name       string `db:"name"`
	ListType   string `db:"list_type"`
	EntryCount int    `db:"entry_count"`
}

func (r listRow) ref() rules.ListRef {
	return rules.ListRef{ID: r.ListID, Name: r.Name, Type: r.ListType, Count: r.EntryCount}
}

// ListStore keeps per-tenant list metadata. List contents live elsewhere.
type ListStore struct {
	queries *Queries
	now     func() time.Time
}

// NewListStore creates a store over the named queries.
func NewListStore(queries *Queries) *ListStore {
	return &ListStore{queries: queries, now: time.Now}
}

// Register creates or replaces the metadata of ref for tenantID.
func (s *ListStore) Register(ctx context.Context, tenantID string, ref rules.ListRef) error {
	if ref.ID == "" {
		return fmt.Errorf("register list: empty id")
	}
	if ref.Count < 0 {
		return fmt.Errorf("register list %s: negative entry count %d", ref.ID, ref.Count)
	}
	_, err := s.queries.Exec(ctx, "upsert-list",
		tenantID, ref.ID, ref.Name, ref.Type, ref.Count, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("register list %s: %w", ref.ID, err)
	}
	return nil
}

// Get returns the list with id for tenantID.
func (s *ListStore) Get(ctx context.Context, tenantID, id string) (rules.ListRef, error) {
	var row listRow
	err := s.queries.Get(ctx, "get-list", &row, tenantID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return rules.ListRef{}, fmt.Errorf("%s: %w", id, ErrListNotFound)
	}
	if err != nil {
		return rules.ListRef{}, fmt.Errorf("get list: %w", err)
	}
	return row.ref(), nil
}

// List returns every list registered for tenantID ordered by id.
func (s *ListStore) List(ctx context.Context, tenantID string) ([]rules.ListRef, error) {
	var rows []listRow
	if err := s.queries.Select(ctx, "list-lists", &rows, tenantID); err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	refs := make([]rules.ListRef, len(rows))
	for i, r := range rows {
		refs[i] = r.ref()
	}
	return refs, nil
}

// ForTenant returns a rules.ListRegistry resolving ids among tenantID's lists.
func (s *ListStore) ForTenant(tenantID string) rules.ListRegistry {
	return tenantLists{store: s, tenantID: tenantID}
}

type tenantLists struct {
	store    *ListStore
	tenantID string
}

// Lookup implements rules.ListRegistry.
func (t tenantLists) Lookup(ctx context.Context, id string) (rules.ListRef, bool, error) {
	ref, err := t.store.Get(ctx, t.tenantID, id)
	if errors.Is(err, ErrListNotFound) {
		return rules.ListRef{}, false, nil
	}
	if err != nil {
		return rules.ListRef{}, false, err
	}
	return ref, true, nil
}
