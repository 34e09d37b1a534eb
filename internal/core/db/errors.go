package db

import (
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrRuleNotFound indicates no stored rule with the given id for the tenant.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrListNotFound indicates no registered list with the given id for the tenant.
	ErrListNotFound = errors.New("list not found")
)

// isUniqueViolation reports whether err is a unique or primary key conflict.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
