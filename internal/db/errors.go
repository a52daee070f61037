package db

import "strings"

// Postgres raises 42710 / "already exists" when a constraint is re-applied
// across restarts; treat that as success so migration stays re-runnable.
func isDuplicateConstraint(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "42710")
}
