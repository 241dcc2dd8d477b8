package ledger

import (
	"os"
	"regexp"
	"testing"
)

// The payments table rides on ON DELETE CASCADE: removing a user or a
// group removes the linking rows with it. Pin both clauses so a schema
// edit cannot drop them unnoticed.
func TestSchemaCascadesPayments(t *testing.T) {
	ddl, err := os.ReadFile("../../migrations/0001_init.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	for _, clause := range []string{
		`REFERENCES\s+groups\s*\(group_id\)\s+ON DELETE CASCADE`,
		`REFERENCES\s+users\s*\(user_id\)\s+ON DELETE CASCADE`,
	} {
		if !regexp.MustCompile(clause).Match(ddl) {
			t.Errorf("payments DDL lost its cascade: %s", clause)
		}
	}
}
