package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/roach88/stepper/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testKey returns a deterministic key whose every byte is b.
func testKey(b byte) ir.Pubkey {
	var pk ir.Pubkey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

// createTestRecord creates a transaction record with minimal required fields.
func createTestRecord(id string, seq int64, status string) ir.TxRecord {
	return ir.TxRecord{
		ID:            id,
		Seq:           seq,
		Payer:         testKey(1),
		Status:        status,
		EngineVersion: "0.1.0",
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		t.Fatalf("table_info(%s) failed: %v", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan column: %v", err)
		}
		cols = append(cols, name)
	}
	return cols
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
