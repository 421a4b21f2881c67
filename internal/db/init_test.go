package db_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atinyakov/TagLock/internal/db"
)

func TestInit_ErrorPaths(t *testing.T) {
	cases := []struct {
		name       string
		driver     string
		dsn        string
		wantSubstr string
	}{
		{"invalid postgres DSN", db.DriverPostgres, "some=random", "ping postgres"},
		{"empty postgres DSN", db.DriverPostgres, "", "ping postgres"},
		{"unknown driver", "mysql", "root@/db", "unsupported driver"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := db.Init(tc.driver, tc.dsn)
			if err == nil {
				t.Fatalf("Init(%q, %q) did not return error", tc.driver, tc.dsn)
			}
			if !strings.Contains(err.Error(), tc.wantSubstr) {
				t.Errorf("Init(%q, %q) error = %q; want substring %q", tc.driver, tc.dsn, err.Error(), tc.wantSubstr)
			}
		})
	}
}

func TestInit_SQLiteCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "taglock.db")

	conn, err := db.Init(db.DriverSQLite, path)
	if err != nil {
		t.Fatalf("Init sqlite: %v", err)
	}
	defer conn.Close()

	for _, table := range []string{"profiles", "scalars", "collections"} {
		var name string
		err := conn.QueryRowContext(context.Background(),
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = $1`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	again, err := db.Init(db.DriverSQLite, path)
	if err != nil {
		t.Fatalf("second Init should be idempotent: %v", err)
	}
	again.Close()
}
