package db

import (
	"path/filepath"
	"testing"
)

func TestRebind(t *testing.T) {
	q := `SELECT id FROM t WHERE a=? AND b='?' AND c=?`
	if got := Rebind(DriverSQLite, q); got != q {
		t.Fatalf("sqlite should be untouched, got %s", got)
	}
	want := `SELECT id FROM t WHERE a=$1 AND b='?' AND c=$2`
	if got := Rebind(DriverPostgres, q); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestOpenSQLiteInWorkspace(t *testing.T) {
	dir := t.TempDir()
	conn, err := Open(Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if conn.Driver != DriverSQLite {
		t.Fatalf("unexpected driver %s", conn.Driver)
	}
	if err := conn.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if Path(dir) != filepath.Join(dir, ".civicdesk", "civicdesk.db") {
		t.Fatalf("unexpected path %s", Path(dir))
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "mysql"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: DriverPostgres}); err == nil {
		t.Fatalf("expected error for postgres without dsn")
	}
}
