package migrate

import (
	"context"
	"testing"

	"civicdesk/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if v, err := Version(ctx, conn); err != nil || v != 0 {
		t.Fatalf("fresh version = %d, %v", v, err)
	}
	for i := 0; i < 2; i++ {
		if err := Migrate(ctx, conn); err != nil {
			t.Fatalf("migrate run %d: %v", i, err)
		}
	}
	v, err := Version(ctx, conn)
	if err != nil || v != 2 {
		t.Fatalf("version = %d, %v", v, err)
	}
	for _, table := range []string{"departments", "grievances", "files", "file_history", "events", "api_keys", "goals"} {
		var n int
		if err := conn.QueryRowContext(ctx, `SELECT count(*) FROM `+table).Scan(&n); err != nil {
			t.Fatalf("table %s: %v", table, err)
		}
	}
}

func TestBothDialectsShipSameVersions(t *testing.T) {
	lite, err := loadMigrations(db.DriverSQLite)
	if err != nil {
		t.Fatal(err)
	}
	pg, err := loadMigrations(db.DriverPostgres)
	if err != nil {
		t.Fatal(err)
	}
	if len(lite) != len(pg) {
		t.Fatalf("sqlite has %d migrations, postgres %d", len(lite), len(pg))
	}
	for i := range lite {
		if lite[i].Version != pg[i].Version {
			t.Fatalf("version mismatch at %d", i)
		}
		if len(statements(pg[i].UpSQL)) != len(statements(lite[i].UpSQL)) {
			t.Fatalf("%s: statement count differs between dialects", lite[i].Name)
		}
	}
}
