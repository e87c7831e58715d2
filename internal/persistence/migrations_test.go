package persistence

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestMigrationNamesOrdered(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	want := []string{"0001_entitlements.sql", "0002_schedules.sql", "0003_push_endpoints.sql"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("names = %v", names)
	}
	for _, name := range names {
		content, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(content), "IF NOT EXISTS") {
			t.Errorf("%s is not idempotent", name)
		}
	}
}

func TestNilHandlesAreSafe(t *testing.T) {
	if err := RunMigrations(context.Background(), nil, zap.NewNop()); err != nil {
		t.Fatalf("migrations without pool: %v", err)
	}

	var pg *Postgres
	if err := pg.Ping(context.Background()); err == nil {
		t.Error("ping on nil postgres should fail")
	}
	pg.Close()

	var rd *Redis
	if err := rd.Ping(context.Background()); err == nil {
		t.Error("ping on nil redis should fail")
	}
	rd.Close()
}
