package db

import (
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"001_backoffice.sql": {Data: []byte("CREATE TABLE visit (id UUID PRIMARY KEY);")},
		"002_tasks.sql":      {Data: []byte("CREATE TABLE task (id UUID PRIMARY KEY);")},
		"003_owners.sql":     {Data: []byte("CREATE TABLE owner (id UUID PRIMARY KEY);")},
	}

	migrations, err := NewMigrator(nil, fsys).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 {
		t.Errorf("expected version 1, got %d", migrations[0].Version)
	}
	if migrations[0].Name != "001_backoffice.sql" {
		t.Errorf("expected name 001_backoffice.sql, got %s", migrations[0].Name)
	}
	if migrations[0].SQL != "CREATE TABLE visit (id UUID PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
	if migrations[2].Version != 3 {
		t.Errorf("expected version 3, got %d", migrations[2].Version)
	}
}

func TestLoadMigrations_SortOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"010_tables.sql": {Data: []byte("SELECT 10;")},
		"002_second.sql": {Data: []byte("SELECT 2;")},
		"001_first.sql":  {Data: []byte("SELECT 1;")},
		"005_middle.sql": {Data: []byte("SELECT 5;")},
	}

	migrations, err := NewMigrator(nil, fsys).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	expectedVersions := []int{1, 2, 5, 10}
	if len(migrations) != len(expectedVersions) {
		t.Fatalf("expected %d migrations, got %d", len(expectedVersions), len(migrations))
	}
	for i, expected := range expectedVersions {
		if migrations[i].Version != expected {
			t.Errorf("migration[%d]: expected version %d, got %d", i, expected, migrations[i].Version)
		}
	}
}

func TestLoadMigrations_InvalidFilename(t *testing.T) {
	fsys := fstest.MapFS{
		"001_valid.sql":      {Data: []byte("SELECT 1;")},
		"readme.sql":         {Data: []byte("-- no version prefix")},
		"notes.txt":          {Data: []byte("not a sql file")},
		"abc_invalid.sql":    {Data: []byte("-- non-numeric prefix")},
		"002_also_valid.sql": {Data: []byte("SELECT 2;")},
		"sub/003_nested.sql": {Data: []byte("SELECT 3;")},
	}

	migrations, err := NewMigrator(nil, fsys).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 valid migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("unexpected versions %d, %d", migrations[0].Version, migrations[1].Version)
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"001_a.sql":  {Data: []byte("SELECT 1;")},
		"0001_b.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := NewMigrator(nil, fsys).LoadMigrations()
	if err == nil || !strings.Contains(err.Error(), "duplicate migration version 1") {
		t.Errorf("expected duplicate version error, got %v", err)
	}
}

func TestLoadMigrations_EmptyDir(t *testing.T) {
	migrations, err := NewMigrator(nil, fstest.MapFS{}).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected 0 migrations from empty dir, got %d", len(migrations))
	}
}

func TestPending(t *testing.T) {
	migrations := []Migration{{Version: 1}, {Version: 2}, {Version: 3}, {Version: 4}}
	applied := map[int]time.Time{1: time.Now(), 3: time.Now()}

	tests := []struct {
		target int
		want   []int
	}{
		{0, []int{2, 4}},
		{2, []int{2}},
		{3, []int{2}},
		{1, nil},
	}
	for _, tt := range tests {
		got := pending(migrations, applied, tt.target)
		if len(got) != len(tt.want) {
			t.Errorf("target %d: expected %v, got %v", tt.target, tt.want, got)
			continue
		}
		for i := range got {
			if got[i].Version != tt.want[i] {
				t.Errorf("target %d: expected %v, got %v", tt.target, tt.want, got)
			}
		}
	}
}

func TestBuildStatus(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	migrations := []Migration{
		{Version: 1, Name: "001_backoffice.sql"},
		{Version: 2, Name: "002_owner_notes.sql"},
	}

	statuses := buildStatus(migrations, map[int]time.Time{1: at})

	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied || statuses[0].AppliedAt == nil || !statuses[0].AppliedAt.Equal(at) {
		t.Errorf("expected migration 001 applied at %s, got %+v", at, statuses[0])
	}
	if statuses[1].Applied || statuses[1].AppliedAt != nil {
		t.Errorf("expected migration 002 pending, got %+v", statuses[1])
	}
}

func TestMigrator_WithSchema(t *testing.T) {
	m := NewMigrator(nil, fstest.MapFS{})
	if m.schema != DefaultSchema {
		t.Errorf("expected default schema %s, got %s", DefaultSchema, m.schema)
	}
	other := m.WithSchema("agency")
	if other.schema != "agency" || m.schema != DefaultSchema {
		t.Errorf("expected copy with schema agency, got %s (original %s)", other.schema, m.schema)
	}
	if got := other.table(); got != `"agency"."_migrations"` {
		t.Errorf("unexpected table identifier %s", got)
	}
	if m.WithSchema("").schema != DefaultSchema {
		t.Error("expected empty schema to keep the default")
	}
}
