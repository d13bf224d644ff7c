package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

const migrationsDir = "../../db/migrations"

func TestMigrationFilesAreWellFormed(t *testing.T) {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			t.Fatalf("unexpected file in migrations dir: %s", name)
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		t.Fatalf("no migrations found in %s", migrationsDir)
	}
	if !sort.StringsAreSorted(names) {
		t.Fatalf("migration files not in apply order: %v", names)
	}

	for _, name := range names {
		contents, err := os.ReadFile(filepath.Join(migrationsDir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if strings.TrimSpace(string(contents)) == "" {
			t.Fatalf("migration %s is empty", name)
		}
	}
}

func TestInitialMigrationCoversCoreTables(t *testing.T) {
	contents, err := os.ReadFile(filepath.Join(migrationsDir, "0001_init.up.sql"))
	if err != nil {
		t.Fatalf("read initial migration: %v", err)
	}
	sql := string(contents)

	for _, table := range []string{"songs", "song_submissions", "line_translations", "comments", "votes", "moderation_log"} {
		if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("initial migration missing table %s", table)
		}
	}
	if !strings.Contains(sql, "PRIMARY KEY (actor_key, target_kind, target_id)") {
		t.Fatalf("votes table must enforce one row per actor, kind, and target")
	}
}
