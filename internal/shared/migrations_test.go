package shared

import (
	"path/filepath"
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}

		for _, m := range migrations {
			if m.Up == "" {
				t.Errorf("migration version %d missing up SQL", m.Version)
			}
			if m.Down == "" {
				t.Errorf("migration version %d missing down SQL", m.Version)
			}
		}

		if migrations[0].Name != "create_images" {
			t.Errorf("expected first migration name create_images, got %q", migrations[0].Name)
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()
		ConfigureDatabase(db, 1, 1)

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		if err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}
		if count == 0 {
			t.Error("expected at least one migration to be applied")
		}

		if _, err = db.Exec("SELECT 1 FROM images LIMIT 1"); err != nil {
			t.Errorf("images table should exist after migrations: %v", err)
		}

		var seq int
		if err := db.QueryRow("SELECT value FROM images_sequence WHERE id = 1").Scan(&seq); err != nil {
			t.Errorf("images_sequence should be seeded: %v", err)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		var newCount int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&newCount)
		if err != nil {
			t.Fatalf("failed to query schema_migrations after rollback: %v", err)
		}
		if newCount >= count {
			t.Errorf("expected migration count to decrease after rollback, got %d (was %d)", newCount, count)
		}

		if newCount == 0 {
			if _, err := db.Exec("SELECT 1 FROM images LIMIT 1"); err == nil {
				t.Error("images table should be dropped after rolling back every migration")
			}
			if err := RollbackMigration(db); err == nil {
				t.Error("rolling back with nothing applied should fail")
			}
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()
		ConfigureDatabase(db, 1, 1)

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations first time: %v", err)
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		if err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}

		migrations, _ := loadMigrations()
		if count != len(migrations) {
			t.Errorf("expected %d migrations to be applied, got %d", len(migrations), count)
		}
	})

	t.Run("Status", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()
		ConfigureDatabase(db, 1, 1)

		migrations, _ := loadMigrations()

		before, err := Status(db)
		if err != nil {
			t.Fatalf("failed to read status: %v", err)
		}
		if before.Current != -1 || len(before.Pending) != len(migrations) {
			t.Errorf("fresh database: got current %d pending %v", before.Current, before.Pending)
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		after, err := Status(db)
		if err != nil {
			t.Fatalf("failed to read status: %v", err)
		}
		if after.Current != migrations[len(migrations)-1].Version || len(after.Pending) != 0 {
			t.Errorf("migrated database: got current %d pending %v", after.Current, after.Pending)
		}
	})

	t.Run("OpenDatabase", func(t *testing.T) {
		cfg := DatabaseConfig{Path: filepath.Join(t.TempDir(), "pngx.db")}
		db, err := OpenDatabase(cfg)
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if got := db.Stats().MaxOpenConnections; got != 1 {
			t.Errorf("expected max open connections raised to 1, got %d", got)
		}
		if _, err := db.Exec("SELECT 1 FROM images LIMIT 1"); err != nil {
			t.Errorf("images table should exist: %v", err)
		}
	})
}
