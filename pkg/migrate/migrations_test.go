package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/keygate/keygate-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestActivationsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_activations.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no activations migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS activations",
		"FOREIGN KEY (license_key_id) REFERENCES license_keys(id) ON DELETE CASCADE",
		"FOREIGN KEY (device_id) REFERENCES devices(id) ON DELETE CASCADE",
		"idx_activations_key_status_bound_at",
		"DROP TABLE IF EXISTS activations",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestLicenseKeysMigrationContainsStatusEnum(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_license_keys.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no license_keys migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	for _, status := range []string{"'active'", "'disabled'", "'temp_locked'", "'deleted'"} {
		if !strings.Contains(content, status) {
			t.Errorf("missing key status %s", status)
		}
	}
}

func TestDialect(t *testing.T) {
	if got := migrate.Dialect("sqlite"); got != "sqlite3" {
		t.Fatalf("expected sqlite3, got %s", got)
	}
	if got := migrate.Dialect("postgres"); got != "postgres" {
		t.Fatalf("expected postgres, got %s", got)
	}
}
