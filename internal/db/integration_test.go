//go:build integration

package db

import (
	"os"
	"strconv"
	"testing"

	"github.com/zulandar/beartank/internal/config"
)

// mysqlConfig reads a MySQL server from BEARTANK_TEST_MYSQL_HOST/PORT.
func mysqlConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	host := os.Getenv("BEARTANK_TEST_MYSQL_HOST")
	if host == "" {
		t.Skip("BEARTANK_TEST_MYSQL_HOST not set")
	}
	port := 3306
	if p := os.Getenv("BEARTANK_TEST_MYSQL_PORT"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			t.Fatalf("BEARTANK_TEST_MYSQL_PORT: %v", err)
		}
		port = n
	}
	return config.DatabaseConfig{
		Driver:   "mysql",
		Host:     host,
		Port:     port,
		User:     "root",
		Password: os.Getenv("BEARTANK_TEST_MYSQL_PASSWORD"),
	}
}

func setupDatabase(t *testing.T, name string) config.DatabaseConfig {
	t.Helper()
	cfg := mysqlConfig(t)
	adminDB, err := ConnectAdmin(cfg)
	if err != nil {
		t.Fatalf("ConnectAdmin: %v", err)
	}
	if err := DropDatabase(adminDB, name); err != nil {
		t.Fatalf("DropDatabase: %v", err)
	}
	if err := CreateDatabase(adminDB, name); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	t.Cleanup(func() { DropDatabase(adminDB, name) })
	cfg.Name = name
	return cfg
}

func TestIntegration_ConnectAdmin(t *testing.T) {
	db, err := ConnectAdmin(mysqlConfig(t))
	if err != nil {
		t.Fatalf("ConnectAdmin: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestIntegration_AutoMigrate(t *testing.T) {
	cfg := setupDatabase(t, "beartank_it_migrate")
	db, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	var tables []string
	if err := db.Raw("SHOW TABLES").Scan(&tables).Error; err != nil {
		t.Fatalf("SHOW TABLES: %v", err)
	}
	tableSet := make(map[string]bool)
	for _, tbl := range tables {
		tableSet[tbl] = true
	}
	for _, expected := range []string{"stages", "tasks", "team_stages", "submissions", "points_ledger", "notifications"} {
		if !tableSet[expected] {
			t.Errorf("expected table %q not found; got tables: %v", expected, tables)
		}
	}
}

func TestIntegration_SeedStages(t *testing.T) {
	cfg := setupDatabase(t, "beartank_it_seed")
	db, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	stages := []config.StageConfig{
		{ID: "ideation", Title: "Ideation", Order: 1},
		{ID: "prototype", Title: "Prototype", Order: 2},
	}
	if err := SeedStages(db, stages); err != nil {
		t.Fatalf("SeedStages: %v", err)
	}
	if err := SeedStages(db, stages); err != nil {
		t.Fatalf("SeedStages (idempotent): %v", err)
	}

	var count int64
	db.Table("stages").Count(&count)
	if count != 2 {
		t.Errorf("stage count = %d, want 2", count)
	}
}
