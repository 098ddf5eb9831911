//go:build integration

package db

import (
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/models"
)

// Requires a running MySQL server. Configure via GATEHOUSE_TEST_DB_HOST,
// GATEHOUSE_TEST_DB_PORT, GATEHOUSE_TEST_DB_USER, GATEHOUSE_TEST_DB_PASS.
func testMySQLConfig(t *testing.T) config.DBConfig {
	t.Helper()
	host := os.Getenv("GATEHOUSE_TEST_DB_HOST")
	if host == "" {
		t.Skip("GATEHOUSE_TEST_DB_HOST not set")
	}
	port := 3306
	if p := os.Getenv("GATEHOUSE_TEST_DB_PORT"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			t.Fatalf("bad GATEHOUSE_TEST_DB_PORT: %v", err)
		}
		port = n
	}
	user := os.Getenv("GATEHOUSE_TEST_DB_USER")
	if user == "" {
		user = "root"
	}
	return config.DBConfig{
		Host:     host,
		Port:     port,
		User:     user,
		Password: os.Getenv("GATEHOUSE_TEST_DB_PASS"),
		Database: fmt.Sprintf("gatehouse_it_%d", time.Now().UnixNano()),
	}
}

func TestMySQLMigrateAndRoundTrip(t *testing.T) {
	cfg := testMySQLConfig(t)

	adminDB, err := ConnectAdmin(cfg)
	if err != nil {
		t.Fatalf("admin connect: %v", err)
	}
	if err := CreateDatabase(adminDB, cfg.Database); err != nil {
		t.Fatalf("create database: %v", err)
	}
	t.Cleanup(func() {
		adminDB.Exec("DROP DATABASE IF EXISTS `" + cfg.Database + "`")
	})

	gdb, err := Connect(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	c := models.RecruitmentCycle{
		ID: uuid.New(), Name: "IT", Slug: "it",
		PortalOpenAt:     time.Now(),
		ApplicationDueAt: time.Now().Add(time.Hour),
		PortalCloseAt:    time.Now().Add(2 * time.Hour),
	}
	if err := gdb.Create(&c).Error; err != nil {
		t.Fatalf("create cycle: %v", err)
	}

	// The slug unique index must translate to gorm.ErrDuplicatedKey on
	// the real driver too; the booking engine depends on this.
	dup := models.RecruitmentCycle{
		ID: uuid.New(), Name: "IT2", Slug: "it",
		PortalOpenAt:     time.Now(),
		ApplicationDueAt: time.Now().Add(time.Hour),
		PortalCloseAt:    time.Now().Add(2 * time.Hour),
	}
	if err := gdb.Create(&dup).Error; err == nil {
		t.Fatal("duplicate slug accepted")
	}
}
