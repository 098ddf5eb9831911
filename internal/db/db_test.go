package db

import (
	"testing"

	"github.com/gatehouse/gatehouse/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DBConfig
		want string
	}{
		{
			name: "default local",
			cfg:  config.DBConfig{Host: "127.0.0.1", Port: 3306, User: "root", Database: "gatehouse_lakeside"},
			want: "root@tcp(127.0.0.1:3306)/gatehouse_lakeside?parseTime=true&charset=utf8mb4",
		},
		{
			name: "with password",
			cfg:  config.DBConfig{Host: "10.0.0.5", Port: 3307, User: "gatehouse", Password: "hunter2", Database: "gatehouse_prod"},
			want: "gatehouse:hunter2@tcp(10.0.0.5:3307)/gatehouse_prod?parseTime=true&charset=utf8mb4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.cfg)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAutoMigrate_AllModels(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	for _, m := range AllModels() {
		if !gdb.Migrator().HasTable(m) {
			t.Errorf("missing table for %T", m)
		}
	}
}
