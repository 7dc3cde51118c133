package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StoreDriver != DriverSQLite {
		t.Fatalf("StoreDriver mismatch: got %q want %q", cfg.StoreDriver, DriverSQLite)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q", cfg.Port)
	}
	if cfg.DisplayScale != 7 {
		t.Fatalf("DisplayScale mismatch: got %d", cfg.DisplayScale)
	}
	if cfg.WalletMaxSkew != 5*time.Minute {
		t.Fatalf("WalletMaxSkew mismatch: got %v", cfg.WalletMaxSkew)
	}
	if cfg.GoalSetters != nil {
		t.Fatalf("GoalSetters should be empty: %#v", cfg.GoalSetters)
	}
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted an empty JWT_SECRET")
	}
}

func TestLoadConfigPostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted postgres without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://example")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StoreDriver != DriverPostgres {
		t.Fatalf("StoreDriver mismatch: got %q", cfg.StoreDriver)
	}
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "redis")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted an unknown driver")
	}
}

func TestLoadConfigParsesLists(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("GOAL_SETTERS", " GCURATOR , ,GADMIN")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://tokenart.example")
	t.Setenv("HTTP_READ_TIMEOUT", "3s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := []string{"GCURATOR", "GADMIN"}
	if len(cfg.GoalSetters) != len(expected) {
		t.Fatalf("GoalSetters mismatch: got %#v want %#v", cfg.GoalSetters, expected)
	}
	for i, p := range expected {
		if cfg.GoalSetters[i] != p {
			t.Fatalf("GoalSetters[%d] = %q, want %q", i, cfg.GoalSetters[i], p)
		}
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "https://tokenart.example" {
		t.Fatalf("CORSAllowedOrigins mismatch: %#v", cfg.CORSAllowedOrigins)
	}
	if cfg.HTTPReadTimeout != 3*time.Second {
		t.Fatalf("HTTPReadTimeout mismatch: got %v", cfg.HTTPReadTimeout)
	}
}

func TestLoadConfigRejectsDisplayScale(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("AMOUNT_DISPLAY_SCALE", "40")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted an out of range display scale")
	}
}

func TestLoadStoreConfigDoesNotNeedSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("GOAL_SETTERS", "GCURATOR")

	sc, err := LoadStoreConfig()
	if err != nil {
		t.Fatalf("LoadStoreConfig returned error: %v", err)
	}
	if err := sc.Normalize(); err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if sc.StoreDriver != DriverMemory || sc.DisplayScale != 7 || sc.DBMaxConns != 10 {
		t.Fatalf("unexpected store config: %+v", sc)
	}
	if len(sc.GoalSetters) != 1 || sc.GoalSetters[0] != "GCURATOR" {
		t.Fatalf("GoalSetters mismatch: %#v", sc.GoalSetters)
	}
}

func TestStoreConfigNormalize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     StoreConfig
		wantErr bool
	}{
		{name: "empty driver means sqlite", cfg: StoreConfig{DBMaxConns: 1}},
		{name: "scale upper bound", cfg: StoreConfig{StoreDriver: DriverMemory, DisplayScale: MaxDisplayScale, DBMaxConns: 1}},
		{name: "scale too large", cfg: StoreConfig{StoreDriver: DriverMemory, DisplayScale: MaxDisplayScale + 1, DBMaxConns: 1}, wantErr: true},
		{name: "negative scale", cfg: StoreConfig{StoreDriver: DriverMemory, DisplayScale: -1, DBMaxConns: 1}, wantErr: true},
		{name: "no connections", cfg: StoreConfig{StoreDriver: DriverMemory}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Normalize()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Normalize() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
