package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8650 {
		t.Errorf("Port: got %d", cfg.Server.Port)
	}
	if cfg.Database.Path != "./moodcue.duckdb" {
		t.Errorf("Path: got %q", cfg.Database.Path)
	}
	if cfg.Embedding.Model != "paraphrase-multilingual-MiniLM-L12-v2" {
		t.Errorf("Model: got %q", cfg.Embedding.Model)
	}
	if !cfg.Catalog.Seed {
		t.Error("seeding should default on")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("Logging: got %+v", cfg.Logging)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("DUCKDB_PATH", "/data/movies.duckdb")
	t.Setenv("EMBEDDING_URL", "http://embed:8080")
	t.Setenv("SEED_CATALOG", "false")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Port: got %d", cfg.Server.Port)
	}
	if cfg.Database.Path != "/data/movies.duckdb" {
		t.Errorf("Path: got %q", cfg.Database.Path)
	}
	if cfg.Embedding.URL != "http://embed:8080" {
		t.Errorf("URL: got %q", cfg.Embedding.URL)
	}
	if cfg.Catalog.Seed {
		t.Error("SEED_CATALOG=false not applied")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Format: got %q", cfg.Logging.Format)
	}
}

func TestLoadIgnoresUnknownEnv(t *testing.T) {
	t.Setenv("PORT", "1234")
	t.Setenv("PATH_OVERRIDE", "/x")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8650 {
		t.Errorf("unmapped env leaked into config: port %d", cfg.Server.Port)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "99999")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}
