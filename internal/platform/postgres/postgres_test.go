package postgres

import "testing"

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}
}

func TestConfigValidateRejectsBadPool(t *testing.T) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	cfg.MaxIdleConns = cfg.MaxOpenConns + 1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() expected error for idle > open")
	}
	cfg, _ = ConfigFromEnv()
	cfg.URL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() expected error for empty URL")
	}
}
