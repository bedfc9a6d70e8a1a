package config

import "testing"

func base() *Config {
	return &Config{
		Port:                  "8000",
		Env:                   "development",
		DatabaseURL:           "postgres://localhost/vetcore",
		Timezone:              "Asia/Kolkata",
		PaymentGraceDays:      7,
		RequestTimeoutSeconds: 30,
	}
}

func TestValidateDevelopment(t *testing.T) {
	if err := base().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateProductionNeedsSecret(t *testing.T) {
	cfg := base()
	cfg.Env = "production"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("production without JWT_SECRET must fail")
	}
	cfg.JWTSecret = "s3cret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := base()
	cfg.Timezone = "Mars/Olympus"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("invalid timezone must fail")
	}

	cfg = base()
	cfg.PaymentGraceDays = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("negative grace days must fail")
	}

	cfg = base()
	cfg.RequestTimeoutSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("zero request timeout must fail")
	}
}

func TestLocation(t *testing.T) {
	loc, err := base().Location()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.String() != "Asia/Kolkata" {
		t.Fatalf("unexpected location: %s", loc)
	}
}

func TestIsDev(t *testing.T) {
	cfg := base()
	if !cfg.IsDev() {
		t.Fatalf("development env must be dev")
	}
	cfg.Env = "production"
	if cfg.IsDev() {
		t.Fatalf("production env must not be dev")
	}
}
