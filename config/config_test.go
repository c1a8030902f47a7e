package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	testOwner     = "0x0000000000000000000000000000000000000001"
	testRecipient = "0x0000000000000000000000000000000000000002"
	testVault     = "0x0000000000000000000000000000000000000003"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesSettings(t *testing.T) {
	contents := fmt.Sprintf(`ListenAddress = "0.0.0.0:9000"
DataDir = "./market-data"
Env = "testnet"
Owner = "%s"
FeeRecipient = "%s"
Vault = "%s"
CreateFee = "2000000000000000"
TradeFeeBps = 200
CreatorFeeBps = 75
RPCToken = "secret"
`, testOwner, testRecipient, testVault)
	cfg, err := Load(writeConfig(t, contents))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != "0.0.0.0:9000" || cfg.DataDir != "./market-data" || cfg.Env != "testnet" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.TradeFeeBps != 200 || cfg.CreatorFeeBps != 75 {
		t.Fatalf("fee settings not parsed: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	schedule, err := cfg.FeeSchedule()
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if schedule.CreateFee.String() != "2000000000000000" {
		t.Fatalf("create fee %s", schedule.CreateFee)
	}
	recipient, err := cfg.FeeRecipientAddress()
	if err != nil {
		t.Fatalf("recipient: %v", err)
	}
	if recipient[19] != 0x02 {
		t.Fatalf("recipient not parsed: %x", recipient)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	contents := fmt.Sprintf(`Owner = "%s"
FeeRecipient = "%s"
Vault = "%s"
`, testOwner, testRecipient, testVault)
	cfg, err := Load(writeConfig(t, contents))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != DefaultListenAddress {
		t.Fatalf("listen default missing: %q", cfg.ListenAddress)
	}
	if cfg.CreateFee != DefaultCreateFee {
		t.Fatalf("create fee default missing: %q", cfg.CreateFee)
	}
	if cfg.TradeFeeBps != DefaultTradeFeeBps || cfg.CreatorFeeBps != DefaultCreatorFeeBps {
		t.Fatalf("fee defaults missing: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != DefaultListenAddress {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if !strings.Contains(string(raw), "ListenAddress") {
		t.Fatalf("default file incomplete: %s", raw)
	}
}

func TestValidateRejectsBadInput(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(*Config)
		wantFail bool
	}{
		{"valid", func(*Config) {}, false},
		{"bad owner", func(c *Config) { c.Owner = "not-an-address" }, true},
		{"bad recipient", func(c *Config) { c.FeeRecipient = "0x1234" }, true},
		{"bad vault", func(c *Config) { c.Vault = "" }, true},
		{"bad create fee", func(c *Config) { c.CreateFee = "-5" }, true},
		{"fees exceed denominator", func(c *Config) { c.TradeFeeBps = 9_500; c.CreatorFeeBps = 501 }, true},
		{"fees at denominator", func(c *Config) { c.TradeFeeBps = 9_500; c.CreatorFeeBps = 500 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				Owner:        testOwner,
				FeeRecipient: testRecipient,
				Vault:        testVault,
			}
			applyDefaults(cfg)
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantFail && err == nil {
				t.Fatalf("expected failure")
			}
			if !tc.wantFail && err != nil {
				t.Fatalf("unexpected failure: %v", err)
			}
		})
	}
}
