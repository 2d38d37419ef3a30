package erpclient

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{name: "defaults with base url", mutate: func(c *Config) {}, wantValid: true},
		{name: "missing base url", mutate: func(c *Config) { c.BaseURL = "" }, wantValid: false},
		{name: "relative base url", mutate: func(c *Config) { c.BaseURL = "/api" }, wantValid: false},
		{name: "ftp base url", mutate: func(c *Config) { c.BaseURL = "ftp://erp.local" }, wantValid: false},
		{name: "blank login url", mutate: func(c *Config) { c.LoginURL = " " }, wantValid: false},
		{name: "negative timeout", mutate: func(c *Config) { c.Transport.Timeout = -time.Second }, wantValid: false},
		{name: "retry max too high", mutate: func(c *Config) { c.Transport.RetryMax = 11 }, wantValid: false},
		{name: "retry waits inverted", mutate: func(c *Config) {
			c.Transport.RetryWaitMin = time.Second
			c.Transport.RetryWaitMax = time.Millisecond
		}, wantValid: false},
		{name: "retries enabled", mutate: func(c *Config) { c.Transport.RetryMax = 3 }, wantValid: true},
		{name: "blank refresh endpoint", mutate: func(c *Config) { c.Refresh.Endpoint = "" }, wantValid: false},
		{name: "blank token path", mutate: func(c *Config) { c.Refresh.TokenPath = "" }, wantValid: false},
		{name: "negative refresh timeout", mutate: func(c *Config) { c.Refresh.Timeout = -1 }, wantValid: false},
		{name: "negative proactive window", mutate: func(c *Config) { c.Refresh.ProactiveWindow = -1 }, wantValid: false},
		{name: "audit without buffer", mutate: func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}, wantValid: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.BaseURL = "https://erp.example.com/api/v1"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestRefreshURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://erp.example.com/api/v1/"
	if got := cfg.refreshURL(); got != "https://erp.example.com/api/v1/auth/refresh" {
		t.Fatalf("unexpected refresh url %q", got)
	}

	cfg.Refresh.Endpoint = "https://auth.example.com/refresh"
	if got := cfg.refreshURL(); got != "https://auth.example.com/refresh" {
		t.Fatalf("absolute endpoint must be kept, got %q", got)
	}
}

func TestCloneConfigCopiesHeaders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transport.Header = map[string]string{"X-App": "a"}
	out := cloneConfig(cfg)
	out.Transport.Header["X-App"] = "b"
	if cfg.Transport.Header["X-App"] != "a" {
		t.Fatal("clone shares header map")
	}
}
