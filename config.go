package erpclient

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/anujChoudhary-1712/erp-fn-sub001/refresh"
)

// Config configures a Client. Start from DefaultConfig and override fields.
type Config struct {
	// BaseURL is the ERP API root, e.g. https://erp.example.com/api/v1.
	BaseURL string `koanf:"base_url"`
	// LoginURL is handed to the SessionEndedFunc when the session is torn down.
	LoginURL  string          `koanf:"login_url"`
	Transport TransportConfig `koanf:"transport"`
	Refresh   RefreshConfig   `koanf:"refresh"`
	Audit     AuditConfig     `koanf:"audit"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// TransportConfig controls the underlying HTTP client. Zero timeouts mean no deadline
// beyond the caller's context.
type TransportConfig struct {
	Timeout             time.Duration     `koanf:"timeout"`
	RetryMax            int               `koanf:"retry_max"`
	RetryWaitMin        time.Duration     `koanf:"retry_wait_min"`
	RetryWaitMax        time.Duration     `koanf:"retry_wait_max"`
	MaxIdleConnsPerHost int               `koanf:"max_idle_conns_per_host"`
	Tracing             bool              `koanf:"tracing"`
	UserAgent           string            `koanf:"user_agent"`
	Header              map[string]string `koanf:"header"`
}

// RefreshConfig controls the token refresh call.
type RefreshConfig struct {
	// Endpoint is resolved against BaseURL unless it is absolute.
	Endpoint  string `koanf:"endpoint"`
	TokenPath string `koanf:"token_path"`
	// Timeout bounds a single refresh call. Zero leaves it bounded only by the transport.
	Timeout time.Duration `koanf:"timeout"`
	// ProactiveWindow refreshes before sending when the caller's JWT expires within the
	// window. Zero disables it.
	ProactiveWindow time.Duration `koanf:"proactive_window"`
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `koanf:"enabled"`
	BufferSize int  `koanf:"buffer_size"`
	DropIfFull bool `koanf:"drop_if_full"`
}

// MetricsConfig toggles the in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool `koanf:"enabled"`
	EnableLatencyHistograms bool `koanf:"enable_latency_histograms"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used by New.
func DefaultConfig() Config {
	return Config{
		LoginURL: "/",
		Transport: TransportConfig{
			RetryWaitMin:        100 * time.Millisecond,
			RetryWaitMax:        2 * time.Second,
			MaxIdleConnsPerHost: 16,
			UserAgent:           "erpclient/1",
		},
		Refresh: RefreshConfig{
			Endpoint:  "/auth/refresh",
			TokenPath: refresh.DefaultTokenPath,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Transport.Header != nil {
		out.Transport.Header = make(map[string]string, len(cfg.Transport.Header))
		for k, v := range cfg.Transport.Header {
			out.Transport.Header[k] = v
		}
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		return errors.New("BaseURL is required")
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("BaseURL must be an absolute http(s) URL")
	}
	if strings.TrimSpace(c.LoginURL) == "" {
		return errors.New("LoginURL is required")
	}

	// Transport
	if c.Transport.Timeout < 0 {
		return errors.New("Transport Timeout must be >= 0")
	}
	if c.Transport.RetryMax < 0 || c.Transport.RetryMax > 10 {
		return errors.New("Transport RetryMax must be between 0 and 10")
	}
	if c.Transport.RetryWaitMin < 0 || c.Transport.RetryWaitMax < 0 {
		return errors.New("Transport retry waits must be >= 0")
	}
	if c.Transport.RetryWaitMax < c.Transport.RetryWaitMin {
		return errors.New("Transport RetryWaitMax must be >= RetryWaitMin")
	}
	if c.Transport.MaxIdleConnsPerHost < 0 {
		return errors.New("Transport MaxIdleConnsPerHost must be >= 0")
	}

	// Refresh
	if strings.TrimSpace(c.Refresh.Endpoint) == "" {
		return errors.New("Refresh Endpoint is required")
	}
	if strings.TrimSpace(c.Refresh.TokenPath) == "" {
		return errors.New("Refresh TokenPath is required")
	}
	if c.Refresh.Timeout < 0 {
		return errors.New("Refresh Timeout must be >= 0")
	}
	if c.Refresh.ProactiveWindow < 0 {
		return errors.New("Refresh ProactiveWindow must be >= 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	return nil
}

// refreshURL resolves the refresh endpoint against BaseURL.
func (c *Config) refreshURL() string {
	ep := strings.TrimSpace(c.Refresh.Endpoint)
	if u, err := url.Parse(ep); err == nil && u.IsAbs() {
		return ep
	}
	return joinURL(c.BaseURL, ep)
}

func joinURL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/" + strings.TrimLeft(path, "/")
}
