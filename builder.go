package erpclient

import (
	"context"
	"net/http"

	"github.com/anujChoudhary-1712/erp-fn-sub001/credential"
	"github.com/anujChoudhary-1712/erp-fn-sub001/refresh"
	"go.uber.org/zap"
)

// Builder assembles a Client. A Builder can be used once.
type Builder struct {
	config Config

	store          credential.Store
	refresher      refresh.Refresher
	httpClient     *http.Client
	logger         *zap.Logger
	auditSink      AuditSink
	onSessionEnded SessionEndedFunc

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL overrides Config.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithCredentialStore sets where the session token is read, replaced and cleared. Required.
func (b *Builder) WithCredentialStore(store credential.Store) *Builder {
	b.store = store
	return b
}

// WithRefresher replaces the default HTTP refresh call.
func (b *Builder) WithRefresher(r refresh.Refresher) *Builder {
	b.refresher = r
	return b
}

// WithHTTPClient replaces the transport stack built from Config.Transport.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithLogger sets the logger. The default discards everything.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets where audit events go when Config.Audit is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithSessionEndedHandler sets the callback run after the session token is discarded.
func (b *Builder) WithSessionEndedHandler(fn SessionEndedFunc) *Builder {
	b.onSessionEnded = fn
	return b
}

// WithMetricsEnabled overrides Config.Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms overrides Config.Metrics.EnableLatencyHistograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, ErrNoCredentialStore
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:     cfg,
		store:   b.store,
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
		headers: staticHeaders(cfg.Transport),
	}

	if b.httpClient != nil {
		c.http = b.httpClient
	} else {
		c.http, c.transport = newHTTPClient(cfg.Transport, logger)
	}

	if b.refresher != nil {
		c.refresher = b.refresher
	} else {
		c.refresher = &refresh.HTTPRefresher{
			Client:    c.http,
			URL:       cfg.refreshURL(),
			TokenPath: cfg.Refresh.TokenPath,
			Header:    c.headers,
		}
	}

	c.onSessionEnded = b.onSessionEnded
	if c.onSessionEnded == nil {
		c.onSessionEnded = func(_ context.Context, loginURL string, cause error) {
			logger.Warn("session ended", zap.String("login_url", loginURL), zap.Error(cause))
		}
	}

	c.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)

	b.built = true
	return c, nil
}

func staticHeaders(cfg TransportConfig) http.Header {
	h := make(http.Header, len(cfg.Header)+1)
	for k, v := range cfg.Header {
		h.Set(k, v)
	}
	if cfg.UserAgent != "" {
		h.Set("User-Agent", cfg.UserAgent)
	}
	return h
}
