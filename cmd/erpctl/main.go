package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	erpclient "github.com/anujChoudhary-1712/erp-fn-sub001"
	"github.com/anujChoudhary-1712/erp-fn-sub001/credential"
	"github.com/anujChoudhary-1712/erp-fn-sub001/metrics/export/prometheus"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath  string
	baseURL     string
	tokenFile   string
	redisAddr   string
	redisPrefix string
	metricsAddr string
	debug       bool
	timeout     time.Duration

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "erpctl",
	Short: "erpctl - authenticated ERP API client",
	Long: `erpctl sends authenticated requests to the ERP API.

An expired session token is renewed once, transparently, and the request that hit
the 401 is replayed with the new token. The token lives in a local file by default
or in Redis when --redis-addr is given.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if debug {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "JSON config file")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "ERP API root (overrides config)")
	rootCmd.PersistentFlags().StringVar(&tokenFile, "token-file", defaultTokenFile(), "token file used when --redis-addr is empty")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", "", "keep the token in Redis at this address")
	rootCmd.PersistentFlags().StringVar(&redisPrefix, "redis-prefix", "erp", "Redis key prefix")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")

	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenShowCmd)
	tokenCmd.AddCommand(tokenClearCmd)

	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(serveFakeCmd)
	rootCmd.AddCommand(loadtestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "erpctl-token.json"
	}
	return filepath.Join(dir, "erpctl", "token.json")
}

// loadConfig layers the JSON file at path over erpclient.DefaultConfig.
func loadConfig(path string) (erpclient.Config, error) {
	cfg := erpclient.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("error reading config file: %w", err)
	}
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(raw), json.Parser()); err != nil {
		return cfg, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}

// openStore returns the token store selected by the global flags and a func releasing it.
func openStore() (credential.Store, func(), error) {
	if redisAddr == "" {
		return credential.NewFileStore(tokenFile, credential.KeyAccessToken), func() {}, nil
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{redisAddr},
	})
	return credential.NewRedisStore(client, redisPrefix, credential.KeyAccessToken, 0), func() { _ = client.Close() }, nil
}

// newClient builds an erpclient.Client from the global flags. The returned func closes it
// and everything it opened.
func newClient(cmd *cobra.Command) (*erpclient.Client, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.EnableLatencyHistograms = true
	}

	store, closeStore, err := openStore()
	if err != nil {
		return nil, nil, err
	}

	stderr := cmd.ErrOrStderr()
	client, err := erpclient.New().
		WithConfig(cfg).
		WithCredentialStore(store).
		WithLogger(logger).
		WithSessionEndedHandler(func(_ context.Context, loginURL string, cause error) {
			if cause != nil {
				fmt.Fprintf(stderr, "session ended (%v); log in again at %s\n", cause, loginURL)
			}
		}).
		Build()
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	stopMetrics := serveMetrics(client)
	return client, func() {
		stopMetrics()
		client.Close()
		closeStore()
	}, nil
}

func serveMetrics(source prometheus.Source) func() {
	if metricsAddr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", prometheus.NewExporter(source, map[string]string{"app": "erpctl"}).Handler())
	srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
