package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/anujChoudhary-1712/erp-fn-sub001/erptest"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serveAddr      string
	serveAccessTTL time.Duration
	serveSubject   string
	serveCompany   string
)

var serveFakeCmd = &cobra.Command{
	Use:   "serve-fake",
	Short: "Run the fake ERP backend",
	Long: `Run the in-memory ERP backend used by the tests.

It issues short-lived JWTs, renews them on GET /auth/refresh and echoes every
/api request. A token for the configured subject is printed on start so it can be
stored with "erpctl token set".`,
	Args: cobra.NoArgs,
	RunE: runServeFake,
}

func init() {
	serveFakeCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "listen address")
	serveFakeCmd.Flags().DurationVar(&serveAccessTTL, "access-ttl", time.Minute, "lifetime of issued tokens")
	serveFakeCmd.Flags().StringVar(&serveSubject, "subject", "user-1", "subject of the printed token")
	serveFakeCmd.Flags().StringVar(&serveCompany, "company", "", "company claim of issued tokens")
}

func runServeFake(cmd *cobra.Command, args []string) error {
	backend, err := erptest.NewBackend(erptest.Options{
		AccessTTL: serveAccessTTL,
		Subject:   serveSubject,
		Company:   serveCompany,
	})
	if err != nil {
		return err
	}
	token, err := backend.IssueToken(0)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           backend,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("fake backend listening", zap.String("addr", serveAddr), zap.Duration("access_ttl", serveAccessTTL))
	fmt.Fprintf(cmd.OutOrStdout(), "base url: http://%s\ntoken:    %s\n", serveAddr, token)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("fake backend stopped",
		zap.Int64("requests", backend.RequestCount()),
		zap.Int64("refresh_calls", backend.RefreshCalls()),
	)
	return nil
}
