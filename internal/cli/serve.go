package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/PabloGalante/smalltalk-dojo/internal/adapters/http"
	memstore "github.com/PabloGalante/smalltalk-dojo/internal/adapters/storage/memory"
	"github.com/PabloGalante/smalltalk-dojo/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(st *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := st.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := wireApp(ctx, cfg, wireOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			handler := httpadapter.NewServer(a.svc, memstore.NewSessionRegistry(), a.feedback)
			return serveHTTP(ctx, ":"+cfg.Port, handler)
		},
	}

	cmd.Flags().String("port", "", "listen port (default 8080)")
	bindFlag(st.v, "port", cmd.Flags().Lookup("port"))

	return cmd
}

// serveHTTP runs until ctx is cancelled, then drains in-flight requests.
func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	log := observability.WithFields("component", "http", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info("Small Talk Dojo API listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
