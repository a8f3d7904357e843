package cmds

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-go-golems/webchat-embed/pkg/mockbackend"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type mockBackendSettings struct {
	Addr         string
	APIKey       string
	AutomationID string
	Latency      time.Duration
}

func NewMockBackendCommand() *cobra.Command {
	s := &mockBackendSettings{
		Addr:         ":8089",
		APIKey:       "demo-key",
		AutomationID: "demo-automation",
	}
	cmd := &cobra.Command{
		Use:   "mock-backend",
		Short: "Serve a scripted automation backend for local demos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMockBackend(cmd.Context(), s)
		},
	}
	cmd.Flags().StringVar(&s.Addr, "addr", s.Addr, "Listen address")
	cmd.Flags().StringVar(&s.APIKey, "api-key", s.APIKey, "API key the backend accepts (empty accepts any)")
	cmd.Flags().StringVar(&s.AutomationID, "automation-id", s.AutomationID, "Automation id the backend accepts (empty accepts any)")
	cmd.Flags().DurationVar(&s.Latency, "latency", 0, "Delay added to every chat response")
	return cmd
}

func runMockBackend(ctx context.Context, s *mockBackendSettings) error {
	backend := mockbackend.NewServer(
		mockbackend.WithCredentials(s.APIKey, s.AutomationID),
		mockbackend.WithLatency(s.Latency),
	)
	httpSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           backend.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down mock backend...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
			return err
		}
		return nil
	})
	eg.Go(func() error {
		log.Info().Str("addr", s.Addr).Msg("starting mock backend")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server listen error")
			return err
		}
		return nil
	})
	return eg.Wait()
}
