package cmds

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-chi/chi/v5"
	"github.com/go-go-golems/webchat-embed/pkg/events"
	"github.com/go-go-golems/webchat-embed/pkg/logging"
	"github.com/go-go-golems/webchat-embed/pkg/transcript"
	"github.com/go-go-golems/webchat-embed/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type chatSettings struct {
	Headless    bool
	MetricsAddr string
	WidgetID    string
	DrainWait   time.Duration
}

func NewChatCommand(root *RootSettings) *cobra.Command {
	s := &chatSettings{DrainWait: 30 * time.Second}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Mount the chat widget in the terminal",
		Long: "Mount the chat widget in the terminal. ctrl+o opens and minimizes the panel, " +
			"enter sends, tab cycles through quick replies. Without a terminal on stdin " +
			"the widget runs in line mode.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), root, s, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&s.Headless, "headless", false, "Line mode: read messages from stdin, print the transcript to stdout")
	cmd.Flags().StringVar(&s.MetricsAddr, "metrics-addr", "", "Serve API client metrics on this address (e.g. :9090)")
	cmd.Flags().StringVar(&s.WidgetID, "widget-id", "", "Widget instance id, used in the event topic (random by default)")
	cmd.Flags().DurationVar(&s.DrainWait, "drain-wait", s.DrainWait, "Line mode: how long to wait for pending replies before the next line")
	return cmd
}

func runChat(ctx context.Context, root *RootSettings, s *chatSettings, in io.Reader, out io.Writer) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	headless := s.Headless
	if f, ok := in.(*os.File); ok && !isatty.IsTerminal(f.Fd()) {
		headless = true
	}
	if !headless && root.Logging.File == "" {
		// the widget owns the terminal, keep logs off it
		root.Logging.File = logging.DefaultTUILogFile()
		if _, err := logging.Init(root.Logging); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, s.WidgetID)
	if err != nil {
		return err
	}
	defer a.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, groupCtx := errgroup.WithContext(runCtx)

	if s.MetricsAddr != "" {
		eg.Go(func() error { return serveMetrics(groupCtx, s.MetricsAddr, a.registry) })
	}
	eg.Go(func() error {
		defer cancel()
		if headless {
			return runHeadless(groupCtx, a, in, out, s.DrainWait)
		}
		return runTUI(groupCtx, a)
	})
	return eg.Wait()
}

func runTUI(ctx context.Context, a *app) error {
	renderer := transcript.NewRenderer(a.cfg.EmbedConfig)
	p := tea.NewProgram(ui.NewModel(ctx, a.widget, renderer), tea.WithAltScreen(), tea.WithContext(ctx))

	consumer := events.NewConsumer(a.topic, a.bus.Subscriber, ui.ForwardFunc(p))
	if err := consumer.Start(ctx); err != nil {
		return errors.Wrap(err, "subscribe to widget events")
	}
	defer consumer.Stop()

	a.widget.Mount()
	log.Info().Str("widget_id", a.widget.ID()).Msg("widget mounted")

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
