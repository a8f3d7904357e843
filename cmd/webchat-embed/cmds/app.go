package cmds

import (
	"context"

	"github.com/go-go-golems/webchat-embed/pkg/chathandler"
	"github.com/go-go-golems/webchat-embed/pkg/config"
	"github.com/go-go-golems/webchat-embed/pkg/events"
	"github.com/go-go-golems/webchat-embed/pkg/persistence/sessionstore"
	"github.com/go-go-golems/webchat-embed/pkg/redisstream"
	"github.com/go-go-golems/webchat-embed/pkg/widget"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// app is one mounted widget with everything it owns.
type app struct {
	cfg      config.AppConfig
	store    sessionstore.Store
	bus      *redisstream.Bus
	registry *prometheus.Registry
	widget   *widget.Widget
	topic    string
}

// newApp builds the widget for an already validated config.
func newApp(cfg config.AppConfig, widgetID string, opts ...widget.Option) (*app, error) {
	if widgetID == "" {
		widgetID = uuid.NewString()
	}
	store, err := sessionstore.Open(cfg.Storage)
	if err != nil {
		return nil, errors.Wrap(err, "open session store")
	}
	bus, err := redisstream.BuildBus(cfg.Events)
	if err != nil {
		_ = store.Close()
		return nil, errors.Wrap(err, "build event bus")
	}

	topic := events.TopicForWidget(widgetID)
	if err := bus.PrepareTopic(context.Background(), topic); err != nil {
		_ = bus.Close()
		_ = store.Close()
		return nil, errors.Wrap(err, "prepare event topic")
	}

	registry := prometheus.NewRegistry()
	client := chathandler.NewClient(cfg.APIConfig, chathandler.WithMetrics(chathandler.NewMetrics(registry)))

	opts = append([]widget.Option{
		widget.WithID(widgetID),
		widget.WithNotifier(events.NewPublisherNotifier(bus.Publisher, topic)),
	}, opts...)

	return &app{
		cfg:      cfg,
		store:    store,
		bus:      bus,
		registry: registry,
		widget:   widget.New(cfg.EmbedConfig, client, store, opts...),
		topic:    topic,
	}, nil
}

func (a *app) Close() {
	a.widget.Dispose()
	if err := a.bus.Close(); err != nil {
		log.Warn().Err(err).Msg("closing event bus")
	}
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("closing session store")
	}
}
