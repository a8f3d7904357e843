package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesJSONToFile(t *testing.T) {
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "logs", "widget.log")
	_, err := Init(Settings{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)

	log.Debug().Str("component", "test").Msg("hello")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), `"message":"hello"`)
	require.Contains(t, string(b), `"component":"test"`)
}

func TestInit_RejectsBadSettings(t *testing.T) {
	_, err := Init(Settings{Level: "loud"})
	require.Error(t, err)

	_, err = Init(Settings{Level: "info", Format: "xml"})
	require.Error(t, err)
}

func TestWatermillAdapter_With(t *testing.T) {
	a := NewWatermill(zerolog.Nop())
	child := a.With(watermill.LogFields{"topic": "x"})
	require.NotNil(t, child)
	child.Info("ok", nil)
	child.Error("bad", nil, watermill.LogFields{"k": 1})
}
