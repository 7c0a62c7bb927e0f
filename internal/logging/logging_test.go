package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bonfire-gw/bonfire/internal/configtypes"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, Level("debug"))
	require.Equal(t, zerolog.WarnLevel, Level("WARN"))
	require.Equal(t, zerolog.Disabled, Level("none"))
	require.Equal(t, zerolog.InfoLevel, Level("chatty"))
}

func TestSetupLogFile(t *testing.T) {
	level := zerolog.GlobalLevel()
	logger := log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(level)
		log.Logger = logger
	})

	path := filepath.Join(t.TempDir(), "bonfire.log")
	closeFn, err := Setup(configtypes.Log{Level: "warn", File: path})
	require.NoError(t, err)
	require.True(t, Enabled(zerolog.ErrorLevel))
	require.False(t, Enabled(zerolog.InfoLevel))

	log.Info().Msg("skipped")
	log.Warn().Msg("written")
	closeFn()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "written")
	require.NotContains(t, string(data), "skipped")
}

func TestSetupBadLogFile(t *testing.T) {
	level := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(level) })
	_, err := Setup(configtypes.Log{File: filepath.Join(t.TempDir(), "missing", "x.log")})
	require.Error(t, err)
}
