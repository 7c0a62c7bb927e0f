package redisshard

import (
	"testing"
	"time"

	"github.com/bonfire-gw/bonfire/internal/configtypes"

	"github.com/stretchr/testify/require"
)

func TestClientOptionAddresses(t *testing.T) {
	opt, err := clientOption(configtypes.Redis{
		Address:        []string{"127.0.0.1:6379", "127.0.0.1:6380"},
		DB:             2,
		User:           "user",
		Password:       "secret",
		ConnectTimeout: configtypes.Duration(2 * time.Second),
		IOTimeout:      configtypes.Duration(3 * time.Second),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"127.0.0.1:6379", "127.0.0.1:6380"}, opt.InitAddress)
	require.Equal(t, 2, opt.SelectDB)
	require.Equal(t, "user", opt.Username)
	require.Equal(t, "secret", opt.Password)
	require.Equal(t, 2*time.Second, opt.Dialer.Timeout)
	require.Equal(t, 3*time.Second, opt.ConnWriteTimeout)
	require.True(t, opt.DisableCache)
}

func TestClientOptionURL(t *testing.T) {
	opt, err := clientOption(configtypes.Redis{
		Address: []string{"redis://:pass@localhost:6379/3"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"localhost:6379"}, opt.InitAddress)
	require.Equal(t, "pass", opt.Password)
	require.Equal(t, 3, opt.SelectDB)
}

func TestClientOptionErrors(t *testing.T) {
	_, err := clientOption(configtypes.Redis{})
	require.Error(t, err)
	_, err = clientOption(configtypes.Redis{Address: []string{"localhost"}})
	require.Error(t, err)
	_, err = clientOption(configtypes.Redis{Address: []string{"redis://a:1", "redis://b:2"}})
	require.Error(t, err)
}
