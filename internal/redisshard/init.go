// Package redisshard builds Redis clients from configuration.
package redisshard

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/bonfire-gw/bonfire/internal/configtypes"

	"github.com/redis/rueidis"
)

// NewClient creates Redis client. Several addresses point to nodes of one
// Redis Cluster.
func NewClient(redisConf configtypes.Redis) (rueidis.Client, error) {
	opt, err := clientOption(redisConf)
	if err != nil {
		return nil, err
	}
	client, err := rueidis.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("error creating Redis client: %w", err)
	}
	return client, nil
}

func clientOption(redisConf configtypes.Redis) (rueidis.ClientOption, error) {
	if len(redisConf.Address) == 0 {
		return rueidis.ClientOption{}, fmt.Errorf("no Redis address configured")
	}

	var opt rueidis.ClientOption
	if strings.Contains(redisConf.Address[0], "://") {
		if len(redisConf.Address) > 1 {
			return opt, fmt.Errorf("only one Redis URL address allowed")
		}
		parsed, err := rueidis.ParseURL(redisConf.Address[0])
		if err != nil {
			return opt, fmt.Errorf("malformed Redis URL: %w", err)
		}
		opt = parsed
	} else {
		for _, address := range redisConf.Address {
			if _, _, err := net.SplitHostPort(address); err != nil {
				return opt, fmt.Errorf("malformed Redis address: %s", address)
			}
		}
		opt.InitAddress = redisConf.Address
	}

	addCommonSettings(&opt, redisConf)
	return opt, nil
}

func addCommonSettings(opt *rueidis.ClientOption, redisConf configtypes.Redis) {
	if redisConf.DB != 0 {
		opt.SelectDB = redisConf.DB
	}
	if redisConf.User != "" {
		opt.Username = redisConf.User
	}
	if redisConf.Password != "" {
		opt.Password = redisConf.Password
	}
	if redisConf.ClientName != "" {
		opt.ClientName = redisConf.ClientName
	}
	opt.AlwaysRESP2 = redisConf.ForceResp2
	// Pub/sub connections are dedicated per session, keep cache off.
	opt.DisableCache = true

	connectTimeout := redisConf.ConnectTimeout.ToDuration()
	if connectTimeout <= 0 {
		connectTimeout = time.Second
	}
	opt.Dialer = net.Dialer{Timeout: connectTimeout}
	if ioTimeout := redisConf.IOTimeout.ToDuration(); ioTimeout > 0 {
		opt.ConnWriteTimeout = ioTimeout
	}
}
