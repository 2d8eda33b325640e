// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package serve

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/luxfi/ids"

	"github.com/luxfi/lendvm/api/server"
	"github.com/luxfi/lendvm/vms/lendvm/config"
)

// EnvPrefix prefixes the environment variables that override flags, for
// example LENDVM_HTTP_ADDRESS.
const EnvPrefix = "LENDVM"

const (
	ConfigFileKey            = "config-file"
	HTTPAddressKey           = "http-address"
	HTTPAllowedOriginsKey    = "http-allowed-origins"
	HTTPAllowedHostsKey      = "http-allowed-hosts"
	HTTPReadTimeoutKey       = "http-read-timeout"
	HTTPReadHeaderTimeoutKey = "http-read-header-timeout"
	HTTPWriteTimeoutKey      = "http-write-timeout"
	HTTPIdleTimeoutKey       = "http-idle-timeout"
	HTTPShutdownTimeoutKey   = "http-shutdown-timeout"
	DBTypeKey                = "db-type"
	DBDirKey                 = "db-dir"
	GenesisFileKey           = "genesis-file"
	AdminKey                 = "admin"
	PoolKey                  = "pool"
	MaxEventsKey             = "max-events"
	FeedHistoryKey           = "feed-history"
)

const (
	MemDB    = "memdb"
	BadgerDB = "badgerdb"
)

var (
	errUnknownDBType = errors.New("unknown database type")
	errMissingDBDir  = errors.New("database directory is required")
)

func AddFlags(flags *pflag.FlagSet) {
	defaults := config.DefaultConfig()

	flags.String(ConfigFileKey, "", "Config file (json, yaml or toml) providing values for any of these flags")
	flags.String(HTTPAddressKey, "127.0.0.1:9650", "Address the HTTP API listens on")
	flags.StringSlice(HTTPAllowedOriginsKey, []string{"*"}, "Origins allowed to make cross origin requests")
	flags.StringSlice(HTTPAllowedHostsKey, []string{"localhost"}, "Host headers accepted by the HTTP API, \"*\" allows all")
	flags.Duration(HTTPReadTimeoutKey, 30*time.Second, "Maximum duration for reading an entire request")
	flags.Duration(HTTPReadHeaderTimeoutKey, 30*time.Second, "Maximum duration for reading request headers")
	flags.Duration(HTTPWriteTimeoutKey, 30*time.Second, "Maximum duration before timing out writes of a response")
	flags.Duration(HTTPIdleTimeoutKey, 120*time.Second, "Maximum duration to wait for the next request on a keep-alive connection")
	flags.Duration(HTTPShutdownTimeoutKey, 10*time.Second, "Maximum duration to wait for in-flight requests on shutdown")
	flags.String(DBTypeKey, MemDB, fmt.Sprintf("Database backend, one of %q or %q", MemDB, BadgerDB))
	flags.String(DBDirKey, "", "Directory of the on-disk database")
	flags.String(GenesisFileKey, "", "Genesis file applied to an empty database")
	flags.String(AdminKey, "", "Address allowed to list assets and push prices")
	flags.String(PoolKey, defaults.Pool.String(), "Holder id of the pool's reserves")
	flags.Int(MaxEventsKey, defaults.MaxEvents, "Maximum number of events returned by one query")
	flags.Int(FeedHistoryKey, defaults.FeedHistory, "Number of rounds each price feed retains")
}

type Config struct {
	HTTPAddress     string
	AllowedOrigins  []string
	AllowedHosts    []string
	HTTP            server.HTTPConfig
	ShutdownTimeout time.Duration
	DBType          string
	DBDir           string
	GenesisFile     string
	VM              config.Config
}

// ParseFlags resolves every key from, in order of precedence, the command
// line, the LENDVM_* environment, the config file and the flag defaults.
func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile := v.GetString(ConfigFileKey); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", configFile, err)
		}
	}

	vmConfig := config.DefaultConfig()
	if adminStr := v.GetString(AdminKey); adminStr != "" {
		admin, err := ids.ShortFromString(adminStr)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", AdminKey, err)
		}
		vmConfig.Admin = admin
	}
	pool, err := ids.ShortFromString(v.GetString(PoolKey))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", PoolKey, err)
	}
	vmConfig.Pool = pool
	vmConfig.MaxEvents = v.GetInt(MaxEventsKey)
	vmConfig.FeedHistory = v.GetInt(FeedHistoryKey)
	if err := vmConfig.Verify(); err != nil {
		return nil, err
	}

	c := &Config{
		HTTPAddress:    v.GetString(HTTPAddressKey),
		AllowedOrigins: v.GetStringSlice(HTTPAllowedOriginsKey),
		AllowedHosts:   v.GetStringSlice(HTTPAllowedHostsKey),
		HTTP: server.HTTPConfig{
			ReadTimeout:       v.GetDuration(HTTPReadTimeoutKey),
			ReadHeaderTimeout: v.GetDuration(HTTPReadHeaderTimeoutKey),
			WriteTimeout:      v.GetDuration(HTTPWriteTimeoutKey),
			IdleTimeout:       v.GetDuration(HTTPIdleTimeoutKey),
		},
		ShutdownTimeout: v.GetDuration(HTTPShutdownTimeoutKey),
		DBType:          v.GetString(DBTypeKey),
		DBDir:           v.GetString(DBDirKey),
		GenesisFile:     v.GetString(GenesisFileKey),
		VM:              vmConfig,
	}
	switch c.DBType {
	case MemDB:
	case BadgerDB:
		if c.DBDir == "" {
			return nil, fmt.Errorf("%w for %s", errMissingDBDir, BadgerDB)
		}
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownDBType, c.DBType)
	}
	return c, nil
}
