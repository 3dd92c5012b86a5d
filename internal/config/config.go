package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// BridgeConfig holds the conversion behavior: the served domain and the
// initial flag values. Flags can be changed at runtime through the admin API;
// these are only the boot values.
type BridgeConfig struct {
	Domain                string
	TargetDim             int
	ConversionEnabled     bool
	PEPOnlyMode           bool
	ShrinkVCardImage      bool
	LegacyProtocolEnabled bool
}

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend  string
	TTL      time.Duration
	MaxBytes int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StreamConfig names the redis streams carrying stanzas between the XMPP
// server and the bridge.
type StreamConfig struct {
	Inbound       string
	Outbound      string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxConns        int
	ConnMaxLifetime time.Duration
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type AdminConfig struct {
	// Token guards the admin API. An empty token disables the guarded
	// routes entirely.
	Token string
}

type AppConfig struct {
	Environment string
	Bridge      BridgeConfig
	HTTP        HTTPConfig
	Cache       CacheConfig
	Redis       RedisConfig
	Streams     StreamConfig
	Postgres    PostgresConfig
	Storage     StorageConfig
	Admin       AdminConfig
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("AVATARBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.StringToTimeDurationHookFunc()
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Bridge.Domain == "" {
		return nil, fmt.Errorf("bridge.domain must be set")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("bridge.domain", "")
	v.SetDefault("bridge.targetdim", 96)
	v.SetDefault("bridge.conversionenabled", true)
	v.SetDefault("bridge.peponlymode", false)
	v.SetDefault("bridge.shrinkvcardimage", false)
	v.SetDefault("bridge.legacyprotocolenabled", false)

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.maxbytes", 20971520) // 20 MiB

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("streams.inbound", "xmpp:stanzas:in")
	v.SetDefault("streams.outbound", "xmpp:stanzas:out")
	v.SetDefault("streams.group", "avatarbridge")
	v.SetDefault("streams.consumer", "avatarbridge-1")
	v.SetDefault("streams.claiminterval", "30s")

	v.SetDefault("postgres.maxconns", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("storage.bucket", "avatarbridge-pep")
	v.SetDefault("storage.usessl", false)
}
