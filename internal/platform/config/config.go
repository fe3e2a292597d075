package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "COMMENTTREE"

type HTTPConfig struct {
	Addr        string
	CORSOrigins string
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type NATSConfig struct {
	URL     string
	Subject string
}

// ThreadConfig is the default shape of a thread response.
type ThreadConfig struct {
	PageLimit int
	MaxDepth  int
}

type AppConfig struct {
	ServiceName string
	LogLevel    string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	NATS        NATSConfig
	Thread      ThreadConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "commenttree")
	v.SetDefault("log_level", "info")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_origins", "")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "2m")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "comments.actions.>")
	v.SetDefault("thread.page_limit", 20)
	v.SetDefault("thread.max_depth", 6)
}

// Load reads defaults, then the optional config file, then COMMENTTREE_*
// environment variables. An empty path searches for config.yml in the working
// directory and ./config; a missing file is not an error in that case.
func Load(path string) (AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return AppConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := AppConfig{
		ServiceName: strings.TrimSpace(v.GetString("service_name")),
		LogLevel:    strings.TrimSpace(v.GetString("log_level")),
		HTTP: HTTPConfig{
			Addr:        strings.TrimSpace(v.GetString("http.addr")),
			CORSOrigins: v.GetString("http.cors_origins"),
		},
		Database: DatabaseConfig{
			URL: strings.TrimSpace(v.GetString("database.url")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("redis.addr")),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			TTL:      v.GetDuration("redis.ttl"),
		},
		NATS: NATSConfig{
			URL:     strings.TrimSpace(v.GetString("nats.url")),
			Subject: strings.TrimSpace(v.GetString("nats.subject")),
		},
		Thread: ThreadConfig{
			PageLimit: v.GetInt("thread.page_limit"),
			MaxDepth:  v.GetInt("thread.max_depth"),
		},
	}
	return cfg, cfg.validate()
}

func (c AppConfig) validate() error {
	if c.ServiceName == "" {
		return errors.New("service_name is required")
	}
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must not be negative, got %d", c.Redis.DB)
	}
	if c.Thread.PageLimit <= 0 || c.Thread.MaxDepth <= 0 {
		return fmt.Errorf("thread.page_limit and thread.max_depth must be positive, got %d and %d", c.Thread.PageLimit, c.Thread.MaxDepth)
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		return errors.New("nats.subject is required when nats.url is set")
	}
	return nil
}
