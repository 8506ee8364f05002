package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"mempool-sniper/internal/alerting"
	"mempool-sniper/internal/decoder"
	"mempool-sniper/internal/logging"
)

// Alert channel names accepted in alerting.channels.
const (
	ChannelDiscord  = "discord"
	ChannelTelegram = "telegram"
	ChannelConsole  = "console"
	ChannelNATS     = "nats"
	ChannelKafka    = "kafka"
	ChannelRedis    = "redis"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Ethereum EthereumConfig `mapstructure:"ethereum"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Decoder  DecoderConfig  `mapstructure:"decoder"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Stats    StatsConfig    `mapstructure:"stats"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// EthereumConfig covers node access.
type EthereumConfig struct {
	// WSURL serves the pending transaction subscription.
	WSURL string `mapstructure:"ws_url"`
	// RPCURL serves transaction lookups. Defaults to WSURL.
	RPCURL           string        `mapstructure:"rpc_url"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	ExplorerTxURL    string        `mapstructure:"explorer_tx_url"`
	ReconnectInitial time.Duration `mapstructure:"reconnect_initial"`
	ReconnectMax     time.Duration `mapstructure:"reconnect_max"`
}

// PipelineConfig sizes the intake queue and the worker pool.
type PipelineConfig struct {
	QueueCapacity        int           `mapstructure:"queue_capacity"`
	MaxConcurrentFetches int           `mapstructure:"max_concurrent_fetches"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`
	ProgressEvery        uint64        `mapstructure:"progress_every"`
	SubscriptionBuffer   int           `mapstructure:"subscription_buffer"`
}

// DecoderConfig extends the built-in selector registry.
type DecoderConfig struct {
	// ExtraSelectors maps a 0x-prefixed selector to a label.
	ExtraSelectors map[string]string `mapstructure:"extra_selectors"`
}

// AlertingConfig selects and configures alert channels.
type AlertingConfig struct {
	Channels []string       `mapstructure:"channels"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Console  ConsoleConfig  `mapstructure:"console"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// DiscordConfig describes the webhook channel.
type DiscordConfig struct {
	WebhookURL string             `mapstructure:"webhook_url"`
	Timeout    time.Duration      `mapstructure:"timeout"`
	RateLimit  alerting.RateLimit `mapstructure:"rate_limit"`
}

// TelegramConfig describes the Telegram bot channel.
type TelegramConfig struct {
	BotToken  string             `mapstructure:"bot_token"`
	ChatID    string             `mapstructure:"chat_id"`
	APIBase   string             `mapstructure:"api_base"`
	Timeout   time.Duration      `mapstructure:"timeout"`
	RateLimit alerting.RateLimit `mapstructure:"rate_limit"`
}

// ConsoleConfig describes the log channel.
type ConsoleConfig struct {
	RateLimit alerting.RateLimit `mapstructure:"rate_limit"`
}

// NATSConfig describes the NATS channel.
type NATSConfig struct {
	URL       string             `mapstructure:"url"`
	Subject   string             `mapstructure:"subject"`
	RateLimit alerting.RateLimit `mapstructure:"rate_limit"`
}

// KafkaConfig describes the Kafka channel.
type KafkaConfig struct {
	Brokers   []string           `mapstructure:"brokers"`
	Topic     string             `mapstructure:"topic"`
	RateLimit alerting.RateLimit `mapstructure:"rate_limit"`
}

// RedisConfig describes the Redis stream channel.
type RedisConfig struct {
	URL       string             `mapstructure:"url"`
	Stream    string             `mapstructure:"stream"`
	MaxLen    int64              `mapstructure:"max_len"`
	RateLimit alerting.RateLimit `mapstructure:"rate_limit"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
	Path       string `mapstructure:"path"`
}

// StatsConfig controls periodic stats logging and the shutdown export.
type StatsConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	// Align snaps ticks to wall-clock multiples of Interval.
	Align        bool          `mapstructure:"align"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
	CSVPath      string        `mapstructure:"csv_path"`
	PNGPath      string        `mapstructure:"png_path"`
	MaxPoints    int           `mapstructure:"max_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SNIPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Ethereum.RPCURL == "" {
		cfg.Ethereum.RPCURL = cfg.Ethereum.WSURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "mempool-sniper")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Env overrides only bind to keys viper already knows.
	v.SetDefault("ethereum.ws_url", "")
	v.SetDefault("ethereum.rpc_url", "")
	v.SetDefault("ethereum.request_timeout", "10s")
	v.SetDefault("ethereum.explorer_tx_url", "https://sepolia.etherscan.io/tx/")
	v.SetDefault("ethereum.reconnect_initial", "1s")
	v.SetDefault("ethereum.reconnect_max", "60s")

	v.SetDefault("pipeline.queue_capacity", 4096)
	v.SetDefault("pipeline.max_concurrent_fetches", 50)
	v.SetDefault("pipeline.shutdown_timeout", "30s")
	v.SetDefault("pipeline.progress_every", 100)
	v.SetDefault("pipeline.subscription_buffer", 1024)

	v.SetDefault("alerting.channels", []string{ChannelConsole})

	v.SetDefault("alerting.discord.webhook_url", "")
	v.SetDefault("alerting.discord.timeout", "10s")
	v.SetDefault("alerting.discord.rate_limit.per_minute", 25)
	v.SetDefault("alerting.discord.rate_limit.burst", 1)
	v.SetDefault("alerting.discord.rate_limit.max_wait", "10s")

	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")
	v.SetDefault("alerting.telegram.rate_limit.per_minute", 20)
	v.SetDefault("alerting.telegram.rate_limit.burst", 1)
	v.SetDefault("alerting.telegram.rate_limit.max_wait", "10s")

	v.SetDefault("alerting.console.rate_limit.per_minute", 6000)
	v.SetDefault("alerting.console.rate_limit.burst", 100)
	v.SetDefault("alerting.console.rate_limit.max_wait", "0s")

	v.SetDefault("alerting.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("alerting.nats.subject", "mempool.hits")
	v.SetDefault("alerting.nats.rate_limit.per_minute", 6000)
	v.SetDefault("alerting.nats.rate_limit.burst", 100)
	v.SetDefault("alerting.nats.rate_limit.max_wait", "0s")

	v.SetDefault("alerting.kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("alerting.kafka.topic", "mempool-hits")
	v.SetDefault("alerting.kafka.rate_limit.per_minute", 6000)
	v.SetDefault("alerting.kafka.rate_limit.burst", 100)
	v.SetDefault("alerting.kafka.rate_limit.max_wait", "0s")

	v.SetDefault("alerting.redis.url", "redis://127.0.0.1:6379/0")
	v.SetDefault("alerting.redis.stream", "mempool:hits")
	v.SetDefault("alerting.redis.max_len", 10000)
	v.SetDefault("alerting.redis.rate_limit.per_minute", 6000)
	v.SetDefault("alerting.redis.rate_limit.burst", 100)
	v.SetDefault("alerting.redis.rate_limit.max_wait", "0s")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9090")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("stats.interval", "1m")
	v.SetDefault("stats.align", true)
	v.SetDefault("stats.startup_delay", "0s")
	v.SetDefault("stats.csv_path", "")
	v.SetDefault("stats.png_path", "")
	v.SetDefault("stats.max_points", 10000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Pipeline.QueueCapacity <= 0 {
		return fmt.Errorf("pipeline.queue_capacity must be greater than zero")
	}
	if c.Pipeline.MaxConcurrentFetches <= 0 {
		return fmt.Errorf("pipeline.max_concurrent_fetches must be greater than zero")
	}
	if c.Pipeline.ShutdownTimeout < 0 {
		return fmt.Errorf("pipeline.shutdown_timeout cannot be negative")
	}
	if c.Ethereum.RequestTimeout <= 0 {
		return fmt.Errorf("ethereum.request_timeout must be greater than zero")
	}
	if c.Stats.Interval <= 0 {
		return fmt.Errorf("stats.interval must be greater than zero")
	}
	if c.Stats.StartupDelay < 0 {
		return fmt.Errorf("stats.startup_delay cannot be negative")
	}
	if _, err := decoder.NewRegistry(c.Decoder.ExtraSelectors); err != nil {
		return fmt.Errorf("decoder.extra_selectors: %w", err)
	}
	return c.Alerting.Validate()
}

// Validate checks that every selected channel is known and fully configured.
func (a *AlertingConfig) Validate() error {
	if len(a.Channels) == 0 {
		return fmt.Errorf("alerting.channels must name at least one channel")
	}

	seen := make(map[string]bool, len(a.Channels))
	for _, ch := range a.Channels {
		if seen[ch] {
			return fmt.Errorf("alerting.channels lists %q twice", ch)
		}
		seen[ch] = true

		limit, err := a.channelLimit(ch)
		if err != nil {
			return err
		}
		if err := limit.Validate(); err != nil {
			return fmt.Errorf("alerting.%s.rate_limit: %w", ch, err)
		}
	}

	if seen[ChannelDiscord] && a.Discord.WebhookURL == "" {
		return fmt.Errorf("alerting.discord.webhook_url is required")
	}
	if seen[ChannelTelegram] {
		if a.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if a.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if seen[ChannelNATS] && a.NATS.URL == "" {
		return fmt.Errorf("alerting.nats.url is required")
	}
	if seen[ChannelKafka] && (len(a.Kafka.Brokers) == 0 || a.Kafka.Topic == "") {
		return fmt.Errorf("alerting.kafka.brokers and alerting.kafka.topic are required")
	}
	if seen[ChannelRedis] && a.Redis.URL == "" {
		return fmt.Errorf("alerting.redis.url is required")
	}
	return nil
}

func (a *AlertingConfig) channelLimit(ch string) (alerting.RateLimit, error) {
	switch ch {
	case ChannelDiscord:
		return a.Discord.RateLimit, nil
	case ChannelTelegram:
		return a.Telegram.RateLimit, nil
	case ChannelConsole:
		return a.Console.RateLimit, nil
	case ChannelNATS:
		return a.NATS.RateLimit, nil
	case ChannelKafka:
		return a.Kafka.RateLimit, nil
	case ChannelRedis:
		return a.Redis.RateLimit, nil
	default:
		return alerting.RateLimit{}, fmt.Errorf("alerting.channels: unknown channel %q", ch)
	}
}

// RateLimitFor returns the bucket configured for channel ch.
func (a *AlertingConfig) RateLimitFor(ch string) alerting.RateLimit {
	limit, _ := a.channelLimit(ch)
	return limit
}
