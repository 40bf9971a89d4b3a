package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is a snapshot of library-wide defaults. Engines copy the values they
// need at invocation start; mutating a Config afterwards never affects an
// in-flight conversation.
type Config struct {
	// DefaultMaxToolRoundtrips bounds how many tool-execution rounds a single
	// invocation may trigger before the engine returns the last response with
	// its tool calls unexecuted.
	DefaultMaxToolRoundtrips int `mapstructure:"default_max_tool_roundtrips"`

	// DefaultMaxMessages bounds the total message count of a conversation.
	// Exceeding it is a fatal, typed error.
	DefaultMaxMessages int `mapstructure:"default_max_messages"`

	// WarnThreshold is the fraction of the message limit at which the engine
	// emits its one advisory warning. Must lie in (0, 1].
	WarnThreshold float64 `mapstructure:"warn_threshold"`

	// HTTPTimeout caps the total duration of a non-streaming HTTP exchange,
	// see [Config.HTTPClient]. Streaming calls are bounded by their context
	// instead: a whole-exchange timeout would cut long streams short.
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	// LogLevel selects observer verbosity: debug, info, warn or error.
	LogLevel string `mapstructure:"log_level"`

	// DefaultLLMModel, when set, is used by clients that were not given an
	// explicit model.
	DefaultLLMModel string `mapstructure:"default_llm_model"`
}

var defaultConfig = Config{
	DefaultMaxToolRoundtrips: 3,
	DefaultMaxMessages:       50,
	WarnThreshold:            0.8,
	HTTPTimeout:              120 * time.Second,
	LogLevel:                 "info",
}

// Default returns the built-in defaults without reading the environment or
// any file.
func Default() Config {
	return defaultConfig
}

// Load resolves the configuration in three layers, lowest to highest
// precedence: built-in defaults, an optional parley.yaml in the working
// directory, and PARLEY_* environment variables. A .env file, when present,
// is folded into the process environment first so its values participate as
// regular environment variables.
func Load() (Config, error) {
	// Best-effort: a missing .env file is the normal case.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PARLEY")
	v.AutomaticEnv()

	v.SetConfigName("parley")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, func(c *mapstructure.DecoderConfig) {
		c.DecodeHook = decodeHook
	}); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default_max_tool_roundtrips", defaultConfig.DefaultMaxToolRoundtrips)
	v.SetDefault("default_max_messages", defaultConfig.DefaultMaxMessages)
	v.SetDefault("warn_threshold", defaultConfig.WarnThreshold)
	v.SetDefault("http_timeout", defaultConfig.HTTPTimeout)
	v.SetDefault("log_level", defaultConfig.LogLevel)
	v.SetDefault("default_llm_model", defaultConfig.DefaultLLMModel)
}

// Validate checks value ranges. Load validates every result; callers
// constructing a Config by hand can call it themselves.
func (c Config) Validate() error {
	if c.DefaultMaxToolRoundtrips < 0 {
		return fmt.Errorf("default_max_tool_roundtrips must be >= 0 (got %d)", c.DefaultMaxToolRoundtrips)
	}
	if c.DefaultMaxMessages <= 0 {
		return fmt.Errorf("default_max_messages must be > 0 (got %d)", c.DefaultMaxMessages)
	}
	if c.WarnThreshold <= 0 || c.WarnThreshold > 1 {
		return fmt.Errorf("warn_threshold must be in (0, 1] (got %v)", c.WarnThreshold)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be > 0 (got %v)", c.HTTPTimeout)
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	return nil
}

// HTTPClient returns an [http.Client] honoring HTTPTimeout, suitable for the
// providers' WithHttpClient option on non-streaming clients.
func (c Config) HTTPClient() *http.Client {
	return &http.Client{Timeout: c.HTTPTimeout}
}
