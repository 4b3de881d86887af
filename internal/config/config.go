package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix namespaces every environment variable, e.g. HTTPBRIDGE_LOG_LEVEL.
	EnvPrefix = "HTTPBRIDGE"
	// DotenvVar names the dotenv file to load before reading the environment.
	DotenvVar = EnvPrefix + "_DOTENV"
	// ConfigFileVar names an optional YAML/JSON/TOML config file.
	ConfigFileVar = EnvPrefix + "_CONFIG_FILE"

	defaultDotenv = ".env"
)

// Config holds the engine configuration loaded from files and environment variables.
type Config struct {
	AppName   string `mapstructure:"app_name" validate:"required"`
	Env       string `mapstructure:"app_env"`
	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn warning error"`
	LogOutput string `mapstructure:"log_output" validate:"oneof=stdout stderr"`

	FollowRedirects    bool          `mapstructure:"follow_redirects"`
	MaxRedirects       int           `mapstructure:"max_redirects" validate:"gte=1"`
	TCPKeepAlive       time.Duration `mapstructure:"tcp_keepalive" validate:"gte=0"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	UserAgent          string        `mapstructure:"user_agent" validate:"required"`
	TransportDebug     bool          `mapstructure:"transport_debug"`

	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period" validate:"gt=0"`
	MaxInFlight         int           `mapstructure:"max_in_flight" validate:"gte=1"`
	RequestsPerSecond   float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst               int           `mapstructure:"burst" validate:"gte=1"`

	StorageType         string `mapstructure:"storage_type" validate:"oneof=memory bbolt"`
	BBoltPath           string `mapstructure:"bbolt_path" validate:"required_if=StorageType bbolt"`
	SpoolThresholdBytes int64  `mapstructure:"spool_threshold_bytes" validate:"gt=0"`
}

// Load reads the dotenv file, the config file named by HTTPBRIDGE_CONFIG_FILE
// and HTTPBRIDGE_* environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv(ConfigFileVar))
}

// LoadFrom is Load with an explicit config file. An empty file means none.
func LoadFrom(file string) (*Config, error) {
	dotenv := os.Getenv(DotenvVar)
	if dotenv == "" {
		dotenv = defaultDotenv
	}
	// A missing dotenv file is normal.
	_ = godotenv.Load(dotenv)

	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}
	return LoadWith(v)
}

// LoadWith applies defaults and environment binding to v and decodes it.
func LoadWith(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogOutput = strings.ToLower(strings.TrimSpace(cfg.LogOutput))
	cfg.StorageType = strings.ToLower(strings.TrimSpace(cfg.StorageType))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "httpbridge")
	v.SetDefault("app_env", "production")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_output", "stderr")

	v.SetDefault("follow_redirects", true)
	v.SetDefault("max_redirects", 10)
	v.SetDefault("tcp_keepalive", "30s")
	v.SetDefault("insecure_skip_verify", false)
	v.SetDefault("user_agent", "httpbridge/1")
	v.SetDefault("transport_debug", false)

	v.SetDefault("shutdown_grace_period", "5s")
	v.SetDefault("max_in_flight", 64)
	v.SetDefault("requests_per_second", 0)
	v.SetDefault("burst", 1)

	v.SetDefault("storage_type", "memory")
	v.SetDefault("bbolt_path", "./data/spool.db")
	v.SetDefault("spool_threshold_bytes", 1<<20)
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg, err := LoadWith(viper.New())
	if err != nil {
		// Defaults always validate.
		panic(fmt.Sprintf("config defaults invalid: %v", err))
	}
	return cfg
}

var validate = validator.New()

// Validate checks field constraints and reports them by config key.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", keyFor(fe.StructField()), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

var fieldKeys = map[string]string{
	"AppName":             "app_name",
	"LogLevel":            "log_level",
	"LogOutput":           "log_output",
	"MaxRedirects":        "max_redirects",
	"TCPKeepAlive":        "tcp_keepalive",
	"UserAgent":           "user_agent",
	"ShutdownGracePeriod": "shutdown_grace_period",
	"MaxInFlight":         "max_in_flight",
	"RequestsPerSecond":   "requests_per_second",
	"Burst":               "burst",
	"StorageType":         "storage_type",
	"BBoltPath":           "bbolt_path",
	"SpoolThresholdBytes": "spool_threshold_bytes",
}

func keyFor(field string) string {
	if k, ok := fieldKeys[field]; ok {
		return k
	}
	return field
}
