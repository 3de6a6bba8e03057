package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "ADLINT"

type Config struct {
	Database struct {
		Path       string `mapstructure:"path" yaml:"path"`             // "./data/patterns.db"
		Persistent bool   `mapstructure:"persistent" yaml:"persistent"` // false = in-memory catalog only
	} `mapstructure:"database" yaml:"database"`

	Rules struct {
		Pack string `mapstructure:"pack" yaml:"pack"` // optional YAML rule pack replacing the built-in catalog
	} `mapstructure:"rules" yaml:"rules"`

	Server struct {
		Addr           string        `mapstructure:"addr" yaml:"addr"`
		AdminTokenHash string        `mapstructure:"admin_token_hash" yaml:"admin_token_hash"`
		RateLimit      float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second per client
		Burst          int           `mapstructure:"burst" yaml:"burst"`
		CacheTTL       time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
		Watch          bool          `mapstructure:"watch" yaml:"watch"`
	} `mapstructure:"server" yaml:"server"`

	Reporting struct {
		OutDir string `mapstructure:"out_dir" yaml:"out_dir"` // "./reports"
	} `mapstructure:"reporting" yaml:"reporting"`

	Logging struct {
		Format string `mapstructure:"format" yaml:"format"` // "json"|"text"
		Level  string `mapstructure:"level" yaml:"level"`   // "info"|"debug"|"warn"|"error"
	} `mapstructure:"logging" yaml:"logging"`
}

var defaults = map[string]any{
	"database.path":           "./data/patterns.db",
	"database.persistent":     true,
	"rules.pack":              "",
	"server.addr":             ":8080",
	"server.admin_token_hash": "",
	"server.rate_limit":       20.0,
	"server.burst":            40,
	"server.cache_ttl":        "5m",
	"server.watch":            false,
	"reporting.out_dir":       "./reports",
	"logging.format":          "json",
	"logging.level":           "info",
}

func DefaultConfig() Config {
	c, _ := LoadConfig("", nil)
	return c
}

// LoadConfig layers overrides > ADLINT_* environment > YAML file > defaults.
// A missing file is not an error; a malformed one is.
func LoadConfig(path string, overrides map[string]any) (Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	for k, val := range overrides {
		v.Set(k, val)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}
