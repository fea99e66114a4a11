package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// PROPERTY_FINDER_STORE_DRIVER.
const EnvPrefix = "PROPERTY_FINDER"

// DefaultURLTemplate is the search page used when no --url is given.
const DefaultURLTemplate = "https://www.airbnb.com/s/{location}/homes?query={query}"

// DefaultSQLitePath is the store file used when no DSN is configured.
const DefaultSQLitePath = "./output/property_finder.db"

// Config holds all application configuration.
type Config struct {
	Debug    bool `mapstructure:"debug"`
	Quiet    bool `mapstructure:"quiet"`
	JSONLogs bool `mapstructure:"json_logs"`

	Search  SearchConfig  `mapstructure:"search"`
	Browser BrowserConfig `mapstructure:"browser"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Model   ModelConfig   `mapstructure:"model"`
	Store   StoreConfig   `mapstructure:"store"`
	Scoring ScoringConfig `mapstructure:"scoring"`
	Output  OutputConfig  `mapstructure:"output"`
	Server  ServerConfig  `mapstructure:"server"`
}

type SearchConfig struct {
	URLTemplate string        `mapstructure:"url_template" validate:"required"`
	SlowScrape  time.Duration `mapstructure:"slow_scrape" validate:"gt=0"`
	ThinContent int           `mapstructure:"thin_content" validate:"gt=0"`
}

// BrowserConfig drives the chromedp session that renders search pages.
type BrowserConfig struct {
	RemoteURL         string        `mapstructure:"remote_url"`
	ChromePath        string        `mapstructure:"chrome_path"`
	Headless          bool          `mapstructure:"headless"`
	UserAgent         string        `mapstructure:"user_agent"`
	PageTimeout       time.Duration `mapstructure:"page_timeout" validate:"gt=0"`
	RenderDelay       time.Duration `mapstructure:"render_delay" validate:"gte=0"`
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"gte=1"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
}

// FetchConfig drives the static fetcher used for description enrichment.
type FetchConfig struct {
	Enrich            bool          `mapstructure:"enrich"`
	EnrichHosts       []string      `mapstructure:"enrich_hosts"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"gte=1"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
}

// ModelConfig selects the optional model-based extraction strategy. An
// empty provider leaves it out of the cascade.
type ModelConfig struct {
	Provider  string        `mapstructure:"provider" validate:"omitempty,oneof=anthropic openai"`
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url" validate:"omitempty,url"`
	Name      string        `mapstructure:"name"`
	MaxTokens int           `mapstructure:"max_tokens" validate:"gt=0"`
	MaxChars  int           `mapstructure:"max_chars" validate:"gt=0"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// StoreConfig describes the SQL store for runs, results and events.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DSN     string `mapstructure:"dsn"`

	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     string `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDB       string `mapstructure:"postgres_db"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode"`
}

type ScoringConfig struct {
	Profile     string  `mapstructure:"profile" validate:"required"`
	PriceBounds bool    `mapstructure:"price_bounds"`
	MinPrice    float64 `mapstructure:"min_price" validate:"gte=0"`
	MaxPrice    float64 `mapstructure:"max_price" validate:"gtfield=MinPrice"`
}

type OutputConfig struct {
	JSONPath string `mapstructure:"json_path" validate:"required"`
	YAMLPath string `mapstructure:"yaml_path"`
	CSVPath  string `mapstructure:"csv_path"`
	Insights bool   `mapstructure:"insights"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
	Mode string `mapstructure:"mode" validate:"oneof=debug release test"`
}

// Load reads .env, an optional property-finder.yaml and PROPERTY_FINDER_*
// environment variables into a validated Config. v may carry flag bindings
// and an explicit "config" file path; nil uses a fresh viper instance.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("property-finder")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = providerKey(cfg.Model.Provider)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-field rules.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Model.Provider != "" && cfg.Model.APIKey == "" {
		return fmt.Errorf("invalid configuration: model provider %q needs an API key (set %s_MODEL_API_KEY)",
			cfg.Model.Provider, EnvPrefix)
	}
	return nil
}

// DSN returns the store connection string. Without an explicit DSN, sqlite
// uses DefaultSQLitePath and postgres is assembled from the connection fields.
func (c *Config) DSN() string {
	s := c.Store
	if s.DSN != "" {
		return s.DSN
	}
	if s.Driver != "postgres" {
		return DefaultSQLitePath
	}
	return "host=" + s.PostgresHost +
		" port=" + s.PostgresPort +
		" user=" + s.PostgresUser +
		" password=" + s.PostgresPassword +
		" dbname=" + s.PostgresDB +
		" sslmode=" + s.PostgresSSLMode
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("quiet", false)
	v.SetDefault("json_logs", false)

	v.SetDefault("search.url_template", DefaultURLTemplate)
	v.SetDefault("search.slow_scrape", "8s")
	v.SetDefault("search.thin_content", 500)

	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.chrome_path", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.page_timeout", "90s")
	v.SetDefault("browser.render_delay", "3s")
	v.SetDefault("browser.max_attempts", 3)
	v.SetDefault("browser.requests_per_second", 1.0)

	v.SetDefault("fetch.enrich", true)
	v.SetDefault("fetch.enrich_hosts", []string{})
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.max_attempts", 2)
	v.SetDefault("fetch.requests_per_second", 2.0)

	v.SetDefault("model.provider", "")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.name", "")
	v.SetDefault("model.max_tokens", 8192)
	v.SetDefault("model.max_chars", 100000)
	v.SetDefault("model.timeout", "120s")

	v.SetDefault("store.enabled", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.postgres_host", "localhost")
	v.SetDefault("store.postgres_port", "5432")
	v.SetDefault("store.postgres_user", "finder")
	v.SetDefault("store.postgres_password", "")
	v.SetDefault("store.postgres_db", "property_finder")
	v.SetDefault("store.postgres_sslmode", "disable")

	v.SetDefault("scoring.profile", "property")
	v.SetDefault("scoring.price_bounds", true)
	v.SetDefault("scoring.min_price", 5.0)
	v.SetDefault("scoring.max_price", 2000.0)

	v.SetDefault("output.json_path", "results.json")
	v.SetDefault("output.yaml_path", "")
	v.SetDefault("output.csv_path", "")
	v.SetDefault("output.insights", false)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
}

// bindLegacyEnv keeps the unprefixed variables existing deployments set.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("browser.chrome_path", EnvPrefix+"_BROWSER_CHROME_PATH", "CHROME_BIN")
	_ = v.BindEnv("store.postgres_host", EnvPrefix+"_STORE_POSTGRES_HOST", "POSTGRES_HOST")
	_ = v.BindEnv("store.postgres_port", EnvPrefix+"_STORE_POSTGRES_PORT", "POSTGRES_PORT")
	_ = v.BindEnv("store.postgres_user", EnvPrefix+"_STORE_POSTGRES_USER", "POSTGRES_USER")
	_ = v.BindEnv("store.postgres_password", EnvPrefix+"_STORE_POSTGRES_PASSWORD", "POSTGRES_PASSWORD")
	_ = v.BindEnv("store.postgres_db", EnvPrefix+"_STORE_POSTGRES_DB", "POSTGRES_DB")
	_ = v.BindEnv("store.postgres_sslmode", EnvPrefix+"_STORE_POSTGRES_SSLMODE", "POSTGRES_SSLMODE")
}

func providerKey(provider string) string {
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

// loadDotEnv loads path into the process environment. A missing file is
// fine; a malformed one is not.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
