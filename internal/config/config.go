package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Matching   MatchingConfig   `yaml:"matching" mapstructure:"matching"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Embedding  EmbeddingConfig  `yaml:"embedding" mapstructure:"embedding"`
	Places     PlacesConfig     `yaml:"places" mapstructure:"places"`
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	Outreach   OutreachConfig   `yaml:"outreach" mapstructure:"outreach"`
	Delivery   DeliveryConfig   `yaml:"delivery" mapstructure:"delivery"`
	Licensing  LicensingConfig  `yaml:"licensing" mapstructure:"licensing"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver           string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL      string `yaml:"database_url" mapstructure:"database_url"`
	QueryTimeoutSecs int    `yaml:"query_timeout_secs" mapstructure:"query_timeout_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MatchingConfig configures the matching engine.
type MatchingConfig struct {
	ShortlistCap      int     `yaml:"shortlist_cap" mapstructure:"shortlist_cap"`
	MinViable         int     `yaml:"min_viable" mapstructure:"min_viable"`
	MaxRadiusMiles    float64 `yaml:"max_radius_miles" mapstructure:"max_radius_miles"`
	SearchRadiusMiles float64 `yaml:"search_radius_miles" mapstructure:"search_radius_miles"`
	CandidateLimit    int     `yaml:"candidate_limit" mapstructure:"candidate_limit"`
	CategoryWeight    float64 `yaml:"category_weight" mapstructure:"category_weight"`
	DistanceWeight    float64 `yaml:"distance_weight" mapstructure:"distance_weight"`
	CapacityWeight    float64 `yaml:"capacity_weight" mapstructure:"capacity_weight"`
	AcceptWeight      float64 `yaml:"accept_weight" mapstructure:"accept_weight"`
}

// SearchConfig configures hybrid bid-card search.
type SearchConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	DefaultLimit        int     `yaml:"default_limit" mapstructure:"default_limit"`
	MaxLimit            int     `yaml:"max_limit" mapstructure:"max_limit"`
}

// EmbeddingConfig holds embedding service settings.
type EmbeddingConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Model       string  `yaml:"model" mapstructure:"model"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RPS         float64 `yaml:"rps" mapstructure:"rps"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// PlacesConfig holds business directory API settings.
type PlacesConfig struct {
	Key          string  `yaml:"key" mapstructure:"key"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	RadiusMeters float64 `yaml:"radius_meters" mapstructure:"radius_meters"`
	MaxResults   int     `yaml:"max_results" mapstructure:"max_results"`
	RPS          float64 `yaml:"rps" mapstructure:"rps"`
}

// GeocodeConfig holds census geocoder settings.
type GeocodeConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RPS         float64 `yaml:"rps" mapstructure:"rps"`
}

// OutreachConfig configures prospect discovery and seeding.
type OutreachConfig struct {
	SeedLimit         int `yaml:"seed_limit" mapstructure:"seed_limit"`
	LookupConcurrency int `yaml:"lookup_concurrency" mapstructure:"lookup_concurrency"`
}

// DeliveryConfig configures the invitation delivery worker.
type DeliveryConfig struct {
	BatchSize        int     `yaml:"batch_size" mapstructure:"batch_size"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	PollIntervalSecs int     `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	RPS              float64 `yaml:"rps" mapstructure:"rps"`
	RetryBackoffMs   int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// LicensingConfig configures state license registry syncs.
type LicensingConfig struct {
	TempDir   string `yaml:"temp_dir" mapstructure:"temp_dir"`
	CSLBURL   string `yaml:"cslb_url" mapstructure:"cslb_url"`
	FLFTPAddr string `yaml:"fl_ftp_addr" mapstructure:"fl_ftp_addr"`
	FLFTPPath string `yaml:"fl_ftp_path" mapstructure:"fl_ftp_path"`
	TXURL     string `yaml:"tx_url" mapstructure:"tx_url"`
}

// AnthropicConfig holds Anthropic API settings for the job classifier.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string  `yaml:"client_id" mapstructure:"client_id"`
	Username string  `yaml:"username" mapstructure:"username"`
	KeyPath  string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string  `yaml:"login_url" mapstructure:"login_url"`
	RPS      float64 `yaml:"rps" mapstructure:"rps"`
}

// NotionConfig holds Notion API credentials and database IDs.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	ReportDB string `yaml:"report_db" mapstructure:"report_db"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.query_timeout_secs", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("matching.shortlist_cap", 25)
	v.SetDefault("matching.min_viable", 6)
	v.SetDefault("matching.max_radius_miles", 75.0)
	v.SetDefault("matching.search_radius_miles", 50.0)
	v.SetDefault("matching.candidate_limit", 500)
	v.SetDefault("matching.category_weight", 0.55)
	v.SetDefault("matching.distance_weight", 0.25)
	v.SetDefault("matching.capacity_weight", 0.10)
	v.SetDefault("matching.accept_weight", 0.10)
	v.SetDefault("search.similarity_threshold", 0.75)
	v.SetDefault("search.default_limit", 20)
	v.SetDefault("search.max_limit", 100)
	v.SetDefault("embedding.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("embedding.model", "text-embedding-004")
	v.SetDefault("embedding.timeout_secs", 30)
	v.SetDefault("embedding.rps", 5.0)
	v.SetDefault("embedding.concurrency", 4)
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("places.radius_meters", 40000.0)
	v.SetDefault("places.max_results", 20)
	v.SetDefault("places.rps", 5.0)
	v.SetDefault("geocode.base_url", "https://geocoding.geo.census.gov/geocoder")
	v.SetDefault("geocode.timeout_secs", 30)
	v.SetDefault("geocode.rps", 2.0)
	v.SetDefault("outreach.seed_limit", 10)
	v.SetDefault("outreach.lookup_concurrency", 4)
	v.SetDefault("delivery.batch_size", 25)
	v.SetDefault("delivery.max_attempts", 3)
	v.SetDefault("delivery.poll_interval_secs", 30)
	v.SetDefault("delivery.rps", 1.0)
	v.SetDefault("delivery.retry_backoff_ms", 500)
	v.SetDefault("delivery.breaker_threshold", 5)
	v.SetDefault("delivery.breaker_reset_secs", 60)
	v.SetDefault("licensing.temp_dir", "/tmp/match-licensing")
	v.SetDefault("licensing.cslb_url", "https://www.cslb.ca.gov/OnlineServices/DataPortal/ListByClassification.zip")
	v.SetDefault("licensing.fl_ftp_addr", "ftp.myfloridalicense.com:21")
	v.SetDefault("licensing.fl_ftp_path", "/pub/llweb/cilb.csv")
	v.SetDefault("licensing.tx_url", "https://www.tdlr.texas.gov/LicenseSearch/licfile.xlsx")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rps", 5)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable for the given run mode.
// Every problem is reported, not just the first.
func (c *Config) Validate(mode string) error {
	var problems []string

	needStore := func() {
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	switch mode {
	case "serve":
		needStore()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0")
		}
	case "match":
		needStore()
		if c.Matching.ShortlistCap < 1 || c.Matching.ShortlistCap > 100 {
			problems = append(problems, "matching.shortlist_cap must be between 1 and 100")
		}
		if c.Matching.MinViable < 0 {
			problems = append(problems, "matching.min_viable must be >= 0")
		}
		if c.Matching.MaxRadiusMiles <= 0 {
			problems = append(problems, "matching.max_radius_miles must be > 0")
		}
	case "search", "embed":
		needStore()
		if c.Embedding.Key == "" {
			problems = append(problems, "embedding.key is required")
		}
	case "escalate":
		needStore()
		if c.Places.Key == "" {
			problems = append(problems, "places.key is required")
		}
	case "deliver", "dlq", "licenses", "migrate", "import":
		needStore()
	case "markets":
		needStore()
		if c.Store.Driver != "postgres" {
			problems = append(problems, "markets requires store.driver postgres")
		}
	case "crm":
		needStore()
		if c.Salesforce.ClientID == "" {
			problems = append(problems, "salesforce.client_id is required")
		}
		if c.Salesforce.Username == "" {
			problems = append(problems, "salesforce.username is required")
		}
		if c.Salesforce.KeyPath == "" {
			problems = append(problems, "salesforce.key_path is required")
		}
	case "report":
		needStore()
		if c.Notion.Token == "" {
			problems = append(problems, "notion.token is required")
		}
		if c.Notion.ReportDB == "" {
			problems = append(problems, "notion.report_db is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
