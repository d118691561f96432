package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Matching MatchingConfig `yaml:"matching" mapstructure:"matching"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Scorer   ScorerConfig   `yaml:"scorer" mapstructure:"scorer"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`

	RulesFile string `yaml:"rules_file" mapstructure:"rules_file"`

	// Rules is resolved from RulesFile (or defaults) by Load.
	Rules Rules `yaml:"-" mapstructure:"-"`
}

// MatchingConfig holds every threshold the tiered matcher compares against.
// Centralized so tuning happens in one place.
type MatchingConfig struct {
	ExactMatchThreshold      float64 `yaml:"exact_match_threshold" mapstructure:"exact_match_threshold"`
	NormalizedMatchThreshold float64 `yaml:"normalized_match_threshold" mapstructure:"normalized_match_threshold"`
	FuzzyMatchThreshold      float64 `yaml:"fuzzy_match_threshold" mapstructure:"fuzzy_match_threshold"`
	LexicalFuzzyThreshold    float64 `yaml:"lexical_fuzzy_threshold" mapstructure:"lexical_fuzzy_threshold"`
	AutoAcceptThreshold      float64 `yaml:"auto_accept_threshold" mapstructure:"auto_accept_threshold"`
	CrossFamilyPenalty       float64 `yaml:"cross_family_penalty" mapstructure:"cross_family_penalty"`
}

// EffectiveFuzzyThreshold returns the Tier 3 threshold for the given scorer
// provider; the pure-lexical fallback uses a looser bar.
func (m MatchingConfig) EffectiveFuzzyThreshold(provider string) float64 {
	if provider == "lexical" || provider == "" {
		return m.LexicalFuzzyThreshold
	}
	return m.FuzzyMatchThreshold
}

// PipelineConfig configures inheritance pipeline behavior.
type PipelineConfig struct {
	AllowUnmatched       bool `yaml:"allow_unmatched" mapstructure:"allow_unmatched"`
	CustomizationBonusAt int  `yaml:"customization_bonus_count" mapstructure:"customization_bonus_count"`
}

// ScorerConfig selects and configures the Tier 3 similarity scorer.
type ScorerConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // lexical | embedding | claude

	OpenAIKey      string `yaml:"openai_key" mapstructure:"openai_key"`
	OpenAIBaseURL  string `yaml:"openai_base_url" mapstructure:"openai_base_url"`
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`

	AnthropicKey   string `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	AnthropicModel string `yaml:"anthropic_model" mapstructure:"anthropic_model"`

	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentEntries int `yaml:"max_concurrent_entries" mapstructure:"max_concurrent_entries"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite | postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// FetchConfig configures remote input fetching. FTP credentials are empty
// for anonymous drops; set them (typically via PRICEBOOK_FETCH_FTP_PASSWORD)
// for credentialed distributor servers.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	FTPUser     string `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword string `yaml:"ftp_password" mapstructure:"ftp_password"`
}

// ServerConfig configures the inspection API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment, then resolves the
// inheritance rule tables.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRICEBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("matching.exact_match_threshold", 0.95)
	v.SetDefault("matching.normalized_match_threshold", 0.85)
	v.SetDefault("matching.fuzzy_match_threshold", 0.7)
	v.SetDefault("matching.lexical_fuzzy_threshold", 0.6)
	v.SetDefault("matching.auto_accept_threshold", 0.9)
	v.SetDefault("matching.cross_family_penalty", 0.8)
	v.SetDefault("pipeline.allow_unmatched", false)
	v.SetDefault("pipeline.customization_bonus_count", 5)
	v.SetDefault("scorer.provider", "lexical")
	v.SetDefault("scorer.embedding_model", "text-embedding-3-small")
	v.SetDefault("scorer.anthropic_model", "claude-haiku-4-5-20251001")
	v.SetDefault("scorer.timeout_secs", 20)
	v.SetDefault("scorer.requests_per_sec", 5)
	v.SetDefault("batch.max_concurrent_entries", 8)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "pricebook.db")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.ftp_user", "")
	v.SetDefault("fetch.ftp_password", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	rules, err := LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	cfg.Rules = rules

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations that would make the tier escalation
// meaningless: every threshold must be in [0,1] and the tiers must be
// ordered exact ≥ normalized ≥ fuzzy.
func (c *Config) Validate() error {
	m := c.Matching
	for name, t := range map[string]float64{
		"exact_match_threshold":      m.ExactMatchThreshold,
		"normalized_match_threshold": m.NormalizedMatchThreshold,
		"fuzzy_match_threshold":      m.FuzzyMatchThreshold,
		"lexical_fuzzy_threshold":    m.LexicalFuzzyThreshold,
		"auto_accept_threshold":      m.AutoAcceptThreshold,
	} {
		if t < 0 || t > 1 {
			return eris.Errorf("config: matching.%s %.3f outside [0,1]", name, t)
		}
	}
	if m.ExactMatchThreshold < m.NormalizedMatchThreshold {
		return eris.Errorf("config: exact_match_threshold %.3f < normalized_match_threshold %.3f", m.ExactMatchThreshold, m.NormalizedMatchThreshold)
	}
	if m.NormalizedMatchThreshold < m.FuzzyMatchThreshold {
		return eris.Errorf("config: normalized_match_threshold %.3f < fuzzy_match_threshold %.3f", m.NormalizedMatchThreshold, m.FuzzyMatchThreshold)
	}
	if m.CrossFamilyPenalty <= 0 || m.CrossFamilyPenalty > 1 {
		return eris.Errorf("config: matching.cross_family_penalty %.3f outside (0,1]", m.CrossFamilyPenalty)
	}
	if c.Batch.MaxConcurrentEntries < 1 {
		return eris.New("config: batch.max_concurrent_entries must be >= 1")
	}
	return nil
}

// BrandRules holds brand-specific inheritance rules.
type BrandRules struct {
	DrivetrainName   string   `yaml:"drivetrain_name"`
	EngineSeries     string   `yaml:"engine_series,omitempty"`
	StandardFeatures []string `yaml:"standard_features,omitempty"`
}

// PriceTier grants a feature set to entries priced at or above its floor.
type PriceTier struct {
	MinPrice decimal.Decimal `yaml:"min_price"`
	Features []string        `yaml:"features"`
}

// Rules holds the inheritance rule tables consumed by the specification
// inheritance stage.
type Rules struct {
	Brands       map[string]BrandRules `yaml:"brands"`
	YearFeatures map[int][]string      `yaml:"year_features"`
	PriceTiers   []PriceTier           `yaml:"price_tiers"`
}

// LoadRules reads the rule tables from a YAML file, or returns the built-in
// defaults when no path is configured.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, eris.Wrapf(err, "config: read rules file %s", path)
	}
	var rules Rules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return Rules{}, eris.Wrap(err, "config: unmarshal rules")
	}
	return rules, nil
}

// DefaultRules returns the built-in inheritance rule tables.
func DefaultRules() Rules {
	return Rules{
		Brands: map[string]BrandRules{
			"SKI-DOO": {
				DrivetrainName:   "REV Gen5",
				EngineSeries:     "Rotax",
				StandardFeatures: []string{"pDrive clutch"},
			},
			"LYNX": {
				DrivetrainName:   "Radien2",
				EngineSeries:     "Rotax",
				StandardFeatures: []string{"PPS rear suspension"},
			},
		},
		YearFeatures: map[int][]string{
			2024: {"7.2 in. digital display"},
			2025: {"10.25 in. touchscreen display", "BRP Connect"},
			2026: {"10.25 in. touchscreen display", "BRP Connect", "keyless start"},
		},
		PriceTiers: []PriceTier{
			{MinPrice: decimal.NewFromInt(11000), Features: []string{"heated grips"}},
			{MinPrice: decimal.NewFromInt(14000), Features: []string{"electric starter", "push-button reverse"}},
			{MinPrice: decimal.NewFromInt(17500), Features: []string{"electric reverse", "premium gauge"}},
		},
	}
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
