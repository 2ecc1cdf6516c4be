// Package config loads engine configuration from YAML with secrets taken
// from the environment (.env files included).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/abelbrown/viralengine/internal/logging"
	"github.com/abelbrown/viralengine/internal/model"
)

// Config is the persistent engine configuration
type Config struct {
	Database   DatabaseConfig      `yaml:"database"`
	Log        LogConfig           `yaml:"log"`
	Ingest     IngestConfig        `yaml:"ingest"`
	Spam       SpamConfig          `yaml:"spam"`
	Clustering ClusteringConfig    `yaml:"clustering"`
	Scoring    ScoringConfig       `yaml:"scoring"`
	Gates      GatesConfig         `yaml:"gates"`
	Search     SearchConfig        `yaml:"search"`
	Builder    BuilderConfig       `yaml:"builder"`
	Client     model.ClientContext `yaml:"client"`
	Generator  GeneratorConfig     `yaml:"generator"`
	Sources    SourcesConfig       `yaml:"sources"`
}

// DatabaseConfig holds the SQLite location
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig mirrors logging.Options
type LogConfig struct {
	Dir    string `yaml:"dir"`
	Level  string `yaml:"level"`
	Stderr bool   `yaml:"stderr"`
}

// IngestConfig controls the ingestion pipeline
type IngestConfig struct {
	CacheWindow   time.Duration `yaml:"cache_window"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	Industry      string        `yaml:"industry"`
}

// SpamConfig holds the spam filter tables
type SpamConfig struct {
	Blocklist          []string `yaml:"blocklist"`
	CapsMinLength      int      `yaml:"caps_min_length"`
	SpecialCharDensity float64  `yaml:"special_char_density"`
}

// ClusteringConfig controls signal grouping
type ClusteringConfig struct {
	Window            time.Duration `yaml:"window"`
	MaxSignals        int           `yaml:"max_signals"`
	StandaloneUpvotes int           `yaml:"standalone_upvotes"`
	Stopwords         []string      `yaml:"stopwords"`
}

// ScoringConfig holds the viral scoring tables
type ScoringConfig struct {
	IndustryKeywords map[string][]string `yaml:"industry_keywords"`
	Seasonality      float64             `yaml:"seasonality"`
}

// GatesConfig holds the sentiment lexicon used by the intent gate
type GatesConfig struct {
	NegativeTerms []string `yaml:"negative_terms"`
}

// SearchConfig holds search-data provider settings
type SearchConfig struct {
	DataForSEOLogin    string        `yaml:"dataforseo_login"`
	DataForSEOPassword string        `yaml:"dataforseo_password"`
	LocationCode       int           `yaml:"location_code"`
	GSCAccessToken     string        `yaml:"gsc_access_token"`
	DateRangeDays      int           `yaml:"date_range_days"`
	CacheTTL           time.Duration `yaml:"cache_ttl"`
	RedisURL           string        `yaml:"redis_url"`
	RequestsPerSecond  float64       `yaml:"requests_per_second"`
	Timeout            time.Duration `yaml:"timeout"`
}

// BuilderConfig controls opportunity building
type BuilderConfig struct {
	BatchSize    int             `yaml:"batch_size"`
	InsertChunk  int             `yaml:"insert_chunk"`
	Limit        int             `yaml:"limit"`
	EnforceGates bool            `yaml:"enforce_gates"`
	Channels     []model.Channel `yaml:"channels"`
}

// GeneratorConfig selects the generative provider
type GeneratorConfig struct {
	Preferred string        `yaml:"preferred"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxTokens int           `yaml:"max_tokens"`
	Claude    ModelSettings `yaml:"claude"`
	OpenAI    ModelSettings `yaml:"openai"`
	Gemini    ModelSettings `yaml:"gemini"`
}

// ModelSettings for a single AI provider
type ModelSettings struct {
	Enabled  bool   `yaml:"enabled"`
	APIKey   string `yaml:"-"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Model    string `yaml:"model,omitempty"`
}

// SourcesConfig lists the signal sources to ingest from
type SourcesConfig struct {
	Reddit     RedditConfig     `yaml:"reddit"`
	HackerNews HackerNewsConfig `yaml:"hackernews"`
	Feeds      []FeedConfig     `yaml:"feeds"`
	UserAgent  string           `yaml:"user_agent"`
}

// RedditConfig lists subreddits
type RedditConfig struct {
	Communities []string `yaml:"communities"`
	Sort        string   `yaml:"sort"`
	Limit       int      `yaml:"limit"`
}

// HackerNewsConfig enables the Hacker News search source
type HackerNewsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Query   string `yaml:"query"`
	Limit   int    `yaml:"limit"`
}

// FeedConfig is one RSS/Atom source
type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Path: defaultDBPath()},
		Log:      LogConfig{Level: "info"},
		Ingest: IngestConfig{
			CacheWindow:   6 * time.Hour,
			FetchTimeout:  30 * time.Second,
			MaxConcurrent: 5,
			Industry:      "marketing",
		},
		Spam: SpamConfig{
			Blocklist: []string{
				"buy now", "click here", "free money", "giveaway", "promo code",
				"limited time offer", "work from home", "onlyfans", "crypto airdrop",
				"dm me", "make money fast",
			},
			CapsMinLength:      20,
			SpecialCharDensity: 0.15,
		},
		Clustering: ClusteringConfig{
			Window:            7 * 24 * time.Hour,
			MaxSignals:        200,
			StandaloneUpvotes: 100,
			Stopwords:         DefaultStopwords(),
		},
		Scoring: ScoringConfig{
			IndustryKeywords: map[string][]string{
				"marketing": {"marketing", "brand", "advertising", "campaign", "content", "audience", "funnel", "conversion"},
				"saas":      {"saas", "software", "startup", "subscription", "churn", "onboarding", "pricing"},
				"ecommerce": {"ecommerce", "shopify", "store", "checkout", "cart", "retail", "product"},
				"finance":   {"finance", "investing", "budget", "bank", "credit", "loan", "savings"},
				"health":    {"health", "fitness", "nutrition", "wellness", "sleep", "diet"},
			},
			Seasonality: 5,
		},
		Gates: GatesConfig{
			NegativeTerms: []string{
				"scam", "fraud", "lawsuit", "terrible", "awful", "worst", "hate",
				"boycott", "scandal", "rip off", "ripoff", "broken", "failing", "dead",
			},
		},
		Search: SearchConfig{
			LocationCode:      2840,
			DateRangeDays:     28,
			CacheTTL:          24 * time.Hour,
			RequestsPerSecond: 2,
			Timeout:           20 * time.Second,
		},
		Builder: BuilderConfig{
			BatchSize:    5,
			InsertChunk:  50,
			Limit:        20,
			EnforceGates: true,
			Channels:     []model.Channel{model.ChannelBlog, model.ChannelVideo, model.ChannelSocial},
		},
		Generator: GeneratorConfig{
			Preferred: "claude",
			Timeout:   90 * time.Second,
			MaxTokens: 2048,
			Claude:    ModelSettings{Enabled: true, Model: "claude-sonnet-4-5-20250929"},
			OpenAI:    ModelSettings{Model: "gpt-4o-mini"},
			Gemini:    ModelSettings{Model: "gemini-2.5-flash"},
		},
		Sources: SourcesConfig{
			Reddit: RedditConfig{
				Communities: []string{"marketing", "SEO", "content_marketing", "socialmedia"},
				Sort:        "hot",
				Limit:       50,
			},
			UserAgent: "viralengine/0.1",
		},
	}
}

// DefaultStopwords is the stopword set used for keyword extraction.
func DefaultStopwords() []string {
	return []string{
		"the", "and", "for", "are", "but", "not", "you", "all", "any", "can",
		"had", "her", "was", "one", "our", "out", "has", "have", "his", "how",
		"its", "may", "new", "now", "old", "see", "two", "who", "did", "get",
		"got", "let", "say", "she", "too", "use", "way", "why", "with", "this",
		"that", "from", "they", "what", "when", "will", "your", "about", "just",
		"into", "than", "then", "them", "there", "their", "these", "those",
		"been", "being", "were", "which", "while", "would", "could", "should",
		"does", "doing", "here", "more", "most", "some", "such", "only", "also",
		"very", "over", "after", "before", "because", "where", "other", "anyone",
		"really", "need", "help", "dont", "cant", "im", "ive", "youre",
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "viralengine.db"
	}
	return filepath.Join(home, ".viralengine", "viralengine.db")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	if p := os.Getenv("VIRAL_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".viralengine", "config.yaml")
}

// Load loads .env files, reads the YAML config (defaults when missing) and
// applies environment overrides.
func Load() (*Config, error) {
	LoadEnvFiles(".env", ".env.local")
	return LoadFile(ConfigPath())
}

// LoadFile reads config from path, or returns defaults when it does not exist.
// Environment overrides are applied either way.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.AutoPopulateFromEnv()
	return cfg, cfg.Validate()
}

// LoadEnvFiles overlays any of the named env files that exist.
func LoadEnvFiles(files ...string) {
	var loaded []string
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			logging.Warn("failed to load env file", "file", file, "err", err)
			continue
		}
		loaded = append(loaded, file)
	}
	if len(loaded) > 0 {
		logging.Debug("loaded env files", "files", strings.Join(loaded, ", "))
	}
}

// AutoPopulateFromEnv fills in secrets from environment variables
func (c *Config) AutoPopulateFromEnv() {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Generator.Claude.APIKey = key
		c.Generator.Claude.Enabled = true
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Generator.OpenAI.APIKey = key
		c.Generator.OpenAI.Enabled = true
	}
	for _, name := range []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			c.Generator.Gemini.APIKey = key
			c.Generator.Gemini.Enabled = true
		}
	}
	if v := os.Getenv("DATAFORSEO_LOGIN"); v != "" {
		c.Search.DataForSEOLogin = v
	}
	if v := os.Getenv("DATAFORSEO_PASSWORD"); v != "" {
		c.Search.DataForSEOPassword = v
	}
	if v := os.Getenv("GSC_ACCESS_TOKEN"); v != "" {
		c.Search.GSCAccessToken = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Search.RedisURL = v
	}
	if v := os.Getenv("VIRAL_DB"); v != "" {
		c.Database.Path = v
	}
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Ingest.CacheWindow <= 0 {
		problems = append(problems, "ingest.cache_window must be positive")
	}
	if c.Ingest.MaxConcurrent <= 0 {
		problems = append(problems, "ingest.max_concurrent must be positive")
	}
	if c.Spam.SpecialCharDensity <= 0 || c.Spam.SpecialCharDensity >= 1 {
		problems = append(problems, "spam.special_char_density must be in (0,1)")
	}
	if c.Clustering.MaxSignals <= 0 {
		problems = append(problems, "clustering.max_signals must be positive")
	}
	if c.Builder.BatchSize <= 0 || c.Builder.InsertChunk <= 0 {
		problems = append(problems, "builder.batch_size and builder.insert_chunk must be positive")
	}
	for _, ch := range c.Builder.Channels {
		if !ch.Valid() {
			problems = append(problems, fmt.Sprintf("builder.channels: unknown channel %q", ch))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IndustryKeywords returns the keyword list for an industry. An industry
// without a configured list matches on its own name.
func (c *Config) IndustryKeywords(industry string) []string {
	if kws, ok := c.Scoring.IndustryKeywords[strings.ToLower(industry)]; ok {
		return kws
	}
	return []string{strings.ToLower(industry)}
}

// EnabledGenerators returns providers that are enabled and have API keys
func (c *Config) EnabledGenerators() []string {
	var names []string
	if c.Generator.Claude.Enabled && c.Generator.Claude.APIKey != "" {
		names = append(names, "claude")
	}
	if c.Generator.OpenAI.Enabled && c.Generator.OpenAI.APIKey != "" {
		names = append(names, "openai")
	}
	if c.Generator.Gemini.Enabled && c.Generator.Gemini.APIKey != "" {
		names = append(names, "gemini")
	}
	return names
}
