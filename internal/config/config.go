package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/gaia-mentor/internal/httpapi"
	"github.com/danielpatrickdp/gaia-mentor/internal/llm"
	"github.com/danielpatrickdp/gaia-mentor/internal/policy"
	"github.com/danielpatrickdp/gaia-mentor/internal/retrieval"
	"github.com/danielpatrickdp/gaia-mentor/internal/signals"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// #region sections

// Config is the full service configuration. Values come from defaults, then
// the YAML file, then GAIA_* environment variables.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Routing    RoutingConfig    `yaml:"routing"`
	Personas   PersonasConfig   `yaml:"personas"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	LLM        LLMConfig        `yaml:"llm"`
	Search     SearchConfig     `yaml:"search"`
	Codec      CodecConfig      `yaml:"codec"`
	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"GAIA_SERVER_ADDR"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"GAIA_CORS_ORIGINS" envSeparator:","`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"GAIA_SHUTDOWN_TIMEOUT"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"GAIA_MAX_BODY_BYTES"`
}

type StoreConfig struct {
	Path string `yaml:"path" env:"GAIA_DB"`
}

type RoutingConfig struct {
	SuggestThreshold    float64       `yaml:"suggest_threshold" env:"GAIA_SUGGEST_THRESHOLD"`
	AutoSwitchThreshold float64       `yaml:"auto_switch_threshold" env:"GAIA_AUTO_SWITCH_THRESHOLD"`
	IntentFloor         float64       `yaml:"intent_floor" env:"GAIA_INTENT_FLOOR"`
	PersistenceN        int           `yaml:"persistence_n" env:"GAIA_PERSISTENCE_N"`
	WindowM             int           `yaml:"window_m" env:"GAIA_WINDOW_M"`
	Cooldown            time.Duration `yaml:"cooldown" env:"GAIA_COOLDOWN"`
	AutoSwitchEnabled   bool          `yaml:"auto_switch_enabled" env:"GAIA_AUTO_SWITCH"`
	PendingMode         string        `yaml:"pending_mode" env:"GAIA_PENDING_MODE"`
}

type PersonasConfig struct {
	Registry string `yaml:"registry" env:"GAIA_PERSONAS"` // empty: built-in catalog
}

type ClassifierConfig struct {
	Kind    string        `yaml:"kind" env:"GAIA_CLASSIFIER"` // keyword | codec
	Timeout time.Duration `yaml:"timeout" env:"GAIA_CLASSIFIER_TIMEOUT"`
}

type EmbeddingConfig struct {
	Kind  string `yaml:"kind" env:"GAIA_EMBEDDING"` // none | genai | codec
	Model string `yaml:"model" env:"GAIA_EMBEDDING_MODEL"`
}

type LLMConfig struct {
	Provider        string `yaml:"provider" env:"GAIA_LLM_PROVIDER"` // none | genai | anthropic
	Model           string `yaml:"model" env:"GAIA_LLM_MODEL"`
	MaxTokens       int64  `yaml:"max_tokens" env:"GAIA_LLM_MAX_TOKENS"`
	GeminiAPIKey    string `yaml:"-" env:"GEMINI_API_KEY"`
	AnthropicAPIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"`
}

type SearchConfig struct {
	CorpusPath  string `yaml:"corpus_path" env:"GAIA_CORPUS"`
	UseCodec    bool   `yaml:"use_codec" env:"GAIA_SEARCH_CODEC"`
	TopK        int    `yaml:"top_k" env:"GAIA_SEARCH_TOP_K"`
	MaxDistance int    `yaml:"max_distance" env:"GAIA_SEARCH_MAX_DISTANCE"`
}

type CodecConfig struct {
	Addr    string        `yaml:"addr" env:"CODEC_ADDR"`
	Timeout time.Duration `yaml:"timeout" env:"CODEC_TIMEOUT"`
}

type AuthConfig struct {
	Disabled bool   `yaml:"disabled" env:"GAIA_AUTH_DISABLED"`
	Domain   string `yaml:"domain" env:"AUTH0_DOMAIN"`
	Audience string `yaml:"audience" env:"AUTH0_AUDIENCE"`
	DevUser  string `yaml:"dev_user" env:"GAIA_DEV_USER"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"GAIA_LOG_LEVEL"`
	Format string `yaml:"format" env:"GAIA_LOG_FORMAT"` // json | console
}

// #endregion sections

// #region defaults

// Default returns the built-in configuration.
func Default() Config {
	pol := policy.DefaultConfig()
	srv := httpapi.DefaultConfig()
	ret := retrieval.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			CORSOrigins:     srv.CORSOrigins,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    srv.MaxBodyBytes,
		},
		Store: StoreConfig{Path: "gaia.db"},
		Routing: RoutingConfig{
			SuggestThreshold:    pol.SuggestThreshold,
			AutoSwitchThreshold: pol.AutoSwitchThreshold,
			IntentFloor:         pol.IntentFloor,
			PersistenceN:        pol.PersistenceN,
			WindowM:             pol.WindowM,
			Cooldown:            pol.CooldownDuration,
			AutoSwitchEnabled:   pol.AutoSwitchEnabled,
			PendingMode:         string(pol.PendingMode),
		},
		Classifier: ClassifierConfig{Kind: "keyword", Timeout: signals.DefaultExtractorConfig().Timeout},
		Embedding:  EmbeddingConfig{Kind: "none", Model: llm.DefaultConfig().EmbeddingModel},
		LLM:        LLMConfig{Provider: "none", MaxTokens: llm.DefaultConfig().MaxTokens},
		Search:     SearchConfig{CorpusPath: "data/corpus.json", TopK: ret.TopK, MaxDistance: ret.MaxDistance},
		Codec:      CodecConfig{Addr: "localhost:50051", Timeout: 5 * time.Second},
		Auth:       AuthConfig{DevUser: "dev-user"},
		Log:        LogConfig{Level: "info", Format: "json"},
	}
}

// #endregion defaults

// #region load

// Load reads path (optional; a missing file keeps defaults), applies
// environment overrides and validates.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read is Load without validation, for offline tools that only need the
// store and routing sections.
func Read(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("env overrides: %w", err)
	}
	return cfg, nil
}

// #endregion load

// #region validate

// Validate checks cross-field constraints. Errors are fatal at startup.
func (c Config) Validate() error {
	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("%w: routing: %v", ErrInvalid, err)
	}
	var problems []string
	if c.Store.Path == "" {
		problems = append(problems, "store.path is empty")
	}
	if c.Server.Addr == "" {
		problems = append(problems, "server.addr is empty")
	}
	if !oneOf(c.Classifier.Kind, "keyword", "codec") {
		problems = append(problems, fmt.Sprintf("classifier.kind %q not keyword|codec", c.Classifier.Kind))
	}
	if !oneOf(c.Embedding.Kind, "none", "genai", "codec") {
		problems = append(problems, fmt.Sprintf("embedding.kind %q not none|genai|codec", c.Embedding.Kind))
	}
	if c.Embedding.Kind == "genai" && c.LLM.GeminiAPIKey == "" {
		problems = append(problems, "embedding.kind genai needs GEMINI_API_KEY")
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "none", "":
	case "genai", "gemini":
		if c.LLM.GeminiAPIKey == "" {
			problems = append(problems, "llm.provider genai needs GEMINI_API_KEY")
		}
	case "anthropic", "claude":
		if c.LLM.AnthropicAPIKey == "" {
			problems = append(problems, "llm.provider anthropic needs ANTHROPIC_API_KEY")
		}
	default:
		problems = append(problems, fmt.Sprintf("llm.provider %q unknown", c.LLM.Provider))
	}
	if (c.Classifier.Kind == "codec" || c.Embedding.Kind == "codec" || c.Search.UseCodec) && c.Codec.Addr == "" {
		problems = append(problems, "codec.addr is empty but a codec collaborator is enabled")
	}
	if !c.Auth.Disabled && (c.Auth.Domain == "" || c.Auth.Audience == "") {
		problems = append(problems, "auth.domain and auth.audience are required unless auth.disabled")
	}
	if c.Search.TopK < 1 {
		problems = append(problems, "search.top_k must be >= 1")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// #endregion validate

// #region conversions

// Policy converts the routing section into a validated policy config.
func (c Config) Policy() (policy.Config, error) {
	pc := policy.Config{
		SuggestThreshold:    c.Routing.SuggestThreshold,
		AutoSwitchThreshold: c.Routing.AutoSwitchThreshold,
		IntentFloor:         c.Routing.IntentFloor,
		PersistenceN:        c.Routing.PersistenceN,
		WindowM:             c.Routing.WindowM,
		CooldownDuration:    c.Routing.Cooldown,
		AutoSwitchEnabled:   c.Routing.AutoSwitchEnabled,
		PendingMode:         policy.PendingMode(c.Routing.PendingMode),
	}
	return pc, pc.Validate()
}

// HTTP returns the HTTP server settings.
func (c Config) HTTP(version string) httpapi.Config {
	return httpapi.Config{CORSOrigins: c.Server.CORSOrigins, MaxBodyBytes: c.Server.MaxBodyBytes, Version: version}
}

// Retrieval returns the search settings.
func (c Config) Retrieval() retrieval.Config {
	rc := retrieval.DefaultConfig()
	rc.TopK = c.Search.TopK
	rc.MaxDistance = c.Search.MaxDistance
	return rc
}

// Generator returns the llm provider settings with the matching API key.
func (c Config) Generator() llm.Config {
	lc := llm.Config{
		Provider:       c.LLM.Provider,
		Model:          c.LLM.Model,
		EmbeddingModel: c.Embedding.Model,
		MaxTokens:      c.LLM.MaxTokens,
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "genai", "gemini":
		lc.APIKey = c.LLM.GeminiAPIKey
	case "anthropic", "claude":
		lc.APIKey = c.LLM.AnthropicAPIKey
	}
	return lc
}

// Extractor returns the signal extractor settings.
func (c Config) Extractor() signals.ExtractorConfig {
	ec := signals.DefaultExtractorConfig()
	if c.Classifier.Timeout > 0 {
		ec.Timeout = c.Classifier.Timeout
	}
	return ec
}

// #endregion conversions
