package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr          = ":3000"
	DefaultOfficialEmail = "cc21btech11002@chitkara.edu.in"
	DefaultGeminiModel   = "gemini-1.5-flash"
	DefaultMaxBodyBytes  = 10 << 20

	// placeholderAPIKey is what sample env files ship with; it counts as unset.
	placeholderAPIKey = "YOUR_GEMINI_API_KEY"
)

// DefaultConfigPaths are probed, in order, when no explicit path is given.
var DefaultConfigPaths = []string{"configs/config.yaml"}

type Config struct {
	Env           string
	OfficialEmail string
	Server        ServerConfig
	AI            AIConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Metrics       MetricsConfig
	LogLevel      string
}

type ServerConfig struct {
	Addr              string
	MaxBodyBytes      int64
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

type AIConfig struct {
	APIKey   string
	Model    string
	Timeout  time.Duration
	Required bool
}

type RateLimitConfig struct {
	Enabled bool
	Window  time.Duration
	Max     int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type MetricsConfig struct {
	Enabled bool
}

// fileConfig mirrors configs/config.yaml. Pointer fields distinguish
// "absent" from zero values during merge.
type fileConfig struct {
	Env           string `yaml:"env"`
	OfficialEmail string `yaml:"officialEmail"`
	Server        struct {
		Addr              string        `yaml:"addr"`
		MaxBodyBytes      int64         `yaml:"maxBodyBytes"`
		ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
		ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
	} `yaml:"server"`
	AI struct {
		Model    string        `yaml:"model"`
		Timeout  time.Duration `yaml:"timeout"`
		Required *bool         `yaml:"required"`
	} `yaml:"ai"`
	RateLimit struct {
		Enabled *bool         `yaml:"enabled"`
		Window  time.Duration `yaml:"window"`
		Max     int           `yaml:"max"`
	} `yaml:"rateLimit"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`
	Metrics struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"metrics"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Default() Config {
	return Config{
		Env:           "production",
		OfficialEmail: DefaultOfficialEmail,
		Server: ServerConfig{
			Addr:              DefaultAddr,
			MaxBodyBytes:      DefaultMaxBodyBytes,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		AI: AIConfig{
			Model:   DefaultGeminiModel,
			Timeout: 15 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Window:  15 * time.Minute,
			Max:     100,
		},
		CORS:     CORSConfig{AllowedOrigins: []string{"*"}},
		Metrics:  MetricsConfig{Enabled: true},
		LogLevel: "info",
	}
}

// Load resolves configuration from defaults, an optional YAML file and the
// environment, in that order of precedence (environment wins). An explicit
// path that cannot be read is an error; missing default paths are skipped.
func Load(path string) (Config, error) {
	cfg := Default()

	parsed, found, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	if found {
		merge(&cfg, parsed)
	}
	applyEnvOverrides(&cfg, found && parsed.RateLimit.Enabled != nil)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func readFile(path string) (fileConfig, bool, error) {
	var parsed fileConfig
	candidates := DefaultConfigPaths
	explicit := strings.TrimSpace(path) != ""
	if explicit {
		candidates = []string{path}
	}
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			if !explicit && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fileConfig{}, false, fmt.Errorf("read config %s: %w", candidate, err)
		}
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return fileConfig{}, false, fmt.Errorf("parse config %s: %w", candidate, err)
		}
		return parsed, true, nil
	}
	return fileConfig{}, false, nil
}

func merge(dst *Config, src fileConfig) {
	if src.Env != "" {
		dst.Env = src.Env
		dst.RateLimit.Enabled = !isTestEnv(src.Env)
	}
	if src.OfficialEmail != "" {
		dst.OfficialEmail = src.OfficialEmail
	}
	if src.Server.Addr != "" {
		dst.Server.Addr = src.Server.Addr
	}
	if src.Server.MaxBodyBytes != 0 {
		dst.Server.MaxBodyBytes = src.Server.MaxBodyBytes
	}
	if src.Server.ReadHeaderTimeout != 0 {
		dst.Server.ReadHeaderTimeout = src.Server.ReadHeaderTimeout
	}
	if src.Server.ShutdownTimeout != 0 {
		dst.Server.ShutdownTimeout = src.Server.ShutdownTimeout
	}
	if src.AI.Model != "" {
		dst.AI.Model = src.AI.Model
	}
	if src.AI.Timeout != 0 {
		dst.AI.Timeout = src.AI.Timeout
	}
	if src.AI.Required != nil {
		dst.AI.Required = *src.AI.Required
	}
	if src.RateLimit.Enabled != nil {
		dst.RateLimit.Enabled = *src.RateLimit.Enabled
	}
	if src.RateLimit.Window != 0 {
		dst.RateLimit.Window = src.RateLimit.Window
	}
	if src.RateLimit.Max != 0 {
		dst.RateLimit.Max = src.RateLimit.Max
	}
	if src.CORS.AllowedOrigins != nil {
		dst.CORS.AllowedOrigins = src.CORS.AllowedOrigins
	}
	if src.Metrics.Enabled != nil {
		dst.Metrics.Enabled = *src.Metrics.Enabled
	}
	if src.Log.Level != "" {
		dst.LogLevel = src.Log.Level
	}
}

// applyEnvOverrides reads the process environment. The API key is only ever
// taken from the environment. Rate limiting defaults to off in test
// environments unless set explicitly.
func applyEnvOverrides(cfg *Config, rateLimitPinned bool) {
	if env := envString("BFHL_ENV"); env != "" {
		cfg.Env = env
		if !rateLimitPinned {
			cfg.RateLimit.Enabled = !isTestEnv(env)
		}
	}
	cfg.OfficialEmail = envStringWithFallback("BFHL_OFFICIAL_EMAIL", cfg.OfficialEmail)

	if port := envString("PORT"); port != "" {
		cfg.Server.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	cfg.Server.Addr = envStringWithFallback("BFHL_ADDR", cfg.Server.Addr)
	cfg.Server.MaxBodyBytes = envInt64WithFallback("BFHL_MAX_BODY_BYTES", cfg.Server.MaxBodyBytes)

	cfg.AI.APIKey = envString("GEMINI_API_KEY")
	cfg.AI.Model = envStringWithFallback("GEMINI_MODEL", cfg.AI.Model)
	cfg.AI.Timeout = envDurationWithFallback("BFHL_AI_TIMEOUT", cfg.AI.Timeout)
	cfg.AI.Required = envBoolWithFallback("BFHL_AI_REQUIRED", cfg.AI.Required)

	cfg.RateLimit.Enabled = envBoolWithFallback("BFHL_RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.Window = envDurationWithFallback("BFHL_RATE_LIMIT_WINDOW", cfg.RateLimit.Window)
	cfg.RateLimit.Max = envIntWithFallback("BFHL_RATE_LIMIT_MAX", cfg.RateLimit.Max)

	if origins := envCSV("BFHL_CORS_ALLOWED_ORIGINS"); origins != nil {
		cfg.CORS.AllowedOrigins = origins
	}
	cfg.Metrics.Enabled = envBoolWithFallback("BFHL_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.LogLevel = envStringWithFallback("BFHL_LOG_LEVEL", cfg.LogLevel)
}

func envStringWithFallback(key, fallback string) string {
	if v := envString(key); v != "" {
		return v
	}
	return fallback
}

// AIEnabled reports whether a usable provider credential is configured.
func (c Config) AIEnabled() bool {
	key := strings.TrimSpace(c.AI.APIKey)
	return key != "" && key != placeholderAPIKey
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server address must not be empty"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("max body bytes must be positive, got %d", c.Server.MaxBodyBytes))
	}
	if strings.TrimSpace(c.OfficialEmail) == "" {
		errs = append(errs, errors.New("official email must not be empty"))
	}
	if c.AI.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("AI timeout must be positive, got %s", c.AI.Timeout))
	}
	if c.AI.Required && !c.AIEnabled() {
		errs = append(errs, errors.New("GEMINI_API_KEY is required when the AI operation is required (BFHL_AI_REQUIRED)"))
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate limit window must be positive, got %s", c.RateLimit.Window))
		}
		if c.RateLimit.Max <= 0 {
			errs = append(errs, fmt.Errorf("rate limit max must be positive, got %d", c.RateLimit.Max))
		}
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("at least one CORS origin must be configured"))
	}
	return errors.Join(errs...)
}
