// ABOUTME: Runtime configuration for OpsDeck: defaults, command-line flags, environment, and .env files.
// ABOUTME: Flags are parsed first and environment variables override them.

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/jfeddern/OpsDeck/internal/providers"
	"github.com/jfeddern/OpsDeck/internal/rbac"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// suggestDistance is the largest edit distance offered as a "did you mean"
const suggestDistance = 3

// Config holds every tunable of the OpsDeck binaries
type Config struct {
	Port      int
	LogLevel  string
	LogFormat string

	Provider      string
	MockMode      bool
	GeminiAPIKey  string
	ScanModel     string
	AssistModel   string
	BedrockRegion string
	BedrockModel  string
	AssumeRoleARN string

	AutosaveInterval time.Duration
	ScanTimeout      time.Duration
	AssistTimeout    time.Duration
	ScanCacheTTL     time.Duration
	SessionIdleTTL   time.Duration

	ViewsFile   string
	DefaultRole string
	DefaultView string

	OTLPEndpoint string
	OTLPHeaders  string
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Port:             8080,
		LogLevel:         "info",
		LogFormat:        "json",
		Provider:         providers.ProviderGemini,
		ScanModel:        "gemini-3-pro-preview",
		AssistModel:      "gemini-flash-lite-latest",
		AutosaveInterval: 30 * time.Second,
		ScanTimeout:      2 * time.Minute,
		AssistTimeout:    30 * time.Second,
		ScanCacheTTL:     30 * time.Minute,
		SessionIdleTTL:   12 * time.Hour,
		DefaultRole:      "ADMIN",
		DefaultView:      "dashboard",
	}
}

// BindFlags registers a flag for every setting, defaulting to the current values
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.IntVar(&c.Port, "port", c.Port, "Port to serve HTTP on")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format: json or text")

	fs.StringVar(&c.Provider, "provider", c.Provider, "AI provider: gemini, bedrock, or mock")
	fs.BoolVar(&c.MockMode, "mock", c.MockMode, "Use canned AI responses (no external API calls)")
	fs.StringVar(&c.GeminiAPIKey, "gemini-api-key", c.GeminiAPIKey, "Gemini API key")
	fs.StringVar(&c.ScanModel, "scan-model", c.ScanModel, "Gemini model used for security scans")
	fs.StringVar(&c.AssistModel, "assist-model", c.AssistModel, "Gemini model used for editor polish")
	fs.StringVar(&c.BedrockRegion, "bedrock-region", c.BedrockRegion, "AWS region for Bedrock")
	fs.StringVar(&c.BedrockModel, "bedrock-model", c.BedrockModel, "Bedrock model or inference profile id")
	fs.StringVar(&c.AssumeRoleARN, "assume-role-arn", c.AssumeRoleARN, "IAM role to assume for Bedrock calls")

	fs.DurationVar(&c.AutosaveInterval, "autosave-interval", c.AutosaveInterval, "Editor autosave period")
	fs.DurationVar(&c.ScanTimeout, "scan-timeout", c.ScanTimeout, "Deadline for one security scan")
	fs.DurationVar(&c.AssistTimeout, "assist-timeout", c.AssistTimeout, "Deadline for one polish request")
	fs.DurationVar(&c.ScanCacheTTL, "scan-cache-ttl", c.ScanCacheTTL, "How long identical code reuses a scan result (0 disables)")
	fs.DurationVar(&c.SessionIdleTTL, "session-idle-ttl", c.SessionIdleTTL, "Idle time after which a session is closed")

	fs.StringVar(&c.ViewsFile, "views-file", c.ViewsFile, "YAML file replacing the built-in view table")
	fs.StringVar(&c.DefaultRole, "default-role", c.DefaultRole, "Role new sessions start with")
	fs.StringVar(&c.DefaultView, "default-view", c.DefaultView, "View new sessions start on")

	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", c.OTLPEndpoint, "OTLP gRPC endpoint for traces (empty disables tracing)")
	fs.StringVar(&c.OTLPHeaders, "otlp-headers", c.OTLPHeaders, "Comma-separated key=value headers for the OTLP exporter")
}

// LoadEnvFile loads a dotenv file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings from environment variables
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error

	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
				return
			}
			*dst = d
		}
	}

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid PORT %q: %w", v, err))
		} else {
			c.Port = port
		}
	}
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	str("AI_PROVIDER", &c.Provider)
	if v := getenv("MOCK_MODE"); v == "true" || v == "1" {
		c.MockMode = true
	}
	str("API_KEY", &c.GeminiAPIKey)
	str("GEMINI_API_KEY", &c.GeminiAPIKey)
	str("SCAN_MODEL", &c.ScanModel)
	str("ASSIST_MODEL", &c.AssistModel)
	str("BEDROCK_REGION", &c.BedrockRegion)
	str("BEDROCK_MODEL", &c.BedrockModel)
	str("AWS_IAM_ASSUME_ROLE_ARN", &c.AssumeRoleARN)

	dur("AUTOSAVE_INTERVAL", &c.AutosaveInterval)
	dur("SCAN_TIMEOUT", &c.ScanTimeout)
	dur("ASSIST_TIMEOUT", &c.AssistTimeout)
	dur("SCAN_CACHE_TTL", &c.ScanCacheTTL)
	dur("SESSION_IDLE_TTL", &c.SessionIdleTTL)

	str("VIEWS_FILE", &c.ViewsFile)
	str("DEFAULT_ROLE", &c.DefaultRole)
	str("DEFAULT_VIEW", &c.DefaultView)

	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.OTLPEndpoint)
	str("OTEL_EXPORTER_OTLP_HEADERS", &c.OTLPHeaders)

	return errors.Join(errs...)
}

// Registry returns the view table: the file named by ViewsFile, or the built-in one
func (c *Config) Registry() (*rbac.Registry, error) {
	if c.ViewsFile == "" {
		return rbac.DefaultRegistry(), nil
	}
	return rbac.LoadRegistry(c.ViewsFile)
}

// Validate checks the configuration against the view table
func (c *Config) Validate(reg rbac.Resolver) error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level: %w", err))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("log format must be json or text, got %q", c.LogFormat))
	}

	if !c.MockMode {
		switch c.Provider {
		case providers.ProviderMock:
		case providers.ProviderGemini:
			if c.GeminiAPIKey == "" {
				errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider (unless using mock mode)"))
			}
		case providers.ProviderBedrock:
			if c.BedrockRegion == "" || c.BedrockModel == "" {
				errs = append(errs, errors.New("bedrock region and model are required for the bedrock provider (unless using mock mode)"))
			}
		default:
			errs = append(errs, fmt.Errorf("unsupported provider %q%s", c.Provider,
				suggest(c.Provider, []string{providers.ProviderGemini, providers.ProviderBedrock, providers.ProviderMock})))
		}
	}

	for name, d := range map[string]time.Duration{
		"autosave interval": c.AutosaveInterval,
		"scan timeout":      c.ScanTimeout,
		"assist timeout":    c.AssistTimeout,
		"session idle ttl":  c.SessionIdleTTL,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.ScanCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("scan cache ttl must not be negative, got %s", c.ScanCacheTTL))
	}

	if _, err := rbac.ParseRole(c.DefaultRole); err != nil {
		errs = append(errs, fmt.Errorf("default role: %w", err))
	}
	if err := validateDefaultView(reg, rbac.ViewID(c.DefaultView)); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateDefaultView(reg rbac.Resolver, id rbac.ViewID) error {
	desc, ok := reg.Lookup(id)
	if !ok {
		var known []string
		for _, d := range reg.Descriptors() {
			known = append(known, string(d.ID))
		}
		return fmt.Errorf("default view %q is not registered%s", id, suggest(string(id), known))
	}
	if desc.RequiredRoles != rbac.AllRoles() {
		return fmt.Errorf("default view %q must be open to every role, requires %s", id, desc.RequiredRoles)
	}
	return nil
}

// suggest returns a "did you mean" clause for the closest candidate, if any is close enough
func suggest(input string, candidates []string) string {
	best, bestDist := "", suggestDistance+1
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(strings.ToLower(input), c); d < bestDist {
			best, bestDist = c, d
		}
	}
	if best == "" {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", best)
}

// ProviderConfig maps the AI settings onto the provider factory's input
func (c *Config) ProviderConfig() *providers.ProviderConfig {
	return &providers.ProviderConfig{
		Provider:      c.Provider,
		MockMode:      c.MockMode,
		GeminiAPIKey:  c.GeminiAPIKey,
		ScanModel:     c.ScanModel,
		AssistModel:   c.AssistModel,
		BedrockRegion: c.BedrockRegion,
		BedrockModel:  c.BedrockModel,
		AssumeRoleARN: c.AssumeRoleARN,
	}
}

// NewLogger builds the process logger from LogLevel and LogFormat
func (c *Config) NewLogger(out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	if c.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger, nil
}
