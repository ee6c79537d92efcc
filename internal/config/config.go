package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 200 * 1024 * 1024 // 200MB, drawing sets are large

	// Extraction defaults. The window radius matches typical callout
	// spacing on mechanical floor plans.
	DefaultWindowRadius   = 300.0
	DefaultMinCFM         = 25
	DefaultMaxCFM         = 20000
	DefaultMinFieldCount  = 2
	DefaultPageWorkers    = 4
	DefaultFallbackModel  = "claude-sonnet-4-5-20250929"
	DefaultLLMTimeout     = 30 * time.Second
	DefaultLLMConcurrency = 2

	// Directory permissions
	DefaultDirPerm = 0o750

	// EnvAnthropicAPIKey is the environment variable viper maps to the
	// anthropicapikey setting (prefix plus key, no separator).
	EnvAnthropicAPIKey = "VAV_EXTRACT_ANTHROPICAPIKEY"
)

// Config holds all configuration for the VAV extraction server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Drawing configuration
	DrawingDirectory string
	MaxFileSize      int64 // Maximum PDF file size in bytes

	// Extraction configuration
	WindowRadius   float64 // spatial neighborhood radius in PDF points
	MinCFM         int     // lower bound of the plausible CFM range
	MaxCFM         int     // upper bound of the plausible CFM range
	MinFieldCount  int     // heuristic fields required before fallback fires
	PageWorkers    int     // pages processed concurrently
	EstimateInlets bool    // estimate inlet size from CFM when missing

	// Pattern overrides. Empty selects the built-in patterns.
	BoxIDPattern     string // regex matching box tag tokens
	InletSizePattern string // regex screening inlet sizes during validation

	// LLM fallback configuration
	AnthropicAPIKey string
	FallbackModel   string
	LLMTimeout      time.Duration
	LLMConcurrency  int

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Mode:             ModeStdio, // Default to stdio mode for MCP compatibility
		Host:             DefaultHost,
		Port:             DefaultPort,
		DrawingDirectory: currentDir,
		MaxFileSize:      DefaultMaxFileSize,
		WindowRadius:     DefaultWindowRadius,
		MinCFM:           DefaultMinCFM,
		MaxCFM:           DefaultMaxCFM,
		MinFieldCount:    DefaultMinFieldCount,
		PageWorkers:      DefaultPageWorkers,
		EstimateInlets:   true,
		FallbackModel:    DefaultFallbackModel,
		LLMTimeout:       DefaultLLMTimeout,
		LLMConcurrency:   DefaultLLMConcurrency,
		Version:          "1.0.0",
		ServerName:       "vav-extract",
		LogLevel:         DefaultLogLevel,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.DrawingDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.DrawingDirectory); err == nil {
			cfg.DrawingDirectory = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("VAV_EXTRACT")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.DrawingDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("radius", cfg.WindowRadius)
	viper.SetDefault("mincfm", cfg.MinCFM)
	viper.SetDefault("maxcfm", cfg.MaxCFM)
	viper.SetDefault("minfields", cfg.MinFieldCount)
	viper.SetDefault("workers", cfg.PageWorkers)
	viper.SetDefault("estimateinlets", cfg.EstimateInlets)
	viper.SetDefault("boxidpattern", cfg.BoxIDPattern)
	viper.SetDefault("inletsizepattern", cfg.InletSizePattern)
	viper.SetDefault("anthropicapikey", cfg.AnthropicAPIKey)
	viper.SetDefault("fallbackmodel", cfg.FallbackModel)
	viper.SetDefault("llmtimeout", cfg.LLMTimeout)
	viper.SetDefault("llmconcurrency", cfg.LLMConcurrency)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.DrawingDirectory, "Directory containing HVAC drawing PDFs")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.Float64("radius", cfg.WindowRadius, "Spatial clustering radius in PDF points")
	pflag.Int("mincfm", cfg.MinCFM, "Lowest plausible CFM value")
	pflag.Int("maxcfm", cfg.MaxCFM, "Highest plausible CFM value")
	pflag.Int("minfields", cfg.MinFieldCount, "Heuristic field count below which the LLM fallback runs")
	pflag.Int("workers", cfg.PageWorkers, "Number of pages processed in parallel")
	pflag.Bool("estimateinlets", cfg.EstimateInlets, "Estimate inlet size from CFM when not found on the drawing")
	pflag.String("boxidpattern", cfg.BoxIDPattern, "Regex override for box tag tokens (empty for the built-in pattern)")
	pflag.String("inletsizepattern", cfg.InletSizePattern, "Regex override for accepted inlet sizes (empty for the built-in pattern)")
	pflag.String("anthropicapikey", cfg.AnthropicAPIKey, "Anthropic API key enabling the LLM fallback classifier")
	pflag.String("fallbackmodel", cfg.FallbackModel, "Model used for the LLM fallback classifier")
	pflag.Duration("llmtimeout", cfg.LLMTimeout, "Timeout for a single LLM fallback call")
	pflag.Int("llmconcurrency", cfg.LLMConcurrency, "Maximum concurrent LLM fallback calls")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	_ = viper.BindPFlag("mode", pflag.Lookup("mode"))
	_ = viper.BindPFlag("host", pflag.Lookup("host"))
	_ = viper.BindPFlag("port", pflag.Lookup("port"))
	_ = viper.BindPFlag("dir", pflag.Lookup("dir"))
	_ = viper.BindPFlag("loglevel", pflag.Lookup("loglevel"))
	_ = viper.BindPFlag("maxfilesize", pflag.Lookup("maxfilesize"))
	_ = viper.BindPFlag("radius", pflag.Lookup("radius"))
	_ = viper.BindPFlag("mincfm", pflag.Lookup("mincfm"))
	_ = viper.BindPFlag("maxcfm", pflag.Lookup("maxcfm"))
	_ = viper.BindPFlag("minfields", pflag.Lookup("minfields"))
	_ = viper.BindPFlag("workers", pflag.Lookup("workers"))
	_ = viper.BindPFlag("estimateinlets", pflag.Lookup("estimateinlets"))
	_ = viper.BindPFlag("boxidpattern", pflag.Lookup("boxidpattern"))
	_ = viper.BindPFlag("inletsizepattern", pflag.Lookup("inletsizepattern"))
	_ = viper.BindPFlag("anthropicapikey", pflag.Lookup("anthropicapikey"))
	_ = viper.BindPFlag("fallbackmodel", pflag.Lookup("fallbackmodel"))
	_ = viper.BindPFlag("llmtimeout", pflag.Lookup("llmtimeout"))
	_ = viper.BindPFlag("llmconcurrency", pflag.Lookup("llmconcurrency"))
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nVAV Extract - structured VAV box data extraction from HVAC drawing PDFs\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                        "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/drawings                "+
			"# stdio mode with custom directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --port=8081              # HTTP server mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  VAV_EXTRACT_MODE             Server mode\n")
		fmt.Fprintf(os.Stderr, "  VAV_EXTRACT_DIR              Drawing directory\n")
		fmt.Fprintf(os.Stderr, "  VAV_EXTRACT_RADIUS           Spatial clustering radius\n")
		fmt.Fprintf(os.Stderr, "  %s  API key for the LLM fallback\n", EnvAnthropicAPIKey)
		fmt.Fprintf(os.Stderr, "  VAV_EXTRACT_LOGLEVEL         Log level\n")
	}
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.DrawingDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.WindowRadius = viper.GetFloat64("radius")
	cfg.MinCFM = viper.GetInt("mincfm")
	cfg.MaxCFM = viper.GetInt("maxcfm")
	cfg.MinFieldCount = viper.GetInt("minfields")
	cfg.PageWorkers = viper.GetInt("workers")
	cfg.EstimateInlets = viper.GetBool("estimateinlets")
	cfg.BoxIDPattern = viper.GetString("boxidpattern")
	cfg.InletSizePattern = viper.GetString("inletsizepattern")
	cfg.AnthropicAPIKey = viper.GetString("anthropicapikey")
	cfg.FallbackModel = viper.GetString("fallbackmodel")
	cfg.LLMTimeout = viper.GetDuration("llmtimeout")
	cfg.LLMConcurrency = viper.GetInt("llmconcurrency")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.DrawingDirectory == "" {
		return errors.New("drawing directory cannot be empty")
	}

	// Check if drawing directory exists, create if it doesn't
	if _, err := os.Stat(c.DrawingDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.DrawingDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create drawing directory %s: %w", c.DrawingDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access drawing directory %s: %w", c.DrawingDirectory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.WindowRadius <= 0 {
		return errors.New("window radius must be positive")
	}

	if c.MinCFM <= 0 || c.MaxCFM <= c.MinCFM {
		return errors.New("CFM range must satisfy 0 < min < max")
	}

	if c.MinFieldCount < 1 || c.MinFieldCount > 3 {
		return errors.New("minimum field count must be between 1 and 3")
	}

	if c.BoxIDPattern != "" {
		if _, err := regexp.Compile(c.BoxIDPattern); err != nil {
			return fmt.Errorf("invalid box id pattern: %w", err)
		}
	}

	if c.InletSizePattern != "" {
		if _, err := regexp.Compile(c.InletSizePattern); err != nil {
			return fmt.Errorf("invalid inlet size pattern: %w", err)
		}
	}

	if c.PageWorkers < 1 {
		return errors.New("page workers must be at least 1")
	}

	if c.LLMTimeout <= 0 {
		return errors.New("LLM timeout must be positive")
	}

	if c.LLMConcurrency < 1 {
		return errors.New("LLM concurrency must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// FallbackEnabled reports whether the LLM fallback classifier is configured
func (c *Config) FallbackEnabled() bool {
	return c.AnthropicAPIKey != ""
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, DrawingDirectory: %s, Radius: %.0f, CFM: %d-%d, Workers: %d, Fallback: %t}",
		c.Mode, c.Host, c.Port, c.DrawingDirectory, c.WindowRadius, c.MinCFM, c.MaxCFM, c.PageWorkers, c.FallbackEnabled())
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
