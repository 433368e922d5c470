// Package config provides configuration management for signchat.
//
// Values are layered, later sources overriding earlier ones:
//
//  1. built-in defaults
//  2. a YAML file (--config or SIGNCHAT_CONFIG)
//  3. .env files and SIGNCHAT_* environment variables
//  4. command-line flags that were set explicitly
//
// The resulting Config is validated once and passed to components during
// initialization.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/hurricanerix/signchat/internal/generation"
)

const (
	// Version is the signchat application version
	Version = "0.1.0"

	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "SIGNCHAT_"

	// Default values
	defaultHost          = "localhost"
	defaultPort          = 8080
	defaultTimeout       = generation.DefaultTimeout * time.Second
	defaultMaxChars      = 100
	defaultWarnThreshold = 20
	defaultLogLevel      = "info"

	// Validation constraints
	minPort     = 1
	maxPort     = 65535
	maxMaxChars = 10000
)

var (
	// ErrInvalidPort is returned when port is out of valid range
	ErrInvalidPort = errors.New("port must be between 1 and 65535")
	// ErrInvalidGenerationURL is returned when the generation URL is not an absolute http(s) URL
	ErrInvalidGenerationURL = errors.New("generation-url must be an http or https URL with a host")
	// ErrInvalidFunction is returned when the function name is empty or contains a slash
	ErrInvalidFunction = errors.New("function must be a non-empty name without '/'")
	// ErrInvalidTimeout is returned when the timeout is not positive
	ErrInvalidTimeout = errors.New("timeout must be greater than zero")
	// ErrInvalidMaxChars is returned when the character limit is out of range
	ErrInvalidMaxChars = errors.New("max-chars must be between 1 and 10000")
	// ErrInvalidWarnThreshold is returned when the warning threshold exceeds the limit
	ErrInvalidWarnThreshold = errors.New("warn-threshold must be between 1 and max-chars")
	// ErrInvalidLogLevel is returned when log level is not recognized
	ErrInvalidLogLevel = errors.New("log-level must be one of: debug, info, warn, error")
	// ErrInvalidFile is returned when the YAML config file cannot be used
	ErrInvalidFile = errors.New("invalid config file")
	// ErrInvalidEnv is returned when an environment variable cannot be parsed
	ErrInvalidEnv = errors.New("invalid environment variable")
)

// Config holds all configuration values for signchat.
type Config struct {
	// Server configuration
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Generation service
	GenerationURL string        `yaml:"generation_url"`
	Function      string        `yaml:"function"`
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout"`

	// Mock replaces the generation service with an in-process generator.
	Mock      bool          `yaml:"mock"`
	MockDelay time.Duration `yaml:"mock_delay"`

	// Composition limits
	MaxChars      int `yaml:"max_chars"`
	WarnThreshold int `yaml:"warn_threshold"`

	// Sessions
	SessionTimeout time.Duration `yaml:"session_timeout"`
	MaxSessions    int           `yaml:"max_sessions"`

	// Logging configuration
	LogLevel string `yaml:"log_level"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		Host:          defaultHost,
		Port:          defaultPort,
		GenerationURL: generation.DefaultBaseURL,
		Function:      generation.DefaultFunction,
		Timeout:       defaultTimeout,
		MaxChars:      defaultMaxChars,
		WarnThreshold: defaultWarnThreshold,
		LogLevel:      defaultLogLevel,
	}
}

// Addr returns the host:port the web server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks that all configuration values are within valid ranges.
func (c *Config) Validate() error {
	if c.Port < minPort || c.Port > maxPort {
		return ErrInvalidPort
	}

	// The URL is unused when mocking
	if !c.Mock {
		u, err := url.Parse(c.GenerationURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrInvalidGenerationURL
		}
	}

	if c.Function == "" || strings.Contains(c.Function, "/") {
		return ErrInvalidFunction
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxChars < 1 || c.MaxChars > maxMaxChars {
		return ErrInvalidMaxChars
	}
	if c.WarnThreshold < 1 || c.WarnThreshold > c.MaxChars {
		return ErrInvalidWarnThreshold
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return ErrInvalidLogLevel
	}

	return nil
}

// Flag names shared by every command.
const (
	FlagConfig        = "config"
	FlagLogLevel      = "log-level"
	FlagGenerationURL = "generation-url"
	FlagFunction      = "function"
	FlagAPIKey        = "api-key"
	FlagMock          = "mock"
	FlagTimeout       = "timeout"
	FlagHost          = "host"
	FlagPort          = "port"
)

// BindFlags registers the flags shared by every command on fs. Defaults
// shown in help are the built-in defaults; only flags the user sets
// explicitly take part in layering.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(FlagConfig, "", "Path to a YAML config file (env: SIGNCHAT_CONFIG)")
	fs.String(FlagLogLevel, d.LogLevel, "Log level (debug, info, warn, error)")
	fs.String(FlagGenerationURL, d.GenerationURL, "Base URL of the generation service")
	fs.String(FlagFunction, d.Function, "Name of the hosted generation function")
	fs.String(FlagAPIKey, "", "API key sent to the generation service")
	fs.Bool(FlagMock, false, "Use the in-process mock generator instead of the service")
	fs.Duration(FlagTimeout, d.Timeout, "Timeout for one generation call")
}

// BindServerFlags registers the flags only the web server uses.
func BindServerFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(FlagHost, d.Host, "Interface the web server binds to")
	fs.Int(FlagPort, d.Port, "HTTP server port")
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// Flags holds parsed command-line flags. May be nil.
	Flags *pflag.FlagSet

	// EnvFiles are dotenv files to read. Missing files are skipped.
	// Nil means ".env".
	EnvFiles []string

	// LookupEnv reads the process environment. Nil means os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load builds a validated Config from all sources.
func Load(opts LoadOptions) (*Config, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	files := opts.EnvFiles
	if files == nil {
		files = []string{".env"}
	}

	env, err := readEnv(files, lookup)
	if err != nil {
		return nil, err
	}

	cfg := Default()

	path, _ := env("CONFIG")
	if opts.Flags != nil {
		if f := opts.Flags.Lookup(FlagConfig); f != nil && f.Changed {
			path = f.Value.String()
		}
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}

	if opts.Flags != nil {
		if err := cfg.applyFlags(opts.Flags); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readEnv returns a lookup over SIGNCHAT_* variables. Real environment
// variables take precedence over dotenv files.
func readEnv(files []string, lookup func(string) (string, bool)) (func(string) (string, bool), error) {
	fromFiles := make(map[string]string)
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		vals, err := godotenv.Read(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEnv, f, err)
		}
		for k, v := range vals {
			// earlier files win, like godotenv.Load
			if _, ok := fromFiles[k]; !ok {
				fromFiles[k] = v
			}
		}
	}

	return func(name string) (string, bool) {
		key := EnvPrefix + name
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := fromFiles[key]
		return v, ok
	}, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidFile, path, err)
	}
	return nil
}

func (c *Config) applyEnv(env func(string) (string, bool)) error {
	strs := map[string]*string{
		"HOST":           &c.Host,
		"GENERATION_URL": &c.GenerationURL,
		"FUNCTION":       &c.Function,
		"API_KEY":        &c.APIKey,
		"LOG_LEVEL":      &c.LogLevel,
	}
	for name, dst := range strs {
		if v, ok := env(name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PORT":           &c.Port,
		"MAX_CHARS":      &c.MaxChars,
		"WARN_THRESHOLD": &c.WarnThreshold,
		"MAX_SESSIONS":   &c.MaxSessions,
	}
	for name, dst := range ints {
		if v, ok := env(name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%w: %s%s=%q", ErrInvalidEnv, EnvPrefix, name, v)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"TIMEOUT":         &c.Timeout,
		"MOCK_DELAY":      &c.MockDelay,
		"SESSION_TIMEOUT": &c.SessionTimeout,
	}
	for name, dst := range durations {
		if v, ok := env(name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%w: %s%s=%q", ErrInvalidEnv, EnvPrefix, name, v)
			}
			*dst = d
		}
	}

	if v, ok := env("MOCK"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %sMOCK=%q", ErrInvalidEnv, EnvPrefix, v)
		}
		c.Mock = b
	}
	return nil
}

// applyFlags copies every explicitly set flag into c.
func (c *Config) applyFlags(fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case FlagLogLevel:
			c.LogLevel, err = fs.GetString(f.Name)
		case FlagGenerationURL:
			c.GenerationURL, err = fs.GetString(f.Name)
		case FlagFunction:
			c.Function, err = fs.GetString(f.Name)
		case FlagAPIKey:
			c.APIKey, err = fs.GetString(f.Name)
		case FlagMock:
			c.Mock, err = fs.GetBool(f.Name)
		case FlagTimeout:
			c.Timeout, err = fs.GetDuration(f.Name)
		case FlagHost:
			c.Host, err = fs.GetString(f.Name)
		case FlagPort:
			c.Port, err = fs.GetInt(f.Name)
		}
	})
	return err
}
