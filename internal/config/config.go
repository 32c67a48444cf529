// Package config builds the process-wide configuration once at startup.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/splitit/internal/scanning"
)

// EnvPrefix is the prefix of environment variables mapped onto flags, e.g. SPLITIT_PORT
const EnvPrefix = "SPLITIT"

// Config is the immutable startup configuration
type Config struct {
	Host        string
	Port        int
	Scanner     string
	GeminiKey   string
	GeminiModel string
	OllamaURL   string
	OllamaModel string
	Timeout     time.Duration
	AuthUser    string
	AuthPass    string
	ShowVersion bool
}

// Addr returns the listen address
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Model returns the identifier of the active extraction model
func (c Config) Model() string {
	if c.Scanner == "ollama" {
		return c.OllamaModel
	}
	return c.GeminiModel
}

// NewFlagSet declares every flag and returns a function reading the parsed values
func NewFlagSet() (*ff.FlagSet, func() Config) {
	fs := ff.NewFlagSet("splitit")
	var (
		host        = fs.StringLong("host", "localhost", "HTTP listen host")
		port        = fs.IntLong("port", 8765, "HTTP server port")
		scanner     = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini' or 'ollama'")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "", "Google Gemini model name (or set GEMINI_MODEL env var)")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		timeout     = fs.DurationLong("timeout", 2*time.Minute, "Timeout of a single extraction call")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion = fs.BoolLong("version", "Show version information")
		_           = fs.StringLong("config", "", "Config file with one 'flag value' per line (optional)")
	)

	return fs, func() Config {
		return Config{
			Host:        strings.TrimSpace(*host),
			Port:        *port,
			Scanner:     strings.ToLower(strings.TrimSpace(*scanner)),
			GeminiKey:   strings.TrimSpace(*geminiKey),
			GeminiModel: strings.TrimSpace(*geminiModel),
			OllamaURL:   strings.TrimSpace(*ollamaURL),
			OllamaModel: strings.TrimSpace(*ollamaModel),
			Timeout:     *timeout,
			AuthUser:    *authUser,
			AuthPass:    *authPass,
			ShowVersion: *showVersion,
		}
	}
}

// Parse reads flags, SPLITIT_* environment variables and an optional config file.
// The bare GEMINI_API_KEY and GEMINI_MODEL variables are honored as fallbacks.
func Parse(fs *ff.FlagSet, values func() Config, args []string) (Config, error) {
	if err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix(EnvPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		return Config{}, err
	}

	cfg := values()
	if cfg.GeminiKey == "" {
		cfg.GeminiKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = strings.TrimSpace(os.Getenv("GEMINI_MODEL"))
	}
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = scanning.DefaultGeminiModel
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Scanner != "gemini" && c.Scanner != "ollama" {
		return fmt.Errorf("invalid scanner %q: valid values are gemini or ollama", c.Scanner)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout %s", c.Timeout)
	}
	return nil
}

// LoadDotEnv loads variables from a .env file without overriding the environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
