// Package config loads client settings from the environment, an optional
// .env file and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
)

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

type Config struct {
	APIURL       string        `env:"BEATPOST_API_URL"       envDefault:"http://localhost:8001/api"`
	ListenAddr   string        `env:"BEATPOST_LISTEN_ADDR"   envDefault:"127.0.0.1:8080"`
	SessionStore string        `env:"BEATPOST_SESSION_STORE" envDefault:"file:"`
	HTTPTimeout  time.Duration `env:"BEATPOST_HTTP_TIMEOUT"  envDefault:"15s"`
	GateTimeout  time.Duration `env:"BEATPOST_GATE_TIMEOUT"  envDefault:"3s"`
	LogLevel     string        `env:"BEATPOST_LOG_LEVEL"     envDefault:"info"`
	LogFormat    string        `env:"BEATPOST_LOG_FORMAT"    envDefault:"text"`
	RedisPrefix  string        `env:"BEATPOST_REDIS_PREFIX"  envDefault:"beatpost"`

	// Tracing runs only when an endpoint is set and it was not switched off.
	OtelEnabled  bool   `env:"BEATPOST_OTEL_ENABLED"  envDefault:"true"`
	OtelEndpoint string `env:"BEATPOST_OTEL_ENDPOINT"`

	FakeBackend   bool   `env:"BEATPOST_FAKE_BACKEND"`
	FakeJWTSecret string `env:"BEATPOST_FAKE_JWT_SECRET" envDefault:"beatpost-development-secret"`
	FakeSeed      int64  `env:"BEATPOST_FAKE_SEED"       envDefault:"7"`
}

// ParseEnv fills target from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return xerrors.Newf("parse env: %w", err)
	}
	return nil
}

// LoadDotenv exports the variables of each file that exists. Variables
// already set in the environment win.
func LoadDotenv(paths ...string) error {
	for _, path := range paths {
		err := godotenv.Load(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return xerrors.Newf("load %s: %w", path, err)
		}
	}
	return nil
}

// Parse reads the environment into a Config, then lets the flags in args
// override it.
func Parse(flags *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	flags.StringVar(&cfg.APIURL, "api", cfg.APIURL, "backend API base URL")
	flags.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "view server listen address")
	flags.StringVar(&cfg.SessionStore, "session", cfg.SessionStore,
		"session store: file:[path], sqlite:path, postgres://..., redis://..., memory:")
	flags.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "timeout of one backend request")
	flags.DurationVar(&cfg.GateTimeout, "gate-timeout", cfg.GateTimeout, "how long a protected view waits for the session")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")
	flags.BoolVar(&cfg.FakeBackend, "fake-backend", cfg.FakeBackend, "serve an in-memory backend instead of calling the API")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var problems []string
	if c.APIURL == "" && !c.FakeBackend {
		problems = append(problems, "api url must be provided")
	}
	if c.HTTPTimeout <= 0 {
		problems = append(problems, "http timeout must be positive")
	}
	if c.GateTimeout < 0 {
		problems = append(problems, "gate timeout must not be negative")
	}
	if _, err := c.Level(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		problems = append(problems, "log format must be text or json")
	}
	if len(problems) > 0 {
		return xerrors.Newf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) TracingEnabled() bool {
	return c.OtelEnabled && c.OtelEndpoint != ""
}

func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, xerrors.Newf("log level %q is not valid", c.LogLevel)
	}
	return level, nil
}
