// Package config loads lunchbot settings from defaults, a .env file,
// LUNCHBOT_* environment variables and command line flags, in increasing
// order of precedence.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"

	"github.com/abrezinsky/lunchbot/internal/errors"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "LUNCHBOT_"

// Store backends
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config holds all runtime settings
type Config struct {
	Port        int
	LogLevel    string
	LogFormat   string
	HTTPLogging bool

	Store         string
	DBPath        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string

	SlackToken    string
	SigningSecret string
	BotUserID     string
	SurveyChannel string
	Username      string
	IconEmoji     string

	DispatchTimeout time.Duration
	BaseURL         string
	CatalogFile     string

	// Schedules maps trigger names to cron specs. An empty spec disables the trigger.
	Schedules map[string]string
	Timezone  string

	ShowVersion bool
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Port:            8080,
		LogLevel:        "info",
		LogFormat:       "text",
		Store:           StoreMemory,
		DBPath:          "lunchbot.db",
		RedisAddr:       "localhost:6379",
		RedisKey:        "lunchbot:documents",
		SurveyChannel:   "#pub-lunch",
		Username:        "LunchBot",
		IconEmoji:       ":hamburger:",
		DispatchTimeout: 10 * time.Second,
		Schedules: map[string]string{
			"start-survey": "0 9 * * MON",
			"stop-survey":  "0 12 * * THU",
			"nag":          "0 14 * * THU",
			"booked":       "",
		},
		Timezone: "Local",
	}
}

// Load builds a Config from envFile (skipped when missing), the environment
// and args. It returns pflag.ErrHelp when help was requested.
func Load(args []string, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	flags := cfg.FlagSet()
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() > 0 {
		return nil, errors.Validationf("unexpected argument: %s", flags.Arg(0))
	}

	return cfg, cfg.Validate()
}

// FlagSet binds a flag for every setting, defaulting to the current values
func (c *Config) FlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("lunchbot", pflag.ContinueOnError)
	flags.SortFlags = false

	flags.IntVarP(&c.Port, "port", "p", c.Port, "HTTP server port")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	flags.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: text or json")
	flags.BoolVar(&c.HTTPLogging, "http-log", c.HTTPLogging, "log every HTTP request")

	flags.StringVar(&c.Store, "store", c.Store, "storage backend: memory, sqlite or redis")
	flags.StringVar(&c.DBPath, "db", c.DBPath, "SQLite database path")
	flags.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "Redis address")
	flags.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	flags.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")
	flags.StringVar(&c.RedisKey, "redis-key", c.RedisKey, "Redis hash holding lunchbot documents")

	flags.StringVar(&c.SlackToken, "slack-token", c.SlackToken, "Slack bot token (messages are only logged when empty)")
	flags.StringVar(&c.SigningSecret, "slack-signing-secret", c.SigningSecret, "verify inbound Slack requests with this secret")
	flags.StringVar(&c.BotUserID, "bot-user-id", c.BotUserID, "Slack user id of the bot (looked up when empty)")
	flags.StringVar(&c.SurveyChannel, "channel", c.SurveyChannel, "channel survey announcements go to")
	flags.StringVar(&c.Username, "username", c.Username, "display name for posted messages")
	flags.StringVar(&c.IconEmoji, "icon", c.IconEmoji, "icon emoji for posted messages")

	flags.DurationVar(&c.DispatchTimeout, "timeout", c.DispatchTimeout, "time limit for handling one chat message")
	flags.StringVar(&c.BaseURL, "base-url", c.BaseURL, "public URL of the survey page (detected when empty)")
	flags.StringVar(&c.CatalogFile, "catalog", c.CatalogFile, "YAML file of pubs to load at startup")

	for _, name := range triggerNames {
		flags.Var(&scheduleValue{schedules: c.Schedules, name: name}, name+"-schedule", "cron spec for the "+name+" trigger (empty disables)")
	}
	flags.StringVar(&c.Timezone, "timezone", c.Timezone, "time zone schedules run in")

	flags.BoolVar(&c.ShowVersion, "version", c.ShowVersion, "show version and exit")
	return flags
}

var triggerNames = []string{"start-survey", "stop-survey", "nag", "booked"}

// scheduleValue writes one entry of the Schedules map
type scheduleValue struct {
	schedules map[string]string
	name      string
}

func (v *scheduleValue) String() string {
	if v.schedules == nil {
		return ""
	}
	return v.schedules[v.name]
}

func (v *scheduleValue) Set(s string) error {
	v.schedules[v.name] = strings.TrimSpace(s)
	return nil
}

func (v *scheduleValue) Type() string { return "cron" }

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	var err error
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && err == nil {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = errors.Validationf("%s%s: %q is not a number", EnvPrefix, key, v)
				return
			}
			*dst = n
		}
	}

	num("PORT", &c.Port)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	if v, ok := os.LookupEnv(EnvPrefix + "HTTP_LOG"); ok {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			return errors.Validationf("%sHTTP_LOG: %q is not a boolean", EnvPrefix, v)
		}
		c.HTTPLogging = b
	}

	str("STORE", &c.Store)
	str("DB", &c.DBPath)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_PASSWORD", &c.RedisPassword)
	num("REDIS_DB", &c.RedisDB)
	str("REDIS_KEY", &c.RedisKey)

	str("SLACK_TOKEN", &c.SlackToken)
	str("SLACK_SIGNING_SECRET", &c.SigningSecret)
	str("BOT_USER_ID", &c.BotUserID)
	str("CHANNEL", &c.SurveyChannel)
	str("USERNAME", &c.Username)
	str("ICON", &c.IconEmoji)

	if v, ok := os.LookupEnv(EnvPrefix + "TIMEOUT"); ok {
		d, perr := time.ParseDuration(v)
		if perr != nil {
			return errors.Validationf("%sTIMEOUT: %q is not a duration", EnvPrefix, v)
		}
		c.DispatchTimeout = d
	}
	str("BASE_URL", &c.BaseURL)
	str("CATALOG", &c.CatalogFile)

	for _, name := range triggerNames {
		key := strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_SCHEDULE"
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			c.Schedules[name] = strings.TrimSpace(v)
		}
	}
	str("TIMEZONE", &c.Timezone)

	return err
}

// Validate reports the first setting that can't be used
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.Validationf("port %d is out of range", c.Port)
	}

	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.DBPath == "" {
			return errors.Validation("sqlite store needs a database path")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.Validation("redis store needs an address")
		}
	default:
		return errors.Validationf("unknown store %q (want memory, sqlite or redis)", c.Store)
	}

	if c.SurveyChannel == "" {
		return errors.Validation("survey channel is required")
	}
	if c.DispatchTimeout <= 0 {
		return errors.Validationf("timeout must be positive, got %s", c.DispatchTimeout)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	for name, spec := range c.Schedules {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return errors.Validationf("%s schedule %q: %v", name, spec, err)
		}
	}
	return nil
}

// Location resolves Timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Validationf("unknown timezone %q", c.Timezone)
	}
	return loc, nil
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
