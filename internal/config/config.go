package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go-bg-daemon/internal/api"
	"go-bg-daemon/internal/hook"
	"go-bg-daemon/internal/models"
	"go-bg-daemon/internal/paths"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultHomeDirName         = ".bg_daemon"
	DefaultConfigFileName      = "config.toml"
	DefaultDatabaseFileName    = "history.db"
	DefaultTargetFileName      = "wallpaper.jpg"
	DefaultAPILogFileName      = "api.log"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
	DefaultAPIClientTimeoutSec = 30

	DefaultFrequencySec = 3600
	DefaultRetries      = 3
	DefaultSlackSec     = 5
	DefaultBackup       = true

	DefaultMode      = models.ModeRecent
	DefaultMinWidth  = 1920
	DefaultMinHeight = 1080
)

var (
	ErrUnknownKey  = errors.New("unknown configuration key")
	ErrReservedKey = errors.New("reserved configuration key")
	ErrInvalid     = errors.New("invalid configuration")
)

// reservedKeys name fetcher operations and may never be set from a settings file.
var reservedKeys = map[string]struct{}{
	"query": {},
	"fetch": {},
	"save":  {},
}

// optionalKeys have no default because nil and empty differ for them.
var optionalKeys = []string{
	"fetcher.subreddits",
	"fetcher.blacklistwords",
}

// CliFlags holds command line overrides. Nil means "not given".
type CliFlags struct {
	ConfigFilePath *string // --config
	Home           *string // --home
	LogLevel       *string // --log-level
	LogFormat      *string // --log-format
	LogApiRequests *bool   // --log-api
	Target         *string // --target
	Mode           *string // --mode
}

func setViperDefaults(v *viper.Viper) {
	v.SetDefault("home", "")
	v.SetDefault("databasepath", "")
	v.SetDefault("loglevel", DefaultLogLevel)
	v.SetDefault("logformat", DefaultLogFormat)
	v.SetDefault("logfile", "")
	v.SetDefault("apiclienttimeoutsec", DefaultAPIClientTimeoutSec)
	v.SetDefault("logapirequests", false)

	// Daemon defaults
	v.SetDefault("daemon.target", "")
	v.SetDefault("daemon.targetpattern", paths.DefaultTargetPattern)
	v.SetDefault("daemon.updatehook", "")
	v.SetDefault("daemon.env", []string{})
	v.SetDefault("daemon.envfile", "")
	v.SetDefault("daemon.frequency", DefaultFrequencySec)
	v.SetDefault("daemon.retries", DefaultRetries)
	v.SetDefault("daemon.slack", DefaultSlackSec)
	v.SetDefault("daemon.backup", DefaultBackup)
	v.SetDefault("daemon.skipapplied", false)

	// Fetcher defaults
	v.SetDefault("fetcher.mode", DefaultMode)
	v.SetDefault("fetcher.clientid", api.DefaultClientID)
	v.SetDefault("fetcher.keywords", []string{})
	v.SetDefault("fetcher.minwidth", DefaultMinWidth)
	v.SetDefault("fetcher.minheight", DefaultMinHeight)
	v.SetDefault("fetcher.maxsize", 0)
}

// DefaultHome returns ~/.bg_daemon, or .bg_daemon when no home directory is known.
func DefaultHome() string {
	userHome, err := os.UserHomeDir()
	if err != nil {
		log.WithError(err).Warn("Could not determine user home directory, using current directory")
		return DefaultHomeDirName
	}
	return filepath.Join(userHome, DefaultHomeDirName)
}

// Default returns the configuration used when no settings file exists.
func Default(home string) models.Config {
	if home == "" {
		home = DefaultHome()
	}
	return models.Config{
		Home:                home,
		DatabasePath:        filepath.Join(home, DefaultDatabaseFileName),
		LogLevel:            DefaultLogLevel,
		LogFormat:           DefaultLogFormat,
		APIClientTimeoutSec: DefaultAPIClientTimeoutSec,
		Daemon: models.DaemonConfig{
			Target:        filepath.Join(home, DefaultTargetFileName),
			TargetPattern: paths.DefaultTargetPattern,
			Env:           []string{},
			Frequency:     DefaultFrequencySec,
			Retries:       DefaultRetries,
			Slack:         DefaultSlackSec,
			Backup:        DefaultBackup,
		},
		Fetcher: models.FetcherConfig{
			Mode:      DefaultMode,
			ClientID:  api.DefaultClientID,
			Keywords:  []string{},
			MinWidth:  DefaultMinWidth,
			MinHeight: DefaultMinHeight,
		},
	}
}

// ConfigFilePath returns the settings file to read for flags.
func ConfigFilePath(flags CliFlags) string {
	if flags.ConfigFilePath != nil && *flags.ConfigFilePath != "" {
		return *flags.ConfigFilePath
	}
	return filepath.Join(resolveHome(flags), DefaultConfigFileName)
}

func resolveHome(flags CliFlags) string {
	if flags.Home != nil && *flags.Home != "" {
		return *flags.Home
	}
	if env := os.Getenv("BG_DAEMON_HOME"); env != "" {
		return env
	}
	return DefaultHome()
}

// Initialize builds the run configuration from defaults, the settings file,
// BG_DAEMON_ environment variables and CLI flags, in increasing priority.
// The returned transport logs API traffic when LogApiRequests is set.
func Initialize(flags CliFlags) (models.Config, http.RoundTripper, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("BG_DAEMON")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setViperDefaults(v)

	configFile := ConfigFilePath(flags)
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			log.Warnf("Config file '%s' not found. Using defaults and CLI flags only.", configFile)
		} else {
			return models.Config{}, nil, fmt.Errorf("%w: reading %s: %w", ErrInvalid, configFile, err)
		}
	} else {
		log.Debugf("Read config file: %s", v.ConfigFileUsed())
	}

	if err := checkKeys(v); err != nil {
		return models.Config{}, nil, err
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return models.Config{}, nil, fmt.Errorf("%w: failed to unmarshal config: %w", ErrInvalid, err)
	}

	// --- Override with CLI Flags ---
	if flags.Home != nil && *flags.Home != "" {
		cfg.Home = *flags.Home
	}
	if flags.LogLevel != nil {
		cfg.LogLevel = *flags.LogLevel
	}
	if flags.LogFormat != nil {
		cfg.LogFormat = *flags.LogFormat
	}
	if flags.LogApiRequests != nil {
		cfg.LogApiRequests = *flags.LogApiRequests
	}
	if flags.Target != nil {
		cfg.Daemon.Target = *flags.Target
	}
	if flags.Mode != nil {
		cfg.Fetcher.Mode = *flags.Mode
	}

	finalize(&cfg, resolveHome(flags))

	if err := validate(cfg); err != nil {
		return models.Config{}, nil, err
	}

	// explicit Env entries override the env file
	if cfg.Daemon.EnvFile != "" {
		fileEnv, err := hook.ReadEnvFile(cfg.Daemon.EnvFile)
		if err != nil {
			return models.Config{}, nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		cfg.Daemon.Env = append(fileEnv, cfg.Daemon.Env...)
	}

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.LogApiRequests {
		logFilePath := filepath.Join(cfg.Home, DefaultAPILogFileName)
		loggingTransport, err := api.NewLoggingTransport(http.DefaultTransport, logFilePath)
		if err != nil {
			log.WithError(err).Error("Failed to initialize API logging transport, logging disabled.")
		} else {
			log.Infof("API logging to file: %s", logFilePath)
			transport = loggingTransport
		}
	}

	log.Debug("Configuration initialized successfully.")
	return cfg, transport, nil
}

// checkKeys rejects settings that do not map onto the configuration.
func checkKeys(v *viper.Viper) error {
	known := viper.New()
	setViperDefaults(known)
	allowed := make(map[string]struct{})
	for _, k := range known.AllKeys() {
		allowed[k] = struct{}{}
	}
	for _, k := range optionalKeys {
		allowed[k] = struct{}{}
	}

	var unknown []string
	for _, key := range v.AllKeys() {
		leaf := key[strings.LastIndex(key, ".")+1:]
		if _, reserved := reservedKeys[leaf]; reserved {
			return fmt.Errorf("%w: %q cannot be set in the settings file", ErrReservedKey, key)
		}
		if _, ok := allowed[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(unknown, ", "))
	}
	return nil
}

// finalize fills derived values: home, paths relative to home and the selection mode.
func finalize(cfg *models.Config, fallbackHome string) {
	if cfg.Home == "" {
		cfg.Home = fallbackHome
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.Home, DefaultDatabaseFileName)
	} else if !filepath.IsAbs(cfg.DatabasePath) {
		cfg.DatabasePath = filepath.Join(cfg.Home, cfg.DatabasePath)
	}
	if cfg.LogFile != "" && !filepath.IsAbs(cfg.LogFile) {
		cfg.LogFile = filepath.Join(cfg.Home, cfg.LogFile)
	}
	if cfg.Daemon.EnvFile != "" && !filepath.IsAbs(cfg.Daemon.EnvFile) {
		cfg.Daemon.EnvFile = filepath.Join(cfg.Home, cfg.Daemon.EnvFile)
	}
	if cfg.Daemon.Target == "" {
		cfg.Daemon.Target = filepath.Join(cfg.Home, DefaultTargetFileName)
	}
	if cfg.Daemon.TargetPattern == "" {
		cfg.Daemon.TargetPattern = paths.DefaultTargetPattern
	}
	if cfg.Fetcher.ClientID == "" {
		cfg.Fetcher.ClientID = api.DefaultClientID
	}
	if cfg.Fetcher.Keywords == nil {
		cfg.Fetcher.Keywords = []string{}
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Fetcher.Mode))
	if models.NormalizeMode(mode) != mode {
		log.Warnf("Unknown selection mode %q, using %q", cfg.Fetcher.Mode, models.ModeRecent)
	}
	cfg.Fetcher.Mode = models.NormalizeMode(mode)
}

func validate(cfg models.Config) error {
	var problems []string
	if cfg.Daemon.Frequency <= 0 {
		problems = append(problems, fmt.Sprintf("Daemon.Frequency must be positive, got %d", cfg.Daemon.Frequency))
	}
	if cfg.Daemon.Retries < 1 {
		problems = append(problems, fmt.Sprintf("Daemon.Retries must be at least 1, got %d", cfg.Daemon.Retries))
	}
	if cfg.Daemon.Slack < 0 {
		problems = append(problems, fmt.Sprintf("Daemon.Slack must not be negative, got %d", cfg.Daemon.Slack))
	}
	if cfg.Fetcher.MaxSize < 0 {
		problems = append(problems, fmt.Sprintf("Fetcher.MaxSize must not be negative, got %d", cfg.Fetcher.MaxSize))
	}
	if err := paths.ValidatePattern(cfg.Daemon.TargetPattern); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// EnsureHome creates the home directory if needed.
func EnsureHome(home string) error {
	if err := os.MkdirAll(home, 0755); err != nil {
		return fmt.Errorf("creating home directory %s: %w", home, err)
	}
	return nil
}

// WriteDefault writes cfg as TOML to path. An existing file is only replaced
// when overwrite is set.
func WriteDefault(path string, cfg models.Config, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config to %s: %w", path, err)
	}
	log.Infof("Wrote default configuration to %s", path)
	return nil
}
