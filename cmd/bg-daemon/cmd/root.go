package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go-bg-daemon/internal/api"
	"go-bg-daemon/internal/config"
	"go-bg-daemon/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Persistent flag values
var (
	cfgFile      string
	homeFlag     string
	logLevel     string
	logFormat    string
	logApiFlag   bool
	progressFlag bool
	targetFlag   string
	modeFlag     string
)

// globalConfig holds the loaded configuration
var globalConfig models.Config

// globalHttpTransport is the base or logging-wrapped transport for API calls
var globalHttpTransport http.RoundTripper = http.DefaultTransport

// globalCliFlags is what PersistentPreRunE handed to config.Initialize
var globalCliFlags config.CliFlags

var logFile *os.File

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bg-daemon",
	Short: "Keep your wallpaper fresh with images from Imgur",
	Long: `bg-daemon periodically picks an image from the Imgur gallery that matches
your size and keyword settings and writes it over your wallpaper file.

Run without a subcommand it behaves like "poll": it updates the wallpaper
only when the configured frequency has elapsed. Schedule it with cron or a
systemd timer.`,
	PersistentPreRunE:  loadGlobalConfig,
	PersistentPostRunE: closeGlobalResources,
	SilenceUsage:       true,
	RunE:               runPoll,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// execute runs the root command and releases global resources afterwards.
// Cobra skips PersistentPostRunE when a command fails.
func execute(ctx context.Context) error {
	defer func() { _ = closeGlobalResources(rootCmd, nil) }()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default is {home}/config.toml)")
	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", "", "State directory for timestamp, history and backups (default ~/.bg_daemon)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Logging level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", config.DefaultLogFormat, "Logging format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&logApiFlag, "log-api", false, "Log API requests/responses to {home}/api.log (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&progressFlag, "progress", false, "Show live download progress")
	rootCmd.PersistentFlags().StringVar(&targetFlag, "target", "", "Wallpaper file or directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "Selection mode: recent or keywords (overrides config)")

	rootCmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "Update now regardless of the schedule")
}

// cliFlags collects only the flags the user actually set.
func cliFlags(cmd *cobra.Command) config.CliFlags {
	var flags config.CliFlags
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("config") {
		flags.ConfigFilePath = &cfgFile
	}
	if changed("home") {
		flags.Home = &homeFlag
	}
	if changed("log-level") {
		flags.LogLevel = &logLevel
	}
	if changed("log-format") {
		flags.LogFormat = &logFormat
	}
	if changed("log-api") {
		flags.LogApiRequests = &logApiFlag
	}
	if changed("target") {
		flags.Target = &targetFlag
	}
	if changed("mode") {
		flags.Mode = &modeFlag
	}
	return flags
}

// loadGlobalConfig loads the configuration, applies flag overrides and sets up logging.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	// log level from flags first, so config loading itself can be traced
	if err := initLogging(logLevel, logFormat, ""); err != nil {
		return err
	}

	globalCliFlags = cliFlags(cmd)
	cfg, transport, err := config.Initialize(globalCliFlags)
	if err != nil {
		return err
	}
	globalConfig = cfg
	globalHttpTransport = transport

	return initLogging(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
}

// initLogging configures the package-level logrus logger. A non-empty
// logFilePath tees output into that file.
func initLogging(level, format, logFilePath string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q (expected text or json)", format)
	}

	if logFilePath == "" || logFile != nil {
		return nil
	}
	// #nosec G304
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.WithError(err).Warnf("Could not open log file %s, logging to stderr only", logFilePath)
		return nil
	}
	logFile = f
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

func closeGlobalResources(cmd *cobra.Command, args []string) error {
	if lt, ok := globalHttpTransport.(*api.LoggingTransport); ok {
		if err := lt.Close(); err != nil {
			log.WithError(err).Warn("Failed to close API log")
		}
		globalHttpTransport = http.DefaultTransport
	}
	if logFile != nil {
		log.SetOutput(os.Stderr)
		_ = logFile.Close()
		logFile = nil
	}
	return nil
}
