// Package main provides the playlistwatch CLI application entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"playlistwatch/internal/core"
	httpserver "playlistwatch/internal/http"
	"playlistwatch/internal/mail"
	"playlistwatch/internal/spotify"
	"playlistwatch/internal/store"
)

const defaultServerHost = "0.0.0.0"

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "playlistwatch",
	Short: "playlistwatch - Spotify playlist watcher with email notifications",
	Long: `playlistwatch polls configured Spotify playlists, detects newly added
tracks since the last observed state, and emails the members of the groups
subscribed to each playlist.`,
	RunE: runPlaylistwatch,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db-path", "./playlistwatch.db", "path to the sqlite database")
	rootCmd.PersistentFlags().Duration("poll-interval", time.Hour, "time between polling passes")
	rootCmd.PersistentFlags().Float64("spotify-rate-limit", 5, "Spotify API requests per second")
	rootCmd.PersistentFlags().Duration("spotify-fetch-timeout", 30*time.Second, "timeout for one playlist fetch")
	rootCmd.PersistentFlags().String("smtp-sender", "", "sender address for notification emails")
	rootCmd.PersistentFlags().String("smtp-host", "", "SMTP server host")
	rootCmd.PersistentFlags().Int("smtp-port", 465, "SMTP server port (implicit TLS)")
	rootCmd.PersistentFlags().String("smtp-password", "", "SMTP password for the sender account")
	rootCmd.PersistentFlags().Int("dispatch-concurrency", 4, "concurrent email deliveries per playlist")
	rootCmd.PersistentFlags().String("server-host", defaultServerHost, "HTTP server host")
	rootCmd.PersistentFlags().Int("server-port", 8080, "HTTP server port")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix("PLAYLISTWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	cfg.Database.Path = viper.GetString("db-path")
	cfg.Poll.Interval = viper.GetDuration("poll-interval")
	cfg.Spotify.RequestsPerSecond = viper.GetFloat64("spotify-rate-limit")
	cfg.Spotify.FetchTimeout = viper.GetDuration("spotify-fetch-timeout")
	cfg.Mail.Sender = viper.GetString("smtp-sender")
	cfg.Mail.Host = viper.GetString("smtp-host")
	cfg.Mail.Port = viper.GetInt("smtp-port")
	cfg.Mail.Password = viper.GetString("smtp-password")
	cfg.Dispatch.Concurrency = viper.GetInt("dispatch-concurrency")
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultServerHost
	}
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Log.Level = viper.GetString("log-level")

	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func validateConfig() error {
	if config.Database.Path == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if config.Poll.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", config.Poll.Interval)
	}
	if config.Dispatch.Concurrency <= 0 {
		return fmt.Errorf("dispatch concurrency must be positive, got %d", config.Dispatch.Concurrency)
	}
	return nil
}

func runPlaylistwatch(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting playlistwatch",
		zap.String("db_path", config.Database.Path),
		zap.Duration("poll_interval", config.Poll.Interval))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	services, err := initializeServices(ctx)
	if err != nil {
		return err
	}
	defer services.store.Close()

	return runServices(ctx, services)
}

type services struct {
	store       *store.Store
	coordinator *core.Coordinator
	httpServer  *httpserver.Server
}

func initializeServices(ctx context.Context) (*services, error) {
	st, err := store.Open(config.Database.Path, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	mailSettings, err := resolveMailSettings(ctx, st)
	if err != nil {
		st.Close()
		return nil, err
	}

	transport := mail.NewTransport(mailSettings, config.Mail.DialTimeout,
		config.Mail.SendTimeout, logger.Named("mail"))
	renderer := mail.NewRenderer()

	fetcher := spotify.NewClient(&config.Spotify, logger.Named("spotify"))
	seen := store.NewSeenTracks(10000, 0.001)

	httpServer := httpserver.NewServer(&config.Server, logger.Named("http"))

	resolver := core.NewResolver(st, logger.Named("resolver"))
	dispatcher := core.NewDispatcher(transport, renderer, config.Dispatch.Concurrency,
		logger.Named("dispatcher"))
	coordinator := core.NewCoordinator(config, st, st, fetcher, resolver, dispatcher,
		seen, httpServer, logger.Named("coordinator"))

	return &services{
		store:       st,
		coordinator: coordinator,
		httpServer:  httpServer,
	}, nil
}

// resolveMailSettings prefers the global_config row over flag/env values.
// The row is read once at startup; changes to it take effect on restart.
func resolveMailSettings(ctx context.Context, st *store.Store) (core.MailSettings, error) {
	settings := core.MailSettings{
		Sender:   config.Mail.Sender,
		Host:     config.Mail.Host,
		Port:     config.Mail.Port,
		Password: config.Mail.Password,
	}

	stored, err := st.MailSettings(ctx)
	if err != nil {
		return core.MailSettings{}, fmt.Errorf("failed to read mail settings: %w", err)
	}
	if stored != nil {
		if stored.Sender != "" {
			settings.Sender = stored.Sender
		}
		if stored.Host != "" {
			settings.Host = stored.Host
		}
		if stored.Port != 0 {
			settings.Port = stored.Port
		}
		if stored.Password != "" {
			settings.Password = stored.Password
		}
	}

	if settings.Host == "" || settings.Sender == "" {
		logger.Warn("Mail settings incomplete, notification delivery will fail",
			zap.String("host", settings.Host),
			zap.String("sender", settings.Sender))
	}

	return settings, nil
}

func runServices(ctx context.Context, svcs *services) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svcs.httpServer.Start(gCtx)
	})

	g.Go(func() error {
		return runPollLoop(gCtx, svcs.coordinator)
	})

	logger.Info("playlistwatch started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("playlistwatch stopped with error", zap.Error(err))
		return err
	}

	logger.Info("playlistwatch stopped gracefully")
	return nil
}

// runPollLoop runs one pass immediately, then one per interval until the
// context is cancelled.
func runPollLoop(ctx context.Context, coordinator *core.Coordinator) error {
	if err := coordinator.RunPass(ctx); err != nil {
		logger.Warn("Polling pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(config.Poll.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := coordinator.RunPass(ctx); err != nil {
				logger.Warn("Polling pass failed", zap.Error(err))
			}
		}
	}
}
