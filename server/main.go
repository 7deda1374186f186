package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/ponyo877/replicator/server/adaptor"
	"github.com/ponyo877/replicator/server/domain"
	"github.com/ponyo877/replicator/server/repository"
	"github.com/ponyo877/replicator/server/usecase"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	addrKey            = "addr"
	adminAddrKey       = "admin-addr"
	tickRateKey        = "tick-rate"
	sendBufferKey      = "send-buffer"
	writeWaitKey       = "write-wait"
	pongWaitKey        = "pong-wait"
	maxMessageBytesKey = "max-message-bytes"
	historyDBKey       = "history-db"
	redisAddrKey       = "redis-addr"
	redisDBKey         = "redis-db"
	corsOriginsKey     = "cors-origins"
	logLevelKey        = "log-level"
	logFormatKey       = "log-format"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "replicator",
	Short: "Relays head and hand poses between clients sharing a room",
	Long: `replicator accepts websocket connections on any path, treats the path as a
room name and sends every member the state of the whole room at a fixed rate.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		logger := setupLogger(cfg.LogLevel, cfg.LogFormat)

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return run(ctx, cfg, logger)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := domain.NewConfig()
	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./replicator.yaml)")
	flags.String(addrKey, defaults.Addr, "websocket and HTTP listen address")
	flags.String(adminAddrKey, defaults.AdminAddr, "gRPC health listen address, empty disables it")
	flags.Int(tickRateKey, defaults.TickRate, "room snapshots per second")
	flags.Int(sendBufferKey, defaults.SendBuffer, "outbound frames queued per connection")
	flags.Duration(writeWaitKey, defaults.WriteWait, "deadline for a single websocket write")
	flags.Duration(pongWaitKey, defaults.PongWait, "how long a silent connection is kept")
	flags.Int64(maxMessageBytesKey, defaults.MaxMessageBytes, "largest accepted client frame")
	flags.String(historyDBKey, "", "sqlite file for session history, empty disables it")
	flags.String(redisAddrKey, "", "redis address to mirror room snapshots to, empty disables it")
	flags.Int(redisDBKey, 0, "redis database")
	flags.StringSlice(corsOriginsKey, defaults.CORSOrigins, "allowed CORS origins")
	flags.String(logLevelKey, defaults.LogLevel, "log level (debug, info, warn, error)")
	flags.String(logFormatKey, defaults.LogFormat, "log format (text, json)")

	for _, key := range []string{
		addrKey, adminAddrKey, tickRateKey, sendBufferKey, writeWaitKey, pongWaitKey,
		maxMessageBytesKey, historyDBKey, redisAddrKey, redisDBKey, corsOriginsKey,
		logLevelKey, logFormatKey,
	} {
		viper.BindPFlag(key, flags.Lookup(key))
	}
}

func initConfig() {
	// local .env only
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("replicator")
	}

	viper.SetEnvPrefix("replicator")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}

func loadConfig() domain.Config {
	cfg := domain.Config{
		Addr:            viper.GetString(addrKey),
		AdminAddr:       viper.GetString(adminAddrKey),
		TickRate:        viper.GetInt(tickRateKey),
		SendBuffer:      viper.GetInt(sendBufferKey),
		WriteWait:       viper.GetDuration(writeWaitKey),
		PongWait:        viper.GetDuration(pongWaitKey),
		MaxMessageBytes: viper.GetInt64(maxMessageBytesKey),
		HistoryDB:       viper.GetString(historyDBKey),
		RedisAddr:       viper.GetString(redisAddrKey),
		RedisDB:         viper.GetInt(redisDBKey),
		CORSOrigins:     viper.GetStringSlice(corsOriginsKey),
		LogLevel:        viper.GetString(logLevelKey),
		LogFormat:       viper.GetString(logFormatKey),
	}
	// PORT is what hosting platforms hand us
	if port := os.Getenv("PORT"); port != "" {
		host, _, err := net.SplitHostPort(cfg.Addr)
		if err != nil {
			host = ""
		}
		cfg.Addr = net.JoinHostPort(host, port)
	}
	return cfg
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func run(ctx context.Context, cfg domain.Config, logger *slog.Logger) error {
	sm := domain.NewStreamManager(domain.WithSendBuffer(cfg.SendBuffer))

	var repo usecase.Repository
	if cfg.HistoryDB != "" {
		db, err := repository.Open(cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = repository.NewRepository(db)
		logger.Info("history.enabled", "path", cfg.HistoryDB)
	}

	var mirror usecase.Mirror
	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		m, err := repository.NewRedisMirror(pingCtx, cfg.RedisAddr, cfg.RedisDB, logger)
		cancel()
		if err != nil {
			return err
		}
		defer m.Close()
		go m.Run(ctx)
		mirror = m
		logger.Info("mirror.enabled", "addr", cfg.RedisAddr)
	}

	recorder := usecase.NewRecorder(repo, 256, logger)
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	recorderDone := make(chan struct{})
	go func() {
		recorder.Run(recorderCtx)
		close(recorderDone)
	}()

	relay := usecase.NewRelayUsecase(sm, recorder, logger)
	uc := usecase.NewUsecase(repo, sm)
	broadcaster := usecase.NewBroadcaster(sm, cfg.TickInterval(), mirror, logger)

	metrics := adaptor.NewMetrics(uc, broadcaster.Ticks)
	ws := adaptor.NewAdaptor(relay, cfg, logger)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           adaptor.NewRouter(ws, uc, metrics.Handler(), cfg.CORSOrigins, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var health *adaptor.HealthServer
	if cfg.AdminAddr != "" {
		lis, err := net.Listen("tcp", cfg.AdminAddr)
		if err != nil {
			stopRecorder()
			<-recorderDone
			return fmt.Errorf("failed to listen on %s: %w", cfg.AdminAddr, err)
		}
		health = adaptor.NewHealthServer()
		go func() {
			logger.Info("admin.listening", "addr", cfg.AdminAddr)
			if err := health.Serve(lis); err != nil {
				logger.Error("admin.crash", "error", err)
			}
		}()
	}

	broadcastCtx, stopBroadcast := context.WithCancel(context.Background())
	broadcastDone := make(chan struct{})
	go func() {
		broadcaster.Run(broadcastCtx)
		close(broadcastDone)
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server.listening", "addr", cfg.Addr, "tick_rate", cfg.TickRate)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	if health != nil {
		health.SetServing(true)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("server crashed: %w", err)
	}
	logger.Info("server.shutdown.start")

	if health != nil {
		health.SetServing(false)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server.shutdown.failed", "error", err)
	}

	stopBroadcast()
	<-broadcastDone

	// hijacked websocket connections outlive srv.Shutdown
	for _, session := range sm.Cleanup() {
		relay.Disconnect(session, nil)
	}

	stopRecorder()
	<-recorderDone
	if health != nil {
		health.Stop()
	}
	logger.Info("server.shutdown.done")
	return runErr
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
