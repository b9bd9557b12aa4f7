package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	calendarcache "github.com/always-cache/calendar-cache"
	"github.com/always-cache/calendar-cache/api"
	"github.com/always-cache/calendar-cache/cache"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	configFilenameFlag    string
	portFlag              int
	realizationOriginFlag string
	storeFlag             string
	dbFilenameFlag        string
	coalesceFlag          bool
	upstreamTimeoutFlag   time.Duration
	verbosityTraceFlag    bool
	logFilenameFlag       string

	// this is set by goreleaser
	version string
)

func init() {
	defaults := defaultConfig()
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.IntVar(&portFlag, "port", defaults.Port, "Port to listen on (overrides config)")
	flag.StringVar(&realizationOriginFlag, "realization-origin", "", "Origin of the realization API (overrides config)")
	flag.StringVar(&storeFlag, "store", defaults.Store, "Payload store: 'memory' or 'sqlite' (overrides config)")
	flag.StringVar(&dbFilenameFlag, "db", defaults.DB, "SQLite DB file name for the sqlite store (use 'memory' for in-memory db)")
	flag.BoolVar(&coalesceFlag, "coalesce", false, "Share one upstream request between concurrent misses of a calendar")
	flag.DurationVar(&upstreamTimeoutFlag, "upstream-timeout", 0, "Timeout for upstream requests, 0 for none (overrides config)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Timestamp().Str("version", version).Logger()

	config := defaultConfig()
	if configFilenameFlag != "" {
		var err error
		if config, err = getConfig(configFilenameFlag); err != nil {
			log.Fatal().Err(err).Str("file", configFilenameFlag).Msg("Could not read config")
		}
	}
	config = applyFlags(config, setFlags())
	if err := config.validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	origin, err := url.Parse(config.RealizationOrigin)
	if err != nil || !origin.IsAbs() {
		log.Fatal().Err(err).Str("origin", config.RealizationOrigin).Msg("Could not parse realization origin")
	}

	store, closeStore, err := openStore(config)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not open payload store")
	}
	defer closeStore()

	client := &http.Client{Timeout: config.UpstreamTimeout}
	calendars := calendarcache.NewCalendarCache(calendarcache.CalendarConfig{
		Store:           store,
		Client:          client,
		Logger:          &log.Logger,
		CoalesceFetches: config.Coalesce,
	})
	realizations := calendarcache.NewRealizationCache(calendarcache.RealizationConfig{
		Store:  store,
		Origin: *origin,
		Client: client,
		Logger: &log.Logger,
	})
	server := &http.Server{
		Handler: api.NewRouter(api.Config{
			Calendars:    calendars,
			Realizations: realizations,
			Logger:       &log.Logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", config.Port))
	if err != nil {
		log.Fatal().Err(err).Int("port", config.Port).Msg("Could not listen")
	}
	log.Info().Msgf("Serving calendars on port %d (realizations from %s, %s store)", config.Port, origin.String(), config.Store)

	// warming the cache must not delay serving
	go calendarcache.Precache(ctx, calendars, config.Precache, &log.Logger)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Server stopped")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Could not shut down gracefully")
		}
	}
}

// setFlags returns the names of the flags given on the command line.
func setFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// applyFlags overrides config values with the flags given on the command line.
func applyFlags(config Config, set map[string]bool) Config {
	if set["port"] {
		config.Port = portFlag
	}
	if realizationOriginFlag != "" {
		config.RealizationOrigin = realizationOriginFlag
	}
	if set["store"] {
		config.Store = storeFlag
	}
	if set["db"] {
		config.DB = dbFilenameFlag
	}
	if set["coalesce"] {
		config.Coalesce = coalesceFlag
	}
	if set["upstream-timeout"] {
		config.UpstreamTimeout = upstreamTimeoutFlag
	}
	return config
}

func openStore(config Config) (cache.Store, func(), error) {
	if config.Store != storeSQLite {
		return cache.NewMemStore(0), func() {}, nil
	}
	// set up sqlite memory provider
	dbFilename := config.DB
	if dbFilename == "memory" {
		dbFilename = cache.MemoryDSN
	}
	store, err := cache.NewSQLiteStore(dbFilename)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Could not close payload store")
		}
	}, nil
}
