package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mlabs/kra_sdk_go/internal/devseed"
	"github.com/mlabs/kra_sdk_go/pkg/kra/mock"
)

const apiURLEnv = "KRA_API_URL"

func main() {
	addr := flag.String("addr", ":8787", "listen address")
	seedPath := flag.String("seed", "", "path to YAML or JSON seed for the fake API")
	latency := flag.Duration("latency", 0, "artificial latency to inject per request")
	fail := flag.String("fail", "", "failure rules separated by ';', e.g. path=/file/list,reply=contradict,rate=0.5;code=503,rate=0.1")
	singletons := flag.Bool("singletons", false, "answer one-entry listings with a bare object")
	logLevel := flag.String("log-level", "info", "log level")
	logFile := flag.String("log-file", "", "write logs to a rotated file")
	flag.Parse()

	logger := newLogger(*logLevel, *logFile)

	opts := []mock.Option{mock.WithLogger(logger)}
	if *singletons {
		opts = append(opts, mock.WithSingletonObjects())
	}
	srv := mock.New(opts...)
	if *seedPath != "" {
		seed, err := devseed.Load(*seedPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("load seed")
		}
		if err := srv.Seed(seed); err != nil {
			logger.Fatal().Err(err).Msg("apply seed")
		}
		logger.Info().Int("users", len(seed.Users)).Int("objects", len(seed.Objects)).Msg("seed applied")
	}

	failCfg, err := parseFailConfig(*fail)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse fail flag")
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           newRouter(srv, *latency, failCfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info().Str("addr", *addr).Msg("kra-sandbox listening")
	host := *addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	fmt.Println()
	fmt.Printf("export %s=http://%s/api\n", apiURLEnv, host)
	fmt.Println()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func newRouter(api http.Handler, delay time.Duration, failCfg failConfig, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(injectLatency(delay))
	r.Use(injectFailures(failCfg, logger))
	r.Mount(apiPrefix, api)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func newLogger(level, file string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if file != "" {
		out = &lumberjack.Logger{Filename: file, MaxSize: 50, MaxAge: 7, MaxBackups: 5}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
