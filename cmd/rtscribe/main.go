// Command rtscribe streams mono PCM16 from stdin into a realtime
// transcription session and prints the user transcript as it completes.
//
//	arecord -f S16_LE -r 24000 -c 1 -t raw | rtscribe -config rtscribe.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/codewandler/rtscribe"
	"github.com/codewandler/rtscribe/config"
	"github.com/codewandler/rtscribe/transport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rtscribe: %v\n", err)
			return 1
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel.Level()}))
	slog.SetDefault(logger)

	mp, err := newMeterProvider()
	if err != nil {
		logger.Error("failed to set up metrics", slog.Any("err", err))
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mp.Shutdown(ctx); err != nil {
			logger.Warn("metrics shutdown failed", slog.Any("err", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	profile := cfg.Profile()
	tr := transport.NewWebsocket(
		transport.WithURL(cfg.API.RealtimeURL),
		transport.WithModel(profile.Defaults.Model),
		transport.WithSampleRate(cfg.Audio.SampleRate),
		transport.WithLatency(cfg.Audio.LatencyMS),
		transport.WithLogger(logger),
	)

	g, gctx := errgroup.WithContext(ctx)
	sessCtx, endSession := context.WithCancelCause(gctx)
	defer endSession(nil)

	printer := newTranscriptPrinter(os.Stdout)
	ctrl := rtscribe.New(tr,
		rtscribe.WithLogger(logger),
		rtscribe.WithBaseURL(cfg.API.BaseURL),
		rtscribe.WithEnvKey(cfg.API.KeyEnv...),
		rtscribe.WithProfile(profile),
		rtscribe.WithMeterProvider(mp),
		rtscribe.WithStatusHandler(func(s rtscribe.Status) {
			logger.Info("status changed", slog.String("status", s.String()))
		}),
		rtscribe.WithEventHandler(printer.OnEvent),
		rtscribe.WithSessionEndedHandler(func(err error) {
			endSession(err)
		}),
	)

	printer.conversation = ctrl.Conversation

	status, err := ctrl.Refresh(ctx)
	if err != nil {
		logger.Error("failed to look up API key", slog.Any("err", err))
		return 1
	}
	if status == rtscribe.StatusUnavailable {
		logger.Error("no API key found", slog.Any("env", envNames(cfg.API.KeyEnv)))
		return 1
	}

	if addr := cfg.Metrics.ListenAddr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("serving metrics", slog.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := ctrl.Start(ctx, rtscribe.SessionConfig{}); err != nil {
		logger.Error("failed to start session", slog.Any("err", err))
		stop()
		_ = g.Wait()
		return 1
	}

	g.Go(func() error {
		defer endSession(nil)
		_, err := io.Copy(tr, os.Stdin)
		if err != nil && !errors.Is(err, transport.ErrNotStarted) {
			return fmt.Errorf("read audio: %w", err)
		}
		logger.Info("audio input ended")
		return nil
	})

	g.Go(func() error {
		<-sessCtx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ctrl.Stop(stopCtx); err != nil {
			logger.Warn("stop failed", slog.Any("err", err))
		}
		if cause := context.Cause(sessCtx); cause != nil && !errors.Is(cause, context.Canceled) {
			return cause
		}
		stop()
		return nil
	})

	err = g.Wait()
	printer.Flush(ctrl.Conversation())
	stats := ctrl.Stats()
	logger.Info("session finished",
		slog.Int("events", stats.Applied+stats.Ignored+stats.Dropped),
		slog.Int("dropped", stats.Dropped),
	)
	if err != nil {
		logger.Error("session failed", slog.Any("err", err))
		return 1
	}
	return 0
}

func newMeterProvider() (*sdkmetric.MeterProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName("rtscribe")),
	)
	if err != nil {
		return nil, err
	}
	exp, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exp),
	), nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func envNames(vars []string) string {
	if len(vars) == 0 {
		vars = []string{rtscribe.ApiKeyEnvVarNameLong, rtscribe.ApiKeyEnvVarNameShort, rtscribe.ApiKeyEnvVarNameVite}
	}
	return strings.Join(vars, ",")
}
