package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/connect4-backend/internal/bot"
	"github.com/DoyleJ11/connect4-backend/internal/config"
	"github.com/DoyleJ11/connect4-backend/internal/httpapi"
	"github.com/DoyleJ11/connect4-backend/internal/matchmaker"
	"github.com/DoyleJ11/connect4-backend/internal/metrics"
	"github.com/DoyleJ11/connect4-backend/internal/recorder"
	"github.com/DoyleJ11/connect4-backend/internal/session"
	"github.com/DoyleJ11/connect4-backend/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, _ []string) (err error) {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	store, err := recorder.OpenStore(ctx, cfg.Store())
	if err != nil {
		logger.Error("open store", zap.Error(err))
		return err
	}
	rec := recorder.New(store, recorder.WithLogger(logger))
	defer func() { err = multierr.Append(err, rec.Close()) }()

	m := metrics.New()
	mm := matchmaker.New(ctx,
		matchmaker.WithLogger(logger),
		matchmaker.WithMetrics(m),
		matchmaker.WithBotWait(cfg.BotWait),
		matchmaker.WithSessionOptions(
			session.WithTimings(session.Timings{
				Grace:     cfg.GracePeriod,
				Retention: cfg.Retention,
				BotDelay:  cfg.BotMoveDelay,
			}),
			session.WithRecorder(rec),
			session.WithStrategy(strategyFor(cfg.BotStrategy)),
		))

	gw := ws.New(mm,
		ws.WithLogger(logger),
		ws.WithMetrics(m),
		ws.WithTimeouts(cfg.WSIdleTimeout, cfg.WSPingInterval, cfg.WSWriteTimeout),
		ws.WithOriginPatterns(originPatterns(cfg.CORSOrigins)...))

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Gateway:     gw,
			Standings:   rec,
			Metrics:     m,
			Logger:      logger,
			CORSOrigins: cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(sctx)
		// websocket connections are hijacked, so Shutdown does not wait for
		// them; stopping the matchmaker closes every session outbox instead
		mm.Shutdown()
		select {
		case <-mm.Done():
		case <-sctx.Done():
		}
		return err
	})
	return g.Wait()
}

func strategyFor(name string) bot.Strategy {
	if name == config.BotRandom {
		return bot.NewRandom(time.Now().UnixNano())
	}
	return bot.Heuristic{}
}

// originPatterns turns CORS origins into the host patterns websocket.Accept expects.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}
