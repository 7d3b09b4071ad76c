package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rmacdonaldsmith/pshare-go/internal/health"
	"github.com/rmacdonaldsmith/pshare-go/internal/httpapi"
	"github.com/rmacdonaldsmith/pshare-go/internal/localbus"
	"github.com/rmacdonaldsmith/pshare-go/internal/logging"
	"github.com/rmacdonaldsmith/pshare-go/internal/relay"
	"github.com/rmacdonaldsmith/pshare-go/internal/shareconfig"
)

func newApp(settings *shareconfig.Settings) *fx.App {
	return fx.New(appOptions(settings))
}

// appOptions assembles the relay process graph
func appOptions(settings *shareconfig.Settings) fx.Option {
	return fx.Options(
		fx.Supply(settings),
		fx.Provide(
			newLogger,
			newRegistry,
			newCommunity,
			newBusClient,
			newEngine,
		),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: logger.Named("fx")}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		fx.Invoke(startRelay, startHTTP, startHealth),
	)
}

func newLogger(lc fx.Lifecycle, s *shareconfig.Settings) (*zap.Logger, error) {
	logger, closer, err := logging.New(s.Log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(func() error {
		_ = logger.Sync()
		return closer.Close()
	}))
	return logger, nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newCommunity(lc fx.Lifecycle, s *shareconfig.Settings, logger *zap.Logger) (*localbus.Community, error) {
	community, err := localbus.NewCommunity(&localbus.Config{
		Name:   s.AppName,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(community.Close))
	return community, nil
}

func newBusClient(community *localbus.Community, s *shareconfig.Settings) (*localbus.Client, error) {
	return community.Connect(s.AppName)
}

func newEngine(lc fx.Lifecycle, s *shareconfig.Settings, bus *localbus.Client, reg *prometheus.Registry, logger *zap.Logger) (*relay.Engine, error) {
	cfg := relay.NewConfig(s.AppName)
	cfg.Aliases = s.Aliases()
	cfg.Verbose = s.Verbose
	cfg.Tick = s.AppTick
	cfg.Logger = logger
	cfg.Registerer = reg

	engine, err := relay.NewEngine(cfg, bus)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(engine.Close))
	return engine, nil
}

// startRelay applies the configured routes and runs the engine until stop
func startRelay(lc fx.Lifecycle, s *shareconfig.Settings, engine *relay.Engine, shutdowner fx.Shutdowner, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			if err := shareconfig.Apply(startCtx, engine.Parser(), engine, s); err != nil {
				logger.Warn("some configured routes were not added", zap.Error(err))
			}
			if err := engine.DoRegistrations(); err != nil {
				return err
			}
			engine.LogRoutes()

			go func() {
				defer close(done)
				if err := engine.Run(ctx); err != nil {
					logger.Error("relay stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func startHTTP(lc fx.Lifecycle, s *shareconfig.Settings, engine *relay.Engine, reg *prometheus.Registry, logger *zap.Logger) {
	if s.HTTPListen == "" {
		return
	}

	server := httpapi.NewServer(engine, httpapi.Config{
		Addr:      s.HTTPListen,
		SecretKey: s.JWTSecret,
		NoAuth:    s.NoAuth,
		Gatherer:  reg,
		Logger:    logger,
	})
	if s.NoAuth {
		logger.Warn("admin API authentication is disabled")
	}

	lc.Append(fx.Hook{
		OnStart: server.Start,
		OnStop: func(ctx context.Context) error {
			if err := server.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	})
}

func startHealth(lc fx.Lifecycle, s *shareconfig.Settings, logger *zap.Logger) {
	if s.GRPCHealthListen == "" {
		return
	}

	server := health.NewServer(s.GRPCHealthListen, logger)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := server.Start(ctx); err != nil {
				return err
			}
			server.SetServing(true)
			return nil
		},
		OnStop: func(context.Context) error {
			server.SetServing(false)
			server.Stop()
			return nil
		},
	})
}
