package daemon

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/matheus3301/stagechat/internal/api"
	"github.com/matheus3301/stagechat/internal/bus"
	"github.com/matheus3301/stagechat/internal/config"
	"github.com/matheus3301/stagechat/internal/instance"
	"github.com/matheus3301/stagechat/internal/lock"
	"github.com/matheus3301/stagechat/internal/logging"
	"github.com/matheus3301/stagechat/internal/messaging"
	"github.com/matheus3301/stagechat/internal/status"
	"github.com/matheus3301/stagechat/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved instance configuration passed to the fx module.
type Params struct {
	Instance   string
	Config     *config.Config
	SocketPath string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	if p.Config == nil {
		p.Config = config.Default()
	}
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideClock,
			provideStore,
			provideCore,
			provideMessagingService,
			NewServer,
			NewMetricsServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(instance.LogPath(p.Instance), p.Instance, p.Config.Log.Level)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := instance.EnsureDir(p.Instance); err != nil {
		return nil, err
	}
	logger.Info("acquiring instance lock", zap.String("instance", p.Instance))
	l, err := lock.Acquire(instance.Dir(p.Instance))
	if err != nil {
		return nil, err
	}
	logger.Info("instance lock acquired", zap.Int("pid", l.Holder().PID))
	return l, nil
}

func provideClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

// provideStore depends on the lock so that no two daemons open the same
// instance database.
func provideStore(p Params, _ *lock.Lock, machine *status.Machine, logger *zap.Logger) (*store.DB, error) {
	opts := store.Options{
		Driver:  p.Config.Store.Driver,
		DSN:     p.Config.Store.DSN,
		Timeout: p.Config.Store.Timeout.Duration,
	}
	if opts.DSN == "" {
		opts.Driver = store.DriverSQLite
		opts.DSN = instance.DBPath(p.Instance)
	}

	db, err := store.Open(opts)
	if err != nil {
		machine.Fail()
		return nil, err
	}
	if err := machine.Transition(status.Migrating); err != nil {
		_ = db.Close()
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		machine.Fail()
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("driver", db.Driver()))
	return db, nil
}

func provideCore(p Params, db *store.DB, b *bus.Bus, clock clockwork.Clock, logger *zap.Logger) (*messaging.Core, error) {
	m := p.Config.Messaging
	return messaging.New(db, b, logger.Named("messaging"), clock, messaging.Options{
		MaxMessageLength: m.MaxMessageLength,
		DefaultPageSize:  m.DefaultPageSize,
		MaxPageSize:      m.MaxPageSize,
		DirectCacheSize:  m.DirectCacheSize,
	})
}

func provideMessagingService(p Params, core *messaging.Core, db *store.DB, b *bus.Bus, m *status.Machine, logger *zap.Logger) *api.MessagingService {
	return api.NewMessagingService(p.Instance, core, db, b, m, logger.Named("api"))
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, metrics *MetricsServer, lk *lock.Lock, db *store.DB, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
					machine.Fail()
				}
			}()

			if err := metrics.Start(); err != nil {
				return err
			}
			return machine.Transition(status.Serving)
		},
		OnStop: func(ctx context.Context) error {
			_ = machine.Transition(status.Draining)
			srv.Stop(ctx)
			if err := metrics.Stop(ctx); err != nil {
				logger.Warn("error stopping metrics server", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			_ = machine.Transition(status.Stopped)
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
