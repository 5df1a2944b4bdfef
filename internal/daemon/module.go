// Package daemon composes the sync core into a runnable application
// using fx. The daemon owns the profile lock, the SQLite cache, the
// realtime connection and the sync engine; the api services are the
// facade an embedding shell talks to.
package daemon

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/jpcarvalho/lume/internal/api"
	"github.com/jpcarvalho/lume/internal/bus"
	"github.com/jpcarvalho/lume/internal/config"
	"github.com/jpcarvalho/lume/internal/lock"
	"github.com/jpcarvalho/lume/internal/logging"
	"github.com/jpcarvalho/lume/internal/outbox"
	"github.com/jpcarvalho/lume/internal/realtime"
	"github.com/jpcarvalho/lume/internal/remote"
	"github.com/jpcarvalho/lume/internal/session"
	"github.com/jpcarvalho/lume/internal/status"
	"github.com/jpcarvalho/lume/internal/store"
	intsync "github.com/jpcarvalho/lume/internal/sync"
)

// Params holds the resolved profile and configuration passed to the fx module.
type Params struct {
	Profile string
	Config  *config.Config
}

// App is a running daemon with its service facade populated.
type App struct {
	Chats    *api.ChatService
	Messages *api.MessageService
	Matches  *api.MatchService
	Status   *status.Machine

	fxApp *fx.App
}

// New builds the daemon application. Construction errors (bad profile,
// lock held, migration failure) surface from Err or Run.
func New(p Params) *App {
	a := &App{}
	a.fxApp = fx.New(
		Module(p),
		fx.Populate(&a.Chats, &a.Messages, &a.Matches, &a.Status),
	)
	return a
}

// Run starts the daemon and blocks until shutdown.
func (a *App) Run() { a.fxApp.Run() }

// Err reports any error from dependency construction.
func (a *App) Err() error { return a.fxApp.Err() }

// Start and Stop expose the fx lifecycle for embedders that manage
// their own signal handling.
func (a *App) Start(ctx context.Context) error { return a.fxApp.Start(ctx) }
func (a *App) Stop(ctx context.Context) error  { return a.fxApp.Stop(ctx) }

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideViewer,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideRemote,
			provideSyncEngine,
			provideSender,
			provideRealtimeClient,
			provideHandler,
			provideReviewPrompter,
			provideChatService,
			provideMessageService,
			provideMatchService,
		),
		fx.Invoke(registerLifecycle),
	)
}

// viewer identifies the local user within the active profile.
type viewer struct {
	ID string
}

func provideViewer(p Params) (viewer, error) {
	prof, ok := p.Config.Profiles[p.Profile]
	if !ok {
		return viewer{}, fmt.Errorf("profile %q not found in config", p.Profile)
	}
	if prof.UserID == "" {
		return viewer{}, fmt.Errorf("profile %q has no user_id", p.Profile)
	}
	if p.Config.Backend.APIURL == "" || p.Config.Backend.RealtimeURL == "" {
		return viewer{}, fmt.Errorf("config is missing backend endpoints")
	}
	return viewer{ID: prof.UserID}, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.Profile), p.Profile)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(session.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRemote(p Params, v viewer) remote.Client {
	return remote.NewHTTPClient(p.Config.Backend.APIURL, p.Config.Backend.APIKey, v.ID)
}

func provideSyncEngine(p Params, db *store.DB, client remote.Client, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	debounce := time.Duration(p.Config.SyncDebounceMs) * time.Millisecond
	return intsync.NewEngine(db, client, b, logger, debounce)
}

func provideSender(db *store.DB, client remote.Client, b *bus.Bus, v viewer, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, client, b, logger, v.ID)
}

func provideRealtimeClient(p Params, v viewer, b *bus.Bus, logger *zap.Logger) *realtime.Client {
	return realtime.NewClient(p.Config.Backend.RealtimeURL, p.Config.Backend.APIKey, v.ID, b, logger)
}

func provideReviewPrompter(b *bus.Bus, logger *zap.Logger) realtime.ReviewPrompter {
	return newReviewPrompter(b, logger)
}

func provideHandler(db *store.DB, b *bus.Bus, engine *intsync.Engine, review realtime.ReviewPrompter, v viewer, logger *zap.Logger) *realtime.Handler {
	return realtime.NewHandler(db, b, engine, review, logger, v.ID)
}

func provideChatService(db *store.DB, client remote.Client, b *bus.Bus, logger *zap.Logger) *api.ChatService {
	return api.NewChatService(db, client, b, logger)
}

func provideMessageService(db *store.DB, sender *outbox.Sender, b *bus.Bus, logger *zap.Logger) *api.MessageService {
	return api.NewMessageService(db, sender, b, logger)
}

func provideMatchService(db *store.DB, b *bus.Bus, logger *zap.Logger) *api.MatchService {
	return api.NewMatchService(db, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *store.DB, engine *intsync.Engine, rt *realtime.Client, handler *realtime.Handler, machine *status.Machine, b *bus.Bus, v viewer, logger *zap.Logger) {
	var (
		topics  *chatTopics
		rtSub   *bus.Subscription
		syncSub *bus.Subscription
		done    chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			_ = machine.Transition(status.Connecting)

			// Viewer-scoped topics carry match and chat lifecycle
			// events; per-chat message topics are managed separately
			// as chats come and go.
			rt.Subscribe("user."+v.ID+".matches", handler.HandleEnvelope)
			rt.Subscribe("user."+v.ID+".chats", handler.HandleEnvelope)
			topics = newChatTopics(db, rt, handler, b, logger)
			if err := topics.Start(); err != nil {
				return err
			}

			rtSub = b.Subscribe("realtime.", 64)
			syncSub = b.Subscribe("sync.", 64)
			done = make(chan struct{})
			go func() {
				defer close(done)
				for {
					select {
					case evt, ok := <-rtSub.C:
						if !ok {
							return
						}
						switch evt.Kind {
						case realtime.KindConnected:
							// Every reconnect reconciles before the
							// cache is trusted again.
							_ = machine.Transition(status.Syncing)
							engine.Trigger()
						case realtime.KindDisconnected:
							_ = machine.Transition(status.Degraded)
						}
					case evt, ok := <-syncSub.C:
						if !ok {
							return
						}
						switch evt.Kind {
						case bus.KindSyncCompleted:
							_ = machine.Transition(status.Ready)
						case bus.KindSyncFailed:
							_ = machine.Transition(status.Degraded)
						}
					}
				}
			}()

			rt.Start(context.Background())

			// Cold-start reconciliation.
			engine.Trigger()

			logger.Info("daemon started", zap.String("viewer", v.ID))
			return nil
		},
		OnStop: func(_ context.Context) error {
			rt.Stop()
			engine.Stop()
			if topics != nil {
				topics.Stop()
			}
			if rtSub != nil {
				rtSub.Close()
			}
			if syncSub != nil {
				syncSub.Close()
			}
			if done != nil {
				<-done
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
