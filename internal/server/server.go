package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Omprakash1353/Social-Media-Server/internal/auth"
	"github.com/Omprakash1353/Social-Media-Server/internal/metrics"
	"github.com/Omprakash1353/Social-Media-Server/internal/presence"
	"github.com/Omprakash1353/Social-Media-Server/internal/relay"
	"github.com/Omprakash1353/Social-Media-Server/internal/router"
	"github.com/Omprakash1353/Social-Media-Server/internal/server/middleware"
	"github.com/Omprakash1353/Social-Media-Server/internal/signaling"
	"github.com/Omprakash1353/Social-Media-Server/internal/store"
	"github.com/Omprakash1353/Social-Media-Server/pkg/config"
	"github.com/Omprakash1353/Social-Media-Server/pkg/state"
	"github.com/Omprakash1353/Social-Media-Server/pkg/state/statemanager"
	"github.com/Omprakash1353/Social-Media-Server/pkg/transport"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// App owns every component of the gateway and drives each connection
// through its lifecycle: authenticate, register, broadcast presence,
// dispatch events, and on disconnect deregister, broadcast presence and
// record last-seen.
type App struct {
	logger      *slog.Logger
	registry    state.Registry
	eventRouter *router.EventRouter
	presence    *presence.Notifier
	messages    *relay.MessageRelay
	typing      *relay.TypingRelay
	broker      *signaling.Broker
	store       *store.SQLiteStore
	metrics     *metrics.Metrics
	wg          sync.WaitGroup
	http        *http.Server
	config      *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config) (*App, error) {
	db, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}

	registry := statemanager.NewInMemoryManager(logger)
	m := metrics.New()

	app := &App{
		logger:      logger,
		registry:    registry,
		eventRouter: router.NewEventRouter(logger, registry, m),
		presence:    presence.NewNotifier(logger, registry, db),
		messages:    relay.NewMessageRelay(logger, registry, db),
		typing:      relay.NewTypingRelay(logger, registry),
		broker:      signaling.NewBroker(logger, registry),
		store:       db,
		metrics:     m,
		config:      cfg,
		ctx:         rootCtx,
	}
	app.registerHandlers()

	verifier := auth.NewVerifier(cfg.Server.Auth.JWTSecret, db)

	mux := http.NewServeMux()
	mux.Handle("/ws",
		middleware.Chain(http.HandlerFunc(app.upgradeHandler),
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
			middleware.NewAuthMiddleware(logger, verifier, m.AuthFailures),
		),
	)
	if cfg.Metrics.Enabled {
		mux.Handle("/metrics", m.Handler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	app.http = &http.Server{Addr: cfg.Server.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app, nil
}

// Handler exposes the wired HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.http.Handler
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	account := reqMeta.Account
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("identity", account.ID),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		nil,
		nil,
		a.logger,
	)

	// Handshaking -> Authenticated: cache the sender snapshot and take the
	// identity's registry slot (a concurrent login overwrites it).
	sender := state.SenderInfo{ID: account.ID, Name: account.Name}
	stateConn := a.registry.Register(account.ID, sender, conn)
	a.metrics.ActiveConnections.Inc()

	conn.SetOnMessageHandler(a.eventRouter.HandleMessage)
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		a.handleDisconnect(connLogger, account.ID, id)
	})

	// Fire-and-forget: a failed broadcast must not abort the handshake.
	go a.presence.Notify(a.ctx, account.ID, true)

	connLogger.Info("User connection fully established",
		slog.String("connID", stateConn.ID.String()),
	)
	conn.Run()
	<-conn.Done()
}

// handleDisconnect drives Authenticated -> Disconnected: deregister
// (guarded by connection id), broadcast offline, record last-seen. A stale
// disconnect of an evicted session is ignored entirely so it cannot
// broadcast offline while the newer session lives.
func (a *App) handleDisconnect(connLogger *slog.Logger, identity string, connID uuid.UUID) {
	a.metrics.ActiveConnections.Dec()

	if removed := a.registry.Deregister(identity, connID); !removed {
		connLogger.Debug("Skipping disconnect side effects for stale connection",
			slog.String("connID", connID.String()),
		)
		return
	}
	connLogger.Info("User disconnected", slog.String("connID", connID.String()))

	go a.presence.Notify(a.ctx, identity, false)
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(a.ctx), 5*time.Second)
		defer cancel()
		if err := a.store.UpdateLastSeen(ctx, identity, time.Now()); err != nil {
			// Logged only; a disconnect always completes cleanly from the
			// transport's point of view.
			connLogger.Error("Failed to update last seen", slog.Any("error", err))
		}
	}()
}

// Shutdown runs the graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, conn := range a.registry.Connections() {
		conn.Link.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()

	if err := a.store.Close(); err != nil {
		a.logger.Error("Failed to close store", slog.Any("error", err))
	}
	a.logger.Info("Server shut down gracefully.")
	return nil
}
