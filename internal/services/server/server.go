// Package server accepts WebSocket connections and runs one session per
// connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/codestream/internal/session"
)

const (
	defaultListenAddress    = ":8080"
	defaultSessionPath      = "/ws"
	defaultShutdownDuration = 5 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultReadLimitBytes   = 1 << 20
	rootPath                = "/"
)

// Config defines runtime options for the session server.
type Config struct {
	Address         string
	Path            string
	ShutdownTimeout time.Duration
	WriteTimeout    time.Duration
	ReadLimitBytes  int64
	Session         session.Dependencies
	Logger          *zap.Logger
}

// Server upgrades requests on Config.Path and serves a liveness check on /.
type Server struct {
	config   Config
	upgrader websocket.Upgrader
	sessions *sync.WaitGroup
}

// NewServer creates a new Server with defaults applied.
func NewServer(config Config) Server {
	normalized := config
	if normalized.Address == "" {
		normalized.Address = defaultListenAddress
	}
	if normalized.Path == "" {
		normalized.Path = defaultSessionPath
	}
	if normalized.ShutdownTimeout <= 0 {
		normalized.ShutdownTimeout = defaultShutdownDuration
	}
	if normalized.WriteTimeout <= 0 {
		normalized.WriteTimeout = defaultWriteTimeout
	}
	if normalized.ReadLimitBytes <= 0 {
		normalized.ReadLimitBytes = defaultReadLimitBytes
	}
	if normalized.Logger == nil {
		normalized.Logger = zap.NewNop()
	}
	return Server{
		config: normalized,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sessions: &sync.WaitGroup{},
	}
}

// Handler routes the liveness check and the session endpoint.
func (server Server) Handler() http.Handler {
	router := http.NewServeMux()
	router.HandleFunc(rootPath, server.handleRoot)
	router.HandleFunc(server.config.Path, server.handleSession)
	return router
}

// Run starts the server and blocks until the provided context is canceled.
// The notify callback receives the bound address once the listener is active.
// Open sessions are canceled on shutdown and awaited up to ShutdownTimeout.
func (server Server) Run(ctx context.Context, notify func(string)) error {
	listener, listenErr := net.Listen("tcp", server.config.Address)
	if listenErr != nil {
		return fmt.Errorf("listen on %s: %w", server.config.Address, listenErr)
	}
	actualAddress := listener.Addr().String()

	group, groupCtx := errgroup.WithContext(ctx)
	httpServer := &http.Server{
		Handler:     server.Handler(),
		BaseContext: func(net.Listener) context.Context { return groupCtx },
	}

	group.Go(func() error {
		serveErr := httpServer.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve sessions: %w", serveErr)
		}
		return nil
	})

	if notify != nil {
		notify(actualAddress)
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.config.ShutdownTimeout)
		defer cancel()
		shutdownErr := httpServer.Shutdown(shutdownCtx)
		if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) && !errors.Is(shutdownErr, http.ErrServerClosed) {
			return fmt.Errorf("shutdown sessions: %w", shutdownErr)
		}
		return server.awaitSessions(shutdownCtx)
	})

	return group.Wait()
}

func (server Server) awaitSessions(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		server.sessions.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("await open sessions: %w", ctx.Err())
	}
}

func (server Server) handleRoot(writer http.ResponseWriter, request *http.Request) {
	if request.URL.Path != rootPath {
		http.NotFound(writer, request)
		return
	}
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writer.WriteHeader(http.StatusOK)
}

func (server Server) handleSession(writer http.ResponseWriter, request *http.Request) {
	// Registered before the upgrade hijacks the connection, while Shutdown
	// still counts it as active.
	server.sessions.Add(1)
	defer server.sessions.Done()

	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sessionID := uuid.NewString()
	logger := server.config.Logger.With(
		zap.String("session", sessionID),
		zap.String("remote", request.RemoteAddr),
	)

	websocketConnection, upgradeErr := server.upgrader.Upgrade(writer, request, nil)
	if upgradeErr != nil {
		// Upgrade has already replied with an HTTP error.
		logger.Debug("websocket upgrade failed", zap.Error(upgradeErr))
		return
	}
	conn := newWebsocketConn(websocketConnection, server.config.WriteTimeout, server.config.Session.PingInterval, server.config.ReadLimitBytes)

	controller, controllerErr := session.New(server.config.Session, logger)
	if controllerErr != nil {
		logger.Error("session setup failed", zap.Error(controllerErr))
		_ = conn.Close()
		return
	}

	logger.Info("session opened")
	startedAt := time.Now()
	if runErr := controller.Run(request.Context(), conn); runErr != nil {
		logger.Warn("session ended with transport error", zap.Error(runErr), zap.Duration("duration", time.Since(startedAt)))
		return
	}
	logger.Info("session closed", zap.Duration("duration", time.Since(startedAt)))
}
