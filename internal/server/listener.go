package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sergeijochim/BlueMemory/internal/channel"
	"go.uber.org/zap"
)

// JoinPath is the websocket endpoint remote players connect to.
const JoinPath = "/session"

// Listener accepts remote players over websocket and hands their streams to
// the coordinator. It keeps serving for the whole session; once the game has
// started (or the lobby is full) new joins are turned away at the door.
type Listener struct {
	addr        string
	coordinator *Coordinator
	logger      *zap.Logger
	server      *http.Server
	upgrader    websocket.Upgrader
}

// NewListener creates a listener bound to addr for the given coordinator.
func NewListener(addr string, coordinator *Coordinator, logger *zap.Logger) *Listener {
	l := &Listener{
		addr:        addr,
		coordinator: coordinator,
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(JoinPath, l.handleJoin)
	l.server = &http.Server{Addr: addr, Handler: mux}
	return l
}

// Serve listens until Shutdown is called.
func (l *Listener) Serve() error {
	l.logger.Info("listening for players", zap.String("address", l.addr))
	if err := l.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting new joins. Established channels stay open; the
// coordinator owns their lifecycle.
func (l *Listener) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return l.server.Shutdown(shutdownCtx)
}

func (l *Listener) handleJoin(w http.ResponseWriter, r *http.Request) {
	if !l.coordinator.Accepting() {
		http.Error(w, "session closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.logger.Warn("websocket upgrade failed",
			zap.String("remote", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	l.logger.Info("player connected", zap.String("remote", r.RemoteAddr))
	l.coordinator.Accept(channel.NewWebSocketStream(conn))
}
