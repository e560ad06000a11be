package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/playludo/ludo-backend/internal/entity"
	"github.com/playludo/ludo-backend/internal/pkg"
	"github.com/playludo/ludo-backend/internal/room"
)

type sessionRepo interface {
	CreateOrUpdate(ctx context.Context, session *entity.Session) error
	GetByID(ctx context.Context, id string) (*entity.Session, error)
	DeleteByID(ctx context.Context, id string) error
}

type Server struct {
	logger   *slog.Logger
	registry *room.Registry
	sessions sessionRepo

	connectionsMutex sync.RWMutex
	connections      map[string]*connection

	handlers map[string]func(ctx context.Context, sess *session, message *Message, conn *connection) error
}

func New(logger *slog.Logger, registry *room.Registry, sessions sessionRepo) *Server {
	server := &Server{
		logger:   logger.With("component", "websocket"),
		registry: registry,
		sessions: sessions,

		connections: make(map[string]*connection),
		handlers:    make(map[string]func(context.Context, *session, *Message, *connection) error),
	}

	server.handlers[ActionCreateGame] = server.handleCreateGame
	server.handlers[ActionJoinGame] = server.handleJoinGame
	server.handlers[ActionRejoinGame] = server.handleRejoinGame
	server.handlers[ActionStartGame] = server.handleStartGame
	server.handlers[ActionRollDice] = server.handleRollDice
	server.handlers[ActionMovePiece] = server.handleMovePiece
	server.handlers[ActionPassTurn] = server.handlePassTurn
	server.handlers[ActionChatMessage] = server.handleChatMessage

	return server
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 0, // connections are long-lived
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the connection to WebSocket.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	if req.Header.Get("Upgrade") != "websocket" {
		http.Error(writer, "not a websocket upgrade", http.StatusBadRequest)
		return
	}

	sessionID := that.setSessionCookie(writer, req)

	key := req.Header.Get("Sec-WebSocket-Key")
	acceptKey := pkg.GenerateAcceptKey(key)

	writer.Header().Set("Upgrade", "websocket")
	writer.Header().Set("Connection", "Upgrade")
	writer.Header().Set("Sec-WebSocket-Accept", acceptKey)
	writer.WriteHeader(http.StatusSwitchingProtocols)

	hijacker, ok := writer.(http.Hijacker)
	if !ok {
		log.Error("web server does not support hijacking", "error", http.StatusText(http.StatusInternalServerError))
		return
	}

	netConn, bufrw, err := hijacker.Hijack()
	if err != nil {
		log.Error("failed to hijack connection", "error", err)
		return
	}

	defer netConn.Close()

	log.Info("WebSocket connection established", "session", sessionID)

	sess := &session{id: sessionID}
	conn := &connection{bufrw: bufrw}

	defer that.handleDisconnect(ctx, sess)

	if err = that.handleMessages(ctx, sess, conn); err != nil {
		log.Info("connection closed", "session", sessionID, "reason", err)
	}
}

// handleMessages - processes messages from the client. A panic in one
// handler tears down this connection only; rooms and other connections are
// unaffected.
func (that *Server) handleMessages(ctx context.Context, sess *session, conn *connection) (err error) {
	log := that.logger.With("method", "handleMessages")

	defer func() {
		if r := recover(); r != nil {
			log.Error("recovered from handler panic", "session", sess.id, "panic", r)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	for {
		reqBody, err := that.readRequest(conn.bufrw)
		if err != nil {
			return err
		}

		if reqBody == nil {
			continue
		}

		var message Message
		if err = json.Unmarshal(reqBody, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			_ = that.sendError(conn, fmt.Sprintf("unknown action: %s", message.Action))
			continue
		}

		if err = handler(ctx, sess, &message, conn); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

// setSessionCookie - set user session, returning its id.
func (that *Server) setSessionCookie(writer http.ResponseWriter, req *http.Request) string {
	log := that.logger.With("method", "setSessionCookie")

	cookie, err := req.Cookie("user_session")
	if err != nil {
		cookie = &http.Cookie{
			Name:    "user_session",
			Value:   pkg.GenerateNewSessionID(),
			Expires: time.Now().Add(24 * time.Hour),
			Path:    "/ws",
		}
		http.SetCookie(writer, cookie)
		log.Info("session cookie not found, new one created", "cookie", cookie.Value)
		return cookie.Value
	}

	log.Info("session cookie found", "cookie", cookie.Value)

	return cookie.Value
}

func (that *Server) registerConnection(playerID string, conn *connection) {
	that.connectionsMutex.Lock()
	that.connections[playerID] = conn
	that.connectionsMutex.Unlock()
}

// broadcast pushes one event to every listed member. Frame integrity comes
// from the per-connection write lock; cross-member ordering comes from the
// caller holding the room's delivery lock (Room.Serialized) across the
// mutation and this call.
func (that *Server) broadcast(memberIDs []string, action string, payload ResponsePayload) {
	log := that.logger.With("method", "broadcast")

	for _, playerID := range memberIDs {
		that.connectionsMutex.RLock()
		conn, ok := that.connections[playerID]
		that.connectionsMutex.RUnlock()

		if !ok {
			log.Warn("connection not found for player", "playerID", playerID)
			continue
		}

		if err := that.sendMessage(conn, action, payload); err != nil {
			log.Error("failed to send game update", "playerID", playerID, "error", err)
		}
	}
}

func (that *Server) sendError(conn *connection, errorMsg string) error {
	payload := ResponsePayload{Message: errorMsg}
	if err := that.sendMessage(conn, EventError, payload); err != nil {
		return fmt.Errorf("failed to send error response: %w", err)
	}

	return nil
}

// handleDisconnect runs when a connection's read loop exits. The player is
// unseated so the room never waits on a dead connection; the session record
// survives so a reconnect can rejoin as the same identity.
func (that *Server) handleDisconnect(ctx context.Context, sess *session) {
	log := that.logger.With("method", "handleDisconnect")

	if sess.playerID == "" {
		return
	}

	that.connectionsMutex.Lock()
	delete(that.connections, sess.playerID)
	that.connectionsMutex.Unlock()

	log.Info("player disconnected", "playerID", sess.playerID)

	if sess.roomID == "" {
		return
	}

	gameRoom, err := that.registry.Get(ctx, sess.roomID)
	if err != nil {
		return
	}

	var outcome *room.LeaveOutcome
	serErr := gameRoom.Serialized(func() error {
		left, leaveErr := gameRoom.Leave(ctx, sess.playerID)
		if leaveErr != nil {
			return leaveErr
		}
		outcome = left

		that.broadcast(gameRoom.MemberIDs(), EventPlayerLeft, ResponsePayload{
			PlayerName: left.Player.Name,
			Color:      left.Player.Color,
			GameState:  left.Snapshot,
		})
		return nil
	})
	if serErr != nil {
		log.Error("failed to unseat disconnected player", "playerID", sess.playerID, "error", serErr)
		return
	}

	that.registry.ReleaseIfEmpty(ctx, outcome, sess.roomID)
}
