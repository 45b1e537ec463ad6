package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kotgame/kot-server-go/internal/config"
	"github.com/kotgame/kot-server-go/internal/game"
	"github.com/kotgame/kot-server-go/internal/repository"
	"github.com/kotgame/kot-server-go/internal/room"
	"github.com/kotgame/kot-server-go/internal/session"
	"go.uber.org/zap"
)

const (
	requestTimeout  = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server is the WebSocket and HTTP front end of the game.
type Server struct {
	cfg      config.WebSocketConfig
	replays  *game.ReplayRecorder
	rooms    *room.Manager
	sessions *session.Manager
	results  repository.Store
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewServer wires the transport to the room and session managers. Expired
// sessions forfeit their room.
func NewServer(cfg *config.Config, rooms *room.Manager, sessions *session.Manager, results repository.Store, replays *game.ReplayRecorder, hub *Hub, logger *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg.Server.WebSocket,
		replays:  replays,
		rooms:    rooms,
		sessions: sessions,
		results:  results,
		hub:      hub,
		logger:   logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	sessions.OnExpire(s.forfeit)
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.serveWS)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /rooms", s.handleRooms)
	mux.HandleFunc("GET /results", s.handleResults)
	mux.HandleFunc("GET /replays/{replay_id}", s.handleReplay)
	return mux
}

// ListenAndServe serves HTTP until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting WebSocket server", zap.String("address", s.cfg.Address))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("websocket server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown websocket server: %w", err)
		}
		return nil
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	var (
		sess    *session.Session
		resumed bool
	)
	if id := r.URL.Query().Get("session"); id != "" {
		sess, resumed = s.sessions.Reattach(id)
	}
	if sess == nil {
		sess = s.sessions.CreateSession(hostOf(r))
	}

	bufSize := s.cfg.SendBuffer
	if bufSize <= 0 {
		bufSize = 64
	}
	client := &Client{
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, bufSize),
		session: sess,
	}
	if !s.hub.add(client) {
		conn.Close()
		return
	}

	s.logger.Info("client connected",
		zap.String("player_id", sess.ID),
		zap.Bool("resumed", resumed),
		zap.String("host", sess.Host),
	)

	go client.writePump()

	client.sendJSON(Outbound{
		Type:     MsgConnected,
		PlayerID: sess.ID,
		Data: ConnectedData{
			SessionID: sess.ID,
			PlayerID:  sess.ID,
			RoomID:    sess.RoomID(),
			Resumed:   resumed,
		},
	})
	if resumed && sess.RoomID() != 0 {
		s.sendState(r.Context(), client, sess.RoomID())
	}

	go client.readPump(s.handle, s.disconnected)
}

func (s *Server) disconnected(c *Client) {
	s.sessions.Disconnect(c.session.ID)
	s.logger.Info("client disconnected", zap.String("player_id", c.session.ID))
}

// forfeit removes a player whose lease ran out from their room.
func (s *Server) forfeit(sess *session.Session) {
	roomID := sess.RoomID()
	if roomID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := s.rooms.LeaveRoom(ctx, roomID, sess.ID); err != nil && !errors.Is(err, game.ErrRoomNotFound) {
		s.logger.Warn("forfeit failed",
			zap.String("player_id", sess.ID),
			zap.Int("room_id", roomID),
			zap.Error(err),
		)
		return
	}
	sess.SetRoom(0)
	s.logger.Info("player forfeited after lease expiry",
		zap.String("player_id", sess.ID),
		zap.Int("room_id", roomID),
	)
}

// handle runs on the connection's read goroutine.
func (s *Server) handle(c *Client, msg Inbound) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	sess := c.session
	var err error
	switch {
	case msg.Type == MsgCreateRoom:
		err = s.createRoom(ctx, sess, msg)
	case msg.Type == MsgJoinRoom:
		err = s.joinRoom(ctx, sess, msg)
	case msg.Type == MsgLeaveRoom:
		err = s.leaveRoom(ctx, sess)
	case msg.Type == MsgGetState:
		roomID := sess.RoomID()
		if roomID == 0 {
			err = game.NewError(game.KindPlayerNotInRoom, "not in a room")
			break
		}
		s.sendState(ctx, c, roomID)
	case isGameAction(msg.Type):
		err = s.routeAction(ctx, sess, msg)
	default:
		err = game.NewError(game.KindInvalidAction, "unknown message type %q", msg.Type)
	}

	if err != nil {
		s.logger.Debug("request rejected",
			zap.String("player_id", sess.ID),
			zap.String("type", msg.Type),
			zap.Error(err),
		)
		roomID := msg.RoomID
		if roomID == 0 {
			roomID = sess.RoomID()
		}
		c.sendJSON(errorMessage(roomID, err))
	}
}

func (s *Server) createRoom(ctx context.Context, sess *session.Session, msg Inbound) error {
	if id := sess.RoomID(); id != 0 {
		return game.NewError(game.KindInvalidAction, "already in room %d", id)
	}
	req, err := decodeRoomRequest(msg)
	if err != nil {
		return err
	}
	roomID, err := s.rooms.CreateRoom(ctx, sess.ID, req.PlayerName)
	if err != nil {
		return err
	}
	sess.SetRoom(roomID)
	sess.SetPlayerName(req.PlayerName)
	return nil
}

func (s *Server) joinRoom(ctx context.Context, sess *session.Session, msg Inbound) error {
	if id := sess.RoomID(); id != 0 {
		return game.NewError(game.KindInvalidAction, "already in room %d", id)
	}
	req, err := decodeRoomRequest(msg)
	if err != nil {
		return err
	}
	if err := s.rooms.JoinRoom(ctx, msg.RoomID, sess.ID, req.PlayerName); err != nil {
		return err
	}
	sess.SetRoom(msg.RoomID)
	sess.SetPlayerName(req.PlayerName)
	return nil
}

func (s *Server) leaveRoom(ctx context.Context, sess *session.Session) error {
	roomID := sess.RoomID()
	if roomID == 0 {
		return game.NewError(game.KindPlayerNotInRoom, "not in a room")
	}
	if err := s.rooms.LeaveRoom(ctx, roomID, sess.ID); err != nil && !errors.Is(err, game.ErrRoomNotFound) {
		return err
	}
	sess.SetRoom(0)
	return nil
}

func (s *Server) routeAction(ctx context.Context, sess *session.Session, msg Inbound) error {
	roomID := sess.RoomID()
	if roomID == 0 || (msg.RoomID != 0 && msg.RoomID != roomID) {
		return game.NewError(game.KindPlayerNotInRoom, "not in room %d", msg.RoomID)
	}
	action, err := decodeAction(msg)
	if err != nil {
		return err
	}
	return s.rooms.RouteAction(ctx, roomID, sess.ID, action)
}

func (s *Server) sendState(ctx context.Context, c *Client, roomID int) {
	snap, err := s.rooms.Snapshot(ctx, roomID)
	if err != nil {
		c.sendJSON(errorMessage(roomID, err))
		return
	}
	c.sendJSON(Outbound{Type: MsgState, RoomID: roomID, PlayerID: c.session.ID, Data: snap})
}

func decodeRoomRequest(msg Inbound) (roomRequest, error) {
	var req roomRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return req, errMalformed(err)
		}
	}
	req.PlayerName = strings.TrimSpace(req.PlayerName)
	if req.PlayerName == "" {
		return req, game.NewError(game.KindInvalidAction, "player_name is required")
	}
	return req, nil
}

func errMalformed(err error) error {
	return game.NewError(game.KindInvalidAction, "malformed message: %v", err)
}

func hostOf(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"rooms":             s.rooms.ActiveRoomCount(),
		"sessions":          s.sessions.Count(),
		"clients":           s.hub.Connected(),
		"replays_recording": s.replays.Recording(),
	})
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rooms.ListRooms(r.Context()))
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	results, err := s.results.RecentResults(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list results", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "results unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleReplay serves a saved replay by id. With ?step=n only the state
// after the n-th accepted operation is returned.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	replayID := r.PathValue("replay_id")
	if _, _, err := game.ParseReplayID(replayID); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid replay id"})
		return
	}
	replay, err := s.replays.Load(replayID)
	if errors.Is(err, game.ErrReplaysDisabled) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "replays are disabled"})
		return
	}
	if err != nil {
		s.logger.Debug("replay not available", zap.String("replay_id", replayID), zap.Error(err))
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "replay not found"})
		return
	}

	if raw := r.URL.Query().Get("step"); raw != "" {
		step, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "step must be an integer"})
			return
		}
		state, ok := replay.StateAt(step)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "step out of range"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"replay_id": replay.ID,
			"room_id":   replay.RoomID,
			"step":      step,
			"steps":     replay.Size(),
			"state":     state,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"replay_id": replay.ID,
		"room_id":   replay.RoomID,
		"states":    replay.States,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
