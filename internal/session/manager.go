package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session binds a connection to a stable player id. The id survives
// reconnects until the lease expires.
type Session struct {
	ID   string
	Host string

	mu             sync.RWMutex
	playerName     string
	roomID         int
	connected      bool
	lastActivity   time.Time
	disconnectedAt time.Time
}

// PlayerName returns the display name chosen by the player.
func (s *Session) PlayerName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playerName
}

// SetPlayerName records the display name.
func (s *Session) SetPlayerName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playerName = name
}

// RoomID returns the room the player is in, or 0.
func (s *Session) RoomID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID
}

// SetRoom binds the session to a room. Zero clears it.
func (s *Session) SetRoom(roomID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID = roomID
}

// IsConnected reports whether a connection currently owns the session.
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// UpdateActivity refreshes the last activity time.
func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// LastActivity returns the time of the last inbound message.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

func (s *Session) setConnected(connected bool, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
	if connected {
		s.disconnectedAt = time.Time{}
		s.lastActivity = now
	} else {
		s.disconnectedAt = now
	}
}

func (s *Session) expired(now time.Time, lease time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.connected && !s.disconnectedAt.IsZero() && now.Sub(s.disconnectedAt) >= lease
}

// Manager tracks sessions and expires the ones whose connection has been
// gone for longer than the lease period.
type Manager struct {
	sessions    map[string]*Session
	mu          sync.RWMutex
	leasePeriod time.Duration
	logger      *zap.Logger

	onExpire func(*Session)
}

// NewManager creates a session manager.
func NewManager(leasePeriod time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		leasePeriod: leasePeriod,
		logger:      logger,
	}
}

// OnExpire registers the callback run for each expired session, after it
// has been removed from the manager.
func (m *Manager) OnExpire(fn func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = fn
}

// CreateSession starts a connected session with a fresh id.
func (m *Manager) CreateSession(host string) *Session {
	sess := &Session{ID: uuid.NewString(), Host: host}
	sess.setConnected(true, time.Now())

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	m.logger.Debug("session created", zap.String("session_id", sess.ID), zap.String("host", host))
	return sess
}

// GetSession looks up a session by id.
func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Reattach hands a disconnected session to a new connection. A session
// whose lease already ran out is left for the cleanup loop to forfeit.
func (m *Manager) Reattach(id string) (*Session, bool) {
	return m.reattach(id, time.Now())
}

func (m *Manager) reattach(id string, now time.Time) (*Session, bool) {
	// Held across the check and the renewal so expire cannot run in between.
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok || sess.IsConnected() || sess.expired(now, m.leasePeriod) {
		m.mu.Unlock()
		return nil, false
	}
	sess.setConnected(true, now)
	m.mu.Unlock()

	m.logger.Info("session resumed", zap.String("session_id", id), zap.Int("room_id", sess.RoomID()))
	return sess, true
}

// Disconnect starts the lease countdown for a session.
func (m *Manager) Disconnect(id string) {
	sess, ok := m.GetSession(id)
	if !ok {
		return
	}
	sess.setConnected(false, time.Now())
	m.logger.Debug("session disconnected",
		zap.String("session_id", id),
		zap.Duration("lease_period", m.leasePeriod),
	)
}

// RemoveSession drops a session immediately.
func (m *Manager) RemoveSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns the number of tracked sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupExpiredSessions expires sessions until ctx is cancelled.
func (m *Manager) CleanupExpiredSessions(ctx context.Context) {
	interval := m.leasePeriod / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.expire(now)
		}
	}
}

func (m *Manager) expire(now time.Time) []*Session {
	m.mu.Lock()
	var expired []*Session
	for id, sess := range m.sessions {
		if sess.expired(now, m.leasePeriod) {
			delete(m.sessions, id)
			expired = append(expired, sess)
		}
	}
	onExpire := m.onExpire
	m.mu.Unlock()

	for _, sess := range expired {
		m.logger.Info("session lease expired",
			zap.String("session_id", sess.ID),
			zap.Int("room_id", sess.RoomID()),
		)
		if onExpire != nil {
			onExpire(sess)
		}
	}
	return expired
}

// CloseAll drops every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := len(m.sessions)
	m.sessions = make(map[string]*Session)
	m.logger.Info("closed all sessions", zap.Int("count", count))
}
