// Package session owns the chat-network connection lifecycle: one
// connection per store, pairing, event consumption and teardown.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vendazap/vendazap/internal/domain"
	"github.com/vendazap/vendazap/internal/logging"
	"github.com/vendazap/vendazap/internal/store"
	"github.com/vendazap/vendazap/internal/transport"
)

// ErrNoActiveSession is returned by sends for stores without a live
// connection.
var ErrNoActiveSession = errors.New("session: no active session for store")

// InboundHandler receives normalized inbound messages. Implemented by
// the reply orchestrator; bound late to break the construction cycle
// with outbound dispatch.
type InboundHandler interface {
	HandleInbound(msg domain.InboundMessage)
}

// StatusRecorder receives delivery receipts for previously sent messages.
type StatusRecorder interface {
	RecordDeliveryStatus(storeID, transportRef string, status domain.DeliveryStatus)
}

// Config tunes the session manager.
type Config struct {
	PairingWait time.Duration // how long Initialize waits for a pairing code, default 30s
}

// Manager tracks at most one chat-network session per store. Lifecycle
// operations for the same store are mutually exclusive; different
// stores never block each other.
type Manager struct {
	cfg      Config
	dialer   transport.Dialer
	settings *store.SettingsStore
	log      *logging.Logger

	handler  InboundHandler
	recorder StatusRecorder

	mu       sync.Mutex
	sessions map[string]*session
}

// session is one store's connection and its lifecycle state. Guarded by
// its own mutex so stores stay independent.
type session struct {
	mu          sync.Mutex
	storeID     string
	conn        transport.Conn
	state       domain.ConnectionState
	pairingCode string
	connectedAt time.Time
	cancel      context.CancelFunc
	generation  uint64
}

// NewManager creates a session manager. Bind must be called before the
// first Initialize.
func NewManager(cfg Config, dialer transport.Dialer, settings *store.SettingsStore, log *logging.Logger) *Manager {
	if cfg.PairingWait <= 0 {
		cfg.PairingWait = 30 * time.Second
	}
	return &Manager{
		cfg:      cfg,
		dialer:   dialer,
		settings: settings,
		log:      log.Component("session"),
		sessions: make(map[string]*session),
	}
}

// Bind wires the late collaborators: the inbound handler and the
// delivery-status recorder.
func (m *Manager) Bind(handler InboundHandler, recorder StatusRecorder) {
	m.handler = handler
	m.recorder = recorder
}

func (m *Manager) session(storeID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[storeID]
	if !ok {
		s = &session{storeID: storeID, state: domain.StateDisconnected}
		m.sessions[storeID] = s
	}
	return s
}

// Initialize opens a connection for the store and requests pairing.
// Re-initializing tears down any existing connection first. The
// returned status carries the pairing code if it arrived within the
// configured wait; a late code is still stored and visible via Status.
func (m *Manager) Initialize(ctx context.Context, storeID string) (domain.SessionStatus, error) {
	log := m.log.Store(storeID)
	s := m.session(storeID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		log.Info().Msg("re-initializing, closing previous connection")
		m.teardownLocked(s)
	}

	conn, err := m.dialer.Dial(ctx, storeID)
	if err != nil {
		s.state = domain.StateFailed
		return m.snapshotLocked(s), err
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	s.conn = conn
	s.cancel = cancel
	s.state = domain.StateAwaitingPairing
	s.pairingCode = ""
	s.connectedAt = time.Time{}
	s.generation++
	gen := s.generation

	go m.consumeEvents(s, conn, gen)

	// The network may take arbitrarily long to produce a code; the wait
	// here is bounded and a late code is recorded by the goroutine.
	codeCh := make(chan string, 1)
	go func() {
		code, err := conn.RequestPairing(sessCtx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("pairing request failed")
			}
			return
		}
		s.mu.Lock()
		if s.generation == gen && s.state == domain.StateAwaitingPairing {
			s.pairingCode = code
		}
		s.mu.Unlock()
		codeCh <- code
	}()

	wait := m.cfg.PairingWait
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < wait {
			wait = until
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	s.mu.Unlock()
	select {
	case code := <-codeCh:
		s.mu.Lock()
		if s.generation == gen && s.state == domain.StateAwaitingPairing {
			s.pairingCode = code
		}
	case <-timer.C:
		s.mu.Lock()
		log.Info().Msg("pairing code not yet available, continuing in background")
	case <-ctx.Done():
		s.mu.Lock()
	}

	log.Info().Str("state", string(s.state)).Msg("session initialized")
	return m.snapshotLocked(s), nil
}

// Disconnect closes the store's connection. Safe to call when no
// session exists.
func (m *Manager) Disconnect(storeID string) error {
	m.mu.Lock()
	s, ok := m.sessions[storeID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	s.mu.Lock()
	if s.conn != nil {
		m.teardownLocked(s)
		m.log.Store(storeID).Info().Msg("session disconnected")
	} else {
		s.state = domain.StateDisconnected
	}
	s.mu.Unlock()

	m.prune(storeID)
	return nil
}

// prune drops a registry entry once it holds no connection. Unknown
// stores read as disconnected anyway, so the entry carries no state
// worth keeping.
func (m *Manager) prune(storeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[storeID]
	if !ok {
		return
	}
	s.mu.Lock()
	idle := s.conn == nil && s.state == domain.StateDisconnected
	s.mu.Unlock()
	if idle {
		delete(m.sessions, storeID)
	}
}

// Status reports the store's current session state. Unknown stores are
// simply disconnected; Status never errors.
func (m *Manager) Status(storeID string) domain.SessionStatus {
	m.mu.Lock()
	s, ok := m.sessions[storeID]
	m.mu.Unlock()
	if !ok {
		return domain.SessionStatus{StoreID: storeID, State: domain.StateDisconnected}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return m.snapshotLocked(s)
}

// SendText sends a text message over the store's live connection.
func (m *Manager) SendText(ctx context.Context, storeID, to, text string) (transport.Ack, error) {
	conn, err := m.liveConn(storeID)
	if err != nil {
		return transport.Ack{}, err
	}
	return conn.SendText(ctx, to, text)
}

// SendMedia sends a media item over the store's live connection.
func (m *Manager) SendMedia(ctx context.Context, storeID, to, mediaRef, caption string) (transport.Ack, error) {
	conn, err := m.liveConn(storeID)
	if err != nil {
		return transport.Ack{}, err
	}
	return conn.SendMedia(ctx, to, mediaRef, caption)
}

// Shutdown disconnects every store. Used on process exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		_ = m.Disconnect(id)
	}
}

func (m *Manager) liveConn(storeID string) (transport.Conn, error) {
	m.mu.Lock()
	s, ok := m.sessions[storeID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNoActiveSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, ErrNoActiveSession
	}
	return s.conn, nil
}

// teardownLocked releases the session's connection. Caller holds s.mu.
func (m *Manager) teardownLocked(s *session) {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.state = domain.StateDisconnected
	s.pairingCode = ""
	s.connectedAt = time.Time{}
	s.generation++
}

func (m *Manager) snapshotLocked(s *session) domain.SessionStatus {
	return domain.SessionStatus{
		StoreID:     s.storeID,
		State:       s.state,
		PairingCode: s.pairingCode,
		ConnectedAt: s.connectedAt,
	}
}

// consumeEvents is the session's owner goroutine. It drains the
// connection's event stream until it closes; gen guards against a stale
// goroutine mutating a re-initialized session.
func (m *Manager) consumeEvents(s *session, conn transport.Conn, gen uint64) {
	log := m.log.Store(s.storeID)

	for ev := range conn.Events() {
		switch ev.Type {
		case transport.EventReady:
			s.mu.Lock()
			if s.generation == gen {
				s.state = domain.StateConnected
				s.pairingCode = ""
				s.connectedAt = time.Now()
			}
			s.mu.Unlock()
			log.Info().Msg("session connected")

		case transport.EventDisconnected:
			s.mu.Lock()
			if s.generation == gen {
				// No automatic retry: reconnection is an explicit
				// operator action.
				m.teardownLocked(s)
			}
			s.mu.Unlock()
			m.prune(s.storeID)
			log.Warn().Str("reason", ev.Reason).Msg("session dropped by network")
			return

		case transport.EventInbound:
			if ev.Inbound != nil {
				m.dispatchInbound(s.storeID, *ev.Inbound, log)
			}

		case transport.EventDeliveryStatus:
			if m.recorder != nil {
				m.recorder.RecordDeliveryStatus(s.storeID, ev.Ref, ev.Status)
			}
		}
	}

	s.mu.Lock()
	if s.generation == gen {
		m.teardownLocked(s)
	}
	s.mu.Unlock()
	m.prune(s.storeID)
}

// dispatchInbound normalizes a raw transport event and hands it to the
// inbound handler. Group messages are dropped unless the store opted in.
func (m *Manager) dispatchInbound(storeID string, ev transport.InboundEvent, log *logging.Logger) {
	chatType := domain.ChatTypeDirect
	if ev.Group {
		chatType = domain.ChatTypeGroup

		settings, err := m.settings.Get(storeID)
		if err != nil {
			log.Warn().Err(err).Msg("settings lookup failed, dropping group message")
			return
		}
		if settings == nil || !settings.AllowGroups {
			log.Debug().Str("from", ev.From).Msg("group message dropped")
			return
		}
	}

	if m.handler == nil {
		log.Warn().Msg("no inbound handler bound, dropping message")
		return
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	m.handler.HandleInbound(domain.InboundMessage{
		StoreID:     storeID,
		FromAddress: ev.From,
		FromName:    ev.FromName,
		ChatType:    chatType,
		Body:        ev.Body,
		MediaRef:    ev.MediaRef,
		Timestamp:   ts,
	})
}
