package transport

import (
	"context"
	"sync"

	"github.com/vendazap/vendazap/internal/domain"
)

// MockConn is a test double for Conn.
type MockConn struct {
	PairingFunc   func(ctx context.Context) (string, error)
	SendTextFunc  func(ctx context.Context, to, text string) (Ack, error)
	SendMediaFunc func(ctx context.Context, to, mediaRef, caption string) (Ack, error)

	EventCh chan Event

	mu     sync.Mutex
	closed bool
	sent   []MockSend
}

// MockSend records one send issued through a MockConn.
type MockSend struct {
	To       string
	Text     string
	MediaRef string
	Caption  string
}

// NewMockConn creates a mock connection with a buffered event channel.
func NewMockConn() *MockConn {
	return &MockConn{EventCh: make(chan Event, 16)}
}

func (m *MockConn) RequestPairing(ctx context.Context) (string, error) {
	if m.PairingFunc != nil {
		return m.PairingFunc(ctx)
	}
	return "MOCK-CODE", nil
}

func (m *MockConn) SendText(ctx context.Context, to, text string) (Ack, error) {
	m.mu.Lock()
	m.sent = append(m.sent, MockSend{To: to, Text: text})
	m.mu.Unlock()
	if m.SendTextFunc != nil {
		return m.SendTextFunc(ctx, to, text)
	}
	return Ack{Ref: "mock-ref", Status: domain.DeliverySent}, nil
}

func (m *MockConn) SendMedia(ctx context.Context, to, mediaRef, caption string) (Ack, error) {
	m.mu.Lock()
	m.sent = append(m.sent, MockSend{To: to, MediaRef: mediaRef, Caption: caption})
	m.mu.Unlock()
	if m.SendMediaFunc != nil {
		return m.SendMediaFunc(ctx, to, mediaRef, caption)
	}
	return Ack{Ref: "mock-ref", Status: domain.DeliverySent}, nil
}

func (m *MockConn) Events() <-chan Event {
	return m.EventCh
}

func (m *MockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.EventCh)
	}
	return nil
}

// Closed reports whether Close has been called.
func (m *MockConn) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Sent returns a copy of all sends issued so far.
func (m *MockConn) Sent() []MockSend {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSend, len(m.sent))
	copy(out, m.sent)
	return out
}

// MockDialer is a test double for Dialer.
type MockDialer struct {
	DialFunc func(ctx context.Context, storeID string) (Conn, error)

	mu    sync.Mutex
	conns []*MockConn
}

func (d *MockDialer) Dial(ctx context.Context, storeID string) (Conn, error) {
	if d.DialFunc != nil {
		return d.DialFunc(ctx, storeID)
	}
	c := NewMockConn()
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

// Conns returns every connection handed out by the default DialFunc.
func (d *MockDialer) Conns() []*MockConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*MockConn, len(d.conns))
	copy(out, d.conns)
	return out
}
