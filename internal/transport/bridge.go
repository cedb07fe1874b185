package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vendazap/vendazap/internal/domain"
	"github.com/vendazap/vendazap/internal/logging"
)

// Frame types on the bridge WebSocket.
const (
	frameTypeRequest  = "req"
	frameTypeResponse = "res"
	frameTypeEvent    = "event"
)

// frame is the envelope for all bridge messages.
type frame struct {
	Type string `json:"type"`

	// Request fields
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// Response fields
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`

	// Event fields
	Event string `json:"event,omitempty"`
}

type sendParams struct {
	To       string `json:"to"`
	Text     string `json:"text,omitempty"`
	MediaRef string `json:"mediaRef,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type pairingPayload struct {
	Code string `json:"code"`
}

type inboundPayload struct {
	From      string    `json:"from"`
	FromName  string    `json:"fromName,omitempty"`
	Body      string    `json:"body"`
	MediaRef  string    `json:"mediaRef,omitempty"`
	Group     bool      `json:"group,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type statusPayload struct {
	Ref    string `json:"ref"`
	Status string `json:"status"`
}

type disconnectPayload struct {
	Reason string `json:"reason,omitempty"`
}

// BridgeDialer connects to an external chat-network bridge process over
// WebSocket. One bridge connection carries one store session.
type BridgeDialer struct {
	URL         string
	Token       string
	EventBuffer int
	Log         *logging.Logger
}

// Dial opens a bridge connection for the given store.
func (d *BridgeDialer) Dial(ctx context.Context, storeID string) (Conn, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing bridge url: %w", err)
	}
	q := u.Query()
	q.Set("store", storeID)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if d.Token != "" {
		header.Set("Authorization", "Bearer "+d.Token)
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing bridge (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("dialing bridge: %w", err)
	}

	buffer := d.EventBuffer
	if buffer <= 0 {
		buffer = 64
	}

	c := &bridgeConn{
		ws:      ws,
		events:  make(chan Event, buffer),
		pending: make(map[string]chan frame),
		pairing: make(chan string, 1),
		done:    make(chan struct{}),
		log:     d.Log.Component("bridge").Store(storeID),
	}
	go c.readLoop()
	return c, nil
}

// bridgeConn is one WebSocket connection to the bridge.
type bridgeConn struct {
	ws      *websocket.Conn
	events  chan Event
	pairing chan string
	done    chan struct{}
	log     *logging.Logger

	writeMu   sync.Mutex
	pendingMu sync.Mutex
	pending   map[string]chan frame
	closeOnce sync.Once
}

func (c *bridgeConn) RequestPairing(ctx context.Context) (string, error) {
	if err := c.write(frame{Type: frameTypeRequest, ID: uuid.New().String(), Method: "pairing"}); err != nil {
		return "", err
	}

	// The code arrives as a "pairing" event whenever the network
	// produces it, which can be well after the request.
	select {
	case code := <-c.pairing:
		return code, nil
	case <-c.done:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *bridgeConn) SendText(ctx context.Context, to, text string) (Ack, error) {
	return c.call(ctx, "send_text", sendParams{To: to, Text: text})
}

func (c *bridgeConn) SendMedia(ctx context.Context, to, mediaRef, caption string) (Ack, error) {
	return c.call(ctx, "send_media", sendParams{To: to, MediaRef: mediaRef, Caption: caption})
}

func (c *bridgeConn) Events() <-chan Event {
	return c.events
}

func (c *bridgeConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
	return nil
}

// call issues a request frame and waits for its correlated response.
func (c *bridgeConn) call(ctx context.Context, method string, params any) (Ack, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return Ack{}, fmt.Errorf("encoding %s params: %w", method, err)
	}

	id := uuid.New().String()
	respCh := make(chan frame, 1)

	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.write(frame{Type: frameTypeRequest, ID: id, Method: method, Params: data}); err != nil {
		return Ack{}, err
	}

	select {
	case resp := <-respCh:
		if resp.OK != nil && !*resp.OK {
			return Ack{}, fmt.Errorf("bridge %s failed: %s", method, resp.Error)
		}
		var ack Ack
		if len(resp.Payload) > 0 {
			if err := json.Unmarshal(resp.Payload, &ack); err != nil {
				return Ack{}, fmt.Errorf("decoding %s ack: %w", method, err)
			}
		}
		if ack.Status == "" {
			ack.Status = domain.DeliveryPending
		}
		return ack, nil
	case <-c.done:
		return Ack{}, ErrClosed
	case <-ctx.Done():
		return Ack{}, ctx.Err()
	}
}

func (c *bridgeConn) write(f frame) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(f); err != nil {
		return fmt.Errorf("writing to bridge: %w", err)
	}
	return nil
}

// readLoop pumps bridge frames into responses and the event channel
// until the socket dies. A dead socket is reported as a disconnect
// event so the session owner can react.
func (c *bridgeConn) readLoop() {
	defer close(c.events)

	for {
		var f frame
		if err := c.ws.ReadJSON(&f); err != nil {
			select {
			case <-c.done:
			default:
				c.log.Warn().Err(err).Msg("bridge read failed")
				c.emit(Event{Type: EventDisconnected, Reason: err.Error()})
			}
			return
		}

		switch f.Type {
		case frameTypeResponse:
			c.pendingMu.Lock()
			ch, ok := c.pending[f.ID]
			c.pendingMu.Unlock()
			if ok {
				ch <- f
			}
		case frameTypeEvent:
			c.handleEvent(f)
		}
	}
}

func (c *bridgeConn) handleEvent(f frame) {
	switch f.Event {
	case "pairing":
		var p pairingPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			c.log.Warn().Err(err).Msg("malformed pairing event")
			return
		}
		select {
		case c.pairing <- p.Code:
		default:
		}
	case "ready":
		c.emit(Event{Type: EventReady})
	case "disconnected":
		var p disconnectPayload
		_ = json.Unmarshal(f.Payload, &p)
		c.emit(Event{Type: EventDisconnected, Reason: p.Reason})
	case "message":
		var p inboundPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			c.log.Warn().Err(err).Msg("malformed inbound event")
			return
		}
		c.emit(Event{Type: EventInbound, Inbound: &InboundEvent{
			From:      p.From,
			FromName:  p.FromName,
			Body:      p.Body,
			MediaRef:  p.MediaRef,
			Group:     p.Group,
			Timestamp: p.Timestamp,
		}})
	case "status":
		var p statusPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			c.log.Warn().Err(err).Msg("malformed status event")
			return
		}
		c.emit(Event{Type: EventDeliveryStatus, Ref: p.Ref, Status: domain.DeliveryStatus(p.Status)})
	default:
		c.log.Debug().Str("event", f.Event).Msg("ignoring unknown bridge event")
	}
}

// emit pushes an event without ever blocking the read loop. When the
// buffer is full the oldest event is dropped.
func (c *bridgeConn) emit(evt Event) {
	for {
		select {
		case c.events <- evt:
			return
		default:
		}
		select {
		case dropped := <-c.events:
			c.log.Warn().Str("type", string(dropped.Type)).Msg("event buffer full, dropping oldest")
		default:
		}
	}
}
