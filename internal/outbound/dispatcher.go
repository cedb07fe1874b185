// Package outbound serializes and records outbound sends.
package outbound

import (
	"context"
	"sync"

	"github.com/vendazap/vendazap/internal/domain"
	"github.com/vendazap/vendazap/internal/logging"
	"github.com/vendazap/vendazap/internal/store"
	"github.com/vendazap/vendazap/internal/transport"
)

// Sender delivers messages over a store's live transport session.
// Implemented by the session manager.
type Sender interface {
	SendText(ctx context.Context, storeID, to, text string) (transport.Ack, error)
	SendMedia(ctx context.Context, storeID, to, mediaRef, caption string) (transport.Ack, error)
}

// Dispatcher invokes the transport send primitive and persists the
// resulting outbound Message with delivery metadata.
type Dispatcher struct {
	sender   Sender
	messages *store.MessageStore
	log      *logging.Logger

	mu    sync.Mutex
	locks map[string]*contactLock
}

// contactLock serializes sends for one contact. Refcounted so idle
// entries are reclaimed instead of accumulating per contact.
type contactLock struct {
	mu   sync.Mutex
	refs int
}

// NewDispatcher creates a dispatcher over the given sender and message store.
func NewDispatcher(sender Sender, messages *store.MessageStore, log *logging.Logger) *Dispatcher {
	return &Dispatcher{
		sender:   sender,
		messages: messages,
		log:      log.Component("outbound"),
		locks:    make(map[string]*contactLock),
	}
}

// SendText sends a text message and records it. On transport failure the
// message is still persisted with DeliveryFailed and the error returned.
func (d *Dispatcher) SendText(ctx context.Context, storeID, contactID, address, text string) (*domain.Message, error) {
	return d.send(ctx, storeID, contactID, address, text, "", "")
}

// SendMedia sends a media item with a caption and records it.
func (d *Dispatcher) SendMedia(ctx context.Context, storeID, contactID, address, mediaRef, caption string) (*domain.Message, error) {
	return d.send(ctx, storeID, contactID, address, caption, mediaRef, caption)
}

func (d *Dispatcher) send(ctx context.Context, storeID, contactID, address, content, mediaRef, caption string) (*domain.Message, error) {
	// Sends to the same contact go out in submission order; different
	// contacts do not block each other.
	key := storeID + "/" + contactID
	lock := d.acquire(key)
	defer d.release(key, lock)

	var (
		ack     transport.Ack
		sendErr error
	)
	if mediaRef != "" {
		ack, sendErr = d.sender.SendMedia(ctx, storeID, address, mediaRef, caption)
	} else {
		ack, sendErr = d.sender.SendText(ctx, storeID, address, content)
	}

	msg := &domain.Message{
		StoreID:        storeID,
		ContactID:      contactID,
		Direction:      domain.DirectionOutbound,
		Content:        content,
		MediaRef:       mediaRef,
		DeliveryStatus: ack.Status,
		TransportRef:   ack.Ref,
	}
	if sendErr != nil {
		msg.DeliveryStatus = domain.DeliveryFailed
	}

	if err := d.messages.Insert(msg); err != nil {
		d.log.Error().Err(err).Str("store", storeID).Str("contact", contactID).Msg("failed to record outbound message")
		if sendErr == nil {
			return nil, err
		}
	}

	if sendErr != nil {
		d.log.Warn().Err(sendErr).Str("store", storeID).Str("to", address).Msg("transport send failed")
		return msg, sendErr
	}

	d.log.Debug().
		Str("store", storeID).
		Str("to", address).
		Str("ref", ack.Ref).
		Str("status", string(msg.DeliveryStatus)).
		Msg("message dispatched")
	return msg, nil
}

// RecordDeliveryStatus applies a transport delivery-status callback to
// the message carrying the given reference.
func (d *Dispatcher) RecordDeliveryStatus(storeID, ref string, status domain.DeliveryStatus) {
	if err := d.messages.UpdateStatusByRef(storeID, ref, status); err != nil {
		d.log.Warn().Err(err).Str("store", storeID).Str("ref", ref).Msg("failed to update delivery status")
	}
}

func (d *Dispatcher) acquire(key string) *contactLock {
	d.mu.Lock()
	lock, ok := d.locks[key]
	if !ok {
		lock = &contactLock{}
		d.locks[key] = lock
	}
	lock.refs++
	d.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// release drops the caller's reference and deletes the entry once no
// send is holding or waiting on it.
func (d *Dispatcher) release(key string, lock *contactLock) {
	lock.mu.Unlock()

	d.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(d.locks, key)
	}
	d.mu.Unlock()
}
