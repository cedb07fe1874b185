package outbound

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendazap/vendazap/internal/domain"
	"github.com/vendazap/vendazap/internal/logging"
	"github.com/vendazap/vendazap/internal/store"
	"github.com/vendazap/vendazap/internal/transport"
)

// fakeSender is a test double for Sender.
type fakeSender struct {
	mu        sync.Mutex
	texts     []string
	mediaRefs []string
	textErr   error
	nextRef   string
}

func (f *fakeSender) SendText(_ context.Context, _, _, text string) (transport.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.textErr != nil {
		return transport.Ack{}, f.textErr
	}
	f.texts = append(f.texts, text)
	return transport.Ack{Ref: f.nextRef, Status: domain.DeliverySent}, nil
}

func (f *fakeSender) SendMedia(_ context.Context, _, _, mediaRef, _ string) (transport.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mediaRefs = append(f.mediaRefs, mediaRef)
	return transport.Ack{Ref: f.nextRef, Status: domain.DeliveryPending}, nil
}

func testEnv(t *testing.T, sender Sender) (*Dispatcher, *store.MessageStore, string, *store.DB) {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := store.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	contact, err := store.NewContactStore(db).Upsert("store-1", "5511999990000", "")
	require.NoError(t, err)

	messages := store.NewMessageStore(db)
	return NewDispatcher(sender, messages, log), messages, contact.ID, db
}

func TestSendText_PersistsWithAckStatus(t *testing.T) {
	sender := &fakeSender{nextRef: "wamid-1"}
	d, messages, contactID, _ := testEnv(t, sender)

	msg, err := d.SendText(context.Background(), "store-1", contactID, "5511999990000", "Olá!")
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionOutbound, msg.Direction)
	assert.Equal(t, domain.DeliverySent, msg.DeliveryStatus)
	assert.Equal(t, "wamid-1", msg.TransportRef)

	persisted, err := messages.ListByContact("store-1", contactID)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, "Olá!", persisted[0].Content)
}

func TestSendText_TransportFailureRecorded(t *testing.T) {
	sender := &fakeSender{textErr: errors.New("socket gone")}
	d, messages, contactID, _ := testEnv(t, sender)

	msg, err := d.SendText(context.Background(), "store-1", contactID, "5511999990000", "Olá!")
	require.Error(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, domain.DeliveryFailed, msg.DeliveryStatus)

	persisted, err := messages.ListByContact("store-1", contactID)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, domain.DeliveryFailed, persisted[0].DeliveryStatus)
}

func TestSendMedia_PersistsRefAndCaption(t *testing.T) {
	sender := &fakeSender{nextRef: "wamid-2"}
	d, messages, contactID, _ := testEnv(t, sender)

	msg, err := d.SendMedia(context.Background(), "store-1", contactID, "5511999990000", "media/p1.jpg", "Vestido Floral — R$ 129,90")
	require.NoError(t, err)
	assert.Equal(t, "media/p1.jpg", msg.MediaRef)
	assert.Equal(t, domain.DeliveryPending, msg.DeliveryStatus)

	persisted, err := messages.ListByContact("store-1", contactID)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, "Vestido Floral — R$ 129,90", persisted[0].Content)
}

func TestRecordDeliveryStatus(t *testing.T) {
	sender := &fakeSender{nextRef: "wamid-3"}
	d, messages, contactID, _ := testEnv(t, sender)

	_, err := d.SendText(context.Background(), "store-1", contactID, "5511999990000", "Olá!")
	require.NoError(t, err)

	d.RecordDeliveryStatus("store-1", "wamid-3", domain.DeliveryRead)

	persisted, err := messages.ListByContact("store-1", contactID)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, domain.DeliveryRead, persisted[0].DeliveryStatus)
}

func TestSend_LockEntriesReclaimed(t *testing.T) {
	sender := &fakeSender{nextRef: "ref"}
	d, _, contactID, db := testEnv(t, sender)

	other, err := store.NewContactStore(db).Upsert("store-1", "5511888880000", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := d.SendText(context.Background(), "store-1", contactID, "5511999990000", "oi")
			assert.NoError(t, err, n)
		}(i)
	}
	_, err = d.SendText(context.Background(), "store-1", other.ID, "5511888880000", "oi")
	require.NoError(t, err)
	wg.Wait()

	// Idle contacts must not leave entries behind.
	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Empty(t, d.locks)
}

func TestSend_OrderPreservedPerContact(t *testing.T) {
	sender := &fakeSender{nextRef: "ref"}
	d, _, contactID, _ := testEnv(t, sender)

	for i, text := range []string{"primeira", "segunda", "terceira"} {
		_, err := d.SendText(context.Background(), "store-1", contactID, "5511999990000", text)
		require.NoError(t, err, i)
	}

	assert.Equal(t, []string{"primeira", "segunda", "terceira"}, sender.texts)
}
