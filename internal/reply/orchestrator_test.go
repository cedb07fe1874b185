package reply

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendazap/vendazap/internal/actions"
	"github.com/vendazap/vendazap/internal/contacts"
	"github.com/vendazap/vendazap/internal/domain"
	"github.com/vendazap/vendazap/internal/gating"
	"github.com/vendazap/vendazap/internal/logging"
	"github.com/vendazap/vendazap/internal/nlu"
	"github.com/vendazap/vendazap/internal/outbound"
	"github.com/vendazap/vendazap/internal/store"
	"github.com/vendazap/vendazap/internal/transport"
)

// recordingSender captures outbound sends in order.
type recordingSender struct {
	mu    sync.Mutex
	texts []string
	media []string
}

func (r *recordingSender) SendText(_ context.Context, _, _, text string) (transport.Ack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return transport.Ack{Ref: "ref", Status: domain.DeliverySent}, nil
}

func (r *recordingSender) SendMedia(_ context.Context, _, _, mediaRef, _ string) (transport.Ack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.media = append(r.media, mediaRef)
	return transport.Ack{Ref: "ref", Status: domain.DeliverySent}, nil
}

func (r *recordingSender) sentTexts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.texts))
	copy(out, r.texts)
	return out
}

func (r *recordingSender) sentMedia() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.media))
	copy(out, r.media)
	return out
}

type env struct {
	orch     *Orchestrator
	sender   *recordingSender
	nlu      *nlu.MockClient
	settings *store.SettingsStore
	messages *store.MessageStore
	contacts *store.ContactStore
	products *store.ProductStore
}

// mondayNoon is a Monday, 12:00 UTC.
var mondayNoon = time.Date(2026, time.March, 9, 12, 0, 0, 0, time.UTC)

func testEnv(t *testing.T, cfg Config) *env {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := store.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	contactStore := store.NewContactStore(db)
	messageStore := store.NewMessageStore(db)
	settingsStore := store.NewSettingsStore(db)
	productStore := store.NewProductStore(db)

	require.NoError(t, settingsStore.Put(&domain.StoreSettings{
		StoreID:   "store-1",
		StoreName: "Loja da Ana",
		AutoReply: true,
	}))

	sender := &recordingSender{}
	dispatcher := outbound.NewDispatcher(sender, messageStore, log)
	scheduler := actions.NewScheduler(store.NewFollowupStore(db), contactStore, dispatcher, log, nil)
	t.Cleanup(scheduler.Stop)

	mock := &nlu.MockClient{}
	orch := NewOrchestrator(cfg, Deps{
		Resolver:   contacts.NewResolver(contactStore, log),
		Settings:   settingsStore,
		Products:   productStore,
		Messages:   messageStore,
		Gate:       gating.New(func() time.Time { return mondayNoon }),
		NLU:        mock,
		Dispatcher: dispatcher,
		Actions:    actions.NewExecutor(contactStore, dispatcher, scheduler, log),
	}, log)
	orch.pickFallback = func(int) int { return 0 }
	orch.promoRoll = func() float64 { return 1 }

	return &env{
		orch:     orch,
		sender:   sender,
		nlu:      mock,
		settings: settingsStore,
		messages: messageStore,
		contacts: contactStore,
		products: productStore,
	}
}

func inboundAt(body string, ts time.Time) domain.InboundMessage {
	return domain.InboundMessage{
		StoreID:     "store-1",
		FromAddress: "5511999990000",
		FromName:    "Maria",
		ChatType:    domain.ChatTypeDirect,
		Body:        body,
		Timestamp:   ts,
	}
}

func inbound(body string) domain.InboundMessage {
	return inboundAt(body, mondayNoon)
}

func TestHandleInbound_GreetingReply(t *testing.T) {
	e := testEnv(t, Config{})
	e.nlu.GenerateFunc = func(_ context.Context, req nlu.GenerateRequest) (*domain.ReplyDecision, error) {
		assert.Equal(t, "Bom dia", req.MessageText)
		assert.Equal(t, "Maria", req.Contact.DisplayName)
		return &domain.ReplyDecision{Text: "Bom dia, Maria! Como posso ajudar?", Intent: "greeting", Sentiment: "positive"}, nil
	}

	e.orch.HandleInbound(inbound("Bom dia"))

	assert.Eventually(t, func() bool {
		texts := e.sender.sentTexts()
		return len(texts) == 1 && texts[0] == "Bom dia, Maria! Como posso ajudar?"
	}, time.Second, 5*time.Millisecond)

	// Both sides of the exchange are recorded.
	assert.Eventually(t, func() bool {
		contact, err := e.contacts.GetByAddress("store-1", "5511999990000")
		if err != nil || contact == nil {
			return false
		}
		msgs, err := e.messages.ListByContact("store-1", contact.ID)
		return err == nil && len(msgs) == 2 &&
			msgs[0].Direction == domain.DirectionInbound &&
			msgs[1].Direction == domain.DirectionOutbound
	}, time.Second, 5*time.Millisecond)
}

func TestHandleInbound_PerContactOrdering(t *testing.T) {
	e := testEnv(t, Config{})
	e.nlu.GenerateFunc = func(_ context.Context, req nlu.GenerateRequest) (*domain.ReplyDecision, error) {
		if req.MessageText == "primeira" {
			time.Sleep(50 * time.Millisecond) // slow first reply must still land first
		}
		return &domain.ReplyDecision{Text: "re: " + req.MessageText}, nil
	}

	e.orch.HandleInbound(inboundAt("primeira", mondayNoon))
	e.orch.HandleInbound(inboundAt("segunda", mondayNoon.Add(time.Second)))

	assert.Eventually(t, func() bool {
		return len(e.sender.sentTexts()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"re: primeira", "re: segunda"}, e.sender.sentTexts())
}

func TestHandleInbound_WindowHoldsPriorContext(t *testing.T) {
	e := testEnv(t, Config{WindowSize: 2})

	var windows [][]string
	var mu sync.Mutex
	e.nlu.GenerateFunc = func(_ context.Context, req nlu.GenerateRequest) (*domain.ReplyDecision, error) {
		var contents []string
		for _, m := range req.Window {
			contents = append(contents, m.Content)
		}
		mu.Lock()
		windows = append(windows, contents)
		mu.Unlock()
		return &domain.ReplyDecision{Text: "ok"}, nil
	}

	e.orch.HandleInbound(inbound("um"))
	e.orch.HandleInbound(inbound("dois"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(windows) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, windows[0], "first message sees no prior context")
	assert.Equal(t, []string{"um", "ok"}, windows[1], "second message sees the first exchange")
}

func TestHandleInbound_AwayMessageOutsideHours(t *testing.T) {
	e := testEnv(t, Config{})
	require.NoError(t, e.settings.Put(&domain.StoreSettings{
		StoreID:     "store-1",
		AutoReply:   true,
		AwayMessage: "Estamos fechados! Voltamos amanhã às 9h.",
		Hours: map[int]domain.DaySchedule{
			int(time.Sunday): {IsOpen: true, Open: "09:00", Close: "18:00"},
		},
	}))

	var nluCalls atomic.Int32
	e.nlu.GenerateFunc = func(context.Context, nlu.GenerateRequest) (*domain.ReplyDecision, error) {
		nluCalls.Add(1)
		return &domain.ReplyDecision{Text: "não deveria"}, nil
	}

	e.orch.HandleInbound(inbound("Oi, tem tamanho M?"))

	assert.Eventually(t, func() bool {
		texts := e.sender.sentTexts()
		return len(texts) == 1 && texts[0] == "Estamos fechados! Voltamos amanhã às 9h."
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), nluCalls.Load(), "generation is skipped outside business hours")

	// The inbound message is still recorded.
	contact, err := e.contacts.GetByAddress("store-1", "5511999990000")
	require.NoError(t, err)
	require.NotNil(t, contact)
	msgs, err := e.messages.ListByContact("store-1", contact.ID)
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	assert.Equal(t, domain.DirectionInbound, msgs[0].Direction)
}

func TestHandleInbound_DisabledStoreStaysSilent(t *testing.T) {
	e := testEnv(t, Config{})
	require.NoError(t, e.settings.Put(&domain.StoreSettings{StoreID: "store-1", AutoReply: false}))

	e.orch.HandleInbound(inbound("Oi"))

	// Contact resolution and message recording still happen.
	assert.Eventually(t, func() bool {
		contact, err := e.contacts.GetByAddress("store-1", "5511999990000")
		return err == nil && contact != nil
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, e.sender.sentTexts())
}

func TestHandleInbound_FallbackOnNLUFailure(t *testing.T) {
	e := testEnv(t, Config{Fallbacks: []string{"Já te respondo!"}})
	e.nlu.GenerateFunc = func(context.Context, nlu.GenerateRequest) (*domain.ReplyDecision, error) {
		return nil, nlu.ErrUnavailable
	}

	e.orch.HandleInbound(inbound("Oi"))

	assert.Eventually(t, func() bool {
		texts := e.sender.sentTexts()
		return len(texts) == 1 && texts[0] == "Já te respondo!"
	}, time.Second, 5*time.Millisecond)
}

func TestHandleInbound_FallbackOnNLUTimeout(t *testing.T) {
	e := testEnv(t, Config{NLUTimeout: 20 * time.Millisecond, Fallbacks: []string{"Um momento!"}})
	e.nlu.GenerateFunc = func(ctx context.Context, _ nlu.GenerateRequest) (*domain.ReplyDecision, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	e.orch.HandleInbound(inbound("Oi"))

	assert.Eventually(t, func() bool {
		texts := e.sender.sentTexts()
		return len(texts) == 1 && texts[0] == "Um momento!"
	}, time.Second, 5*time.Millisecond)
}

func TestHandleInbound_SendsRecommendedProducts(t *testing.T) {
	e := testEnv(t, Config{})
	require.NoError(t, e.products.Put(&domain.Product{
		ID: "p1", StoreID: "store-1", Name: "Vestido Floral", Price: 129.90, MediaRef: "media/p1.jpg",
	}))
	require.NoError(t, e.products.Put(&domain.Product{
		ID: "p2", StoreID: "store-1", Name: "Bolsa de Couro", Price: 249.00,
	}))

	e.nlu.GenerateFunc = func(context.Context, nlu.GenerateRequest) (*domain.ReplyDecision, error) {
		return &domain.ReplyDecision{
			Text:                  "Temos sim! Olha essas opções:",
			RecommendedProductIDs: []string{"p1", "p2"},
		}, nil
	}

	e.orch.HandleInbound(inbound("Tem vestido?"))

	assert.Eventually(t, func() bool {
		return len(e.sender.sentTexts()) == 2 && len(e.sender.sentMedia()) == 1
	}, time.Second, 5*time.Millisecond)

	texts := e.sender.sentTexts()
	assert.Contains(t, texts[1], "Vestido Floral")
	assert.Contains(t, texts[1], "Bolsa de Couro")
	assert.Equal(t, []string{"media/p1.jpg"}, e.sender.sentMedia(), "only products with media get a media send")
}

func TestHandleInbound_PromoCouponOnPositiveSentiment(t *testing.T) {
	e := testEnv(t, Config{})
	require.NoError(t, e.settings.Put(&domain.StoreSettings{
		StoreID:           "store-1",
		AutoReply:         true,
		CouponCode:        "DEZ10",
		CouponProbability: 0.3,
	}))
	e.nlu.GenerateFunc = func(context.Context, nlu.GenerateRequest) (*domain.ReplyDecision, error) {
		return &domain.ReplyDecision{Text: "Que bom que gostou!", Sentiment: "positive"}, nil
	}
	e.orch.promoRoll = func() float64 { return 0.1 } // below the threshold, promo fires

	e.orch.HandleInbound(inbound("Amei a loja!"))

	assert.Eventually(t, func() bool {
		texts := e.sender.sentTexts()
		return len(texts) == 2 && strings.Contains(texts[1], "DEZ10")
	}, time.Second, 5*time.Millisecond)
}

func TestHandleInbound_NoPromoWhenRollMisses(t *testing.T) {
	e := testEnv(t, Config{})
	require.NoError(t, e.settings.Put(&domain.StoreSettings{
		StoreID:           "store-1",
		AutoReply:         true,
		CouponCode:        "DEZ10",
		CouponProbability: 0.3,
	}))
	e.nlu.GenerateFunc = func(context.Context, nlu.GenerateRequest) (*domain.ReplyDecision, error) {
		return &domain.ReplyDecision{Text: "Que bom!", Sentiment: "positive"}, nil
	}
	e.orch.promoRoll = func() float64 { return 0.9 }

	e.orch.HandleInbound(inbound("Amei!"))

	assert.Eventually(t, func() bool {
		return len(e.sender.sentTexts()) == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, e.sender.sentTexts(), 1)
}

func TestMaybePromoCoupon_SkipsExplicitCouponAction(t *testing.T) {
	e := testEnv(t, Config{})
	e.orch.promoRoll = func() float64 { return 0 }

	settings := &domain.StoreSettings{CouponCode: "DEZ10", CouponProbability: 1}
	decision := &domain.ReplyDecision{
		Sentiment: "positive",
		Actions:   []domain.ActionRequest{{Kind: domain.ActionSendCoupon, CouponCode: "DEZ10"}},
	}

	assert.Nil(t, e.orch.maybePromoCoupon(settings, decision), "an explicit coupon action suppresses the promo")
}

func TestHandleInbound_ExecutesRequestedActions(t *testing.T) {
	e := testEnv(t, Config{})
	e.nlu.GenerateFunc = func(context.Context, nlu.GenerateRequest) (*domain.ReplyDecision, error) {
		return &domain.ReplyDecision{
			Text:    "Adicionei à sua lista de desejos!",
			Actions: []domain.ActionRequest{{Kind: domain.ActionAddToWishlist, ProductID: "p1"}},
		}, nil
	}

	e.orch.HandleInbound(inbound("Guarda esse vestido pra mim"))

	assert.Eventually(t, func() bool {
		contact, err := e.contacts.GetByAddress("store-1", "5511999990000")
		if err != nil || contact == nil {
			return false
		}
		wishlist, err := e.contacts.Wishlist(contact.ID)
		return err == nil && len(wishlist) == 1 && wishlist[0] == "p1"
	}, time.Second, 5*time.Millisecond)
}

func TestHandleInbound_MissingSettingsNoReply(t *testing.T) {
	e := testEnv(t, Config{})
	e.nlu.GenerateFunc = func(context.Context, nlu.GenerateRequest) (*domain.ReplyDecision, error) {
		return nil, errors.New("must not be called")
	}

	e.orch.HandleInbound(domain.InboundMessage{
		StoreID:     "store-missing",
		FromAddress: "5511888880000",
		ChatType:    domain.ChatTypeDirect,
		Body:        "Oi",
		Timestamp:   mondayNoon,
	})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, e.sender.sentTexts())
}
