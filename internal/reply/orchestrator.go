// Package reply coordinates reply generation around the NLU collaborator:
// per-contact ordering, context-window assembly, gating, fallbacks and
// the hand-off to actions and outbound dispatch.
package reply

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/vendazap/vendazap/internal/actions"
	"github.com/vendazap/vendazap/internal/contacts"
	"github.com/vendazap/vendazap/internal/domain"
	"github.com/vendazap/vendazap/internal/gating"
	"github.com/vendazap/vendazap/internal/logging"
	"github.com/vendazap/vendazap/internal/nlu"
	"github.com/vendazap/vendazap/internal/outbound"
	"github.com/vendazap/vendazap/internal/store"
)

// defaultFallbacks is used when no fallback set is configured. The
// conversation must never die silently on an NLU outage.
var defaultFallbacks = []string{
	"Desculpe, não consegui processar sua mensagem agora. Pode repetir?",
	"Opa, tive um probleminha aqui. Pode mandar de novo?",
	"Um momento, por favor! Já te respondo.",
}

// Config tunes the orchestrator.
type Config struct {
	WindowSize int           // context window size, default 10
	NLUTimeout time.Duration // bound on the collaborator call, default 20s
	Fallbacks  []string      // fallback reply set
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Resolver   *contacts.Resolver
	Settings   *store.SettingsStore
	Products   *store.ProductStore
	Messages   *store.MessageStore
	Gate       *gating.Policy
	NLU        nlu.Client
	Dispatcher *outbound.Dispatcher
	Actions    *actions.Executor
}

// Orchestrator processes inbound messages one at a time per contact, in
// arrival order. Different contacts and stores process in parallel.
type Orchestrator struct {
	cfg  Config
	deps Deps
	log  *logging.Logger

	pickFallback func(n int) int // injectable for deterministic tests
	promoRoll    func() float64  // injectable random source for coupon promos

	mu     sync.Mutex
	queues map[string]*contactQueue
}

type contactQueue struct {
	backlog []domain.InboundMessage
	busy    bool
}

// NewOrchestrator creates a reply orchestrator.
func NewOrchestrator(cfg Config, deps Deps, log *logging.Logger) *Orchestrator {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 10
	}
	if cfg.NLUTimeout <= 0 {
		cfg.NLUTimeout = 20 * time.Second
	}
	if len(cfg.Fallbacks) == 0 {
		cfg.Fallbacks = defaultFallbacks
	}
	return &Orchestrator{
		cfg:          cfg,
		deps:         deps,
		log:          log.Component("reply"),
		pickFallback: rand.Intn,
		promoRoll:    rand.Float64,
		queues:       make(map[string]*contactQueue),
	}
}

// HandleInbound enqueues an inbound message for its contact's serial
// queue. It returns immediately; processing happens on the queue worker.
func (o *Orchestrator) HandleInbound(msg domain.InboundMessage) {
	key := msg.StoreID + "/" + msg.FromAddress

	o.mu.Lock()
	q, ok := o.queues[key]
	if !ok {
		q = &contactQueue{}
		o.queues[key] = q
	}
	q.backlog = append(q.backlog, msg)
	start := !q.busy
	if start {
		q.busy = true
	}
	o.mu.Unlock()

	if start {
		go o.drain(key, q)
	}
}

// drain processes a contact's backlog strictly in arrival order. The
// worker exits once the backlog is empty.
func (o *Orchestrator) drain(key string, q *contactQueue) {
	for {
		o.mu.Lock()
		if len(q.backlog) == 0 {
			q.busy = false
			delete(o.queues, key)
			o.mu.Unlock()
			return
		}
		msg := q.backlog[0]
		q.backlog = q.backlog[1:]
		o.mu.Unlock()

		o.process(context.Background(), msg)
	}
}

// process runs the full pipeline for one inbound message. Collaborator
// errors are swallowed here with logging: a broken auto-reply must never
// reach the customer as silence, except when gating said not to respond.
func (o *Orchestrator) process(ctx context.Context, in domain.InboundMessage) {
	log := o.log.Store(in.StoreID)

	contact, err := o.deps.Resolver.Resolve(in.StoreID, in.FromAddress, in.FromName)
	if err != nil {
		log.Error().Err(err).Str("from", in.FromAddress).Msg("contact resolution failed")
		return
	}

	settings, err := o.deps.Settings.Get(in.StoreID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load store settings")
		return
	}

	verdict := o.deps.Gate.ShouldAutoRespond(settings, contact, in)
	if !verdict.Allow {
		o.recordInbound(contact, in, log)
		if verdict.OverrideText != "" {
			if _, err := o.deps.Dispatcher.SendText(ctx, in.StoreID, contact.ID, contact.ExternalAddress, verdict.OverrideText); err != nil {
				log.Warn().Err(err).Msg("failed to send away message")
			}
		}
		return
	}

	// The window holds prior context only; the inbound text travels
	// separately, so it is recorded after assembly.
	window, err := o.deps.Messages.Recent(in.StoreID, contact.ID, o.cfg.WindowSize)
	if err != nil {
		log.Warn().Err(err).Msg("failed to assemble conversation window")
		window = nil
	}
	o.recordInbound(contact, in, log)

	decision := o.generate(ctx, settings, contact, in, window, log)
	if decision == nil {
		return
	}

	if decision.Text != "" {
		if _, err := o.deps.Dispatcher.SendText(ctx, in.StoreID, contact.ID, contact.ExternalAddress, decision.Text); err != nil {
			log.Warn().Err(err).Msg("reply send failed")
		}
	}

	if len(decision.RecommendedProductIDs) > 0 {
		o.sendRecommendations(ctx, in.StoreID, contact, decision.RecommendedProductIDs, log)
	}

	requests := decision.Actions
	if promo := o.maybePromoCoupon(settings, decision); promo != nil {
		requests = append(requests, *promo)
	}
	if len(requests) > 0 {
		o.deps.Actions.Execute(ctx, in.StoreID, contact, requests)
	}
}

// generate calls the NLU collaborator under a timeout, substituting a
// fallback reply on failure.
func (o *Orchestrator) generate(ctx context.Context, settings *domain.StoreSettings, contact *domain.Contact, in domain.InboundMessage, window domain.ConversationWindow, log *logging.Logger) *domain.ReplyDecision {
	nluCtx, cancel := context.WithTimeout(ctx, o.cfg.NLUTimeout)
	defer cancel()

	catalog, err := o.deps.Products.ListByStore(in.StoreID, 50)
	if err != nil {
		log.Warn().Err(err).Msg("catalog lookup failed")
	}

	decision, err := o.deps.NLU.GenerateResponse(nluCtx, nlu.GenerateRequest{
		Settings:    settings,
		Contact:     contact,
		MessageText: in.Body,
		Window:      window,
		Products:    catalog,
	})
	if err == nil {
		log.Debug().Str("intent", decision.Intent).Str("sentiment", decision.Sentiment).Msg("decision received")
		return decision
	}

	log.Warn().Err(err).Msg("reply generation failed, using fallback")
	return &domain.ReplyDecision{Text: o.cfg.Fallbacks[o.pickFallback(len(o.cfg.Fallbacks))]}
}

// sendRecommendations sends a textual product summary plus one media
// item per recommended product that has one.
func (o *Orchestrator) sendRecommendations(ctx context.Context, storeID string, contact *domain.Contact, ids []string, log *logging.Logger) {
	products, err := o.deps.Products.ByIDs(storeID, ids)
	if err != nil {
		log.Warn().Err(err).Msg("product lookup failed")
		return
	}
	if len(products) == 0 {
		return
	}

	var b strings.Builder
	b.WriteString("Acho que você vai gostar:\n")
	for _, p := range products {
		fmt.Fprintf(&b, "• %s — R$ %.2f\n", p.Name, p.Price)
	}
	if _, err := o.deps.Dispatcher.SendText(ctx, storeID, contact.ID, contact.ExternalAddress, strings.TrimRight(b.String(), "\n")); err != nil {
		log.Warn().Err(err).Msg("recommendation summary send failed")
	}

	for _, p := range products {
		if p.MediaRef == "" {
			continue
		}
		caption := fmt.Sprintf("%s — R$ %.2f", p.Name, p.Price)
		if _, err := o.deps.Dispatcher.SendMedia(ctx, storeID, contact.ID, contact.ExternalAddress, p.MediaRef, caption); err != nil {
			log.Warn().Err(err).Str("product", p.ID).Msg("recommendation media send failed")
		}
	}
}

// maybePromoCoupon decides whether a spontaneous coupon accompanies a
// positive interaction. The roll is injectable so tests can force both
// branches.
func (o *Orchestrator) maybePromoCoupon(settings *domain.StoreSettings, decision *domain.ReplyDecision) *domain.ActionRequest {
	if settings == nil || settings.CouponCode == "" || settings.CouponProbability <= 0 {
		return nil
	}
	if decision.Sentiment != "positive" {
		return nil
	}
	for _, a := range decision.Actions {
		if a.Kind == domain.ActionSendCoupon {
			return nil
		}
	}
	if o.promoRoll() >= settings.CouponProbability {
		return nil
	}
	return &domain.ActionRequest{Kind: domain.ActionSendCoupon, CouponCode: settings.CouponCode}
}

func (o *Orchestrator) recordInbound(contact *domain.Contact, in domain.InboundMessage, log *logging.Logger) {
	msg := &domain.Message{
		StoreID:        in.StoreID,
		ContactID:      contact.ID,
		Direction:      domain.DirectionInbound,
		Content:        in.Body,
		MediaRef:       in.MediaRef,
		Timestamp:      in.Timestamp,
		DeliveryStatus: domain.DeliveryDelivered,
	}
	if err := o.deps.Messages.Insert(msg); err != nil {
		log.Warn().Err(err).Msg("failed to record inbound message")
	}
}
