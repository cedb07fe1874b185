// Package actions runs the discrete side effects a generated reply may
// request: coupon sends, wishlist updates and follow-up scheduling.
package actions

import (
	"context"
	"fmt"

	"github.com/vendazap/vendazap/internal/domain"
	"github.com/vendazap/vendazap/internal/logging"
	"github.com/vendazap/vendazap/internal/outbound"
	"github.com/vendazap/vendazap/internal/store"
)

// Executor runs action requests with per-action failure isolation: one
// action failing never prevents its siblings from running, and never
// rolls back the reply already sent.
type Executor struct {
	contacts   *store.ContactStore
	dispatcher *outbound.Dispatcher
	scheduler  *Scheduler
	log        *logging.Logger
}

// NewExecutor creates an action executor.
func NewExecutor(contacts *store.ContactStore, dispatcher *outbound.Dispatcher, scheduler *Scheduler, log *logging.Logger) *Executor {
	return &Executor{
		contacts:   contacts,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		log:        log.Component("actions"),
	}
}

// Execute runs each requested action at most once. Failures are logged
// and isolated per action.
func (e *Executor) Execute(ctx context.Context, storeID string, contact *domain.Contact, requests []domain.ActionRequest) {
	for _, req := range requests {
		if err := e.execute(ctx, storeID, contact, req); err != nil {
			e.log.Warn().Err(err).
				Str("store", storeID).
				Str("contact", contact.ID).
				Str("action", string(req.Kind)).
				Msg("action failed")
		}
	}
}

func (e *Executor) execute(ctx context.Context, storeID string, contact *domain.Contact, req domain.ActionRequest) error {
	switch req.Kind {
	case domain.ActionAddToWishlist:
		// Adding an already-present product is a no-op.
		return e.contacts.AddToWishlist(contact.ID, req.ProductID)

	case domain.ActionSendCoupon:
		if req.CouponCode == "" {
			return fmt.Errorf("send_coupon without a code")
		}
		text := fmt.Sprintf("Aqui está seu cupom: %s 🎁", req.CouponCode)
		_, err := e.dispatcher.SendText(ctx, storeID, contact.ID, contact.ExternalAddress, text)
		return err

	case domain.ActionScheduleFollowup:
		return e.scheduler.Schedule(storeID, contact.ExternalAddress, req.MessageText, req.Delay)

	default:
		return fmt.Errorf("unknown action kind %q", req.Kind)
	}
}
