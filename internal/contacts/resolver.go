// Package contacts maps raw sender identifiers to persisted contacts.
package contacts

import (
	"errors"

	"github.com/vendazap/vendazap/internal/domain"
	"github.com/vendazap/vendazap/internal/logging"
	"github.com/vendazap/vendazap/internal/store"
)

// ErrEmptyAddress is returned when an inbound event carries no sender.
var ErrEmptyAddress = errors.New("contacts: empty external address")

// Resolver turns (store, external address) into a contact record,
// creating one on first contact.
type Resolver struct {
	contacts *store.ContactStore
	log      *logging.Logger
}

// NewResolver creates a resolver over the contact store.
func NewResolver(contacts *store.ContactStore, log *logging.Logger) *Resolver {
	return &Resolver{
		contacts: contacts,
		log:      log.Component("contacts"),
	}
}

// Resolve returns the contact for (storeID, externalAddress), creating
// it on first contact. Every call refreshes lastInteractionAt, even when
// no reply ends up being generated. Concurrent calls for the same key
// collapse into a single upsert and never create duplicates.
func (r *Resolver) Resolve(storeID, externalAddress, displayNameHint string) (*domain.Contact, error) {
	if externalAddress == "" {
		return nil, ErrEmptyAddress
	}

	contact, err := r.contacts.Upsert(storeID, externalAddress, displayNameHint)
	if err != nil {
		return nil, err
	}

	r.log.Debug().
		Str("store", storeID).
		Str("contact", contact.ID).
		Str("address", externalAddress).
		Msg("contact resolved")
	return contact, nil
}
