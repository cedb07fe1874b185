// Package nlu defines the contract with the natural-language collaborator
// that classifies inbound messages and generates replies. The engagement
// core only depends on this interface; the model behind it is external.
package nlu

import (
	"context"
	"errors"
	"fmt"

	"github.com/vendazap/vendazap/internal/domain"
)

// ErrUnavailable signals that the collaborator could not be reached or
// did not answer in time. The orchestrator recovers with a fallback reply.
var ErrUnavailable = errors.New("nlu: collaborator unavailable")

// DecodeError signals that the collaborator answered with something that
// is not a well-formed reply decision.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("nlu: malformed decision: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// GenerateRequest bundles everything the collaborator needs to produce
// a reply decision for one inbound message.
type GenerateRequest struct {
	Settings    *domain.StoreSettings
	Contact     *domain.Contact
	MessageText string
	Window      domain.ConversationWindow
	Products    []domain.Product // candidate products for recommendation
}

// Client is the collaborator contract. GenerateResponse must fail with a
// distinguishable error rather than returning a malformed decision.
type Client interface {
	GenerateResponse(ctx context.Context, req GenerateRequest) (*domain.ReplyDecision, error)
	AnalyzeSentiment(ctx context.Context, text string) (string, error)
	DetectIntent(ctx context.Context, text string) (string, error)
}
