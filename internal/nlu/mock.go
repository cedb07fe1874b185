package nlu

import (
	"context"

	"github.com/vendazap/vendazap/internal/domain"
)

// MockClient is a test double for Client.
type MockClient struct {
	GenerateFunc  func(ctx context.Context, req GenerateRequest) (*domain.ReplyDecision, error)
	SentimentFunc func(ctx context.Context, text string) (string, error)
	IntentFunc    func(ctx context.Context, text string) (string, error)
}

func (m *MockClient) GenerateResponse(ctx context.Context, req GenerateRequest) (*domain.ReplyDecision, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return &domain.ReplyDecision{Text: "mock reply", Intent: "other", Sentiment: "neutral"}, nil
}

func (m *MockClient) AnalyzeSentiment(ctx context.Context, text string) (string, error) {
	if m.SentimentFunc != nil {
		return m.SentimentFunc(ctx, text)
	}
	return "neutral", nil
}

func (m *MockClient) DetectIntent(ctx context.Context, text string) (string, error) {
	if m.IntentFunc != nil {
		return m.IntentFunc(ctx, text)
	}
	return "other", nil
}
