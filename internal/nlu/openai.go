package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/vendazap/vendazap/internal/domain"
	"github.com/vendazap/vendazap/internal/logging"
)

// jsonGuard pins the model to the decision wire format. It goes last in
// the message list so it wins over anything in the conversation.
const jsonGuard = `Responda SOMENTE com JSON válido, sem texto fora do JSON.
Formato estrito:
{"reply":"texto da resposta ou vazio para ficar em silêncio",
 "intent":"greeting|product_inquiry|price_inquiry|complaint|thanks|other",
 "sentiment":"positive|neutral|negative",
 "product_ids":["id", ...],
 "actions":[{"type":"add_to_wishlist","product_id":"..."},
            {"type":"send_coupon","coupon_code":"..."},
            {"type":"schedule_followup","delay_minutes":60,"message":"..."}]}
Campos vazios podem ser omitidos. Se violar o formato, a resposta será descartada.`

// OpenAIClient implements Client on the OpenAI chat completion API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	log    *logging.Logger
}

// NewOpenAIClient creates an OpenAI-backed collaborator. An empty
// baseURL uses the default API endpoint.
func NewOpenAIClient(apiKey, baseURL, model string, log *logging.Logger) *OpenAIClient {
	if model == "" {
		model = openai.GPT4oMini
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		log:    log.Component("nlu"),
	}
}

// GenerateResponse builds the persona prompt and conversation history,
// asks the model for a decision, and decodes it.
func (c *OpenAIClient) GenerateResponse(ctx context.Context, req GenerateRequest) (*domain.ReplyDecision, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Window)+3)

	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: buildPersonaPrompt(req),
	})

	for _, m := range req.Window {
		role := openai.ChatMessageRoleUser
		if m.Direction == domain.DirectionOutbound {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	msgs = append(msgs,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.MessageText},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: jsonGuard},
	)

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("completion failed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", ErrUnavailable)
	}

	raw := resp.Choices[0].Message.Content
	decision, err := parseDecision(raw)
	if err != nil {
		c.log.Warn().Err(err).Str("raw", raw).Msg("undecodable decision")
		return nil, err
	}

	c.log.Debug().
		Str("intent", decision.Intent).
		Str("sentiment", decision.Sentiment).
		Dur("duration", time.Since(start)).
		Msg("decision generated")
	return decision, nil
}

// AnalyzeSentiment classifies a single text as positive, neutral or negative.
func (c *OpenAIClient) AnalyzeSentiment(ctx context.Context, text string) (string, error) {
	return c.classify(ctx, text,
		`Classifique o sentimento do texto. Responda com uma única palavra: positive, neutral ou negative.`)
}

// DetectIntent classifies the commercial intent of a single text.
func (c *OpenAIClient) DetectIntent(ctx context.Context, text string) (string, error) {
	return c.classify(ctx, text,
		`Classifique a intenção do texto. Responda com uma única palavra: greeting, product_inquiry, price_inquiry, complaint, thanks ou other.`)
}

func (c *OpenAIClient) classify(ctx context.Context, text, instruction string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrUnavailable)
	}
	return strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content)), nil
}

// buildPersonaPrompt renders the store persona and candidate products
// into the system prompt.
func buildPersonaPrompt(req GenerateRequest) string {
	var b strings.Builder

	name := "uma loja"
	if req.Settings != nil && req.Settings.StoreName != "" {
		name = req.Settings.StoreName
	}
	fmt.Fprintf(&b, "Você é o atendimento via chat de %s.\n", name)

	if req.Settings != nil {
		if req.Settings.Tone != "" {
			fmt.Fprintf(&b, "Tom de voz: %s.\n", req.Settings.Tone)
		}
		if req.Settings.UseEmoji {
			b.WriteString("Use emojis com moderação.\n")
		} else {
			b.WriteString("Não use emojis.\n")
		}
		if req.Settings.PersonaNotes != "" {
			b.WriteString(req.Settings.PersonaNotes + "\n")
		}
	}

	if req.Contact != nil && req.Contact.DisplayName != "" {
		fmt.Fprintf(&b, "O cliente se chama %s.\n", req.Contact.DisplayName)
	}

	if len(req.Products) > 0 {
		b.WriteString("Produtos disponíveis para recomendação:\n")
		for _, p := range req.Products {
			fmt.Fprintf(&b, "- id=%s nome=%q preço=%.2f\n", p.ID, p.Name, p.Price)
		}
	}

	return b.String()
}

// wire format for the model's decision
type decisionWire struct {
	Reply      string       `json:"reply"`
	Intent     string       `json:"intent"`
	Sentiment  string       `json:"sentiment"`
	ProductIDs []string     `json:"product_ids"`
	Actions    []actionWire `json:"actions"`
}

type actionWire struct {
	Type         string `json:"type"`
	ProductID    string `json:"product_id"`
	CouponCode   string `json:"coupon_code"`
	DelayMinutes int    `json:"delay_minutes"`
	Message      string `json:"message"`
}

// parseDecision decodes the model output into a ReplyDecision. Markdown
// code fences around the JSON are tolerated.
func parseDecision(raw string) (*domain.ReplyDecision, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var wire decisionWire
	if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
		return nil, &DecodeError{Raw: raw, Err: err}
	}

	decision := &domain.ReplyDecision{
		Text:                  strings.TrimSpace(wire.Reply),
		Intent:                wire.Intent,
		Sentiment:             wire.Sentiment,
		RecommendedProductIDs: wire.ProductIDs,
	}

	for _, a := range wire.Actions {
		switch a.Type {
		case "add_to_wishlist":
			if a.ProductID == "" {
				continue
			}
			decision.Actions = append(decision.Actions, domain.ActionRequest{
				Kind:      domain.ActionAddToWishlist,
				ProductID: a.ProductID,
			})
		case "send_coupon":
			decision.Actions = append(decision.Actions, domain.ActionRequest{
				Kind:       domain.ActionSendCoupon,
				CouponCode: a.CouponCode,
			})
		case "schedule_followup":
			if a.DelayMinutes <= 0 || a.Message == "" {
				continue
			}
			decision.Actions = append(decision.Actions, domain.ActionRequest{
				Kind:        domain.ActionScheduleFollowup,
				Delay:       time.Duration(a.DelayMinutes) * time.Minute,
				MessageText: a.Message,
			})
		}
	}

	return decision, nil
}
