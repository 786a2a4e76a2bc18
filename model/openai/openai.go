// Package openai implements model.Service using the OpenAI Chat
// Completions API. A cheaper chat model serves conversational calls while
// structured planning calls go to a stronger model.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/opscrew/opscrew/model"
)

// Options configure the OpenAI adapter. ChatModel handles Generate,
// PlanningModel handles GenerateStructured.
type Options struct {
	ChatModel           string
	PlanningModel       string
	Temperature         float64
	MaxCompletionTokens int64
}

// Service wraps the OpenAI client behind model.Service.
type Service struct {
	client *openai.Client
	opts   Options
}

var _ model.Service = (*Service)(nil)

// New creates an adapter using a client configured from the environment.
func New(optFns ...func(o *Options)) *Service {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates an adapter from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Service {
	opts := Options{
		ChatModel:           openai.ChatModelGPT4oMini,
		PlanningModel:       openai.ChatModelGPT4o,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Service{client: client, opts: opts}
}

// Generate implements model.Service.
func (s *Service) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return s.complete(ctx, s.opts.ChatModel, prompt, systemPrompt)
}

// GenerateStructured implements model.Service. The caller extracts the
// JSON object from the returned text.
func (s *Service) GenerateStructured(ctx context.Context, prompt string) (string, error) {
	return s.complete(ctx, s.opts.PlanningModel, prompt, "")
}

func (s *Service) complete(ctx context.Context, modelName, prompt, systemPrompt string) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               modelName,
		Temperature:         openai.Float(s.opts.Temperature),
		MaxCompletionTokens: openai.Int(s.opts.MaxCompletionTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
