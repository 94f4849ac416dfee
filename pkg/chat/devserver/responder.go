package devserver

import (
	"context"
	"strings"

	"github.com/go-go-golems/parley/pkg/chat"
	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// Responder produces the assistant's reply to the last message of history.
type Responder interface {
	Reply(ctx context.Context, history []chat.Message) (string, error)
}

// EchoResponder answers with the user's own words.
type EchoResponder struct{}

func (EchoResponder) Reply(_ context.Context, history []chat.Message) (string, error) {
	if len(history) == 0 {
		return "", errors.New("nothing to reply to")
	}
	return "You said: " + history[len(history)-1].Content, nil
}

const DefaultOpenAIModel = openai.GPT3Dot5Turbo

// OpenAIResponder forwards the conversation to an OpenAI-compatible completion
// endpoint.
type OpenAIResponder struct {
	client       *openai.Client
	model        string
	systemPrompt string
}

type OpenAIOption func(*openAISettings)

type openAISettings struct {
	baseURL      string
	model        string
	systemPrompt string
}

func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(s *openAISettings) {
		s.baseURL = baseURL
	}
}

func WithOpenAIModel(model string) OpenAIOption {
	return func(s *openAISettings) {
		s.model = model
	}
}

func WithSystemPrompt(prompt string) OpenAIOption {
	return func(s *openAISettings) {
		s.systemPrompt = prompt
	}
}

func NewOpenAIResponder(apiKey string, options ...OpenAIOption) (*OpenAIResponder, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	settings := &openAISettings{model: DefaultOpenAIModel}
	for _, o := range options {
		o(settings)
	}

	config := openai.DefaultConfig(apiKey)
	if settings.baseURL != "" {
		config.BaseURL = strings.TrimSuffix(settings.baseURL, "/")
	}

	return &OpenAIResponder{
		client:       openai.NewClientWithConfig(config),
		model:        settings.model,
		systemPrompt: settings.systemPrompt,
	}, nil
}

func (o *OpenAIResponder) Reply(ctx context.Context, history []chat.Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if o.systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: o.systemPrompt,
		})
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == chat.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: msgs,
	})
	if err != nil {
		return "", errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// OllamaResponder asks a model served by ollama. The client is usually built
// with api.ClientFromEnvironment, which reads OLLAMA_HOST.
type OllamaResponder struct {
	client       *api.Client
	model        string
	systemPrompt string
}

func NewOllamaResponder(client *api.Client, model string, systemPrompt string) (*OllamaResponder, error) {
	if client == nil {
		return nil, errors.New("ollama client is required")
	}
	if model == "" {
		return nil, errors.New("ollama model is required")
	}
	return &OllamaResponder{
		client:       client,
		model:        model,
		systemPrompt: systemPrompt,
	}, nil
}

func (o *OllamaResponder) Reply(ctx context.Context, history []chat.Message) (string, error) {
	msgs := make([]api.Message, 0, len(history)+1)
	if o.systemPrompt != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: o.systemPrompt})
	}
	for _, m := range history {
		role := string(chat.RoleUser)
		if m.Role == chat.RoleAssistant {
			role = string(chat.RoleAssistant)
		}
		msgs = append(msgs, api.Message{Role: role, Content: m.Content})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   &stream,
	}

	var reply strings.Builder
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "ollama chat failed")
	}
	if reply.Len() == 0 {
		return "", errors.New("ollama returned an empty reply")
	}
	return reply.String(), nil
}
