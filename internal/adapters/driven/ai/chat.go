package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// chatModel sends one prompt and returns the text reply.
type chatModel interface {
	complete(ctx context.Context, req chatRequest) (string, error)
	model() string
}

type chatRequest struct {
	system      string
	prompt      string
	temperature float32
	maxTokens   int
	jsonReply   bool
}

// openAIChat talks to OpenAI, Azure OpenAI or any compatible endpoint.
type openAIChat struct {
	client *openai.Client
	name   string
}

func newOpenAIChat(apiKey, baseURL, model string) *openAIChat {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return &openAIChat{client: openai.NewClientWithConfig(cfg), name: model}
}

func newAzureChat(apiKey, endpoint, apiVersion, deployment string) *openAIChat {
	cfg := openai.DefaultAzureConfig(apiKey, endpoint)
	if apiVersion == "" {
		apiVersion = defaultAzureAPIVersion
	}
	cfg.APIVersion = apiVersion
	return &openAIChat{client: openai.NewClientWithConfig(cfg), name: deployment}
}

func (c *openAIChat) model() string { return c.name }

func (c *openAIChat) complete(ctx context.Context, req chatRequest) (string, error) {
	chat := openai.ChatCompletionRequest{
		Model: c.name,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.system},
			{Role: openai.ChatMessageRoleUser, Content: req.prompt},
		},
		Temperature: req.temperature,
		MaxTokens:   req.maxTokens,
	}
	if req.jsonReply {
		chat.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}

// anthropicChat talks to the Anthropic messages API.
type anthropicChat struct {
	client *anthropic.Client
	name   string
}

func newAnthropicChat(apiKey, baseURL, model string) *anthropicChat {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(baseURL, "/")))
	}
	return &anthropicChat{client: anthropic.NewClient(apiKey, opts...), name: model}
}

func (c *anthropicChat) model() string { return c.name }

func (c *anthropicChat) complete(ctx context.Context, req chatRequest) (string, error) {
	// Instructions travel in the user turn alongside the content
	prompt := req.system + "\n\n" + req.prompt
	if req.jsonReply {
		prompt += "\n\nReturn ONLY JSON."
	}
	temperature := req.temperature

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.name),
		MaxTokens:   req.maxTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		return "", err
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text, nil
		}
	}
	return "", errEmptyReply
}

var errEmptyReply = errors.New("model returned no text")

// newLimiter allows requestsPerMinute calls with a burst of one.
// Zero or negative disables limiting.
func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), 1)
}

// openAIError classifies go-openai and go-anthropic failures. Throttling,
// server errors and transport failures wrap unavailable so callers retry.
func openAIError(unavailable error, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusError(unavailable, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return statusError(unavailable, reqErr.HTTPStatusCode, reqErr.Error())
	}
	var anthErr *anthropic.APIError
	if errors.As(err, &anthErr) {
		return statusError(unavailable, anthropicStatus(anthErr), anthErr.Message)
	}
	return fmt.Errorf("%w: %v", unavailable, err)
}

func anthropicStatus(err *anthropic.APIError) int {
	switch string(err.Type) {
	case "rate_limit_error", "overloaded_error":
		return http.StatusTooManyRequests
	case "api_error":
		return http.StatusInternalServerError
	case "authentication_error":
		return http.StatusUnauthorized
	case "permission_error":
		return http.StatusForbidden
	case "not_found_error":
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// extractJSON trims prose around the first JSON object in s.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
