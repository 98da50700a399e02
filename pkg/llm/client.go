// Package llm wraps the language-model capabilities shared by every
// agent: streamed chat completion, strict-JSON structured generation, and
// text embedding. It targets Gemini's OpenAI-compatible endpoint through
// the go-openai client so the rest of the system never depends on a
// provider-specific SDK.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Message roles mirror the OpenAI chat wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single turn in a chat completion request.
type Message struct {
	Role       string
	Content    string
	ToolCallID string
	ToolName   string
}

// ToolDefinition describes a callable tool offered to the model, carrying
// its JSON Schema parameter description verbatim.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema json.RawMessage
}

// ToolCall is the model's request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ChunkType identifies the kind of a streamed Chunk.
type ChunkType string

const (
	ChunkTypeText     ChunkType = "text"
	ChunkTypeToolCall ChunkType = "tool_call"
	ChunkTypeUsage    ChunkType = "usage"
	ChunkTypeError    ChunkType = "error"
)

// Chunk is one element of a streamed Generate response.
type Chunk struct {
	Type     ChunkType
	Text     string
	ToolCall *ToolCall
	Usage    *Usage
	Err      error
}

// Usage reports token consumption for a completed request.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GenerateInput is a single chat completion request.
type GenerateInput struct {
	Messages    []Message
	Tools       []ToolDefinition
	Model       string
	Temperature float32
}

// Client is the capability contract used by the Planner and Retriever:
// stream chat completions, parse a strict-JSON structured reply, and
// embed text for retrieval.
type Client interface {
	// Generate streams a chat completion. The returned channel is closed
	// when the stream completes; a failure is delivered as a final Chunk
	// with Type ChunkTypeError rather than as a returned error, so a
	// caller already mid-stream still observes it uniformly.
	Generate(ctx context.Context, input GenerateInput) (<-chan Chunk, error)

	// GenerateJSON issues a non-streamed completion and strictly parses
	// the response body into v. Returns an error if the request fails or
	// the model's reply is not valid JSON; any further validation of v is
	// left to the caller.
	GenerateJSON(ctx context.Context, input GenerateInput, v any) error

	// Embed returns the embedding vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DefaultChatModel and DefaultEmbedModel name the Gemini models exposed
// through the OpenAI-compatible endpoint.
const (
	DefaultChatModel  = "gemini-2.0-flash"
	DefaultEmbedModel = "text-embedding-004"
)

type client struct {
	oa         *openai.Client
	chatModel  string
	embedModel string
}

// NewClient builds a Client against Gemini's OpenAI-compatible REST
// endpoint, authenticating with apiKey. baseURL defaults to Gemini's
// published compatibility path when empty.
func NewClient(apiKey, baseURL, chatModel, embedModel string) Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	}
	cfg.BaseURL = baseURL
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	if embedModel == "" {
		embedModel = DefaultEmbedModel
	}
	return &client{
		oa:         openai.NewClientWithConfig(cfg),
		chatModel:  chatModel,
		embedModel: embedModel,
	}
}

func (c *client) toRequest(input GenerateInput, stream bool) openai.ChatCompletionRequest {
	model := input.Model
	if model == "" {
		model = c.chatModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(input.Messages))
	for _, m := range input.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.ToolName,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: input.Temperature,
		Stream:      stream,
	}

	for _, t := range input.Tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  json.RawMessage(t.ParametersSchema),
			},
		})
	}
	return req
}

func (c *client) Generate(ctx context.Context, input GenerateInput) (<-chan Chunk, error) {
	req := c.toRequest(input, true)
	stream, err := c.oa.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("creating chat completion stream: %w", err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				out <- Chunk{Type: ChunkTypeError, Err: err}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]
			for _, tc := range choice.Delta.ToolCalls {
				out <- Chunk{Type: ChunkTypeToolCall, ToolCall: &ToolCall{
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				}}
			}
			if choice.Delta.Content != "" {
				out <- Chunk{Type: ChunkTypeText, Text: choice.Delta.Content}
			}
			if resp.Usage != nil {
				out <- Chunk{Type: ChunkTypeUsage, Usage: &Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				}}
			}
		}
	}()
	return out, nil
}

func (c *client) GenerateJSON(ctx context.Context, input GenerateInput, v any) error {
	req := c.toRequest(input, false)
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}

	resp, err := c.oa.CreateChatCompletion(ctx, req)
	if err != nil {
		return fmt.Errorf("creating chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("chat completion returned no choices")
	}
	content := stripCodeFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return fmt.Errorf("parsing model response as JSON: %w: body=%s", err, content)
	}
	return nil
}

// stripCodeFence removes a surrounding ```json ... ``` or ``` ... ``` wrapper.
// ResponseFormat: JSONObject keeps this rare in practice, but some models
// still wrap strict-JSON output in a fence despite the request.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func (c *client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.oa.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}
