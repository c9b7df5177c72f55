// Package anthropic wraps the official SDK behind a small interface so
// the classifier can be tested without network calls.
package anthropic

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Client is the slice of the Anthropic API the classifier needs.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest describes one messages-API call.
type MessageRequest struct {
	Model       string
	MaxTokens   int64
	System      []SystemBlock
	Messages    []Message
	Temperature *float64
}

// SystemBlock is one system prompt block, optionally cached server-side.
type SystemBlock struct {
	Text         string
	CacheControl *CacheControl
}

// CacheControl marks a block for prompt caching.
type CacheControl struct {
	TTL string // "5m" or "1h"
}

// Message is a single conversational turn.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// MessageResponse is the subset of the API response callers consume.
type MessageResponse struct {
	ID           string
	Model        string
	Content      []ContentBlock
	StopReason   string
	StopSequence string
	Usage        TokenUsage
}

// ContentBlock is one block of response content.
type ContentBlock struct {
	Type string
	Text string
}

// NewClient returns a Client backed by the official SDK.
func NewClient(apiKey string) Client {
	return &sdkClient{client: sdk.NewClient(option.WithAPIKey(apiKey))}
}

type sdkClient struct {
	client sdk.Client
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	msg, err := c.client.Messages.New(ctx, req.sdkParams())
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create message")
	}
	return newMessageResponse(msg), nil
}

func (req MessageRequest) sdkParams() sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  make([]sdk.MessageParam, len(req.Messages)),
	}
	for i, m := range req.Messages {
		params.Messages[i] = m.sdkParam()
	}
	for _, b := range req.System {
		params.System = append(params.System, b.sdkParam())
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	return params
}

func (m Message) sdkParam() sdk.MessageParam {
	block := sdk.NewTextBlock(m.Content)
	if m.Role == "assistant" {
		return sdk.NewAssistantMessage(block)
	}
	return sdk.NewUserMessage(block)
}

func (b SystemBlock) sdkParam() sdk.TextBlockParam {
	out := sdk.TextBlockParam{Text: b.Text}
	if b.CacheControl != nil {
		cc := sdk.NewCacheControlEphemeralParam()
		if b.CacheControl.TTL != "" {
			cc.TTL = sdk.CacheControlEphemeralTTL(b.CacheControl.TTL)
		}
		out.CacheControl = cc
	}
	return out
}

func newMessageResponse(msg *sdk.Message) *MessageResponse {
	resp := &MessageResponse{
		ID:           msg.ID,
		Model:        string(msg.Model),
		StopReason:   string(msg.StopReason),
		StopSequence: msg.StopSequence,
		Content:      make([]ContentBlock, len(msg.Content)),
		Usage: TokenUsage{
			InputTokens:              msg.Usage.InputTokens,
			OutputTokens:             msg.Usage.OutputTokens,
			CacheCreationInputTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     msg.Usage.CacheReadInputTokens,
		},
	}
	for i, b := range msg.Content {
		resp.Content[i] = ContentBlock{Type: b.Type, Text: b.Text}
	}
	return resp
}
