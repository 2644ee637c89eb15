// Package httpchat implements llm.Provider against the generic JSON chat
// contract: POST {model, messages, tools?, max_tokens?, temperature?},
// response choices[0].message.{content, tool_calls?}.
package httpchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/halcyon-ai/recall/pkg/provider/llm"
	"github.com/halcyon-ai/recall/pkg/types"
)

// Config configures a [Client].
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	Capabilities types.ModelCapabilities
}

// Client is a net/http implementation of llm.Provider against the spec's
// generic chat wire contract.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New constructs a Client, applying sensible defaults for zero-valued fields.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

var _ llm.Provider = (*Client)(nil)

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string           `json:"id"`
	Function wireToolCallFunc `json:"function"`
}

type wireToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Content   string         `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func toWireMessages(msgs []types.Message) []wireMessage {
	out := make([]wireMessage, len(msgs))
	for i, m := range msgs {
		wm := wireMessage{Role: m.Role, Content: m.Content, Name: m.Name, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:       tc.ID,
				Function: wireToolCallFunc{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		out[i] = wm
	}
	return out
}

func toWireTools(defs []types.ToolDefinition) []wireTool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]wireTool, len(defs))
	for i, d := range defs {
		out[i] = wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		}
	}
	return out
}

func (c *Client) buildRequest(req llm.CompletionRequest) wireRequest {
	msgs := req.Messages
	if req.SystemPrompt != "" {
		msgs = append([]types.Message{{Role: "system", Content: req.SystemPrompt}}, msgs...)
	}
	return wireRequest{
		Model:       c.cfg.Model,
		Messages:    toWireMessages(msgs),
		Tools:       toWireTools(req.Tools),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
}

// Complete implements llm.Provider.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	wireReq := c.buildRequest(req)

	var resp wireResponse
	if err := c.doWithRetry(ctx, wireReq, &resp); err != nil {
		return nil, fmt.Errorf("httpchat: complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return &llm.CompletionResponse{}, nil
	}

	choice := resp.Choices[0].Message
	out := &llm.CompletionResponse{
		Content: choice.Content,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, types.ToolCall{
			ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

// StreamCompletion implements llm.Provider. The generic wire contract does
// not expose a streaming mode, so this performs a single Complete call and
// emits its result as one terminal chunk.
func (c *Client) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	ch := make(chan llm.Chunk, 1)
	resp, err := c.Complete(ctx, req)
	if err != nil {
		close(ch)
		return nil, err
	}
	ch <- llm.Chunk{Text: resp.Content, ToolCalls: resp.ToolCalls, FinishReason: "stop"}
	close(ch)
	return ch, nil
}

// CountTokens implements llm.Provider with a conservative approximation:
// four characters per token, which is the common rule of thumb for
// English-heavy chat content when no tokenizer is available locally.
func (c *Client) CountTokens(messages []types.Message) (int, error) {
	chars := 0
	for _, m := range messages {
		chars += len(m.Content)
	}
	return (chars + 3) / 4, nil
}

// Capabilities implements llm.Provider.
func (c *Client) Capabilities() types.ModelCapabilities { return c.cfg.Capabilities }

func (c *Client) doWithRetry(ctx context.Context, wireReq wireRequest, out *wireResponse) error {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		err := c.do(ctx, wireReq, out)
		if err == nil {
			return nil
		}
		lastErr = err

		status, retryAfter, transient := transientStatus(err)
		if !transient {
			return err
		}
		if attempt == c.cfg.MaxRetries-1 {
			break
		}

		delay := time.Duration(attempt+1) * c.cfg.RetryDelay
		if status == http.StatusTooManyRequests {
			delay *= 2
		}
		if retryAfter > delay {
			delay = retryAfter
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

// statusError carries the HTTP status and optional Retry-After duration so
// doWithRetry can decide whether and how long to back off.
type statusError struct {
	status     int
	retryAfter time.Duration
	err        error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func transientStatus(err error) (status int, retryAfter time.Duration, transient bool) {
	se, ok := err.(*statusError)
	if !ok {
		return 0, 0, false
	}
	return se.status, se.retryAfter, se.status == http.StatusTooManyRequests || se.status >= 500
}

func (c *Client) do(ctx context.Context, wireReq wireRequest, out *wireResponse) error {
	body, err := json.Marshal(wireReq)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return &statusError{
			status:     resp.StatusCode,
			retryAfter: retryAfter,
			err:        fmt.Errorf("chat provider returned status %d: %s", resp.StatusCode, respBody),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}
