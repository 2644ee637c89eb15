// Package httpembed implements embeddings.Provider against the generic JSON
// embedding contract: POST {input, model, input_type, output_dimension:1024},
// response {data: [{embedding, index}], usage: {total_tokens}}.
package httpembed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/halcyon-ai/recall/pkg/provider/embeddings"
)

const fixedDimension = 1024

// Config configures a [Client].
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	BatchSize  int // max inputs per request; spec caps submission batches at 128
}

// Client is a net/http implementation of embeddings.Provider.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New constructs a Client, applying spec-mandated defaults for zero-valued fields.
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
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 128
	}
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

var _ embeddings.Provider = (*Client)(nil)

type inputType string

const (
	inputTypeDocument inputType = "document"
	inputTypeQuery    inputType = "query"
)

type wireRequest struct {
	Input          []string  `json:"input"`
	Model          string    `json:"model"`
	InputType      inputType `json:"input_type"`
	OutputDimension int      `json:"output_dimension"`
}

type wireResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed implements embeddings.Provider for a single query-mode input.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embedBatch(ctx, []string{text}, inputTypeQuery)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return make([]float32, fixedDimension), nil
	}
	return vecs[0], nil
}

// EmbedBatch implements embeddings.Provider for document-mode inputs,
// batching up to cfg.BatchSize per request and filtering empty strings
// before transmission, reinserting them as zero vectors in the output.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embedBatch(ctx, texts, inputTypeDocument)
}

func (c *Client) embedBatch(ctx context.Context, texts []string, kind inputType) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var nonEmptyIdx []int
	var nonEmpty []string
	for i, t := range texts {
		if t == "" {
			out[i] = make([]float32, fixedDimension)
			continue
		}
		nonEmptyIdx = append(nonEmptyIdx, i)
		nonEmpty = append(nonEmpty, t)
	}

	for start := 0; start < len(nonEmpty); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(nonEmpty) {
			end = len(nonEmpty)
		}
		batch := nonEmpty[start:end]

		wireReq := wireRequest{
			Input:           batch,
			Model:           c.cfg.Model,
			InputType:       kind,
			OutputDimension: fixedDimension,
		}
		var resp wireResponse
		if err := c.doWithRetry(ctx, wireReq, &resp); err != nil {
			return nil, fmt.Errorf("httpembed: embed batch: %w", err)
		}
		for _, d := range resp.Data {
			globalIdx := nonEmptyIdx[start+d.Index]
			out[globalIdx] = d.Embedding
		}
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (c *Client) Dimensions() int { return fixedDimension }

// ModelID implements embeddings.Provider.
func (c *Client) ModelID() string { return c.cfg.Model }

func (c *Client) doWithRetry(ctx context.Context, wireReq wireRequest, out *wireResponse) error {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		err := c.do(ctx, wireReq, out)
		if err == nil {
			return nil
		}
		lastErr = err

		se, ok := err.(*statusError)
		if !ok || (se.status != http.StatusTooManyRequests && se.status < 500) {
			return err
		}
		if attempt == c.cfg.MaxRetries-1 {
			break
		}

		delay := time.Duration(attempt+1) * c.cfg.RetryDelay
		if se.status == http.StatusTooManyRequests {
			delay *= 2
		}
		if se.retryAfter > delay {
			delay = se.retryAfter
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

type statusError struct {
	status     int
	retryAfter time.Duration
	err        error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

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
		return &statusError{
			status:     resp.StatusCode,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			err:        fmt.Errorf("embedding provider returned status %d: %s", resp.StatusCode, respBody),
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
