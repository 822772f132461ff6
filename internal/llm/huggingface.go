package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultHFBaseURL = "https://router.huggingface.co/v1"

// HuggingFaceClient talks to the Hugging Face inference router, which
// exposes an OpenAI-compatible chat completions API.
type HuggingFaceClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewHuggingFaceClient creates a Hugging Face inference client.
// An empty baseURL selects the public router.
func NewHuggingFaceClient(baseURL, apiKey, model string) *HuggingFaceClient {
	if baseURL == "" {
		baseURL = defaultHFBaseURL
	}
	return &HuggingFaceClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Name returns the provider name.
func (c *HuggingFaceClient) Name() string { return "huggingface" }

// Complete sends a non-streaming chat completion request.
func (c *HuggingFaceClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	payload, err := json.Marshal(c.buildRequestBody(req, false))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: c.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider: c.Name(),
			Code:     resp.StatusCode,
			Message:  strings.TrimSpace(string(respBody)),
		}
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &ProviderError{Provider: c.Name(), Message: "malformed response: " + err.Error()}
	}
	if len(result.Choices) == 0 {
		return nil, &ProviderError{Provider: c.Name(), Message: "response contained no choices"}
	}

	return &CompletionResponse{
		Content:    result.Choices[0].Message.Content,
		StopReason: result.Choices[0].FinishReason,
		Usage: Usage{
			InputTokens:  result.Usage.PromptTokens,
			OutputTokens: result.Usage.CompletionTokens,
		},
		Model:    result.Model,
		Duration: time.Since(start),
	}, nil
}

// Stream sends a streaming chat completion request.
func (c *HuggingFaceClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	eventChan := make(chan StreamEvent)

	payload, err := json.Marshal(c.buildRequestBody(req, true))
	if err != nil {
		close(eventChan)
		return eventChan, fmt.Errorf("marshaling request: %w", err)
	}

	go c.streamRequest(ctx, eventChan, payload)
	return eventChan, nil
}

func (c *HuggingFaceClient) newRequest(ctx context.Context, payload []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	return httpReq, nil
}

func (c *HuggingFaceClient) buildRequestBody(req CompletionRequest, stream bool) map[string]any {
	model := req.Model
	if model == "" {
		model = c.model
	}

	// The OpenAI-style API carries the system prompt as the first message.
	messages := make([]map[string]string, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, map[string]string{"role": RoleSystem, "content": req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, map[string]string{"role": m.Role, "content": m.Content})
	}

	body := map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   stream,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	return body
}

func (c *HuggingFaceClient) streamRequest(ctx context.Context, eventChan chan StreamEvent, payload []byte) {
	defer close(eventChan)

	httpReq, err := c.newRequest(ctx, payload)
	if err != nil {
		eventChan <- StreamEvent{Type: "error", Error: err.Error()}
		return
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		eventChan <- StreamEvent{Type: "error", Error: fmt.Sprintf("request failed: %v", err)}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		eventChan <- StreamEvent{Type: "error", Error: fmt.Sprintf("API error (%d): %s", resp.StatusCode, string(body))}
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	var fullContent strings.Builder
	var usage Usage
	finished := false

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		dataStr := strings.TrimPrefix(line, "data: ")
		if dataStr == "[DONE]" {
			finished = true
			break
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(dataStr), &chunk); err != nil {
			continue
		}

		if chunk.Usage != nil {
			usage.InputTokens = chunk.Usage.PromptTokens
			usage.OutputTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			fullContent.WriteString(delta)
			eventChan <- StreamEvent{Type: "delta", Content: delta}
		}
	}

	// A stream that ends without the [DONE] marker delivered only part of
	// the answer; never report it as a completion.
	if err := scanner.Err(); err != nil {
		eventChan <- StreamEvent{Type: "error", Error: fmt.Sprintf("stream read failed: %v", err)}
		return
	}
	if !finished {
		if err := ctx.Err(); err != nil {
			eventChan <- StreamEvent{Type: "error", Error: fmt.Sprintf("stream cancelled: %v", err)}
			return
		}
		eventChan <- StreamEvent{Type: "error", Error: "stream ended before completion"}
		return
	}

	eventChan <- StreamEvent{
		Type: "done",
		Response: &CompletionResponse{
			Content: fullContent.String(),
			Usage:   usage,
			Model:   c.model,
		},
	}
}

// OpenAI-compatible wire structures.

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage chatUsage `json:"usage"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}
