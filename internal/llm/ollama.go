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

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaClient is a direct HTTP client for a local Ollama server.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaClient creates an Ollama client.
// baseURL should be like "http://localhost:11434"; empty selects the default.
func NewOllamaClient(baseURL, model string) *OllamaClient {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &OllamaClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Name returns the provider name.
func (o *OllamaClient) Name() string { return "ollama" }

// Complete sends a non-streaming chat request to the Ollama API.
func (o *OllamaClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	payload, err := json.Marshal(o.buildRequestBody(req, false))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: o.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider: o.Name(),
			Code:     resp.StatusCode,
			Message:  strings.TrimSpace(string(respBody)),
		}
	}

	var result ollamaChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &ProviderError{Provider: o.Name(), Message: "malformed response: " + err.Error()}
	}

	return &CompletionResponse{
		Content: result.Message.Content,
		Usage: Usage{
			InputTokens:  result.PromptEvalCount,
			OutputTokens: result.EvalCount,
		},
		Model:    o.model,
		Duration: time.Since(start),
	}, nil
}

// Stream sends a streaming chat request to the Ollama API. Ollama streams
// newline-delimited JSON rather than SSE.
func (o *OllamaClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	eventChan := make(chan StreamEvent)

	payload, err := json.Marshal(o.buildRequestBody(req, true))
	if err != nil {
		close(eventChan)
		return eventChan, fmt.Errorf("marshaling request: %w", err)
	}

	go o.streamRequest(ctx, eventChan, payload)
	return eventChan, nil
}

func (o *OllamaClient) buildRequestBody(req CompletionRequest, stream bool) map[string]any {
	model := req.Model
	if model == "" {
		model = o.model
	}

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

	options := map[string]any{}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if len(options) > 0 {
		body["options"] = options
	}
	return body
}

func (o *OllamaClient) streamRequest(ctx context.Context, eventChan chan StreamEvent, payload []byte) {
	defer close(eventChan)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		eventChan <- StreamEvent{Type: "error", Error: err.Error()}
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
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
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}

		if chunk.Message.Content != "" {
			fullContent.WriteString(chunk.Message.Content)
			eventChan <- StreamEvent{Type: "delta", Content: chunk.Message.Content}
		}
		if chunk.Done {
			usage.InputTokens = chunk.PromptEvalCount
			usage.OutputTokens = chunk.EvalCount
			finished = true
			break
		}
	}

	// A stream that ends without a done:true chunk delivered only part of
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
			Model:   o.model,
		},
	}
}

type ollamaChatResponse struct {
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}
