package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Generation settings are fixed by the provider contract: deterministic
// output, bounded answer length, no repetition penalties.
const (
	genMaxTokens   = 200
	genTemperature = 0
	genTopP        = 1
)

// maxBodyBytes caps how much of a provider response body is read into
// error reports.
const maxBodyBytes = 64 << 10

// WatsonxOptions holds the settings for constructing a WatsonxClient.
type WatsonxOptions struct {
	// URL is the chat-completion endpoint.
	URL string
	// APIKey is the long-lived IBM Cloud API key.
	APIKey string
	// ProjectID is the watsonx project/workspace identifier.
	ProjectID string
	// ModelID is the target model (e.g. "meta-llama/llama-3-3-70b-instruct").
	ModelID string
	// IAMEndpoint overrides the IAM token endpoint; empty means the
	// public IBM Cloud endpoint.
	IAMEndpoint string
	// Timeout bounds each HTTP call; zero means 60s.
	Timeout time.Duration
}

// WatsonxClient implements Client against the watsonx.ai chat-completion
// endpoint. Each Generate call obtains a bearer token from the IAM token
// source (cached until expiry, invalidated on a 401) and posts the
// flattened prompt. It is safe for concurrent use.
type WatsonxClient struct {
	// url is the chat-completion endpoint.
	url string
	// projectID and modelID identify the workspace and target model.
	projectID string
	modelID   string
	// tokens exchanges the API key for bearer tokens.
	tokens *iamTokenSource
	// client is the shared HTTP client.
	client *http.Client
}

// NewWatsonxClient constructs a WatsonxClient from the given options.
// All of URL, APIKey, ProjectID, and ModelID are required.
func NewWatsonxClient(opts WatsonxOptions) (*WatsonxClient, error) {
	switch {
	case opts.URL == "":
		return nil, fmt.Errorf("llm: endpoint URL is required")
	case opts.APIKey == "":
		return nil, fmt.Errorf("llm: API key is required")
	case opts.ProjectID == "":
		return nil, fmt.Errorf("llm: project id is required")
	case opts.ModelID == "":
		return nil, fmt.Errorf("llm: model id is required")
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	return &WatsonxClient{
		url:       opts.URL,
		projectID: opts.ProjectID,
		modelID:   opts.ModelID,
		tokens:    newIAMTokenSource(opts.IAMEndpoint, opts.APIKey, httpClient),
		client:    httpClient,
	}, nil
}

// generateRequest is the JSON body posted to the chat-completion endpoint.
// The endpoint reads the flattened prompt from Input; Messages carries a
// fixed priming exchange the provider expects alongside it.
type generateRequest struct {
	Messages         []map[string]any `json:"messages"`
	ModelID          string           `json:"model_id"`
	ProjectID        string           `json:"project_id"`
	Input            string           `json:"input"`
	FrequencyPenalty int              `json:"frequency_penalty"`
	MaxTokens        int              `json:"max_tokens"`
	PresencePenalty  int              `json:"presence_penalty"`
	Temperature      int              `json:"temperature"`
	TopP             int              `json:"top_p"`
}

// generateResponse is the expected shape of a successful completion.
type generateResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// primingMessages builds the fixed priming exchange sent with every request.
// Its content is part of the provider contract and opaque to callers.
func primingMessages(input string) []map[string]any {
	return []map[string]any{
		{"role": "system", "content": input},
		{"role": "user", "content": []map[string]string{{"type": "text", "text": "bonjour"}}},
		{"role": "assistant", "content": "### Hello\n**Welcome** to our conversation. I'm here to help with any questions or topics you'd like to discuss. \n\nPlease feel free to ask me anything, and I'll do my best to provide a helpful and informative response. \n\n### How can I assist you today?"},
	}
}

// flatten renders prompt messages into the single text blob the endpoint
// expects: system content is tagged with a "[System]" marker, user content
// is appended verbatim, anything else is dropped.
func flatten(messages []Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			sb.WriteString("[System] ")
			sb.WriteString(msg.Content)
			sb.WriteString("\n")
		case RoleUser:
			sb.WriteString(msg.Content)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Generate posts the flattened prompt and returns the first completion's
// message content. A 401 invalidates the cached token before failing, so
// the next call re-authenticates.
func (c *WatsonxClient) Generate(ctx context.Context, messages []Message) (string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}

	input := flatten(messages)
	payload, err := json.Marshal(generateRequest{
		Messages:         primingMessages(input),
		ModelID:          c.modelID,
		ProjectID:        c.projectID,
		Input:            input,
		FrequencyPenalty: 0,
		MaxTokens:        genMaxTokens,
		PresencePenalty:  0,
		Temperature:      genTemperature,
		TopP:             genTopP,
	})
	if err != nil {
		return "", &GenerationError{Reason: "marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", &GenerationError{Reason: "create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &GenerationError{Reason: "request failed", Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &GenerationError{Reason: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate()
		}
		return "", &GenerationError{
			Reason: "completion request rejected",
			Status: resp.StatusCode,
			Body:   string(body),
		}
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &GenerationError{Reason: "malformed provider response", Body: string(body), Err: err}
	}
	if len(parsed.Choices) == 0 {
		return "", &GenerationError{Reason: "malformed provider response", Body: string(body)}
	}

	return parsed.Choices[0].Message.Content, nil
}

var _ Client = (*WatsonxClient)(nil)
