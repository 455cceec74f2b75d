// Package provider implements grading.ScoreProvider against OpenAI-compatible
// chat completion endpoints.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/grading"
)

// maxBodyBytes caps how much of a provider response is read.
const maxBodyBytes = 1 << 20

// ChatProvider asks a chat model to grade an essay and parses a JSON score
// out of its reply.
type ChatProvider struct {
	name       string
	httpClient *http.Client
	apiKey     string
	apiURL     string
	model      string
}

// NewChatProvider creates a ChatProvider. Timeouts come from the caller's
// context, so the client itself has none.
func NewChatProvider(name, apiURL, apiKey, model string, httpClient *http.Client) *ChatProvider {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ChatProvider{
		name:       name,
		httpClient: httpClient,
		apiKey:     apiKey,
		apiURL:     strings.TrimRight(apiURL, "/"),
		model:      model,
	}
}

// FromConfig builds the configured providers in fallback order, skipping any
// without an endpoint.
func FromConfig(cfg *config.Config) []grading.ScoreProvider {
	var out []grading.ScoreProvider
	for _, pc := range []config.ProviderConfig{cfg.PrimaryProvider, cfg.SecondaryProvider} {
		if !pc.Enabled() {
			continue
		}
		out = append(out, NewChatProvider(pc.Name, pc.URL, pc.Key, pc.Model, nil))
	}
	return out
}

func (p *ChatProvider) Name() string { return p.name }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type scoreReply struct {
	Score *json.Number `json:"score"`
}

const systemPrompt = `You are an exam grader. You receive a student's essay answer, the reference answer key, and a score range. Judge how well the answer covers the key's meaning, not its exact wording.

Respond with ONLY valid JSON (no markdown, no code fences, no explanations) in exactly this format:
{"score": <number>}

Rules:
- The score must be a number between the given minimum and maximum, inclusive
- An empty or irrelevant answer receives the minimum
- A complete and correct answer receives the maximum`

func userPrompt(req grading.EssayRequest) string {
	return fmt.Sprintf("Minimum score: %s\nMaximum score: %s\n\nAnswer key:\n%s\n\nStudent answer:\n%s",
		strconv.FormatFloat(req.MinScore, 'f', -1, 64),
		strconv.FormatFloat(req.MaxScore, 'f', -1, 64),
		req.AnswerKey,
		req.Answer,
	)
}

// Score sends one grading request. Network failures and non-200 statuses wrap
// grading.ErrTransport; a reply without a usable number wraps
// grading.ErrInvalidResponse. Range checking is left to the grader.
func (p *ChatProvider) Score(ctx context.Context, req grading.EssayRequest) (float64, error) {
	body, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", grading.ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", grading.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, fmt.Errorf("%w: read response: %v", grading.ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d: %s", grading.ErrTransport, resp.StatusCode, truncate(raw, 200))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(raw, &chatResp); err != nil {
		return 0, fmt.Errorf("%w: envelope: %v", grading.ErrInvalidResponse, err)
	}
	if chatResp.Error != nil {
		return 0, fmt.Errorf("%w: provider error: %s", grading.ErrInvalidResponse, chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return 0, fmt.Errorf("%w: no choices", grading.ErrInvalidResponse)
	}

	return parseScore(chatResp.Choices[0].Message.Content)
}

// parseScore accepts {"score": n} (optionally fenced) or a bare number.
func parseScore(content string) (float64, error) {
	content = cleanJSONContent(content)

	if n, err := strconv.ParseFloat(content, 64); err == nil {
		return n, nil
	}

	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	var reply scoreReply
	if err := dec.Decode(&reply); err != nil {
		return 0, fmt.Errorf("%w: %v", grading.ErrInvalidResponse, err)
	}
	if reply.Score == nil {
		return 0, fmt.Errorf("%w: missing score", grading.ErrInvalidResponse)
	}

	n, err := reply.Score.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: score %q: %v", grading.ErrInvalidResponse, reply.Score.String(), err)
	}
	return n, nil
}

func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
