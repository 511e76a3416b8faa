package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"statusboard/pkg/logger"
	"statusboard/pkg/metrics"
)

const (
	ModelID         = "google/flan-t5-base"
	DefaultEndpoint = "https://api-inference.huggingface.co/models/" + ModelID

	requestTimeout = 30 * time.Second
	// only a failed response's body is capped
	maxErrorBody = 64 << 10
)

// Generation parameters are fixed by policy.
var defaultParameters = parameters{
	MaxNewTokens: 75,
	DoSample:     true,
	Temperature:  0.7,
	TopP:         0.9,
}

type parameters struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	DoSample     bool    `json:"do_sample"`
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"top_p"`
}

type request struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

type generation struct {
	GeneratedText *string `json:"generated_text"`
}

type errorBody struct {
	Error         string          `json:"error"`
	EstimatedTime float64         `json:"estimated_time"`
	Warnings      json.RawMessage `json:"warnings"`
}

// Client calls the hosted text-generation model. It makes exactly one
// attempt per call and never retries.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(endpoint string, logger *zap.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
	}
}

// BuildPrompt turns a project's update bullets into the model prompt.
func BuildPrompt(projectName, bullets string) string {
	return fmt.Sprintf("Write a short narrative for a status update based on these points for the %s team: %s", projectName, bullets)
}

// Generate returns the generated text for prompt. An empty token fails with
// KindMissingToken before any request is made. The prompt is sent as is,
// even when empty.
func (c *Client) Generate(ctx context.Context, prompt, apiToken string) (string, error) {
	log := logger.WithTrace(ctx, c.logger)
	start := time.Now()

	text, err := c.generate(ctx, prompt, apiToken)

	outcome := "ok"
	var nerr *Error
	if errors.As(err, &nerr) {
		outcome = nerr.Kind.String()
	}
	metrics.RecordNarrativeCallLatency(outcome, time.Since(start))

	if err != nil {
		log.Warn("Narrative generation failed",
			zap.String("outcome", outcome),
			zap.Duration("took", time.Since(start)),
			zap.Error(err),
		)
		return "", err
	}
	log.Info("Narrative generated",
		zap.Int("chars", len(text)),
		zap.Duration("took", time.Since(start)),
	)
	return text, nil
}

func (c *Client) generate(ctx context.Context, prompt, apiToken string) (string, error) {
	if apiToken == "" {
		return "", &Error{Kind: KindMissingToken}
	}

	b, err := json.Marshal(request{Inputs: prompt, Parameters: defaultParameters})
	if err != nil {
		return "", &Error{Kind: KindNetwork, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return "", &Error{Kind: KindNetwork, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err != nil {
			return "", &Error{Kind: KindNetwork, Cause: fmt.Errorf("read response: %w", err)}
		}
		return "", &Error{Kind: KindHTTP, Status: resp.StatusCode, Detail: httpDetail(resp.StatusCode, body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Cause: fmt.Errorf("read response: %w", err)}
	}
	return parseGenerations(resp.StatusCode, body)
}

func parseGenerations(status int, body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)

	// some failures come back with a 2xx status and an error object
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var eb errorBody
		if err := json.Unmarshal(trimmed, &eb); err == nil && eb.Error != "" {
			return "", &Error{Kind: KindHTTP, Status: status, Detail: httpDetail(status, body)}
		}
		return "", &Error{Kind: KindUnexpectedResponse, Detail: "expected a list of generations"}
	}

	var gens []generation
	if err := json.Unmarshal(trimmed, &gens); err != nil {
		return "", &Error{Kind: KindUnexpectedResponse, Cause: err}
	}
	if len(gens) == 0 {
		return "", &Error{Kind: KindUnexpectedResponse, Detail: "empty generation list"}
	}
	if gens[0].GeneratedText == nil {
		return "", &Error{Kind: KindUnexpectedResponse, Detail: "generated_text missing"}
	}
	return *gens[0].GeneratedText, nil
}

// httpDetail assembles a readable message from whatever structured error
// fields the service returned, falling back to the raw body.
func httpDetail(status int, body []byte) string {
	prefix := fmt.Sprintf("Status Code: %d.", status)

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		raw := strings.TrimSpace(string(body))
		if raw == "" {
			return prefix + " Empty response body."
		}
		return fmt.Sprintf("%s Response: %s", prefix, raw)
	}

	var parts []string
	if eb.Error != "" {
		parts = append(parts, "API Error: "+eb.Error)
	}
	if eb.EstimatedTime > 0 {
		parts = append(parts, fmt.Sprintf("Model may be loading (~%.0fs wait suggested).", eb.EstimatedTime))
	}
	if w := warningsText(eb.Warnings); w != "" {
		parts = append(parts, "Warnings: "+w)
	}
	if len(parts) == 0 {
		parts = append(parts, "Response: "+strings.TrimSpace(string(body)))
	}
	return prefix + " " + strings.Join(parts, " ")
}

func warningsText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return one
	}
	return string(raw)
}
