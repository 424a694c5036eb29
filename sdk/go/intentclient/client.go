package intentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the intent parsing service.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// TokenAmount is one amount/token pair extracted from a prompt.
type TokenAmount struct {
	Amount *string `json:"amount"`
	Token  string  `json:"token"`
}

// Parameters holds the slots of a single intent.
type Parameters struct {
	From          string        `json:"from"`
	To            *string       `json:"to"`
	SourceNetwork *string       `json:"source_network"`
	DestNetwork   *string       `json:"dest_network"`
	Tokens        []TokenAmount `json:"tokens"`
	Token2        *string       `json:"token2"`
	QueryType     *string       `json:"query_type"`
}

// Intent pairs an intent label with its parameters.
type Intent struct {
	Intent     string     `json:"intent"`
	Parameters Parameters `json:"parameters"`
}

// ParseResult is the "result" object returned by the parse endpoint. The shape
// of Parameters depends on Intent, see Intents.
type ParseResult struct {
	IntentCount int             `json:"intent_count"`
	Intent      *string         `json:"intent"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Intents flattens the result: nil when nothing was recognised, one entry for a
// single intent and every clause for "Multi".
func (r ParseResult) Intents() ([]Intent, error) {
	if r.Intent == nil {
		return nil, nil
	}
	if *r.Intent == "Multi" {
		var multi struct {
			Intents []Intent `json:"intents"`
		}
		if err := json.Unmarshal(r.Parameters, &multi); err != nil {
			return nil, fmt.Errorf("decode multi parameters: %w", err)
		}
		return multi.Intents, nil
	}
	var params Parameters
	if err := json.Unmarshal(r.Parameters, &params); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	return []Intent{{Intent: *r.Intent, Parameters: params}}, nil
}

// Entity is an annotated character span inside a prompt.
type Entity struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
}

// AnnotatedPrompt is a labelled training example.
type AnnotatedPrompt struct {
	Prompt   string   `json:"prompt"`
	Entities []Entity `json:"entities"`
	Intent   *string  `json:"intent"`
}

// Record is a stored training example as returned by ListPrompts.
type Record struct {
	ID        string   `json:"id"`
	Prompt    string   `json:"prompt"`
	Entities  []Entity `json:"entities"`
	Intent    *string  `json:"intent"`
	CreatedAt int64    `json:"created_at"`
}

// Health is the payload of the health endpoint.
type Health struct {
	Status     string         `json:"status"`
	Timestamp  string         `json:"timestamp"`
	Uptime     string         `json:"uptime"`
	Corpus     string         `json:"corpus"`
	Vocabulary map[string]int `json:"vocabulary"`
	Error      string         `json:"error,omitempty"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("intent api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("intent api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the intent service. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// Parse sends a prompt to the parser.
func (c *Client) Parse(ctx context.Context, prompt string) (ParseResult, error) {
	var resp struct {
		Status string      `json:"status"`
		Result ParseResult `json:"result"`
	}
	if err := c.post(ctx, "/api/v1/parse", map[string]string{"prompt": prompt}, &resp); err != nil {
		return ParseResult{}, err
	}
	return resp.Result, nil
}

// LogPrompt stores an unannotated prompt and returns the record id.
func (c *Client) LogPrompt(ctx context.Context, prompt string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/api/v1/prompts", map[string]string{"prompt": prompt}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// AddAnnotatedPrompt stores a labelled example and returns the record id.
func (c *Client) AddAnnotatedPrompt(ctx context.Context, prompt AnnotatedPrompt) (string, error) {
	if prompt.Entities == nil {
		prompt.Entities = []Entity{}
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/api/v1/prompts/annotated", prompt, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// ListPrompts returns the newest stored prompts. A non-positive limit uses the
// server default.
func (c *Client) ListPrompts(ctx context.Context, limit int) ([]Record, error) {
	endpoint := "/api/v1/prompts"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Records []Record `json:"records"`
	}
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// Health queries the health endpoint. An unhealthy service is reported as an
// APIError carrying status 503.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var health Health
	if err := c.get(ctx, "/health", &health); err != nil {
		return Health{}, err
	}
	return health, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	rel, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	rel.Path = path.Join(c.baseURL.Path, rel.Path)
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			var wrapped struct {
				Error *APIError `json:"error"`
			}
			wrapped.Error = &apiErr
			if err := json.Unmarshal(data, &wrapped); err != nil || apiErr.Message == "" {
				var flat map[string]any
				if json.Unmarshal(data, &flat) == nil {
					if msg, ok := flat["error"].(string); ok {
						apiErr.Message = msg
					}
				}
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
