// Package ollama provides an HTTP client for the Ollama API: completion,
// model list, model pull and a reachability check.
//
// Failures are returned as erruser service errors whose retryable flag is set
// here, where the cause is known: transport problems, timeouts and 5xx
// responses are retryable; unknown models, bad requests and empty output are
// not.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"commitgen/cli/internal/erruser"
	"commitgen/cli/internal/version"
)

const (
	_defaultConnectTimeout = 10 * time.Second
	maxErrorBody           = 4 << 10
)

var (
	// ErrUnreachable indicates the Ollama server could not be reached (connection refused, timeout, or non-2xx).
	ErrUnreachable = errors.New("ollama server unreachable")
	// ErrModelNotFound indicates the requested model is not installed on the server.
	ErrModelNotFound = errors.New("model not found")
	// ErrEmptyResponse indicates the model produced no text.
	ErrEmptyResponse = errors.New("empty response")
)

// Client calls the Ollama API. Zero value is not valid; use NewClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds an Ollama client. baseURL is the API root (e.g. http://localhost:11434).
// If httpClient is nil, NewHTTPClient with the default connect timeout is used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(_defaultConnectTimeout)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// NewHTTPClient returns an HTTP client whose dialer gives up after connect.
// It has no overall timeout; callers bound each request with a context deadline.
func NewHTTPClient(connect time.Duration) *http.Client {
	if connect <= 0 {
		connect = _defaultConnectTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = connect
	return &http.Client{Transport: transport}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// GenerateOptions are optional model parameters for Generate.
type GenerateOptions struct {
	System      string
	Temperature *float64
	NumCtx      int
	KeepAlive   string
}

// GenerateResult is a completed, non-streamed generation.
type GenerateResult struct {
	Response        string
	PromptEvalCount int
	EvalCount       int
	TotalDuration   time.Duration
}

type generateRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt"`
	System    string         `json:"system,omitempty"`
	Stream    bool           `json:"stream"`
	KeepAlive string         `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	TotalDuration   int64  `json:"total_duration"`
	Error           string `json:"error"`
}

// Generate POSTs /api/generate with stream=false and returns the completion.
func (c *Client) Generate(ctx context.Context, model, prompt string, opts *GenerateOptions) (*GenerateResult, error) {
	req := generateRequest{Model: model, Prompt: prompt, Stream: false}
	if opts != nil {
		req.System = opts.System
		req.KeepAlive = opts.KeepAlive
		o := make(map[string]any)
		if opts.Temperature != nil {
			o["temperature"] = *opts.Temperature
		}
		if opts.NumCtx > 0 {
			o["num_ctx"] = opts.NumCtx
		}
		if len(o) > 0 {
			req.Options = o
		}
	}
	var body generateResponse
	if err := c.postJSON(ctx, "/api/generate", model, req, &body); err != nil {
		return nil, err
	}
	if body.Error != "" {
		return nil, responseError(model, http.StatusOK, body.Error)
	}
	text := strings.TrimSpace(body.Response)
	if text == "" {
		return nil, erruser.Service("The model returned an empty response.", ErrEmptyResponse, false).
			WithHint("Try again or choose a different model.")
	}
	return &GenerateResult{
		Response:        text,
		PromptEvalCount: body.PromptEvalCount,
		EvalCount:       body.EvalCount,
		TotalDuration:   time.Duration(body.TotalDuration),
	}, nil
}

type pullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

type pullResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Pull downloads model on the server and waits for it to finish.
func (c *Client) Pull(ctx context.Context, model string) error {
	var body pullResponse
	if err := c.postJSON(ctx, "/api/pull", model, pullRequest{Model: model}, &body); err != nil {
		return err
	}
	if body.Error != "" {
		return responseError(model, http.StatusOK, body.Error)
	}
	if body.Status != "" && body.Status != "success" {
		return erruser.Service(fmt.Sprintf("Pulling %s did not finish (status %q).", model, body.Status), nil, true)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path, model string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("ollama %s: encode request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return erruser.Service("Invalid Ollama host.", fmt.Errorf("ollama %s request: %w", path, err), false).
			WithHint("Check the host setting, e.g. commitgen config set host http://localhost:11434")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg := readErrorBody(resp.Body)
		return responseError(model, resp.StatusCode, msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return erruser.Service("The Ollama server sent an unreadable response.",
			fmt.Errorf("ollama %s: parse response: %w", path, err), true)
	}
	return nil
}

// transportError tags a failed round trip. Cancellation is terminal; dial
// failures and deadlines are retryable.
func transportError(ctx context.Context, path string, err error) error {
	cause := fmt.Errorf("ollama %s: %w", path, errors.Join(ErrUnreachable, err))
	if errors.Is(ctx.Err(), context.Canceled) {
		return erruser.Service("Request cancelled.", cause, false)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return erruser.Service("The Ollama server timed out.", cause, true).
			WithHint("Raise timeouts.generate or use a smaller model.")
	}
	return erruser.Service("Could not reach the Ollama server.", cause, true).
		WithHint("Start it with: ollama serve")
}

func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(data))
}

// responseError tags an error reported by the server.
func responseError(model string, status int, msg string) error {
	lc := strings.ToLower(msg)
	cause := fmt.Errorf("ollama: HTTP %d: %s", status, msg)
	switch {
	case status == http.StatusNotFound || strings.Contains(lc, "not found"):
		return erruser.Service(fmt.Sprintf("Model %q is not installed.", model), errors.Join(ErrModelNotFound, cause), false).
			WithHint(fmt.Sprintf("Run: commitgen models pull %s", model))
	case strings.Contains(lc, "invalid model") || strings.Contains(lc, "unknown model"):
		return erruser.Service(fmt.Sprintf("Invalid model %q.", model), cause, false)
	case status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout:
		return erruser.Service("The Ollama server failed to respond.", errors.Join(ErrUnreachable, cause), true)
	case status >= 400:
		return erruser.Service("The Ollama server rejected the request.", cause, false)
	default:
		return erruser.Service("The Ollama server reported an error.", cause, erruser.Retryable(cause))
	}
}
