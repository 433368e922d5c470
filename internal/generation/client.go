package generation

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
	"syscall"
	"time"
)

// Sentinel errors for generation client operations
var (
	// ErrNotReachable is returned when nothing is listening at the configured endpoint
	ErrNotReachable = errors.New("generation service not reachable")
	// ErrTimeout is returned when the request times out
	ErrTimeout = errors.New("generation service timeout")
	// ErrRequestFailed is returned when the service answers with a non-2xx status
	ErrRequestFailed = errors.New("generation request failed")
	// ErrInvalidResponse is returned when the response body cannot be decoded
	ErrInvalidResponse = errors.New("invalid generation response")
	// ErrConnectionFailed is returned when connection fails for unknown reasons
	ErrConnectionFailed = errors.New("generation service connection failed")
)

// maxResponseSize caps how much of a response body is read. Image
// references may be inline data URLs, so this is generous (16 MB).
const maxResponseSize = 16 * 1024 * 1024

// maxErrorBodySize caps how much of a non-2xx body is kept for diagnostics.
const maxErrorBodySize = 1024

// Client invokes a hosted generation function over HTTP.
type Client struct {
	baseURL    string
	function   string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client with default settings.
func NewClient() *Client {
	return NewClientWithConfig(DefaultBaseURL, DefaultFunction, "", time.Duration(DefaultTimeout)*time.Second)
}

// NewClientWithConfig creates a client with custom configuration.
// Parameters:
//   - baseURL: service root (e.g., "https://project.example.co")
//   - function: hosted function name (e.g., "generate-sign-language")
//   - apiKey: optional key sent as bearer token and apikey header
//   - timeout: HTTP timeout for a whole call; zero disables it
func NewClientWithConfig(baseURL, function, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		function: function,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Endpoint returns the full URL the client posts to.
func (c *Client) Endpoint() string {
	return c.baseURL + FunctionsPath + c.function
}

// Generate posts text to the generation function and decodes the reply.
//
// Returns ErrNotReachable, ErrTimeout or ErrConnectionFailed when the call
// could not be made, ErrRequestFailed for a non-2xx status and
// ErrInvalidResponse when the body is not a JSON object. An application
// error carried in the body is returned in Response.Error with a nil error.
func (c *Client) Generate(ctx context.Context, text string) (Response, error) {
	body, err := json.Marshal(Request{Text: text})
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		classified := classifyError(err)
		if errors.Is(classified, ErrNotReachable) {
			return Response{}, fmt.Errorf("%w at %s", ErrNotReachable, c.Endpoint())
		}
		return Response{}, classified
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		if readErr != nil {
			return Response{}, fmt.Errorf("%w: status %d (failed to read error: %v)", ErrRequestFailed, resp.StatusCode, readErr)
		}
		return Response{}, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	return decodeResponse(resp.Body)
}

// decodeResponse reads a JSON object from body. A null or empty body, a
// non-object, trailing garbage and oversized bodies are all invalid.
func decodeResponse(body io.Reader) (Response, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxResponseSize+1))
	if err != nil {
		return Response{}, classifyError(err)
	}
	if len(data) > maxResponseSize {
		return Response{}, fmt.Errorf("%w: body larger than %d bytes", ErrInvalidResponse, maxResponseSize)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Response{}, fmt.Errorf("%w: expected JSON object", ErrInvalidResponse)
	}

	var out Response
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if err := dec.Decode(&out); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if dec.More() {
		return Response{}, fmt.Errorf("%w: trailing data after JSON object", ErrInvalidResponse)
	}

	return out, nil
}

// classifyError converts low-level HTTP errors into the package sentinels.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrNotReachable
	}

	// DNS errors, TLS errors, resets, ...
	return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
}
