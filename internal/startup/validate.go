// Package startup wires signchat's components together and validates that
// the generation service is reachable before the web server accepts
// requests.
package startup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path"
	"syscall"
	"time"

	"github.com/hurricanerix/signchat/internal/generation"
)

var (
	// ErrServiceNotRunning is returned when the generation service is not reachable
	ErrServiceNotRunning = errors.New("generation service not running")
	// ErrFunctionNotFound is returned when the service answers but the function is not deployed
	ErrFunctionNotFound = errors.New("generation function not found")
)

// validateTimeout is the timeout for the reachability probe
const validateTimeout = 5 * time.Second

// ValidateGenerationService checks that the hosted function is deployed at
// baseURL. It sends an OPTIONS request (the CORS preflight every hosted
// function answers) so no generation is triggered.
//
// A 404 means the service is up but the function is missing. 5xx responses
// and connection failures mean the service is not running. Anything else,
// including 401 for a missing API key, counts as reachable.
func ValidateGenerationService(ctx context.Context, baseURL, function string) error {
	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	// SECURITY: Parse and validate base URL to prevent SSRF
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("%w: invalid URL: %v", ErrServiceNotRunning, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%w: URL must use http or https scheme, got: %s", ErrServiceNotRunning, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%w: URL must have a host", ErrServiceNotRunning)
	}

	// SECURITY: Drop query and fragment. A path prefix is kept so a service
	// behind a proxy is probed where the client will post.
	parsedURL.Path = path.Join("/", parsedURL.Path, generation.FunctionsPath, function)
	parsedURL.RawPath = ""
	parsedURL.RawQuery = ""
	parsedURL.Fragment = ""
	endpoint := parsedURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w at %s: failed to create request: %v", ErrServiceNotRunning, baseURL, err)
	}
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		var netErr *net.OpError
		if errors.As(err, &netErr) && errors.Is(netErr.Err, syscall.ECONNREFUSED) {
			return fmt.Errorf("%w at %s", ErrServiceNotRunning, baseURL)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w at %s: connection timeout", ErrServiceNotRunning, baseURL)
		}
		return fmt.Errorf("%w at %s: %v", ErrServiceNotRunning, baseURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrFunctionNotFound, endpoint)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w at %s: unexpected status code %d", ErrServiceNotRunning, baseURL, resp.StatusCode)
	}
	return nil
}
