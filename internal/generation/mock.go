package generation

import (
	"context"
	"strings"
	"time"

	"github.com/hurricanerix/signchat/internal/image"
)

// MockErrorPrefix makes Mock answer with an application-level error.
const MockErrorPrefix = "!error"

// mockImageSize is the edge length of placeholder images.
const mockImageSize = 256

// Mock is an in-process Generator for local development and tests. It never
// touches the network: each text yields a deterministic placeholder PNG
// returned as an inline data URL.
type Mock struct {
	// Delay simulates service latency. Zero means answer immediately.
	Delay time.Duration
}

// NewMock creates a mock generator with the given simulated latency.
func NewMock(delay time.Duration) *Mock {
	return &Mock{Delay: delay}
}

// Generate implements Generator.
func (m *Mock) Generate(ctx context.Context, text string) (Response, error) {
	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Response{}, classifyError(ctx.Err())
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Response{}, classifyError(err)
	}

	if rest, ok := strings.CutPrefix(text, MockErrorPrefix); ok {
		msg := strings.TrimSpace(rest)
		if msg == "" {
			msg = "Generation refused by mock service"
		}
		return Response{Error: msg}, nil
	}

	png, err := image.Placeholder(text, mockImageSize, mockImageSize)
	if err != nil {
		return Response{}, err
	}
	return Response{ImageURL: image.DataURL("image/png", png)}, nil
}
