package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"
)

// timeoutError implements net.Error with Timeout() returning true
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

func TestNewClient(t *testing.T) {
	client := NewClient()

	if client.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", client.baseURL, DefaultBaseURL)
	}
	if client.function != DefaultFunction {
		t.Errorf("function = %q, want %q", client.function, DefaultFunction)
	}
	expectedTimeout := time.Duration(DefaultTimeout) * time.Second
	if client.httpClient.Timeout != expectedTimeout {
		t.Errorf("timeout = %v, want %v", client.httpClient.Timeout, expectedTimeout)
	}
}

func TestClientEndpoint(t *testing.T) {
	client := NewClientWithConfig("https://project.example.co/", "generate-sign-language", "", time.Second)
	want := "https://project.example.co/functions/v1/generate-sign-language"
	if client.Endpoint() != want {
		t.Errorf("Endpoint() = %q, want %q", client.Endpoint(), want)
	}
}

func TestGenerateSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != FunctionsPath+DefaultFunction {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Text != "  Hello  " {
			t.Errorf("request text = %q, want it unmodified", req.Text)
		}

		fmt.Fprint(w, `{"imageUrl":"https://x/img.png"}`)
	}))
	defer server.Close()

	client := NewClientWithConfig(server.URL, DefaultFunction, "", 5*time.Second)
	resp, err := client.Generate(context.Background(), "  Hello  ")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.ImageURL != "https://x/img.png" {
		t.Errorf("ImageURL = %q", resp.ImageURL)
	}
	if resp.Failed() {
		t.Error("Failed() = true for success response")
	}
}

func TestGenerateSendsAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("apikey"); got != "secret" {
			t.Errorf("apikey = %q", got)
		}
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client := NewClientWithConfig(server.URL, DefaultFunction, "secret", 5*time.Second)
	if _, err := client.Generate(context.Background(), "Hi"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
}

func TestGenerateResponses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   error
		wantImage string
		wantAppEr string
	}{
		{
			name:      "image only",
			status:    http.StatusOK,
			body:      `{"imageUrl":"https://x/img.png"}`,
			wantImage: "https://x/img.png",
		},
		{
			name:   "empty object is a success without image",
			status: http.StatusOK,
			body:   `{}`,
		},
		{
			name:      "application error",
			status:    http.StatusOK,
			body:      `{"error":"Text contains unsupported characters"}`,
			wantAppEr: "Text contains unsupported characters",
		},
		{
			name:      "error alongside image",
			status:    http.StatusOK,
			body:      `{"imageUrl":"https://x/img.png","error":"quota exceeded"}`,
			wantImage: "https://x/img.png",
			wantAppEr: "quota exceeded",
		},
		{
			name:    "server error status",
			status:  http.StatusInternalServerError,
			body:    `{"error":"boom"}`,
			wantErr: ErrRequestFailed,
		},
		{
			name:    "not found status",
			status:  http.StatusNotFound,
			body:    `missing`,
			wantErr: ErrRequestFailed,
		},
		{
			name:    "malformed json",
			status:  http.StatusOK,
			body:    `{"imageUrl":`,
			wantErr: ErrInvalidResponse,
		},
		{
			name:    "null body",
			status:  http.StatusOK,
			body:    `null`,
			wantErr: ErrInvalidResponse,
		},
		{
			name:    "empty body",
			status:  http.StatusOK,
			body:    ``,
			wantErr: ErrInvalidResponse,
		},
		{
			name:    "array body",
			status:  http.StatusOK,
			body:    `["https://x/img.png"]`,
			wantErr: ErrInvalidResponse,
		},
		{
			name:    "wrong field type",
			status:  http.StatusOK,
			body:    `{"imageUrl":42}`,
			wantErr: ErrInvalidResponse,
		},
		{
			name:    "trailing data",
			status:  http.StatusOK,
			body:    `{} {}`,
			wantErr: ErrInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := NewClientWithConfig(server.URL, DefaultFunction, "", 5*time.Second)
			resp, err := client.Generate(context.Background(), "Hello")

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Generate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if resp.ImageURL != tt.wantImage {
				t.Errorf("ImageURL = %q, want %q", resp.ImageURL, tt.wantImage)
			}
			if resp.Error != tt.wantAppEr {
				t.Errorf("Error = %q, want %q", resp.Error, tt.wantAppEr)
			}
		})
	}
}

func TestGenerateErrorStatusIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "function crashed", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClientWithConfig(server.URL, DefaultFunction, "", 5*time.Second)
	_, err := client.Generate(context.Background(), "Hello")
	if err == nil || !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "function crashed") {
		t.Errorf("Generate() error = %v, want status and body", err)
	}
}

func TestGenerateNotReachable(t *testing.T) {
	// Grab a free port and close it so nothing is listening
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	client := NewClientWithConfig("http://"+addr, DefaultFunction, "", 2*time.Second)
	_, err = client.Generate(context.Background(), "Hello")
	if !errors.Is(err, ErrNotReachable) {
		t.Errorf("Generate() error = %v, want ErrNotReachable", err)
	}
}

func TestGenerateTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClientWithConfig(server.URL, DefaultFunction, "", 50*time.Millisecond)
	_, err := client.Generate(context.Background(), "Hello")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Generate() error = %v, want ErrTimeout", err)
	}
}

func TestGenerateContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClientWithConfig(server.URL, DefaultFunction, "", 5*time.Second)
	_, err := client.Generate(ctx, "Hello")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Generate() error = %v, want context.Canceled", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"deadline", context.DeadlineExceeded, ErrTimeout},
		{"canceled", context.Canceled, context.Canceled},
		{"net timeout", &timeoutError{}, ErrTimeout},
		{"connection refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, ErrNotReachable},
		{"unknown", errors.New("tls: handshake failure"), ErrConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Errorf("classifyError(nil) = %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMockGenerate(t *testing.T) {
	m := NewMock(0)

	resp, err := m.Generate(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.HasPrefix(resp.ImageURL, "data:image/png;base64,") {
		t.Errorf("ImageURL = %.40q, want PNG data URL", resp.ImageURL)
	}
	if resp.Failed() {
		t.Error("Failed() = true")
	}

	again, _ := m.Generate(context.Background(), "Hello")
	if again.ImageURL != resp.ImageURL {
		t.Error("mock is not deterministic")
	}
}

func TestMockApplicationError(t *testing.T) {
	m := NewMock(0)

	resp, err := m.Generate(context.Background(), "!error too rude")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Error != "too rude" {
		t.Errorf("Error = %q, want %q", resp.Error, "too rude")
	}
	if resp.ImageURL != "" {
		t.Errorf("ImageURL = %q, want empty", resp.ImageURL)
	}

	resp, _ = m.Generate(context.Background(), "!error")
	if resp.Error == "" {
		t.Error("bare error prefix produced no error message")
	}
}

func TestMockHonoursContext(t *testing.T) {
	m := NewMock(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.Generate(ctx, "Hello")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Generate() error = %v, want ErrTimeout", err)
	}
}

func TestGeneratorFunc(t *testing.T) {
	var g Generator = GeneratorFunc(func(ctx context.Context, text string) (Response, error) {
		return Response{ImageURL: "u:" + text}, nil
	})
	resp, _ := g.Generate(context.Background(), "x")
	if resp.ImageURL != "u:x" {
		t.Errorf("ImageURL = %q", resp.ImageURL)
	}
}
