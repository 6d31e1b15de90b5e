package textgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kolstudio/dibur/internal/tts"
)

func TestGenerateScriptSuccess(t *testing.T) {
	script := "[דנה]: שלום\n[יוסי]: אהלן"
	var captured generatePayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprintf(w, `{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, script)
	}))
	defer server.Close()

	g := NewGemini(GeminiConfig{APIKey: "k", BaseURL: server.URL})
	got, err := g.GenerateScript(context.Background(), "חלל")
	if err != nil {
		t.Fatalf("GenerateScript() error = %v", err)
	}
	if got != script {
		t.Fatalf("script = %q, want %q", got, script)
	}

	if captured.SystemInstruction == nil || len(captured.SystemInstruction.Parts) == 0 {
		t.Fatalf("missing system instruction in payload")
	}
	instruction := captured.SystemInstruction.Parts[0].Text
	if !strings.Contains(instruction, "[שם הדובר]:") {
		t.Fatalf("system instruction does not pin the line format: %q", instruction)
	}
	if len(captured.Contents) != 1 || !strings.Contains(captured.Contents[0].Parts[0].Text, "חלל") {
		t.Fatalf("topic missing from prompt: %+v", captured.Contents)
	}
}

func TestGenerateScriptRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer server.Close()

	g := NewGemini(GeminiConfig{APIKey: "k", BaseURL: server.URL})
	_, err := g.GenerateScript(context.Background(), "חלל")
	var rl *tts.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("error = %v, want *RateLimitError", err)
	}
}

func TestGenerateScriptTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"permission denied","status":"PERMISSION_DENIED"}}`)
	}))
	defer server.Close()

	g := NewGemini(GeminiConfig{APIKey: "k", BaseURL: server.URL})
	_, err := g.GenerateScript(context.Background(), "חלל")
	var te *tts.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if te.Message != "permission denied" {
		t.Fatalf("Message = %q", te.Message)
	}
}

func TestGenerateScriptEmpty(t *testing.T) {
	responses := []string{
		`{"candidates":[]}`,
		`{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`,
	}
	for i, response := range responses {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, response)
		}))
		g := NewGemini(GeminiConfig{APIKey: "k", BaseURL: server.URL})
		_, err := g.GenerateScript(context.Background(), "חלל")
		server.Close()
		if !errors.Is(err, ErrEmptyScript) {
			t.Fatalf("case %d: error = %v, want ErrEmptyScript", i, err)
		}
	}
}
