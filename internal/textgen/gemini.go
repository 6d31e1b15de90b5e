package textgen

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

	"github.com/kolstudio/dibur/internal/reliability"
	"github.com/kolstudio/dibur/internal/tts"
)

// ErrEmptyScript is returned when the model responds without usable text.
var ErrEmptyScript = errors.New("textgen: model returned no script text")

// Generator produces a dialogue script from a free-form topic.
type Generator interface {
	GenerateScript(ctx context.Context, topic string) (string, error)
}

// systemInstruction pins the output to the bracketed dialogue format the
// parser expects. Hebrew output, Hebrew speaker names.
const systemInstruction = `אתה כותב דיאלוגים יצירתי שכותב בעברית. כתוב דיאלוג קצר ומרתק בין שתי דמויות או יותר.
כל שורת דיאלוג חייבת להיות בפורמט הבא בדיוק:
[שם הדובר]: טקסט הדיאלוג
אפשר להוסיף הנחיית סגנון בסוגריים מיד אחרי הנקודתיים, למשל:
[דנה]: (נרגשת) לא ייאמן!
אל תוסיף כותרות, תיאורי במה או טקסט שאינו שורת דיאלוג.`

// GeminiConfig configures the Gemini text adapter.
type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Gemini generates dialogue scripts through the generateContent endpoint.
type Gemini struct {
	cfg GeminiConfig
}

func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Gemini{cfg: cfg}
}

type generatePayload struct {
	Contents          []content   `json:"contents"`
	SystemInstruction *content    `json:"systemInstruction,omitempty"`
	GenerationConfig  *textConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type textConfig struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"topP,omitempty"`
	TopK        int     `json:"topK,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateScript asks the model for a dialogue in the bracketed line format.
func (g *Gemini) GenerateScript(ctx context.Context, topic string) (string, error) {
	prompt := fmt.Sprintf(`צור דיאלוג קצר ומעניין בעברית על הנושא: %q. הדיאלוג צריך להיות מלא ושלם עם התחלה, אמצע וסוף.`, topic)

	payload := generatePayload{
		Contents:          []content{{Parts: []part{{Text: prompt}}}},
		SystemInstruction: &content{Parts: []part{{Text: systemInstruction}}},
		GenerationConfig:  &textConfig{Temperature: 0.8, TopP: 0.95, TopK: 40},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode text request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.cfg.BaseURL, g.cfg.Model, g.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build text request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("text request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read text response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := providerMessage(respBody)
		if reliability.IsRateLimitStatus(resp.StatusCode) {
			return "", &tts.RateLimitError{StatusCode: resp.StatusCode, Message: message}
		}
		return "", &tts.TransportError{StatusCode: resp.StatusCode, Message: message}
	}

	var decoded generateResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("decode text response: %w", err)
	}
	for _, candidate := range decoded.Candidates {
		for _, p := range candidate.Content.Parts {
			if text := strings.TrimSpace(p.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", ErrEmptyScript
}

func providerMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(body))
}
