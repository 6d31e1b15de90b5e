package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kolstudio/dibur/internal/reliability"
)

// GeminiConfig configures the hosted speech synthesis client.
type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Gemini synthesizes speech through the generative-language API's TTS models.
type Gemini struct {
	cfg    GeminiConfig
	client *http.Client
}

// NewGemini returns a client with defaults filled in.
func NewGemini(cfg GeminiConfig) *Gemini {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gemini-2.5-flash-preview-tts"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &Gemini{cfg: cfg, client: client}
}

type generateContentPayload struct {
	Contents         []promptContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type promptContent struct {
	Parts []promptPart `json:"parts"`
}

type promptPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
	AudioConfig        *audioConfig  `json:"audioConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig             *voiceConfig             `json:"voiceConfig,omitempty"`
	MultiSpeakerVoiceConfig *multiSpeakerVoiceConfig `json:"multiSpeakerVoiceConfig,omitempty"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig *prebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type multiSpeakerVoiceConfig struct {
	SpeakerVoiceConfigs []speakerVoiceConfig `json:"speakerVoiceConfigs"`
}

type speakerVoiceConfig struct {
	Speaker     string      `json:"speaker"`
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type audioConfig struct {
	AudioEncoding   string  `json:"audioEncoding"`
	SpeakingRate    float64 `json:"speakingRate,omitempty"`
	Pitch           float64 `json:"pitch,omitempty"`
	SampleRateHertz int     `json:"sampleRateHertz,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Synthesize issues one generateContent call and returns the decoded PCM.
// One call, one classification: rate limiting comes back as *RateLimitError,
// everything else non-successful as *TransportError. Retrying is the
// Retrying wrapper's job.
func (g *Gemini) Synthesize(ctx context.Context, req Request) (Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Audio{}, fmt.Errorf("empty synthesis text")
	}

	payload := g.buildPayload(req)
	body, err := json.Marshal(payload)
	if err != nil {
		return Audio{}, fmt.Errorf("marshal synthesis request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(g.cfg.BaseURL, "/"), g.cfg.Model, g.cfg.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Audio{}, fmt.Errorf("build synthesis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(httpReq)
	if err != nil {
		return Audio{}, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(io.LimitReader(res.Body, 64<<20))
	if err != nil {
		return Audio{}, fmt.Errorf("read synthesis response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		message := providerMessage(resBody, res.Status)
		if reliability.IsRateLimitStatus(res.StatusCode) {
			return Audio{}, &RateLimitError{StatusCode: res.StatusCode, Message: message}
		}
		return Audio{}, &TransportError{StatusCode: res.StatusCode, Message: message}
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(resBody, &parsed); err != nil {
		return Audio{}, fmt.Errorf("decode synthesis response: %w", err)
	}

	data, mimeType, ok := extractInlineAudio(parsed)
	if !ok {
		return Audio{}, ErrEmptyAudio
	}

	pcm, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Audio{}, fmt.Errorf("decode audio payload: %w", err)
	}
	if len(pcm) == 0 {
		return Audio{}, ErrEmptyAudio
	}

	// The response's declared rate wins over what we asked for.
	sampleRate := sampleRateFromMime(mimeType)
	if sampleRate <= 0 {
		sampleRate = req.SampleRate
	}
	if sampleRate <= 0 {
		sampleRate = 24000
	}

	return Audio{PCM: pcm, SampleRate: sampleRate, Channels: 1, BitsPerSample: 16}, nil
}

func (g *Gemini) buildPayload(req Request) generateContentPayload {
	text := req.Text
	if instructions := strings.TrimSpace(req.Instructions); instructions != "" {
		text = instructions + "\n\n" + text
	}

	gen := generationConfig{ResponseModalities: []string{"AUDIO"}}

	if len(req.SpeakerVoices) > 0 {
		configs := make([]speakerVoiceConfig, 0, len(req.SpeakerVoices))
		for _, sv := range req.SpeakerVoices {
			configs = append(configs, speakerVoiceConfig{
				Speaker:     sv.Speaker,
				VoiceConfig: voiceConfig{PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: sv.Voice}},
			})
		}
		gen.SpeechConfig = &speechConfig{MultiSpeakerVoiceConfig: &multiSpeakerVoiceConfig{SpeakerVoiceConfigs: configs}}
	} else if req.Voice != "" {
		gen.SpeechConfig = &speechConfig{VoiceConfig: &voiceConfig{PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: req.Voice}}}
	}

	if req.SpeakingRate != 0 || req.Pitch != 0 || req.SampleRate > 0 {
		gen.AudioConfig = &audioConfig{
			AudioEncoding:   "LINEAR16",
			SpeakingRate:    req.SpeakingRate,
			Pitch:           req.Pitch,
			SampleRateHertz: req.SampleRate,
		}
	}

	return generateContentPayload{
		Contents:         []promptContent{{Parts: []promptPart{{Text: text}}}},
		GenerationConfig: gen,
	}
}

func extractInlineAudio(parsed generateContentResponse) (data, mimeType string, ok bool) {
	if len(parsed.Candidates) == 0 {
		return "", "", false
	}
	for _, p := range parsed.Candidates[0].Content.Parts {
		if p.InlineData != nil && p.InlineData.Data != "" {
			return p.InlineData.Data, p.InlineData.MimeType, true
		}
	}
	return "", "", false
}

func providerMessage(body []byte, fallback string) string {
	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return fallback
}

// sampleRateFromMime parses "audio/L16;codec=pcm;rate=24000" style tags.
func sampleRateFromMime(mimeType string) int {
	for _, field := range strings.Split(mimeType, ";") {
		field = strings.TrimSpace(field)
		if rest, ok := strings.CutPrefix(field, "rate="); ok {
			if rate, err := strconv.Atoi(rest); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return 0
}
