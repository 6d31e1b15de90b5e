package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/kolstudio/dibur/internal/config"
	"github.com/kolstudio/dibur/internal/history"
	"github.com/kolstudio/dibur/internal/pipeline"
	"github.com/kolstudio/dibur/internal/tts"
)

type stubGenerator struct {
	script string
	err    error
}

func (g stubGenerator) GenerateScript(_ context.Context, _ string) (string, error) {
	return g.script, g.err
}

func newTestServer(t *testing.T) (*httptest.Server, history.Store) {
	t.Helper()
	cfg := config.Config{HistoryLimit: 20, SampleRate: 24000}
	p := pipeline.New(&tts.MockSynthesizer{}, nil, nil, pipeline.Config{}, nil)
	store := history.NewInMemoryStore(cfg.HistoryLimit)
	srv := New(cfg, p, stubGenerator{script: "[דנה]: שלום\n[יוסי]: אהלן"}, store, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, store
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	res, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	return res
}

func TestCreateDialogueFromScript(t *testing.T) {
	ts, _ := newTestServer(t)

	res := postJSON(t, ts.URL+"/v1/dialogues", map[string]string{
		"script": "[דנה]: שלום לכולם\n[יוסי]: איזה יום יפה",
	})
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var created dialogueResponse
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("missing id in response")
	}
	if len(created.Speakers) != 2 {
		t.Fatalf("speakers = %d, want 2", len(created.Speakers))
	}
	audio, err := base64.StdEncoding.DecodeString(created.AudioBase64)
	if err != nil {
		t.Fatalf("decode audio: %v", err)
	}
	if len(audio) < 44 || string(audio[:4]) != "RIFF" {
		t.Fatalf("audio is not a WAV container (%d bytes)", len(audio))
	}

	listRes, err := http.Get(ts.URL + "/v1/dialogues")
	if err != nil {
		t.Fatalf("GET /v1/dialogues error = %v", err)
	}
	defer listRes.Body.Close()
	var listed struct {
		Dialogues []history.DialogueRecord `json:"dialogues"`
	}
	if err := json.NewDecoder(listRes.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Dialogues) != 1 || listed.Dialogues[0].ID != created.ID {
		t.Fatalf("history = %+v, want one record with id %s", listed.Dialogues, created.ID)
	}
}

func TestCreateDialogueFromTopic(t *testing.T) {
	ts, _ := newTestServer(t)

	res := postJSON(t, ts.URL+"/v1/dialogues", map[string]string{"topic": "חלל"})
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	var created dialogueResponse
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Topic != "חלל" {
		t.Fatalf("topic = %q, want echoed topic", created.Topic)
	}
	if !strings.Contains(created.Script, "[דנה]:") {
		t.Fatalf("script = %q, want generated dialogue", created.Script)
	}
}

func TestCreateDialogueMissingInput(t *testing.T) {
	ts, _ := newTestServer(t)

	res := postJSON(t, ts.URL+"/v1/dialogues", map[string]string{})
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestSpeechReturnsWAV(t *testing.T) {
	ts, _ := newTestServer(t)

	res := postJSON(t, ts.URL+"/v1/speech", map[string]string{
		"script": "[דנה]: בוקר טוב",
	})
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if got := res.Header.Get("Content-Type"); got != "audio/wav" {
		t.Fatalf("Content-Type = %q, want audio/wav", got)
	}
	var body bytes.Buffer
	if _, err := body.ReadFrom(res.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if body.Len() < 44 || string(body.Bytes()[:4]) != "RIFF" {
		t.Fatalf("body is not a WAV container (%d bytes)", body.Len())
	}
}

func TestSpeechRejectsScriptWithoutDialogue(t *testing.T) {
	ts, _ := newTestServer(t)

	res := postJSON(t, ts.URL+"/v1/speech", map[string]string{
		"script": "סתם טקסט בלי שורות דיאלוג",
	})
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnprocessableEntity)
	}
	var payload errorResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if payload.Code != "no_segments" {
		t.Fatalf("code = %q, want no_segments", payload.Code)
	}
}

func TestSpeechMissingScript(t *testing.T) {
	ts, _ := newTestServer(t)

	res := postJSON(t, ts.URL+"/v1/speech", map[string]string{})
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestDeleteDialogue(t *testing.T) {
	ts, store := newTestServer(t)

	if err := store.Save(context.Background(), history.DialogueRecord{ID: "d1", Script: "s"}); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/v1/dialogues/d1", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	again, err := http.NewRequest(http.MethodDelete, ts.URL+"/v1/dialogues/d1", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	res2, err := http.DefaultClient.Do(again)
	if err != nil {
		t.Fatalf("DELETE error = %v", err)
	}
	defer res2.Body.Close()
	if res2.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want %d", res2.StatusCode, http.StatusNotFound)
	}
}

func TestListVoices(t *testing.T) {
	ts, _ := newTestServer(t)

	res, err := http.Get(ts.URL + "/v1/voices")
	if err != nil {
		t.Fatalf("GET /v1/voices error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var payload listVoicesResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Pool) != 6 {
		t.Fatalf("pool = %d voices, want default 6", len(payload.Pool))
	}
	if payload.Pool[0].Name != "Zephyr" {
		t.Fatalf("pool[0] = %q, want Zephyr", payload.Pool[0].Name)
	}
}

func TestSpeechWSStreamsProgressAndResult(t *testing.T) {
	ts, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/speech/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	err = conn.WriteJSON(map[string]string{"script": "[דנה]: שלום\n[יוסי]: אהלן"})
	if err != nil {
		t.Fatalf("write request: %v", err)
	}

	var sawProgress bool
	for {
		var ev wsEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event: %v", err)
		}
		switch ev.Type {
		case "progress":
			sawProgress = true
		case "error":
			t.Fatalf("error event: %s %s", ev.Code, ev.Error)
		case "result":
			if !sawProgress {
				t.Fatalf("result arrived before any progress event")
			}
			if ev.Result == nil || ev.Result.AudioBase64 == "" {
				t.Fatalf("result event missing audio")
			}
			return
		default:
			t.Fatalf("unexpected event type %q", ev.Type)
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want %d", path, res.StatusCode, http.StatusOK)
		}
	}
}
