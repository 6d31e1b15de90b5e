package httpapi

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kolstudio/dibur/internal/pipeline"
	"github.com/kolstudio/dibur/internal/tts"
)

type speechRequest struct {
	Script    string        `json:"script"`
	Overrides tts.Overrides `json:"overrides"`
}

// handleSpeech synthesizes a script and returns the WAV bytes directly.
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Script) == "" {
		respondError(w, http.StatusBadRequest, "missing_script", "script is required")
		return
	}

	result, err := s.runner.Run(r.Context(), req.Script, req.Overrides, nil)
	if err != nil {
		respondPipelineError(w, err)
		return
	}

	w.Header().Set("Content-Type", result.MIMEType)
	w.Header().Set("Content-Disposition", `attachment; filename="dialogue-`+result.ID+`.wav"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Audio)
}

type wsEvent struct {
	Type     string             `json:"type"`
	Progress *pipeline.Progress `json:"progress,omitempty"`
	Result   *dialogueResponse  `json:"result,omitempty"`
	Code     string             `json:"code,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// handleSpeechWS runs one synthesis over a websocket, streaming progress
// events before the final audio. The client sends a single speechRequest and
// reads until a result or error event.
func (s *Server) handleSpeechWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

	var req speechRequest
	if err := conn.ReadJSON(&req); err != nil {
		writeWSEvent(conn, wsEvent{Type: "error", Code: "invalid_request", Error: err.Error()})
		return
	}
	if strings.TrimSpace(req.Script) == "" {
		writeWSEvent(conn, wsEvent{Type: "error", Code: "missing_script", Error: "script is required"})
		return
	}

	// Progress callbacks arrive from the pipeline goroutine; Run is
	// synchronous here so writes stay single-threaded.
	progress := func(ev pipeline.Progress) {
		writeWSEvent(conn, wsEvent{Type: "progress", Progress: &ev})
	}

	result, err := s.runner.Run(r.Context(), req.Script, req.Overrides, progress)
	if err != nil {
		_, code := statusForError(err)
		writeWSEvent(conn, wsEvent{Type: "error", Code: code, Error: err.Error()})
		return
	}

	response := newDialogueResponse("", req.Script, result)
	writeWSEvent(conn, wsEvent{Type: "result", Result: &response})
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func writeWSEvent(conn *websocket.Conn, ev wsEvent) {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_ = conn.WriteJSON(ev)
}

func encodeAudio(audio []byte) string {
	return base64.StdEncoding.EncodeToString(audio)
}
