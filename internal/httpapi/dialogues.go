package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kolstudio/dibur/internal/history"
	"github.com/kolstudio/dibur/internal/pipeline"
	"github.com/kolstudio/dibur/internal/script"
	"github.com/kolstudio/dibur/internal/tts"
)

type createDialogueRequest struct {
	// Topic asks the text model to write the script. Mutually exclusive with
	// Script; Script wins when both are set.
	Topic     string        `json:"topic"`
	Script    string        `json:"script"`
	Overrides tts.Overrides `json:"overrides"`
}

type dialogueResponse struct {
	ID              string                   `json:"id"`
	Topic           string                   `json:"topic,omitempty"`
	Script          string                   `json:"script"`
	Speakers        []script.VoiceAssignment `json:"speakers"`
	SkippedSpeakers []string                 `json:"skipped_speakers,omitempty"`
	MIMEType        string                   `json:"mime_type"`
	AudioBase64     string                   `json:"audio_base64"`
	DurationMS      int64                    `json:"duration_ms"`
}

func newDialogueResponse(topic, scriptText string, result pipeline.Result) dialogueResponse {
	return dialogueResponse{
		ID:              result.ID,
		Topic:           topic,
		Script:          scriptText,
		Speakers:        result.Speakers,
		SkippedSpeakers: result.SkippedSpeakers,
		MIMEType:        result.MIMEType,
		AudioBase64:     encodeAudio(result.Audio),
		DurationMS:      result.AudioDuration.Milliseconds(),
	}
}

// handleCreateDialogue generates a dialogue from a topic (or takes a ready
// script), synthesizes it and records the outcome in history.
func (s *Server) handleCreateDialogue(w http.ResponseWriter, r *http.Request) {
	var req createDialogueRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	scriptText := strings.TrimSpace(req.Script)
	topic := strings.TrimSpace(req.Topic)
	if scriptText == "" && topic == "" {
		respondError(w, http.StatusBadRequest, "missing_input", "either topic or script is required")
		return
	}
	if scriptText == "" {
		if s.generator == nil {
			respondError(w, http.StatusNotImplemented, "unavailable", "text generation not configured")
			return
		}
		generated, err := s.generator.GenerateScript(r.Context(), topic)
		if err != nil {
			respondPipelineError(w, err)
			return
		}
		scriptText = generated
	}

	result, err := s.runner.Run(r.Context(), scriptText, req.Overrides, nil)
	if err != nil {
		respondPipelineError(w, err)
		return
	}

	if s.store != nil {
		record := history.DialogueRecord{
			ID:            result.ID,
			Topic:         topic,
			Script:        scriptText,
			SpeakerCount:  len(result.Speakers),
			AudioBytes:    len(result.Audio),
			AudioDuration: result.AudioDuration,
			CreatedAt:     time.Now().UTC(),
		}
		// History is advisory; a failed save must not lose the audio.
		if err := s.store.Save(r.Context(), record); err != nil {
			log.Printf("httpapi: save dialogue %s: %v", result.ID, err)
		}
	}

	respondJSON(w, http.StatusCreated, newDialogueResponse(topic, scriptText, result))
}

func (s *Server) handleListDialogues(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondJSON(w, http.StatusOK, map[string]any{"dialogues": []history.DialogueRecord{}})
		return
	}
	records, err := s.store.Recent(r.Context(), s.cfg.HistoryLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if records == nil {
		records = []history.DialogueRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"dialogues": records})
}

func (s *Server) handleDeleteDialogue(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_dialogue_id", "missing dialogue id")
		return
	}
	if s.store == nil {
		respondError(w, http.StatusNotFound, "dialogue_not_found", "history disabled")
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			respondError(w, http.StatusNotFound, "dialogue_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) handleClearDialogues(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondJSON(w, http.StatusOK, map[string]any{"cleared": true})
		return
	}
	if err := s.store.Clear(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"cleared": true})
}
