package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kolstudio/dibur/internal/config"
	"github.com/kolstudio/dibur/internal/history"
	"github.com/kolstudio/dibur/internal/observability"
	"github.com/kolstudio/dibur/internal/pipeline"
	"github.com/kolstudio/dibur/internal/script"
	"github.com/kolstudio/dibur/internal/textgen"
	"github.com/kolstudio/dibur/internal/tts"
)

// Runner executes one script-to-speech invocation.
type Runner interface {
	Run(ctx context.Context, scriptText string, ov tts.Overrides, progress pipeline.ProgressFunc) (pipeline.Result, error)
}

type Server struct {
	cfg       config.Config
	runner    Runner
	generator textgen.Generator
	store     history.Store
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, runner Runner, generator textgen.Generator, store history.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		runner:    runner,
		generator: generator,
		store:     store,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/dialogues", s.handleCreateDialogue)
	r.Get("/v1/dialogues", s.handleListDialogues)
	r.Delete("/v1/dialogues", s.handleClearDialogues)
	r.Delete("/v1/dialogues/{id}", s.handleDeleteDialogue)
	r.Post("/v1/speech", s.handleSpeech)
	r.Get("/v1/speech/ws", s.handleSpeechWS)
	r.Get("/v1/voices", s.handleListVoices)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"text_model":    s.cfg.GeminiTextModel,
		"speech_model":  s.cfg.GeminiTTSModel,
		"history_store": s.storeMode(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ready",
		"history_store": s.storeMode(),
	})
}

func (s *Server) storeMode() string {
	if s.store == nil {
		return "disabled"
	}
	if strings.TrimSpace(s.cfg.DatabaseURL) != "" {
		return "postgres"
	}
	return "in-memory"
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondPipelineError maps pipeline and provider errors onto HTTP statuses.
func respondPipelineError(w http.ResponseWriter, err error) {
	status, code := statusForError(err)
	respondError(w, status, code, err.Error())
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrNoSegments):
		return http.StatusUnprocessableEntity, "no_segments"
	case errors.Is(err, script.ErrNoSpeakers):
		return http.StatusUnprocessableEntity, "no_speakers"
	case errors.Is(err, tts.ErrEmptyAudio):
		return http.StatusBadGateway, "empty_audio"
	case errors.Is(err, textgen.ErrEmptyScript):
		return http.StatusBadGateway, "empty_script"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return 499, "client_closed_request"
	}
	var rl *tts.RateLimitError
	if errors.As(err, &rl) {
		return http.StatusTooManyRequests, "rate_limited"
	}
	var te *tts.TransportError
	if errors.As(err, &te) {
		return http.StatusBadGateway, "provider_error"
	}
	return http.StatusInternalServerError, "internal_error"
}
