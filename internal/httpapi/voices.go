package httpapi

import (
	"net/http"

	"github.com/kolstudio/dibur/internal/script"
)

type voiceSummary struct {
	Name      string `json:"name"`
	Character string `json:"character,omitempty"`
}

type listVoicesResponse struct {
	Pool   []voiceSummary `json:"pool"`
	Voices []voiceSummary `json:"voices"`
}

// prebuiltVoices describes the provider's prebuilt voices that work well for
// Hebrew dialogue. The pool subset is what round-robin assignment draws from.
var prebuiltVoices = []voiceSummary{
	{Name: "Zephyr", Character: "bright"},
	{Name: "Puck", Character: "upbeat"},
	{Name: "Kore", Character: "firm"},
	{Name: "Charon", Character: "informative"},
	{Name: "Fenrir", Character: "excitable"},
	{Name: "Aoede", Character: "breezy"},
	{Name: "Leda", Character: "youthful"},
	{Name: "Orus", Character: "firm"},
	{Name: "Callirrhoe", Character: "easy-going"},
}

func (s *Server) handleListVoices(w http.ResponseWriter, _ *http.Request) {
	pool := s.cfg.VoicePool
	if len(pool) == 0 {
		pool = script.DefaultVoicePool
	}

	byName := make(map[string]voiceSummary, len(prebuiltVoices))
	for _, v := range prebuiltVoices {
		byName[v.Name] = v
	}
	poolSummaries := make([]voiceSummary, 0, len(pool))
	for _, name := range pool {
		if v, ok := byName[name]; ok {
			poolSummaries = append(poolSummaries, v)
			continue
		}
		poolSummaries = append(poolSummaries, voiceSummary{Name: name})
	}

	respondJSON(w, http.StatusOK, listVoicesResponse{
		Pool:   poolSummaries,
		Voices: prebuiltVoices,
	})
}
