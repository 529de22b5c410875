package handlers

import (
	"net/http"

	"flowdesk/internal/flow"
)

type PaletteHandler struct {
	palette *flow.Palette
}

func NewPaletteHandler(palette *flow.Palette) *PaletteHandler {
	return &PaletteHandler{palette: palette}
}

type PaletteResponse struct {
	Success    bool                   `json:"success"`
	Message    string                 `json:"message"`
	Categories []flow.PaletteCategory `json:"categories"`
	Count      int                    `json:"count"`
}

func (h *PaletteHandler) HandlePalette(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, PaletteResponse{
		Success:    true,
		Message:    "Palette retrieved successfully",
		Categories: h.palette.Categories(),
		Count:      len(h.palette.Entries()),
	})
}

// HandleHealth reports liveness.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "flowdesk",
	})
}
