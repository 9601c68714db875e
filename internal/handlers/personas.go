package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eldtechnologies/teamroom/internal/models"
)

// PersonaListResponse represents the persona catalog response.
type PersonaListResponse struct {
	Personas []models.Persona `json:"personas"`
	Total    int              `json:"total"`
}

// ListPersonas returns the catalog, most senior first.
func (h *Handler) ListPersonas(w http.ResponseWriter, r *http.Request) {
	list := h.personas.List()
	h.JSON(w, http.StatusOK, PersonaListResponse{Personas: list, Total: len(list)})
}

// GetPersona returns a single persona profile.
func (h *Handler) GetPersona(w http.ResponseWriter, r *http.Request) {
	p, ok := h.personas.Get(chi.URLParam(r, "id"))
	if !ok {
		h.Error(w, http.StatusNotFound, "persona not found")
		return
	}
	h.JSON(w, http.StatusOK, p)
}
