// Package http provides HTTP handlers for profile management and the lock.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atinyakov/TagLock/internal/models"
	"github.com/atinyakov/TagLock/internal/service"
)

// ProfileService defines the profile operations required by ProfileHandler.
type ProfileService interface {
	Profiles() []models.Profile
	AddProfile(name string, selection models.Selection) models.Profile
	EditProfile(id uuid.UUID, name string, selection models.Selection) error
	DeleteProfiles(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	TagPayload(id uuid.UUID) ([]byte, error)
	WriteTag(ctx context.Context, id uuid.UUID) error
}

// ProfileHandler handles HTTP requests for profiles and their tags.
type ProfileHandler struct {
	ProfileService ProfileService
}

type profileRequest struct {
	Name      string           `json:"name"`
	Selection models.Selection `json:"selection"`
}

// List handles GET /api/profiles.
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles := h.ProfileService.Profiles()
	if profiles == nil {
		profiles = []models.Profile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

// Create handles POST /api/profiles.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	p := h.ProfileService.AddProfile(req.Name, req.Selection)
	writeJSON(w, http.StatusCreated, p)
}

// Update handles PUT /api/profiles/{id}.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.ProfileService.EditProfile(id, req.Name, req.Selection); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/profiles. The locked profile is skipped and
// reported with 409; the remaining ids are still removed.
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []uuid.UUID `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	removed, err := h.ProfileService.DeleteProfiles(r.Context(), req.IDs)
	if removed == nil {
		removed = []uuid.UUID{}
	}
	resp := map[string]any{"removed": removed}
	switch {
	case errors.Is(err, service.ErrProfileLocked):
		resp["error"] = err.Error()
		writeJSON(w, http.StatusConflict, resp)
	case err != nil:
		writeError(w, err)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

// Payload handles GET /api/profiles/{id}/payload, returning the tag bytes
// for writers outside this server.
func (h *ProfileHandler) Payload(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}
	payload, err := h.ProfileService.TagPayload(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]byte{"payload": payload})
}

// WriteTag handles POST /api/profiles/{id}/tag. It blocks until a tag is
// presented to the reader or the session ends.
func (h *ProfileHandler) WriteTag(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}
	if err := h.ProfileService.WriteTag(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "written"})
}

func profileID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid profile id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
