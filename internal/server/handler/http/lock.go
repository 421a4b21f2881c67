package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/TagLock/internal/middleware"
	"github.com/atinyakov/TagLock/internal/models"
	"github.com/atinyakov/TagLock/internal/service"
	"github.com/atinyakov/TagLock/internal/tag"
)

// LockService defines the lock operations required by LockHandler.
type LockService interface {
	Status() models.Status
	OnScan(ctx context.Context, raw []byte) (service.Outcome, error)
	ScanTag(ctx context.Context) (service.Outcome, error)
	EmergencyUnlock(ctx context.Context) error
}

// LockHandler handles HTTP requests that query or change the lock.
type LockHandler struct {
	LockService LockService
	Log         *zap.Logger
}

type outcomeResponse struct {
	Outcome     string     `json:"outcome"`
	ProfileID   *uuid.UUID `json:"profile_id,omitempty"`
	ProfileName string     `json:"profile_name,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	Class       string     `json:"class,omitempty"`
	Message     string     `json:"message"`
}

// Status handles GET /api/status.
func (h *LockHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.LockService.Status())
}

// Scan handles POST /api/scan with the raw tag content read by the caller.
func (h *LockHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Payload []byte `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	out, err := h.LockService.OnScan(r.Context(), req.Payload)
	h.respondOutcome(w, r, out, err)
}

// ScanTag handles POST /api/scan/tag, reading the tag through the server's reader.
func (h *LockHandler) ScanTag(w http.ResponseWriter, r *http.Request) {
	out, err := h.LockService.ScanTag(r.Context())
	h.respondOutcome(w, r, out, err)
}

// EmergencyUnlock handles POST /api/emergency-unlock.
func (h *LockHandler) EmergencyUnlock(w http.ResponseWriter, r *http.Request) {
	if err := h.LockService.EmergencyUnlock(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.logger().Warn("emergency unlock", zap.String("client", middleware.ClientFromContext(r.Context())))
	writeJSON(w, http.StatusOK, h.LockService.Status())
}

func (h *LockHandler) respondOutcome(w http.ResponseWriter, r *http.Request, out service.Outcome, err error) {
	if err != nil {
		writeError(w, err)
		return
	}

	resp := outcomeResponse{
		Outcome:     out.Kind.String(),
		ProfileName: out.ProfileName,
		Reason:      out.Reason.String(),
		Message:     out.Message(),
	}
	if out.ProfileID != uuid.Nil {
		id := out.ProfileID
		resp.ProfileID = &id
	}
	status := http.StatusOK
	if out.Kind == service.OutcomeRejected {
		status = http.StatusUnprocessableEntity
		if out.Reason == service.ReasonUnreadableTag {
			resp.Class = tag.Classify(out.Err).String()
		}
	}

	h.logger().Info("scan",
		zap.String("outcome", resp.Outcome),
		zap.String("reason", resp.Reason),
		zap.String("client", middleware.ClientFromContext(r.Context())),
	)
	writeJSON(w, status, resp)
}

func (h *LockHandler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
