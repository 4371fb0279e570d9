package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"participation/internal/participation"
	"participation/internal/resolution"
	"participation/internal/transport/http/shared"
	id "participation/pkg/domain"
	dErrors "participation/pkg/domain-errors"
	"participation/pkg/requestcontext"
)

// =============================================================================
// Status & Conflicts
// =============================================================================

func (h *Handler) handleCanonicalStatus(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	studentID, err := id.ParseStudentID(chi.URLParam(r, "studentID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.reconcile.CanonicalStatus(r.Context(), eventID, studentID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleEventConflicts(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	rows, err := h.reconcile.EventConflicts(r.Context(), eventID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"event_id":  eventID,
		"conflicts": rows,
	})
}

func (h *Handler) handleFraudScan(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	report, err := h.fraud.ScanEvent(r.Context(), eventID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}

// =============================================================================
// Change History & Audit
// =============================================================================

func (h *Handler) handleChangeHistory(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	studentID, err := id.ParseStudentID(chi.URLParam(r, "studentID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	history, err := h.ledger.HistoryFor(r.Context(), eventID, studentID, 0)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, history)
}

func (h *Handler) handleAuditSummary(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	summary, err := h.ledger.SummaryFor(r.Context(), eventID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, summary)
}

// =============================================================================
// Resolution
// =============================================================================

type resolveBatchRequest struct {
	Actions []resolution.BatchAction `json:"actions"`
}

func (h *Handler) handleResolveBatch(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req resolveBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if len(req.Actions) == 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "actions are required"))
		return
	}

	result, err := h.resolution.ResolveBatch(r.Context(), eventID, req.Actions, requestcontext.ActorID(r.Context()))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

type revokeRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleRevokeCertificate(w http.ResponseWriter, r *http.Request) {
	certificateID, err := id.ParseCertificateID(chi.URLParam(r, "certificateID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if req.Reason == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "reason is required"))
		return
	}

	entry, err := h.resolution.RevokeCertificate(r.Context(), certificateID, requestcontext.ActorID(r.Context()), req.Reason)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleInvalidateAttendance(w http.ResponseWriter, r *http.Request) {
	attendanceID, err := id.ParseAttendanceID(chi.URLParam(r, "attendanceID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if req.Reason == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "reason is required"))
		return
	}

	entry, err := h.resolution.InvalidateAttendance(r.Context(), attendanceID, requestcontext.ActorID(r.Context()), req.Reason)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, entry)
}

// =============================================================================
// Certificate Verification (public)
// =============================================================================

func (h *Handler) handleVerifyCertificate(w http.ResponseWriter, r *http.Request) {
	certificateID, err := id.ParseCertificateID(chi.URLParam(r, "certificateID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.certificates.Verify(r.Context(), certificateID, r.URL.Query().Get("verification_hash"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

// =============================================================================
// Roles
// =============================================================================

type assignRoleRequest struct {
	StudentID   string `json:"student_id"`
	Role        string `json:"role"`
	TimeSegment string `json:"time_segment"`
}

func (h *Handler) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req assignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	studentID, err := id.ParseStudentID(req.StudentID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	role, err := h.roles.Assign(r.Context(), eventID, studentID, participation.RoleType(req.Role), req.TimeSegment, requestcontext.ActorID(r.Context()))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, role)
}

func (h *Handler) handleRemoveRole(w http.ResponseWriter, r *http.Request) {
	roleID := id.RoleID(chi.URLParam(r, "roleID"))
	if roleID.IsZero() {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "role id is required"))
		return
	}

	var req revokeRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.roles.Remove(r.Context(), roleID, requestcontext.ActorID(r.Context()), req.Reason); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListEventRoles(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	assignments, err := h.roles.ForEvent(r.Context(), eventID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"event_id": eventID,
		"roles":    assignments,
	})
}

func (h *Handler) handleListStudentRoles(w http.ResponseWriter, r *http.Request) {
	studentID, err := id.ParseStudentID(chi.URLParam(r, "studentID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	assignments, err := h.roles.ForStudent(r.Context(), studentID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"student_id": studentID,
		"roles":      assignments,
	})
}
