package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"tmis-business-guru/internal/common/errors"
	"tmis-business-guru/internal/gateway"
)

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.deps.Backend.ListClients(r.Context())
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"clients": clients, "total": len(clients)})
}

func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.deps.Backend.GetClient(r.Context(), chi.URLParam(r, "clientId"))
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var changes map[string]interface{}
	if err := decodeJSON(r, &changes); err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	if len(changes) == 0 {
		h.errs.WriteError(w, r, errors.NewValidationFailedError("no changes supplied"))
		return
	}
	res, err := h.deps.Backend.UpdateClient(r.Context(), chi.URLParam(r, "clientId"), changes)
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type fieldUpdateRequest struct {
	Field string      `json:"field"`
	Value interface{} `json:"value"`
}

// QueueFieldUpdate debounces an inline edit; the backend call happens after the quiet period.
func (h *Handler) QueueFieldUpdate(w http.ResponseWriter, r *http.Request) {
	var req fieldUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Field) == "" {
		h.errs.WriteError(w, r, errors.NewValidationFailedError("field is required"))
		return
	}
	clientID := chi.URLParam(r, "clientId")
	if err := h.deps.Fields.Queue(r.Context(), clientID, req.Field, req.Value); err != nil {
		h.errs.WriteError(w, r, errors.NewValidationFailedError(err.Error()))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"queued": true, "clientId": clientID, "field": req.Field})
}

func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Backend.DeleteClient(r.Context(), chi.URLParam(r, "clientId")); err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.deps.Backend.DownloadDocument(r.Context(), chi.URLParam(r, "clientId"), chi.URLParam(r, "docType"))
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", doc.Disposition())
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}

func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r)
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	client, err := h.deps.Backend.UploadDocument(r.Context(), chi.URLParam(r, "clientId"), gateway.FileUpload{
		FieldName:   chi.URLParam(r, "docType"),
		FileName:    up.fileName,
		ContentType: up.contentType,
		Data:        up.data,
	})
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (h *Handler) ListTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.deps.Backend.ListTeam(r.Context())
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": team})
}

// ListUsers is admin only.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if !viewer(r).IsAdmin() {
		h.errs.WriteError(w, r, errors.NewAccessDeniedError("user management requires the admin role"))
		return
	}
	users, err := h.deps.Backend.ListUsers(r.Context())
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	reply, err := h.deps.Backend.Chat(r.Context(), req.Message)
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}
