package api

import (
	"net/http"
)

func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Notifications.Window(r.Context(), viewer(r))
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	at, err := h.deps.Notifications.ClearAll(r.Context(), viewer(r))
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"clearedAt": at})
}

func (h *Handler) VisitNotifications(w http.ResponseWriter, r *http.Request) {
	at, err := h.deps.Notifications.MarkVisited(r.Context(), viewer(r))
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"visitedAt": at})
}
