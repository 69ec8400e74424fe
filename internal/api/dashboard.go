package api

import (
	"net/http"
	"strconv"

	"tmis-business-guru/internal/common/errors"
	"tmis-business-guru/internal/dashboard"
)

// dashboardView keys the caller's dashboard state; the backend scopes the client list by token.
func dashboardView(r *http.Request) string {
	v := viewer(r)
	return dashboard.ViewKey(v.Role, owner(v))
}

// snapshot returns the caller's dashboard snapshot, refreshing first when none exists yet.
func (h *Handler) snapshot(r *http.Request) (*dashboard.Snapshot, error) {
	if snap, ok := h.deps.Dashboard.Snapshot(dashboardView(r)); ok {
		return snap, nil
	}
	return h.deps.Dashboard.Refresh(r.Context(), dashboardView(r))
}

func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r)
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) DashboardWeekly(w http.ResponseWriter, r *http.Request) {
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.errs.WriteError(w, r, errors.NewValidationFailedError("offset must be a non-negative number of weeks"))
			return
		}
		offset = n
	}
	if _, err := h.snapshot(r); err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	report, ok := h.deps.Dashboard.Weekly(dashboardView(r), offset)
	if !ok {
		h.errs.WriteError(w, r, errors.NewServerError(http.StatusServiceUnavailable, "dashboard has no data yet"))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) DashboardCharts(w http.ResponseWriter, r *http.Request) {
	compact := h.deps.CompactLegend
	if raw := r.URL.Query().Get("compact"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.errs.WriteError(w, r, errors.NewValidationFailedError("compact must be true or false"))
			return
		}
		compact = v
	}
	if _, err := h.snapshot(r); err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	charts, ok := h.deps.Dashboard.Charts(dashboardView(r), compact)
	if !ok {
		h.errs.WriteError(w, r, errors.NewServerError(http.StatusServiceUnavailable, "dashboard has no data yet"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"charts": charts, "compact": compact})
}

func (h *Handler) DashboardRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Dashboard.Refresh(r.Context(), dashboardView(r))
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
