// Package notifications computes the per-viewer notification sections and persists the
// watermarks that bound them.
package notifications

import (
	"sort"
	"strings"
	"time"

	"tmis-business-guru/internal/common/auth"
	"tmis-business-guru/internal/models"
)

// DefaultUpdateGuard hides updates that happened this close to creation.
const DefaultUpdateGuard = 60 * time.Second

// Window holds the three notification sections. A record appears in at most one of them.
type Window struct {
	New          []models.ClientRecord `json:"new"`
	Updated      []models.ClientRecord `json:"updated"`
	AdminActions []models.ClientRecord `json:"adminActions"`
	Effective    time.Time             `json:"effective"`
}

// Total is the number of items across all sections.
func (w Window) Total() int {
	return len(w.New) + len(w.Updated) + len(w.AdminActions)
}

// Effective returns the later of the two watermarks.
func Effective(lastVisit, lastClear time.Time) time.Time {
	if lastClear.After(lastVisit) {
		return lastClear
	}
	return lastVisit
}

// Compute splits records into New, Updated and AdminActions relative to
// max(lastVisit, lastClear). Updates within guard of creation count as part of the creation.
// AdminActions is only filled for non-admin viewers.
func Compute(records []models.ClientRecord, viewer auth.Viewer, lastVisit, lastClear time.Time, guard time.Duration) Window {
	effective := Effective(lastVisit, lastClear)
	w := Window{
		New:          []models.ClientRecord{},
		Updated:      []models.ClientRecord{},
		AdminActions: []models.ClientRecord{},
		Effective:    effective,
	}

	for _, rec := range records {
		if rec.CreatedAt.After(effective) {
			w.New = append(w.New, rec)
			continue
		}
		if !isUpdateAfter(rec, effective, guard) {
			continue
		}
		if updatedByViewer(rec, viewer) {
			w.Updated = append(w.Updated, rec)
		} else if !viewer.IsAdmin() {
			w.AdminActions = append(w.AdminActions, rec)
		}
	}

	sortByTime(w.New, func(r models.ClientRecord) time.Time { return r.CreatedAt })
	sortByTime(w.Updated, func(r models.ClientRecord) time.Time { return r.UpdatedAt })
	sortByTime(w.AdminActions, func(r models.ClientRecord) time.Time { return r.UpdatedAt })
	return w
}

func isUpdateAfter(rec models.ClientRecord, effective time.Time, guard time.Duration) bool {
	if !rec.UpdatedAt.After(effective) {
		return false
	}
	if rec.CreatedAt.IsZero() {
		return true
	}
	return rec.UpdatedAt.Sub(rec.CreatedAt) > guard
}

// updatedByViewer matches by user id when both sides carry one, otherwise by name.
func updatedByViewer(rec models.ClientRecord, viewer auth.Viewer) bool {
	if rec.UpdatedBy != "" && viewer.ID != "" {
		return rec.UpdatedBy == viewer.ID
	}
	if rec.UpdatedByName != "" && viewer.Name != "" {
		return strings.EqualFold(strings.TrimSpace(rec.UpdatedByName), strings.TrimSpace(viewer.Name))
	}
	return false
}

// sortByTime orders newest first.
func sortByTime(records []models.ClientRecord, at func(models.ClientRecord) time.Time) {
	sort.SliceStable(records, func(i, j int) bool {
		return at(records[i]).After(at(records[j]))
	})
}
