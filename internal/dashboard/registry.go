package dashboard

import (
	"slices"
	"sort"
	"sync"
	"time"

	"tmis-business-guru/internal/models"
)

type ChartKind string

const (
	ChartDonut ChartKind = "donut"
	ChartPie   ChartKind = "pie"
	ChartBar   ChartKind = "bar"
	ChartLine  ChartKind = "line"
)

// ChartOptions is the structural part of a chart. It is fixed when the instance is built.
type ChartOptions struct {
	Kind       ChartKind `json:"kind"`
	ShowLegend bool      `json:"showLegend"`
	Animate    bool      `json:"animate"`
}

func defaultOptions(kind ChartKind) ChartOptions {
	return ChartOptions{
		Kind:       kind,
		ShowLegend: kind == ChartDonut || kind == ChartPie,
		Animate:    true,
	}
}

// ChartInstance is a retained chart. Revision increases each time its data changes.
type ChartInstance struct {
	ID        string           `json:"id"`
	Options   ChartOptions     `json:"options"`
	Data      models.ChartData `json:"data"`
	Revision  int              `json:"revision"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

func (c *ChartInstance) clone() ChartInstance {
	cp := *c
	cp.Data = cloneChartData(c.Data)
	return cp
}

func cloneChartData(d models.ChartData) models.ChartData {
	return models.ChartData{
		Labels: slices.Clone(d.Labels),
		Series: slices.Clone(d.Series),
		Colors: slices.Clone(d.Colors),
	}
}

type RenderResult struct {
	Instance ChartInstance
	Created  bool
	Changed  bool
}

// ChartRegistry keeps chart instances alive across refreshes so hosts can animate data changes
// instead of rebuilding the chart.
type ChartRegistry struct {
	mu     sync.RWMutex
	charts map[string]*ChartInstance
	now    func() time.Time
}

func NewChartRegistry() *ChartRegistry {
	return &ChartRegistry{
		charts: make(map[string]*ChartInstance),
		now:    time.Now,
	}
}

// RenderOrUpdate replaces only the data of an existing instance, or builds a new one when none
// exists or the kind changed. Identical data leaves the revision untouched.
func (r *ChartRegistry) RenderOrUpdate(id string, kind ChartKind, data models.ChartData) RenderResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	existing, ok := r.charts[id]
	if !ok || existing.Options.Kind != kind {
		inst := &ChartInstance{
			ID:        id,
			Options:   defaultOptions(kind),
			Data:      cloneChartData(data),
			Revision:  1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		r.charts[id] = inst
		return RenderResult{Instance: inst.clone(), Created: true, Changed: true}
	}

	if sameChartData(existing.Data, data) {
		return RenderResult{Instance: existing.clone()}
	}

	existing.Data.Labels = append(existing.Data.Labels[:0], data.Labels...)
	existing.Data.Series = append(existing.Data.Series[:0], data.Series...)
	existing.Data.Colors = append(existing.Data.Colors[:0], data.Colors...)
	existing.Revision++
	existing.UpdatedAt = now
	return RenderResult{Instance: existing.clone(), Changed: true}
}

func sameChartData(a, b models.ChartData) bool {
	return slices.Equal(a.Labels, b.Labels) && slices.Equal(a.Series, b.Series) && slices.Equal(a.Colors, b.Colors)
}

func (r *ChartRegistry) Get(id string) (ChartInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.charts[id]
	if !ok {
		return ChartInstance{}, false
	}
	return inst.clone(), true
}

// Destroy drops an instance; the next RenderOrUpdate builds it again.
func (r *ChartRegistry) Destroy(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.charts[id]
	delete(r.charts, id)
	return ok
}

// All returns every instance ordered by id.
func (r *ChartRegistry) All() []ChartInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ChartInstance, 0, len(r.charts))
	for _, inst := range r.charts {
		out = append(out, inst.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
