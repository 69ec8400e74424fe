package dashboard

import (
	"testing"
	"time"

	"tmis-business-guru/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStats() models.AggregatedStats {
	return models.AggregatedStats{
		TotalClients: 10,
		PerStatusCounts: map[models.ClientStatus]int{
			models.StatusInterested: 6,
			models.StatusPending:    4,
		},
		PerLoanStatusCounts: map[models.LoanStatus]int{
			models.LoanApproved: 3,
			models.LoanUnknown:  7,
		},
		PerStaffCounts: []models.StaffCount{
			{Name: "Zoya", Count: 5},
			{Name: "Amit", Count: 3},
			{Name: "Bala", Count: 2},
		},
	}
}

// ==========================
// Chart Adapter Tests
// ==========================

func TestStatusChart_StableLegend(t *testing.T) {
	data := StatusChart(sampleStats(), false)

	assert.Equal(t, []string{"Pending", "Interested", "Not Interested", "Hold", "Processing", "Unknown"}, data.Labels)
	assert.Equal(t, []int{4, 6, 0, 0, 0, 0}, data.Series)
	assert.Len(t, data.Colors, 6)
}

func TestStatusChart_Compact(t *testing.T) {
	data := StatusChart(sampleStats(), true)

	assert.Equal(t, []string{"Pending", "Interested"}, data.Labels)
	assert.Equal(t, []int{4, 6}, data.Series)
	assert.Equal(t, []string{statusColors[models.StatusPending], statusColors[models.StatusInterested]}, data.Colors)
}

func TestStatusChart_EmptyStats(t *testing.T) {
	compact := StatusChart(models.AggregatedStats{}, true)
	assert.NotNil(t, compact.Labels)
	assert.Empty(t, compact.Labels)

	full := StatusChart(models.AggregatedStats{}, false)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0}, full.Series)
}

func TestLoanStatusChart(t *testing.T) {
	data := LoanStatusChart(sampleStats(), true)
	assert.Equal(t, []string{"Approved", "Unknown"}, data.Labels)
	assert.Equal(t, []int{3, 7}, data.Series)

	assert.Len(t, LoanStatusChart(sampleStats(), false).Labels, len(models.CanonicalLoanStatuses))
}

func TestWeekdayChart(t *testing.T) {
	data := WeekdayChart([7]int{1, 2, 3, 4, 5, 6, 7})

	assert.Equal(t, []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}, data.Labels)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, data.Series)

	// callers must not be able to change the shared labels
	data.Labels[0] = "X"
	assert.Equal(t, "Mon", WeekdayLabels[0])
}

func TestStaffChart_Limit(t *testing.T) {
	data := StaffChart(sampleStats(), 2)
	assert.Equal(t, []string{"Zoya", "Amit"}, data.Labels)
	assert.Equal(t, []int{5, 3}, data.Series)

	assert.Len(t, StaffChart(sampleStats(), 0).Labels, 3)
}

// ==========================
// Chart Registry Tests
// ==========================

func newTestRegistry() (*ChartRegistry, *time.Time) {
	r := NewChartRegistry()
	now := date(2024, 1, 10, 9, 0)
	r.now = func() time.Time { return now }
	return r, &now
}

func TestRenderOrUpdate_CreatesThenUpdatesInPlace(t *testing.T) {
	r, now := newTestRegistry()
	createdAt := *now

	first := r.RenderOrUpdate(ChartStatus, ChartDonut, StatusChart(sampleStats(), false))
	assert.True(t, first.Created)
	assert.True(t, first.Changed)
	assert.Equal(t, 1, first.Instance.Revision)
	assert.True(t, first.Instance.Options.ShowLegend)

	*now = now.Add(time.Minute)
	stats := sampleStats()
	stats.PerStatusCounts[models.StatusHold] = 2
	second := r.RenderOrUpdate(ChartStatus, ChartDonut, StatusChart(stats, false))

	assert.False(t, second.Created)
	assert.True(t, second.Changed)
	assert.Equal(t, 2, second.Instance.Revision)
	assert.Equal(t, createdAt, second.Instance.CreatedAt)
	assert.Equal(t, *now, second.Instance.UpdatedAt)
	assert.Equal(t, first.Instance.Options, second.Instance.Options)
	assert.Equal(t, []int{4, 6, 0, 2, 0, 0}, second.Instance.Data.Series)
}

func TestRenderOrUpdate_IdenticalDataKeepsRevision(t *testing.T) {
	r, _ := newTestRegistry()
	data := WeekdayChart([7]int{1, 0, 0, 0, 0, 0, 0})

	r.RenderOrUpdate(ChartWeekday, ChartBar, data)
	again := r.RenderOrUpdate(ChartWeekday, ChartBar, data)

	assert.False(t, again.Created)
	assert.False(t, again.Changed)
	assert.Equal(t, 1, again.Instance.Revision)
}

func TestRenderOrUpdate_KindChangeRebuilds(t *testing.T) {
	r, _ := newTestRegistry()
	r.RenderOrUpdate(ChartStatus, ChartDonut, StatusChart(sampleStats(), false))

	res := r.RenderOrUpdate(ChartStatus, ChartBar, StatusChart(sampleStats(), false))
	assert.True(t, res.Created)
	assert.Equal(t, ChartBar, res.Instance.Options.Kind)
	assert.False(t, res.Instance.Options.ShowLegend)
}

func TestRegistry_DestroyAndGet(t *testing.T) {
	r, _ := newTestRegistry()
	r.RenderOrUpdate(ChartStaff, ChartBar, StaffChart(sampleStats(), 0))

	inst, ok := r.Get(ChartStaff)
	require.True(t, ok)

	// returned instances are copies
	inst.Data.Series[0] = 99
	again, _ := r.Get(ChartStaff)
	assert.Equal(t, 5, again.Data.Series[0])

	assert.True(t, r.Destroy(ChartStaff))
	assert.False(t, r.Destroy(ChartStaff))
	_, ok = r.Get(ChartStaff)
	assert.False(t, ok)

	res := r.RenderOrUpdate(ChartStaff, ChartBar, StaffChart(sampleStats(), 0))
	assert.True(t, res.Created)
	assert.Len(t, r.All(), 1)
}
