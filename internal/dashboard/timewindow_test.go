package dashboard

import (
	"testing"
	"time"

	"tmis-business-guru/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func created(at time.Time) models.ClientRecord {
	return models.ClientRecord{CreatedAt: at, Status: models.StatusPending}
}

// ==========================
// WeekStart / WeekEnd Tests
// ==========================

func TestWeekStart(t *testing.T) {
	monday := date(2024, 1, 8, 0, 0)

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"wednesday", date(2024, 1, 10, 15, 30), monday},
		{"monday midnight", monday, monday},
		{"monday evening", date(2024, 1, 8, 23, 59), monday},
		{"sunday belongs to previous monday", date(2024, 1, 14, 22, 0), monday},
		{"saturday", date(2024, 1, 13, 1, 0), monday},
		{"across month boundary", date(2024, 2, 1, 9, 0), date(2024, 1, 29, 0, 0)},
		{"across year boundary", date(2024, 1, 2, 9, 0), date(2024, 1, 1, 0, 0)},
		{"sunday across year boundary", date(2023, 12, 31, 12, 0), date(2023, 12, 25, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(WeekStart(tt.in)), "got %s", WeekStart(tt.in))
		})
	}
}

func TestWeekEnd_ReferenceWednesday(t *testing.T) {
	start := WeekStart(date(2024, 1, 10, 12, 0))
	end := WeekEnd(start)

	assert.Equal(t, time.Monday, start.Weekday())
	assert.Equal(t, time.Date(2024, 1, 14, 23, 59, 59, 999_000_000, time.UTC), end)
	assert.Equal(t, time.Sunday, end.Weekday())
}

func TestWeekStart_Properties(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	base := time.Date(2023, 12, 1, 7, 13, 0, 0, loc)
	for i := 0; i < 24*60; i++ {
		d := base.Add(time.Duration(i) * 37 * time.Minute)
		start := WeekStart(d)

		assert.Equal(t, time.Monday, start.Weekday())
		assert.True(t, start.Equal(WeekStart(start)), "not idempotent for %s", d)
		assert.False(t, start.After(d))
		assert.Equal(t, 6*24*time.Hour+23*time.Hour+59*time.Minute+59*time.Second+999*time.Millisecond,
			WeekEnd(start).Sub(start))
		assert.True(t, WeekOf(d).Contains(d))
	}
}

func TestOffsetWeek(t *testing.T) {
	start := date(2024, 1, 8, 0, 0)

	assert.Equal(t, date(2024, 1, 1, 0, 0), OffsetWeek(start, 1))
	assert.Equal(t, date(2023, 12, 25, 0, 0), OffsetWeek(start, 2))
	assert.Equal(t, date(2024, 1, 15, 0, 0), OffsetWeek(start, -1))
	assert.Equal(t, start, OffsetWeek(start, 0))

	cmp := ComparisonRange(models.WeekRange{Start: start, End: WeekEnd(start)})
	assert.Equal(t, date(2024, 1, 1, 0, 0), cmp.Start)
	assert.Equal(t, time.Date(2024, 1, 7, 23, 59, 59, 999_000_000, time.UTC), cmp.End)
}

// ==========================
// FilterInRange Tests
// ==========================

func TestFilterInRange_InclusiveDateOnly(t *testing.T) {
	r := CurrentWeek(date(2024, 1, 10, 0, 0))

	records := []models.ClientRecord{
		created(date(2024, 1, 8, 0, 0)),
		created(time.Date(2024, 1, 14, 23, 59, 59, 999_999_999, time.UTC)),
		created(date(2024, 1, 7, 23, 59)),
		created(date(2024, 1, 15, 0, 0)),
		{},
	}

	// only the monday midnight and the last sunday instant fall inside
	got := FilterInRange(records, r)
	require.Len(t, got, 2)
	assert.Equal(t, records[0].CreatedAt, got[0].CreatedAt)
	assert.Equal(t, records[1].CreatedAt, got[1].CreatedAt)
	assert.Empty(t, FilterInRange(nil, r))
}

// ==========================
// WeeklyReport Tests
// ==========================

func TestWeeklyReport(t *testing.T) {
	now := date(2024, 1, 10, 12, 0)
	records := []models.ClientRecord{
		created(date(2024, 1, 8, 9, 0)),
		created(date(2024, 1, 8, 17, 0)),
		created(date(2024, 1, 10, 10, 0)),
		created(date(2024, 1, 14, 20, 0)),
		created(date(2024, 1, 2, 10, 0)),
		created(date(2024, 1, 3, 10, 0)),
		created(date(2024, 1, 4, 10, 0)),
		created(date(2024, 1, 5, 10, 0)),
	}

	current := WeeklyReport(records, now, 0)
	assert.Equal(t, [7]int{2, 0, 1, 0, 0, 0, 1}, current.Series)
	assert.Equal(t, 4, current.Total)
	assert.Equal(t, 4, current.ComparisonTotal)
	assert.Equal(t, 0, current.ChangePercent)

	previous := WeeklyReport(records, now, 1)
	assert.Equal(t, date(2024, 1, 1, 0, 0), previous.Range.Start)
	assert.Equal(t, [7]int{0, 1, 1, 1, 1, 0, 0}, previous.Series)
	assert.Equal(t, 0, previous.ComparisonTotal)
	assert.Equal(t, 100, previous.ChangePercent)
}

func TestChangePercent(t *testing.T) {
	assert.Equal(t, 0, changePercent(0, 0))
	assert.Equal(t, 100, changePercent(3, 0))
	assert.Equal(t, -50, changePercent(2, 4))
	assert.Equal(t, 33, changePercent(4, 3))
}
