package dashboard

import (
	"math"
	"time"

	"tmis-business-guru/internal/models"
)

// startOfDay zeroes the time of day in t's own location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// sameDay compares calendar dates in the location of ref.
func sameDay(t, ref time.Time) bool {
	return startOfDay(t.In(ref.Location())).Equal(startOfDay(ref))
}

// weekdayIndex maps Monday..Sunday to 0..6.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeekStart returns the Monday at or before t, at midnight. Sunday belongs to the week that
// started six days earlier.
func WeekStart(t time.Time) time.Time {
	d := startOfDay(t)
	return d.AddDate(0, 0, -weekdayIndex(d))
}

// WeekEnd returns the last instant (23:59:59.999) of the sixth day after start.
func WeekEnd(start time.Time) time.Time {
	y, m, d := start.Date()
	return time.Date(y, m, d+6, 23, 59, 59, int(999*time.Millisecond), start.Location())
}

// OffsetWeek moves n weeks back from start. Negative n moves forward.
func OffsetWeek(start time.Time, n int) time.Time {
	return WeekStart(start.AddDate(0, 0, -7*n))
}

// WeekOf returns the Monday..Sunday range containing t.
func WeekOf(t time.Time) models.WeekRange {
	start := WeekStart(t)
	return models.WeekRange{Start: start, End: WeekEnd(start)}
}

// CurrentWeek is the Monday-to-Sunday week containing now, in now's location.
func CurrentWeek(now time.Time) models.WeekRange {
	return WeekOf(now)
}

// ComparisonRange is the week immediately before r.
func ComparisonRange(r models.WeekRange) models.WeekRange {
	start := OffsetWeek(r.Start, 1)
	return models.WeekRange{Start: start, End: WeekEnd(start)}
}

// FilterInRange keeps records created within r, comparing dates only. Records without a
// creation time never match.
func FilterInRange(records []models.ClientRecord, r models.WeekRange) []models.ClientRecord {
	out := make([]models.ClientRecord, 0)
	for _, rec := range records {
		if rec.CreatedAt.IsZero() {
			continue
		}
		if r.Contains(rec.CreatedAt) {
			out = append(out, rec)
		}
	}
	return out
}

// weekdaySeries counts records per weekday of r, Monday first.
func weekdaySeries(records []models.ClientRecord, r models.WeekRange) [7]int {
	var series [7]int
	for _, rec := range FilterInRange(records, r) {
		series[weekdayIndex(rec.CreatedAt.In(r.Start.Location()))]++
	}
	return series
}

// WeeklyReport summarizes the week offset weeks before the one containing now, together
// with the week preceding it.
func WeeklyReport(records []models.ClientRecord, now time.Time, offset int) models.WeeklyReport {
	start := OffsetWeek(WeekStart(now), offset)
	r := models.WeekRange{Start: start, End: WeekEnd(start)}
	cmp := ComparisonRange(r)

	report := models.WeeklyReport{
		Offset:          offset,
		Range:           r,
		ComparisonRange: cmp,
		Series:          weekdaySeries(records, r),
	}
	for _, n := range report.Series {
		report.Total += n
	}
	report.ComparisonTotal = len(FilterInRange(records, cmp))
	report.ChangePercent = changePercent(report.Total, report.ComparisonTotal)
	return report
}

func changePercent(current, previous int) int {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return int(math.Round(100 * float64(current-previous) / float64(previous)))
}
