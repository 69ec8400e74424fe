// Package dashboard turns client snapshots into dashboard statistics, weekly reports and chart data.
package dashboard

import (
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tmis-business-guru/internal/models"
)

// UnknownCreator is the staff bucket for records without any creator information.
const UnknownCreator = "Unknown"

// Percentage returns round(100*value/total), or 0 when total is 0.
func Percentage(value, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(value) / float64(total)))
}

// Aggregate recomputes every statistic from scratch. A nil slice is treated as empty.
func Aggregate(records []models.ClientRecord, now time.Time) models.AggregatedStats {
	stats := models.AggregatedStats{
		TotalClients:        len(records),
		PerStatusCounts:     make(map[models.ClientStatus]int),
		PerLoanStatusCounts: make(map[models.LoanStatus]int),
		StatusPercentages:   make(map[models.ClientStatus]int),
		PerStaffCounts:      []models.StaffCount{},
		GeneratedAt:         now,
	}

	staff := make(map[string]int)
	for _, rec := range records {
		stats.PerStatusCounts[statusBucket(rec.Status)]++
		stats.PerLoanStatusCounts[loanBucket(rec.LoanStatus)]++
		if !rec.CreatedAt.IsZero() && sameDay(rec.CreatedAt, now) {
			stats.TodayCount++
		}
		staff[ResolveCreator(rec)]++
	}

	for _, status := range models.CanonicalStatuses {
		stats.StatusPercentages[status] = Percentage(stats.PerStatusCounts[status], stats.TotalClients)
	}
	stats.PerStaffCounts = sortStaff(staff)
	stats.WeeklySeries = weekdaySeries(records, CurrentWeek(now))
	return stats
}

func statusBucket(s models.ClientStatus) models.ClientStatus {
	for _, known := range models.CanonicalStatuses {
		if s == known {
			return s
		}
	}
	return models.StatusUnknown
}

func loanBucket(s models.LoanStatus) models.LoanStatus {
	for _, known := range models.CanonicalLoanStatuses {
		if s == known {
			return s
		}
	}
	return models.LoanUnknown
}

func sortStaff(counts map[string]int) []models.StaffCount {
	out := make([]models.StaffCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, models.StaffCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ResolveCreator picks the display name a record is attributed to: the creator name, then the
// staff name, then a name derived from the creator's e-mail address.
func ResolveCreator(rec models.ClientRecord) string {
	if name := strings.TrimSpace(rec.CreatedByName); name != "" {
		return name
	}
	if name := strings.TrimSpace(rec.StaffName); name != "" {
		return name
	}
	if name := NameFromEmail(rec.CreatedByEmail); name != "" {
		return name
	}
	return UnknownCreator
}

// NameFromEmail turns "priya.sharma_ops@x.com" into "Priya Sharma Ops".
func NameFromEmail(email string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	parts := strings.FieldsFunc(local, func(r rune) bool { return r == '.' || r == '_' })
	if len(parts) == 0 {
		return ""
	}
	// Casers keep state, so one is built per call.
	return cases.Title(language.English).String(strings.Join(parts, " "))
}
