package dashboard

import (
	"tmis-business-guru/internal/models"
)

var statusLabels = map[models.ClientStatus]string{
	models.StatusPending:       "Pending",
	models.StatusInterested:    "Interested",
	models.StatusNotInterested: "Not Interested",
	models.StatusHold:          "Hold",
	models.StatusProcessing:    "Processing",
	models.StatusUnknown:       "Unknown",
}

var statusColors = map[models.ClientStatus]string{
	models.StatusPending:       "#f59e0b",
	models.StatusInterested:    "#10b981",
	models.StatusNotInterested: "#ef4444",
	models.StatusHold:          "#6366f1",
	models.StatusProcessing:    "#3b82f6",
	models.StatusUnknown:       "#9ca3af",
}

var loanLabels = map[models.LoanStatus]string{
	models.LoanSoon:       "Soon",
	models.LoanProcessing: "Processing",
	models.LoanHold:       "Hold",
	models.LoanApproved:   "Approved",
	models.LoanRejected:   "Rejected",
	models.LoanUnknown:    "Unknown",
}

var loanColors = map[models.LoanStatus]string{
	models.LoanSoon:       "#a855f7",
	models.LoanProcessing: "#3b82f6",
	models.LoanHold:       "#6366f1",
	models.LoanApproved:   "#10b981",
	models.LoanRejected:   "#ef4444",
	models.LoanUnknown:    "#9ca3af",
}

// WeekdayLabels is the Monday-first axis of weekly charts.
var WeekdayLabels = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

const weekdayColor = "#3b82f6"

// staffPalette cycles for staff bars.
var staffPalette = []string{"#3b82f6", "#10b981", "#f59e0b", "#ef4444", "#6366f1", "#a855f7", "#14b8a6", "#f97316"}

func emptyChart() models.ChartData {
	return models.ChartData{Labels: []string{}, Series: []int{}, Colors: []string{}}
}

// StatusChart lists every status in canonical order. In compact mode zero categories are left
// out of the legend.
func StatusChart(stats models.AggregatedStats, compact bool) models.ChartData {
	data := emptyChart()
	for _, status := range models.CanonicalStatuses {
		n := stats.PerStatusCounts[status]
		if compact && n == 0 {
			continue
		}
		data.Labels = append(data.Labels, statusLabels[status])
		data.Series = append(data.Series, n)
		data.Colors = append(data.Colors, statusColors[status])
	}
	return data
}

func LoanStatusChart(stats models.AggregatedStats, compact bool) models.ChartData {
	data := emptyChart()
	for _, status := range models.CanonicalLoanStatuses {
		n := stats.PerLoanStatusCounts[status]
		if compact && n == 0 {
			continue
		}
		data.Labels = append(data.Labels, loanLabels[status])
		data.Series = append(data.Series, n)
		data.Colors = append(data.Colors, loanColors[status])
	}
	return data
}

// WeekdayChart always has seven points, Monday through Sunday.
func WeekdayChart(series [7]int) models.ChartData {
	data := models.ChartData{
		Labels: append([]string(nil), WeekdayLabels...),
		Series: make([]int, 7),
		Colors: make([]string, 7),
	}
	for i := range series {
		data.Series[i] = series[i]
		data.Colors[i] = weekdayColor
	}
	return data
}

// StaffChart keeps the first limit entries of the already sorted staff counts. limit <= 0
// keeps all of them.
func StaffChart(stats models.AggregatedStats, limit int) models.ChartData {
	data := emptyChart()
	for i, sc := range stats.PerStaffCounts {
		if limit > 0 && i >= limit {
			break
		}
		data.Labels = append(data.Labels, sc.Name)
		data.Series = append(data.Series, sc.Count)
		data.Colors = append(data.Colors, staffPalette[i%len(staffPalette)])
	}
	return data
}
