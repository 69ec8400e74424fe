package models

import "time"

// StaffCount is the number of clients attributed to one creator.
type StaffCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// AggregatedStats is a full recomputation over one client snapshot.
type AggregatedStats struct {
	TotalClients        int                  `json:"totalClients"`
	PerStatusCounts     map[ClientStatus]int `json:"perStatusCounts"`
	PerLoanStatusCounts map[LoanStatus]int   `json:"perLoanStatusCounts"`
	TodayCount          int                  `json:"todayCount"`
	PerStaffCounts      []StaffCount         `json:"perStaffCounts"`
	WeeklySeries        [7]int               `json:"weeklySeries"`
	StatusPercentages   map[ClientStatus]int `json:"statusPercentages"`
	GeneratedAt         time.Time            `json:"generatedAt"`
}

// WeekRange runs from Monday 00:00:00.000 to Sunday 23:59:59.999 inclusive.
type WeekRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains compares by calendar date only.
func (r WeekRange) Contains(t time.Time) bool {
	loc := r.Start.Location()
	t = t.In(loc)
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return !d.Before(r.Start) && !d.After(r.End)
}

// WeeklyReport summarizes one week and its preceding comparison week.
type WeeklyReport struct {
	Offset          int       `json:"offset"`
	Range           WeekRange `json:"range"`
	ComparisonRange WeekRange `json:"comparisonRange"`
	Series          [7]int    `json:"series"`
	Total           int       `json:"total"`
	ComparisonTotal int       `json:"comparisonTotal"`
	ChangePercent   int       `json:"changePercent"`
}

// ChartData is the renderer-agnostic {labels, series, colors} triple.
type ChartData struct {
	Labels []string `json:"labels"`
	Series []int    `json:"series"`
	Colors []string `json:"colors"`
}
