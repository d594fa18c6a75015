package domain

// DashboardStats aggregates the headline figures shown on the console
// dashboard, including month-over-month deltas in percent.
type DashboardStats struct {
	TotalUsers             int
	ActiveUsers            int
	NewRegistrations       int
	MonthlyGrowth          int
	UserGrowthPercentage   float64
	ActiveUserPercentage   float64
	RegistrationPercentage float64
	GrowthPercentage       float64
}

// ChartPoint is one month of the registration trend chart.
type ChartPoint struct {
	Month string
	Users int
}
