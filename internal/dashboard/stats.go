package dashboard

// Summary backs the dashboard's headline cards.
type Summary struct {
	TotalAccidents  int `json:"total_accidents"`
	MinorInjuries   int `json:"minor_injuries"`
	SeriousInjuries int `json:"serious_injuries"`
	Fatalities      int `json:"fatalities"`
	Survivors       int `json:"survivors"`
	HighRiskAreas   int `json:"high_risk_areas"`
}

// EventDetail is the slim per-event record the frontend filters on
// without another round trip.
type EventDetail struct {
	Vehicle       string `json:"vehicle_type"`
	Weather       string `json:"weather_condition"`
	PresumedCause string `json:"presumed_cause"`
	AccidentType  string `json:"accident_type"`
	Province      string `json:"province"`
	Fatal         int    `json:"casualties_fatal"`
	Serious       int    `json:"casualties_serious"`
	Minor         int    `json:"casualties_minor"`
}

// SeveritySlice is one wedge of the severity distribution chart.
type SeveritySlice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Color string `json:"color"`
}

// EventTypeCount pairs an accident type with its frequency.
type EventTypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// WeatherCount pairs a weather condition with its frequency.
type WeatherCount struct {
	Weather string `json:"weather"`
	Count   int    `json:"count"`
}

// CauseCount pairs a presumed cause with its frequency.
type CauseCount struct {
	Cause string `json:"cause"`
	Count int    `json:"count"`
}

// ProvinceCount pairs a province with its accident count.
type ProvinceCount struct {
	Province string `json:"province"`
	Count    int    `json:"count"`
}

// ProvinceDetail extends the count with per-severity casualty sums for
// the heatmap.
type ProvinceDetail struct {
	Province  string `json:"province"`
	Count     int    `json:"count"`
	Fatal     int    `json:"fatal"`
	Serious   int    `json:"serious"`
	Minor     int    `json:"minor"`
	Survivors int    `json:"survivors"`
}

// DailyCount is one calendar day inside a monthly trend bucket.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// MonthTrend is one YYYY-MM bucket with its daily breakdown.
type MonthTrend struct {
	Month string       `json:"month"`
	Count int          `json:"count"`
	Daily []DailyCount `json:"daily"`
}

// HourCount is one hour-of-day bucket.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// DayCount is one day-of-week bucket (Mon first).
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// YearCount is one calendar-year bucket.
type YearCount struct {
	Year  string `json:"year"`
	Count int    `json:"count"`
}

// MonthSummary is one month-of-year bucket across all years.
type MonthSummary struct {
	Month     string `json:"month"`
	MonthName string `json:"month_name"`
	Count     int    `json:"count"`
}

// WeekdaySummary is one day-of-week bucket with the full day name.
type WeekdaySummary struct {
	Day     string `json:"day"`
	DayName string `json:"day_name"`
	Count   int    `json:"count"`
}

// Stats is the complete dashboard payload.
type Stats struct {
	Summary        Summary          `json:"summary"`
	AllEvents      []EventDetail    `json:"all_events"`
	Severity       []SeveritySlice  `json:"severity_distribution"`
	EventTypes     []EventTypeCount `json:"event_types"`
	WeatherData    []WeatherCount   `json:"weather_data"`
	AccidentCauses []CauseCount     `json:"accident_causes"`
	TopProvinces   []ProvinceCount  `json:"top_provinces"`
	AllProvinces   []ProvinceDetail `json:"all_provinces"`
	MonthlyTrend   []MonthTrend     `json:"monthly_trend"`
	HourlyPattern  []HourCount      `json:"hourly_pattern"`
	DailyPattern   []DayCount       `json:"daily_pattern"`
	YearlySummary  []YearCount      `json:"yearly_summary"`
	MonthlySummary []MonthSummary   `json:"monthly_summary"`
	WeekdaySummary []WeekdaySummary `json:"weekday_summary"`
}
