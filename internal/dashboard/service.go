package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"roadrisk/internal/store"
)

const defaultPageSize = 1000

// Corpus bounds: the dataset covers January 2019 through August 2025.
const (
	corpusStart = "2019-01-01"
	corpusEnd   = "2025-08-31"
	partialYear = 2025
)

var (
	shortDays  = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	longDays   = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	monthNames = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
)

// Query is the backend-applied dashboard filter set. Vehicle, weather
// and cause filtering happens client-side against AllEvents, so only
// these three participate in the cache key.
type Query struct {
	DateRange    string // "all" or a year like "2024"
	Province     string // "all" or a province name
	CasualtyType string // all, fatal, serious, minor, survivors
}

func (q Query) normalized() Query {
	if q.DateRange == "" {
		q.DateRange = "all"
	}
	if q.Province == "" {
		q.Province = "all"
	}
	if q.CasualtyType == "" {
		q.CasualtyType = "all"
	}
	return q
}

// CacheKey identifies a cached payload.
func (q Query) CacheKey() string {
	q = q.normalized()
	return q.DateRange + ":" + q.Province + ":" + q.CasualtyType
}

// Service computes dashboard statistics over the record store.
type Service struct {
	store    store.RecordStore
	cache    *Cache
	pageSize int
	log      zerolog.Logger
}

// NewService builds a dashboard service.
func NewService(st store.RecordStore, cache *Cache, log zerolog.Logger) *Service {
	return &Service{
		store:    st,
		cache:    cache,
		pageSize: defaultPageSize,
		log:      log.With().Str("component", "dashboard").Logger(),
	}
}

// Stats returns the aggregated payload for the query, from cache when
// fresh.
func (s *Service) Stats(ctx context.Context, q Query) (*Stats, error) {
	q = q.normalized()
	return s.cache.GetOrCompute(q.CacheKey(), func() (*Stats, error) {
		return s.compute(ctx, q)
	})
}

func (s *Service) compute(ctx context.Context, q Query) (*Stats, error) {
	filters, err := buildFilters(q)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	events, err := s.fetchAll(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	s.log.Info().
		Int("events", len(events)).
		Str("key", q.CacheKey()).
		Dur("fetch", time.Since(start)).
		Msg("aggregating dashboard stats")

	return aggregate(events, q.CasualtyType), nil
}

// FilterValue is one distinct column value with its frequency.
type FilterValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FilterValues lists the distinct values behind the client-side filter
// dropdowns, most frequent first.
type FilterValues struct {
	VehicleTypes      []FilterValue `json:"vehicle_types"`
	WeatherConditions []FilterValue `json:"weather_conditions"`
	AccidentCauses    []FilterValue `json:"accident_causes"`
	TotalEvents       int           `json:"total_events"`
}

// FilterOptions scans the whole corpus and returns the distinct
// vehicle, weather and cause values with counts.
func (s *Service) FilterOptions(ctx context.Context) (*FilterValues, error) {
	filters, err := buildFilters(Query{}.normalized())
	if err != nil {
		return nil, err
	}
	events, err := s.fetchAll(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}

	vehicles := map[string]int{}
	weathers := map[string]int{}
	causes := map[string]int{}
	for _, e := range events {
		if v := strings.TrimSpace(e.Vehicle); v != "" {
			vehicles[v]++
		}
		if w := strings.TrimSpace(e.Weather); w != "" {
			weathers[w]++
		}
		if c := strings.TrimSpace(e.PresumedCause); c != "" {
			causes[c]++
		}
	}

	return &FilterValues{
		VehicleTypes:      filterValueList(vehicles),
		WeatherConditions: filterValueList(weathers),
		AccidentCauses:    filterValueList(causes),
		TotalEvents:       len(events),
	}, nil
}

func filterValueList(counts map[string]int) []FilterValue {
	out := make([]FilterValue, 0, len(counts))
	for v, c := range counts {
		out = append(out, FilterValue{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// YearData is one calendar year with its event count.
type YearData struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// AvailableYears is the year listing payload.
type AvailableYears struct {
	Years      []YearData `json:"years"`
	TotalYears int        `json:"total_years"`
}

// Years reports which calendar years carry event data, newest first.
func (s *Service) Years(ctx context.Context) (*AvailableYears, error) {
	filters, err := buildFilters(Query{}.normalized())
	if err != nil {
		return nil, err
	}
	events, err := s.fetchAll(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}

	counts := map[int]int{}
	for _, e := range events {
		if e.DateTime.IsZero() {
			continue
		}
		counts[e.DateTime.Year()]++
	}
	years := make([]YearData, 0, len(counts))
	for y, c := range counts {
		years = append(years, YearData{Year: y, Count: c})
	}
	sort.Slice(years, func(i, j int) bool { return years[i].Year > years[j].Year })

	return &AvailableYears{Years: years, TotalYears: len(years)}, nil
}

// fetchAll pages through the store until a short or empty page.
func (s *Service) fetchAll(ctx context.Context, f store.Filters) ([]store.AccidentRecord, error) {
	var all []store.AccidentRecord
	offset := 0
	for {
		page, _, err := s.store.GetEvents(ctx, f, s.pageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		if len(page) < s.pageSize {
			break
		}
		offset += s.pageSize
	}
	return all, nil
}

func buildFilters(q Query) (store.Filters, error) {
	startDate, endDate := corpusStart, corpusEnd
	if q.DateRange != "all" {
		year, err := strconv.Atoi(q.DateRange)
		if err != nil {
			return store.Filters{}, fmt.Errorf("invalid date_range %q", q.DateRange)
		}
		startDate = fmt.Sprintf("%d-01-01", year)
		if year == partialYear {
			endDate = fmt.Sprintf("%d-08-31", year)
		} else {
			endDate = fmt.Sprintf("%d-12-31", year)
		}
	}

	from, _ := time.Parse("2006-01-02", startDate)
	to, _ := time.Parse("2006-01-02", endDate)
	// The end date is inclusive.
	to = to.Add(24*time.Hour - time.Nanosecond)

	f := store.Filters{From: from, To: to}
	if q.Province != "all" {
		f.Province = q.Province
	}
	return f, nil
}

// skipForCasualtyType applies the casualty filter during aggregation.
// The store query stays casualty-agnostic so one fetch can serve every
// casualty view of the same date and province window.
func skipForCasualtyType(casualtyType string, fatal, serious, minor int) bool {
	switch casualtyType {
	case "fatal":
		return fatal == 0
	case "serious":
		return serious == 0
	case "minor":
		return minor == 0
	case "survivors":
		return fatal > 0
	default:
		return false
	}
}

func aggregate(events []store.AccidentRecord, casualtyType string) *Stats {
	var (
		totalAccidents int
		totalFatal     int
		totalSerious   int
		totalMinor     int

		eventTypeCounts    = map[string]int{}
		weatherCounts      = map[string]int{}
		causeCounts        = map[string]int{}
		provinceCounts     = map[string]int{}
		provinceCasualties = map[string]*ProvinceDetail{}
		monthlyCounts      = map[string]int{}
		dailyByMonth       = map[string]map[string]int{}
		yearlyCounts       = map[string]int{}
		monthOfYearCounts  = map[string]int{}
		weekdayCounts      [7]int
		hourlyCounts       [24]int
	)

	allEvents := make([]EventDetail, 0, len(events))
	for _, e := range events {
		allEvents = append(allEvents, EventDetail{
			Vehicle:       e.Vehicle,
			Weather:       e.Weather,
			PresumedCause: e.PresumedCause,
			AccidentType:  e.AccidentType,
			Province:      e.Province,
			Fatal:         e.Fatalities,
			Serious:       e.SeriousInjured,
			Minor:         e.MinorInjured,
		})

		if skipForCasualtyType(casualtyType, e.Fatalities, e.SeriousInjured, e.MinorInjured) {
			continue
		}

		totalAccidents++
		totalFatal += e.Fatalities
		totalSerious += e.SeriousInjured
		totalMinor += e.MinorInjured

		eventType := e.AccidentType
		if eventType == "" {
			eventType = "other"
		}
		eventTypeCounts[eventType]++

		weather := e.Weather
		if weather == "" {
			weather = "unknown"
		}
		weatherCounts[weather]++

		if e.PresumedCause != "" {
			causeCounts[e.PresumedCause]++
		}

		prov := e.Province
		if prov == "" {
			prov = "Unknown"
		}
		provinceCounts[prov]++
		pc, ok := provinceCasualties[prov]
		if !ok {
			pc = &ProvinceDetail{Province: prov}
			provinceCasualties[prov] = pc
		}
		pc.Fatal += e.Fatalities
		pc.Serious += e.SeriousInjured
		pc.Minor += e.MinorInjured

		t := e.DateTime
		if t.IsZero() {
			continue
		}
		yearlyCounts[strconv.Itoa(t.Year())]++
		monthKey := t.Format("2006-01")
		monthlyCounts[monthKey]++
		monthOfYearCounts[t.Format("01")]++
		if dailyByMonth[monthKey] == nil {
			dailyByMonth[monthKey] = map[string]int{}
		}
		dailyByMonth[monthKey][t.Format("2006-01-02")]++
		weekdayCounts[mondayIndexed(t.Weekday())]++
		hourlyCounts[t.Hour()]++
	}

	highRisk := 0
	for _, c := range provinceCounts {
		if c > 100 {
			highRisk++
		}
	}
	survivors := totalAccidents - totalFatal

	stats := &Stats{
		Summary: Summary{
			TotalAccidents:  totalAccidents,
			MinorInjuries:   totalMinor,
			SeriousInjuries: totalSerious,
			Fatalities:      totalFatal,
			Survivors:       survivors,
			HighRiskAreas:   highRisk,
		},
		AllEvents: allEvents,
		Severity: []SeveritySlice{
			{Name: "survivors", Value: survivors, Color: "#10b981"},
			{Name: "minor_injury", Value: totalMinor, Color: "#EAB308"},
			{Name: "serious_injury", Value: totalSerious, Color: "#f59e0b"},
			{Name: "fatal", Value: totalFatal, Color: "#ef4444"},
		},
		EventTypes:     topEventTypes(eventTypeCounts, 20),
		WeatherData:    weatherList(weatherCounts),
		AccidentCauses: topCauses(causeCounts, 10),
		TopProvinces:   topProvinces(provinceCounts, 10),
		AllProvinces:   allProvinces(provinceCounts, provinceCasualties),
		MonthlyTrend:   monthlyTrend(monthlyCounts, dailyByMonth),
		HourlyPattern:  make([]HourCount, 24),
		DailyPattern:   make([]DayCount, 7),
		YearlySummary:  yearlySummary(yearlyCounts),
		MonthlySummary: make([]MonthSummary, 12),
		WeekdaySummary: make([]WeekdaySummary, 7),
	}

	for i := 0; i < 24; i++ {
		stats.HourlyPattern[i] = HourCount{Hour: i, Count: hourlyCounts[i]}
	}
	for i := 0; i < 7; i++ {
		stats.DailyPattern[i] = DayCount{Day: shortDays[i], Count: weekdayCounts[i]}
		stats.WeekdaySummary[i] = WeekdaySummary{Day: shortDays[i], DayName: longDays[i], Count: weekdayCounts[i]}
	}
	for i := 0; i < 12; i++ {
		key := fmt.Sprintf("%02d", i+1)
		stats.MonthlySummary[i] = MonthSummary{Month: key, MonthName: monthNames[i], Count: monthOfYearCounts[key]}
	}
	return stats
}

// mondayIndexed converts Go's Sunday-first weekday to Monday=0.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func topEventTypes(counts map[string]int, limit int) []EventTypeCount {
	out := make([]EventTypeCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, EventTypeCount{Type: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func weatherList(counts map[string]int) []WeatherCount {
	out := make([]WeatherCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, WeatherCount{Weather: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Weather < out[j].Weather
	})
	return out
}

func topCauses(counts map[string]int, limit int) []CauseCount {
	out := make([]CauseCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, CauseCount{Cause: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Cause < out[j].Cause
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func topProvinces(counts map[string]int, limit int) []ProvinceCount {
	out := make([]ProvinceCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, ProvinceCount{Province: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Province < out[j].Province
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func allProvinces(counts map[string]int, casualties map[string]*ProvinceDetail) []ProvinceDetail {
	out := make([]ProvinceDetail, 0, len(counts))
	for prov, count := range counts {
		d := casualties[prov]
		out = append(out, ProvinceDetail{
			Province:  prov,
			Count:     count,
			Fatal:     d.Fatal,
			Serious:   d.Serious,
			Minor:     d.Minor,
			Survivors: count - d.Fatal,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Province < out[j].Province
	})
	return out
}

func monthlyTrend(monthly map[string]int, dailyByMonth map[string]map[string]int) []MonthTrend {
	months := make([]string, 0, len(monthly))
	for m := range monthly {
		months = append(months, m)
	}
	sort.Strings(months)

	out := make([]MonthTrend, 0, len(months))
	for _, m := range months {
		days := make([]string, 0, len(dailyByMonth[m]))
		for d := range dailyByMonth[m] {
			days = append(days, d)
		}
		sort.Strings(days)
		daily := make([]DailyCount, 0, len(days))
		for _, d := range days {
			daily = append(daily, DailyCount{Date: d, Count: dailyByMonth[m][d]})
		}
		out = append(out, MonthTrend{Month: m, Count: monthly[m], Daily: daily})
	}
	return out
}

func yearlySummary(counts map[string]int) []YearCount {
	years := make([]string, 0, len(counts))
	for y := range counts {
		years = append(years, y)
	}
	sort.Strings(years)
	out := make([]YearCount, 0, len(years))
	for _, y := range years {
		out = append(out, YearCount{Year: y, Count: counts[y]})
	}
	return out
}
