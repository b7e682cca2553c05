package feature

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"roadrisk/internal/metrics"
)

// rule pairs a name predicate with a value function. The builder walks the
// rule table top to bottom and the first matching rule wins; the ordering is
// load-bearing because several predicates use overlapping substrings
// ("morning_rush" must be tested before the bare "morning" band).
type rule struct {
	match func(name, lower string) bool
	value func(c Context, lower string, now time.Time) float64
}

// Builder maps a Context onto the fixed-order feature vector.
type Builder struct {
	names []string
	rules []rule
	now   func() time.Time

	log zerolog.Logger

	// one data-quality log line per unique unmapped name
	seenUnmapped sync.Map
}

// NewBuilder returns a builder over the canonical feature list.
func NewBuilder() *Builder {
	return &Builder{
		names: Names,
		rules: defaultRules(),
		now:   time.Now,
		log:   log.With().Str("component", "feature-builder").Logger(),
	}
}

// WithClock overrides the wall-clock source. The current day-of-month and
// year features are sourced from the clock rather than the request; that
// coupling is part of the model contract and is kept intentionally.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Len reports the fixed vector length.
func (b *Builder) Len() int { return len(b.names) }

// Vector builds the feature vector for a single context. Every declared
// name resolves to a value; names no rule covers default to 0 and are
// counted as a data-quality signal, never surfaced as an error.
func (b *Builder) Vector(c Context) []float64 {
	now := b.now()
	out := make([]float64, len(b.names))
	for i, name := range b.names {
		lower := strings.ToLower(name)
		matched := false
		for _, r := range b.rules {
			if r.match(name, lower) {
				out[i] = r.value(c, lower, now)
				matched = true
				break
			}
		}
		if !matched {
			metrics.UnmappedFeaturesTotal.Inc()
			if _, logged := b.seenUnmapped.LoadOrStore(name, struct{}{}); !logged {
				b.log.Debug().Str("feature", name).Msg("feature name has no mapping rule, defaulting to 0")
			}
		}
	}
	return out
}

// Matrix builds one row per context for a vectorized classifier call.
func (b *Builder) Matrix(cs []Context) [][]float64 {
	rows := make([][]float64, len(cs))
	for i, c := range cs {
		rows[i] = b.Vector(c)
	}
	return rows
}

func eq(want string) func(name, lower string) bool {
	return func(name, _ string) bool { return name == want }
}

func anyEq(want ...string) func(name, lower string) bool {
	return func(name, _ string) bool {
		for _, w := range want {
			if name == w {
				return true
			}
		}
		return false
	}
}

func hasAll(subs ...string) func(name, lower string) bool {
	return func(_, lower string) bool {
		for _, s := range subs {
			if !strings.Contains(lower, s) {
				return false
			}
		}
		return true
	}
}

func b2f(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

func isRush(hour int) bool {
	return (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19)
}

// vehicleFlags are the one-hot vehicle-type features in the declared list.
var vehicleFlags = map[string]bool{
	"is_motorcycle":         true,
	"is_pickup":             true,
	"is_sedan":              true,
	"is_truck":              true,
	"is_bus":                true,
	"is_commercial_vehicle": true,
}

func defaultRules() []rule {
	return []rule{
		// Location pass-through
		{eq("LATITUDE"), func(c Context, _ string, _ time.Time) float64 { return c.Latitude }},
		{eq("LONGITUDE"), func(c Context, _ string, _ time.Time) float64 { return c.Longitude }},
		{eq("KM"), zero},

		// Calendar pass-through and derivations. day and year come from the
		// wall clock, not the request: the model was trained that way.
		{eq("hour"), func(c Context, _ string, _ time.Time) float64 { return float64(c.Hour) }},
		{eq("month"), func(c Context, _ string, _ time.Time) float64 { return float64(c.Month) }},
		{eq("day"), func(_ Context, _ string, now time.Time) float64 { return float64(now.Day()) }},
		{eq("year"), func(_ Context, _ string, now time.Time) float64 { return float64(now.Year()) }},
		{anyEq("dayofweek", "day_of_week"), func(c Context, _ string, _ time.Time) float64 { return float64(c.DayOfWeek) }},
		{eq("quarter"), func(c Context, _ string, _ time.Time) float64 { return float64((c.Month-1)/3 + 1) }},

		{eq("is_weekend"), dow(func(d int) bool { return d >= 5 })},
		{eq("is_monday"), dow(func(d int) bool { return d == 0 })},
		{eq("is_tuesday"), dow(func(d int) bool { return d == 1 })},
		{eq("is_wednesday"), dow(func(d int) bool { return d == 2 })},
		{eq("is_thursday"), dow(func(d int) bool { return d == 3 })},
		{eq("is_friday"), dow(func(d int) bool { return d == 4 })},
		{eq("is_saturday"), dow(func(d int) bool { return d == 5 })},
		{eq("is_sunday"), dow(func(d int) bool { return d == 6 })},

		// The specific rush-hour flag must be resolved before the generic
		// time-of-day band rules below.
		{eq("is_rush_hour"), hour(isRush)},
		{hasAll("morning_rush"), hour(func(h int) bool { return h >= 6 && h < 9 })},
		{hasAll("evening_rush"), hour(func(h int) bool { return h >= 17 && h < 20 })},
		{hasAll("night", "is_"), hour(func(h int) bool { return h >= 22 || h < 6 })},
		{hasAll("lunch"), hour(func(h int) bool { return h >= 12 && h < 14 })},
		{hasAll("afternoon"), hour(func(h int) bool { return h >= 14 && h < 17 })},
		{func(_, lower string) bool { return strings.Contains(lower, "morning") && !strings.Contains(lower, "rush") },
			hour(func(h int) bool { return h >= 9 && h < 12 })},
		{func(_, lower string) bool { return strings.Contains(lower, "evening") && !strings.Contains(lower, "rush") },
			hour(func(h int) bool { return h >= 20 && h < 23 })},

		// Weather numerics: request-backed where available, climatological
		// defaults otherwise.
		{eq("temperature"), func(c Context, _ string, _ time.Time) float64 { return c.Temperature }},
		{eq("dewpoint"), func(c Context, _ string, _ time.Time) float64 { return c.Temperature - (100-70)/5.0 }},
		{eq("humidity"), constant(70.0)},
		{eq("wind_speed"), constant(5.0)},
		{eq("wind_direction"), constant(180.0)},
		{eq("pressure"), constant(1013.25)},
		{eq("cloud_cover"), zero},
		{func(name, lower string) bool { return strings.Contains(lower, "precipitation") || name == "rain" },
			func(c Context, _ string, _ time.Time) float64 { return c.Rainfall }},

		// Weather condition flags
		{func(_, lower string) bool { return strings.Contains(lower, "raining") || strings.Contains(lower, "is_rain") },
			func(c Context, _ string, _ time.Time) float64 { return b2f(c.Rainfall > 0) }},
		{hasAll("clear", "is_"), func(c Context, _ string, _ time.Time) float64 { return b2f(c.Rainfall == 0) }},
		{hasAll("hot", "is_"), func(c Context, _ string, _ time.Time) float64 { return b2f(c.Temperature > 35) }},
		{hasAll("humid", "is_"), constant(1)},
		{hasAll("windy", "is_"), zero},

		// Cyclic encodings, periods 24/7/12/31
		{eq("hour_sin"), func(c Context, _ string, _ time.Time) float64 { return math.Sin(2 * math.Pi * float64(c.Hour) / 24) }},
		{eq("hour_cos"), func(c Context, _ string, _ time.Time) float64 { return math.Cos(2 * math.Pi * float64(c.Hour) / 24) }},
		{eq("dayofweek_sin"), func(c Context, _ string, _ time.Time) float64 { return math.Sin(2 * math.Pi * float64(c.DayOfWeek) / 7) }},
		{eq("dayofweek_cos"), func(c Context, _ string, _ time.Time) float64 { return math.Cos(2 * math.Pi * float64(c.DayOfWeek) / 7) }},
		{eq("month_sin"), func(c Context, _ string, _ time.Time) float64 { return math.Sin(2 * math.Pi * float64(c.Month) / 12) }},
		{eq("month_cos"), func(c Context, _ string, _ time.Time) float64 { return math.Cos(2 * math.Pi * float64(c.Month) / 12) }},
		{eq("day_sin"), func(_ Context, _ string, now time.Time) float64 { return math.Sin(2 * math.Pi * float64(now.Day()) / 31) }},
		{eq("day_cos"), func(_ Context, _ string, now time.Time) float64 { return math.Cos(2 * math.Pi * float64(now.Day()) / 31) }},

		// Banded composite risk sub-scores
		{eq("hour_risk_score"), func(c Context, _ string, _ time.Time) float64 {
			switch {
			case c.Hour >= 17 && c.Hour <= 19:
				return 80
			case c.Hour >= 7 && c.Hour <= 9:
				return 70
			case c.Hour >= 22 || c.Hour <= 5:
				return 75
			default:
				return 40
			}
		}},
		{eq("day_risk_score"), func(c Context, _ string, _ time.Time) float64 {
			switch c.DayOfWeek {
			case 5: // Saturday
				return 70
			case 4: // Friday
				return 75
			case 6: // Sunday
				return 65
			default:
				return 50
			}
		}},
		{eq("month_risk_score"), func(c Context, _ string, _ time.Time) float64 {
			switch {
			case c.Month == 4: // Songkran
				return 90
			case c.Month == 12 || c.Month == 1: // New Year
				return 80
			default:
				return 50
			}
		}},
		{eq("weather_risk_score"), func(c Context, _ string, _ time.Time) float64 {
			switch {
			case c.Rainfall > 10:
				return 85
			case c.Rainfall > 5:
				return 70
			case c.Rainfall > 0:
				return 60
			default:
				return 30
			}
		}},
		{eq("overall_risk_score"), func(c Context, _ string, _ time.Time) float64 {
			base := 50.0
			if c.Rainfall > 5 {
				base += 15
			}
			if c.Hour >= 22 || c.Hour <= 5 {
				base += 10
			}
			if c.DayOfWeek == 4 || c.DayOfWeek == 5 {
				base += 10
			}
			return math.Min(100, base)
		}},

		// Pairwise interaction flags
		{eq("rain_rush_hour"), func(c Context, _ string, _ time.Time) float64 {
			return b2f(c.Rainfall > 0 && isRush(c.Hour))
		}},
		{eq("friday_evening"), func(c Context, _ string, _ time.Time) float64 {
			return b2f(c.DayOfWeek == 4 && c.Hour >= 17 && c.Hour <= 23)
		}},
		{eq("weekend_night"), func(c Context, _ string, _ time.Time) float64 {
			return b2f(c.DayOfWeek >= 5 && (c.Hour >= 20 || c.Hour <= 5))
		}},
		{eq("saturday_night"), func(c Context, _ string, _ time.Time) float64 {
			return b2f(c.DayOfWeek == 5 && c.Hour >= 20)
		}},
		{eq("rain_night"), func(c Context, _ string, _ time.Time) float64 {
			return b2f(c.Rainfall > 0 && (c.Hour >= 20 || c.Hour <= 5))
		}},

		// Vehicle one-hot flags: 1 when the requested type appears in the
		// feature name, 0 for every other vehicle flag.
		{func(name, lower string) bool { return strings.Contains(lower, "vehicle_type") || vehicleFlags[name] },
			func(c Context, lower string, _ time.Time) float64 {
				vehicle := strings.ToLower(c.VehicleType)
				if vehicle == "" {
					vehicle = "car"
				}
				return b2f(strings.Contains(lower, vehicle))
			}},

		// Cause/region/encoded placeholders are not derivable from a
		// request context; they are always zero.
		{func(_, lower string) bool {
			return strings.Contains(lower, "cause") || strings.Contains(lower, "region") || strings.Contains(lower, "encoded")
		}, zero},
	}
}

func zero(Context, string, time.Time) float64 { return 0 }

func constant(v float64) func(Context, string, time.Time) float64 {
	return func(Context, string, time.Time) float64 { return v }
}

func dow(pred func(int) bool) func(Context, string, time.Time) float64 {
	return func(c Context, _ string, _ time.Time) float64 { return b2f(pred(c.DayOfWeek)) }
}

func hour(pred func(int) bool) func(Context, string, time.Time) float64 {
	return func(c Context, _ string, _ time.Time) float64 { return b2f(pred(c.Hour)) }
}
