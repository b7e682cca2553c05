package feature

// Context is the immutable per-request input the feature vector is built
// from. Optional fields carry the documented defaults; callers decode wire
// requests into a Context via Defaults() plus overrides.
type Context struct {
	// Location
	Latitude  float64
	Longitude float64

	// Time
	Hour      int // 0-23
	DayOfWeek int // 0=Monday .. 6=Sunday
	Month     int // 1-12

	// Weather
	Temperature      float64
	Rainfall         float64 // mm
	WeatherCondition string  // clear, rain, fog
	Humidity         float64

	// Traffic
	TrafficDensity  float64 // 0-1
	AverageSpeed    float64 // km/h
	CongestionLevel string  // low, moderate, high

	// Road
	RoadType       string // highway, city, rural, local
	NumLanes       int
	HasStreetLight bool

	// Historical accidents within 10km of the location
	NearbyEventsCount int
	IsWeekend         bool
	IsRushHour        bool

	VehicleType string // car, motorcycle, truck, bus, bicycle, walk
}

// Defaults returns a Context with the documented optional-field defaults
// applied. Required fields (location, hour, day of week, month) stay zero.
func Defaults() Context {
	return Context{
		Temperature:      30.0,
		Rainfall:         0.0,
		WeatherCondition: "clear",
		Humidity:         70.0,
		TrafficDensity:   0.5,
		AverageSpeed:     60.0,
		CongestionLevel:  "moderate",
		RoadType:         "city",
		NumLanes:         2,
		HasStreetLight:   true,
		VehicleType:      "car",
	}
}
