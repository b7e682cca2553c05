package feature

// Names is the ordered feature list the severity model was trained on.
// The order is part of the classifier contract: vectors are emitted in
// exactly this order and must never be reordered.
var Names = []string{
	"KM", "LATITUDE", "LONGITUDE", "hour", "temperature", "dewpoint", "humidity",
	"wind_speed", "wind_direction", "pressure", "cloud_cover", "year", "month",
	"day", "dayofweek", "quarter", "is_weekend", "is_monday", "is_friday",
	"is_saturday", "is_sunday", "is_night", "is_rush_hour", "is_peak_hour",
	"is_festival_month", "is_songkran", "is_newyear_month", "is_hot_season",
	"is_rainy_season", "is_cool_season", "is_clear", "is_rainy", "is_foggy",
	"is_poor_visibility", "is_bangkok", "is_chonburi", "is_nakhon_ratchasima",
	"is_chiang_mai", "is_top20_province", "is_top10_province", "is_motorcycle",
	"is_pickup", "is_sedan", "is_truck", "is_bus", "is_commercial_vehicle",
	"is_rollover", "is_rear_end", "is_head_on", "is_single_vehicle",
	"is_speeding", "is_drowsy", "is_dui", "is_reckless", "is_traffic_violation",
	"is_inexperienced", "is_vehicle_defect", "is_road_condition", "is_human_error",
	"is_highway", "is_local_road", "is_rural_road", "hour_sin", "hour_cos",
	"dayofweek_sin", "dayofweek_cos", "month_sin", "month_cos", "day_sin",
	"day_cos", "hour_risk_score", "day_risk_score", "month_risk_score",
	"province_risk_score", "weather_risk_score", "vehicle_risk_score",
	"cause_risk_score", "rain_rush_hour", "friday_evening", "weekend_night",
	"saturday_night", "songkran_daytime", "songkran_period", "fog_morning",
	"weekday_morning_rush", "weekday_evening_rush", "bangkok_rush",
	"day_hour_risk", "weather_hour_risk", "month_hour_risk",
	"motorcycle_chiang_mai", "motorcycle_rain", "motorcycle_night",
	"speeding_highway", "dui_weekend_night", "drowsy_highway",
	"human_error_rush", "rural_night", "commercial_highway", "festival_weekend",
	"rain_night", "overall_risk_score", "is_early_morning", "is_late_evening",
	"is_midnight", "is_month_start", "is_month_end", "is_post_covid",
	"years_since_2019", "is_q1", "is_q2", "is_q3", "is_q4",
}

// Count is the fixed vector length expected by the model artifact.
var Count = len(Names)
