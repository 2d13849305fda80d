package weather

import "sort"

// CatalogEntry describes one canonical parameter and its provider-side
// field name. Adding a provider means adding a field here plus an
// adapter; normalization and fetch-plan construction both read this.
type CatalogEntry struct {
	Unit        string
	Description string
	OpenMeteo   string
}

// ParamCatalog maps canonical parameter names to provider fields.
var ParamCatalog = map[string]CatalogEntry{
	// 2-meter level
	"date_time":            {Unit: "", Description: "Timestamp", OpenMeteo: "time"},
	"temperature":          {Unit: "°C", Description: "Air temperature (2 m)", OpenMeteo: "temperature_2m"},
	"relative_humidity":    {Unit: "%", Description: "Relative humidity (2 m)", OpenMeteo: "relative_humidity_2m"},
	"dew_point":            {Unit: "°C", Description: "Dew point (2 m)", OpenMeteo: "dew_point_2m"},
	"apparent_temperature": {Unit: "°C", Description: "Feels-like temperature", OpenMeteo: "apparent_temperature"},

	// Pressure
	"pressure_msl":     {Unit: "hPa", Description: "Sea-level pressure", OpenMeteo: "pressure_msl"},
	"surface_pressure": {Unit: "hPa", Description: "Surface pressure", OpenMeteo: "surface_pressure"},

	// Cloud cover
	"cloud_cover":      {Unit: "%", Description: "Total cloud cover", OpenMeteo: "cloud_cover"},
	"cloud_cover_low":  {Unit: "%", Description: "Low-level clouds", OpenMeteo: "cloud_cover_low"},
	"cloud_cover_mid":  {Unit: "%", Description: "Mid-level clouds", OpenMeteo: "cloud_cover_mid"},
	"cloud_cover_high": {Unit: "%", Description: "High-level clouds", OpenMeteo: "cloud_cover_high"},

	// Wind at 10/80/120/180 m
	"wind_speed_10m":      {Unit: "m/s", Description: "Wind speed 10 m", OpenMeteo: "wind_speed_10m"},
	"wind_speed_80m":      {Unit: "m/s", Description: "Wind speed 80 m", OpenMeteo: "wind_speed_80m"},
	"wind_speed_120m":     {Unit: "m/s", Description: "Wind speed 120 m", OpenMeteo: "wind_speed_120m"},
	"wind_speed_180m":     {Unit: "m/s", Description: "Wind speed 180 m", OpenMeteo: "wind_speed_180m"},
	"wind_direction_10m":  {Unit: "°", Description: "Wind direction 10 m", OpenMeteo: "wind_direction_10m"},
	"wind_direction_80m":  {Unit: "°", Description: "Wind direction 80 m", OpenMeteo: "wind_direction_80m"},
	"wind_direction_120m": {Unit: "°", Description: "Wind direction 120 m", OpenMeteo: "wind_direction_120m"},
	"wind_direction_180m": {Unit: "°", Description: "Wind direction 180 m", OpenMeteo: "wind_direction_180m"},
	"wind_gusts_10m":      {Unit: "m/s", Description: "Wind gusts 10 m", OpenMeteo: "wind_gusts_10m"},

	// Radiation and sunshine
	"shortwave_radiation":              {Unit: "W/m²", Description: "Global horizontal radiation", OpenMeteo: "shortwave_radiation"},
	"direct_radiation":                 {Unit: "W/m²", Description: "Direct radiation", OpenMeteo: "direct_radiation"},
	"direct_normal_irradiance":         {Unit: "W/m²", Description: "Direct normal irradiance", OpenMeteo: "direct_normal_irradiance"},
	"diffuse_radiation":                {Unit: "W/m²", Description: "Diffuse radiation", OpenMeteo: "diffuse_radiation"},
	"global_tilted_irradiance":         {Unit: "W/m²", Description: "Global tilted irradiance (mean)", OpenMeteo: "global_tilted_irradiance"},
	"global_tilted_irradiance_instant": {Unit: "W/m²", Description: "Global tilted irradiance (instant)", OpenMeteo: "global_tilted_irradiance_instant"},
	"sunshine_duration":                {Unit: "s", Description: "Sunshine duration", OpenMeteo: "sunshine_duration"},

	// Precipitation
	"precipitation":             {Unit: "mm", Description: "Total precipitation", OpenMeteo: "precipitation"},
	"rain":                      {Unit: "mm", Description: "Rain", OpenMeteo: "rain"},
	"showers":                   {Unit: "mm", Description: "Showers", OpenMeteo: "showers"},
	"snowfall":                  {Unit: "cm", Description: "Snowfall", OpenMeteo: "snowfall"},
	"precipitation_probability": {Unit: "%", Description: "Precipitation probability", OpenMeteo: "precipitation_probability"},
	"snow_depth":                {Unit: "m", Description: "Snow depth", OpenMeteo: "snow_depth"},
	"snowfall_height":           {Unit: "m", Description: "Snowfall height", OpenMeteo: "snowfall_height"},

	// Other instantaneous
	"freezing_level_height":      {Unit: "m", Description: "Freezing level height", OpenMeteo: "freezing_level_height"},
	"visibility":                 {Unit: "m", Description: "Visibility", OpenMeteo: "visibility"},
	"weather_code":               {Unit: "code", Description: "WMO weather code", OpenMeteo: "weather_code"},
	"vapour_pressure_deficit":    {Unit: "kPa", Description: "Vapour pressure deficit", OpenMeteo: "vapour_pressure_deficit"},
	"cape":                       {Unit: "J/kg", Description: "CAPE", OpenMeteo: "cape"},
	"evapotranspiration":         {Unit: "mm", Description: "Evapotranspiration", OpenMeteo: "evapotranspiration"},
	"et0_fao_evapotranspiration": {Unit: "mm", Description: "FAO reference ET₀", OpenMeteo: "et0_fao_evapotranspiration"},
	"lightning_potential":        {Unit: "J/kg", Description: "Lightning potential", OpenMeteo: "lightning_potential"},
	"is_day":                     {Unit: "", Description: "1 = day, 0 = night", OpenMeteo: "is_day"},

	// Soil
	"soil_temperature_0cm":     {Unit: "°C", Description: "Soil temperature 0 cm", OpenMeteo: "soil_temperature_0cm"},
	"soil_temperature_6cm":     {Unit: "°C", Description: "Soil temperature 6 cm", OpenMeteo: "soil_temperature_6cm"},
	"soil_temperature_18cm":    {Unit: "°C", Description: "Soil temperature 18 cm", OpenMeteo: "soil_temperature_18cm"},
	"soil_temperature_54cm":    {Unit: "°C", Description: "Soil temperature 54 cm", OpenMeteo: "soil_temperature_54cm"},
	"soil_moisture_0_to_1cm":   {Unit: "m³/m³", Description: "Soil moisture 0-1 cm", OpenMeteo: "soil_moisture_0_to_1cm"},
	"soil_moisture_1_to_3cm":   {Unit: "m³/m³", Description: "Soil moisture 1-3 cm", OpenMeteo: "soil_moisture_1_to_3cm"},
	"soil_moisture_3_to_9cm":   {Unit: "m³/m³", Description: "Soil moisture 3-9 cm", OpenMeteo: "soil_moisture_3_to_9cm"},
	"soil_moisture_9_to_27cm":  {Unit: "m³/m³", Description: "Soil moisture 9-27 cm", OpenMeteo: "soil_moisture_9_to_27cm"},
	"soil_moisture_27_to_81cm": {Unit: "m³/m³", Description: "Soil moisture 27-81 cm", OpenMeteo: "soil_moisture_27_to_81cm"},

	// Daily aggregates
	"temperature_max":                {Unit: "°C", Description: "Daily max temperature", OpenMeteo: "temperature_2m_max"},
	"temperature_mean":               {Unit: "°C", Description: "Daily mean temperature", OpenMeteo: "temperature_2m_mean"},
	"temperature_min":                {Unit: "°C", Description: "Daily min temperature", OpenMeteo: "temperature_2m_min"},
	"apparent_temperature_max":       {Unit: "°C", Description: "Daily max feels-like", OpenMeteo: "apparent_temperature_max"},
	"apparent_temperature_mean":      {Unit: "°C", Description: "Daily mean feels-like", OpenMeteo: "apparent_temperature_mean"},
	"apparent_temperature_min":       {Unit: "°C", Description: "Daily min feels-like", OpenMeteo: "apparent_temperature_min"},
	"precipitation_sum":              {Unit: "mm", Description: "Daily precipitation", OpenMeteo: "precipitation_sum"},
	"rain_sum":                       {Unit: "mm", Description: "Daily rain", OpenMeteo: "rain_sum"},
	"showers_sum":                    {Unit: "mm", Description: "Daily showers", OpenMeteo: "showers_sum"},
	"snowfall_sum":                   {Unit: "cm", Description: "Daily snowfall", OpenMeteo: "snowfall_sum"},
	"precipitation_hours":            {Unit: "h", Description: "Hours with precipitation", OpenMeteo: "precipitation_hours"},
	"precipitation_probability_max":  {Unit: "%", Description: "Max precipitation probability", OpenMeteo: "precipitation_probability_max"},
	"precipitation_probability_mean": {Unit: "%", Description: "Mean precipitation probability", OpenMeteo: "precipitation_probability_mean"},
	"precipitation_probability_min":  {Unit: "%", Description: "Min precipitation probability", OpenMeteo: "precipitation_probability_min"},
	"sunrise":                        {Unit: "iso", Description: "Sunrise", OpenMeteo: "sunrise"},
	"sunset":                         {Unit: "iso", Description: "Sunset", OpenMeteo: "sunset"},
	"daylight_duration":              {Unit: "s", Description: "Daylight duration", OpenMeteo: "daylight_duration"},
	"uv_index_max":                   {Unit: "", Description: "Max UV index", OpenMeteo: "uv_index_max"},
	"uv_index_clear_sky_max":         {Unit: "", Description: "Max clear-sky UV index", OpenMeteo: "uv_index_clear_sky_max"},
	"wind_speed_10m_max":             {Unit: "m/s", Description: "Max wind speed 10 m", OpenMeteo: "wind_speed_10m_max"},
	"wind_gusts_10m_max":             {Unit: "m/s", Description: "Max wind gusts 10 m", OpenMeteo: "wind_gusts_10m_max"},
	"wind_direction_10m_dominant":    {Unit: "°", Description: "Dominant wind direction", OpenMeteo: "wind_direction_10m_dominant"},
	"shortwave_radiation_sum":        {Unit: "MJ/m²", Description: "Daily radiation sum", OpenMeteo: "shortwave_radiation_sum"},
	"et0_fao_evapotranspiration_sum": {Unit: "mm", Description: "Daily FAO ET₀ sum", OpenMeteo: "et0_fao_evapotranspiration"},
}

// dailyCanonical is the set of canonical parameters fetched from the
// daily section.
var dailyCanonical = map[string]bool{
	"temperature_max": true, "temperature_mean": true, "temperature_min": true,
	"apparent_temperature_max": true, "apparent_temperature_mean": true, "apparent_temperature_min": true,
	"precipitation_sum": true, "rain_sum": true, "showers_sum": true, "snowfall_sum": true,
	"precipitation_hours":           true,
	"precipitation_probability_max": true, "precipitation_probability_mean": true, "precipitation_probability_min": true,
	"sunrise": true, "sunset": true, "daylight_duration": true,
	"uv_index_max": true, "uv_index_clear_sky_max": true,
	"wind_speed_10m_max": true, "wind_gusts_10m_max": true, "wind_direction_10m_dominant": true,
	"shortwave_radiation_sum":        true,
	"et0_fao_evapotranspiration_sum": true,
}

// minutely15Canonical is the set fetched from the minutely_15 section.
var minutely15Canonical = map[string]bool{
	"temperature": true, "relative_humidity": true, "dew_point": true, "apparent_temperature": true,
	"wind_speed_10m": true, "wind_speed_80m": true,
	"wind_direction_10m": true, "wind_direction_80m": true,
	"wind_gusts_10m": true,
	"precipitation":  true, "rain": true, "showers": true, "snowfall": true, "snowfall_height": true,
	"visibility": true, "cape": true, "lightning_potential": true, "is_day": true, "weather_code": true,
	"shortwave_radiation": true, "direct_radiation": true, "diffuse_radiation": true,
	"direct_normal_irradiance": true, "global_tilted_irradiance": true,
	"global_tilted_irradiance_instant": true,
	"sunshine_duration":                true,
}

// CanonicalParams returns the sorted canonical parameter names for one
// granularity. Hourly is everything mapped for Open-Meteo that is
// neither a daily aggregate nor the timestamp itself.
func CanonicalParams(granularity Granularity) []string {
	var names []string
	switch granularity {
	case GranularityDaily:
		for name := range dailyCanonical {
			names = append(names, name)
		}
	case GranularityMinutely15:
		for name := range minutely15Canonical {
			names = append(names, name)
		}
	case GranularityHourly:
		for name, entry := range ParamCatalog {
			if entry.OpenMeteo == "" || dailyCanonical[name] || name == "date_time" {
				continue
			}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// OpenMeteoParams converts canonical names to deduplicated Open-Meteo
// field names, preserving order. Names without a mapping are dropped.
func OpenMeteoParams(canonical []string) []string {
	seen := make(map[string]bool, len(canonical))
	var fields []string
	for _, name := range canonical {
		entry, ok := ParamCatalog[name]
		if !ok || entry.OpenMeteo == "" {
			continue
		}
		if seen[entry.OpenMeteo] {
			continue
		}
		seen[entry.OpenMeteo] = true
		fields = append(fields, entry.OpenMeteo)
	}
	return fields
}

// CanonicalForOpenMeteo resolves a provider field back to its canonical
// name. Ambiguous mappings resolve to the lexicographically smallest
// canonical name so normalization stays deterministic.
func CanonicalForOpenMeteo(field string) (string, bool) {
	name, ok := openMeteoToCanonical[field]
	return name, ok
}

var openMeteoToCanonical = func() map[string]string {
	reverse := make(map[string]string, len(ParamCatalog))
	for name, entry := range ParamCatalog {
		if entry.OpenMeteo == "" {
			continue
		}
		if existing, ok := reverse[entry.OpenMeteo]; ok && existing < name {
			continue
		}
		reverse[entry.OpenMeteo] = name
	}
	return reverse
}()
