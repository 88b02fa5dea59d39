package schema

import (
	"slices"
	"strconv"

	"github.com/couchcryptid/tctrack/internal/column"
)

// F-deck (fix) format.
const (
	FDeck     = "fdeck"
	FixRecord = "fix"
)

// FixKeys is the natural key of f-deck records.
var FixKeys = []string{"basin", "number", "datetime", "format", "type", "fix_identifier", "initials", "threshold", "sector"}

// fixFormats maps the f-deck format code onto its variant.
var fixFormats = map[string]string{
	"10": "dvts",
	"20": "dvto",
	"30": "microwave",
	"31": "microwave",
	"40": "radar",
	"50": "aircraft",
	"60": "dropsonde",
	"70": "analysis",
}

func init() {
	builtins = append(builtins, declareFixDeck)
}

func declareFixDeck(r *Registry) error {
	schemas := []*Schema{
		fixSchema("dvts", positional(32,
			at("dvts_sensor_type", str()),
			at("dvts_pcn_code", str()),
			at("dvts_dvorak_code_long", str()),
			at("dvts_dvorak_code_short", str()),
			at("dvts_ci_24hr_forecast", atcfNum()),
			at("satellite_type", str()),
			at("dvts_center_type", cat("CSC", "LLCC", "ULCC")),
			at("dvts_tropical_indicator", cat("S", "E", "T")),
			at("comments", str()),
		)),
		fixSchema("dvto", positional(32,
			at("dvto_sensor_type", str()),
			at("dvto_ci_num", atcfNum(column.WithScale(0.1))),
			at("dvto_ci_confidence", atcfNum()),
			at("dvto_t_num_mean", atcfNum(column.WithScale(0.1))),
			at("dvto_t_num_time_period", atcfNum()),
			at("dvto_t_num_derivation", cat("L", "T")),
			at("dvto_t_num_raw", atcfNum(column.WithScale(0.1))),
			at("dvto_temperature_eye", atcfNum()),
			at("dvto_temperature_cloud", atcfNum()),
			at("dvto_scene_type", str()),
			at("dvto_algorithm", str()),
			at("dvto_satellite_type", str()),
			at("dvto_tropical_indicator", cat("S", "E", "T")),
			at("comments", str()),
		)),
		fixSchema("microwave", slices.Concat(
			positional(32,
				at("microwave_rain_flagged", str()),
				at("microwave_rainrate", atcfNum()),
				at("microwave_process", str()),
				at("microwave_wave_height", atcfNum()),
				at("microwave_temp", atcfNum()),
				at("microwave_slp_raw", atcfNum()),
				at("microwave_slp_retrieved", atcfNum()),
				at("microwave_max_meas", atcfNum()),
				at("microwave_satellite", str()),
			),
			positional(59,
				at("microwave_radii_confidence", atcfNum()),
				at("comments", str()),
			),
		), radiiGroup("microwave_radii", "41", "42", 43, 8, 51)),
		fixSchema("radar", positional(32,
			at("radar_type", cat("L", "S", "A", "T")),
			at("radar_format", cat("R", "P", "D")),
			at("radob_code", str()),
			at("eye_shape", cat("CI", "EL", "CO")),
			at("radar_percent_of_eye_wall_observed", atcfNum()),
			at("radar_spiral_overlay", atcfNum()),
			at("radar_site_lat", atcfLat(0.01)),
			at("radar_site_lon", atcfLon(0.01)),
			at("radar_inbound_max_wind", atcfNum()),
			at("radar_inbound_max_wind_azimuth", atcfNum()),
			at("radar_inbound_max_wind_range", atcfNum()),
			at("radar_inbound_max_wind_elevation", atcfNum()),
			at("radar_outbound_max_wind", atcfNum()),
			at("radar_outbound_max_wind_azimuth", atcfNum()),
			at("radar_outbound_max_wind_range", atcfNum()),
			at("radar_outbound_max_wind_elevation", atcfNum()),
			at("radar_max_cloud_height", atcfNum()),
			at("radar_max_rain_accumulation", atcfNum(column.WithScale(0.01))),
			at("radar_max_rain_accumulation_hours", atcfNum()),
			at("radar_max_rain_accumulation_lat", atcfLat(0.01)),
			at("radar_max_rain_accumulation_lon", atcfLon(0.01)),
			at("comments", str()),
		)),
		fixSchema("aircraft", positional(32,
			at("aircraft_flight_level_100ft", atcfNum()),
			at("aircraft_flight_level_hpa", atcfNum()),
			at("aircraft_minimum_height", atcfNum()),
			at("aircraft_max_surface_wind_intensity", atcfNum()),
			at("aircraft_max_surface_wind_bearing", atcfNum()),
			at("aircraft_max_surface_wind_range", atcfNum()),
			at("aircraft_max_fl_wind_direction", atcfNum()),
			at("aircraft_max_fl_wind_intensity", atcfNum()),
			at("aircraft_max_fl_wind_bearing", atcfNum()),
			at("aircraft_max_fl_wind_range", atcfNum()),
			at("aircraft_mean_slp", atcfNum()),
			at("aircraft_temperature_outside_eye", atcfNum()),
			at("aircraft_temperature_inside_eye", atcfNum()),
			at("aircraft_dew_point_temperature", atcfNum()),
			at("aircraft_sea_surface_temperature", atcfNum()),
			at("aircraft_eye_character", str()),
			at("aircraft_shape", cat("CI", "EL", "CO")),
			at("aircraft_orientation", atcfNum()),
			at("aircraft_diameter", atcfNum()),
			at("aircraft_short_axis", atcfNum()),
			at("aircraft_navigational_accuracy", atcfNum(column.WithScale(0.1))),
			at("aircraft_meteorological_accuracy", atcfNum(column.WithScale(0.1))),
			at("aircraft_mission_number", str()),
			at("comments", str()),
		)),
		fixSchema("dropsonde", positional(32,
			at("drop_environment", cat("EYEWALL", "EYE", "RAINBAND", "MXWNDBND", "SYNOPTIC")),
			at("drop_height_of_midpoint", atcfNum()),
			at("drop_windspeed_150m", atcfNum()),
			at("drop_windspeed_500m", atcfNum()),
			at("comments", str()),
		)),
		fixSchema("analysis", positional(32,
			at("analysis_analyst", str()),
			at("analysis_start_time", column.Datetime("200601021504")),
			at("analysis_end_time", column.Datetime("200601021504")),
			at("analysis_distance_data", atcfNum()),
			at("analysis_sst", atcfNum()),
			at("analysis_sources", str()),
			at("comments", str()),
		)),
	}
	return register(r, Format{
		Name:           FDeck,
		RecordType:     FixRecord,
		Keys:           FixKeys,
		Discriminators: []string{"3"},
		Variants:       fixFormats,
	}, schemas...)
}

// fixSchema prepends the fields every f-deck line shares.
func fixSchema(variant string, extra []Field, groups ...Group) *Schema {
	fixCodes := make([]string, 0, len(fixFormats))
	for code := range fixFormats {
		fixCodes = append(fixCodes, code)
	}
	slices.Sort(fixCodes)

	common := []Field{
		key("basin", "0", cat(basins...)),
		key("number", "1", atcfNum()),
		key("datetime", "2", column.Datetime("200601021504")),
		key("format", "3", cat(fixCodes...)),
		key("type", "4", cat()),
		fld("center_intensity", "5", str()),
		fld("flag", "6", cat("C", "I", "R", "P", "F")),
		fld("lat", "7", atcfLat(0.01)),
		fld("lon", "8", atcfLon(0.01)),
		fld("height", "9", atcfNum()),
		fld("height_confidence", "10", atcfNum()),
		fld("vmax", "11", atcfNum()),
		fld("vmax_confidence", "12", atcfNum()),
		fld("mslp", "13", atcfNum()),
		fld("mslp_confidence", "14", atcfNum()),
		fld("mslp_derivation", "15", cat("DVRK", "AKHL", "XTRP", "MEAS")),
		fld("radii_confidence", "26", atcfNum()),
		fld("rmw", "27", atcfNum()),
		fld("eye", "28", atcfNum()),
		fld("subregion", "29", cat(subregions...)),
		// Optional identity: several agencies fix the same storm at once.
		{Name: "fix_identifier", Locators: []string{"30"}, Column: str(), Identity: true},
		{Name: "initials", Locators: []string{"31"}, Column: str(), Identity: true},
	}
	return &Schema{
		Format:     FDeck,
		RecordType: FixRecord,
		Variant:    variant,
		Fields:     slices.Concat(common, extra),
		Groups:     append([]Group{radiiGroup("radii", "16", "17", 18, 4, 22)}, groups...),
	}
}

// at declares a field whose locator is assigned by positional.
func at(name string, col column.Column) Field {
	return Field{Name: name, Column: col}
}

// positional numbers consecutive fields starting at first.
func positional(first int, fields ...Field) []Field {
	for i := range fields {
		fields[i].Locators = []string{strconv.Itoa(first + i)}
	}
	return fields
}
