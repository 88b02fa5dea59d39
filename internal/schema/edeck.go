package schema

import (
	"slices"

	"github.com/couchcryptid/tctrack/internal/column"
)

// E-deck (probability) format.
const (
	EDeck             = "edeck"
	ProbabilityRecord = "probability"
)

// ProbabilityKeys is the natural key of e-deck records.
var ProbabilityKeys = []string{"basin", "number", "datetime", "format", "tech", "tau", "probitem"}

var probFormats = map[string]string{
	"TR": "track",
	"03": "track",
	"IN": "intensity",
	"PR": "pressure",
	"RI": "rapid_intensification",
	"RW": "rapid_weakening",
	"WR": "wind_radii",
	"GN": "genesis",
	"GS": "genesis_shape",
	"ER": "eyewall_replacement",
}

func init() {
	builtins = append(builtins, declareProbabilityDeck)
}

func declareProbabilityDeck(r *Registry) error {
	intensityChange := func(prefix string) []Field {
		return positional(9,
			at("probitem", atcfNum()),
			at("v", atcfNum()),
			at("initials", str()),
			at(prefix+"_start_tau", atcfNum()),
			at(prefix+"_stop_tau", atcfNum()),
		)
	}
	intensity := func() []Field {
		return positional(9,
			at("probitem", atcfNum()),
			at("ty", cat(developmentLevels...)),
			at("half_range", atcfNum()),
		)
	}

	return register(r,
		Format{
			Name:           EDeck,
			RecordType:     ProbabilityRecord,
			Keys:           ProbabilityKeys,
			Discriminators: []string{"3"},
			Variants:       probFormats,
		},
		probSchema("track", positional(9,
			at("probitem", atcfNum()),
			at("ty", cat(developmentLevels...)),
			at("dir", atcfNum()),
			at("windcode", cat(radiusCodes...)),
			at("rad_cross", atcfNum()),
			at("rad_along", atcfNum()),
			at("bias_cross", atcfNum()),
			at("bias_along", atcfNum()),
		)),
		probSchema("intensity", intensity()),
		probSchema("pressure", intensity()),
		probSchema("rapid_intensification", intensityChange("ri")),
		probSchema("rapid_weakening", intensityChange("rw")),
		probSchema("eyewall_replacement", intensityChange("er")),
		probSchema("wind_radii", positional(9,
			at("probitem", atcfNum()),
			at("threshold", atcfNum()),
			at("half_range", atcfNum()),
		)),
		probSchema("genesis", positional(9,
			at("probitem", atcfNum()),
			at("initials", str()),
			at("gen_or_dis", cat("invest", "genFcst", "genesis", "disFcst", "dissipate")),
			at("event_time", column.Datetime("200601021504")),
			at("storm_id", str()),
			at("min", atcfNum()),
			at("genesis_num", atcfNum()),
			at("undefined", str()),
		)),
		probSchema("genesis_shape", positional(9,
			at("probitem", atcfNum()),
			at("initials", str()),
			at("tcfa_manop_dtg", column.Datetime("021504")),
			at("tcfa_msg_dtg", column.Datetime("0601021504")),
			at("tcfa_wt_num", atcfNum()),
			at("shape_type", cat("ELP", "BOX", "CIR", "PLY")),
			at("ellipse_angle", atcfNum()),
			at("ellipse_r_cross", atcfNum()),
			at("ellipse_r_along", atcfNum()),
			at("box1_lat", atcfLat(0.1)),
			at("box1_lon", atcfLon(0.1)),
			at("box2_lat", atcfLat(0.1)),
			at("box2_lon", atcfLon(0.1)),
			at("tcfa_radius", atcfNum()),
			at("polygon_pts", str()),
		)),
	)
}

func probSchema(variant string, extra []Field) *Schema {
	codes := make([]string, 0, len(probFormats))
	for code := range probFormats {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	validtime := composite("validtime", validTime, "2", "5")
	common := []Field{
		key("basin", "0", cat(basins...)),
		key("number", "1", atcfNum()),
		key("datetime", "2", column.Datetime("2006010215")),
		key("format", "3", cat(codes...)),
		key("tech", "4", cat()),
		key("tau", "5", atcfNum()),
		validtime,
		fld("lat", "6", atcfLat(0.1)),
		fld("lon", "7", atcfLon(0.1)),
		fld("prob", "8", atcfNum()),
	}
	// The probability item distinguishes lines sharing a tau.
	for i := range extra {
		if extra[i].Name == "probitem" {
			extra[i].Identity = true
		}
	}
	return &Schema{
		Format:     EDeck,
		RecordType: ProbabilityRecord,
		Variant:    variant,
		Fields:     slices.Concat(common, extra),
	}
}
