package schema

import (
	"time"

	"github.com/couchcryptid/tctrack/internal/column"
	"github.com/couchcryptid/tctrack/internal/domain"
	"github.com/couchcryptid/tctrack/internal/units"
)

// CXML format. Locators are slash paths relative to the fix element; "@x"
// names an attribute, "//a/b" matches the first descendant path ending in
// a/b, and "disturbance/", "data/" and "header/" reach the enclosing
// elements.
const (
	CXML = "cxml"
)

// CXMLKeys is the natural key of CXML records.
var CXMLKeys = []string{"storm_id", "tech", "member", "source", "datetime", "tau", "threshold", "sector"}

var cxmlVariants = map[string]string{
	"satellite":        "observed",
	"aircraft":         "observed",
	"radar":            "observed",
	"synoptic":         "observed",
	"manual":           "observed",
	"analysis":         "analysis",
	"forecast":         "forecast",
	"ensembleForecast": "forecast",
}

func init() {
	builtins = append(builtins, declareCXML)
}

func declareCXML(r *Registry) error {
	return register(r,
		Format{
			Name:       CXML,
			RecordType: FixRecord,
			Keys:       CXMLKeys,
			// Observed fixes name their source; forecast fixes inherit the
			// type of their data block.
			Discriminators: []string{"@source", "data/@type"},
			Variants:       cxmlVariants,
		},
		cxmlSchema("observed"),
		cxmlSchema("analysis"),
		cxmlSchema("forecast"),
	)
}

func cxmlSchema(variant string) *Schema {
	validtime := column.Datetime("")
	datetime := Field{
		Name:        "datetime",
		Locators:    []string{"validTime", "@hour"},
		Column:      column.Composite(domain.KindDatetime, plusDuration(time.Hour, -1), validtime, column.Numeric()),
		Identity:    true,
		Cardinality: ExactlyOne,
	}
	tech := Field{
		Name:     "tech",
		Locators: []string{"header//model/name", "data/@member"},
		Column:   column.Composite(domain.KindString, modelTech, str(), column.Numeric()),
		Identity: true,
	}
	source := fld("source", "@source", str())
	source.Identity = true
	member := fld("member", "data/@member", column.Numeric())
	member.Identity = true
	tau := fld("tau", "@hour", column.Numeric())
	tau.Identity = true
	vt := fld("validtime", "validTime", validtime)
	vt.Inherit = true

	return &Schema{
		Format:     CXML,
		RecordType: FixRecord,
		Variant:    variant,
		Fields: []Field{
			key("storm_id", "disturbance/@ID", str()),
			fld("basin", "disturbance/basin", str()),
			fld("number", "disturbance/cycloneNumber", column.Numeric()),
			fld("stormname", "disturbance/cycloneName", str()),
			tech,
			member,
			source,
			datetime,
			tau,
			vt,
			fld("lat", "//latitude", column.Latitude()),
			fld("lon", "//longitude", column.Longitude()),
			fld("vmax", "//maximumWind/speed", column.Numeric(speedKt(""))),
			fld("rmw", "//maximumWind/radius", column.Numeric(distNM(""))),
			fld("mslp", "//minimumPressure/pressure", column.Numeric(pressHPa(""))),
			fld("pouter", "//lastClosedIsobar/pressure", column.Numeric(pressHPa(""))),
			fld("router", "//lastClosedIsobar/radius", column.Numeric(distNM(""))),
			fld("subregion", "//subRegion", str()),
			fld("direction", "//stormMotion/directionToward", column.Numeric()),
			fld("speed", "//stormMotion/speed", column.Numeric(speedKt(""))),
			fld("type", "//development", str()),
		},
		Groups: []Group{
			contourGroup("wind", "//windContours/windSpeed", column.Numeric(speedKt(""))),
			contourGroup("seas", "//seaContours/waveHeight", column.Numeric(column.WithUnit(units.Feet, ""))),
		},
	}
}

// contourGroup expands threshold elements holding one radius per sector.
func contourGroup(name, locator string, threshold column.Column) Group {
	return Group{
		Name:    name,
		Locator: locator,
		Fields: []Field{
			{Name: "threshold", Locators: []string{"."}, Column: threshold, Identity: true},
		},
		Groups: []Group{{
			Name:    "radius",
			Locator: "radius",
			Emit:    true,
			Fields: []Field{
				{Name: "sector", Locators: []string{"@sector"}, Column: cat(radiusCodes...), Identity: true},
				fld("radius", ".", column.Numeric(distNM(""))),
			},
			Require: []string{"sector", "radius"},
		}},
	}
}
