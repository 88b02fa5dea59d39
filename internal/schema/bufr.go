package schema

import (
	"time"

	"github.com/couchcryptid/tctrack/internal/column"
	"github.com/couchcryptid/tctrack/internal/domain"
	"github.com/couchcryptid/tctrack/internal/units"
)

// BUFR tropical cyclone track messages. Locators are ecCodes key names; the
// BUFR reader resolves them against the current period, member, threshold
// and sector so that the tables never mention ranks.
const (
	BUFR           = "bufr"
	EnsembleRecord = "ensemble"

	// Template316082 is the WMO sequence for ensemble cyclone tracks.
	Template316082 = "316082"
)

// EnsembleKeys is the natural key of BUFR records.
var EnsembleKeys = []string{"storm_id", "model", "datetime", "tau", "member", "threshold", "sector"}

// ecCodes missing sentinels for double and long values.
var bufrMissing = []float64{-1e100, 2147483647}

func bufrNum(opts ...column.Option) column.Column {
	return column.Numeric(append([]column.Option{column.WithMissingValues(bufrMissing...)}, opts...)...)
}

func init() {
	builtins = append(builtins, declareBUFR)
}

func declareBUFR(r *Registry) error {
	return register(r,
		Format{
			Name:           BUFR,
			RecordType:     EnsembleRecord,
			Keys:           EnsembleKeys,
			Discriminators: []string{"unexpandedDescriptors"},
		},
		ensembleSchema(),
	)
}

// bufrValidTime is the analysis time plus the period's hours.
func bufrValidTime(parts []domain.Value) (domain.Value, error) {
	v, err := structuralTime(parts[:5])
	if err != nil || v.Missing || parts[5].Missing {
		return v, err
	}
	return domain.Timestamp(v.Time.Add(time.Duration(parts[5].Num * float64(time.Hour)))), nil
}

func ensembleSchema() *Schema {
	timeParts := []string{"year", "month", "day", "hour", "minute"}
	timeCols := []column.Column{bufrNum(), bufrNum(), bufrNum(), bufrNum(), bufrNum()}

	tau := fld("tau", "timePeriod", bufrNum())
	tau.Identity = true
	validtime := Field{
		Name:     "validtime",
		Locators: append(append([]string{}, timeParts...), "timePeriod"),
		Column:   column.Composite(domain.KindDatetime, bufrValidTime, append(timeCols, bufrNum())...),
		Inherit:  true,
	}
	member := fld("member", "ensembleMemberNumber", bufrNum())
	member.Identity = true
	model := fld("model", "numericalModelIdentifier", str())
	model.Identity = true

	lat := func(name, loc string) Field {
		return fld(name, loc, column.Latitude(column.WithMissingValues(bufrMissing...)))
	}
	lon := func(name, loc string) Field {
		return fld(name, loc, column.Longitude(column.WithMissingValues(bufrMissing...)))
	}

	return &Schema{
		Format:      BUFR,
		RecordType:  EnsembleRecord,
		Variant:     Template316082,
		NoParentRow: true,
		Fields: []Field{
			key("storm_id", "stormIdentifier", str()),
			{Name: "stormname", Locators: []string{"longStormName"}, Column: str(), Inherit: true},
			model,
			{Name: "centre", Locators: []string{"centre"}, Column: str(), Inherit: true},
			{Name: "template", Locators: []string{"unexpandedDescriptors"}, Column: str(), Inherit: true},
			{
				Name:        "datetime",
				Locators:    timeParts,
				Column:      column.Composite(domain.KindDatetime, structuralTime, timeCols...),
				Identity:    true,
				Cardinality: ExactlyOne,
			},
		},
		Groups: []Group{{
			Name:    "period",
			Locator: "period",
			Fields:  []Field{tau, validtime},
			Groups: []Group{{
				Name:    "member",
				Locator: "member",
				Emit:    true,
				Fields: []Field{
					member,
					fld("mslp", "pressureReducedToMeanSeaLevel", bufrNum(pressHPa(units.Pascal))),
					fld("vmax", "windSpeedAt10M", bufrNum(speedKt(units.MPS))),
					lat("lat", "center/latitude"),
					lon("lon", "center/longitude"),
					lat("max_wind_lat", "max_wind/latitude"),
					lon("max_wind_lon", "max_wind/longitude"),
					lat("outer_limit_lat", "outer_limit/latitude"),
					lon("outer_limit_lon", "outer_limit/longitude"),
				},
				RequireAny: []string{"mslp", "vmax", "lat", "lon", "max_wind_lat", "max_wind_lon"},
				Groups: []Group{{
					Name:    "threshold",
					Locator: "threshold",
					Fields: []Field{{
						Name:     "threshold",
						Locators: []string{"windSpeedThreshold"},
						Column:   bufrNum(speedKt(units.MPS), column.WithFloor()),
						Identity: true,
					}},
					Groups: []Group{{
						Name:    "radii",
						Locator: "sector",
						Emit:    true,
						Fields: []Field{
							{
								Name:     "sector",
								Locators: []string{"bearingFrom", "bearingTo"},
								Column:   column.Composite(domain.KindCategorical, bearingSector, bufrNum(), bufrNum()),
								Identity: true,
							},
							fld("radius", "effectiveRadiusWithRespectToWindSpeedsAboveThreshold", bufrNum(distNM(units.Metre))),
						},
						Require: []string{"threshold", "sector", "radius"},
					}},
				}},
			}},
		}},
	}
}
