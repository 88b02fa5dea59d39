package schema

import (
	"strconv"
	"time"

	"github.com/couchcryptid/tctrack/internal/column"
	"github.com/couchcryptid/tctrack/internal/domain"
)

// ATCF a/b deck formats. Locators are 0-based comma-separated positions.
const (
	ADeck = "adeck"
	BDeck = "bdeck"

	TrackRecord = "track"
)

// TrackKeys is the natural key of a/b deck records.
var TrackKeys = []string{"basin", "number", "datetime", "tech", "tau", "threshold", "sector"}

func init() {
	builtins = append(builtins, declareTrackDeck(ADeck), declareTrackDeck(BDeck))
}

func declareTrackDeck(name string) func(*Registry) error {
	return func(r *Registry) error {
		return register(r,
			Format{
				Name:           name,
				RecordType:     TrackRecord,
				Keys:           TrackKeys,
				Discriminators: []string{"4"},
				Variants:       map[string]string{"BEST": "best"},
				DefaultVariant: "forecast",
			},
			trackSchema(name, "forecast"),
			trackSchema(name, "best"),
		)
	}
}

// trackSchema declares one a/b deck line. Best-track lines carry minutes in
// the technique-number slot, which are folded into datetime.
func trackSchema(format, variant string) *Schema {
	dtg := column.Datetime("2006010215")

	datetime := key("datetime", "2", dtg)
	validtime := composite("validtime", validTime, "2", "5")
	if variant == "best" {
		datetime = Field{
			Name:        "datetime",
			Locators:    []string{"2", "3"},
			Column:      column.Composite(domain.KindDatetime, plusDuration(time.Minute, 1), dtg, atcfNum()),
			Identity:    true,
			Cardinality: ExactlyOne,
		}
		validtime = composite("validtime",
			column.Composite(domain.KindDatetime, plusMinutesHours, dtg, atcfNum(), atcfNum()),
			"2", "3", "5")
	}
	validtime.Inherit = true

	fields := []Field{
		key("basin", "0", cat(basins...)),
		key("number", "1", atcfNum()),
		datetime,
		fld("tnum", "3", atcfNum()),
		key("tech", "4", cat()),
		key("tau", "5", atcfNum()),
		validtime,
		fld("lat", "6", atcfLat(0.1)),
		fld("lon", "7", atcfLon(0.1)),
		fld("vmax", "8", atcfNum()),
		fld("mslp", "9", atcfNum()),
		fld("type", "10", cat(developmentLevels...)),
		fld("pouter", "17", atcfNum()),
		fld("router", "18", atcfNum()),
		fld("rmw", "19", atcfNum()),
		fld("gusts", "20", atcfNum()),
		fld("eye", "21", atcfNum()),
		fld("subregion", "22", cat(subregions...)),
		fld("maxseas", "23", atcfNum()),
		fld("initials", "24", str()),
		fld("direction", "25", atcfNum()),
		fld("speed", "26", atcfNum()),
		fld("stormname", "27", str()),
		fld("depth", "28", cat("D", "M", "S", "X")),
	}
	for i := range 5 {
		n := strconv.Itoa(i + 1)
		fields = append(fields,
			fld("userdefined"+n, strconv.Itoa(35+2*i), str()),
			fld("userdata"+n, strconv.Itoa(36+2*i), str()),
		)
	}

	return &Schema{
		Format:     format,
		RecordType: TrackRecord,
		Variant:    variant,
		Fields:     fields,
		Groups: []Group{
			radiiGroup("radii", "11", "12", 13, 4, -1),
			radiiGroup("seas", "29", "30", 31, 4, -1),
		},
	}
}

// radiiGroup declares a threshold/sector/radius expansion over n consecutive
// positions starting at first. modFirst, when not negative, is the position
// of the first per-sector modifier flag.
func radiiGroup(name, threshold, code string, first, n, modFirst int) Group {
	slots := make([]map[string]string, n)
	for k := range n {
		slot := map[string]string{
			"code":    code,
			"ordinal": "=" + strconv.Itoa(k+1),
			"radius":  strconv.Itoa(first + k),
		}
		if modFirst >= 0 {
			slot["modifier"] = strconv.Itoa(modFirst + k)
		}
		slots[k] = slot
	}
	fields := []Field{
		{Name: "threshold", Locators: []string{threshold}, Column: atcfNum(), Identity: true},
		{Name: "sector", Locators: []string{"code", "ordinal"}, Column: sector, Identity: true},
		fld("radius", "radius", atcfNum()),
	}
	if modFirst >= 0 {
		fields = append(fields, fld("modifier", "modifier", cat("E", "C", "B")))
	}
	return Group{
		Name:           name,
		Slots:          slots,
		Fields:         fields,
		Emit:           true,
		Require:        []string{"threshold", "sector", "radius"},
		ZeroMeansEmpty: "radius",
	}
}
