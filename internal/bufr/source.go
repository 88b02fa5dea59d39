package bufr

import (
	"strings"

	"github.com/couchcryptid/tctrack/internal/assemble"
	"github.com/couchcryptid/tctrack/internal/domain"
)

// Occurrence locators understood by the message source.
const (
	locPeriod    = "period"
	locMember    = "member"
	locThreshold = "threshold"
	locSector    = "sector"
)

// Template 316082 repeats each threshold block for three wind speeds and each
// radius for four bearing sectors.
const (
	thresholds = 3
	sectors    = 4
)

// Location roles by meteorological attribute significance.
const (
	roleCenter     = "center"
	roleMaxWind    = "max_wind"
	roleOuterLimit = "outer_limit"
)

var significance = map[string]string{
	"1": roleCenter,
	"2": roleOuterLimit,
	"3": roleMaxWind,
	"4": roleCenter,
	"5": roleCenter,
}

// nested keys are resolved by the period, member and sector sources.
var nested = map[string]bool{
	"timePeriod":                          true,
	"ensembleMemberNumber":                true,
	"pressureReducedToMeanSeaLevel":       true,
	"windSpeedAt10M":                      true,
	"meteorologicalAttributeSignificance": true,
	"latitude":                            true,
	"longitude":                           true,
	"windSpeedThreshold":                  true,
	"bearingOrAzimuth":                    true,
	"effectiveRadiusWithRespectToWindSpeedsAboveThreshold": true,
}

// messageSource resolves message-level keys such as the storm identifier and
// the analysis time. Its occurrences are the forecast periods, the analysis
// being period 0.
type messageSource struct {
	msg *Message
}

// Token reads an unranked key. The key is its own concrete locator, so reads
// through period or member sources claim it too.
func (s messageSource) Token(locator string) (domain.Token, bool) {
	tok, ok := token(s.msg.Get(locator, 0), 0)
	if !nested[locator] {
		tok.Locator = locator
	}
	return tok, ok
}

func (s messageSource) Occurrences(locator string) []assemble.Source {
	if locator != locPeriod {
		return nil
	}
	out := []assemble.Source{periodSource{msg: s.msg, i: 0}}
	for i := 1; s.msg.Has("timePeriod", i); i++ {
		out = append(out, periodSource{msg: s.msg, i: i})
	}
	return out
}

// Locators lists the unranked keys: section headers and message constants.
// Keys read per period, member or sector are reached through occurrences.
func (s messageSource) Locators() []string {
	var locs []string
	for _, k := range s.msg.Keys() {
		if !nested[k] {
			locs = append(locs, k)
		}
	}
	return locs
}

// periodSource is one time step of the track.
type periodSource struct {
	msg *Message
	i   int
}

func (s periodSource) Token(locator string) (domain.Token, bool) {
	if locator == "timePeriod" {
		if s.i == 0 {
			return domain.Token{Text: "0", Attrs: map[string]string{"units": "h"}}, true
		}
		return token(s.msg.Get("timePeriod", s.i), 0)
	}
	return messageSource{msg: s.msg}.Token(locator)
}

func (s periodSource) Occurrences(locator string) []assemble.Source {
	if locator != locMember {
		return nil
	}
	n := s.msg.Subsets()
	out := make([]assemble.Source, n)
	for j := range n {
		out[j] = memberSource{period: s, subset: j}
	}
	return out
}

func (s periodSource) Locators() []string { return nil }

// locationRanks are the ranks of the location blocks reported for the
// period: the storm centre and the maximum wind. The analysis falls back to
// the observed centre at rank 1 when no perturbed centre is present.
func (s periodSource) locationRanks() []int {
	if s.i == 0 {
		center := 2
		if !s.msg.Has("latitude", 2) {
			center = 1
		}
		return []int{center, 3}
	}
	return []int{2*s.i + 2, 2*s.i + 3}
}

// memberSource is one ensemble member within a period.
type memberSource struct {
	period periodSource
	subset int
}

func (s memberSource) Token(locator string) (domain.Token, bool) {
	msg := s.period.msg
	switch locator {
	case "ensembleMemberNumber":
		return token(msg.Get(locator, 0), s.subset)
	case "pressureReducedToMeanSeaLevel", "windSpeedAt10M":
		return token(msg.Get(locator, s.period.i+1), s.subset)
	}
	if role, key, ok := strings.Cut(locator, "/"); ok {
		return s.location(role, key)
	}
	return s.period.Token(locator)
}

// location finds the period's location block whose significance matches role
// and returns its latitude or longitude.
func (s memberSource) location(role, key string) (domain.Token, bool) {
	msg := s.period.msg
	for _, rank := range s.period.locationRanks() {
		sig, ok := msg.Get("meteorologicalAttributeSignificance", rank).Value(s.subset)
		if !ok || significance[strings.TrimSpace(sig)] != role {
			continue
		}
		return token(msg.Get(key, rank), s.subset)
	}
	return domain.Token{}, false
}

func (s memberSource) Occurrences(locator string) []assemble.Source {
	if locator != locThreshold {
		return nil
	}
	out := make([]assemble.Source, thresholds)
	for j := range thresholds {
		out[j] = thresholdSource{member: s, j: j + 1}
	}
	return out
}

func (s memberSource) Locators() []string { return nil }

// thresholdSource is one wind speed threshold of a member's radii.
type thresholdSource struct {
	member memberSource
	j      int
}

func (s thresholdSource) Token(locator string) (domain.Token, bool) {
	if locator == "windSpeedThreshold" {
		rank := thresholds*s.member.period.i + s.j
		return token(s.member.period.msg.Get(locator, rank), s.member.subset)
	}
	return s.member.Token(locator)
}

func (s thresholdSource) Occurrences(locator string) []assemble.Source {
	if locator != locSector {
		return nil
	}
	out := make([]assemble.Source, sectors)
	for k := range sectors {
		out[k] = sectorSource{threshold: s, k: k + 1}
	}
	return out
}

func (s thresholdSource) Locators() []string { return nil }

// sectorSource is one bearing sector of a threshold: a radius bounded by two
// bearings.
type sectorSource struct {
	threshold thresholdSource
	k         int
}

func (s sectorSource) Token(locator string) (domain.Token, bool) {
	i, j := s.threshold.member.period.i, s.threshold.j
	msg := s.threshold.member.period.msg
	subset := s.threshold.member.subset
	bearing := 2*sectors*thresholds*i + 2*sectors*(j-1) + 2*s.k
	switch locator {
	case "effectiveRadiusWithRespectToWindSpeedsAboveThreshold":
		rank := sectors*thresholds*i + sectors*(j-1) + s.k
		return token(msg.Get(locator, rank), subset)
	case "bearingFrom":
		return token(msg.Get("bearingOrAzimuth", bearing-1), subset)
	case "bearingTo":
		return token(msg.Get("bearingOrAzimuth", bearing), subset)
	}
	return s.threshold.Token(locator)
}

func (s sectorSource) Occurrences(string) []assemble.Source { return nil }

func (s sectorSource) Locators() []string { return nil }

// token builds the assembler token for one subset of an entry.
func token(e *Entry, subset int) (domain.Token, bool) {
	v, ok := e.Value(subset)
	if !ok {
		return domain.Token{}, false
	}
	return domain.Token{Text: v, Attrs: e.Attrs}, true
}

