package bufr

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/tctrack/internal/assemble"
	"github.com/couchcryptid/tctrack/internal/collection"
	"github.com/couchcryptid/tctrack/internal/domain"
	"github.com/couchcryptid/tctrack/internal/schema"
)

// hilary is a two-member ensemble track: the analysis, a 12 h step and an
// empty 24 h step.
const hilary = `edition=4
centre=ecmf
numberOfSubsets=2
compressedData=1
unexpandedDescriptors=316082
year=2023
month=8
day=18
hour=0
minute=0
stormIdentifier=09E
longStormName="HILARY"
numericalModelIdentifier="ECMWF-EPS"
ensembleMemberNumber={1, 2}
#1#meteorologicalAttributeSignificance=1
#1#latitude=16.5
#1#longitude=-108.2
#2#meteorologicalAttributeSignificance=4
#2#latitude={16.6, 16.4}
#2#longitude={-108.3, -108.1}
#1#pressureReducedToMeanSeaLevel={97500, 97800}
#1#pressureReducedToMeanSeaLevel->units=Pa
#1#windSpeedAt10M={45.2, MISSING}
#1#windSpeedAt10M->units=m/s
#3#meteorologicalAttributeSignificance=3
#3#latitude={16.8, 16.7}
#3#longitude={-108.0, -107.9}
#1#windSpeedThreshold=18
#1#windSpeedThreshold->units=m/s
#2#windSpeedThreshold=26
#3#windSpeedThreshold=33
#1#bearingOrAzimuth=0
#2#bearingOrAzimuth=90
#3#bearingOrAzimuth=90
#4#bearingOrAzimuth=180
#5#bearingOrAzimuth=180
#6#bearingOrAzimuth=270
#7#bearingOrAzimuth=270
#8#bearingOrAzimuth=360
#1#effectiveRadiusWithRespectToWindSpeedsAboveThreshold={185200,
  92600}
#1#effectiveRadiusWithRespectToWindSpeedsAboveThreshold->units=m
#2#effectiveRadiusWithRespectToWindSpeedsAboveThreshold={148160, -1e+100}
#3#effectiveRadiusWithRespectToWindSpeedsAboveThreshold=MISSING
#4#effectiveRadiusWithRespectToWindSpeedsAboveThreshold=MISSING
#1#timePeriod=12
#2#pressureReducedToMeanSeaLevel={97000, 97600}
#2#windSpeedAt10M={50, 47}
#4#meteorologicalAttributeSignificance=1
#4#latitude={17.5, 17.3}
#4#longitude={-109.5, -109.0}
#5#meteorologicalAttributeSignificance=3
#5#latitude={17.7, MISSING}
#5#longitude={-109.4, MISSING}
#2#timePeriod=24
`

const otherTemplate = `edition=4
unexpandedDescriptors=316050
stormIdentifier=10L
year=2023
month=8
day=18
hour=0
minute=0
`

func read(t *testing.T, text string) *collection.Collection {
	t.Helper()
	b, err := collection.NewBuilder(schema.BUFR)
	require.NoError(t, err)
	c, err := Read(context.Background(), b, "hilary.txt", strings.NewReader(text))
	require.NoError(t, err)
	return c
}

func members(c *collection.Collection) *collection.Collection {
	return c.Filter(func(r domain.Record) bool { return strings.HasSuffix(r.Type, "/member") })
}

func find(t *testing.T, c *collection.Collection, tau, member float64) domain.Record {
	t.Helper()
	for _, r := range c.Records() {
		if r.Get("tau").Num == tau && r.Get("member").Num == member {
			return r
		}
	}
	t.Fatalf("no record for tau %v member %v", tau, member)
	return domain.Record{}
}

func TestRead_EnsembleMembers(t *testing.T) {
	c := read(t, hilary)
	m := members(c)
	require.Equal(t, 4, m.Len(), "the empty 24 h step adds no rows")

	analysis := time.Date(2023, 8, 18, 0, 0, 0, 0, time.UTC)
	for _, r := range m.Records() {
		assert.Equal(t, "ensemble/316082/period/member", r.Type)
		assert.Equal(t, "09E", r.Get("storm_id").Str)
		assert.Equal(t, "HILARY", r.Get("stormname").Str)
		assert.Equal(t, "ECMWF-EPS", r.Get("model").Str)
		assert.Equal(t, "ecmf", r.Get("centre").Str)
		assert.Equal(t, analysis, r.Get("datetime").Time)
	}

	a1 := find(t, m, 0, 1)
	assert.InDelta(t, 16.6, a1.Get("lat").Num, 1e-9, "perturbed analysis centre")
	assert.InDelta(t, -108.3, a1.Get("lon").Num, 1e-9)
	assert.InDelta(t, 975, a1.Get("mslp").Num, 1e-9)
	assert.InDelta(t, 45.2*3600/1852, a1.Get("vmax").Num, 1e-9)
	assert.InDelta(t, 16.8, a1.Get("max_wind_lat").Num, 1e-9)
	assert.Equal(t, analysis, a1.Get("validtime").Time)

	a2 := find(t, m, 0, 2)
	assert.True(t, a2.Get("vmax").Missing)
	assert.InDelta(t, 978, a2.Get("mslp").Num, 1e-9)

	f2 := find(t, m, 12, 2)
	assert.InDelta(t, 17.3, f2.Get("lat").Num, 1e-9)
	assert.InDelta(t, 976, f2.Get("mslp").Num, 1e-9, "units assumed Pa")
	assert.InDelta(t, 47*3600/1852.0, f2.Get("vmax").Num, 1e-9, "units assumed m/s")
	assert.True(t, f2.Get("max_wind_lat").Missing)
	assert.Equal(t, analysis.Add(12*time.Hour), f2.Get("validtime").Time)
}

func TestRead_WindRadii(t *testing.T) {
	c := read(t, hilary)
	radii := c.OfType("ensemble/316082/period/member/threshold/radii")
	require.Equal(t, 3, radii.Len())

	type row struct {
		member    float64
		threshold float64
		sector    string
		radius    float64
	}
	var got []row
	for _, r := range radii.Records() {
		assert.InDelta(t, 0, r.Get("tau").Num, 0)
		got = append(got, row{r.Get("member").Num, r.Get("threshold").Num, r.Get("sector").Str, r.Get("radius").Num})
	}
	assert.ElementsMatch(t, []row{
		{1, 34, "NEQ", 100},
		{1, 34, "SEQ", 80},
		{2, 34, "NEQ", 50},
	}, got)
}

func TestRead_ExtraHoldsHeaderKeys(t *testing.T) {
	c := read(t, hilary)
	var extra []string
	for _, r := range c.Records() {
		if len(r.Extra) > 0 {
			require.Empty(t, extra, "extra attaches to one record")
			extra = assemble.ExtraKeys(r)
		}
	}
	assert.Equal(t, []string{"compressedData", "edition", "numberOfSubsets"}, extra)
}

func TestRead_UnknownTemplateRejected(t *testing.T) {
	c := read(t, hilary+"\n"+otherTemplate)
	s := c.Summary()
	assert.Equal(t, 2, s.Units)
	require.Equal(t, 1, s.RejectedBy(collection.ReasonSchema))
	assert.Equal(t, 2, s.Rejected[0].Origin.Position)
	var resErr *domain.SchemaResolutionError
	require.ErrorAs(t, s.Rejected[0].Err, &resErr)
	assert.Equal(t, "316050", resErr.Discriminant)
}

func TestScanner_Messages(t *testing.T) {
	sc := NewScanner("dump.txt", strings.NewReader("\n// comment\n"+otherTemplate+"\n\n"+otherTemplate))
	for want := 1; want <= 2; want++ {
		u, err := sc.Next()
		require.NoError(t, err)
		assert.Equal(t, domain.Origin{Source: "dump.txt", Position: want}, u.Origin)
		tok, ok := u.Source.Token("stormIdentifier")
		require.True(t, ok)
		assert.Equal(t, "10L", tok.Text)
	}
	_, err := sc.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, sc.Close())
}

func TestScanner_Malformed(t *testing.T) {
	tests := []struct {
		name string
		text string
		line int
	}{
		{"no equals", "edition=4\ncentre ecmf\n", 2},
		{"bad rank", "edition=4\n#x#latitude=1\n", 2},
		{"unterminated array", "edition=4\nensembleMemberNumber={1, 2,\n3\n", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScanner("bad.txt", strings.NewReader(tt.text)).Next()
			var srcErr *domain.SourceFormatError
			require.ErrorAs(t, err, &srcErr)
			assert.Equal(t, "bad.txt", srcErr.Source)
			assert.Equal(t, tt.line, srcErr.Position)
		})
	}
}

func TestMessage_RanksAndSubsets(t *testing.T) {
	m, err := newDumpReader(strings.NewReader(hilary)).next()
	require.NoError(t, err)

	assert.Equal(t, 2, m.Subsets())
	assert.True(t, m.Has("latitude", 5))
	assert.False(t, m.Has("latitude", 6))
	assert.Same(t, m.Get("year", 0), m.Get("year", 1), "rank 1 falls back to the unranked key")

	v, ok := m.Get("windSpeedAt10M", 1).Value(1)
	require.True(t, ok)
	assert.Equal(t, "MISSING", v)
	assert.Equal(t, "m/s", m.Get("windSpeedAt10M", 1).Attrs["units"])

	v, ok = m.Get("#1#latitude", 0).Value(0)
	assert.False(t, ok)
	assert.Empty(t, v)

	v, ok = m.Get("latitude", 1).Value(1)
	require.True(t, ok)
	assert.Equal(t, "16.5", v, "a single value applies to every subset")

	single, err := newDumpReader(strings.NewReader("numberOfSubsets=3\n")).next()
	require.NoError(t, err)
	assert.Equal(t, 3, single.Subsets())
}

func TestParseKey(t *testing.T) {
	key, rank, attr, err := parseKey("#12#effectiveRadiusWithRespectToWindSpeedsAboveThreshold->units")
	require.NoError(t, err)
	assert.Equal(t, "effectiveRadiusWithRespectToWindSpeedsAboveThreshold", key)
	assert.Equal(t, 12, rank)
	assert.Equal(t, "units", attr)

	key, rank, attr, err = parseKey("centre")
	require.NoError(t, err)
	assert.Equal(t, "centre", key)
	assert.Zero(t, rank)
	assert.Empty(t, attr)

	_, _, _, err = parseKey("#0#latitude")
	assert.Error(t, err)
}

func TestSplitValues(t *testing.T) {
	assert.Equal(t, []string{"1", "MISSING", "3"}, splitValues("{1, MISSING, 3}"))
	assert.Equal(t, []string{"HILARY"}, splitValues(` "HILARY" `))
	assert.Equal(t, []string{"-1e+100"}, splitValues("-1e+100"))
}
