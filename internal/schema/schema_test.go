package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/tctrack/internal/column"
	"github.com/couchcryptid/tctrack/internal/domain"
)

func TestDefault_Resolve(t *testing.T) {
	reg := Default()

	tests := []struct {
		format, recordType, discriminant string
		wantType                         string
	}{
		{ADeck, TrackRecord, "OFCL", "track/forecast"},
		{ADeck, TrackRecord, "BEST", "track/best"},
		{BDeck, TrackRecord, "BEST", "track/best"},
		{FDeck, FixRecord, "10", "fix/dvts"},
		{FDeck, FixRecord, "31", "fix/microwave"},
		{FDeck, FixRecord, "70", "fix/analysis"},
		{EDeck, ProbabilityRecord, "03", "probability/track"},
		{EDeck, ProbabilityRecord, "GS", "probability/genesis_shape"},
		{CXML, FixRecord, "satellite", "fix/observed"},
		{CXML, FixRecord, "ensembleForecast", "fix/forecast"},
		{BUFR, EnsembleRecord, Template316082, "ensemble/316082"},
	}
	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.discriminant, func(t *testing.T) {
			s, err := reg.Resolve(tt.format, tt.recordType, tt.discriminant)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, s.Type())
			assert.Equal(t, tt.format, s.Format)
		})
	}
}

func TestDefault_ResolveFailure(t *testing.T) {
	reg := Default()

	tests := []struct {
		name                             string
		format, recordType, discriminant string
	}{
		{"unknown fix format", FDeck, FixRecord, "99"},
		{"unknown probability format", EDeck, ProbabilityRecord, "ZZ"},
		{"unknown cxml source", CXML, FixRecord, "drifting buoy"},
		{"unknown template", BUFR, EnsembleRecord, "316099"},
		{"empty discriminant", FDeck, FixRecord, ""},
		{"unknown format", "gdeck", TrackRecord, "OFCL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Resolve(tt.format, tt.recordType, tt.discriminant)
			var resErr *domain.SchemaResolutionError
			require.ErrorAs(t, err, &resErr)
			assert.Equal(t, tt.discriminant, resErr.Discriminant)
			assert.Contains(t, err.Error(), tt.format)
		})
	}
}

func TestDefault_Frozen(t *testing.T) {
	err := Default().Register(&Schema{Format: ADeck, RecordType: TrackRecord, Variant: "extra"})
	assert.True(t, errors.Is(err, domain.ErrSchemaFrozen))
}

func TestDefault_Variants(t *testing.T) {
	assert.Equal(t, []string{"best", "forecast"}, Default().Variants(ADeck, TrackRecord))
	assert.Equal(t,
		[]string{"aircraft", "analysis", "dropsonde", "dvto", "dvts", "microwave", "radar"},
		Default().Variants(FDeck, FixRecord))
}

func TestRegistry_VariantsAreIndependent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFormat(Format{Name: "demo", RecordType: "row", Discriminators: []string{"0"}}))

	a := &Schema{Format: "demo", RecordType: "row", Variant: "a", Fields: []Field{fld("x", "1", column.Numeric())}}
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(&Schema{Format: "demo", RecordType: "row", Variant: "b"}))

	err := r.Register(&Schema{Format: "demo", RecordType: "row", Variant: "a"})
	assert.True(t, errors.Is(err, domain.ErrDuplicateEntry))

	got, err := r.Resolve("demo", "row", "a")
	require.NoError(t, err)
	assert.Same(t, a, got)

	err = r.Register(&Schema{Format: "nope", RecordType: "row"})
	assert.Error(t, err)
}

func TestRegistry_RejectsUnknownUnit(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFormat(Format{Name: "demo", RecordType: "row", Discriminators: []string{"0"}}))

	err := r.Register(&Schema{
		Format:     "demo",
		RecordType: "row",
		Groups: []Group{{
			Name:   "wind",
			Fields: []Field{fld("gust", "2", column.Numeric(column.WithUnit("furlongs", "")))},
		}},
	})
	require.ErrorIs(t, err, domain.ErrUnknownUnit)
	assert.Contains(t, err.Error(), "gust")

	require.NoError(t, r.Register(&Schema{
		Format:     "demo",
		RecordType: "row",
		Fields:     []Field{fld("vmax", "1", column.Numeric(column.WithUnit("kt", "")))},
	}))
}

func TestFormat_Discriminant(t *testing.T) {
	f := Format{Discriminators: []string{"@source", "data/@type"}}
	tokens := map[string]string{"@source": "  ", "data/@type": "forecast"}
	got := f.Discriminant(func(loc string) (domain.Token, bool) {
		s, ok := tokens[loc]
		return domain.Token{Text: s}, ok
	})
	assert.Equal(t, "forecast", got, "blank tokens fall through to the next discriminator")
}

func TestSectorName(t *testing.T) {
	tests := []struct {
		code    string
		ordinal float64
		want    string
		missing bool
	}{
		{"NEQ", 1, "NEQ", false},
		{"NEQ", 3, "SWQ", false},
		{"SEQ", 4, "NEQ", false},
		{"AAA", 1, "AAA", false},
		{"AAA", 2, "", true},
		{"NNEO", 8, "NNWO", false},
		{"WSWO", 3, "NNWO", false},
		{"NEQ", 5, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			v, err := sectorName([]domain.Value{domain.Category(tt.code), domain.Number(tt.ordinal)})
			require.NoError(t, err)
			assert.Equal(t, tt.missing, v.Missing)
			if !tt.missing {
				assert.Equal(t, tt.want, v.Str)
			}
		})
	}

	v, err := sectorName([]domain.Value{domain.Category("XYZ"), domain.Number(2)})
	require.NoError(t, err)
	assert.Equal(t, "XYZ2", v.Str)
	assert.True(t, v.Unknown)
}

func TestModelTech(t *testing.T) {
	tests := []struct {
		model  string
		member float64
		want   string
	}{
		{"GEFS", 7, "AP07"},
		{"GFS", 0, "AVNO"},
		{"MOGREPS-G", 12, "EG12"},
		{"ECMWF", 3, "ECMWF"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			v, err := modelTech([]domain.Value{domain.Text(tt.model), domain.Number(tt.member)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Str)
		})
	}
}

func TestBearingSector(t *testing.T) {
	v, err := bearingSector([]domain.Value{domain.Number(90), domain.Number(180)})
	require.NoError(t, err)
	assert.Equal(t, "SEQ", v.Str)

	v, err = bearingSector([]domain.Value{domain.Number(45), domain.Number(135)})
	require.NoError(t, err)
	assert.Equal(t, "45:135", v.Str)
	assert.True(t, v.Unknown)
}

func TestStructuralTime(t *testing.T) {
	n := domain.Number
	v, err := structuralTime([]domain.Value{n(2023), n(9), n(18), n(12), n(0)})
	require.NoError(t, err)
	assert.Equal(t, "2023-09-18T12:00:00Z", v.String())

	_, err = structuralTime([]domain.Value{n(2023), n(13), n(18), n(12), n(0)})
	assert.True(t, errors.Is(err, domain.ErrBadTimestamp))

	v, err = structuralTime([]domain.Value{n(2023), domain.Missing(domain.KindNumeric), n(18), n(12), n(0)})
	require.NoError(t, err)
	assert.True(t, v.Missing)
}
