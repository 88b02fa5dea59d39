package collection

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/tctrack/internal/assemble"
	"github.com/couchcryptid/tctrack/internal/column"
	"github.com/couchcryptid/tctrack/internal/domain"
	"github.com/couchcryptid/tctrack/internal/observability"
	"github.com/couchcryptid/tctrack/internal/schema"
)

// --- fakes ---

type line []string

func (l line) Token(loc string) (domain.Token, bool) {
	i, err := strconv.Atoi(loc)
	if err != nil || i < 0 || i >= len(l) {
		return domain.Token{}, false
	}
	return domain.Token{Text: l[i]}, true
}

func (l line) Occurrences(string) []assemble.Source { return nil }

func (l line) Locators() []string {
	locs := make([]string, len(l))
	for i := range l {
		locs[i] = strconv.Itoa(i)
	}
	return locs
}

type sliceScanner struct {
	units []Unit
	i     int
	err   error // returned instead of io.EOF when set
}

func scan(source string, lines ...string) *sliceScanner {
	sc := &sliceScanner{}
	for i, s := range lines {
		parts := strings.Split(s, ",")
		for j := range parts {
			parts[j] = strings.TrimSpace(parts[j])
		}
		sc.units = append(sc.units, Unit{Source: line(parts), Origin: domain.Origin{Source: source, Position: i + 1}})
	}
	return sc
}

func (s *sliceScanner) Next() (Unit, error) {
	if s.i >= len(s.units) {
		if s.err != nil {
			return Unit{}, s.err
		}
		return Unit{}, io.EOF
	}
	s.i++
	return s.units[s.i-1], nil
}

// demoRegistry declares one positional format: variant, id, t, value, name, class.
func demoRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	require.NoError(t, r.RegisterFormat(schema.Format{
		Name:           "demo",
		RecordType:     "row",
		Keys:           []string{"id", "t"},
		Discriminators: []string{"0"},
		Variants:       map[string]string{"A": "a"},
	}))
	require.NoError(t, r.Register(&schema.Schema{
		Format:     "demo",
		RecordType: "row",
		Variant:    "a",
		Fields: []schema.Field{
			{Name: "id", Locators: []string{"1"}, Column: column.Numeric(), Cardinality: schema.ExactlyOne, Identity: true},
			{Name: "t", Locators: []string{"2"}, Column: column.Numeric(), Cardinality: schema.ExactlyOne, Identity: true},
			{Name: "value", Locators: []string{"3"}, Column: column.Numeric(column.WithMissing("-999"))},
			{Name: "name", Locators: []string{"4"}, Column: column.String()},
			{Name: "class", Locators: []string{"5"}, Column: column.Categorical([]string{"TS", "HU"})},
		},
	}))
	r.Freeze()
	return r
}

func newDemoBuilder(t *testing.T, opts ...Option) *Builder {
	t.Helper()
	b, err := NewBuilder("demo", append([]Option{WithRegistry(demoRegistry(t))}, opts...)...)
	require.NoError(t, err)
	return b
}

func ids(c *Collection) []string {
	var out []string
	for _, r := range c.Records() {
		out = append(out, r.Get("id").String()+"/"+r.Get("t").String())
	}
	return out
}

// --- tests ---

func TestNewBuilder_UnknownFormat(t *testing.T) {
	_, err := NewBuilder("gdeck", WithRegistry(demoRegistry(t)))
	var resErr *domain.SchemaResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "gdeck", resErr.Format)
}

func TestIngest_SortsAndDeduplicates(t *testing.T) {
	b := newDemoBuilder(t)
	c, err := b.Ingest(context.Background(), "demo.dat", scan("demo.dat",
		"A, 2, 0, 10, , TS",
		"A, 1, 6, 11, , TS",
		"A, 1, 0, 12, first, HU",
		"A, 1, 0, 13, second, HU",
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"1/0", "1/6", "2/0"}, ids(c))
	assert.InDelta(t, 13, c.At(0).Get("value").Num, 0, "later record wins")
	assert.Equal(t, "second", c.At(0).Get("name").Str)

	s := c.Summary()
	assert.Equal(t, 4, s.Units)
	assert.Equal(t, 3, s.Records)
	assert.Equal(t, 1, s.Replaced)
	assert.Equal(t, []string{"demo.dat"}, s.Sources)
	assert.Empty(t, s.Rejected)
	assert.NoError(t, s.Err())
	assert.Equal(t, []string{"id", "t", "value", "name", "class"}, c.Columns())
}

func TestIngest_Idempotent(t *testing.T) {
	lines := []string{"A, 3, 12, 45, x, TS", "A, 3, 0, -999, , HU", "A, 1, 0, 7, y, XX"}
	b := newDemoBuilder(t)

	first, err := b.Ingest(context.Background(), "a", scan("a", lines...))
	require.NoError(t, err)
	second, err := b.Ingest(context.Background(), "a", scan("a", lines...))
	require.NoError(t, err)

	assert.Equal(t, first.Len(), second.Len())
	if diff := cmp.Diff(first.Records(), second.Records()); diff != "" {
		t.Errorf("re-ingest changed records (-first +second):\n%s", diff)
	}
}

func TestIngest_RejectionsAreCounted(t *testing.T) {
	var logs bytes.Buffer
	metrics := observability.NewMetricsForTesting()
	b := newDemoBuilder(t,
		WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
		WithMetrics(metrics),
	)

	c, err := b.Ingest(context.Background(), "mixed.dat", scan("mixed.dat",
		"A, 1, 0, 10, ok, TS",
		"B, 1, 6, 10, no schema, TS",
		"A, one, 12, 10, bad id, TS",
		"A, 1, 18, ten, bad value, XX",
	))
	require.NoError(t, err)

	require.Equal(t, 2, c.Len())
	s := c.Summary()
	assert.Equal(t, 4, s.Units)
	assert.Equal(t, 1, s.FieldErrors)
	assert.Equal(t, 1, s.UnknownCategories)
	require.Len(t, s.Rejected, 2)
	assert.Equal(t, 1, s.RejectedBy(ReasonSchema))
	assert.Equal(t, 1, s.RejectedBy(ReasonIdentity))

	var resErr *domain.SchemaResolutionError
	require.ErrorAs(t, s.Rejected[0].Err, &resErr)
	assert.Equal(t, "B", resErr.Discriminant)
	assert.Equal(t, domain.Origin{Source: "mixed.dat", Position: 2}, s.Rejected[0].Origin)

	var idErr *domain.IdentityKeyError
	require.ErrorAs(t, s.Err(), &idErr)
	assert.Equal(t, "id", idErr.Field)

	bad := c.At(1).Get("value")
	assert.True(t, bad.Missing)
	var convErr *domain.FieldConversionError
	require.ErrorAs(t, bad.Err, &convErr)
	assert.Equal(t, "ten", convErr.Token)

	assert.InDelta(t, 4, testutil.ToFloat64(metrics.UnitsRead.WithLabelValues("demo")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.RecordsIngested.WithLabelValues("demo")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RecordsRejected.WithLabelValues("demo", ReasonSchema)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RecordsRejected.WithLabelValues("demo", ReasonIdentity)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.FieldErrors.WithLabelValues("demo")), 0)

	assert.Contains(t, logs.String(), "no schema for unit")
	assert.Contains(t, logs.String(), "identity key failed")
	assert.Contains(t, logs.String(), "source read")
}

func TestIngest_SourceErrorAborts(t *testing.T) {
	sc := scan("broken.dat", "A, 1, 0, 10, ok, TS")
	sc.err = &domain.SourceFormatError{Source: "broken.dat", Position: 2, Err: errors.New("truncated")}

	_, err := newDemoBuilder(t).Ingest(context.Background(), "broken.dat", sc)
	var srcErr *domain.SourceFormatError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, 2, srcErr.Position)
	assert.Contains(t, err.Error(), "broken.dat")
}

func TestIngest_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newDemoBuilder(t).Ingest(ctx, "a", scan("a", "A, 1, 0, 1, , TS"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtend_LastWriteWins(t *testing.T) {
	b := newDemoBuilder(t)
	ctx := context.Background()

	base, err := b.Ingest(ctx, "a", scan("a", "A, 1, 0, 10, , TS", "A, 1, 6, 20, , TS"))
	require.NoError(t, err)
	ext, err := b.Extend(ctx, base, "b", scan("b", "A, 1, 6, 25, reissued, TS", "A, 2, 0, 30, , TS"))
	require.NoError(t, err)

	assert.Equal(t, []string{"1/0", "1/6", "2/0"}, ids(ext))
	assert.InDelta(t, 25, ext.At(1).Get("value").Num, 0)
	assert.Equal(t, 1, ext.Summary().Replaced)
	assert.Equal(t, []string{"a", "b"}, ext.Summary().Sources)
	assert.Equal(t, 4, ext.Summary().Units)

	assert.Equal(t, 2, base.Len(), "extend leaves the base collection unchanged")
	assert.InDelta(t, 20, base.At(1).Get("value").Num, 0)
}

func TestExtend_FormatMismatch(t *testing.T) {
	deck, err := NewBuilder(schema.BDeck)
	require.NoError(t, err)
	base, err := deck.Ingest(context.Background(), "b", scan("b"))
	require.NoError(t, err)

	_, err = newDemoBuilder(t).Extend(context.Background(), base, "a", scan("a", "A, 1, 0, 10, , TS"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format mismatch")
}

func TestMerge(t *testing.T) {
	b := newDemoBuilder(t)
	ctx := context.Background()
	a, err := b.Ingest(ctx, "a", scan("a", "A, 1, 0, 10, , TS"))
	require.NoError(t, err)
	c, err := b.Ingest(ctx, "c", scan("c", "A, 1, 0, 11, , TS", "A, 0, 0, 1, , TS"))
	require.NoError(t, err)

	m, err := Merge(a, nil, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"0/0", "1/0"}, ids(m))
	assert.InDelta(t, 11, m.At(1).Get("value").Num, 0)
	assert.Equal(t, []string{"a", "c"}, m.Summary().Sources)
	assert.Equal(t, 1, m.Summary().Replaced)

	_, err = Merge()
	assert.Error(t, err)

	other := New("other", []string{"id"}, nil)
	_, err = Merge(a, other)
	assert.Error(t, err)
}

func TestSummary_UsesPackageClock(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2023, 9, 18, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	c, err := newDemoBuilder(t).Ingest(context.Background(), "a", scan("a", "A, 1, 0, 1, , TS"))
	require.NoError(t, err)
	assert.Equal(t, fake.Now(), c.Summary().StartedAt)
	assert.Equal(t, time.Duration(0), c.Summary().Duration())
}

func TestLazy_CollectOnce(t *testing.T) {
	var opens atomic.Int32
	in := Input{Name: "a", Open: func() (Scanner, error) {
		opens.Add(1)
		return scan("a", "A, 2, 0, 1, , TS", "A, 1, 0, 2, , TS"), nil
	}}
	l := NewLazy(newDemoBuilder(t), in)
	assert.False(t, l.Materialized())

	var wg sync.WaitGroup
	results := make([]*Collection, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := l.Collect(context.Background())
			assert.NoError(t, err)
			results[i] = c
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())
	assert.True(t, l.Materialized())
	for _, c := range results {
		assert.Same(t, results[0], c)
	}
}

func TestLazy_RecordsStreamsBeforeCollect(t *testing.T) {
	in := Input{Name: "a", Open: func() (Scanner, error) {
		return scan("a", "A, 2, 0, 1, , TS", "B, 9, 9, 9, , TS", "A, 1, 0, 2, , TS"), nil
	}}
	l := NewLazy(newDemoBuilder(t), in)

	var streamed []string
	for r, err := range l.Records(context.Background()) {
		require.NoError(t, err)
		streamed = append(streamed, r.Get("id").String())
	}
	assert.Equal(t, []string{"2", "1"}, streamed, "input order, unresolved units skipped")
	assert.False(t, l.Materialized())

	_, err := l.Collect(context.Background())
	require.NoError(t, err)
	var sorted []string
	for r, err := range l.Records(context.Background()) {
		require.NoError(t, err)
		sorted = append(sorted, r.Get("id").String())
	}
	assert.Equal(t, []string{"1", "2"}, sorted)
}

func TestLazy_SummaryWhileStreaming(t *testing.T) {
	var logs bytes.Buffer
	b := newDemoBuilder(t, WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	in := Input{Name: "mixed.dat", Open: func() (Scanner, error) {
		return scan("mixed.dat",
			"A, 1, 0, 10, ok, TS",
			"B, 1, 6, 10, no schema, TS",
			"A, one, 12, 10, bad id, TS",
			"A, 1, 0, ten, again, XX",
		), nil
	}}
	l := NewLazy(b, in)

	var streamed int
	for _, err := range l.Records(context.Background()) {
		require.NoError(t, err)
		streamed++
	}
	assert.Equal(t, 2, streamed)
	require.False(t, l.Materialized())

	s := l.Summary()
	assert.Equal(t, []string{"mixed.dat"}, s.Sources)
	assert.Equal(t, 4, s.Units)
	assert.Equal(t, 2, s.Records, "streamed records are not deduplicated")
	assert.Equal(t, 1, s.FieldErrors)
	assert.Equal(t, 1, s.UnknownCategories)
	assert.Equal(t, 1, s.RejectedBy(ReasonSchema))
	assert.Equal(t, 1, s.RejectedBy(ReasonIdentity))
	assert.Contains(t, logs.String(), "no schema for unit")
	assert.Contains(t, logs.String(), "identity key failed")

	_, err := l.Collect(context.Background())
	require.NoError(t, err)
	s = l.Summary()
	assert.Equal(t, 1, s.Records, "the materialized summary replaces the streaming one")
	assert.Equal(t, 1, s.Replaced)
	assert.Len(t, s.Rejected, 2)
}

func TestLazy_CancelledCollectIsNotCached(t *testing.T) {
	var opens atomic.Int32
	in := Input{Name: "a", Open: func() (Scanner, error) {
		opens.Add(1)
		return scan("a", "A, 1, 0, 1, , TS"), nil
	}}
	l := NewLazy(newDemoBuilder(t), in)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Collect(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, l.Materialized())

	c, err := l.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	assert.True(t, l.Materialized())
	assert.Equal(t, int32(2), opens.Load())
}

func TestLazy_OpenError(t *testing.T) {
	l := NewLazy(newDemoBuilder(t), Input{Name: "gone", Open: func() (Scanner, error) {
		return nil, errors.New("no such file")
	}})
	_, err := l.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open gone")
}

func TestFillMissing(t *testing.T) {
	c, err := newDemoBuilder(t).Ingest(context.Background(), "a", scan("a",
		"A, 1, 0, 1, , TS",
		"A, 1, 6, 1, BRET, TS",
		"A, 1, 12, 1, , TS",
		"A, 2, 0, 1, , TS",
	))
	require.NoError(t, err)

	filled := FillMissing(c, "name", "id")
	names := make([]string, filled.Len())
	for i, r := range filled.Records() {
		names[i] = r.Get("name").Str
	}
	assert.Equal(t, []string{"BRET", "BRET", "BRET", ""}, names)
	assert.True(t, c.At(0).Get("name").Missing, "input collection unchanged")
}

func TestFilterAndOfType(t *testing.T) {
	recs := []domain.Record{
		domain.NewRecord("demo", "track/forecast", domain.Origin{}).With("id", domain.Number(1)),
		domain.NewRecord("demo", "track/forecast/radii", domain.Origin{}).With("id", domain.Number(1)),
		domain.NewRecord("demo", "track/best", domain.Origin{}).With("id", domain.Number(2)),
	}
	c := New("demo", []string{"id"}, recs)
	assert.Equal(t, 2, c.OfType("track/forecast").Len())
	assert.Equal(t, 1, c.OfType("track/best").Len())
	assert.Equal(t, 1, c.Filter(func(r domain.Record) bool { return r.Get("id").Num == 2 }).Len())
}

func TestToArrow(t *testing.T) {
	c, err := newDemoBuilder(t).Ingest(context.Background(), "a", scan("a",
		"A, 1, 0, 45, BRET, TS",
		"A, 1, 6, -999, , HU",
	))
	require.NoError(t, err)

	rec, err := c.ToArrow(memory.NewGoAllocator())
	require.NoError(t, err)
	defer rec.Release()

	assert.Equal(t, int64(2), rec.NumRows())
	assert.Equal(t, int64(6), rec.NumCols())

	sch := rec.Schema()
	assert.Equal(t, TypeColumn, sch.Field(0).Name)
	assert.Equal(t, arrow.FLOAT64, sch.Field(3).Type.ID())
	assert.Equal(t, arrow.DICTIONARY, sch.Field(5).Type.ID())

	types := rec.Column(0).(*array.String)
	assert.Equal(t, "row/a", types.Value(0))

	value := rec.Column(3).(*array.Float64)
	assert.InDelta(t, 45, value.Value(0), 0)
	assert.True(t, value.IsNull(1))

	name := rec.Column(4).(*array.String)
	assert.Equal(t, "BRET", name.Value(0))
	assert.True(t, name.IsNull(1))
}
