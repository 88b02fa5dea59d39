// Package track post-processes assembled storm tracks.
package track

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/couchcryptid/tctrack/internal/collection"
	"github.com/couchcryptid/tctrack/internal/domain"
)

const earthRadiusKm = 6378.0

var (
	// ForecastGroups splits forecasts into one track per cycle.
	ForecastGroups = []string{"basin", "number", "tech", "datetime"}

	// BestTrackGroups treats every fix of a technique as one track.
	BestTrackGroups = []string{"basin", "number", "tech"}
)

// ErrStep is returned for a non-positive upsampling interval.
var ErrStep = errors.New("upsample step must be positive")

// Upsample inserts interpolated track points every step of valid time
// between the first and last point of each track. Tracks are the records
// carrying validtime, lat and lon, grouped by record type and groupBy
// (ForecastGroups when empty); other records pass through unchanged.
//
// Positions are interpolated as cartesian points on the sphere so that
// tracks crossing the dateline or a pole stay continuous. Numeric columns
// are interpolated between their present values; string and categorical
// columns are carried forward from the preceding point. When groupBy holds
// "datetime", new points advance tau; otherwise they advance datetime.
func Upsample(c *collection.Collection, step time.Duration, groupBy ...string) (*collection.Collection, error) {
	if step <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrStep, step)
	}
	if len(groupBy) == 0 {
		groupBy = ForecastGroups
	}
	advanceTau := slices.Contains(groupBy, "datetime")

	var out []domain.Record
	groups := make(map[string][]domain.Record)
	var order []string
	for _, r := range c.Records() {
		if !isPoint(r) {
			out = append(out, r)
			continue
		}
		k := trackKey(r, groupBy)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	skip := append(slices.Clone(groupBy), "tau")
	for _, k := range order {
		points, err := upsampleTrack(groups[k], step, advanceTau, skip)
		if err != nil {
			return nil, fmt.Errorf("upsample track %s: %w", strings.ReplaceAll(k, "\x1f", "/"), err)
		}
		out = append(out, points...)
	}
	return c.WithRecords(out), nil
}

func isPoint(r domain.Record) bool {
	vt := r.Get("validtime")
	return !vt.Missing && vt.Kind == domain.KindDatetime && r.Has("lat") && r.Has("lon")
}

func trackKey(r domain.Record, groupBy []string) string {
	parts := []string{r.Type}
	for _, name := range groupBy {
		parts = append(parts, r.Get(name).String())
	}
	return strings.Join(parts, "\x1f")
}

func validTime(r domain.Record) time.Time { return r.Get("validtime").Time }

func upsampleTrack(points []domain.Record, step time.Duration, advanceTau bool, skip []string) ([]domain.Record, error) {
	slices.SortStableFunc(points, func(a, b domain.Record) int {
		return validTime(a).Compare(validTime(b))
	})
	points = slices.CompactFunc(points, func(a, b domain.Record) bool {
		return validTime(a).Equal(validTime(b))
	})
	if len(points) < 2 {
		return points, nil
	}

	t0 := validTime(points[0])
	hours := func(t time.Time) float64 { return t.Sub(t0).Hours() }

	pos, err := fitPositions(points, hours)
	if err != nil {
		return nil, err
	}
	numeric, err := fitNumeric(points, hours, skip)
	if err != nil {
		return nil, err
	}

	out := slices.Clone(points)
	last := validTime(points[len(points)-1])
	i := 0
	for t := t0.Add(step); t.Before(last); t = t.Add(step) {
		for i+1 < len(points) && !validTime(points[i+1]).After(t) {
			i++
		}
		if validTime(points[i]).Equal(t) {
			continue
		}
		out = append(out, interpolate(points[i], t, hours(t), advanceTau, pos, numeric))
	}
	return out, nil
}

func interpolate(base domain.Record, t time.Time, x float64, advanceTau bool, pos *positions, numeric map[string]*series) domain.Record {
	r := base.Clone()
	r.Extra = nil
	dt := t.Sub(validTime(base))
	r.Set("validtime", domain.Timestamp(t))
	if advanceTau {
		if tau := r.Get("tau"); r.Has("tau") && !tau.Missing {
			r.Set("tau", domain.Number(tau.Num+dt.Hours()))
		}
	} else if dtg := r.Get("datetime"); r.Has("datetime") && !dtg.Missing {
		r.Set("datetime", domain.Timestamp(dtg.Time.Add(dt)))
	}

	if lat, lon, ok := pos.at(x); ok {
		r.Set("lat", domain.Coordinate(lat))
		r.Set("lon", domain.Coordinate(lon))
	} else {
		r.Set("lat", domain.Missing(domain.KindLatLon))
		r.Set("lon", domain.Missing(domain.KindLatLon))
	}
	for name, s := range numeric {
		if !r.Has(name) {
			continue
		}
		if v, ok := s.at(x); ok {
			r.Set(name, domain.Number(v))
		} else {
			r.Set(name, domain.Missing(domain.KindNumeric))
		}
	}
	return r
}

// series is one column fitted over hours since the first point. Values are
// only predicted between the first and last present sample.
type series struct {
	lo, hi float64
	fit    interp.PiecewiseLinear
	ok     bool
}

func newSeries(xs, ys []float64) (*series, error) {
	s := &series{}
	if len(xs) < 2 {
		return s, nil
	}
	if err := s.fit.Fit(xs, ys); err != nil {
		return nil, err
	}
	s.lo, s.hi, s.ok = xs[0], xs[len(xs)-1], true
	return s, nil
}

func (s *series) at(x float64) (float64, bool) {
	if !s.ok || x < s.lo || x > s.hi {
		return 0, false
	}
	return s.fit.Predict(x), true
}

// positions fits the x, y and z components of the track.
type positions struct {
	x, y, z *series
	wrap    bool // the input used 0..360 longitudes
}

func (p *positions) at(h float64) (float64, float64, bool) {
	x, ok := p.x.at(h)
	if !ok {
		return 0, 0, false
	}
	y, _ := p.y.at(h)
	z, _ := p.z.at(h)
	lat, lon := fromCartesian(r3.Vec{X: x, Y: y, Z: z})
	if p.wrap && lon < 0 {
		lon += 360
	}
	return lat, lon, true
}

func fitPositions(points []domain.Record, hours func(time.Time) float64) (*positions, error) {
	p := &positions{}
	var hs, xs, ys, zs []float64
	for _, r := range points {
		lat, lon := r.Get("lat"), r.Get("lon")
		if lat.Missing || lon.Missing {
			continue
		}
		if lon.Num > 180 {
			p.wrap = true
		}
		v := toCartesian(lat.Num, lon.Num)
		hs = append(hs, hours(validTime(r)))
		xs, ys, zs = append(xs, v.X), append(ys, v.Y), append(zs, v.Z)
	}
	var err error
	if p.x, err = newSeries(hs, xs); err != nil {
		return nil, err
	}
	if p.y, err = newSeries(hs, ys); err != nil {
		return nil, err
	}
	if p.z, err = newSeries(hs, zs); err != nil {
		return nil, err
	}
	return p, nil
}

func fitNumeric(points []domain.Record, hours func(time.Time) float64, skip []string) (map[string]*series, error) {
	var names []string
	for _, r := range points {
		for _, name := range r.Columns {
			if r.Values[name].Kind == domain.KindNumeric && !slices.Contains(skip, name) && !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}
	out := make(map[string]*series, len(names))
	for _, name := range names {
		var xs, ys []float64
		for _, r := range points {
			if v := r.Get(name); !v.Missing && v.Kind == domain.KindNumeric {
				xs = append(xs, hours(validTime(r)))
				ys = append(ys, v.Num)
			}
		}
		s, err := newSeries(xs, ys)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = s
	}
	return out, nil
}

func toCartesian(lat, lon float64) r3.Vec {
	la, lo := lat*math.Pi/180, lon*math.Pi/180
	return r3.Vec{
		X: earthRadiusKm * math.Cos(la) * math.Cos(lo),
		Y: earthRadiusKm * math.Cos(la) * math.Sin(lo),
		Z: earthRadiusKm * math.Sin(la),
	}
}

func fromCartesian(v r3.Vec) (float64, float64) {
	n := r3.Norm(v)
	return math.Asin(v.Z/n) * 180 / math.Pi, math.Atan2(v.Y, v.X) * 180 / math.Pi
}
