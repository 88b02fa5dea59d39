// Package bufr reads WMO BUFR tropical cyclone ensemble tracks (template
// 316082). Input is the text produced by ecCodes "bufr_dump -p", one blank
// line between messages, optionally gzip-compressed.
package bufr

import (
	"context"

	"github.com/couchcryptid/tctrack"
	"github.com/couchcryptid/tctrack/internal/bufr"
	"github.com/couchcryptid/tctrack/internal/collection"
	"github.com/couchcryptid/tctrack/internal/schema"
)

// Format is the collection format of BUFR reads.
const Format = schema.BUFR

// Read reads the dump at path. Each member of each time period becomes one
// record; wind radii are expanded into sibling records.
func Read(ctx context.Context, path string, opts ...tctrack.Option) (*tctrack.Collection, error) {
	b, err := tctrack.Apply(opts).Builder(Format)
	if err != nil {
		return nil, err
	}
	return bufr.ReadFile(ctx, b, path)
}

// Scan defers reading the dumps at paths until first access.
func Scan(paths []string, opts ...tctrack.Option) (*tctrack.Lazy, error) {
	b, err := tctrack.Apply(opts).Builder(Format)
	if err != nil {
		return nil, err
	}
	inputs := make([]collection.Input, len(paths))
	for i, p := range paths {
		inputs[i] = bufr.Input(p)
	}
	return collection.NewLazy(b, inputs...), nil
}
