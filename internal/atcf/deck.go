package atcf

import (
	"context"
	"io"

	"github.com/couchcryptid/tctrack/internal/collection"
	"github.com/couchcryptid/tctrack/internal/fileio"
	"github.com/couchcryptid/tctrack/internal/schema"
)

// Input opens path lazily, decompressing gzip decks.
func Input(path string) collection.Input {
	return collection.Input{
		Name: path,
		Open: func() (collection.Scanner, error) {
			f, err := fileio.Open(path)
			if err != nil {
				return nil, err
			}
			return NewScanner(path, f), nil
		},
	}
}

// Read ingests one deck from r and applies Finish.
func Read(ctx context.Context, b *collection.Builder, name string, r io.Reader) (*collection.Collection, error) {
	c, err := b.Ingest(ctx, name, NewScanner(name, r))
	if err != nil {
		return nil, err
	}
	return Finish(b.Format(), c), nil
}

// ReadFile ingests the deck at path and applies Finish.
func ReadFile(ctx context.Context, b *collection.Builder, path string) (*collection.Collection, error) {
	f, err := fileio.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(ctx, b, path, f)
}

// Finish applies deck-level post-processing. Track decks carry the storm
// name on only some lines; it is stretched across each storm's rows.
func Finish(format string, c *collection.Collection) *collection.Collection {
	switch format {
	case schema.ADeck, schema.BDeck:
		return collection.FillMissing(c, "stormname", "basin", "number")
	default:
		return c
	}
}
