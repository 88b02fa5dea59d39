package collection

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/couchcryptid/tctrack/internal/domain"
)

// TypeColumn is the name of the Arrow column holding Record.Type.
const TypeColumn = "record_type"

var timestampType = &arrow.TimestampType{Unit: arrow.Second, TimeZone: "UTC"}

var categoryType = &arrow.DictionaryType{
	IndexType: arrow.PrimitiveTypes.Int32,
	ValueType: arrow.BinaryTypes.String,
}

// ArrowSchema maps the collection's columns onto Arrow types. Every field is
// nullable; missing values become nulls.
func (c *Collection) ArrowSchema() *arrow.Schema {
	fields := []arrow.Field{{Name: TypeColumn, Type: arrow.BinaryTypes.String}}
	for _, name := range c.columns {
		fields = append(fields, arrow.Field{Name: name, Type: arrowType(c.kindOf(name)), Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}

// ToArrow copies the collection into one Arrow record. The caller must
// Release it.
func (c *Collection) ToArrow(mem memory.Allocator) (arrow.Record, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	schema := c.ArrowSchema()
	rb := array.NewRecordBuilder(mem, schema)
	defer rb.Release()

	typ := rb.Field(0).(*array.StringBuilder)
	for _, r := range c.records {
		typ.Append(r.Type)
	}
	for i, name := range c.columns {
		if err := appendColumn(rb.Field(i+1), c.kindOf(name), c.Column(name)); err != nil {
			return nil, fmt.Errorf("arrow column %s: %w", name, err)
		}
	}
	return rb.NewRecord(), nil
}

// kindOf returns the kind of the first record declaring name.
func (c *Collection) kindOf(name string) domain.Kind {
	for _, r := range c.records {
		if v, ok := r.Values[name]; ok {
			return v.Kind
		}
	}
	return domain.KindString
}

func arrowType(k domain.Kind) arrow.DataType {
	switch k {
	case domain.KindNumeric, domain.KindLatLon:
		return arrow.PrimitiveTypes.Float64
	case domain.KindDatetime:
		return timestampType
	case domain.KindCategorical:
		return categoryType
	default:
		return arrow.BinaryTypes.String
	}
}

func appendColumn(b array.Builder, k domain.Kind, values []domain.Value) error {
	switch bb := b.(type) {
	case *array.Float64Builder:
		for _, v := range values {
			if v.Missing || !v.IsNumber() {
				bb.AppendNull()
				continue
			}
			bb.Append(v.Num)
		}
	case *array.TimestampBuilder:
		for _, v := range values {
			if v.Missing || v.Kind != domain.KindDatetime {
				bb.AppendNull()
				continue
			}
			bb.Append(arrow.Timestamp(v.Time.Unix()))
		}
	case *array.BinaryDictionaryBuilder:
		for _, v := range values {
			if v.Missing {
				bb.AppendNull()
				continue
			}
			if err := bb.AppendString(v.String()); err != nil {
				return err
			}
		}
	case *array.StringBuilder:
		for _, v := range values {
			if v.Missing {
				bb.AppendNull()
				continue
			}
			bb.Append(v.String())
		}
	default:
		return fmt.Errorf("unsupported builder %T for %s", b, k)
	}
	return nil
}
