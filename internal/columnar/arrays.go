package columnar

import (
	"fmt"
	"math"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
)

// Decoders flatten a chunked column into Go values. Nulls come back as nil
// pointers. Each decoder accepts the physical types other writers commonly
// use for the same logical column.

func decodeStrings(c *arrow.Chunked) ([]*string, error) {
	out := make([]*string, 0, c.Len())
	for _, chunk := range c.Chunks() {
		switch a := chunk.(type) {
		case *array.String:
			for i := 0; i < a.Len(); i++ {
				if a.IsNull(i) {
					out = append(out, nil)
					continue
				}
				v := a.Value(i)
				out = append(out, &v)
			}
		case *array.Binary:
			for i := 0; i < a.Len(); i++ {
				if a.IsNull(i) {
					out = append(out, nil)
					continue
				}
				v := string(a.Value(i))
				out = append(out, &v)
			}
		case *array.Int64:
			for i := 0; i < a.Len(); i++ {
				if a.IsNull(i) {
					out = append(out, nil)
					continue
				}
				v := fmt.Sprintf("%d", a.Value(i))
				out = append(out, &v)
			}
		default:
			return nil, fmt.Errorf("expected string column, got %s", chunk.DataType())
		}
	}
	return out, nil
}

func decodeFloats(c *arrow.Chunked) ([]*float64, error) {
	out := make([]*float64, 0, c.Len())
	for _, chunk := range c.Chunks() {
		switch a := chunk.(type) {
		case *array.Float64:
			for i := 0; i < a.Len(); i++ {
				if a.IsNull(i) || math.IsNaN(a.Value(i)) {
					out = append(out, nil)
					continue
				}
				v := a.Value(i)
				out = append(out, &v)
			}
		case *array.Int64:
			for i := 0; i < a.Len(); i++ {
				if a.IsNull(i) {
					out = append(out, nil)
					continue
				}
				v := float64(a.Value(i))
				out = append(out, &v)
			}
		default:
			return nil, fmt.Errorf("expected float column, got %s", chunk.DataType())
		}
	}
	return out, nil
}

func decodeInts(c *arrow.Chunked) ([]*int64, error) {
	out := make([]*int64, 0, c.Len())
	for _, chunk := range c.Chunks() {
		switch a := chunk.(type) {
		case *array.Int64:
			for i := 0; i < a.Len(); i++ {
				if a.IsNull(i) {
					out = append(out, nil)
					continue
				}
				v := a.Value(i)
				out = append(out, &v)
			}
		case *array.Int32:
			for i := 0; i < a.Len(); i++ {
				if a.IsNull(i) {
					out = append(out, nil)
					continue
				}
				v := int64(a.Value(i))
				out = append(out, &v)
			}
		case *array.Float64:
			for i := 0; i < a.Len(); i++ {
				f := a.Value(i)
				if a.IsNull(i) || math.IsNaN(f) {
					out = append(out, nil)
					continue
				}
				if f != math.Trunc(f) {
					return nil, fmt.Errorf("non-integral value %v in integer column", f)
				}
				v := int64(f)
				out = append(out, &v)
			}
		default:
			return nil, fmt.Errorf("expected integer column, got %s", chunk.DataType())
		}
	}
	return out, nil
}

func decodeTimes(c *arrow.Chunked) ([]time.Time, error) {
	out := make([]time.Time, 0, c.Len())
	for _, chunk := range c.Chunks() {
		a, ok := chunk.(*array.Timestamp)
		if !ok {
			return nil, fmt.Errorf("expected timestamp column, got %s", chunk.DataType())
		}
		unit := a.DataType().(*arrow.TimestampType).Unit
		for i := 0; i < a.Len(); i++ {
			if a.IsNull(i) {
				out = append(out, time.Time{})
				continue
			}
			out = append(out, timestampToTime(int64(a.Value(i)), unit))
		}
	}
	return out, nil
}

func timestampToTime(v int64, unit arrow.TimeUnit) time.Time {
	switch unit {
	case arrow.Second:
		return time.Unix(v, 0).UTC()
	case arrow.Millisecond:
		return time.UnixMilli(v).UTC()
	case arrow.Microsecond:
		return time.UnixMicro(v).UTC()
	default:
		return time.Unix(0, v).UTC()
	}
}

// valueAt renders one cell for display.
func valueAt(arr arrow.Array, i int) interface{} {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.String:
		return a.Value(i)
	case *array.Binary:
		return string(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.Float32:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Int32:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return timestampToTime(int64(a.Value(i)), unit).Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("<%s>", arr.DataType())
}

func appendString(b *array.StringBuilder, v *string) {
	if v == nil {
		b.AppendNull()
		return
	}
	b.Append(*v)
}

func appendFloat(b *array.Float64Builder, v *float64) {
	if v == nil {
		b.AppendNull()
		return
	}
	b.Append(*v)
}

func appendInt(b *array.Int64Builder, v *int64) {
	if v == nil {
		b.AppendNull()
		return
	}
	b.Append(*v)
}
