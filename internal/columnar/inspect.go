package columnar

import (
	"context"

	"github.com/apache/arrow/go/v10/arrow"
)

// Field describes one column of a parquet file.
type Field struct {
	Name     string
	Type     string
	Nullable bool
}

// Summary is the schema, row count and leading rows of a parquet file.
type Summary struct {
	Path   string
	Fields []Field
	Rows   int64
	Sample [][]interface{}
}

// Inspect reads path and returns its schema and at most limit sample rows.
func Inspect(ctx context.Context, path string, limit int) (*Summary, error) {
	s := &Summary{Path: path}
	err := readTable(ctx, path, func(tbl arrow.Table) error {
		for _, f := range tbl.Schema().Fields() {
			s.Fields = append(s.Fields, Field{Name: f.Name, Type: f.Type.String(), Nullable: f.Nullable})
		}
		s.Rows = tbl.NumRows()

		n := int(s.Rows)
		if limit >= 0 && n > limit {
			n = limit
		}
		s.Sample = make([][]interface{}, n)
		for i := range s.Sample {
			s.Sample[i] = make([]interface{}, tbl.NumCols())
		}
		for j := 0; j < int(tbl.NumCols()); j++ {
			row := 0
			for _, chunk := range tbl.Column(j).Data().Chunks() {
				for k := 0; k < chunk.Len() && row < n; k++ {
					s.Sample[row][j] = valueAt(chunk, k)
					row++
				}
				if row >= n {
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
