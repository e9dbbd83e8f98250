// Package columnar reads and writes the pipeline's parquet files through
// Apache Arrow.
package columnar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet"
	"github.com/apache/arrow/go/v10/parquet/compress"
	"github.com/apache/arrow/go/v10/parquet/file"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"
)

// rowGroupSize caps the rows per parquet row group.
const rowGroupSize = 64 * 1024

// ErrExists is returned by exclusive writes when the target already exists.
var ErrExists = errors.New("file already exists")

// Options tunes how files are encoded.
type Options struct {
	// Compression is one of "snappy", "zstd", "gzip" or "none".
	Compression string
}

func codec(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	}
	return compress.Codecs.Uncompressed, fmt.Errorf("unsupported compression %q", name)
}

// ValidCompression reports whether name is an accepted compression codec.
func ValidCompression(name string) bool {
	_, err := codec(name)
	return err == nil
}

func (o Options) writerProps() (*parquet.WriterProperties, error) {
	c, err := codec(o.Compression)
	if err != nil {
		return nil, err
	}
	return parquet.NewWriterProperties(
		parquet.WithCompression(c),
		parquet.WithDictionaryDefault(false),
	), nil
}

// encode serialises tbl into an in-memory parquet file.
func encode(tbl arrow.Table, opts Options) ([]byte, error) {
	props, err := opts.writerProps()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pqarrow.WriteTable(tbl, &buf, rowGroupSize, props, pqarrow.DefaultWriterProps()); err != nil {
		return nil, fmt.Errorf("encode parquet: %w", err)
	}
	return buf.Bytes(), nil
}

// writeAtomic writes data to a hidden temp file next to path and renames it
// into place, so readers never observe a half-written file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// writeExclusive creates path and fails with ErrExists if it is already
// there.
func writeExclusive(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", path, ErrExists)
		}
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// readTable loads a whole parquet file and hands the table to fn. The table
// is released once fn returns.
func readTable(ctx context.Context, path string, fn func(arrow.Table) error) error {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return fmt.Errorf("open parquet %s: %w", path, err)
	}
	defer rdr.Close()

	mem := memory.NewGoAllocator()
	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return fmt.Errorf("arrow reader %s: %w", path, err)
	}
	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return fmt.Errorf("read table %s: %w", path, err)
	}
	defer tbl.Release()
	if err := fn(tbl); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// column returns the chunked data of the named column.
func column(tbl arrow.Table, name string) (*arrow.Chunked, error) {
	idx := tbl.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	return tbl.Column(idx[0]).Data(), nil
}
