// Package layout holds the on-disk path conventions that connect the
// pipeline stages. Stages never talk to each other directly; they agree on
// these paths.
package layout

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Ext is the extension of every columnar file the pipeline writes.
const Ext = ".parquet"

// PartitionDir returns <root>/year=YYYY/month=MM/day=DD for t in UTC.
func PartitionDir(root string, t time.Time) string {
	t = t.UTC()
	return filepath.Join(root,
		fmt.Sprintf("year=%04d", t.Year()),
		fmt.Sprintf("month=%02d", int(t.Month())),
		fmt.Sprintf("day=%02d", t.Day()),
	)
}

// BatchFileName returns batch_HHMMSS_ffffff.parquet for t in UTC. Local
// wall time would repeat an hour when daylight saving ends.
func BatchFileName(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("batch_%s_%06d%s", t.Format("150405"), t.Nanosecond()/1000, Ext)
}

// BatchPath joins PartitionDir and BatchFileName.
func BatchPath(root string, t time.Time) string {
	return filepath.Join(PartitionDir(root, t), BatchFileName(t))
}

// DiscoverBatches returns every parquet file below root, sorted
// lexicographically. With the partition and file naming above, that order is
// the order the batches were written in. A missing root yields no files.
func DiscoverBatches(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), Ext) && !strings.HasPrefix(d.Name(), ".") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover batches under %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}
