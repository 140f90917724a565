// Package filemeta answers GetFileMetadata by globbing the filesystem
// and grouping matches into partitions. A real columnar reader that
// inspects row groups and produces a schema belongs to the analytic
// engine, which sits outside this system, so Probe only recovers file
// names and partition boundaries, leaving Schema empty for any type it
// can't introspect with the standard library alone.
package filemeta

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/cuemby/qscheduler/pkg/apierr"
)

// FileType is the source format GetFileMetadata was asked to probe.
type FileType int

const (
	UnknownFileType FileType = iota
	ParquetFileType
	CSVFileType
)

// Partition is one physical-plan TableScan partition: the set of files a
// single executor task will read.
type Partition struct {
	Filenames []string
}

// Metadata is what GetFileMetadata returns: a display-only schema (empty
// unless the format carries one inline, which none of the stdlib-only
// paths here do) and the partitions discovered at path.
type Metadata struct {
	Schema     []string
	Partitions []Partition
}

// Probe inspects path (a file or a directory of same-typed files) and
// returns one partition per file, sorted for determinism. Only Parquet
// and CSV are recognized; any other fileType fails with Unsupported.
func Probe(path string, fileType FileType) (Metadata, error) {
	switch fileType {
	case ParquetFileType, CSVFileType:
	default:
		return Metadata{}, apierr.New(apierr.Unsupported, "filemeta: unsupported file type")
	}

	info, err := os.Stat(path)
	if err != nil {
		return Metadata{}, apierr.Wrap(apierr.BadRequest, "filemeta: cannot stat path", err)
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return Metadata{}, apierr.Wrap(apierr.BadRequest, "filemeta: cannot read directory", err)
		}
		ext := extensionFor(fileType)
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if ext == "" || filepath.Ext(e.Name()) == ext {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
	} else {
		files = []string{path}
	}

	if len(files) == 0 {
		return Metadata{}, apierr.New(apierr.BadRequest, "filemeta: no matching files at "+path)
	}

	sort.Strings(files)
	partitions := make([]Partition, len(files))
	for i, f := range files {
		partitions[i] = Partition{Filenames: []string{f}}
	}

	return Metadata{Partitions: partitions}, nil
}

func extensionFor(fileType FileType) string {
	switch fileType {
	case ParquetFileType:
		return ".parquet"
	case CSVFileType:
		return ".csv"
	default:
		return ""
	}
}
