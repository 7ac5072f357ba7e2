// Package archive stores per-sample analysis results as JSON entries of a
// zip file, one entry "<key>.json" per sample.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/banshee-data/plenoptics/internal/fsutil"
	"github.com/banshee-data/plenoptics/internal/report"
)

const entryExt = ".json"

// Writer collects entries in memory and writes the archive on Close.
// Nothing appears at the target path until Close succeeds.
type Writer struct {
	fsys fsutil.FileSystem
	path string
	buf  bytes.Buffer
	zw   *zip.Writer
	keys map[string]struct{}
}

// NewWriter starts an archive that will be written to path.
func NewWriter(fsys fsutil.FileSystem, path string) *Writer {
	w := &Writer{fsys: fsys, path: path, keys: make(map[string]struct{})}
	w.zw = zip.NewWriter(&w.buf)
	return w
}

// Add marshals v as the entry for key.
func (w *Writer) Add(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal entry %s: %w", key, err)
	}
	return w.AddRaw(key, data)
}

// AddRaw stores already encoded JSON as the entry for key.
func (w *Writer) AddRaw(key string, data []byte) error {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid entry key %q", key)
	}
	if _, dup := w.keys[key]; dup {
		return fmt.Errorf("duplicate entry key %q", key)
	}
	if !json.Valid(data) {
		return fmt.Errorf("entry %s is not valid JSON", key)
	}
	f, err := w.zw.Create(key + entryExt)
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", key, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", key, err)
	}
	w.keys[key] = struct{}{}
	return nil
}

// Len returns the number of entries added so far.
func (w *Writer) Len() int { return len(w.keys) }

// Close finishes the zip and moves it into place.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return fsutil.WriteFileAtomic(w.fsys, w.path, w.buf.Bytes(), 0o644)
}

// ReadReports returns the raw JSON of every entry keyed by entry name
// without the .json extension.
func ReadReports(fsys fsutil.FileSystem, name string) (map[string]json.RawMessage, error) {
	data, err := fsys.ReadFile(name)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", name, err)
	}

	out := make(map[string]json.RawMessage, len(zr.File))
	for _, f := range zr.File {
		if path.Ext(f.Name) != entryExt {
			continue
		}
		body, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		out[strings.TrimSuffix(f.Name, entryExt)] = body
	}
	return out, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Decode unmarshals every raw entry into a T.
func Decode[T any](raw map[string]json.RawMessage) (map[string]T, error) {
	out := make(map[string]T, len(raw))
	for key, body := range raw {
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, fmt.Errorf("failed to decode entry %s: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

// ReadPointSourceReports reads an archive of point-source reports.
func ReadPointSourceReports(fsys fsutil.FileSystem, name string) (map[string]*report.PointSourceReport, error) {
	raw, err := ReadReports(fsys, name)
	if err != nil {
		return nil, err
	}
	return Decode[*report.PointSourceReport](raw)
}

// Keys returns the keys of m in ascending order.
func Keys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
