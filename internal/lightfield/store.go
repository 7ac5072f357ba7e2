package lightfield

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/plenoptics/internal/binio"
	"github.com/banshee-data/plenoptics/internal/fsutil"
)

// HeaderFilename is the metadata file of a geometry directory.
const HeaderFilename = "header.json"

type geometryHeader struct {
	NumberLixel  int     `json:"number_lixel"`
	FocalLengthM float64 `json:"focal_length_m"`
}

// WriteGeometry stores g in dir as a header plus one little-endian float32
// file per field.
func WriteGeometry(fsys fsutil.FileSystem, dir string, g *Geometry) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("refusing to write geometry: %w", err)
	}
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create geometry directory: %w", err)
	}
	for _, f := range g.fields() {
		path := filepath.Join(dir, f.name+".float32")
		if err := fsutil.WriteFileAtomic(fsys, path, binio.EncodeFloat64sAsFloat32(*f.values), 0644); err != nil {
			return err
		}
	}
	// header last, so a directory with a header is complete
	hdr, err := json.Marshal(geometryHeader{NumberLixel: g.NumberLixel(), FocalLengthM: g.FocalLengthM})
	if err != nil {
		return fmt.Errorf("failed to encode geometry header: %w", err)
	}
	return fsutil.WriteFileAtomic(fsys, filepath.Join(dir, HeaderFilename), hdr, 0644)
}

// LoadGeometry reads a geometry directory written by WriteGeometry.
func LoadGeometry(fsys fsutil.FileSystem, dir string) (*Geometry, error) {
	data, err := fsys.ReadFile(filepath.Join(dir, HeaderFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to read geometry header: %w", err)
	}
	var hdr geometryHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		return nil, fmt.Errorf("failed to parse geometry header: %w", err)
	}

	g := &Geometry{FocalLengthM: hdr.FocalLengthM}
	for _, f := range g.fields() {
		blob, err := fsys.ReadFile(filepath.Join(dir, f.name+".float32"))
		if err != nil {
			return nil, fmt.Errorf("failed to read geometry field %s: %w", f.name, err)
		}
		values, err := binio.DecodeFloat32sAsFloat64(blob)
		if err != nil {
			return nil, fmt.Errorf("geometry field %s: %w", f.name, err)
		}
		if len(values) != hdr.NumberLixel {
			return nil, fmt.Errorf("geometry field %s has %d lixels, header says %d", f.name, len(values), hdr.NumberLixel)
		}
		*f.values = values
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
