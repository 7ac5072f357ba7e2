// Package sources describes the light sources an instrument observes.
//
// A Source is one of Star, Point or Phantom. The set is closed: callers
// dispatch with a type switch and ParseSource rejects unknown kinds.
package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrUnknownSourceType is returned for a source config whose "type" is
	// not one of star, point or mesh.
	ErrUnknownSourceType = errors.New("unknown source type")

	// ErrUnknownObservation is returned for an observation key other than
	// star, point or phantom.
	ErrUnknownObservation = errors.New("unknown observation")
)

// Source type tags as written in source configs.
const (
	TypeStar  = "star"
	TypePoint = "point"
	TypeMesh  = "mesh"
)

// Source is the true configuration of an observed source.
type Source interface {
	// Type returns the "type" tag of the source config.
	Type() string
	isSource()
}

// Star is a source at infinity.
type Star struct {
	CxDeg                   float64 `json:"cx_deg"`
	CyDeg                   float64 `json:"cy_deg"`
	ArealPhotonDensityPerM2 float64 `json:"areal_photon_density_per_m2"`
	Seed                    int64   `json:"seed"`
}

// Point is a point-like source at a finite distance.
type Point struct {
	CxDeg                   float64 `json:"cx_deg"`
	CyDeg                   float64 `json:"cy_deg"`
	ObjectDistanceM         float64 `json:"object_distance_m"`
	ArealPhotonDensityPerM2 float64 `json:"areal_photon_density_per_m2"`
	Seed                    int64   `json:"seed"`
}

// Phantom is an extended source made of emitting meshes at several depths.
// The meshes are kept as raw JSON; the analysis never looks into them.
type Phantom struct {
	Seed   int64           `json:"seed"`
	Meshes json.RawMessage `json:"meshes,omitempty"`
}

func (Star) Type() string    { return TypeStar }
func (Point) Type() string   { return TypePoint }
func (Phantom) Type() string { return TypeMesh }

func (Star) isSource()    {}
func (Point) isSource()   {}
func (Phantom) isSource() {}

// ParseSource decodes a source config, dispatching on its "type" field.
func ParseSource(data []byte) (Source, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("failed to parse source config: %w", err)
	}

	switch tag.Type {
	case TypeStar:
		var s Star
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to parse star config: %w", err)
		}
		return s, nil
	case TypePoint:
		var p Point
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse point config: %w", err)
		}
		return p, nil
	case TypeMesh:
		var m Phantom
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse mesh config: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSourceType, tag.Type)
	}
}

// MarshalSource encodes s with its "type" tag.
func MarshalSource(s Source) ([]byte, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"], _ = json.Marshal(s.Type())
	return json.Marshal(fields)
}

// Observation names a kind of observation run per instrument.
type Observation string

// Observations known to the analysis.
const (
	ObservationStar    Observation = "star"
	ObservationPoint   Observation = "point"
	ObservationPhantom Observation = "phantom"
)

// ParseObservation validates an observation key.
func ParseObservation(key string) (Observation, error) {
	switch o := Observation(key); o {
	case ObservationStar, ObservationPoint, ObservationPhantom:
		return o, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownObservation, key)
	}
}

// Accepts reports whether s is the kind of source this observation holds.
func (o Observation) Accepts(s Source) bool {
	switch s.(type) {
	case Star:
		return o == ObservationStar
	case Point:
		return o == ObservationPoint
	case Phantom:
		return o == ObservationPhantom
	default:
		return false
	}
}

// SampleKey formats a sample number the way archives and response files
// are keyed.
func SampleKey(n int) string {
	return fmt.Sprintf("%06d", n)
}

// ParseSampleKey is the inverse of SampleKey.
func ParseSampleKey(key string) (int, error) {
	if len(key) != 6 {
		return 0, fmt.Errorf("sample key %q must have 6 digits", key)
	}
	n, err := strconv.Atoi(key)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid sample key %q", key)
	}
	return n, nil
}
