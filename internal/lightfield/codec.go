package lightfield

import (
	"bufio"
	"bytes"
	"cmp"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/banshee-data/plenoptics/internal/fsutil"
)

// NextChannelMarker ends the arrivals of one channel in the symbol stream.
const NextChannelMarker = 255

// ErrCorruptResponse is returned when a response blob does not decode.
var ErrCorruptResponse = errors.New("corrupt raw sensor response")

type responseHeader struct {
	TimeSliceDuration float32
	NumberTimeSlices  uint32
	NumberChannels    uint32
	NumberPhotons     uint32
	NumberSymbols     uint32
}

// EncodeRawSensorResponse writes r as a gzip stream: a little-endian header
// followed by one byte per symbol. A symbol is either an arrival slice or
// NextChannelMarker, which closes the current channel.
func EncodeRawSensorResponse(w io.Writer, r *RawSensorResponse) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.NumberTimeSlices >= NextChannelMarker {
		return fmt.Errorf("%d time slices do not fit the symbol encoding (max %d)", r.NumberTimeSlices, NextChannelMarker-1)
	}

	arrivals := slices.Clone(r.Arrivals)
	slices.SortStableFunc(arrivals, func(a, b Arrival) int { return cmp.Compare(a.Channel, b.Channel) })

	symbols := make([]byte, 0, len(arrivals)+r.NumberChannels)
	k := 0
	for ch := 0; ch < r.NumberChannels; ch++ {
		for k < len(arrivals) && arrivals[k].Channel == ch {
			symbols = append(symbols, byte(arrivals[k].TimeSlice))
			k++
		}
		symbols = append(symbols, NextChannelMarker)
	}

	hdr := responseHeader{
		TimeSliceDuration: float32(r.TimeSliceDuration),
		NumberTimeSlices:  uint32(r.NumberTimeSlices),
		NumberChannels:    uint32(r.NumberChannels),
		NumberPhotons:     uint32(r.NumberPhotons),
		NumberSymbols:     uint32(len(symbols)),
	}

	gz := gzip.NewWriter(w)
	if err := binary.Write(gz, binary.LittleEndian, hdr); err != nil {
		gz.Close()
		return fmt.Errorf("failed to write response header: %w", err)
	}
	if _, err := gz.Write(symbols); err != nil {
		gz.Close()
		return fmt.Errorf("failed to write response symbols: %w", err)
	}
	return gz.Close()
}

// DecodeRawSensorResponse reads a stream written by EncodeRawSensorResponse.
func DecodeRawSensorResponse(rd io.Reader) (*RawSensorResponse, error) {
	gz, err := gzip.NewReader(rd)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()
	br := bufio.NewReader(gz)

	var hdr responseHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorruptResponse, err)
	}
	if math.IsNaN(float64(hdr.TimeSliceDuration)) {
		return nil, fmt.Errorf("%w: NaN time slice duration", ErrCorruptResponse)
	}

	if uint64(hdr.NumberSymbols) != uint64(hdr.NumberPhotons)+uint64(hdr.NumberChannels) {
		return nil, fmt.Errorf("%w: %d symbols for %d photons on %d channels",
			ErrCorruptResponse, hdr.NumberSymbols, hdr.NumberPhotons, hdr.NumberChannels)
	}
	// The buffer grows with the payload actually present, not the header.
	symbols, err := io.ReadAll(io.LimitReader(br, int64(hdr.NumberSymbols)))
	if err != nil {
		return nil, fmt.Errorf("%w: symbols: %v", ErrCorruptResponse, err)
	}
	if uint64(len(symbols)) != uint64(hdr.NumberSymbols) {
		return nil, fmt.Errorf("%w: expected %d symbols, got %d", ErrCorruptResponse, hdr.NumberSymbols, len(symbols))
	}

	r := &RawSensorResponse{
		TimeSliceDuration: float64(hdr.TimeSliceDuration),
		NumberTimeSlices:  int(hdr.NumberTimeSlices),
		NumberChannels:    int(hdr.NumberChannels),
		NumberPhotons:     int(hdr.NumberPhotons),
		Arrivals:          make([]Arrival, 0, len(symbols)-int(hdr.NumberChannels)),
	}
	ch := 0
	for _, s := range symbols {
		if s == NextChannelMarker {
			ch++
			continue
		}
		r.Arrivals = append(r.Arrivals, Arrival{Channel: ch, TimeSlice: int(s)})
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptResponse, err)
	}
	return r, nil
}

// WriteRawSensorResponse encodes r to path through a rename.
func WriteRawSensorResponse(fsys fsutil.FileSystem, path string, r *RawSensorResponse) error {
	var buf bytes.Buffer
	if err := EncodeRawSensorResponse(&buf, r); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(fsys, path, buf.Bytes(), 0644)
}

// ReadRawSensorResponse decodes the response stored at path.
func ReadRawSensorResponse(fsys fsutil.FileSystem, path string) (*RawSensorResponse, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read response %s: %w", path, err)
	}
	r, err := DecodeRawSensorResponse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}
